package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/dbbench/internal/backend"
	"github.com/gezibash/dbbench/internal/cli"
	"github.com/gezibash/dbbench/internal/config"
	"github.com/gezibash/dbbench/internal/dataset"
)

func newGenerateCmd(root *cobra.Command, s streams) *cobra.Command {
	v := viper.New()
	config.BindCommonKeys(root, v)

	var file string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a generated dataset as JSON lines",
		Long: `Generate a dataset with the same generator the benchmark uses and write it
as one JSON record per line, to stdout or to --file.

Examples:
  dbbench generate --size 10 --seed 42
  dbbench generate --size 100000 --file dataset.jsonl`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, v, s)
			if err != nil {
				return err
			}
			defer a.Close()

			ds, err := dataset.Generate(a.ctx, dataset.Options{
				Size:         a.cfg.Bench.Size,
				MaxSubfields: a.cfg.Bench.MaxSubfields,
				Seed:         a.cfg.Bench.Seed,
			}, nil)
			if err != nil {
				return err
			}

			if file == "" {
				return writeLines(s.out, ds)
			}

			f, err := os.Create(file) //nolint:gosec // path comes from the operator
			if err != nil {
				return fmt.Errorf("create %s: %w", file, err)
			}
			if err := writeLines(f, ds); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close %s: %w", file, err)
			}

			ids := 0
			for _, rec := range ds {
				ids += rec.Subfields()
			}
			return cli.NewOutput(cli.ParseFormat(a.cfg.Output), s.out).
				Result("generate", "dataset written").
				With("file", file).
				With("records", len(ds)).
				With("ids", ids).
				Render()
		},
	}
	config.BindDatasetFlags(cmd, v)
	cmd.Flags().StringVarP(&file, "file", "f", "", "write to this file instead of stdout")
	return cmd
}

func writeLines(w io.Writer, ds dataset.Dataset) error {
	bw := bufio.NewWriter(w)
	for _, rec := range ds {
		data, err := backend.MarshalRecord(rec)
		if err != nil {
			return err
		}
		if _, err := bw.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
	return bw.Flush()
}
