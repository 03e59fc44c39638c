package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/gezibash/dbbench/internal/cli"
	"github.com/gezibash/dbbench/internal/config"
)

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout, os.Stderr).ExecuteContext(context.Background()); err != nil {
		e := cli.NewOutput(cli.FormatText, os.Stderr).Error("dbbench", err)
		if errors.Is(err, errAssertions) {
			e.WithCode("assert")
		}
		if rerr := e.Render(); rerr != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

// streams are the process's standard streams, swappable in tests.
type streams struct {
	in  io.Reader
	out io.Writer
	err io.Writer
}

func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	s := streams{in: in, out: out, err: errOut}

	rootCmd := &cobra.Command{
		Use:   "dbbench",
		Short: "Database write and read latency benchmarks",
		Long: `dbbench generates synthetic user-interest records and measures single
write, bulk write, single read and concurrent read latency across databases.

Commands:
  dbbench run [backend...]   Benchmark backends (default postgres elastic mongo clickhouse)
  dbbench backends           List registered backends and their defaults
  dbbench generate           Write a generated dataset as JSON lines
  dbbench version            Print version information`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetIn(in)
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	config.BindCommonFlags(rootCmd)

	rootCmd.AddCommand(
		newRunCmd(rootCmd, s),
		newBackendsCmd(rootCmd, s),
		newGenerateCmd(rootCmd, s),
		newVersionCmd(rootCmd, s),
	)
	return rootCmd
}
