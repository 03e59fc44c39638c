package main

import (
	"runtime"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/dbbench/internal/cli"
	"github.com/gezibash/dbbench/internal/config"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func newVersionCmd(root *cobra.Command, s streams) *cobra.Command {
	v := viper.New()
	config.BindCommonKeys(root, v)

	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.NewOutput(cli.ParseFormat(v.GetString("output")), s.out).
				KV("version").
				Title("dbbench "+version).
				Set("Version", version).
				Set("Commit", commit).
				Set("Built", buildDate).
				Set("Go", runtime.Version()).
				Render()
		},
	}
}
