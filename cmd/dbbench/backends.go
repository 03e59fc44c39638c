package main

import (
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/dbbench/internal/backend"
	"github.com/gezibash/dbbench/internal/cli"
	"github.com/gezibash/dbbench/internal/config"

	// Backends register themselves with the registry.
	_ "github.com/gezibash/dbbench/internal/backend/badger"
	_ "github.com/gezibash/dbbench/internal/backend/clickhouse"
	_ "github.com/gezibash/dbbench/internal/backend/elastic"
	_ "github.com/gezibash/dbbench/internal/backend/memory"
	_ "github.com/gezibash/dbbench/internal/backend/mongo"
	_ "github.com/gezibash/dbbench/internal/backend/postgres"
	_ "github.com/gezibash/dbbench/internal/backend/redis"
	_ "github.com/gezibash/dbbench/internal/backend/s3"
	_ "github.com/gezibash/dbbench/internal/backend/sqlite"
)

func newBackendsCmd(root *cobra.Command, s streams) *cobra.Command {
	v := viper.New()
	config.BindCommonKeys(root, v)

	return &cobra.Command{
		Use:   "backends",
		Short: "List registered backends and their default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cli.NewOutput(cli.ParseFormat(v.GetString("output")), s.out)
			t := out.Table("backends", "Backend", "Defaults")
			for _, name := range backend.ListBackends() {
				t.AddRow(name, formatDefaults(backend.GetDefaults(name)))
			}
			return t.Render()
		},
	}
}

func formatDefaults(cfg backend.Config) string {
	pairs := make([]string, 0, len(cfg))
	for _, k := range slices.Sorted(maps.Keys(cfg)) {
		if cfg[k] == "" {
			continue
		}
		pairs = append(pairs, k+"="+cfg[k])
	}
	return strings.Join(pairs, " ")
}
