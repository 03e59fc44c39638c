package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config is the resolved dbbench configuration.
type Config struct {
	Bench         BenchConfig                  `mapstructure:"bench"`
	Backends      map[string]map[string]string `mapstructure:"backends"`
	Observability ObservabilityConfig          `mapstructure:"observability"`
	Output        string                       `mapstructure:"output"`
	EnvFile       string                       `mapstructure:"env_file"`
}

// BenchConfig holds the dataset and workload settings.
type BenchConfig struct {
	Size            int      `mapstructure:"size"`
	MaxSubfields    int      `mapstructure:"subfields"`
	Reads           int      `mapstructure:"reads"`
	Workers         int      `mapstructure:"workers"`
	PageSize        int      `mapstructure:"page_size"`
	Seed            int64    `mapstructure:"seed"`
	ContinueOnError bool     `mapstructure:"continue_on_error"`
	All             bool     `mapstructure:"all"`
	Backends        []string `mapstructure:"backends"`
	Assert          []string `mapstructure:"assert"`
	Set             []string `mapstructure:"set"`
}

// ObservabilityConfig holds logging, metrics and tracing settings.
type ObservabilityConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	LogFormat      string `mapstructure:"log_format"`
	MetricsAddr    string `mapstructure:"metrics_addr"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPProtocol   string `mapstructure:"otlp_protocol"`
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
}

// SetDefaults configures every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("output", Common.Output)
	v.SetDefault("env_file", Common.EnvFile)

	v.SetDefault("bench.size", Common.Size)
	v.SetDefault("bench.subfields", Common.MaxSubfields)
	v.SetDefault("bench.reads", Common.Reads)
	v.SetDefault("bench.workers", Common.Workers)
	v.SetDefault("bench.page_size", Common.PageSize)
	v.SetDefault("bench.seed", 0)
	v.SetDefault("bench.continue_on_error", false)

	v.SetDefault("observability.log_level", Common.LogLevel)
	v.SetDefault("observability.log_format", Common.LogFormat)
	v.SetDefault("observability.metrics_addr", "")
	v.SetDefault("observability.otlp_endpoint", "")
	v.SetDefault("observability.otlp_protocol", Common.OTLPProtocol)
	v.SetDefault("observability.service_name", Common.ServiceName)
	v.SetDefault("observability.service_version", "dev")
}

// BindCommonFlags defines the persistent flags every command shares.
func BindCommonFlags(root *cobra.Command) {
	f := root.PersistentFlags()

	f.String("config", "", "config file path")
	f.String("env-file", "", "dotenv file to load (default .env)")
	f.StringP("output", "o", "", "output format (text, json, markdown)")
	f.String("log-level", "", "log level (debug, info, warn, error)")
	f.String("log-format", "", "log format (json, text)")
}

// BindCommonKeys binds root's persistent flags to v. Each command keeps its
// own viper so commands binding the same key do not clobber each other.
func BindCommonKeys(root *cobra.Command, v *viper.Viper) {
	f := root.PersistentFlags()

	_ = v.BindPFlag("env_file", f.Lookup("env-file"))
	_ = v.BindPFlag("output", f.Lookup("output"))
	_ = v.BindPFlag("observability.log_level", f.Lookup("log-level"))
	_ = v.BindPFlag("observability.log_format", f.Lookup("log-format"))
}

// BindDatasetFlags binds the dataset generation flags.
func BindDatasetFlags(cmd *cobra.Command, v *viper.Viper) {
	f := cmd.Flags()

	f.Int("size", 0, "number of records to generate (prompted on a terminal when unset)")
	f.Int("subfields", 0, "maximum ids per likes, dislikes and bookmarks list (default 10)")
	f.Int64("seed", 0, "random seed, 0 picks one from the clock")

	_ = v.BindPFlag("bench.size", f.Lookup("size"))
	_ = v.BindPFlag("bench.subfields", f.Lookup("subfields"))
	_ = v.BindPFlag("bench.seed", f.Lookup("seed"))
}

// BindRunFlags binds the flags of the run command. --assert and --set are
// read with StringList since CSV splitting would mangle CEL expressions.
func BindRunFlags(cmd *cobra.Command, v *viper.Viper) {
	BindDatasetFlags(cmd, v)
	f := cmd.Flags()

	f.Int("reads", 0, "concurrent reads after the bulk write, 0 skips them (default 1000)")
	f.Int("workers", 0, "concurrent read workers (default 4)")
	f.Int("page-size", 0, "bulk write page size for paging backends (default 5000)")
	f.Bool("continue-on-error", false, "keep going when a backend fails")
	f.Bool("all", false, "benchmark every registered backend")
	f.StringArray("assert", nil, "CEL threshold every run must satisfy (repeatable)")
	f.StringArray("set", nil, "backend setting as backend.key=value (repeatable)")
	f.String("metrics-addr", "", "serve prometheus metrics on this address")
	f.String("otlp-endpoint", "", "OTLP trace collector endpoint")
	f.String("otlp-protocol", "", "OTLP protocol (grpc, http)")

	_ = v.BindPFlag("bench.reads", f.Lookup("reads"))
	_ = v.BindPFlag("bench.workers", f.Lookup("workers"))
	_ = v.BindPFlag("bench.page_size", f.Lookup("page-size"))
	_ = v.BindPFlag("bench.continue_on_error", f.Lookup("continue-on-error"))
	_ = v.BindPFlag("bench.all", f.Lookup("all"))
	_ = v.BindPFlag("observability.metrics_addr", f.Lookup("metrics-addr"))
	_ = v.BindPFlag("observability.otlp_endpoint", f.Lookup("otlp-endpoint"))
	_ = v.BindPFlag("observability.otlp_protocol", f.Lookup("otlp-protocol"))
}
