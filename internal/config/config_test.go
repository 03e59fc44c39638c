package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRunCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{Use: "run"}
	BindCommonFlags(cmd)
	BindCommonKeys(cmd, v)
	BindRunFlags(cmd, v)
	return cmd
}

func TestRunFlagsOverrideDefaults(t *testing.T) {
	v := viper.New()
	cmd := newRunCommand(v)
	SetDefaults(v)

	err := cmd.ParseFlags([]string{
		"--size", "500",
		"--reads", "0",
		"--workers", "8",
		"--continue-on-error",
		"--log-level", "debug",
		"-o", "json",
	})
	if err != nil {
		t.Fatalf("Parse flags: %v", err)
	}

	tests := []struct {
		key  string
		want any
	}{
		{"bench.size", 500},
		{"bench.reads", 0},
		{"bench.workers", 8},
		{"bench.subfields", Common.MaxSubfields},
		{"bench.page_size", Common.PageSize},
		{"bench.continue_on_error", true},
		{"observability.log_level", "debug"},
		{"output", "json"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			var got any
			switch tt.want.(type) {
			case int:
				got = v.GetInt(tt.key)
			case bool:
				got = v.GetBool(tt.key)
			default:
				got = v.GetString(tt.key)
			}
			if got != tt.want {
				t.Errorf("%s = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}

func TestLoadIntoPrecedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "dbbench.yaml")
	content := `
bench:
  size: 250
  reads: 50
  workers: 2
output: markdown
backends:
  postgres:
    host: db.internal
    port: 6543
  sqlite:
    path: /tmp/bench.db
`
	if err := os.WriteFile(file, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DBBENCH_BENCH_READS", "75")

	v := viper.New()
	cmd := newRunCommand(v)
	if err := cmd.ParseFlags([]string{"--workers", "16", "--config", file}); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadInto(cmd, v)
	if err != nil {
		t.Fatalf("LoadInto: %v", err)
	}

	if cfg.Bench.Size != 250 {
		t.Errorf("size = %d, want 250 from file", cfg.Bench.Size)
	}
	if cfg.Bench.Reads != 75 {
		t.Errorf("reads = %d, want 75 from env", cfg.Bench.Reads)
	}
	if cfg.Bench.Workers != 16 {
		t.Errorf("workers = %d, want 16 from flag", cfg.Bench.Workers)
	}
	if cfg.Bench.MaxSubfields != Common.MaxSubfields {
		t.Errorf("subfields = %d, want default", cfg.Bench.MaxSubfields)
	}
	if cfg.Output != "markdown" {
		t.Errorf("output = %q", cfg.Output)
	}
	if got := cfg.Backends["postgres"]["port"]; got != "6543" {
		t.Errorf("postgres port = %q, want string 6543", got)
	}
	if got := cfg.Backends["sqlite"]["path"]; got != "/tmp/bench.db" {
		t.Errorf("sqlite path = %q", got)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	v := viper.New()
	if err := Load(v, filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestLoadSearchPathsOptional(t *testing.T) {
	t.Chdir(t.TempDir())
	if err := Load(viper.New(), ""); err != nil {
		t.Errorf("Load without config file: %v", err)
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bench.env")
	if err := os.WriteFile(path, []byte("PG_DBHOST=envfile-host\nPG_DBPORT=5433\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PG_DBPORT", "6000")
	// t.Setenv restores the variable afterwards; clear it for the loader.
	t.Setenv("PG_DBHOST", "")
	os.Unsetenv("PG_DBHOST")

	if err := LoadEnvFile(path, true); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("PG_DBHOST"); got != "envfile-host" {
		t.Errorf("PG_DBHOST = %q", got)
	}
	if got := os.Getenv("PG_DBPORT"); got != "6000" {
		t.Errorf("PG_DBPORT = %q, existing value should win", got)
	}

	if err := LoadEnvFile(filepath.Join(dir, "missing.env"), false); err != nil {
		t.Errorf("implicit missing env file: %v", err)
	}
	if err := LoadEnvFile(filepath.Join(dir, "missing.env"), true); err == nil {
		t.Error("explicit missing env file should fail")
	}
}

func TestLoadIntoEnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	custom := filepath.Join(dir, "custom.env")
	if err := os.WriteFile(custom, []byte("DBBENCH_BENCH_READS=33\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		args    []string
		env     string
		wantErr bool
		reads   int
	}{
		{name: "default missing is fine", reads: Common.Reads},
		{name: "explicit default name must exist", args: []string{"--env-file", ".env"}, wantErr: true},
		{name: "explicit missing fails", args: []string{"--env-file", "nope.env"}, wantErr: true},
		{name: "from environment", env: custom, reads: 33},
		{name: "environment names a missing file", env: filepath.Join(dir, "gone.env"), wantErr: true},
		{name: "flag", args: []string{"--env-file", custom}, reads: 33},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// godotenv never overrides, so start each case without the key.
			t.Setenv("DBBENCH_BENCH_READS", "")
			os.Unsetenv("DBBENCH_BENCH_READS")
			if tt.env != "" {
				t.Setenv("DBBENCH_ENV_FILE", tt.env)
			}

			v := viper.New()
			cmd := newRunCommand(v)
			if err := cmd.ParseFlags(tt.args); err != nil {
				t.Fatal(err)
			}
			cfg, err := LoadInto(cmd, v)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected env file error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if cfg.Bench.Reads != tt.reads {
				t.Errorf("reads = %d, want %d", cfg.Bench.Reads, tt.reads)
			}
		})
	}
}

func TestStringListKeepsCommas(t *testing.T) {
	v := viper.New()
	cmd := newRunCommand(v)
	expr := `backend in ["memory", "sqlite"] || reads_p99_ms < 5.0`
	if err := cmd.ParseFlags([]string{"--assert", expr, "--assert", "!failed"}); err != nil {
		t.Fatal(err)
	}
	got := StringList(cmd, v, "assert", "bench.assert")
	if len(got) != 2 || got[0] != expr || got[1] != "!failed" {
		t.Errorf("StringList = %q", got)
	}

	v.Set("bench.assert", []string{"reads_errors == 0"})
	other := newRunCommand(viper.New())
	if got := StringList(other, v, "assert", "bench.assert"); len(got) != 1 || got[0] != "reads_errors == 0" {
		t.Errorf("config fallback = %q", got)
	}
}
