package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cheggaaa/pb/v3"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/dbbench/internal/assert"
	"github.com/gezibash/dbbench/internal/backend"
	"github.com/gezibash/dbbench/internal/bench"
	"github.com/gezibash/dbbench/internal/cli"
	"github.com/gezibash/dbbench/internal/config"
	"github.com/gezibash/dbbench/internal/dataset"
	"github.com/gezibash/dbbench/internal/report"
)

// errAssertions is returned when every backend ran but a threshold failed.
var errAssertions = errors.New("assertions failed")

func newRunCmd(root *cobra.Command, s streams) *cobra.Command {
	v := viper.New()
	config.BindCommonKeys(root, v)

	cmd := &cobra.Command{
		Use:   "run [backend...]",
		Short: "Benchmark one or more backends",
		Long: `Generate a dataset and run the benchmark lifecycle against each backend:
setup, write one, write many, read one, concurrent reads and clean.

Without arguments the postgres, elastic, mongo and clickhouse backends run.
When --size is not given on a terminal the dataset size is prompted for.

Examples:
  dbbench run                                       # the four default backends
  dbbench run memory sqlite --size 10000            # embedded stores only
  dbbench run --all --continue-on-error -o json     # everything, JSON report
  dbbench run postgres --set postgres.bulk_mode=copy
  dbbench run mongo --assert 'reads_p99_ms < 5.0'   # fail on slow reads`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(cmd, v, s, args)
		},
	}
	config.BindRunFlags(cmd, v)
	return cmd
}

func runBench(cmd *cobra.Command, v *viper.Viper, s streams, args []string) error {
	a, err := newApp(cmd, v, s)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg := a.cfg

	assertions, err := assert.CompileAll(config.StringList(cmd, v, "assert", "bench.assert"))
	if err != nil {
		return err
	}
	sets, err := config.ParseSet(config.StringList(cmd, v, "set", "bench.set"))
	if err != nil {
		return err
	}
	names, err := config.SelectBackends(args, cfg.Bench.Backends, cfg.Bench.All, backend.ListBackends())
	if err != nil {
		return err
	}

	size := cfg.Bench.Size
	if !sizeConfigured(cmd, v) && isTerminalReader(s.in) {
		size = promptSize(s.in, s.err)
	}
	interactive := cli.IsTerminal(s.err)

	fmt.Fprintf(s.err, "\nBenchmarking %s with the dataset of %d items, %d subfields, %d workers\n\n",
		strings.Join(names, ", "), size, cfg.Bench.MaxSubfields, max(cfg.Bench.Workers, 1))

	ds, err := generate(a, dataset.Options{Size: size, MaxSubfields: cfg.Bench.MaxSubfields, Seed: cfg.Bench.Seed}, s.err, interactive)
	if err != nil {
		return err
	}

	opts := bench.Options{
		PageSize:        cfg.Bench.PageSize,
		Reads:           cfg.Bench.Reads,
		Workers:         cfg.Bench.Workers,
		Seed:            cfg.Bench.Seed,
		ContinueOnError: cfg.Bench.ContinueOnError,
	}
	runnerOpts := []bench.RunnerOption{
		bench.WithMetrics(a.obs.Metrics),
		bench.WithLogger(a.obs.Logger),
	}
	if interactive {
		runnerOpts = append(runnerOpts, bench.WithProgress(&readProgress{w: s.err}))
	}

	suite := &bench.Suite{
		Runner:  bench.NewRunner(opts, runnerOpts...),
		Configs: backendConfigs(names, cfg, sets),
	}
	res, runErr := suite.Run(a.ctx, names, ds, cfg.Bench.MaxSubfields)

	rep := report.New(cli.NewOutput(cli.ParseFormat(cfg.Output), s.out), res)
	violations := assert.CheckAll(assertions, res.Runs)
	for _, vi := range violations {
		rep.AddViolation(vi.Backend, vi.String())
	}
	if err := rep.Render(); err != nil {
		return fmt.Errorf("render report: %w", err)
	}

	if runErr != nil {
		return runErr
	}
	if failed := res.Failed(); len(failed) > 0 {
		return fmt.Errorf("%d of %d backends failed", len(failed), len(res.Runs))
	}
	if len(violations) > 0 {
		return fmt.Errorf("%w: %d violation(s)", errAssertions, len(violations))
	}
	return nil
}

// backendConfigs resolves each backend's settings. The global page size sits
// below every other source.
func backendConfigs(names []string, cfg config.Config, sets map[string]backend.Config) map[string]backend.Config {
	configs := config.BackendConfigs(config.LegacyConfigs(nil), cfg.Backends, sets)
	if cfg.Bench.PageSize <= 0 {
		return configs
	}
	for _, name := range names {
		configs[name] = backend.Config{"page_size": strconv.Itoa(cfg.Bench.PageSize)}.Merge(configs[name])
	}
	return configs
}

// sizeConfigured reports whether the dataset size came from a flag, the
// config file or the environment.
func sizeConfigured(cmd *cobra.Command, v *viper.Viper) bool {
	if cmd.Flags().Changed("size") || v.InConfig("bench.size") {
		return true
	}
	_, ok := os.LookupEnv(config.EnvPrefix + "_BENCH_SIZE")
	return ok
}

func isTerminalReader(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

// promptSize asks for the dataset size. Anything but a positive integer
// falls back to the default.
func promptSize(in io.Reader, out io.Writer) int {
	fmt.Fprintf(out, "Enter desired dataset size (default is %d): ", config.Common.Size)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(out)
	}
	n, convErr := strconv.Atoi(strings.TrimSpace(line))
	if convErr != nil || n < 1 {
		fmt.Fprintln(out, "Only positive integer values are supported, using default")
		return config.Common.Size
	}
	return n
}

func generate(a *app, opts dataset.Options, w io.Writer, interactive bool) (dataset.Dataset, error) {
	if !interactive {
		return dataset.Generate(a.ctx, opts, nil)
	}
	bar := pb.New(opts.Size).SetWriter(w).Set("prefix", "dataset ")
	bar.Start()
	defer bar.Finish()
	return dataset.Generate(a.ctx, opts, func() { bar.Increment() })
}

// readProgress draws one bar per backend's concurrent read phase.
type readProgress struct {
	w   io.Writer
	bar *pb.ProgressBar
}

func (p *readProgress) Start(name string, total int) {
	p.bar = pb.New(total).SetWriter(p.w).Set("prefix", name+" reads ")
	p.bar.Start()
}

func (p *readProgress) Increment() { p.bar.Increment() }

func (p *readProgress) Finish() { p.bar.Finish() }
