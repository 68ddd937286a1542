package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/spf13/cobra"

	"github.com/san-kum/odesim/internal/config"
)

var (
	dataDir  string
	logLevel string
	logger   log.Logger = log.NewNopLogger()
)

// runFlags are shared by every command that integrates a system. Values
// only override the resolved configuration when set on the command line.
type runFlags struct {
	configFile string
	preset     string
	integrator string
	step       float64
	minStep    float64
	maxStep    float64
	absTol     float64
	relTol     float64
	nSteps     int
	maxEvals   int
	t0, t1     float64
	samples    int
	y0         []float64
	params     map[string]string
}

func (f *runFlags) register(cmd *cobra.Command) {
	d := config.DefaultConfig()
	fs := cmd.Flags()
	fs.StringVar(&f.configFile, "config", "", "config file path (yaml)")
	fs.StringVar(&f.preset, "preset", "", "use preset configuration")
	fs.StringVar(&f.integrator, "integrator", d.Integrator, "integrator")
	fs.Float64Var(&f.step, "step", d.Step, "fixed step size")
	fs.Float64Var(&f.minStep, "min-step", d.MinStep, "minimal adaptive step")
	fs.Float64Var(&f.maxStep, "max-step", d.MaxStep, "maximal adaptive step")
	fs.Float64Var(&f.absTol, "abs-tol", d.AbsTol, "absolute tolerance")
	fs.Float64Var(&f.relTol, "rel-tol", d.RelTol, "relative tolerance")
	fs.IntVar(&f.nSteps, "n-steps", d.NSteps, "multistep history length")
	fs.IntVar(&f.maxEvals, "max-evals", 0, "derivative evaluation budget (0: unbounded)")
	fs.Float64Var(&f.t0, "t0", d.T0, "initial time")
	fs.Float64Var(&f.t1, "time", d.T1, "final time")
	fs.IntVar(&f.samples, "samples", d.Samples, "dense output samples")
	fs.Float64SliceVar(&f.y0, "y0", nil, "initial state")
	fs.StringToStringVar(&f.params, "param", nil, "system parameters, name=value")
}

// resolve builds the configuration: preset, then config file, then flags.
func (f *runFlags) resolve(cmd *cobra.Command, system string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if f.preset != "" {
		cfg = config.GetPreset(system, f.preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", f.preset, config.ListPresets(system))
		}
	}
	if f.configFile != "" {
		loaded, err := config.Load(f.configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	if system != "" {
		cfg.System = system
	}

	changed := cmd.Flags().Changed
	if changed("integrator") {
		cfg.Integrator = f.integrator
	}
	if changed("step") {
		cfg.Step = f.step
	}
	if changed("min-step") {
		cfg.MinStep = f.minStep
	}
	if changed("max-step") {
		cfg.MaxStep = f.maxStep
	}
	if changed("abs-tol") {
		cfg.AbsTol = f.absTol
	}
	if changed("rel-tol") {
		cfg.RelTol = f.relTol
	}
	if changed("n-steps") {
		cfg.NSteps = f.nSteps
	}
	if changed("max-evals") {
		cfg.MaxEvaluations = f.maxEvals
	}
	if changed("t0") {
		cfg.T0 = f.t0
	}
	if changed("time") {
		cfg.T1 = f.t1
	}
	if changed("samples") {
		cfg.Samples = f.samples
	}
	if changed("y0") {
		cfg.InitialState = f.y0
	}
	if len(f.params) > 0 {
		if cfg.Params == nil {
			cfg.Params = make(map[string]float64)
		}
		for name, raw := range f.params {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("parameter %s: %w", name, err)
			}
			cfg.Params[name] = v
		}
	}
	return cfg, cfg.Validate()
}

func newLogger(lvl string) (log.Logger, error) {
	var opt level.Option
	switch strings.ToLower(lvl) {
	case "debug":
		opt = level.AllowDebug()
	case "info":
		opt = level.AllowInfo()
	case "warn":
		opt = level.AllowWarn()
	case "error":
		opt = level.AllowError()
	case "none":
		opt = level.AllowNone()
	default:
		return nil, fmt.Errorf("unknown log level: %s", lvl)
	}
	l := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	l = level.NewFilter(l, opt)
	return log.With(l, "ts", log.DefaultTimestampUTC), nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:           "odesim",
		Short:         "adaptive ODE integration lab",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := newLogger(logLevel)
			if err != nil {
				return err
			}
			logger = l
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".odesim", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error, none)")

	rootCmd.AddCommand(
		newRunCmd(),
		newSensCmd(),
		newInspectCmd(),
		newBenchCmd(),
		newListCmd(),
		newPlotCmd(),
		newExportCmd(),
		newAnalyzeCmd(),
		newLyapunovCmd(),
		newBifurcationCmd(),
		newPoincareCmd(),
		newScenarioCmd(),
		newMonteCarloCmd(),
		newSearchCmd(),
		newPresetsCmd(),
		newSystemsCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		level.Error(logger).Log("err", err)
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
