package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/san-kum/odesim/internal/analysis"
	"github.com/san-kum/odesim/internal/config"
	"github.com/san-kum/odesim/internal/dynamo"
	"github.com/san-kum/odesim/internal/experiment"
	"github.com/san-kum/odesim/internal/trajectory"
)

// analysisSetup holds the configured system, its initial state and a
// factory for fresh integrators.
type analysisSetup struct {
	cfg     *config.Config
	sys     experiment.Model
	y0      dynamo.State
	factory analysis.IntegratorFactory
}

func setup(cmd *cobra.Command, flags *runFlags, system string) (*analysisSetup, error) {
	cfg, err := flags.resolve(cmd, system)
	if err != nil {
		return nil, err
	}
	registry := experiment.NewRegistry()
	exp, err := experiment.New(cfg, registry, logger)
	if err != nil {
		return nil, err
	}
	return &analysisSetup{
		cfg:     cfg,
		sys:     exp.System(),
		y0:      exp.Composite().PrimaryState(),
		factory: func() (dynamo.Integrator, error) {
			return registry.GetIntegrator(cfg.Integrator, cfg, logger)
		},
	}, nil
}

func newLyapunovCmd() *cobra.Command {
	var (
		flags   runFlags
		window  float64
		windows int
	)
	cmd := &cobra.Command{
		Use:   "lyapunov [system]",
		Short: "estimate the Lyapunov spectrum from the variational equations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := setup(cmd, &flags, args[0])
			if err != nil {
				return err
			}
			spectrum, err := analysis.LyapunovSpectrum(cmd.Context(), s.sys, s.factory, s.y0, window, windows)
			if err != nil {
				return err
			}
			fmt.Printf("lyapunov spectrum of %s over %g time units:\n", args[0], window*float64(windows))
			sum := 0.0
			for i, l := range spectrum {
				fmt.Printf("  λ%d = %+.5f\n", i+1, l)
				sum += l
			}
			fmt.Printf("  sum = %+.5f\n", sum)
			if spectrum[0] > 0.01 {
				fmt.Println("largest exponent positive: chaotic")
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().Float64Var(&window, "window", 1.0, "renormalization window")
	cmd.Flags().IntVar(&windows, "windows", 100, "number of windows")
	return cmd
}

func newBifurcationCmd() *cobra.Command {
	var (
		flags runFlags
		bc    analysis.BifurcationConfig
	)
	cmd := &cobra.Command{
		Use:   "bifurcation [system]",
		Short: "sweep a parameter and plot the attractor's local maxima",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := setup(cmd, &flags, args[0])
			if err != nil {
				return err
			}
			if bc.Param == "" {
				return fmt.Errorf("--sweep is required (parameters: %v)", s.sys.Parameters())
			}
			data, err := analysis.BifurcationDiagram(cmd.Context(), s.sys, s.factory, s.y0, bc)
			if err != nil {
				return err
			}
			fmt.Printf("%s: maxima of y%d vs %s\n", args[0], bc.StateIndex, bc.Param)
			fmt.Print(analysis.BifurcationToASCII(data, 80, 25))
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&bc.Param, "sweep", "", "parameter to sweep")
	cmd.Flags().Float64Var(&bc.Min, "from", 0, "sweep start")
	cmd.Flags().Float64Var(&bc.Max, "to", 1, "sweep end")
	cmd.Flags().IntVar(&bc.Steps, "steps", 80, "parameter values")
	cmd.Flags().IntVar(&bc.StateIndex, "index", 0, "recorded state component")
	cmd.Flags().Float64Var(&bc.Transient, "transient", 100, "discarded transient")
	cmd.Flags().Float64Var(&bc.Record, "record", 100, "recorded duration")
	return cmd
}

func newPoincareCmd() *cobra.Command {
	var (
		flags            runFlags
		cross            int
		threshold        float64
		recordX, recordY int
	)
	cmd := &cobra.Command{
		Use:   "poincare [system]",
		Short: "Poincaré section located on the dense output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := setup(cmd, &flags, args[0])
			if err != nil {
				return err
			}
			integ, err := s.factory()
			if err != nil {
				return err
			}
			c := dynamo.NewComposite(s.sys)
			if err := c.SetPrimaryState(s.y0); err != nil {
				return err
			}
			c.SetTime(s.cfg.T0)
			traj := trajectory.NewFor(c)
			integ.AddStepHandler(traj)
			if err := integ.Integrate(cmd.Context(), c, s.cfg.T1); err != nil {
				return err
			}

			section, err := analysis.GeneratePoincareSection(traj, cross, threshold, recordX, recordY)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %d crossings of y%d = %g (y%d vs y%d)\n",
				args[0], len(section.Points), cross, threshold, recordY, recordX)
			fmt.Print(analysis.PoincareSectionToASCII(section, 80, 30))
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&cross, "cross", 2, "component defining the section")
	cmd.Flags().Float64Var(&threshold, "at", 0, "section value")
	cmd.Flags().IntVar(&recordX, "x-axis", 0, "recorded x component")
	cmd.Flags().IntVar(&recordY, "y-axis", 1, "recorded y component")
	return cmd
}
