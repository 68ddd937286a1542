package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/odesim/internal/analysis"
	"github.com/san-kum/odesim/internal/config"
	"github.com/san-kum/odesim/internal/dynamo"
	"github.com/san-kum/odesim/internal/experiment"
	"github.com/san-kum/odesim/internal/integrators"
	"github.com/san-kum/odesim/internal/metrics"
	"github.com/san-kum/odesim/internal/storage"
	"github.com/san-kum/odesim/internal/viz"
)

func newRunCmd() *cobra.Command {
	var (
		flags       runFlags
		noSave      bool
		showMetrics bool
	)
	cmd := &cobra.Command{
		Use:   "run [system]",
		Short: "integrate a system and store the sampled trajectory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.resolve(cmd, args[0])
			if err != nil {
				return err
			}
			exp, err := experiment.New(cfg, experiment.NewRegistry(), logger)
			if err != nil {
				return err
			}

			var (
				reg  *prometheus.Registry
				prom *metrics.Prometheus
			)
			if showMetrics {
				reg = prometheus.NewRegistry()
				if prom, err = metrics.NewPrometheus(reg, cfg.Integrator); err != nil {
					return err
				}
				exp.AddStepHandler(prom)
			}

			fmt.Printf("integrating %s with %s over [%g, %g]...\n", cfg.System, cfg.Integrator, cfg.T0, cfg.T1)
			res, err := exp.Run(cmd.Context())
			if err != nil {
				return err
			}
			printSummary(res)

			if prom != nil {
				prom.ObserveEvaluations(res.Evaluations)
				if err := printGathered(reg); err != nil {
					return err
				}
			}

			if noSave {
				return nil
			}
			runID, err := storage.New(dataDir).Save(res.Metadata(), cfg, res.Times, res.Rows())
			if err != nil {
				return err
			}
			fmt.Printf("run id: %s\n", runID)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")
	cmd.Flags().BoolVar(&showMetrics, "metrics", false, "print prometheus step metrics")
	return cmd
}

func printSummary(res *experiment.Result) {
	fmt.Printf("completed in %v\n", res.Elapsed)
	fmt.Printf("steps: %d (rejected %d)\n", res.Steps, res.Rejected)
	fmt.Printf("evaluations: %d\n", res.Evaluations)
	last := res.States[len(res.States)-1]
	fmt.Printf("y(%g) = %v\n", res.Times[len(res.Times)-1], []float64(last))

	names := make([]string, 0, len(res.Metrics))
	for name := range res.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Println("\nmetrics:")
	for _, name := range names {
		fmt.Printf("  %s: %.6g\n", name, res.Metrics[name])
	}
}

func printGathered(reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	fmt.Println("\nprometheus:")
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				fmt.Printf("  %s %g\n", mf.GetName(), m.GetCounter().GetValue())
			case m.GetGauge() != nil:
				fmt.Printf("  %s %g\n", mf.GetName(), m.GetGauge().GetValue())
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				fmt.Printf("  %s count=%d sum=%g\n", mf.GetName(), h.GetSampleCount(), h.GetSampleSum())
			}
		}
	}
	return nil
}

func newSensCmd() *cobra.Command {
	var (
		flags   runFlags
		params  []string
		central bool
		fd      bool
	)
	cmd := &cobra.Command{
		Use:   "sens [system]",
		Short: "integrate the variational equations and print the final Jacobians",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.resolve(cmd, args[0])
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("params") {
				cfg.Sensitivity.Params = params
			}
			if cmd.Flags().Changed("central") {
				cfg.Sensitivity.Central = central
			}
			if cmd.Flags().Changed("fd") {
				cfg.Sensitivity.Analytic = !fd
			}

			exp, err := experiment.New(cfg, experiment.NewRegistry(), logger)
			if err != nil {
				return err
			}
			if err := exp.EnableSensitivity(); err != nil {
				return err
			}
			res, err := exp.Run(cmd.Context())
			if err != nil {
				return err
			}
			printSummary(res)

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
			fmt.Printf("\ndY/dY0 at t=%g:\n", cfg.T1)
			n, _ := res.StateJacobian.Dims()
			for i := 0; i < n; i++ {
				for j := 0; j < n; j++ {
					fmt.Fprintf(w, "%.6g\t", res.StateJacobian.At(i, j))
				}
				fmt.Fprintln(w)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			for _, name := range res.SensitivityParams {
				fmt.Printf("\ndY/d%s: %v\n", name, res.ParameterJacobians[name])
			}

			runID, err := storage.New(dataDir).Save(res.Metadata(), cfg, res.Times, res.Rows())
			if err != nil {
				return err
			}
			fmt.Printf("\nrun id: %s\n", runID)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringSliceVar(&params, "params", nil, "parameters to differentiate against")
	cmd.Flags().BoolVar(&central, "central", false, "central finite differences")
	cmd.Flags().BoolVar(&fd, "fd", false, "finite difference state Jacobian even when an analytic one exists")
	return cmd
}

func newInspectCmd() *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "inspect [system]",
		Short: "integrate a system and browse its dense output interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.resolve(cmd, args[0])
			if err != nil {
				return err
			}
			exp, err := experiment.New(cfg, experiment.NewRegistry(), logger)
			if err != nil {
				return err
			}
			res, err := exp.Run(cmd.Context())
			if err != nil {
				return err
			}
			m, err := viz.NewInspector(fmt.Sprintf("%s / %s", cfg.System, cfg.Integrator), res.Trajectory, cfg.Samples)
			if err != nil {
				return err
			}
			return viz.RunInspector(m)
		},
	}
	flags.register(cmd)
	return cmd
}

func newBenchCmd() *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "bench [system]",
		Short: "compare every integrator on one system",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := flags.resolve(cmd, args[0])
			if err != nil {
				return err
			}
			registry := experiment.NewRegistry()

			// reference solution from a tight adaptive run
			ref := base.Clone()
			ref.Integrator = "dopri54"
			ref.AbsTol, ref.RelTol = 1e-12, 1e-12
			ref.MaxEvaluations = 0
			refRes, err := runConfig(cmd.Context(), ref, registry)
			if err != nil {
				return fmt.Errorf("reference run: %w", err)
			}
			want := refRes.States[len(refRes.States)-1]

			fmt.Printf("benchmarking %s over [%g, %g]\n\n", base.System, base.T0, base.T1)
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "INTEGRATOR\tSTEPS\tREJECTED\tEVALS\tTIME\tERROR")
			for _, name := range registry.ListIntegrators() {
				cfg := base.Clone()
				cfg.Integrator = name
				start := time.Now()
				res, err := runConfig(cmd.Context(), cfg, registry)
				if err != nil {
					fmt.Fprintf(w, "%s\t-\t-\t-\t-\t%v\n", name, err)
					continue
				}
				got := res.States[len(res.States)-1]
				errNorm := floats.Distance(got, want, math.Inf(1))
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%v\t%.3e\n",
					name, res.Steps, res.Rejected, res.Evaluations, time.Since(start).Round(time.Microsecond), errNorm)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			return printLocalErrors(cmd.Context(), base, refRes)
		},
	}
	flags.register(cmd)
	return cmd
}

// printLocalErrors measures one step of every tableau from states sampled
// along the reference run.
func printLocalErrors(ctx context.Context, cfg *config.Config, ref *experiment.Result) error {
	states := ref.States
	if stride := len(states) / 64; stride > 1 {
		sampled := make([]dynamo.State, 0, 64)
		for i := 0; i < len(states); i += stride {
			sampled = append(sampled, states[i])
		}
		states = sampled
	}
	sys, err := experiment.NewRegistry().GetSystem(cfg.System)
	if err != nil {
		return err
	}
	for name, v := range cfg.Params {
		if err := sys.SetParameter(name, v); err != nil {
			return err
		}
	}

	fmt.Printf("\none-step error at h=%g over %d states\n", cfg.Step, len(states))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TABLEAU\tMAX ERROR\tORDER")
	for _, name := range integrators.TableauNames() {
		tab, _ := integrators.TableauByName(name)
		errs, err := analysis.OneStepErrors(ctx, tab, sys, cfg.T0, states, cfg.Step)
		if err != nil {
			return err
		}
		order, err := analysis.EmpiricalOrder(ctx, tab, sys, cfg.T0, states, cfg.Step)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%.3e\t%.2f\n", name, floats.Max(errs), order)
	}
	return w.Flush()
}

func runConfig(ctx context.Context, cfg *config.Config, registry *experiment.Registry) (*experiment.Result, error) {
	exp, err := experiment.New(cfg, registry, logger)
	if err != nil {
		return nil, err
	}
	return exp.Run(ctx)
}
