package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/odesim/internal/experiment"
	"github.com/san-kum/odesim/internal/optim"
)

// parseAxis reads name=value or name=min:max:n.
func parseAxis(s string) (string, []float64, error) {
	name, def, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return "", nil, fmt.Errorf("grid %q: want name=min:max:n", s)
	}
	parts := strings.Split(def, ":")
	switch len(parts) {
	case 1:
		v, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return "", nil, fmt.Errorf("grid %q: %w", s, err)
		}
		return name, []float64{v}, nil
	case 3:
		lo, err1 := strconv.ParseFloat(parts[0], 64)
		hi, err2 := strconv.ParseFloat(parts[1], 64)
		n, err3 := strconv.Atoi(parts[2])
		if err1 != nil || err2 != nil || err3 != nil || n < 2 {
			return "", nil, fmt.Errorf("grid %q: want name=min:max:n with n >= 2", s)
		}
		return name, floats.Span(make([]float64, n), lo, hi), nil
	}
	return "", nil, fmt.Errorf("grid %q: want name=min:max:n", s)
}

func newSearchCmd() *cobra.Command {
	var (
		flags   runFlags
		axes    []string
		metric  string
		workers int
	)
	cmd := &cobra.Command{
		Use:   "search [system]",
		Short: "grid search system parameters for the smallest run metric",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(axes) == 0 {
				return fmt.Errorf("at least one --grid axis is required")
			}
			cfg, err := flags.resolve(cmd, args[0])
			if err != nil {
				return err
			}
			names := make([]string, len(axes))
			values := make([][]float64, len(axes))
			for i, a := range axes {
				if names[i], values[i], err = parseAxis(a); err != nil {
					return err
				}
			}
			g, err := optim.NewGridSearch(names, values)
			if err != nil {
				return err
			}

			fmt.Printf("searching %d points of %s for minimal %s...\n", g.Size(), cfg.System, metric)
			best, err := g.Search(cmd.Context(), cfg, experiment.NewRegistry(), metric, workers)
			if err != nil {
				return err
			}
			if best.Params == nil {
				fmt.Println("no finite metric value found")
				return nil
			}
			sort.Strings(names)
			for _, n := range names {
				fmt.Printf("  %s = %g\n", n, best.Params[n])
			}
			fmt.Printf("%s: %g\n", metric, best.Value)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringArrayVar(&axes, "grid", nil, "parameter axis, name=min:max:n or name=value (repeatable)")
	cmd.Flags().StringVar(&metric, "metric", "energy_drift", "metric to minimize (a run metric, evaluations, steps or rejected)")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent runs, 0 for GOMAXPROCS")
	return cmd
}
