package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/go-kit/log/level"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/odesim/internal/analysis"
	"github.com/san-kum/odesim/internal/config"
	"github.com/san-kum/odesim/internal/experiment"
	"github.com/san-kum/odesim/internal/export"
	"github.com/san-kum/odesim/internal/storage"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := storage.New(dataDir).List()
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("no runs found")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSYSTEM\tINTEG\tTIME\tINTERVAL\tSTEPS\tEVALS\tSENS")
			for _, run := range runs {
				sens := ""
				if run.Sensitivity != nil {
					sens = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t[%g, %g]\t%d\t%d\t%s\n",
					run.ID,
					run.System,
					run.Integrator,
					run.Timestamp.Format("2006-01-02 15:04:05"),
					run.T0, run.T1,
					run.Steps,
					run.Evaluations,
					sens,
				)
			}
			return w.Flush()
		},
	}
}

func column(states [][]float64, idx int) []float64 {
	out := make([]float64, len(states))
	for i, s := range states {
		if idx < len(s) {
			out[i] = s[idx]
		}
	}
	return out
}

func newPlotCmd() *cobra.Command {
	var (
		phase        bool
		xAxis, yAxis int
		svgOut       string
	)
	cmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := storage.New(dataDir)
			meta, err := st.Load(args[0])
			if err != nil {
				return err
			}
			times, states, err := st.LoadStates(args[0])
			if err != nil {
				return err
			}
			if len(states) == 0 {
				return fmt.Errorf("no data to plot")
			}

			if svgOut != "" {
				return writeSVG(svgOut, times, states, phase, xAxis, yAxis)
			}

			fmt.Printf("run: %s\n", meta.ID)
			fmt.Printf("system: %s (%s)\n", meta.System, meta.Integrator)
			fmt.Printf("samples: %d\n\n", len(states))

			if phase {
				dim := len(states[0])
				if xAxis < 0 || yAxis < 0 || xAxis >= dim || yAxis >= dim {
					return fmt.Errorf("state dimension %d too small for axes %d, %d", dim, xAxis, yAxis)
				}
				portrait := &analysis.PhasePortrait2D{XIndex: xAxis, YIndex: yAxis}
				for _, s := range states {
					portrait.Points = append(portrait.Points, analysis.Point{X: s[xAxis], Y: s[yAxis]})
				}
				fmt.Printf("y%d vs y%d\n", yAxis, xAxis)
				fmt.Print(analysis.PhasePortraitToASCII(portrait, 80, 30))
				return nil
			}

			numVars := min(len(states[0]), 6)
			for varIdx := 0; varIdx < numVars; varIdx++ {
				graph := asciigraph.Plot(column(states, varIdx),
					asciigraph.Height(10),
					asciigraph.Width(80),
					asciigraph.Caption(fmt.Sprintf("y%d vs time", varIdx)),
				)
				fmt.Println(graph)
				fmt.Println()
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&phase, "phase", false, "phase space plot")
	cmd.Flags().IntVar(&xAxis, "x-axis", 0, "state index for x-axis")
	cmd.Flags().IntVar(&yAxis, "y-axis", 1, "state index for y-axis")
	cmd.Flags().StringVar(&svgOut, "svg", "", "write the plot to an SVG file instead")
	return cmd
}

// writeSVG draws y[yAxis] against y[xAxis] in phase mode, otherwise y[yAxis]
// against time.
func writeSVG(path string, times []float64, states [][]float64, phase bool, xAxis, yAxis int) error {
	dim := len(states[0])
	if yAxis < 0 || yAxis >= dim || (phase && (xAxis < 0 || xAxis >= dim)) {
		return fmt.Errorf("axis out of range for state dimension %d", dim)
	}
	xs := times
	if phase {
		xs = column(states, xAxis)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := export.PathSVG(f, xs, column(states, yAxis), 800, 600, "#00ff9f"); err != nil {
		return err
	}
	level.Info(logger).Log("msg", "svg written", "path", path)
	return f.Close()
}

func newExportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := storage.New(dataDir)
			if out == "" {
				return st.Export(os.Stdout, args[0])
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := st.Export(f, args[0]); err != nil {
				return err
			}
			fmt.Printf("exported to %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}

func newAnalyzeCmd() *cobra.Command {
	var component int
	cmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "frequency analysis of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := storage.New(dataDir)
			meta, err := st.Load(args[0])
			if err != nil {
				return err
			}
			times, states, err := st.LoadStates(args[0])
			if err != nil {
				return err
			}
			if len(states) < 4 || component < 0 || component >= len(states[0]) {
				return fmt.Errorf("no data for component %d", component)
			}

			// samples come from evenly spaced dense output queries
			dt := times[1] - times[0]
			data := column(states, component)
			ps := analysis.PowerSpectrum(data)

			fmt.Printf("frequency analysis: %s\n", meta.ID)
			fmt.Printf("system: %s\n\n", meta.System)
			graph := asciigraph.Plot(ps[:max(len(ps)/4, 2)],
				asciigraph.Height(15),
				asciigraph.Width(80),
				asciigraph.Caption(fmt.Sprintf("amplitude spectrum (y%d)", component)),
			)
			fmt.Println(graph)
			fmt.Println()

			freq := analysis.DominantFrequency(data, dt)
			fmt.Printf("dominant frequency: %.4g\n", freq)
			if freq > 0 {
				fmt.Printf("period: %.4g\n", 1.0/freq)
			}
			fmt.Printf("spectral entropy: %.4g\n", analysis.SpectralEntropy(data))
			return nil
		},
	}
	cmd.Flags().IntVar(&component, "component", 0, "state component to analyze")
	return cmd
}

func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets [system]",
		Short: "list available presets for a system",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := config.ListPresets(args[0])
			if len(presets) == 0 {
				fmt.Printf("no presets for system: %s\n", args[0])
				return nil
			}
			fmt.Printf("presets for %s:\n", args[0])
			for _, p := range presets {
				cfg := config.GetPreset(args[0], p)
				fmt.Printf("  %-10s %s, t1=%g, params=%v\n", p, cfg.Integrator, cfg.T1, cfg.Params)
			}
			return nil
		},
	}
}

func newSystemsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "systems",
		Short: "list registered systems and integrators",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := experiment.NewRegistry()
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SYSTEM\tDIM\tPARAMETERS")
			for _, name := range registry.ListSystems() {
				sys, err := registry.GetSystem(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%d\t%v\n", name, sys.Dimension(), sys.Parameters())
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Printf("\nintegrators: %v\n", registry.ListIntegrators())
			return nil
		},
	}
}
