package analysis

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/odesim/internal/dynamo"
	"github.com/san-kum/odesim/internal/trajectory"
)

// TunableSystem is a system whose parameters can be changed between runs.
type TunableSystem interface {
	dynamo.System
	dynamo.ParameterizedSystem
}

// BifurcationPoint represents the attractor found for one parameter value.
type BifurcationPoint struct {
	Param  float64
	Values []float64 // distinct local maxima of the recorded component
}

// BifurcationConfig describes a parameter sweep.
type BifurcationConfig struct {
	Param      string
	Min, Max   float64
	Steps      int
	StateIndex int
	// Transient is integrated and discarded before recording.
	Transient float64
	Record    float64
	// Samples is the number of dense output samples taken over Record.
	Samples int
}

// BifurcationDiagram sweeps a parameter and records the local maxima of
// one state component after the transient has died out. A single value
// indicates a period-1 orbit; a cloud of values indicates chaos. The
// swept parameter is restored before returning.
func BifurcationDiagram(ctx context.Context, sys TunableSystem, factory IntegratorFactory, y0 dynamo.State, cfg BifurcationConfig) ([]BifurcationPoint, error) {
	if err := checkIndices(len(y0), cfg.StateIndex); err != nil {
		return nil, err
	}
	if !(cfg.Record > 0) || cfg.Transient < 0 {
		return nil, fmt.Errorf("%w: transient %g record %g", dynamo.ErrInvalidStep, cfg.Transient, cfg.Record)
	}
	original, err := sys.Parameter(cfg.Param)
	if err != nil {
		return nil, err
	}
	defer sys.SetParameter(cfg.Param, original) //nolint:errcheck

	steps := cfg.Steps
	if steps <= 1 {
		steps = 2
	}
	samples := cfg.Samples
	if samples <= 0 {
		samples = 2000
	}
	delta := (cfg.Max - cfg.Min) / float64(steps-1)

	results := make([]BifurcationPoint, 0, steps)
	for i := 0; i < steps; i++ {
		param := cfg.Min + float64(i)*delta
		if err := sys.SetParameter(cfg.Param, param); err != nil {
			return nil, err
		}
		values, err := attractorMaxima(ctx, sys, factory, y0, cfg, samples)
		if err != nil {
			return nil, fmt.Errorf("%s=%g: %w", cfg.Param, param, err)
		}
		results = append(results, BifurcationPoint{Param: param, Values: values})
	}
	return results, nil
}

func attractorMaxima(ctx context.Context, sys dynamo.System, factory IntegratorFactory, y0 dynamo.State, cfg BifurcationConfig, samples int) ([]float64, error) {
	c := dynamo.NewComposite(sys)
	if err := c.SetPrimaryState(y0); err != nil {
		return nil, err
	}
	integ, err := factory()
	if err != nil {
		return nil, err
	}
	if cfg.Transient > 0 {
		if err := integ.Integrate(ctx, c, cfg.Transient); err != nil {
			return nil, err
		}
	}

	model := trajectory.NewFor(c)
	integ.AddStepHandler(model)
	if err := integ.Integrate(ctx, c, c.Time()+cfg.Record); err != nil {
		return nil, err
	}
	_, states, err := model.Sample(samples)
	if err != nil {
		return nil, err
	}

	values := make([]float64, 0, 16)
	seen := make(map[int64]bool)
	for k := 1; k+1 < len(states); k++ {
		prev, cur, next := states[k-1][cfg.StateIndex], states[k][cfg.StateIndex], states[k+1][cfg.StateIndex]
		if cur <= prev || cur < next {
			continue
		}
		// quantize so the same maximum seen on successive orbits counts once
		key := int64(math.Round(cur * 1000))
		if !seen[key] {
			seen[key] = true
			values = append(values, cur)
		}
	}
	return values, nil
}

// BifurcationToASCII converts bifurcation data to ASCII art
func BifurcationToASCII(data []BifurcationPoint, width, height int) string {
	if len(data) == 0 || width <= 1 || height <= 1 {
		return ""
	}
	points := make([]Point, 0, len(data))
	for _, p := range data {
		for _, v := range p.Values {
			points = append(points, Point{X: p.Param, Y: v})
		}
	}
	if len(points) == 0 {
		return ""
	}
	plot := plotPoints(points, width, height, '·', false)

	var sb strings.Builder
	sb.WriteString(plot)
	sb.WriteString(strings.Repeat("─", width))
	sb.WriteString(fmt.Sprintf("\n%-*.3g%*.3g\n", width/2, data[0].Param, width-width/2, data[len(data)-1].Param))
	return sb.String()
}
