// Package optim searches system parameter grids for the run that minimizes
// a metric.
package optim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/odesim/internal/config"
	"github.com/san-kum/odesim/internal/experiment"
)

var (
	ErrUnknownMetric = errors.New("optim: unknown metric")
	ErrEmptyGrid     = errors.New("optim: empty grid")
)

// GridSearch evaluates every combination of the listed parameter values.
type GridSearch struct {
	params []string
	values [][]float64
}

func NewGridSearch(params []string, values [][]float64) (*GridSearch, error) {
	if len(params) == 0 || len(params) != len(values) {
		return nil, ErrEmptyGrid
	}
	for i, v := range values {
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: no values for %s", ErrEmptyGrid, params[i])
		}
	}
	return &GridSearch{params: params, values: values}, nil
}

// Size is the number of grid points.
func (g *GridSearch) Size() int {
	n := 1
	for _, v := range g.values {
		n *= len(v)
	}
	return n
}

// point decodes a mixed-radix grid index, last parameter fastest.
func (g *GridSearch) point(idx int) map[string]float64 {
	p := make(map[string]float64, len(g.params))
	for i := len(g.params) - 1; i >= 0; i-- {
		n := len(g.values[i])
		p[g.params[i]] = g.values[i][idx%n]
		idx /= n
	}
	return p
}

type Best struct {
	Params    map[string]float64
	Value     float64
	Evaluated int
}

// metricValue reads a named step-handler metric or one of the run counters
// evaluations, steps and rejected.
func metricValue(res *experiment.Result, name string) (float64, error) {
	switch name {
	case "evaluations":
		return float64(res.Evaluations), nil
	case "steps":
		return float64(res.Steps), nil
	case "rejected":
		return float64(res.Rejected), nil
	}
	v, ok := res.Metrics[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownMetric, name)
	}
	return v, nil
}

// Search runs base once per grid point with the point's parameters applied
// on top of base.Params and returns the point with the smallest metric.
// Ties go to the earliest point in grid order. Any failed run aborts the
// search.
func (g *GridSearch) Search(ctx context.Context, base *config.Config, reg *experiment.Registry, metric string, workers int) (*Best, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	scores := make([]float64, g.Size())

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i := range scores {
		eg.Go(func() error {
			cfg := base.Clone()
			if cfg.Params == nil {
				cfg.Params = make(map[string]float64)
			}
			for k, v := range g.point(i) {
				cfg.Params[k] = v
			}
			exp, err := experiment.New(cfg, reg, nil)
			if err != nil {
				return err
			}
			res, err := exp.Run(ctx)
			if err != nil {
				return fmt.Errorf("grid point %v: %w", g.point(i), err)
			}
			scores[i], err = metricValue(res, metric)
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	best := &Best{Value: math.Inf(1), Evaluated: len(scores)}
	bestIdx := -1
	for i, s := range scores {
		if !math.IsNaN(s) && (bestIdx < 0 || s < best.Value) {
			best.Value, bestIdx = s, i
		}
	}
	if bestIdx >= 0 {
		best.Params = g.point(bestIdx)
	}
	return best, nil
}
