package integrators

import (
	"math"

	"github.com/go-kit/log"
)

type settings struct {
	logger         log.Logger
	maxEvaluations int

	initialStep  float64
	safety       float64
	minReduction float64
	maxGrowth    float64

	vecAbsTol []float64
	vecRelTol []float64
}

// Option configures an integrator at construction.
type Option func(*settings)

func defaultSettings() settings {
	return settings{
		logger:       log.NewNopLogger(),
		safety:       math.NaN(),
		minReduction: math.NaN(),
		maxGrowth:    math.NaN(),
	}
}

func WithLogger(logger log.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMaxEvaluations bounds the number of derivative evaluations per
// Integrate call. Zero or negative means unbounded.
func WithMaxEvaluations(n int) Option {
	return func(s *settings) { s.maxEvaluations = n }
}

// WithInitialStep overrides the automatic initial step estimate of adaptive
// integrators.
func WithInitialStep(h float64) Option {
	return func(s *settings) { s.initialStep = h }
}

// WithTolerances sets per-component absolute and relative tolerances over
// the primary state, replacing the scalar ones.
func WithTolerances(abs, rel []float64) Option {
	return func(s *settings) {
		s.vecAbsTol = append([]float64(nil), abs...)
		s.vecRelTol = append([]float64(nil), rel...)
	}
}

func WithSafety(safety float64) Option {
	return func(s *settings) { s.safety = safety }
}

func WithMinReduction(r float64) Option {
	return func(s *settings) { s.minReduction = r }
}

func WithMaxGrowth(g float64) Option {
	return func(s *settings) { s.maxGrowth = g }
}

func applyOptions(opts []Option) settings {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	return s
}
