package metrics

import (
	"math"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/san-kum/odesim/internal/dynamo"
)

// Prometheus exports integration progress as prometheus collectors. It is a
// step handler; register it on any integrator.
type Prometheus struct {
	integrator  string
	steps       *prometheus.CounterVec
	stepSize    *prometheus.HistogramVec
	time        *prometheus.GaugeVec
	evaluations *prometheus.GaugeVec
}

// NewPrometheus creates the collectors and registers them on reg.
func NewPrometheus(reg prometheus.Registerer, integrator string) (*Prometheus, error) {
	p := &Prometheus{
		integrator: integrator,
		steps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "odesim_steps_total",
				Help: "Total number of accepted integration steps",
			},
			[]string{"integrator"},
		),
		stepSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "odesim_step_size",
				Help:    "Magnitude of accepted steps",
				Buckets: prometheus.ExponentialBuckets(1e-6, 10, 8),
			},
			[]string{"integrator"},
		),
		time: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "odesim_integration_time",
				Help: "Independent variable at the end of the last accepted step",
			},
			[]string{"integrator"},
		),
		evaluations: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "odesim_evaluations",
				Help: "Derivative evaluations of the last run",
			},
			[]string{"integrator"},
		),
	}
	for _, c := range []prometheus.Collector{p.steps, p.stepSize, p.time, p.evaluations} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Prometheus) Init(t0 float64, y0 dynamo.State, t float64) {
	p.time.WithLabelValues(p.integrator).Set(t0)
}

func (p *Prometheus) HandleStep(interp dynamo.StepInterpolator, isLast bool) error {
	p.steps.WithLabelValues(p.integrator).Inc()
	p.stepSize.WithLabelValues(p.integrator).Observe(math.Abs(interp.CurrentTime() - interp.PreviousTime()))
	p.time.WithLabelValues(p.integrator).Set(interp.CurrentTime())
	return nil
}

// ObserveEvaluations records the evaluation count of a finished run.
func (p *Prometheus) ObserveEvaluations(n int) {
	p.evaluations.WithLabelValues(p.integrator).Set(float64(n))
}
