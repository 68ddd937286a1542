package metrics

import (
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/san-kum/odesim/internal/dynamo"
	"github.com/san-kum/odesim/internal/physics"
)

func TestPrometheus(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := NewPrometheus(reg, "rk4")
	if err != nil {
		t.Fatal(err)
	}

	integ := run(t, physics.NewDecay(1), dynamo.State{1}, 1, p)
	p.ObserveEvaluations(integ.Evaluations())

	if got := testutil.ToFloat64(p.steps.WithLabelValues("rk4")); got != 100 {
		t.Errorf("steps = %v, want 100", got)
	}
	if got := testutil.ToFloat64(p.time.WithLabelValues("rk4")); math.Abs(got-1) > 1e-12 {
		t.Errorf("time = %v, want 1", got)
	}
	if got := testutil.ToFloat64(p.evaluations.WithLabelValues("rk4")); got != 401 {
		t.Errorf("evaluations = %v, want 401", got)
	}
	if n := testutil.CollectAndCount(p.stepSize); n != 1 {
		t.Errorf("expected one step size series, got %d", n)
	}

	if _, err := NewPrometheus(reg, "rk4"); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}
