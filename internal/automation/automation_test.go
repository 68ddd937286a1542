package automation

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/san-kum/odesim/internal/config"
	"github.com/san-kum/odesim/internal/experiment"
	"github.com/san-kum/odesim/internal/storage"
)

const decayScenario = `
name: decay-batch
description: two decay runs
steps:
  - name: unit
    system: decay
    preset: unit
  - system: decay
    integrator: euler
    step: 0.001
    t1: 2
    initial_state: [3]
    params:
      k: 0.5
    variational: true
    samples: 4
`

func TestResolve(t *testing.T) {
	sc, err := ParseScenario([]byte(decayScenario))
	if err != nil {
		t.Fatal(err)
	}
	if sc.Name != "decay-batch" || len(sc.Steps) != 2 {
		t.Fatalf("unexpected scenario %+v", sc)
	}

	steps, err := sc.Resolve()
	if err != nil {
		t.Fatal(err)
	}
	if steps[0].Name != "unit" || steps[0].Config.Integrator != "rk4" || steps[0].Config.T1 != 1 {
		t.Errorf("preset step not applied: %+v", steps[0].Config)
	}
	second := steps[1]
	if second.Name != "decay-2" || !second.Sensitivity {
		t.Errorf("unexpected header %+v", second)
	}
	cfg := second.Config
	if cfg.Integrator != "euler" || cfg.Step != 0.001 || cfg.T1 != 2 || cfg.Params["k"] != 0.5 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.AbsTol != config.DefaultTol || cfg.Samples != 4 {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"preset without system", "steps:\n  - preset: unit\n"},
		{"unknown preset", "steps:\n  - system: decay\n    preset: nope\n"},
		{"invalid config", "steps:\n  - system: decay\n    t1: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc, err := ParseScenario([]byte(tt.yaml))
			if err != nil {
				t.Fatal(err)
			}
			if _, err := sc.Resolve(); err == nil {
				t.Fatal("expected error")
			}
		})
	}

	if _, err := ParseScenario([]byte("name: empty\n")); !errors.Is(err, ErrEmptyScenario) {
		t.Errorf("expected ErrEmptyScenario, got %v", err)
	}
}

func TestRunScenario(t *testing.T) {
	sc, err := ParseScenario([]byte(decayScenario))
	if err != nil {
		t.Fatal(err)
	}
	st := storage.New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatal(err)
	}

	out, err := RunScenario(context.Background(), sc, experiment.NewRegistry(), st, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(out))
	}

	unit := out[0].Result
	if y := unit.States[len(unit.States)-1][0]; math.Abs(y-math.Exp(-1)) > 1e-8 {
		t.Errorf("unit decay ended at %v", y)
	}
	if unit.StateJacobian != nil {
		t.Error("sensitivity not requested for first step")
	}

	second := out[1].Result
	if second.Steps != 2000 {
		t.Errorf("expected 2000 euler steps, got %d", second.Steps)
	}
	if y := second.States[len(second.States)-1][0]; math.Abs(y-3*math.Exp(-1)) > 1e-3 {
		t.Errorf("second decay ended at %v", y)
	}
	if second.StateJacobian == nil {
		t.Fatal("expected state Jacobian")
	}
	if d := second.StateJacobian.At(0, 0); math.Abs(d-math.Exp(-1)) > 1e-3 {
		t.Errorf("dy/dy0 = %v", d)
	}

	runs, err := st.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 stored runs, got %d", len(runs))
	}
	for _, o := range out {
		if o.RunID == "" {
			t.Errorf("step %s not stored", o.Step.Name)
		}
	}
}

func TestRunScenarioStopsOnFailure(t *testing.T) {
	sc, err := ParseScenario([]byte("steps:\n  - system: decay\n    preset: unit\n  - system: nosuch\n"))
	if err != nil {
		t.Fatal(err)
	}
	out, err := RunScenario(context.Background(), sc, experiment.NewRegistry(), nil, nil)
	if err == nil {
		t.Fatal("expected error for unknown system")
	}
	if len(out) != 1 || out[0].RunID != "" {
		t.Errorf("expected one unsaved outcome, got %+v", out)
	}
}

func TestRunMonteCarlo(t *testing.T) {
	mc := MonteCarloConfig{
		Base:         config.GetPreset("decay", "unit"),
		Perturbation: 0.1,
		Trials:       16,
		Seed:         7,
		Workers:      4,
	}
	reg := experiment.NewRegistry()

	trials, err := RunMonteCarlo(context.Background(), mc, reg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(trials) != 16 {
		t.Fatalf("expected 16 trials, got %d", len(trials))
	}
	for _, tr := range trials {
		y0 := tr.Initial[0]
		if y0 < 0.9 || y0 > 1.1 {
			t.Errorf("trial %d: initial %v outside perturbation", tr.ID, y0)
		}
		if math.Abs(tr.Final[0]-y0*math.Exp(-1)) > 1e-8 {
			t.Errorf("trial %d: final %v, want %v", tr.ID, tr.Final[0], y0*math.Exp(-1))
		}
	}
	if stable, unstable := MonteCarloStats(trials); stable != 16 || unstable != 0 {
		t.Errorf("stable %d unstable %d", stable, unstable)
	}

	again, err := RunMonteCarlo(context.Background(), mc, reg, nil)
	if err != nil {
		t.Fatal(err)
	}
	for i := range trials {
		if again[i].Initial[0] != trials[i].Initial[0] {
			t.Fatalf("seeded ensembles differ at trial %d", i)
		}
	}
}

func TestRunMonteCarloUnstable(t *testing.T) {
	base := config.GetPreset("decay", "unit")
	base.Params["k"] = -20

	trials, err := RunMonteCarlo(context.Background(), MonteCarloConfig{
		Base: base, Trials: 3, Seed: 1, Bound: 1e3,
	}, experiment.NewRegistry(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if stable, unstable := MonteCarloStats(trials); stable != 0 || unstable != 3 {
		t.Errorf("stable %d unstable %d", stable, unstable)
	}
}

func TestRunMonteCarloInvalid(t *testing.T) {
	_, err := RunMonteCarlo(context.Background(), MonteCarloConfig{Trials: 1}, experiment.NewRegistry(), nil)
	if !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}
