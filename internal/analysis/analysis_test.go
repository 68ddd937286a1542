package analysis

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/san-kum/odesim/internal/dynamo"
	"github.com/san-kum/odesim/internal/integrators"
	"github.com/san-kum/odesim/internal/physics"
	"github.com/san-kum/odesim/internal/trajectory"
)

func dopri(tol float64) IntegratorFactory {
	return func() (dynamo.Integrator, error) {
		return integrators.NewDormandPrince54(1e-10, 1.0, tol, tol)
	}
}

func integrate(t *testing.T, sys dynamo.System, integ dynamo.Integrator, y0 dynamo.State, end float64) *trajectory.Model {
	t.Helper()
	c := dynamo.NewComposite(sys)
	if err := c.SetPrimaryState(y0); err != nil {
		t.Fatal(err)
	}
	model := trajectory.NewFor(c)
	integ.AddStepHandler(model)
	if err := integ.Integrate(context.Background(), c, end); err != nil {
		t.Fatal(err)
	}
	return model
}

func harmonic() *physics.Duffing {
	d := physics.NewDuffing()
	d.Alpha, d.Beta, d.Delta, d.Gamma = 1, 0, 0, 0
	return d
}

func TestLyapunovDecay(t *testing.T) {
	sys := physics.NewDecay(2)
	sys.Rate = 0.5
	ctx := context.Background()

	lambda, err := LyapunovExponent(ctx, sys, dopri(1e-10), dynamo.State{1, 2}, 1.0, 5)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(lambda+0.5) > 1e-6 {
		t.Errorf("largest exponent = %v, want -0.5", lambda)
	}

	spectrum, err := LyapunovSpectrum(ctx, sys, dopri(1e-10), dynamo.State{1, 2}, 1.0, 5)
	if err != nil {
		t.Fatal(err)
	}
	for i, l := range spectrum {
		if math.Abs(l+0.5) > 1e-6 {
			t.Errorf("exponent %d = %v, want -0.5", i, l)
		}
	}
}

func TestLyapunovSpectrumLorenz(t *testing.T) {
	if testing.Short() {
		t.Skip("long integration")
	}
	sys := physics.NewLorenz()
	spectrum, err := LyapunovSpectrum(context.Background(), sys, dopri(1e-9), dynamo.State{1, 1, 20}, 0.5, 40)
	if err != nil {
		t.Fatal(err)
	}
	if len(spectrum) != 3 {
		t.Fatalf("got %d exponents", len(spectrum))
	}
	// the exponents sum to the constant divergence of the flow
	sum := spectrum[0] + spectrum[1] + spectrum[2]
	want := -(sys.Sigma + 1 + sys.Beta)
	if math.Abs(sum-want) > 1e-3 {
		t.Errorf("sum = %v, want %v", sum, want)
	}
	if spectrum[0] <= 0 {
		t.Errorf("largest exponent = %v, want positive", spectrum[0])
	}
	if spectrum[0] < spectrum[1] || spectrum[1] < spectrum[2] {
		t.Errorf("spectrum not sorted: %v", spectrum)
	}
}

func TestLyapunovInvalidWindows(t *testing.T) {
	sys := physics.NewDecay(1)
	tests := []struct {
		name    string
		window  float64
		windows int
	}{
		{"zero window", 0, 10},
		{"negative window", -1, 10},
		{"no windows", 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LyapunovExponent(context.Background(), sys, dopri(1e-8), dynamo.State{1}, tt.window, tt.windows)
			if !errors.Is(err, dynamo.ErrInvalidStep) {
				t.Errorf("expected ErrInvalidStep, got %v", err)
			}
		})
	}
}

func TestPhasePortrait(t *testing.T) {
	integ, err := integrators.NewRK4(0.01)
	if err != nil {
		t.Fatal(err)
	}
	model := integrate(t, harmonic(), integ, dynamo.State{1, 0, 0}, 2*math.Pi)

	portrait, err := GeneratePhasePortrait(model, 0, 1, 64)
	if err != nil {
		t.Fatal(err)
	}
	if len(portrait.Points) != 65 {
		t.Fatalf("got %d points, want 65", len(portrait.Points))
	}
	for i, p := range portrait.Points {
		if r := math.Hypot(p.X, p.Y); math.Abs(r-1) > 1e-6 {
			t.Errorf("point %d radius = %v, want 1", i, r)
		}
	}

	art := PhasePortraitToASCII(portrait, 40, 20)
	if got := strings.Count(art, "\n"); got != 20 {
		t.Errorf("ascii has %d rows, want 20", got)
	}
	if !strings.ContainsRune(art, '•') {
		t.Error("ascii has no points")
	}

	if _, err := GeneratePhasePortrait(model, 0, 5, 10); !errors.Is(err, dynamo.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
	if _, err := GeneratePhasePortrait(trajectory.New(), 0, 1, 10); !errors.Is(err, dynamo.ErrEmptyTrajectory) {
		t.Errorf("expected ErrEmptyTrajectory, got %v", err)
	}
	if PhasePortraitToASCII(nil, 10, 10) != "" {
		t.Error("nil portrait should render empty")
	}
}

func TestPoincareSection(t *testing.T) {
	integ, err := integrators.NewDormandPrince54(1e-10, 0.5, 1e-10, 1e-10)
	if err != nil {
		t.Fatal(err)
	}
	model := integrate(t, harmonic(), integ, dynamo.State{1, 0, 0}, 6*math.Pi)

	// x = cos t rises through zero at t = 3π/2 + 2kπ
	section, err := GeneratePoincareSection(model, 0, 0, 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(section.Times) != 3 {
		t.Fatalf("got %d crossings, want 3", len(section.Times))
	}
	for k, tc := range section.Times {
		want := 1.5*math.Pi + 2*math.Pi*float64(k)
		if math.Abs(tc-want) > 1e-6 {
			t.Errorf("crossing %d at %v, want %v", k, tc, want)
		}
		if p := section.Points[k]; math.Abs(p.X) > 1e-6 || math.Abs(p.Y-1) > 1e-6 {
			t.Errorf("crossing %d at %+v, want (0, 1)", k, p)
		}
	}

	if PoincareSectionToASCII(&PoincareSection{}, 10, 5) != "No crossings detected" {
		t.Error("empty section should report no crossings")
	}
	if _, err := GeneratePoincareSection(trajectory.New(), 0, 0, 0, 1); !errors.Is(err, dynamo.ErrEmptyTrajectory) {
		t.Errorf("expected ErrEmptyTrajectory, got %v", err)
	}
}

func TestBifurcationVanDerPol(t *testing.T) {
	sys := physics.NewVanDerPol()
	original := sys.Mu
	cfg := BifurcationConfig{
		Param:      "mu",
		Min:        0.5,
		Max:        1.5,
		Steps:      3,
		StateIndex: 0,
		Transient:  30,
		Record:     20,
	}
	data, err := BifurcationDiagram(context.Background(), sys, dopri(1e-8), dynamo.State{0.5, 0}, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 3 {
		t.Fatalf("got %d points, want 3", len(data))
	}
	for _, p := range data {
		if len(p.Values) == 0 {
			t.Errorf("mu=%v: no maxima recorded", p.Param)
		}
		// the limit cycle amplitude stays close to 2
		for _, v := range p.Values {
			if math.Abs(v-2) > 0.1 {
				t.Errorf("mu=%v: maximum %v far from limit cycle", p.Param, v)
			}
		}
	}
	if sys.Mu != original {
		t.Errorf("mu = %v after sweep, want %v", sys.Mu, original)
	}
	if BifurcationToASCII(data, 30, 10) == "" {
		t.Error("empty bifurcation plot")
	}

	cfg.Param = "nope"
	if _, err := BifurcationDiagram(context.Background(), sys, dopri(1e-8), dynamo.State{0.5, 0}, cfg); !errors.Is(err, dynamo.ErrUnknownParameter) {
		t.Errorf("expected ErrUnknownParameter, got %v", err)
	}
}

func TestPowerSpectrum(t *testing.T) {
	const n = 128
	dt := 1.0 / n
	sine := make([]float64, n)
	mixed := make([]float64, n)
	for i := range sine {
		x := float64(i) * dt
		sine[i] = 3 + math.Sin(2*math.Pi*5*x)
		for f := 1; f < 40; f += 3 {
			mixed[i] += math.Sin(2*math.Pi*float64(f)*x + float64(f))
		}
	}

	power := PowerSpectrum(sine)
	if len(power) != n/2+1 {
		t.Fatalf("got %d bins, want %d", len(power), n/2+1)
	}
	if power[0] > 1e-12 {
		t.Errorf("mean not removed: bin 0 = %v", power[0])
	}
	if f := DominantFrequency(sine, dt); f != 5 {
		t.Errorf("dominant frequency = %v, want 5", f)
	}
	if freqs := SpectrumFrequencies(n, dt); freqs[5] != 5 || len(freqs) != len(power) {
		t.Errorf("unexpected frequencies %v", freqs[:6])
	}
	if SpectralEntropy(sine) >= SpectralEntropy(mixed) {
		t.Error("pure tone should have lower spectral entropy than a broadband signal")
	}
	if PowerSpectrum(nil) != nil {
		t.Error("empty input should give nil spectrum")
	}
}

func TestOneStepErrors(t *testing.T) {
	decay := physics.NewDecay(1)
	states := []dynamo.State{{1}, {-2}, {0.5}, {3}}
	ctx := context.Background()

	errs, err := OneStepErrors(ctx, integrators.Euler(), decay, 0, states, 0.1)
	if err != nil {
		t.Fatal(err)
	}
	for i, y := range states {
		want := math.Abs(y[0] * (math.Exp(-0.1) - 0.9))
		if math.Abs(errs[i]-want) > 1e-12 {
			t.Errorf("state %d: local error %v, want %v", i, errs[i], want)
		}
	}

	tests := []struct {
		name  string
		tab   integrators.Tableau
		h     float64
		order float64
	}{
		{"euler", integrators.Euler(), 0.1, 1},
		{"midpoint", integrators.Midpoint(), 0.1, 2},
		{"rk4", integrators.ClassicalRK4(), 0.2, 4},
	}
	for _, tt := range tests {
		p, err := EmpiricalOrder(ctx, tt.tab, decay, 0, states, tt.h)
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(p-tt.order) > 0.2 {
			t.Errorf("%s: empirical order %v, want %v", tt.name, p, tt.order)
		}
	}

	if _, err := OneStepErrors(ctx, integrators.Euler(), decay, 0, states, 0); !errors.Is(err, dynamo.ErrInvalidStep) {
		t.Errorf("expected ErrInvalidStep, got %v", err)
	}
}
