package sensitivity_test

import (
	"context"
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/odesim/internal/dynamo"
	"github.com/san-kum/odesim/internal/integrators"
	"github.com/san-kum/odesim/internal/physics"
	"github.com/san-kum/odesim/internal/sensitivity"
)

// declaredOnly declares a parameter it cannot perturb.
type declaredOnly struct{}

func (d *declaredOnly) Dimension() int { return 1 }
func (d *declaredOnly) Derive(t float64, y dynamo.State) (dynamo.State, error) {
	return dynamo.State{-y[0]}, nil
}
func (d *declaredOnly) Parameters() []string         { return []string{"a"} }
func (d *declaredOnly) IsSupported(name string) bool { return name == "a" }

type spyProvider struct {
	inner *physics.Decay
	calls int
}

func (s *spyProvider) Parameters() []string         { return s.inner.Parameters() }
func (s *spyProvider) IsSupported(name string) bool { return s.inner.IsSupported(name) }
func (s *spyProvider) ParameterJacobian(t float64, y, yDot dynamo.State, name string, dFdP dynamo.State) error {
	s.calls++
	return s.inner.ParameterJacobian(t, y, yDot, name, dFdP)
}

// plain declares no parameters at all.
type plain struct{}

func (p *plain) Dimension() int { return 1 }
func (p *plain) Derive(t float64, y dynamo.State) (dynamo.State, error) {
	return dynamo.State{-y[0]}, nil
}

// sampled is a value type that cannot be compared with ==.
type sampled struct {
	rates []float64
}

func (s sampled) Dimension() int { return 1 }
func (s sampled) Derive(t float64, y dynamo.State) (dynamo.State, error) {
	return dynamo.State{-s.rates[0] * y[0]}, nil
}

// positiveRate decays at rate k and refuses non-positive rates.
type positiveRate struct {
	k float64
}

func (r *positiveRate) Dimension() int { return 1 }
func (r *positiveRate) Derive(t float64, y dynamo.State) (dynamo.State, error) {
	return dynamo.State{-r.k * y[0]}, nil
}
func (r *positiveRate) Parameters() []string         { return []string{"k"} }
func (r *positiveRate) IsSupported(name string) bool { return name == "k" }
func (r *positiveRate) Parameter(name string) (float64, error) {
	if name != "k" {
		return 0, dynamo.ErrUnknownParameter
	}
	return r.k, nil
}
func (r *positiveRate) SetParameter(name string, value float64) error {
	if name != "k" {
		return dynamo.ErrUnknownParameter
	}
	if value <= 0 {
		return errors.New("rate must be positive")
	}
	r.k = value
	return nil
}

func integrateRK4(c *dynamo.Composite, t float64) {
	integ, err := integrators.NewRK4(0.01)
	Expect(err).NotTo(HaveOccurred())
	Expect(integ.Integrate(context.Background(), c, t)).To(Succeed())
}

func integrateAdaptive(c *dynamo.Composite, t float64) {
	integ, err := integrators.NewDormandPrince54(1e-10, 0.1, 1e-11, 1e-11)
	Expect(err).NotTo(HaveOccurred())
	Expect(integ.Integrate(context.Background(), c, t)).To(Succeed())
}

func decayComposite(sys *physics.Decay, y0 float64) *dynamo.Composite {
	c := dynamo.NewComposite(sys)
	Expect(c.SetPrimaryState(dynamo.State{y0})).To(Succeed())
	return c
}

var _ = Describe("Jacobians", func() {
	Describe("construction", func() {
		It("sizes the secondary block as n·(n+p)", func() {
			lorenz := physics.NewLorenz()
			j, err := sensitivity.NewWithJacobian(lorenz, "rho", "beta")
			Expect(err).NotTo(HaveOccurred())
			Expect(j.Dimension()).To(Equal(15))

			c := dynamo.NewComposite(lorenz)
			Expect(j.Register(c)).To(Succeed())
			Expect(c.Dimension()).To(Equal(18))

			m, err := c.SecondaryMapper(j.Index())
			Expect(err).NotTo(HaveOccurred())
			Expect(m.First).To(Equal(3))
		})

		It("seeds identity and zero initial Jacobians", func() {
			lorenz := physics.NewLorenz()
			j, _ := sensitivity.NewWithJacobian(lorenz, "sigma")
			c := dynamo.NewComposite(lorenz)
			Expect(j.Register(c)).To(Succeed())

			dYdY0, err := j.StateJacobian(c)
			Expect(err).NotTo(HaveOccurred())
			Expect(mat.Equal(dYdY0, eye(3))).To(BeTrue())

			dYdP, err := j.ParameterJacobian(c, "sigma")
			Expect(err).NotTo(HaveOccurred())
			Expect(dYdP).To(Equal([]float64{0, 0, 0}))
		})

		It("rejects unknown parameters eagerly", func() {
			lorenz := physics.NewLorenz()
			_, err := sensitivity.New(lorenz, []float64{1e-6, 1e-6, 1e-6}, "gamma")
			Expect(err).To(MatchError(dynamo.ErrUnknownParameter))

			j, err := sensitivity.New(lorenz, []float64{1e-6, 1e-6, 1e-6}, "rho")
			Expect(err).NotTo(HaveOccurred())
			Expect(j.SetParameterStep("gamma", 1e-6)).To(MatchError(dynamo.ErrUnknownParameter))
			Expect(j.SetInitialParameterJacobian("gamma", []float64{0, 0, 0})).To(MatchError(dynamo.ErrUnknownParameter))
			Expect(j.SetParameterizedSystem(physics.NewVanDerPol())).To(MatchError(dynamo.ErrUnknownParameter))

			c := dynamo.NewComposite(lorenz)
			Expect(j.Register(c)).To(Succeed())
			_, err = j.ParameterJacobian(c, "gamma")
			Expect(err).To(MatchError(dynamo.ErrUnknownParameter))
		})

		It("rejects any parameter of a system that declares none", func() {
			_, err := sensitivity.New(&plain{}, []float64{1e-6}, "bogus")
			Expect(err).To(MatchError(dynamo.ErrUnknownParameter))

			j, err := sensitivity.New(&plain{}, []float64{1e-6})
			Expect(err).NotTo(HaveOccurred())
			Expect(j.Dimension()).To(Equal(1))
		})

		It("rejects a copy of a non-comparable system without panicking", func() {
			sys := sampled{rates: []float64{1}}
			j, err := sensitivity.New(sys, []float64{1e-6})
			Expect(err).NotTo(HaveOccurred())

			c := dynamo.NewComposite(sys)
			Expect(func() {
				Expect(j.Register(c)).To(MatchError(dynamo.ErrMismatchedEquations))
			}).NotTo(Panic())
		})

		It("rejects finite difference steps of the wrong length", func() {
			_, err := sensitivity.New(physics.NewLorenz(), []float64{1e-6})
			Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))
		})

		It("rejects a composite around another system", func() {
			j, _ := sensitivity.NewWithJacobian(physics.NewLorenz())
			c := dynamo.NewComposite(physics.NewLorenz())
			Expect(j.Register(c)).To(MatchError(dynamo.ErrMismatchedEquations))
		})

		It("fails readback before registration", func() {
			j, _ := sensitivity.NewWithJacobian(physics.NewLorenz())
			_, err := j.StateJacobian(dynamo.NewComposite(physics.NewLorenz()))
			Expect(err).To(MatchError(dynamo.ErrUnknownSecondary))
		})

		It("checks initial Jacobian shapes", func() {
			j, _ := sensitivity.NewWithJacobian(physics.NewLorenz(), "rho")
			Expect(j.SetInitialStateJacobian(eye(2))).To(MatchError(dynamo.ErrDimensionMismatch))
			Expect(j.SetInitialParameterJacobian("rho", []float64{1})).To(MatchError(dynamo.ErrDimensionMismatch))
		})
	})

	Describe("finite difference parameter derivatives", func() {
		It("restores the parameter when the backward perturbation is refused", func() {
			sys := &positiveRate{k: 0.25}
			j, err := sensitivity.New(sys, []float64{1e-6}, "k")
			Expect(err).NotTo(HaveOccurred())
			j.SetCentralDifferences(true)
			Expect(j.SetParameterStep("k", 0.5)).To(Succeed())

			c := dynamo.NewComposite(sys)
			Expect(c.SetPrimaryState(dynamo.State{1})).To(Succeed())
			Expect(j.Register(c)).To(Succeed())

			integ, err := integrators.NewRK4(0.01)
			Expect(err).NotTo(HaveOccurred())
			Expect(integ.Integrate(context.Background(), c, 0.1)).NotTo(Succeed())
			Expect(sys.k).To(Equal(0.25))
		})
	})

	Describe("exponential decay", func() {
		var sys *physics.Decay

		BeforeEach(func() {
			sys = physics.NewDecay(1)
		})

		expectDecay := func(j *sensitivity.Jacobians, c *dynamo.Composite, tol float64) {
			dYdY0, err := j.StateJacobian(c)
			Expect(err).NotTo(HaveOccurred())
			Expect(dYdY0.At(0, 0)).To(BeNumerically("~", math.Exp(-1), tol))

			dYdK, err := j.ParameterJacobian(c, "k")
			Expect(err).NotTo(HaveOccurred())
			Expect(dYdK[0]).To(BeNumerically("~", -2*math.Exp(-1), tol))
		}

		It("matches the closed form with exact derivatives", func() {
			j, err := sensitivity.NewWithJacobian(sys, "k")
			Expect(err).NotTo(HaveOccurred())
			c := decayComposite(sys, 2)
			Expect(j.Register(c)).To(Succeed())

			integrateRK4(c, 1)
			expectDecay(j, c, 1e-8)
		})

		It("matches the closed form with finite differences", func() {
			j, err := sensitivity.New(sys, []float64{1e-6}, "k")
			Expect(err).NotTo(HaveOccurred())
			Expect(j.SetParameterStep("k", 1e-6)).To(Succeed())
			c := decayComposite(sys, 2)
			Expect(j.Register(c)).To(Succeed())

			integrateRK4(c, 1)
			expectDecay(j, c, 1e-6)
			Expect(sys.Rate).To(Equal(1.0))
		})

		It("works under the Adams-Moulton integrator", func() {
			j, _ := sensitivity.NewWithJacobian(sys, "k")
			c := decayComposite(sys, 2)
			Expect(j.Register(c)).To(Succeed())

			integ, err := integrators.NewAdamsMoulton(4, 1e-10, 0.1, 1e-11, 1e-11)
			Expect(err).NotTo(HaveOccurred())
			Expect(integ.Integrate(context.Background(), c, 1)).To(Succeed())
			expectDecay(j, c, 1e-6)
		})

		It("propagates overridden initial Jacobians", func() {
			j, _ := sensitivity.NewWithJacobian(sys, "k")
			Expect(j.SetInitialStateJacobian(mat.NewDense(1, 1, []float64{2}))).To(Succeed())
			Expect(j.SetInitialParameterJacobian("k", []float64{1})).To(Succeed())
			c := decayComposite(sys, 2)
			Expect(j.Register(c)).To(Succeed())

			integrateRK4(c, 1)
			dYdY0, _ := j.StateJacobian(c)
			Expect(dYdY0.At(0, 0)).To(BeNumerically("~", 2*math.Exp(-1), 1e-8))
			dYdK, _ := j.ParameterJacobian(c, "k")
			// z' = -k z - y with z(0) = 1
			Expect(dYdK[0]).To(BeNumerically("~", math.Exp(-1)-2*math.Exp(-1), 1e-8))
		})

		It("prefers explicitly registered providers", func() {
			spy := &spyProvider{inner: sys}
			j, _ := sensitivity.New(sys, []float64{1e-6}, "k")
			j.AddParameterJacobianProvider(spy)
			c := decayComposite(sys, 2)
			Expect(j.Register(c)).To(Succeed())

			integrateRK4(c, 1)
			Expect(spy.calls).To(BeNumerically(">", 0))
			expectDecay(j, c, 1e-6)
		})

		It("gives a zero derivative to parameters nobody can differentiate", func() {
			d := &declaredOnly{}
			j, err := sensitivity.New(d, []float64{1e-6}, "a")
			Expect(err).NotTo(HaveOccurred())
			c := dynamo.NewComposite(d)
			Expect(c.SetPrimaryState(dynamo.State{1})).To(Succeed())
			Expect(j.Register(c)).To(Succeed())

			integrateRK4(c, 1)
			dYdA, _ := j.ParameterJacobian(c, "a")
			Expect(dYdA).To(Equal([]float64{0}))
		})
	})

	Describe("finite differences against analytic derivatives", func() {
		run := func(central bool) (fd, exact *mat.Dense, fdRho, exactRho []float64) {
			analytic := physics.NewLorenz()
			ja, _ := sensitivity.NewWithJacobian(analytic, "rho")
			ca := dynamo.NewComposite(analytic)
			Expect(ca.SetPrimaryState(analytic.DefaultState())).To(Succeed())
			Expect(ja.Register(ca)).To(Succeed())
			integrateAdaptive(ca, 0.5)

			numeric := physics.NewLorenz()
			jn, _ := sensitivity.New(numeric, []float64{1e-6, 1e-6, 1e-6}, "rho")
			jn.SetCentralDifferences(central)
			Expect(jn.SetParameterStep("rho", 1e-6)).To(Succeed())
			cn := dynamo.NewComposite(numeric)
			Expect(cn.SetPrimaryState(numeric.DefaultState())).To(Succeed())
			Expect(jn.Register(cn)).To(Succeed())
			integrateAdaptive(cn, 0.5)

			exact, _ = ja.StateJacobian(ca)
			fd, _ = jn.StateJacobian(cn)
			exactRho, _ = ja.ParameterJacobian(ca, "rho")
			fdRho, _ = jn.ParameterJacobian(cn, "rho")
			return fd, exact, fdRho, exactRho
		}

		It("agrees to first order in the step with forward differences", func() {
			fd, exact, fdRho, exactRho := run(false)
			Expect(mat.EqualApprox(fd, exact, 1e-3)).To(BeTrue())
			for i := range exactRho {
				Expect(fdRho[i]).To(BeNumerically("~", exactRho[i], 1e-3*math.Max(1, math.Abs(exactRho[i]))))
			}
		})

		It("agrees more closely with central differences", func() {
			fd, exact, _, _ := run(true)
			Expect(mat.EqualApprox(fd, exact, 1e-6)).To(BeTrue())
		})
	})
})

func eye(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}
