package trajectory_test

import (
	"context"
	"math"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/odesim/internal/dynamo"
	"github.com/san-kum/odesim/internal/integrators"
	"github.com/san-kum/odesim/internal/trajectory"
)

type oscillator struct{}

func (o *oscillator) Dimension() int { return 2 }
func (o *oscillator) Derive(t float64, y dynamo.State) (dynamo.State, error) {
	return dynamo.State{y[1], -y[0]}, nil
}

type line struct{}

func (l *line) Dimension() int { return 1 }
func (l *line) Derive(t float64, y dynamo.State) (dynamo.State, error) {
	return dynamo.State{1}, nil
}

type clock struct{}

func (c *clock) Dimension() int { return 1 }
func (c *clock) Derive(t float64, y, yDot, z dynamo.State) (dynamo.State, error) {
	return dynamo.State{1}, nil
}

type boundary struct {
	t float64
	y dynamo.State
}

type recorder struct {
	points []boundary
}

func (r *recorder) Init(t0 float64, y0 dynamo.State, t float64) {
	r.points = []boundary{{t0, y0.Clone()}}
}

func (r *recorder) HandleStep(interp dynamo.StepInterpolator, isLast bool) error {
	y, _ := interp.StateAt(interp.CurrentTime())
	r.points = append(r.points, boundary{interp.CurrentTime(), y})
	return nil
}

func integrate(sys dynamo.System, y0 dynamo.State, t0, t1, h float64, handlers ...dynamo.StepHandler) *trajectory.Model {
	c := dynamo.NewComposite(sys)
	Expect(c.SetPrimaryState(y0)).To(Succeed())
	c.SetTime(t0)

	model := trajectory.NewFor(c)
	integ, err := integrators.NewRK4(h)
	Expect(err).NotTo(HaveOccurred())
	integ.AddStepHandler(model)
	for _, hd := range handlers {
		integ.AddStepHandler(hd)
	}
	Expect(integ.Integrate(context.Background(), c, t1)).To(Succeed())
	return model
}

var _ = Describe("Model", func() {
	It("fails queries when empty", func() {
		Expect(trajectory.New().SetInterpolatedTime(0)).To(MatchError(dynamo.ErrEmptyTrajectory))
	})

	Context("after a forward integration", func() {
		var (
			model *trajectory.Model
			rec   *recorder
		)

		BeforeEach(func() {
			rec = &recorder{}
			model = integrate(&oscillator{}, dynamo.State{1, 0}, 0, 10, 0.1, rec)
		})

		It("covers the integrated range", func() {
			Expect(model.Len()).To(Equal(100))
			Expect(model.InitialTime()).To(Equal(0.0))
			Expect(model.FinalTime()).To(Equal(10.0))
			Expect(model.IsForward()).To(BeTrue())
			Expect(model.Dimension()).To(Equal(2))
		})

		It("reproduces step boundary states exactly", func() {
			for _, p := range rec.points {
				Expect(model.SetInterpolatedTime(p.t)).To(Succeed())
				Expect(model.InterpolatedState()).To(Equal(p.y))
			}
		})

		It("matches the exact solution between boundaries", func() {
			rng := rand.New(rand.NewSource(7))
			for i := 0; i < 200; i++ {
				t := 10 * rng.Float64()
				Expect(model.SetInterpolatedTime(t)).To(Succeed())
				y := model.InterpolatedState()
				Expect(y[0]).To(BeNumerically("~", math.Cos(t), 5e-5))
				Expect(y[1]).To(BeNumerically("~", -math.Sin(t), 5e-5))
				yDot := model.InterpolatedDerivatives()
				Expect(yDot[0]).To(BeNumerically("~", -math.Sin(t), 1e-3))
			}
		})

		It("answers identically whatever the query order", func() {
			times := []float64{9.95, 0.05, 5.55, 5.45, 2.22, 7.77, 0.33, 9.01}
			first := make([]dynamo.State, len(times))
			for i, t := range times {
				Expect(model.SetInterpolatedTime(t)).To(Succeed())
				first[i] = model.InterpolatedState()
			}
			for i := len(times) - 1; i >= 0; i-- {
				Expect(model.SetInterpolatedTime(times[i])).To(Succeed())
				Expect(model.InterpolatedState()).To(Equal(first[i]))
			}
		})

		It("extrapolates outside the range from the end steps", func() {
			Expect(model.SetInterpolatedTime(-0.01)).To(Succeed())
			Expect(model.InterpolatedState()[0]).To(BeNumerically("~", math.Cos(-0.01), 1e-6))
			Expect(model.SetInterpolatedTime(10.01)).To(Succeed())
			Expect(model.InterpolatedState()[0]).To(BeNumerically("~", math.Cos(10.01), 5e-5))
		})

		It("is cleared by a new integration", func() {
			c := dynamo.NewComposite(&oscillator{})
			Expect(c.SetPrimaryState(dynamo.State{1, 0})).To(Succeed())
			integ, _ := integrators.NewRK4(0.5)
			integ.AddStepHandler(model)
			Expect(integ.Integrate(context.Background(), c, 1)).To(Succeed())
			Expect(model.Len()).To(Equal(2))
			Expect(model.FinalTime()).To(Equal(1.0))
		})
	})

	Context("after a backward integration", func() {
		It("locates steps in reverse time", func() {
			model := integrate(&oscillator{}, dynamo.State{1, 0}, 0, -5, 0.05)
			Expect(model.IsForward()).To(BeFalse())
			for _, t := range []float64{-0.01, -2.5, -4.99, -1.234} {
				Expect(model.SetInterpolatedTime(t)).To(Succeed())
				Expect(model.InterpolatedState()[0]).To(BeNumerically("~", math.Cos(t), 1e-6))
			}
		})
	})

	Context("with secondary equations", func() {
		It("splits the complete state", func() {
			c := dynamo.NewComposite(&oscillator{})
			Expect(c.SetPrimaryState(dynamo.State{1, 0})).To(Succeed())
			idx := c.AddSecondary(&clock{})
			model := trajectory.NewFor(c)

			integ, _ := integrators.NewRK4(0.1)
			integ.AddStepHandler(model)
			Expect(integ.Integrate(context.Background(), c, 2)).To(Succeed())

			Expect(model.SetInterpolatedTime(1.23)).To(Succeed())
			Expect(model.InterpolatedState()).To(HaveLen(2))
			Expect(model.InterpolatedCompleteState()).To(HaveLen(3))
			z, err := model.InterpolatedSecondaryState(idx)
			Expect(err).NotTo(HaveOccurred())
			Expect(z[0]).To(BeNumerically("~", 1.23, 1e-12))

			_, err = model.InterpolatedSecondaryState(4)
			Expect(err).To(MatchError(dynamo.ErrUnknownSecondary))
		})
	})

	Describe("Append", func() {
		var first *trajectory.Model

		BeforeEach(func() {
			first = integrate(&line{}, dynamo.State{0}, 0, 1, 0.1)
		})

		It("joins contiguous trajectories", func() {
			second := integrate(&line{}, dynamo.State{1}, 1, 2, 0.1)
			Expect(first.Append(second)).To(Succeed())
			Expect(first.Len()).To(Equal(20))
			Expect(first.FinalTime()).To(Equal(2.0))

			Expect(first.SetInterpolatedTime(1.55)).To(Succeed())
			Expect(first.InterpolatedState()[0]).To(BeNumerically("~", 1.55, 1e-12))

			for _, t := range []float64{1 - 1e-9, 1, 1 + 1e-9} {
				Expect(first.SetInterpolatedTime(t)).To(Succeed())
				Expect(first.InterpolatedState()[0]).To(BeNumerically("~", t, 1e-9))
			}
		})

		It("tolerates a gap below a thousandth of the last step", func() {
			second := integrate(&line{}, dynamo.State{1}, 1+5e-5, 2, 0.1)
			Expect(first.Append(second)).To(Succeed())
			Expect(first.Len()).To(Equal(20))
			Expect(first.FinalTime()).To(Equal(2.0))

			Expect(first.SetInterpolatedTime(1 - 1e-3)).To(Succeed())
			Expect(first.InterpolatedState()[0]).To(BeNumerically("~", 1-1e-3, 1e-9))

			Expect(first.SetInterpolatedTime(1)).To(Succeed())
			Expect(first.InterpolatedState()[0]).To(BeNumerically("~", 1, 1e-9))

			// past the splice the second trajectory lags by the gap
			Expect(first.SetInterpolatedTime(1 + 1e-3)).To(Succeed())
			Expect(first.InterpolatedState()[0]).To(BeNumerically("~", 1+1e-3-5e-5, 1e-9))
			Expect(first.InterpolatedState()[0]).To(BeNumerically("~", 1+1e-3, 1e-4))
		})

		It("rejects a larger gap", func() {
			second := integrate(&line{}, dynamo.State{1.5}, 1.5, 2, 0.1)
			Expect(first.Append(second)).To(MatchError(dynamo.ErrTimeGap))
			Expect(first.Len()).To(Equal(10))
		})

		It("rejects opposite directions", func() {
			second := integrate(&line{}, dynamo.State{1}, 1, 0, 0.1)
			Expect(first.Append(second)).To(MatchError(dynamo.ErrDirectionMismatch))
		})

		It("rejects different dimensions", func() {
			second := integrate(&oscillator{}, dynamo.State{1, 0}, 1, 2, 0.1)
			Expect(first.Append(second)).To(MatchError(dynamo.ErrDimensionMismatch))
		})

		It("adopts the other model when empty", func() {
			empty := trajectory.New()
			Expect(empty.Append(first)).To(Succeed())
			Expect(empty.InitialTime()).To(Equal(0.0))
			Expect(empty.FinalTime()).To(Equal(1.0))
		})
	})
})
