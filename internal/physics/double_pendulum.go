package physics

import (
	"math"

	"github.com/san-kum/odesim/internal/dynamo"
)

// DoublePendulum is two point masses on rigid massless rods.
// State: [theta1, theta2, omega1, omega2], angles from the downward vertical.
// It has no analytic Jacobian; sensitivities use finite differences.
type DoublePendulum struct {
	params
	M1, M2  float64
	L1, L2  float64
	Gravity float64
}

func NewDoublePendulum() *DoublePendulum {
	d := &DoublePendulum{M1: 1, M2: 1, L1: 1, L2: 1, Gravity: 9.81}
	d.bind("m1", &d.M1)
	d.bind("m2", &d.M2)
	d.bind("l1", &d.L1)
	d.bind("l2", &d.L2)
	d.bind("gravity", &d.Gravity)
	return d
}

func (d *DoublePendulum) Dimension() int { return 4 }

func (d *DoublePendulum) Derive(t float64, x dynamo.State) (dynamo.State, error) {
	th1, th2, w1, w2 := x[0], x[1], x[2], x[3]
	m1, m2, l1, l2, g := d.M1, d.M2, d.L1, d.L2, d.Gravity

	delta := th2 - th1
	sinD, cosD := math.Sincos(delta)
	den1 := (m1+m2)*l1 - m2*l1*cosD*cosD
	den2 := l2 / l1 * den1

	a1 := (m2*l1*w1*w1*sinD*cosD +
		m2*g*math.Sin(th2)*cosD +
		m2*l2*w2*w2*sinD -
		(m1+m2)*g*math.Sin(th1)) / den1
	a2 := (-m2*l2*w2*w2*sinD*cosD +
		(m1+m2)*g*math.Sin(th1)*cosD -
		(m1+m2)*l1*w1*w1*sinD -
		(m1+m2)*g*math.Sin(th2)) / den2

	return dynamo.State{w1, w2, a1, a2}, nil
}

func (d *DoublePendulum) DefaultState() dynamo.State {
	return dynamo.State{2 * math.Pi / 3, math.Pi / 2, 0, 0}
}

// Energy is the total mechanical energy with the pivot at zero height.
func (d *DoublePendulum) Energy(x dynamo.State) float64 {
	th1, th2, w1, w2 := x[0], x[1], x[2], x[3]
	m1, m2, l1, l2, g := d.M1, d.M2, d.L1, d.L2, d.Gravity

	v1sq := l1 * l1 * w1 * w1
	v2sq := v1sq + l2*l2*w2*w2 + 2*l1*l2*w1*w2*math.Cos(th1-th2)
	y1 := -l1 * math.Cos(th1)
	y2 := y1 - l2*math.Cos(th2)
	return 0.5*m1*v1sq + 0.5*m2*v2sq + m1*g*y1 + m2*g*y2
}
