package sensitivity

import (
	"fmt"
	"math"
	"reflect"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/odesim/internal/dynamo"
)

// Jacobians owns the variational equations of one primary system.
type Jacobians struct {
	sys      dynamo.System
	n        int
	stateJac stateJacobianFunc
	hY       []float64
	central  bool

	params        []ParameterConfig
	explicit      []dynamo.ParameterJacobianProvider
	parameterized dynamo.ParameterizedSystem
	providers     []dynamo.ParameterJacobianProvider
	dirty         bool

	initial dynamo.State
	index   int

	dFdY *mat.Dense
	dFdP dynamo.State
}

// New builds Jacobians that compute dF/dY by finite differences with the
// per-component steps hY. When sys is a ParameterizedSystem it is used for
// finite difference parameter derivatives.
func New(sys dynamo.System, hY []float64, params ...string) (*Jacobians, error) {
	if len(hY) != sys.Dimension() {
		return nil, fmt.Errorf("%w: %d finite difference steps for dimension %d", dynamo.ErrDimensionMismatch, len(hY), sys.Dimension())
	}
	j, err := newJacobians(sys, params)
	if err != nil {
		return nil, err
	}
	j.hY = append([]float64(nil), hY...)
	j.stateJac = finiteDifferenceJacobian(sys, j.hY, false)
	if pode, ok := sys.(dynamo.ParameterizedSystem); ok {
		j.parameterized = pode
	}
	return j, nil
}

// NewWithJacobian builds Jacobians around an exact dF/dY. When sys also
// provides exact parameter derivatives they are used first.
func NewWithJacobian(sys dynamo.JacobianSystem, params ...string) (*Jacobians, error) {
	j, err := newJacobians(sys, params)
	if err != nil {
		return nil, err
	}
	j.stateJac = sys.StateJacobian
	if provider, ok := sys.(dynamo.ParameterJacobianProvider); ok {
		j.explicit = append(j.explicit, provider)
	}
	if pode, ok := sys.(dynamo.ParameterizedSystem); ok {
		j.parameterized = pode
	}
	return j, nil
}

func newJacobians(sys dynamo.System, params []string) (*Jacobians, error) {
	declared, hasDeclared := sys.(dynamo.Parameterizable)
	configs := make([]ParameterConfig, 0, len(params))
	for _, name := range params {
		if !hasDeclared || !declared.IsSupported(name) {
			return nil, fmt.Errorf("%w: %s", dynamo.ErrUnknownParameter, name)
		}
		configs = append(configs, ParameterConfig{Name: name, Step: math.NaN()})
	}

	n := sys.Dimension()
	j := &Jacobians{
		sys:    sys,
		n:      n,
		params: configs,
		dirty:  true,
		index:  -1,
		dFdY:   mat.NewDense(n, n, nil),
		dFdP:   make(dynamo.State, n),
	}

	j.initial = make(dynamo.State, j.Dimension())
	for i := 0; i < n; i++ {
		j.initial[i*n+i] = 1
	}
	return j, nil
}

// SetCentralDifferences switches finite difference estimates between
// forward and central differences.
func (j *Jacobians) SetCentralDifferences(central bool) {
	j.central = central
	if j.hY != nil {
		j.stateJac = finiteDifferenceJacobian(j.sys, j.hY, central)
	}
	j.dirty = true
}

// Dimension returns n·(n+p), the size of the secondary state.
func (j *Jacobians) Dimension() int { return j.n * (j.n + len(j.params)) }

func (j *Jacobians) Parameters() []ParameterConfig {
	return append([]ParameterConfig(nil), j.params...)
}

// Index returns the secondary equations index, or -1 before Register.
func (j *Jacobians) Index() int { return j.index }

func (j *Jacobians) paramIndex(name string) (int, error) {
	for i, p := range j.params {
		if p.Name == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s", dynamo.ErrUnknownParameter, name)
}

func (j *Jacobians) AddParameterJacobianProvider(p dynamo.ParameterJacobianProvider) {
	j.explicit = append(j.explicit, p)
	j.dirty = true
}

// SetParameterizedSystem sets the system perturbed for finite difference
// parameter derivatives. Every selected parameter must be supported.
func (j *Jacobians) SetParameterizedSystem(p dynamo.ParameterizedSystem) error {
	for _, cfg := range j.params {
		if !p.IsSupported(cfg.Name) {
			return fmt.Errorf("%w: %s", dynamo.ErrUnknownParameter, cfg.Name)
		}
	}
	j.parameterized = p
	j.dirty = true
	return nil
}

func (j *Jacobians) SetParameterStep(name string, h float64) error {
	i, err := j.paramIndex(name)
	if err != nil {
		return err
	}
	j.params[i].Step = h
	j.dirty = true
	return nil
}

// SetInitialStateJacobian overrides dY/dY0 at the initial time.
func (j *Jacobians) SetInitialStateJacobian(dYdY0 mat.Matrix) error {
	r, c := dYdY0.Dims()
	if r != j.n || c != j.n {
		return fmt.Errorf("%w: initial state Jacobian is %dx%d, want %dx%d", dynamo.ErrDimensionMismatch, r, c, j.n, j.n)
	}
	for row := 0; row < j.n; row++ {
		for col := 0; col < j.n; col++ {
			j.initial[row*j.n+col] = dYdY0.At(row, col)
		}
	}
	return nil
}

// SetInitialParameterJacobian overrides dY/dp of one parameter at the
// initial time.
func (j *Jacobians) SetInitialParameterJacobian(name string, dYdP []float64) error {
	i, err := j.paramIndex(name)
	if err != nil {
		return err
	}
	if len(dYdP) != j.n {
		return fmt.Errorf("%w: initial parameter Jacobian has %d components, want %d", dynamo.ErrDimensionMismatch, len(dYdP), j.n)
	}
	copy(j.initial[j.n*j.n+i*j.n:], dYdP)
	return nil
}

// Register adds the variational equations to c, which must be built around
// the same primary system, and seeds them with the initial Jacobians.
// Systems are matched by identity, so value types that are not comparable
// never match; pass such systems by pointer.
func (j *Jacobians) Register(c *dynamo.Composite) error {
	if !sameSystem(c.Primary(), j.sys) {
		return fmt.Errorf("%w: composite primary is %T, jacobians built for %T", dynamo.ErrMismatchedEquations, c.Primary(), j.sys)
	}
	j.index = c.AddSecondary(&variational{j: j})
	return c.SetSecondaryState(j.index, j.initial)
}

func sameSystem(a, b dynamo.System) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || ta == nil || !ta.Comparable() {
		return false
	}
	return a == b
}

// Reset reseeds the registered secondary state with the initial Jacobians.
func (j *Jacobians) Reset(c *dynamo.Composite) error {
	if j.index < 0 {
		return fmt.Errorf("%w: jacobians not registered", dynamo.ErrUnknownSecondary)
	}
	return c.SetSecondaryState(j.index, j.initial)
}

// finalize rebuilds the provider list: explicit providers first, then the
// finite difference fallback.
func (j *Jacobians) finalize() {
	j.providers = append(j.providers[:0], j.explicit...)
	if j.parameterized != nil && len(j.params) > 0 {
		j.providers = append(j.providers, newFiniteDifferenceProvider(j.sys, j.parameterized, j.params, j.central))
	}
	j.dirty = false
}

func (j *Jacobians) derive(t float64, y, yDot, z dynamo.State) (dynamo.State, error) {
	if j.dirty {
		j.finalize()
	}

	n := j.n
	if err := j.stateJac(t, y, yDot, j.dFdY); err != nil {
		return nil, err
	}

	zDot := make(dynamo.State, j.Dimension())
	zMat := mat.NewDense(n, n, z[:n*n])
	zDotMat := mat.NewDense(n, n, zDot[:n*n])
	zDotMat.Mul(j.dFdY, zMat)

	for k, p := range j.params {
		start := n*n + k*n
		zp := mat.NewVecDense(n, z[start:start+n])
		out := mat.NewVecDense(n, zDot[start:start+n])

		var provider dynamo.ParameterJacobianProvider
		for _, candidate := range j.providers {
			if candidate.IsSupported(p.Name) {
				provider = candidate
				break
			}
		}
		if provider == nil {
			continue
		}

		if err := provider.ParameterJacobian(t, y, yDot, p.Name, j.dFdP); err != nil {
			return nil, err
		}
		out.MulVec(j.dFdY, zp)
		out.AddVec(out, mat.NewVecDense(n, j.dFdP))
	}
	return zDot, nil
}

// StateJacobianOf extracts dY/dY0 from a secondary state.
func (j *Jacobians) StateJacobianOf(z dynamo.State) *mat.Dense {
	data := append([]float64(nil), z[:j.n*j.n]...)
	return mat.NewDense(j.n, j.n, data)
}

// ParameterJacobianOf extracts dY/dp from a secondary state.
func (j *Jacobians) ParameterJacobianOf(z dynamo.State, name string) ([]float64, error) {
	i, err := j.paramIndex(name)
	if err != nil {
		return nil, err
	}
	start := j.n*j.n + i*j.n
	return append([]float64(nil), z[start:start+j.n]...), nil
}

func (j *Jacobians) secondaryState(c *dynamo.Composite) (dynamo.State, error) {
	if j.index < 0 {
		return nil, fmt.Errorf("%w: jacobians not registered", dynamo.ErrUnknownSecondary)
	}
	return c.SecondaryState(j.index)
}

// StateJacobian returns the current dY/dY0 held by c.
func (j *Jacobians) StateJacobian(c *dynamo.Composite) (*mat.Dense, error) {
	z, err := j.secondaryState(c)
	if err != nil {
		return nil, err
	}
	return j.StateJacobianOf(z), nil
}

// ParameterJacobian returns the current dY/dp held by c.
func (j *Jacobians) ParameterJacobian(c *dynamo.Composite, name string) ([]float64, error) {
	z, err := j.secondaryState(c)
	if err != nil {
		return nil, err
	}
	return j.ParameterJacobianOf(z, name)
}

// variational is the secondary equations set registered in the composite.
type variational struct {
	j *Jacobians
}

func (v *variational) Dimension() int { return v.j.Dimension() }

func (v *variational) Derive(t float64, y, yDot, z dynamo.State) (dynamo.State, error) {
	return v.j.derive(t, y, yDot, z)
}
