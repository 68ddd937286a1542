package physics

import (
	"fmt"

	"github.com/san-kum/odesim/internal/dynamo"
)

// params binds parameter names to model fields.
type params struct {
	names  []string
	fields map[string]*float64
}

func (p *params) bind(name string, field *float64) {
	if p.fields == nil {
		p.fields = make(map[string]*float64)
	}
	p.names = append(p.names, name)
	p.fields[name] = field
}

func (p *params) Parameters() []string {
	return append([]string(nil), p.names...)
}

func (p *params) IsSupported(name string) bool {
	_, ok := p.fields[name]
	return ok
}

func (p *params) Parameter(name string) (float64, error) {
	f, ok := p.fields[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", dynamo.ErrUnknownParameter, name)
	}
	return *f, nil
}

func (p *params) SetParameter(name string, value float64) error {
	f, ok := p.fields[name]
	if !ok {
		return fmt.Errorf("%w: %s", dynamo.ErrUnknownParameter, name)
	}
	*f = value
	return nil
}

// Values returns a snapshot of every parameter.
func (p *params) Values() map[string]float64 {
	out := make(map[string]float64, len(p.names))
	for _, n := range p.names {
		out[n] = *p.fields[n]
	}
	return out
}

func unknown(name string) error {
	return fmt.Errorf("%w: %s", dynamo.ErrUnknownParameter, name)
}

func zero(v dynamo.State) {
	for i := range v {
		v[i] = 0
	}
}
