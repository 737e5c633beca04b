package toy

import (
	"fmt"
	"sync"

	"github.com/nerrad567/feedback-core/internal/output/value"
)

// Registry holds every toy of a cabinet and resolves them by name and
// capability.
//
// All public methods are thread-safe.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Toy
	order  []Toy
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Toy)}
}

// Register adds t. Names must be unique.
func (r *Registry) Register(t Toy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[t.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateName, t.Name())
	}
	r.byName[t.Name()] = t
	r.order = append(r.order, t)
	return nil
}

// Get returns the toy called name.
func (r *Registry) Get(name string) (Toy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToyNotFound, name)
	}
	return t, nil
}

// Analog resolves name to a toy accepting analog layers.
func (r *Registry) Analog(name string) (AnalogLayers, error) {
	return resolve[AnalogLayers](r, name, "analog layers")
}

// RGBA resolves name to a toy accepting color layers.
func (r *Registry) RGBA(name string) (RGBALayers, error) {
	return resolve[RGBALayers](r, name, "rgba layers")
}

// RGBAMatrix resolves name to a color matrix.
func (r *Registry) RGBAMatrix(name string) (Matrix[value.RGBA], error) {
	return resolve[Matrix[value.RGBA]](r, name, "rgba matrix")
}

// AnalogMatrix resolves name to an analog matrix.
func (r *Registry) AnalogMatrix(name string) (Matrix[value.Analog], error) {
	return resolve[Matrix[value.Analog]](r, name, "analog matrix")
}

func resolve[C any](r *Registry, name, capability string) (C, error) {
	var zero C
	t, err := r.Get(name)
	if err != nil {
		return zero, err
	}
	c, ok := t.(C)
	if !ok {
		return zero, fmt.Errorf("%w: %s does not provide %s", ErrCapability, name, capability)
	}
	return c, nil
}

// All returns every toy in registration order.
func (r *Registry) All() []Toy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Toy(nil), r.order...)
}

// Len returns the number of registered toys.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// UpdateAll updates every toy. Groups are updated first, in reverse
// registration order, so an outer group feeds an inner group before the inner
// group feeds its own children.
func (r *Registry) UpdateAll() {
	toys := r.All()
	for i := len(toys) - 1; i >= 0; i-- {
		if _, ok := toys[i].(group); ok {
			toys[i].UpdateOutputs()
		}
	}
	for _, t := range toys {
		if _, ok := t.(group); !ok {
			t.UpdateOutputs()
		}
	}
}

// ResetAll drops the layers of every toy.
func (r *Registry) ResetAll() {
	for _, t := range r.All() {
		t.Reset()
	}
}

// FinishAll finishes groups first, then every plain toy, leaving all outputs
// at their inactive baseline.
func (r *Registry) FinishAll() {
	toys := r.All()
	for i := len(toys) - 1; i >= 0; i-- {
		if _, ok := toys[i].(group); ok {
			toys[i].Finish()
		}
	}
	for _, t := range toys {
		if _, ok := t.(group); !ok {
			t.Finish()
		}
	}
}
