package toy

import (
	"fmt"
	"sync"

	"github.com/nerrad567/feedback-core/internal/output/layer"
	"github.com/nerrad567/feedback-core/internal/output/value"
)

// layerSink is the child-side contract of a group.
type layerSink[T any] interface {
	Toy
	RemoveLayer(nr int)
}

// fanOut is the shared implementation of AnalogGroup and RGBGroup.
type fanOut[T any] struct {
	name     string
	kind     Kind
	width    int
	height   int
	children []layerSink[T]
	write    func(child layerSink[T], nr int, v T)

	mu        sync.Mutex
	layers    *layer.Store[T]
	published map[int]struct{}
}

func newFanOut[T any](name string, kind Kind, width, height int, children []layerSink[T],
	write func(layerSink[T], int, T)) (*fanOut[T], error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %s is %dx%d", ErrInvalidGeometry, name, width, height)
	}
	if len(children) != width*height {
		return nil, fmt.Errorf("%w: %s has %d children for %dx%d", ErrInvalidGeometry, name, len(children), width, height)
	}
	return &fanOut[T]{
		name:      name,
		kind:      kind,
		width:     width,
		height:    height,
		children:  children,
		write:     write,
		layers:    layer.New[T](width * height),
		published: make(map[int]struct{}),
	}, nil
}

func (g *fanOut[T]) Name() string { return g.name }
func (g *fanOut[T]) Width() int   { return g.width }
func (g *fanOut[T]) Height() int  { return g.height }

func (g *fanOut[T]) Info() Info {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Info{Name: g.name, Kind: g.kind, Width: g.width, Height: g.height, Layers: g.layers.Numbers()}
}

// Children returns the non-empty child toys.
func (g *fanOut[T]) Children() []Toy {
	out := make([]Toy, 0, len(g.children))
	for _, c := range g.children {
		if c != nil {
			out = append(out, c)
		}
	}
	return out
}

func (g *fanOut[T]) SetElement(nr, x, y int, v T) bool {
	if x < 0 || x >= g.width || y < 0 || y >= g.height {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.layers.Set(nr, y*g.width+x, v)
}

func (g *fanOut[T]) FillLayer(nr int, v T) {
	g.mu.Lock()
	g.layers.Fill(nr, v)
	g.mu.Unlock()
}

func (g *fanOut[T]) Layer(nr int) ([]T, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	buf, ok := g.layers.Get(nr)
	if !ok {
		return nil, false
	}
	return append([]T(nil), buf...), true
}

func (g *fanOut[T]) RemoveLayer(nr int) {
	g.mu.Lock()
	g.layers.Remove(nr)
	g.mu.Unlock()
}

func (g *fanOut[T]) Reset() {
	g.mu.Lock()
	g.layers.Clear()
	g.mu.Unlock()
}

// UpdateOutputs copies every group layer into the same layer number of each
// child and removes child layers the group no longer has.
func (g *fanOut[T]) UpdateOutputs() {
	g.mu.Lock()
	defer g.mu.Unlock()

	current := make(map[int]struct{}, g.layers.Len())
	g.layers.Each(func(nr int, buf []T) {
		current[nr] = struct{}{}
		for i, child := range g.children {
			if child != nil {
				g.write(child, nr, buf[i])
			}
		}
	})

	for nr := range g.published {
		if _, ok := current[nr]; ok {
			continue
		}
		for _, child := range g.children {
			if child != nil {
				child.RemoveLayer(nr)
			}
		}
	}
	g.published = current
}

func (g *fanOut[T]) Finish() {
	g.Reset()
	g.UpdateOutputs()
}

// AnalogGroup is a virtual matrix of analog toys.
type AnalogGroup struct {
	*fanOut[value.Analog]
}

var _ Matrix[value.Analog] = (*AnalogGroup)(nil)

// NewAnalogGroup creates a group over children given in row-major order.
// Nil children leave holes in the matrix.
func NewAnalogGroup(name string, width, height int, children []AnalogLayers) (*AnalogGroup, error) {
	sinks := make([]layerSink[value.Analog], len(children))
	for i, c := range children {
		if c != nil {
			sinks[i] = c
		}
	}
	f, err := newFanOut(name, KindAnalogGroup, width, height, sinks,
		func(child layerSink[value.Analog], nr int, v value.Analog) {
			child.(AnalogLayers).SetAnalog(nr, v) //nolint:forcetypeassert // constructed from AnalogLayers
		})
	if err != nil {
		return nil, err
	}
	return &AnalogGroup{f}, nil
}

// SetAnalog fills layer nr with v.
func (g *AnalogGroup) SetAnalog(nr int, v value.Analog) {
	g.FillLayer(nr, v)
}

// RGBGroup is a virtual matrix of RGB toys.
type RGBGroup struct {
	*fanOut[value.RGBA]
}

var _ Matrix[value.RGBA] = (*RGBGroup)(nil)

// NewRGBGroup creates a group over children given in row-major order.
// Nil children leave holes in the matrix.
func NewRGBGroup(name string, width, height int, children []RGBALayers) (*RGBGroup, error) {
	sinks := make([]layerSink[value.RGBA], len(children))
	for i, c := range children {
		if c != nil {
			sinks[i] = c
		}
	}
	f, err := newFanOut(name, KindRGBGroup, width, height, sinks,
		func(child layerSink[value.RGBA], nr int, v value.RGBA) {
			child.(RGBALayers).SetRGBA(nr, v) //nolint:forcetypeassert // constructed from RGBALayers
		})
	if err != nil {
		return nil, err
	}
	return &RGBGroup{f}, nil
}

// SetRGBA fills layer nr with c.
func (g *RGBGroup) SetRGBA(nr int, c value.RGBA) {
	g.FillLayer(nr, c)
}
