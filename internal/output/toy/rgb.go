package toy

import (
	"sync"

	"github.com/nerrad567/feedback-core/internal/output/curve"
	"github.com/nerrad567/feedback-core/internal/output/layer"
	"github.com/nerrad567/feedback-core/internal/output/value"
)

// RGBToy drives an RGB fixture wired to three output channels.
//
// Outputs are given in wire order; the configured color order decides which
// color channel lands on which output.
type RGBToy struct {
	name    string
	outputs [3]Output
	order   curve.ColorOrder
	lut     lut

	mu     sync.Mutex
	layers *layer.Store[value.RGBA]
}

// NewRGBToy creates an RGB toy bound to three outputs.
func NewRGBToy(name string, outputs [3]Output, tr Transform) *RGBToy {
	return &RGBToy{
		name:    name,
		outputs: outputs,
		order:   tr.Order,
		lut:     tr.compile(),
		layers:  layer.New[value.RGBA](1),
	}
}

// Name returns the toy name.
func (t *RGBToy) Name() string { return t.name }

// Info returns a status snapshot.
func (t *RGBToy) Info() Info {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Info{Name: t.name, Kind: KindRGB, Width: 1, Height: 1, Layers: t.layers.Numbers()}
}

// SetRGBA writes c into layer nr.
func (t *RGBToy) SetRGBA(nr int, c value.RGBA) {
	t.mu.Lock()
	t.layers.Set(nr, 0, c)
	t.mu.Unlock()
}

// SetAnalog writes a white intensity into layer nr.
func (t *RGBToy) SetAnalog(nr int, v value.Analog) {
	t.SetRGBA(nr, value.RGBA{R: v.Value, G: v.Value, B: v.Value, A: v.Alpha})
}

// RemoveLayer drops layer nr.
func (t *RGBToy) RemoveLayer(nr int) {
	t.mu.Lock()
	t.layers.Remove(nr)
	t.mu.Unlock()
}

// Value returns the composited color without pushing it.
func (t *RGBToy) Value() value.RGBA {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.resolve()
}

func (t *RGBToy) resolve() value.RGBA {
	out := value.Black
	t.layers.Each(func(_ int, buf []value.RGBA) {
		out = t.lut.rgba(buf[0]).Over(out)
	})
	return out
}

// UpdateOutputs pushes the composited color to the outputs.
func (t *RGBToy) UpdateOutputs() {
	t.mu.Lock()
	c := t.resolve()
	t.mu.Unlock()

	wire := t.order.Apply(c.R, c.G, c.B)
	for i, o := range t.outputs {
		o.Set(wire[i])
	}
}

// Reset drops every layer.
func (t *RGBToy) Reset() {
	t.mu.Lock()
	t.layers.Clear()
	t.mu.Unlock()
}

// Finish drops every layer and switches the fixture off.
func (t *RGBToy) Finish() {
	t.Reset()
	t.UpdateOutputs()
}
