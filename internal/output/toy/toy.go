package toy

import (
	"github.com/nerrad567/feedback-core/internal/output/curve"
	"github.com/nerrad567/feedback-core/internal/output/value"
)

// Kind identifies the concrete toy type in status listings.
type Kind string

// Toy kinds.
const (
	KindAnalog      Kind = "analog"
	KindRGB         Kind = "rgb"
	KindLedStrip    Kind = "ledstrip"
	KindAnalogGroup Kind = "analog_group"
	KindRGBGroup    Kind = "rgb_group"
)

// Toy is implemented by every toy.
type Toy interface {
	// Name returns the unique toy name.
	Name() string

	// Info returns a status snapshot.
	Info() Info

	// Reset drops every layer. The next UpdateOutputs sends the inactive baseline.
	Reset()

	// UpdateOutputs composites the layers and pushes the result to the outputs.
	UpdateOutputs()

	// Finish drops every layer and pushes the inactive baseline.
	Finish()
}

// AnalogLayers is implemented by toys that accept single-intensity layers.
type AnalogLayers interface {
	Toy
	SetAnalog(nr int, v value.Analog)
	RemoveLayer(nr int)
}

// RGBALayers is implemented by toys that accept color layers.
type RGBALayers interface {
	Toy
	SetRGBA(nr int, v value.RGBA)
	RemoveLayer(nr int)
}

// Matrix is implemented by toys that expose a grid of elements.
type Matrix[T any] interface {
	Toy
	Width() int
	Height() int

	// SetElement writes v at (x, y) of layer nr. Out-of-range cells are ignored
	// and reported as false.
	SetElement(nr, x, y int, v T) bool

	// FillLayer writes v into every element of layer nr.
	FillLayer(nr int, v T)

	// Layer returns a copy of layer nr in row-major order.
	Layer(nr int) ([]T, bool)

	RemoveLayer(nr int)
}

// Resizable is implemented by matrices whose geometry can change at runtime.
// Resizing drops every layer.
type Resizable interface {
	Resize(width, height int) error
}

// group is implemented by toys that feed other toys and therefore must be
// updated before them.
type group interface {
	Children() []Toy
}

// Info is a status snapshot of a toy.
type Info struct {
	Name   string `json:"name"`
	Kind   Kind   `json:"kind"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Layers []int  `json:"layers"`
}

// Sink receives final channel values. Controllers implement it.
type Sink interface {
	SetValue(channel int, v byte)
}

// Output binds a toy output to one channel of a sink.
type Output struct {
	Sink    Sink
	Channel int
}

// Set forwards v to the bound sink. An unbound output drops the value.
func (o Output) Set(v byte) {
	if o.Sink == nil {
		return
	}
	o.Sink.SetValue(o.Channel, v)
}

// Transform holds the per-toy value transforms.
type Transform struct {
	// Curve is the fading curve. Nil means linear.
	Curve *curve.Curve

	// Brightness scales output, 0..1. Zero is treated as 1.
	Brightness float64

	// Gamma is applied together with Brightness. Zero is treated as 1.
	Gamma float64

	// Order is the channel order of RGB outputs.
	Order curve.ColorOrder
}

// lut is the compiled form of a Transform's intensity mapping.
type lut curve.Table

func (t Transform) compile() lut {
	b := t.Brightness
	if b == 0 {
		b = 1
	}
	g := t.Gamma
	if g == 0 {
		g = 1
	}
	return lut(curve.Compose(t.Curve.Table(), curve.Brightness(b, g)))
}

func (l *lut) analog(v value.Analog) value.Analog {
	v.Value = l[v.Value]
	return v
}

func (l *lut) rgba(c value.RGBA) value.RGBA {
	c.R = l[c.R]
	c.G = l[c.G]
	c.B = l[c.B]
	return c
}
