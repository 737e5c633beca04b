package cabinet

import (
	"encoding/json"
	"fmt"

	"github.com/nerrad567/feedback-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/feedback-core/internal/output/value"
)

// LayerWrite is the payload of a layer write. Absent fields are nil.
//
// Examples:
//
//	{"value":255}                     analog layer, opaque
//	{"value":128,"alpha":64}          analog layer, translucent
//	{"r":255,"g":0,"b":40}            color layer
//	{"x":3,"y":0,"r":255}             one element of a matrix layer
//	{"remove":true}                   drop the layer
type LayerWrite struct {
	Value  *int `json:"value,omitempty"`
	Alpha  *int `json:"alpha,omitempty"`
	R      *int `json:"r,omitempty"`
	G      *int `json:"g,omitempty"`
	B      *int `json:"b,omitempty"`
	A      *int `json:"a,omitempty"`
	X      *int `json:"x,omitempty"`
	Y      *int `json:"y,omitempty"`
	Remove bool `json:"remove,omitempty"`
}

func (w LayerWrite) isColor() bool {
	return w.R != nil || w.G != nil || w.B != nil
}

func (w LayerWrite) analog() value.Analog {
	return value.NewAnalog(deref(w.Value, 0), deref(w.Alpha, value.Max))
}

func (w LayerWrite) rgba() value.RGBA {
	return value.NewRGBA(deref(w.R, 0), deref(w.G, 0), deref(w.B, 0), deref(w.A, value.Max))
}

func deref(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

// ApplyLayer decodes payload as a LayerWrite and applies it to layer nr of
// the named toy.
func (c *Cabinet) ApplyLayer(toyName string, nr int, payload []byte) error {
	var w LayerWrite
	if err := json.Unmarshal(payload, &w); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidLayerWrite, err)
	}
	return c.WriteLayer(toyName, nr, w)
}

// WriteLayer applies w to layer nr of the named toy.
func (c *Cabinet) WriteLayer(toyName string, nr int, w LayerWrite) error {
	if nr < 0 {
		return fmt.Errorf("%w: negative layer %d", ErrInvalidLayerWrite, nr)
	}

	if w.Remove {
		t, err := c.toys.Get(toyName)
		if err != nil {
			return err
		}
		r, ok := t.(interface{ RemoveLayer(int) })
		if !ok {
			return fmt.Errorf("%w: %s has no layers", ErrInvalidLayerWrite, toyName)
		}
		r.RemoveLayer(nr)
		return nil
	}

	if (w.X == nil) != (w.Y == nil) {
		return fmt.Errorf("%w: x and y must be given together", ErrInvalidLayerWrite)
	}
	if w.X != nil {
		return c.writeElement(toyName, nr, *w.X, *w.Y, w)
	}

	switch {
	case w.isColor():
		t, err := c.toys.RGBA(toyName)
		if err != nil {
			return err
		}
		t.SetRGBA(nr, w.rgba())
	case w.Value != nil:
		t, err := c.toys.Analog(toyName)
		if err != nil {
			return err
		}
		t.SetAnalog(nr, w.analog())
	default:
		return fmt.Errorf("%w: nothing to set", ErrInvalidLayerWrite)
	}
	return nil
}

func (c *Cabinet) writeElement(toyName string, nr, x, y int, w LayerWrite) error {
	var ok bool
	switch {
	case w.isColor():
		m, err := c.toys.RGBAMatrix(toyName)
		if err != nil {
			return err
		}
		ok = m.SetElement(nr, x, y, w.rgba())
	case w.Value != nil:
		m, err := c.toys.AnalogMatrix(toyName)
		if err != nil {
			return err
		}
		ok = m.SetElement(nr, x, y, w.analog())
	default:
		return fmt.Errorf("%w: nothing to set", ErrInvalidLayerWrite)
	}
	if !ok {
		return fmt.Errorf("%w: (%d,%d) outside %s", ErrInvalidLayerWrite, x, y, toyName)
	}
	return nil
}

// HandleLayerMessage is an mqtt.MessageHandler for feedback/toy/+/layer/+.
func (c *Cabinet) HandleLayerMessage(topic string, payload []byte) error {
	toyName, nr, ok := mqtt.ParseToyLayer(topic)
	if !ok {
		return fmt.Errorf("%w: unexpected topic %q", ErrInvalidLayerWrite, topic)
	}
	return c.ApplyLayer(toyName, nr, payload)
}
