package toy

import (
	"sync"

	"github.com/nerrad567/feedback-core/internal/output/layer"
	"github.com/nerrad567/feedback-core/internal/output/value"
)

// AnalogToy drives a single output channel (lamp, solenoid, motor, single LED).
type AnalogToy struct {
	name   string
	output Output
	lut    lut

	mu     sync.Mutex
	layers *layer.Store[value.Analog]
}

// NewAnalogToy creates a single-channel toy bound to out.
func NewAnalogToy(name string, out Output, tr Transform) *AnalogToy {
	return &AnalogToy{
		name:   name,
		output: out,
		lut:    tr.compile(),
		layers: layer.New[value.Analog](1),
	}
}

// Name returns the toy name.
func (t *AnalogToy) Name() string { return t.name }

// Info returns a status snapshot.
func (t *AnalogToy) Info() Info {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Info{Name: t.name, Kind: KindAnalog, Width: 1, Height: 1, Layers: t.layers.Numbers()}
}

// SetAnalog writes v into layer nr.
func (t *AnalogToy) SetAnalog(nr int, v value.Analog) {
	t.mu.Lock()
	t.layers.Set(nr, 0, v)
	t.mu.Unlock()
}

// RemoveLayer drops layer nr.
func (t *AnalogToy) RemoveLayer(nr int) {
	t.mu.Lock()
	t.layers.Remove(nr)
	t.mu.Unlock()
}

// Value returns the composited value without pushing it.
func (t *AnalogToy) Value() value.Analog {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.resolve()
}

func (t *AnalogToy) resolve() value.Analog {
	out := value.Opaque(0)
	t.layers.Each(func(_ int, buf []value.Analog) {
		out = t.lut.analog(buf[0]).Over(out)
	})
	return out
}

// UpdateOutputs pushes the composited value to the output.
func (t *AnalogToy) UpdateOutputs() {
	t.mu.Lock()
	v := t.resolve()
	t.mu.Unlock()
	t.output.Set(v.Value)
}

// Reset drops every layer.
func (t *AnalogToy) Reset() {
	t.mu.Lock()
	t.layers.Clear()
	t.mu.Unlock()
}

// Finish drops every layer and switches the output off.
func (t *AnalogToy) Finish() {
	t.Reset()
	t.UpdateOutputs()
}
