package toy

import (
	"fmt"
	"sync"

	"github.com/nerrad567/feedback-core/internal/output/curve"
	"github.com/nerrad567/feedback-core/internal/output/layer"
	"github.com/nerrad567/feedback-core/internal/output/value"
)

// channelsPerLed is the number of controller channels one RGB LED occupies.
const channelsPerLed = 3

// LedStrip is an addressable RGB LED matrix wired as one chain on consecutive
// controller channels, three per LED.
type LedStrip struct {
	name         string
	sink         Sink
	firstChannel int
	layout       Layout
	order        curve.ColorOrder
	lut          lut

	mu        sync.Mutex
	width     int
	height    int
	positions []int
	layers    *layer.Store[value.RGBA]
	frame     []value.RGBA
}

// LedStripConfig describes a LED strip toy.
type LedStripConfig struct {
	Name         string
	Width        int
	Height       int
	Sink         Sink
	FirstChannel int
	Layout       Layout
	Transform    Transform
}

// NewLedStrip creates a LED strip toy.
func NewLedStrip(cfg LedStripConfig) (*LedStrip, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: %s is %dx%d", ErrInvalidGeometry, cfg.Name, cfg.Width, cfg.Height)
	}
	s := &LedStrip{
		name:         cfg.Name,
		sink:         cfg.Sink,
		firstChannel: cfg.FirstChannel,
		layout:       cfg.Layout,
		order:        cfg.Transform.Order,
		lut:          cfg.Transform.compile(),
		layers:       layer.New[value.RGBA](0),
	}
	s.setGeometry(cfg.Width, cfg.Height)
	return s, nil
}

func (s *LedStrip) setGeometry(width, height int) {
	s.width = width
	s.height = height
	s.positions = s.layout.table(width, height)
	s.layers.Resize(width * height)
	s.frame = make([]value.RGBA, width*height)
}

// Name returns the toy name.
func (s *LedStrip) Name() string { return s.name }

// Width returns the matrix width.
func (s *LedStrip) Width() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width
}

// Height returns the matrix height.
func (s *LedStrip) Height() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.height
}

// Channels returns the number of controller channels the strip occupies.
func (s *LedStrip) Channels() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width * s.height * channelsPerLed
}

// Info returns a status snapshot.
func (s *LedStrip) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{Name: s.name, Kind: KindLedStrip, Width: s.width, Height: s.height, Layers: s.layers.Numbers()}
}

// Resize changes the matrix geometry. Every layer is dropped.
func (s *LedStrip) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %s is %dx%d", ErrInvalidGeometry, s.name, width, height)
	}
	s.mu.Lock()
	s.setGeometry(width, height)
	s.mu.Unlock()
	return nil
}

// SetElement writes c at (x, y) of layer nr.
func (s *LedStrip) SetElement(nr, x, y int, c value.RGBA) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if x < 0 || x >= s.width || y < 0 || y >= s.height {
		return false
	}
	return s.layers.Set(nr, y*s.width+x, c)
}

// FillLayer writes c into every element of layer nr.
func (s *LedStrip) FillLayer(nr int, c value.RGBA) {
	s.mu.Lock()
	s.layers.Fill(nr, c)
	s.mu.Unlock()
}

// SetRGBA fills layer nr with c.
func (s *LedStrip) SetRGBA(nr int, c value.RGBA) {
	s.FillLayer(nr, c)
}

// Layer returns a copy of layer nr in row-major order.
func (s *LedStrip) Layer(nr int) ([]value.RGBA, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf, ok := s.layers.Get(nr)
	if !ok {
		return nil, false
	}
	return append([]value.RGBA(nil), buf...), true
}

// RemoveLayer drops layer nr.
func (s *LedStrip) RemoveLayer(nr int) {
	s.mu.Lock()
	s.layers.Remove(nr)
	s.mu.Unlock()
}

// Frame returns the composited matrix in row-major order.
func (s *LedStrip) Frame() []value.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolve()
	return append([]value.RGBA(nil), s.frame...)
}

func (s *LedStrip) resolve() {
	for i := range s.frame {
		s.frame[i] = value.Black
	}
	s.layers.Each(func(_ int, buf []value.RGBA) {
		for i, c := range buf {
			if c.A == 0 {
				continue
			}
			s.frame[i] = s.lut.rgba(c).Over(s.frame[i])
		}
	})
}

// UpdateOutputs composites the layers and writes every LED to the sink.
func (s *LedStrip) UpdateOutputs() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sink == nil {
		return
	}
	s.resolve()
	for i, c := range s.frame {
		ch := s.firstChannel + s.positions[i]*channelsPerLed
		wire := s.order.Apply(c.R, c.G, c.B)
		s.sink.SetValue(ch, wire[0])
		s.sink.SetValue(ch+1, wire[1])
		s.sink.SetValue(ch+2, wire[2])
	}
}

// Reset drops every layer.
func (s *LedStrip) Reset() {
	s.mu.Lock()
	s.layers.Clear()
	s.mu.Unlock()
}

// Finish drops every layer and switches every LED off.
func (s *LedStrip) Finish() {
	s.Reset()
	s.UpdateOutputs()
}
