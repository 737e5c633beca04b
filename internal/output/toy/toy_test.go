package toy

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/feedback-core/internal/output/curve"
	"github.com/nerrad567/feedback-core/internal/output/value"
)

// recordingSink captures the last value written per channel.
type recordingSink struct {
	mu     sync.Mutex
	values map[int]byte
	writes int
}

func newRecordingSink() *recordingSink {
	return &recordingSink{values: make(map[int]byte)}
}

func (s *recordingSink) SetValue(channel int, v byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[channel] = v
	s.writes++
}

func (s *recordingSink) get(channel int) byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[channel]
}

func TestAnalogToy_HigherLayerWins(t *testing.T) {
	sink := newRecordingSink()
	a := NewAnalogToy("lamp", Output{Sink: sink, Channel: 4}, Transform{})

	a.SetAnalog(5, value.Opaque(200))
	a.SetAnalog(2, value.Opaque(50))
	a.UpdateOutputs()

	assert.Equal(t, byte(200), sink.get(4))
	assert.Equal(t, []int{2, 5}, a.Info().Layers)
}

func TestAnalogToy_TransparentLayerKeepsLower(t *testing.T) {
	sink := newRecordingSink()
	a := NewAnalogToy("lamp", Output{Sink: sink}, Transform{})

	a.SetAnalog(1, value.Opaque(80))
	a.SetAnalog(3, value.NewAnalog(255, 0))
	a.UpdateOutputs()
	assert.Equal(t, byte(80), sink.get(0))

	a.RemoveLayer(1)
	a.UpdateOutputs()
	assert.Equal(t, byte(0), sink.get(0))
}

func TestAnalogToy_CurveAppliedPerLayer(t *testing.T) {
	sink := newRecordingSink()
	a := NewAnalogToy("lamp", Output{Sink: sink}, Transform{Curve: curve.InvertedLinear})

	a.SetAnalog(1, value.Opaque(0))
	a.UpdateOutputs()
	assert.Equal(t, byte(255), sink.get(0))

	a.Finish()
	assert.Equal(t, byte(0), sink.get(0), "finish sends the baseline, not a transformed baseline")
}

func TestAnalogToy_NoSinkDrops(t *testing.T) {
	a := NewAnalogToy("lamp", Output{}, Transform{})
	a.SetAnalog(1, value.Opaque(10))
	assert.NotPanics(t, a.UpdateOutputs)
	assert.Equal(t, value.Opaque(10), a.Value())
}

func TestRGBToy_ColorOrder(t *testing.T) {
	sink := newRecordingSink()
	outs := [3]Output{{sink, 0}, {sink, 1}, {sink, 2}}
	rgb := NewRGBToy("fixture", outs, Transform{Order: curve.GRB})

	rgb.SetRGBA(1, value.RGB(10, 20, 30))
	rgb.UpdateOutputs()

	assert.Equal(t, byte(20), sink.get(0))
	assert.Equal(t, byte(10), sink.get(1))
	assert.Equal(t, byte(30), sink.get(2))
}

func TestRGBToy_Brightness(t *testing.T) {
	sink := newRecordingSink()
	outs := [3]Output{{sink, 0}, {sink, 1}, {sink, 2}}
	rgb := NewRGBToy("fixture", outs, Transform{Brightness: 0.5})

	rgb.SetRGBA(1, value.RGB(255, 0, 255))
	rgb.UpdateOutputs()
	assert.Equal(t, byte(128), sink.get(0))
	assert.Equal(t, byte(0), sink.get(1))
	assert.Equal(t, byte(128), sink.get(2))
}

func TestLayout_Positions(t *testing.T) {
	tests := []struct {
		name   string
		layout Layout
		want   []int // row-major for a 3x2 matrix
	}{
		{"lr-td", Layout{LeftRightTopDown, false}, []int{0, 1, 2, 3, 4, 5}},
		{"lr-td serp", Layout{LeftRightTopDown, true}, []int{0, 1, 2, 5, 4, 3}},
		{"rl-td", Layout{RightLeftTopDown, false}, []int{2, 1, 0, 5, 4, 3}},
		{"td-lr", Layout{TopDownLeftRight, false}, []int{0, 2, 4, 1, 3, 5}},
		{"td-lr serp", Layout{TopDownLeftRight, true}, []int{0, 3, 4, 1, 2, 5}},
		{"bu-lr", Layout{BottomUpLeftRight, false}, []int{1, 3, 5, 0, 2, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.layout.table(3, 2))
		})
	}
}

func TestParseArrangement(t *testing.T) {
	a, err := ParseArrangement("topdownleftright")
	require.NoError(t, err)
	assert.Equal(t, TopDownLeftRight, a)

	_, err = ParseArrangement("diagonal")
	assert.Error(t, err)
}

func TestLedStrip_UpdateOutputs(t *testing.T) {
	sink := newRecordingSink()
	strip, err := NewLedStrip(LedStripConfig{
		Name: "matrix", Width: 2, Height: 2, Sink: sink, FirstChannel: 30,
		Layout: Layout{Arrangement: LeftRightTopDown, Serpentine: true},
	})
	require.NoError(t, err)

	assert.True(t, strip.SetElement(1, 0, 1, value.RGB(1, 2, 3)))
	assert.False(t, strip.SetElement(1, 2, 0, value.RGB(9, 9, 9)))
	strip.UpdateOutputs()

	// (0,1) is the last LED of the serpentine chain: position 3.
	assert.Equal(t, byte(1), sink.get(30+9))
	assert.Equal(t, byte(2), sink.get(30+10))
	assert.Equal(t, byte(3), sink.get(30+11))
	assert.Equal(t, 12, strip.Channels())
}

func TestLedStrip_ResizeDropsLayers(t *testing.T) {
	strip, err := NewLedStrip(LedStripConfig{Name: "m", Width: 2, Height: 1})
	require.NoError(t, err)

	strip.FillLayer(1, value.RGB(5, 5, 5))
	require.NoError(t, strip.Resize(4, 2))

	_, ok := strip.Layer(1)
	assert.False(t, ok)
	strip.FillLayer(1, value.RGB(5, 5, 5))
	buf, ok := strip.Layer(1)
	require.True(t, ok)
	assert.Len(t, buf, 8)

	assert.ErrorIs(t, strip.Resize(0, 1), ErrInvalidGeometry)
}

func TestLedStrip_LayerCompositing(t *testing.T) {
	strip, err := NewLedStrip(LedStripConfig{Name: "m", Width: 1, Height: 1})
	require.NoError(t, err)

	strip.SetElement(2, 0, 0, value.RGB(10, 0, 0))
	strip.SetElement(5, 0, 0, value.RGB(0, 20, 0))
	assert.Equal(t, []value.RGBA{value.RGB(0, 20, 0)}, strip.Frame())
}

func TestAnalogGroup_FanOut(t *testing.T) {
	sink := newRecordingSink()
	a := NewAnalogToy("a", Output{Sink: sink, Channel: 0}, Transform{})
	b := NewAnalogToy("b", Output{Sink: sink, Channel: 1}, Transform{})

	reg := NewRegistry()
	require.NoError(t, reg.Register(a))
	require.NoError(t, reg.Register(b))
	g, err := NewAnalogGroup("row", 3, 1, []AnalogLayers{a, nil, b})
	require.NoError(t, err)
	require.NoError(t, reg.Register(g))

	g.SetElement(7, 0, 0, value.Opaque(100))
	g.SetElement(7, 2, 0, value.Opaque(50))
	reg.UpdateAll()

	assert.Equal(t, byte(100), sink.get(0))
	assert.Equal(t, byte(50), sink.get(1))
	assert.Equal(t, []int{7}, a.Info().Layers)

	g.RemoveLayer(7)
	reg.UpdateAll()
	assert.Empty(t, a.Info().Layers, "removed group layers are removed from children")
	assert.Equal(t, byte(0), sink.get(0))
}

func TestRGBGroup_Geometry(t *testing.T) {
	_, err := NewRGBGroup("g", 2, 2, []RGBALayers{nil})
	assert.ErrorIs(t, err, ErrInvalidGeometry)
}

func TestRegistry_Capabilities(t *testing.T) {
	reg := NewRegistry()
	lamp := NewAnalogToy("lamp", Output{}, Transform{})
	strip, err := NewLedStrip(LedStripConfig{Name: "strip", Width: 2, Height: 2})
	require.NoError(t, err)
	require.NoError(t, reg.Register(lamp))
	require.NoError(t, reg.Register(strip))

	assert.ErrorIs(t, reg.Register(lamp), ErrDuplicateName)

	_, err = reg.Analog("lamp")
	assert.NoError(t, err)
	_, err = reg.RGBA("lamp")
	assert.ErrorIs(t, err, ErrCapability)

	m, err := reg.RGBAMatrix("strip")
	require.NoError(t, err)
	assert.Equal(t, 2, m.Width())

	_, err = reg.Get("missing")
	assert.ErrorIs(t, err, ErrToyNotFound)
	assert.Equal(t, 2, reg.Len())
}

func TestConcurrentLayerWrites(t *testing.T) {
	strip, err := NewLedStrip(LedStripConfig{Name: "m", Width: 8, Height: 8, Sink: newRecordingSink()})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(nr int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				strip.SetElement(nr, i%8, (i/8)%8, value.RGB(i, i, i))
			}
		}(w)
	}
	for i := 0; i < 50; i++ {
		strip.UpdateOutputs()
	}
	wg.Wait()
	assert.Len(t, strip.Info().Layers, 4)
}
