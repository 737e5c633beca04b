package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	tests := []struct {
		in   int
		want uint8
	}{
		{-10, 0},
		{0, 0},
		{128, 128},
		{255, 255},
		{256, 255},
		{10000, 255},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Clamp(tt.in), "Clamp(%d)", tt.in)
	}
}

func TestAnalog_SettersClampAndCopy(t *testing.T) {
	a := NewAnalog(300, -1)
	assert.Equal(t, Analog{Value: 255, Alpha: 0}, a)

	b := a.WithValue(-5).WithAlpha(999)
	assert.Equal(t, Analog{Value: 0, Alpha: 255}, b)
	assert.Equal(t, Analog{Value: 255, Alpha: 0}, a, "original must not change")
}

func TestAnalog_Over(t *testing.T) {
	base := Opaque(100)

	assert.Equal(t, Opaque(200), Opaque(200).Over(base), "opaque replaces")
	assert.Equal(t, Opaque(100), NewAnalog(200, 0).Over(base), "transparent keeps base")

	half := NewAnalog(200, 128).Over(Opaque(0))
	assert.InDelta(t, 100, int(half.Value), 1)
	assert.Equal(t, uint8(255), half.Alpha)
}

func TestRGBA_Over(t *testing.T) {
	base := RGB(10, 20, 30)

	assert.Equal(t, RGB(1, 2, 3), RGB(1, 2, 3).Over(base))
	assert.Equal(t, base, NewRGBA(255, 255, 255, 0).Over(base))

	mixed := NewRGBA(255, 0, 0, 128).Over(Black)
	assert.InDelta(t, 128, int(mixed.R), 1)
	assert.Equal(t, uint8(0), mixed.G)
}

func TestRGBA_StructuralEquality(t *testing.T) {
	assert.True(t, NewRGBA(1, 2, 3, 4) == NewRGBA(1, 2, 3, 4))
	assert.False(t, NewRGBA(1, 2, 3, 4) == NewRGBA(1, 2, 3, 5))
}

func TestRGBA_ToAnalog(t *testing.T) {
	assert.Equal(t, Analog{Value: 200, Alpha: 9}, NewRGBA(10, 200, 30, 9).ToAnalog())
}
