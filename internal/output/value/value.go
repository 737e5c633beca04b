package value

// Channel limits.
const (
	Min = 0
	Max = 255
)

// Clamp limits v to the 0..255 channel range.
func Clamp(v int) uint8 {
	if v < Min {
		return Min
	}
	if v > Max {
		return Max
	}
	return uint8(v)
}

// blend composites v over base using alpha a (0..255), rounding to nearest.
func blend(base, v, a uint8) uint8 {
	switch a {
	case Max:
		return v
	case Min:
		return base
	}
	return uint8((int(base)*(Max-int(a)) + int(v)*int(a) + Max/2) / Max)
}

// Analog is a single intensity with an alpha.
type Analog struct {
	Value uint8
	Alpha uint8
}

// NewAnalog creates an Analog from unclamped integers.
func NewAnalog(v, alpha int) Analog {
	return Analog{Value: Clamp(v), Alpha: Clamp(alpha)}
}

// Opaque returns a fully opaque Analog with intensity v.
func Opaque(v int) Analog {
	return Analog{Value: Clamp(v), Alpha: Max}
}

// WithValue returns a copy with the intensity replaced.
func (a Analog) WithValue(v int) Analog {
	a.Value = Clamp(v)
	return a
}

// WithAlpha returns a copy with the alpha replaced.
func (a Analog) WithAlpha(alpha int) Analog {
	a.Alpha = Clamp(alpha)
	return a
}

// Over composites a on top of base and returns the resulting opaque value.
func (a Analog) Over(base Analog) Analog {
	return Analog{Value: blend(base.Value, a.Value, a.Alpha), Alpha: Max}
}

// RGBA is a color with an alpha.
type RGBA struct {
	R, G, B, A uint8
}

// Black is opaque black, the inactive baseline of RGB toys.
var Black = RGBA{A: Max}

// Transparent is the zero value: no color, no coverage.
var Transparent = RGBA{}

// NewRGBA creates an RGBA from unclamped integers.
func NewRGBA(r, g, b, a int) RGBA {
	return RGBA{R: Clamp(r), G: Clamp(g), B: Clamp(b), A: Clamp(a)}
}

// RGB creates an opaque color.
func RGB(r, g, b int) RGBA {
	return NewRGBA(r, g, b, Max)
}

// WithRed returns a copy with the red channel replaced.
func (c RGBA) WithRed(v int) RGBA {
	c.R = Clamp(v)
	return c
}

// WithGreen returns a copy with the green channel replaced.
func (c RGBA) WithGreen(v int) RGBA {
	c.G = Clamp(v)
	return c
}

// WithBlue returns a copy with the blue channel replaced.
func (c RGBA) WithBlue(v int) RGBA {
	c.B = Clamp(v)
	return c
}

// WithAlpha returns a copy with the alpha replaced.
func (c RGBA) WithAlpha(v int) RGBA {
	c.A = Clamp(v)
	return c
}

// Over composites c on top of base and returns the resulting opaque color.
func (c RGBA) Over(base RGBA) RGBA {
	return RGBA{
		R: blend(base.R, c.R, c.A),
		G: blend(base.G, c.G, c.A),
		B: blend(base.B, c.B, c.A),
		A: Max,
	}
}

// Bytes returns the color channels in RGB order.
func (c RGBA) Bytes() [3]byte {
	return [3]byte{c.R, c.G, c.B}
}

// ToAnalog reduces the color to its brightest channel, keeping alpha.
func (c RGBA) ToAnalog() Analog {
	v := c.R
	if c.G > v {
		v = c.G
	}
	if c.B > v {
		v = c.B
	}
	return Analog{Value: v, Alpha: c.A}
}
