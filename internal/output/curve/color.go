package curve

import (
	"fmt"
	"math"
	"strings"

	"github.com/nerrad567/feedback-core/internal/output/value"
)

// ColorOrder is the physical channel order of an RGB device.
type ColorOrder int

// Supported channel orders.
const (
	RGB ColorOrder = iota
	RBG
	GRB
	GBR
	BRG
	BGR
)

var colorOrderNames = [...]string{"RGB", "RBG", "GRB", "GBR", "BRG", "BGR"}

// String returns the canonical name of the order.
func (o ColorOrder) String() string {
	if o < RGB || o > BGR {
		return fmt.Sprintf("ColorOrder(%d)", int(o))
	}
	return colorOrderNames[o]
}

// ParseColorOrder parses an order name such as "GRB". Empty means RGB.
func ParseColorOrder(s string) (ColorOrder, error) {
	if s == "" {
		return RGB, nil
	}
	for i, n := range colorOrderNames {
		if strings.EqualFold(n, s) {
			return ColorOrder(i), nil
		}
	}
	return RGB, fmt.Errorf("curve: unknown color order %q", s)
}

// Apply rearranges r, g, b into the wire order.
func (o ColorOrder) Apply(r, g, b byte) [3]byte {
	switch o {
	case RBG:
		return [3]byte{r, b, g}
	case GRB:
		return [3]byte{g, r, b}
	case GBR:
		return [3]byte{g, b, r}
	case BRG:
		return [3]byte{b, r, g}
	case BGR:
		return [3]byte{b, g, r}
	default:
		return [3]byte{r, g, b}
	}
}

// HSB is a hue/saturation/brightness color. Hue is in degrees [0,360),
// saturation and brightness are in [0,1].
type HSB struct {
	H, S, B float64
}

// ToHSB converts the color channels of c to HSB. Alpha is ignored.
func ToHSB(c value.RGBA) HSB {
	r := float64(c.R) / 255
	g := float64(c.G) / 255
	b := float64(c.B) / 255

	hi := math.Max(r, math.Max(g, b))
	lo := math.Min(r, math.Min(g, b))
	d := hi - lo

	out := HSB{B: hi}
	if hi > 0 {
		out.S = d / hi
	}
	if d == 0 {
		return out
	}

	switch hi {
	case r:
		out.H = 60 * math.Mod((g-b)/d, 6)
	case g:
		out.H = 60 * ((b-r)/d + 2)
	default:
		out.H = 60 * ((r-g)/d + 4)
	}
	if out.H < 0 {
		out.H += 360
	}
	return out
}

// FromHSB converts h back to an RGBA with the given alpha.
func FromHSB(h HSB, alpha uint8) value.RGBA {
	hue := math.Mod(h.H, 360)
	if hue < 0 {
		hue += 360
	}
	s := math.Max(0, math.Min(1, h.S))
	v := math.Max(0, math.Min(1, h.B))

	c := v * s
	x := c * (1 - math.Abs(math.Mod(hue/60, 2)-1))
	m := v - c

	var r, g, b float64
	switch {
	case hue < 60:
		r, g, b = c, x, 0
	case hue < 120:
		r, g, b = x, c, 0
	case hue < 180:
		r, g, b = 0, c, x
	case hue < 240:
		r, g, b = 0, x, c
	case hue < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}

	return value.RGBA{
		R: byte(math.Round((r + m) * 255)),
		G: byte(math.Round((g + m) * 255)),
		B: byte(math.Round((b + m) * 255)),
		A: alpha,
	}
}

// Recolor keeps the brightness and alpha of c and takes hue and saturation
// from target.
func Recolor(c, target value.RGBA) value.RGBA {
	src := ToHSB(c)
	dst := ToHSB(target)
	return FromHSB(HSB{H: dst.H, S: dst.S, B: src.B}, c.A)
}

// ScaleIntensity scales color by an analog intensity. The result alpha is the
// analog alpha, so an analog layer fans out to RGB with the same coverage.
func ScaleIntensity(color value.RGBA, a value.Analog) value.RGBA {
	scale := func(ch uint8) uint8 {
		return uint8((int(ch)*int(a.Value) + 127) / 255)
	}
	return value.RGBA{R: scale(color.R), G: scale(color.G), B: scale(color.B), A: a.Alpha}
}
