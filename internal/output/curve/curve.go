package curve

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Size is the number of entries in a curve table.
const Size = 256

// Table maps an input intensity to an output intensity.
type Table [Size]byte

// Curve is a named fading curve.
type Curve struct {
	name  string
	table Table
}

// Name returns the configuration name of the curve.
func (c *Curve) Name() string {
	if c == nil {
		return "Linear"
	}
	return c.name
}

// Map applies the curve to v. A nil curve is linear.
func (c *Curve) Map(v uint8) uint8 {
	if c == nil {
		return v
	}
	return c.table[v]
}

// Table returns a copy of the lookup table.
func (c *Curve) Table() Table {
	if c == nil {
		return linearTable()
	}
	return c.table
}

// Custom creates a curve from an arbitrary table.
func Custom(name string, t Table) *Curve {
	return &Curve{name: name, table: t}
}

func linearTable() Table {
	var t Table
	for i := range t {
		t[i] = byte(i)
	}
	return t
}

// capped returns a linear curve scaled so that input 255 maps to top.
func capped(top int) Table {
	var t Table
	for i := range t {
		t[i] = byte((i*top + 127) / 255)
	}
	return t
}

func power(gamma float64) Table {
	var t Table
	for i := range t {
		t[i] = byte(math.Round(255 * math.Pow(float64(i)/255, gamma)))
	}
	return t
}

// Predefined curves.
var (
	Linear         = &Curve{name: "Linear", table: linearTable()}
	InvertedLinear = &Curve{name: "InvertedLinear", table: invertedTable()}
	Exponential    = &Curve{name: "Exponential", table: power(2.2)} //nolint:mnd // perceptual gamma
	SwissLizards   = &Curve{name: "SwissLizardsLedCurve", table: swissLizards()}
)

func invertedTable() Table {
	var t Table
	for i := range t {
		t[i] = byte(255 - i)
	}
	return t
}

// swissLizards is a soft-start LED curve: gentle at the bottom, linear towards
// the top, never dark for a non-zero input.
func swissLizards() Table {
	var t Table
	for i := 1; i < Size; i++ {
		x := float64(i) / 255
		v := math.Round(255 * (0.6*x*x + 0.4*x*x*x)) //nolint:mnd // curve shape
		if v < 1 {
			v = 1
		}
		t[i] = byte(v)
	}
	return t
}

var registry = map[string]*Curve{}

func register(c *Curve) {
	registry[strings.ToLower(c.name)] = c
}

func init() {
	register(Linear)
	register(InvertedLinear)
	register(Exponential)
	register(SwissLizards)
	for _, top := range []int{224, 192, 160, 128, 96, 64, 32, 16} {
		register(&Curve{name: fmt.Sprintf("Linear0To%d", top), table: capped(top)})
	}
}

// ByName resolves a configured curve name (case-insensitive). An empty name
// resolves to Linear.
func ByName(name string) (*Curve, error) {
	if name == "" {
		return Linear, nil
	}
	c, ok := registry[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("curve: unknown curve %q", name)
	}
	return c, nil
}

// Names lists the registered curve names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for _, c := range registry {
		names = append(names, c.name)
	}
	sort.Strings(names)
	return names
}

// Brightness builds a lookup table of round(255 * brightness * (v/255)^gamma).
// brightness is clamped to 0..1; a gamma <= 0 is treated as 1.
func Brightness(brightness, gamma float64) Table {
	if brightness < 0 {
		brightness = 0
	}
	if brightness > 1 {
		brightness = 1
	}
	if gamma <= 0 {
		gamma = 1
	}
	var t Table
	for i := range t {
		t[i] = byte(math.Round(255 * brightness * math.Pow(float64(i)/255, gamma)))
	}
	return t
}

// Compose returns a table equivalent to applying a then b.
func Compose(a, b Table) Table {
	var t Table
	for i := range t {
		t[i] = b[a[i]]
	}
	return t
}
