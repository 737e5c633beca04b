package toy

import (
	"fmt"
	"strings"
)

// Arrangement is the physical wiring order of LEDs in a matrix.
type Arrangement int

// Supported arrangements. The name gives the primary then secondary direction.
const (
	LeftRightTopDown Arrangement = iota
	TopDownLeftRight
	RightLeftTopDown
	BottomUpLeftRight
)

var arrangementNames = map[Arrangement]string{
	LeftRightTopDown:  "LeftRightTopDown",
	TopDownLeftRight:  "TopDownLeftRight",
	RightLeftTopDown:  "RightLeftTopDown",
	BottomUpLeftRight: "BottomUpLeftRight",
}

func (a Arrangement) String() string {
	if n, ok := arrangementNames[a]; ok {
		return n
	}
	return fmt.Sprintf("Arrangement(%d)", int(a))
}

// ParseArrangement parses an arrangement name. Empty means LeftRightTopDown.
func ParseArrangement(s string) (Arrangement, error) {
	if s == "" {
		return LeftRightTopDown, nil
	}
	for a, n := range arrangementNames {
		if strings.EqualFold(n, s) {
			return a, nil
		}
	}
	return 0, fmt.Errorf("toy: unknown arrangement %q", s)
}

// Layout maps matrix cells to positions along the physical LED chain.
type Layout struct {
	Arrangement Arrangement

	// Serpentine reverses every second row (or column) of the primary direction.
	Serpentine bool
}

// Position returns the chain position of cell (x, y) in a width x height matrix.
func (l Layout) Position(x, y, width, height int) int {
	switch l.Arrangement {
	case TopDownLeftRight:
		if l.Serpentine && x%2 == 1 {
			return x*height + (height - 1 - y)
		}
		return x*height + y
	case RightLeftTopDown:
		if l.Serpentine && y%2 == 1 {
			return y*width + x
		}
		return y*width + (width - 1 - x)
	case BottomUpLeftRight:
		if l.Serpentine && x%2 == 1 {
			return x*height + y
		}
		return x*height + (height - 1 - y)
	default:
		if l.Serpentine && y%2 == 1 {
			return y*width + (width - 1 - x)
		}
		return y*width + x
	}
}

// table returns the chain position for every cell in row-major order.
func (l Layout) table(width, height int) []int {
	out := make([]int, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			out[y*width+x] = l.Position(x, y, width, height)
		}
	}
	return out
}
