package strip

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRLE_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for n := 0; n < 200; n++ {
		leds := rng.Intn(600)
		rgb := make([]byte, leds*3)
		palette := 1 + rng.Intn(4)
		for i := 0; i < leds; i++ {
			c := byte(rng.Intn(palette))
			rgb[i*3], rgb[i*3+1], rgb[i*3+2] = c, c*2, c*3
		}

		dec, err := DecodeRLE(EncodeRLE(rgb))
		require.NoError(t, err)
		require.True(t, bytes.Equal(dec, rgb), "round trip mismatch for %d LEDs", leds)
	}
}

func TestRLE_RunCap(t *testing.T) {
	rgb := bytes.Repeat([]byte{7, 8, 9}, 600)
	want := []byte{254, 7, 8, 9, 254, 7, 8, 9, 92, 7, 8, 9}
	assert.Equal(t, want, EncodeRLE(rgb))
}

func TestRLE_Empty(t *testing.T) {
	assert.Empty(t, EncodeRLE(nil))
	dec, err := DecodeRLE(nil)
	assert.NoError(t, err)
	assert.Empty(t, dec)
}

func TestDecodeRLE_Invalid(t *testing.T) {
	tests := [][]byte{
		{1, 2, 3},
		{0, 1, 2, 3},
		{255, 1, 2, 3},
	}
	for _, in := range tests {
		_, err := DecodeRLE(in)
		assert.ErrorIs(t, err, ErrInvalidRLE, "DecodeRLE(%v)", in)
	}
}

func TestStripFrame_SmallerWins(t *testing.T) {
	tests := []struct {
		name string
		rgb  []byte
		want byte
	}{
		{"uniform", bytes.Repeat([]byte{1, 1, 1}, 10), cmdRLE},
		{"distinct", []byte{1, 2, 3, 4, 5, 6, 7, 8, 9}, cmdRaw},
		// One LED: raw is 8 bytes, RLE 11 bytes.
		{"single", []byte{5, 5, 5}, cmdRaw},
		// Two equal LEDs: raw 11 bytes, RLE 11 bytes; a tie stays raw.
		{"tie", []byte{5, 5, 5, 5, 5, 5}, cmdRaw},
		{"three equal", []byte{5, 5, 5, 5, 5, 5, 5, 5, 5}, cmdRLE},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := stripFrame(0, len(tt.rgb)/3, tt.rgb, true)
			assert.Equal(t, tt.want, f[0], "tag %c", f[0])
		})
	}

	f := stripFrame(0, 10, bytes.Repeat([]byte{1, 1, 1}, 10), false)
	assert.Equal(t, cmdRaw, f[0], "compression disabled must always send R")
}

func TestStripFrame_EncodedLengthOverflow(t *testing.T) {
	// 60000 LEDs in pairs: the RLE body (120000 bytes) is smaller than raw
	// (180000 bytes) but does not fit the 16-bit length field.
	rgb := make([]byte, 0, 60000*3)
	for i := 0; i < 30000; i++ {
		v := byte(i)
		rgb = append(rgb, v, v, 0, v, v, 0)
	}
	f := stripFrame(0, 60000, rgb, true)
	assert.Equal(t, cmdRaw, f[0], "want R when the encoded length overflows")
}
