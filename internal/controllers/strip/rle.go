package strip

import "fmt"

// MaxRun is the longest run a single RLE quadruple may describe.
const MaxRun = 254

// EncodeRLE encodes RGB triples as (count, r, g, b) quadruples. Runs longer
// than MaxRun are split. A trailing partial triple is not encoded.
func EncodeRLE(rgb []byte) []byte {
	n := len(rgb) / 3
	out := make([]byte, 0, 16)
	for i := 0; i < n; {
		r, g, b := rgb[i*3], rgb[i*3+1], rgb[i*3+2]
		run := 1
		for i+run < n && run < MaxRun {
			j := (i + run) * 3
			if rgb[j] != r || rgb[j+1] != g || rgb[j+2] != b {
				break
			}
			run++
		}
		out = append(out, byte(run), r, g, b)
		i += run
	}
	return out
}

// DecodeRLE expands (count, r, g, b) quadruples back into RGB triples.
func DecodeRLE(enc []byte) ([]byte, error) {
	if len(enc)%4 != 0 {
		return nil, fmt.Errorf("%w: length %d is not a multiple of 4", ErrInvalidRLE, len(enc))
	}
	out := make([]byte, 0, len(enc))
	for i := 0; i < len(enc); i += 4 {
		run := int(enc[i])
		if run == 0 || run > MaxRun {
			return nil, fmt.Errorf("%w: run length %d at offset %d", ErrInvalidRLE, run, i)
		}
		for k := 0; k < run; k++ {
			out = append(out, enc[i+1], enc[i+2], enc[i+3])
		}
	}
	return out, nil
}
