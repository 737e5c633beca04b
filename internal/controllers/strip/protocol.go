package strip

import "encoding/binary"

// Command tags.
const (
	cmdMaxLeds  byte = 'M'
	cmdLength   byte = 'L'
	cmdClear    byte = 'C'
	cmdRaw      byte = 'R'
	cmdRLE      byte = 'Q'
	cmdOutput   byte = 'O'
	cmdResize   byte = 'Z'
	cmdSelfTest byte = 'T'
	ack         byte = 'A'
	nak         byte = 'N'
	ping       byte = 0x00
)

// resyncLength is the number of zero bytes sent after a failed handshake
// ping to flush a half-parsed command out of the device.
const resyncLength = 3000

// Frame header sizes.
const (
	rawHeader = 5 // R pos:2 count:2
	rleHeader = 7 // Q pos:2 enc:2 count:2
)

// maxField is the largest value of a 16-bit frame field.
const maxField = 0xFFFF

// u16 appends v big-endian. Callers keep v within 0..maxField.
func u16(b []byte, v int) []byte {
	return binary.BigEndian.AppendUint16(b, uint16(v)) //nolint:gosec // bounded by caller
}

func lengthFrame(length int) []byte {
	return u16([]byte{cmdLength}, length)
}

func rawFrame(pos, count int, rgb []byte) []byte {
	b := make([]byte, 0, rawHeader+len(rgb))
	b = append(b, cmdRaw)
	b = u16(b, pos)
	b = u16(b, count)
	return append(b, rgb...)
}

func rleFrame(pos, count int, enc []byte) []byte {
	b := make([]byte, 0, rleHeader+len(enc))
	b = append(b, cmdRLE)
	b = u16(b, pos)
	b = u16(b, len(enc))
	b = u16(b, count)
	return append(b, enc...)
}

func resizeFrame(idx, total, length int) []byte {
	return u16([]byte{cmdResize, byte(idx), byte(total)}, length)
}

// stripFrame returns the smaller of the raw and RLE frames for one strip.
// The RLE frame is chosen only when strictly smaller and its encoded length
// fits the 16-bit length field.
func stripFrame(pos, count int, rgb []byte, compress bool) []byte {
	if compress {
		enc := EncodeRLE(rgb)
		if len(enc) <= maxField && rleHeader+len(enc) < rawHeader+len(rgb) {
			return rleFrame(pos, count, enc)
		}
	}
	return rawFrame(pos, count, rgb)
}
