package artnet

import "encoding/binary"

// Protocol constants.
const (
	// Port is the Art-Net UDP port.
	Port = 6454

	// UniverseSize is the number of DMX channels in one universe.
	UniverseSize = 512

	// HeaderSize is the size of the ArtDmx header.
	HeaderSize = 18

	// MaxUniverse is the highest 15-bit port address.
	MaxUniverse = 0x7FFF

	opDmx           = 0x5000
	protocolVersion = 14
)

// BroadcastAddress is the limited broadcast address used when no destination
// is configured.
const BroadcastAddress = "255.255.255.255"

// signature is the fixed packet ID.
var signature = [8]byte{'A', 'r', 't', '-', 'N', 'e', 't', 0}

// BuildPacket returns an ArtDmx packet for universe. data is zero-padded or
// truncated to a full universe.
func BuildPacket(universe int, data []byte) []byte {
	p := make([]byte, HeaderSize+UniverseSize)
	copy(p[0:8], signature[:])
	binary.LittleEndian.PutUint16(p[8:10], opDmx)
	binary.BigEndian.PutUint16(p[10:12], protocolVersion)
	// p[12] sequence and p[13] physical stay zero.
	binary.LittleEndian.PutUint16(p[14:16], uint16(universe)) //nolint:gosec // checked by callers
	binary.BigEndian.PutUint16(p[16:18], UniverseSize)
	copy(p[HeaderSize:], data)
	return p
}
