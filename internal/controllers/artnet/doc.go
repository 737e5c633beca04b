// Package artnet sends DMX512 universes over UDP using the Art-Net ArtDmx
// packet.
//
// Engine owns the single UDP socket shared by every Art-Net controller of a
// cabinet. It is an explicit object created once at startup and handed to each
// Controller, guarded by its own mutex independent of any controller lock.
//
// Packet layout:
//
//	0..7    "Art-Net\x00"
//	8..9    opcode 0x5000 (little-endian)
//	10..11  protocol version 14 (big-endian)
//	12..13  sequence, physical (zero)
//	14..15  universe (little-endian)
//	16..17  data length (big-endian)
//	18..    DMX data
//
// Circuit breaker: consecutive send failures are counted and logged. A
// successful send resets the counter. When the count exceeds FailureThreshold
// the engine closes its socket and every later send is a silent no-op for
// the rest of the process lifetime.
package artnet
