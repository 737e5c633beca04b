// Package serialbus drives legacy output boards that share one serial line.
//
// Up to 16 units hang off the same bus, each with the same number of outputs.
// For every unit whose values changed one frame is written:
//
//	0xFF unit count v0 ... v(count-1)
//
// Values are clamped to 0..254 so 0xFF only ever starts a frame. The bus is
// write-only; boards never answer.
package serialbus
