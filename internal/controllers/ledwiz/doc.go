// Package ledwiz drives LedWiz USB output boards through the Linux hidraw
// interface.
//
// A LedWiz has 32 outputs and is addressed by unit number 1..16, which maps
// to USB product ID 0x00F0 + unit - 1 under vendor 0xFAFA. Each output has an
// on/off bit and a brightness level 0..48. Two 8-byte reports set them:
//
//	SBA: 64 b0 b1 b2 b3 speed 0 0   on/off bits for outputs 1-32, pulse speed
//	PBA: p0 p1 p2 p3 p4 p5 p6 p7    brightness for the next 8 outputs
//
// SBA resets the device's PBA pointer, so a brightness change is sent as SBA
// followed by the PBA reports up to the last changed group.
package ledwiz
