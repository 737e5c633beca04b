// Package pinone drives the PinOne output board through the COM-port proxy.
//
// The board's serial port is owned by a comproxy server so that other
// programs on the cabinet can share it. Every update is one frame written via
// the proxy WRITE command:
//
//	0xFE 0x01 v0 v1 ... v62
//
// where each value is clamped to 0..253 so it can never be mistaken for a
// frame start byte.
package pinone
