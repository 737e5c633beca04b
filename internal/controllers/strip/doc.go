// Package strip implements the serial strip controller protocol used by
// addressable LED strip controllers (Teensy and Wemos class boards).
//
// Connection handshake:
//
//  1. Open the port with the configured line settings and DTR.
//  2. Wait the open-settle delay, flush both queues, wait 500 ms.
//  3. Up to 20 times: send a single 0x00 byte, wait the handshake-start delay
//     and check for input. A reply of 'A' or 'N' completes the handshake.
//     Otherwise send 3000 zero bytes to resynchronise the device parser, wait
//     the handshake-end delay and try again.
//  4. Query the maximum LEDs per channel ('M'), check every configured strip
//     fits, program the channel length ('L') and clear the device ('C').
//
// Update: for every configured strip one 'R' frame (position, LED count, RGB
// data) is sent and acknowledged, then a single 'O' latches the output.
//
// Wire format (all integers big-endian):
//
//	M                          -> hi lo 'A'
//	L hi lo                    -> 'A'
//	C                          -> 'A'
//	R pos:2 count:2 rgb...     -> 'A'
//	Q pos:2 enc:2 count:2 rle. -> 'A'
//	O                          -> 'A'
//	Z idx total len:2          -> 'A'
//	T                          -> 'A' (within ~2 s)
//
// The compressed variant (NewCompressed) can additionally program per-strip
// lengths ('Z'), run a self-test on connect ('T') and replace 'R' with a
// run-length encoded 'Q' frame whenever that frame is strictly smaller. It
// also skips strips whose data did not change since the last acknowledged
// frame.
//
// Every protocol violation is returned as a controller.Error of kind
// KindProtocol naming the strip and the command. Bytes already sent are not
// rolled back.
package strip
