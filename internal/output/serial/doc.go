// Package serial provides the serial port abstraction used by the serial
// output controllers.
//
// Port is the minimal surface the protocols need: byte I/O, buffer flushing,
// a pending-input query and a per-read timeout. Open returns a Port backed by
// github.com/pkg/term; tests substitute scripted fakes through the Opener type.
//
// Reads on a real port are bounded by the configured read timeout. A read that
// times out without data returns io.EOF; ReadFull turns that into ErrTimeout
// once the overall deadline has passed.
package serial
