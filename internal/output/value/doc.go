// Package value defines the intensity values that flow through the output
// pipeline.
//
// Two value kinds exist:
//
//   - Analog: a single 0..255 intensity with a 0..255 alpha (lamps, solenoids,
//     motors, single LEDs).
//   - RGBA: a 0..255 red/green/blue triple with a 0..255 alpha (RGB fixtures and
//     addressable LED matrices).
//
// Values are plain comparable structs. Every constructor and setter clamps its
// inputs to 0..255, so a Value can never hold an out-of-range channel.
//
// Alpha controls how a layer value is composited over the layers beneath it:
// alpha 255 replaces the underlying value, alpha 0 leaves it untouched and
// anything in between blends linearly.
package value
