// Package curve provides the deterministic transforms applied to output
// values before they reach a controller.
//
// A Curve is a 256-entry lookup table that maps a raw 0..255 intensity onto
// the intensity actually sent to the hardware. Named curves cover the common
// fading characteristics of lamps and LEDs; Custom accepts any table.
//
// Brightness builds a combined brightness/gamma table. ColorOrder rearranges
// RGB triples for hardware wired in another channel order, and the HSB helpers
// recolor or scale RGBA values while preserving perceived brightness.
//
// All functions are pure and every table is computed once at construction, so
// curves are safe for concurrent use.
package curve
