// Package toy resolves layered effect values into final output bytes.
//
// A toy is a logical feedback unit: a single lamp or solenoid, an RGB fixture,
// or an addressable LED matrix. Effects write values into numbered layers of a
// toy; on every tick the toy composites its layers in ascending layer-number
// order and pushes the result to its bound controller channels.
//
// Capabilities are modelled as small independent interfaces:
//
//   - Toy: every toy (name, reset, per-tick update, finish)
//   - AnalogLayers: accepts value.Analog layer writes
//   - RGBALayers: accepts value.RGBA layer writes
//   - Matrix[T]: exposes a width x height grid of elements
//   - Resizable: can change its matrix geometry (destroys all layers)
//
// Concrete types implement the subset they need and the Registry resolves toys
// by name and capability, so callers never downcast.
//
// Groups (AnalogGroup, RGBGroup) are virtual matrices whose elements are other
// toys. A group composites nothing itself: on update it copies each of its
// layers element-wise into the layer with the same number on the child toy.
//
// Thread Safety:
// Every toy guards its layer store with its own mutex, so effects may write
// layers from any goroutine while the cabinet tick loop updates outputs.
package toy
