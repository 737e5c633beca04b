// Package layer implements the per-toy layer store.
//
// A toy owns one Store. Each layer is identified by an integer layer number and
// holds exactly Size() values, one per toy element (matrix cell or single
// output). Layers are created lazily on first write. Resizing the store drops
// every layer so stale geometry can never be observed.
//
// Thread Safety: Store is not safe for concurrent use on its own; the owning
// toy serialises access with its own mutex.
package layer
