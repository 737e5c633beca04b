// Package controller implements the device-independent output controller
// lifecycle shared by every hardware backend.
//
// A Backend only performs raw device I/O: verify its settings, connect,
// disconnect and transmit a full output array. Controller wraps a Backend and
// owns everything else:
//
//   - a staging buffer that toys write into through SetValue
//   - the last-sent snapshot used for diffing
//   - the lifecycle state machine
//   - statistics and the per-frame hook
//
// Lifecycle:
//
//	Uninitialized -> Verifying -> Connected -> Updating -> Connected ...
//	                     |            |
//	                     v            v
//	               Disconnected <- Disconnect -> Finished
//
// Init runs VerifySettings and then connects. A verification or connection
// failure is returned but is never fatal: the controller stays disconnected
// and every subsequent Update is a no-op, so the cabinet keeps driving its
// other devices.
//
// Update compares the staged array with the last-sent array and calls the
// backend if and only if a byte differs. The array handed to the backend
// becomes the new baseline even when transmission fails, so the backend is
// never invoked twice in a row with identical data.
//
// Errors:
// All errors returned by Controller are *Error values carrying a Kind, the
// device name and the failed operation. Callers pick a recovery policy with
// KindOf or errors.As instead of matching messages.
//
// Thread Safety:
// SetValue and Values may be called from any goroutine. Lifecycle calls are
// serialised by a per-controller mutex that is held for the whole backend call.
package controller
