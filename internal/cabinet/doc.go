// Package cabinet assembles the feedback output pipeline of one pinball
// cabinet and drives it.
//
// Build turns the controllers and toys sections of the configuration into
// live objects: every controller backend is wrapped in a
// controller.Controller and every toy output is bound to a channel of one of
// those controllers. Groups are resolved after their member toys.
//
// The tick loop then runs at the configured interval:
//
//	toys.UpdateAll()             composite layers, stage channel values
//	for each controller:
//	    reconnect if due         disconnected controllers retry on a backoff
//	    Update                   send the staged frame if it changed
//
// A failing controller never stops the loop. Its error is logged with the
// controller name and operation, recorded in the event log, and, for
// connection and IPC failures, the controller is disconnected and retried
// later.
//
// Layer writes arrive from MQTT (feedback/toy/{toy}/layer/{n}) or from Go
// callers through ApplyLayer.
package cabinet
