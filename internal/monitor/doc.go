// Package monitor provides the status HTTP API and live WebSocket stream of
// the feedback daemon.
//
// Endpoints (all under /api/v1):
//
//	GET  /health                          liveness and version
//	GET  /cabinet                         full cabinet snapshot
//	GET  /controllers                     controller states and counters
//	GET  /controllers/{name}              one controller
//	GET  /toys                            toy geometry and active layers
//	PUT  /toys/{name}/layers/{nr}         layer write, same payload as MQTT
//	GET  /events                          controller event log (filterable)
//	GET  /ws                              WebSocket stream
//
// WebSocket clients subscribe to channels:
//
//	controller.frame   every transmitted frame, throttled per controller
//	controller.state   controller state transitions
//	controller.event   connect, failure and disable events
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	srv, err := monitor.New(deps)
//	srv.Start(ctx)
//	defer srv.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package monitor
