// Package mqtt provides MQTT client connectivity for the feedback daemon.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing output frames and controller state
//   - Subscribing to toy layer topics with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//
// # Topics
//
// Every topic lives under "feedback/":
//
//	feedback/output/{controller}          frame of an mqtt output controller
//	feedback/toy/{toy}/layer/{n}          layer ingress (JSON value)
//	feedback/controller/{controller}/state retained controller state
//	feedback/event/{kind}                  controller lifecycle events
//	feedback/system/status                 retained online/offline
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllToyLayers(), 0,
//	    func(topic string, payload []byte) error {
//	        toy, layer, ok := mqtt.ParseToyLayer(topic)
//	        ...
//	    })
//
// Handlers run on paho goroutines. A handler that panics is recovered and
// logged; a returned error is logged and otherwise ignored.
package mqtt
