// Package mqttout is an output controller that publishes frames to MQTT
// instead of driving hardware.
//
// Each changed frame is published unretained as raw bytes, one byte per
// output, to feedback/output/{name}. Consumers such as remote cabinets or
// test rigs subscribe to that topic.
package mqttout
