package mqtt

import (
	"fmt"
	"strconv"
	"strings"
)

// Topic prefixes for the feedback daemon.
const (
	// TopicPrefix is the root of every topic the daemon publishes or
	// subscribes to.
	TopicPrefix = "feedback"

	// TopicPrefixSystem is the base for daemon status topics.
	TopicPrefixSystem = TopicPrefix + "/system"
)

// Topics provides builders for feedback MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.Output("playfield")   // feedback/output/playfield
//	topics.ToyLayer("flasher", 2) // feedback/toy/flasher/layer/2
type Topics struct{}

// Output returns the topic an MQTT output controller publishes its frame to.
//
// Example: feedback/output/playfield
func (Topics) Output(controller string) string {
	return fmt.Sprintf("%s/output/%s", TopicPrefix, controller)
}

// ToyLayer returns the topic that sets one layer of a toy.
//
// Example: feedback/toy/flasher-left/layer/0
func (Topics) ToyLayer(toy string, layer int) string {
	return fmt.Sprintf("%s/toy/%s/layer/%d", TopicPrefix, toy, layer)
}

// ControllerState returns the retained state topic of an output controller.
//
// Example: feedback/controller/strip-1/state
func (Topics) ControllerState(controller string) string {
	return fmt.Sprintf("%s/controller/%s/state", TopicPrefix, controller)
}

// Event returns the topic for controller lifecycle events of one kind.
//
// Example: feedback/event/connect_failed
func (Topics) Event(kind string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefix, kind)
}

// SystemStatus returns the daemon online/offline status topic.
//
// Example: feedback/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// AllToyLayers returns a pattern matching every toy layer topic.
//
// Pattern: feedback/toy/+/layer/+
func (Topics) AllToyLayers() string {
	return TopicPrefix + "/toy/+/layer/+"
}

// AllControllerStates returns a pattern matching every controller state.
//
// Pattern: feedback/controller/+/state
func (Topics) AllControllerStates() string {
	return TopicPrefix + "/controller/+/state"
}

// AllTopics returns a pattern matching every feedback topic.
//
// Pattern: feedback/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}

// ParseToyLayer extracts the toy name and layer number from a topic built by
// ToyLayer. ok is false for any other topic or a negative layer.
func ParseToyLayer(topic string) (toy string, layer int, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 5 || parts[0] != TopicPrefix || parts[1] != "toy" || parts[3] != "layer" {
		return "", 0, false
	}
	if parts[2] == "" {
		return "", 0, false
	}
	n, err := strconv.Atoi(parts[4])
	if err != nil || n < 0 {
		return "", 0, false
	}
	return parts[2], n, true
}
