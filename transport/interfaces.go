// Package transport defines the link and message bus interfaces the bridge
// is built from.
//
// A Transport carries rosserial frames to and from the device (usually a
// serial port). A Bus carries opaque payloads on named topics to the rest of
// the system (usually MQTT).
package transport

import (
	"context"

	"github.com/kabili207/rosserial-go/core/codec"
)

// Transport is the link to a rosserial device.
type Transport interface {
	// Start opens the link and begins delivering frames.
	// The provided context controls the transport's lifetime.
	Start(ctx context.Context) error
	// Stop closes the link. Partially received frames are dropped.
	Stop() error
	// IsConnected returns true if the link is currently open.
	IsConnected() bool
	// SetFrameHandler sets the callback for decoded frames.
	SetFrameHandler(fn FrameHandler)
	// SetStateHandler sets the callback for link state changes.
	SetStateHandler(fn StateHandler)
	// SendFrame encodes and writes one frame. Concurrent calls never
	// interleave their bytes on the wire.
	SendFrame(topicID uint16, payload []byte) error
}

// Bus is the host-side publish/subscribe message bus.
type Bus interface {
	// Start connects to the bus.
	Start(ctx context.Context) error
	// Stop disconnects from the bus.
	Stop() error
	// IsConnected returns true if the bus is currently connected.
	IsConnected() bool
	// Publish sends payload on topic.
	Publish(topic string, payload []byte, retain bool) error
	// Subscribe registers fn for messages on topic. Subscriptions made
	// before Start or lost on reconnect are (re)established on connect.
	Subscribe(topic string, fn MessageHandler) error
	// SetStateHandler sets the callback for bus state changes.
	SetStateHandler(fn StateHandler)
}

// FrameHandler is called for every validated frame received from the device.
type FrameHandler func(frame *codec.Frame)

// MessageHandler is called for every message received from the bus. topic is
// the bus topic with any configured prefix removed.
type MessageHandler func(topic string, payload []byte)

// StateHandler is called when a transport or bus changes state.
type StateHandler func(source any, event Event)

// Event represents transport state change events.
type Event int

const (
	// EventConnected is fired when the transport connects.
	EventConnected Event = iota
	// EventDisconnected is fired when the transport disconnects.
	EventDisconnected
	// EventReconnecting is fired when the transport is attempting to reconnect.
	EventReconnecting
)

func (e Event) String() string {
	switch e {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}
