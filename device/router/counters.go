package router

import "sync/atomic"

// Counters tracks routing statistics using atomic counters.
// All fields are safe for concurrent access.
type Counters struct {
	FramesIn      atomic.Uint64 // Frames received from the device
	FramesOut     atomic.Uint64 // Frames sent to the device
	Published     atomic.Uint64 // Device messages published on the bus
	Forwarded     atomic.Uint64 // Bus messages forwarded to the device
	TopicRequests atomic.Uint64 // Topic list requests sent
	UnknownTopics atomic.Uint64 // Frames on unregistered application topics
	DecodeErrors  atomic.Uint64 // Control messages that failed to deserialize
	Dropped       atomic.Uint64 // Messages dropped for any other reason
}

// CountersSnapshot is a plain-value copy of Counters for reading.
type CountersSnapshot struct {
	FramesIn      uint64
	FramesOut     uint64
	Published     uint64
	Forwarded     uint64
	TopicRequests uint64
	UnknownTopics uint64
	DecodeErrors  uint64
	Dropped       uint64
}

// Snapshot returns a point-in-time copy of all counters.
func (c *Counters) Snapshot() CountersSnapshot {
	return CountersSnapshot{
		FramesIn:      c.FramesIn.Load(),
		FramesOut:     c.FramesOut.Load(),
		Published:     c.Published.Load(),
		Forwarded:     c.Forwarded.Load(),
		TopicRequests: c.TopicRequests.Load(),
		UnknownTopics: c.UnknownTopics.Load(),
		DecodeErrors:  c.DecodeErrors.Load(),
		Dropped:       c.Dropped.Load(),
	}
}

// Reset zeroes all counters.
func (c *Counters) Reset() {
	c.FramesIn.Store(0)
	c.FramesOut.Store(0)
	c.Published.Store(0)
	c.Forwarded.Store(0)
	c.TopicRequests.Store(0)
	c.UnknownTopics.Store(0)
	c.DecodeErrors.Store(0)
	c.Dropped.Store(0)
}
