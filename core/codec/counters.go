package codec

import "sync/atomic"

// Counters tracks decoder statistics using atomic counters.
// All fields are safe for concurrent access.
type Counters struct {
	FramesDecoded  atomic.Uint64 // Frames that passed both checksums
	VersionErrors  atomic.Uint64 // Sync bytes followed by an unknown protocol version
	HeaderErrors   atomic.Uint64 // Length checksum failures
	OversizeFrames atomic.Uint64 // Headers declaring more than the payload limit
	ChecksumErrors atomic.Uint64 // Frame checksum failures
	BytesDiscarded atomic.Uint64 // Bytes dropped while resynchronizing
}

// CountersSnapshot is a plain-value copy of Counters for reading.
type CountersSnapshot struct {
	FramesDecoded  uint64
	VersionErrors  uint64
	HeaderErrors   uint64
	OversizeFrames uint64
	ChecksumErrors uint64
	BytesDiscarded uint64
}

// Snapshot returns a point-in-time copy of all counters.
func (c *Counters) Snapshot() CountersSnapshot {
	return CountersSnapshot{
		FramesDecoded:  c.FramesDecoded.Load(),
		VersionErrors:  c.VersionErrors.Load(),
		HeaderErrors:   c.HeaderErrors.Load(),
		OversizeFrames: c.OversizeFrames.Load(),
		ChecksumErrors: c.ChecksumErrors.Load(),
		BytesDiscarded: c.BytesDiscarded.Load(),
	}
}

// Reset zeroes all counters.
func (c *Counters) Reset() {
	c.FramesDecoded.Store(0)
	c.VersionErrors.Store(0)
	c.HeaderErrors.Store(0)
	c.OversizeFrames.Store(0)
	c.ChecksumErrors.Store(0)
	c.BytesDiscarded.Store(0)
}

// Errors returns the total number of recovered framing failures.
func (s CountersSnapshot) Errors() uint64 {
	return s.VersionErrors + s.HeaderErrors + s.OversizeFrames + s.ChecksumErrors
}
