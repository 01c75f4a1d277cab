package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// State is the position of the decoder within the in-flight frame.
type State int

const (
	// StateAwaitingSync scans for the next sync byte.
	StateAwaitingSync State = iota
	// StateReadingHeader waits for and validates the fixed-size header.
	StateReadingHeader
	// StateReadingPayload waits for the declared number of payload bytes.
	StateReadingPayload
	// StateReadingChecksum waits for and validates the trailing checksum.
	StateReadingChecksum
)

func (s State) String() string {
	switch s {
	case StateAwaitingSync:
		return "awaiting-sync"
	case StateReadingHeader:
		return "reading-header"
	case StateReadingPayload:
		return "reading-payload"
	case StateReadingChecksum:
		return "reading-checksum"
	default:
		return "unknown"
	}
}

// ErrorHandler receives recovered framing failures. It is called from the
// decoding goroutine and must not retain the decoder.
type ErrorHandler func(err error)

// DecoderConfig configures a Decoder.
type DecoderConfig struct {
	// MaxPayloadSize bounds the declared payload length. Headers announcing
	// more are treated like a corrupt header. Defaults to DefaultMaxPayloadSize
	// and is capped at MaxPayloadLength.
	MaxPayloadSize int
	// OnError is notified of every discarded header or frame. Optional.
	OnError ErrorHandler
	// Counters receives decoder statistics. If nil, the decoder keeps its own.
	Counters *Counters
}

// Decoder turns a byte stream into validated frames.
//
// The decoder keeps the parse state of the in-flight frame between calls, so
// bytes may be delivered in arbitrarily small pieces. It is not safe for
// concurrent use; one decoder belongs to one link.
type Decoder struct {
	maxPayload int
	onError    ErrorHandler
	counters   *Counters

	state   State
	length  int
	topicID uint16

	pending []byte // buffer used by Feed
}

// NewDecoder creates a decoder in StateAwaitingSync.
func NewDecoder(cfg DecoderConfig) *Decoder {
	if cfg.MaxPayloadSize <= 0 {
		cfg.MaxPayloadSize = DefaultMaxPayloadSize
	}
	if cfg.MaxPayloadSize > MaxPayloadLength {
		cfg.MaxPayloadSize = MaxPayloadLength
	}
	if cfg.Counters == nil {
		cfg.Counters = &Counters{}
	}
	return &Decoder{
		maxPayload: cfg.MaxPayloadSize,
		onError:    cfg.OnError,
		counters:   cfg.Counters,
	}
}

// State returns the decoder's current state.
func (d *Decoder) State() State {
	return d.state
}

// Counters returns the decoder's statistics.
func (d *Decoder) Counters() *Counters {
	return d.counters
}

// Buffered returns the number of bytes held by Feed for the next call.
func (d *Decoder) Buffered() int {
	return len(d.pending)
}

// Reset drops the in-flight frame and any bytes buffered by Feed.
func (d *Decoder) Reset() {
	d.state = StateAwaitingSync
	d.length = 0
	d.topicID = 0
	d.pending = d.pending[:0]
}

// Feed appends newly received bytes to the decoder's private buffer and
// returns every frame that could be completed. Partial trailing bytes stay
// buffered for the next call.
func (d *Decoder) Feed(p []byte) []*Frame {
	d.pending = append(d.pending, p...)
	frames, rest := d.Decode(d.pending)
	n := copy(d.pending, rest)
	d.pending = d.pending[:n]
	return frames
}

// Decode extracts frames from the front of buf.
// Returns the decoded frames and the unconsumed remainder, which must be
// passed back (with any newly received bytes appended) on the next call.
// Bytes belonging to completed or discarded frames are consumed; bytes of the
// in-flight frame are left in the remainder. Returned frames never alias buf.
func (d *Decoder) Decode(buf []byte) ([]*Frame, []byte) {
	var frames []*Frame
	for {
		switch d.state {
		case StateAwaitingSync:
			idx := bytes.IndexByte(buf, SyncByte)
			if idx < 0 {
				d.discard(len(buf))
				return frames, buf[len(buf):]
			}
			d.discard(idx)
			buf = buf[idx:]
			d.state = StateReadingHeader

		case StateReadingHeader:
			if len(buf) >= 2 && buf[1] != ProtocolVersion2 {
				buf = d.resync(buf, fmt.Errorf("%w: %#02x", ErrWrongProtocolVersion, buf[1]))
				d.counters.VersionErrors.Add(1)
				continue
			}
			if len(buf) < HeaderSize {
				return frames, buf
			}
			if !ValidateChecksum(buf[4], buf[2:4]) {
				buf = d.resync(buf, fmt.Errorf("%w: computed %d", ErrHeaderChecksum, Sum(buf[2:5])))
				d.counters.HeaderErrors.Add(1)
				continue
			}
			length := int(binary.LittleEndian.Uint16(buf[2:4]))
			if length > d.maxPayload {
				buf = d.resync(buf, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, length, d.maxPayload))
				d.counters.OversizeFrames.Add(1)
				continue
			}
			d.length = length
			d.topicID = binary.LittleEndian.Uint16(buf[5:7])
			d.state = StateReadingPayload

		case StateReadingPayload:
			if len(buf) < HeaderSize+d.length {
				return frames, buf
			}
			d.state = StateReadingChecksum

		case StateReadingChecksum:
			end := HeaderSize + d.length + FrameChecksumSize
			if len(buf) < end {
				return frames, buf
			}
			payload := buf[HeaderSize : HeaderSize+d.length]
			checksum := buf[end-1]
			if !ValidateChecksum(checksum, buf[5:7], payload) {
				d.report(fmt.Errorf("%w: topic %d, computed %d", ErrFrameChecksum, d.topicID, Sum(buf[5:end])))
				d.counters.ChecksumErrors.Add(1)
				d.discard(end)
			} else {
				frame := &Frame{
					TopicID: d.topicID,
					Payload: make([]byte, d.length),
				}
				copy(frame.Payload, payload)
				frames = append(frames, frame)
				d.counters.FramesDecoded.Add(1)
			}
			buf = buf[end:]
			d.state = StateAwaitingSync
			d.length = 0
			d.topicID = 0
		}
	}
}

// resync drops the sync byte at the front of buf and returns to scanning.
// The rest of the presumed frame is kept since its true boundaries are unknown.
func (d *Decoder) resync(buf []byte, err error) []byte {
	d.report(err)
	d.discard(1)
	d.state = StateAwaitingSync
	return buf[1:]
}

func (d *Decoder) discard(n int) {
	if n > 0 {
		d.counters.BytesDiscarded.Add(uint64(n))
	}
}

func (d *Decoder) report(err error) {
	if d.onError != nil {
		d.onError(err)
	}
}
