// Package codec implements the rosserial wire framing.
//
// Every message on the serial link is carried in a frame:
//
//	[0xFF][0xFE][len LE u16][len checksum][topic id LE u16][payload][checksum]
//
// The length checksum covers the two length bytes, the trailing checksum covers
// the topic id and the payload. Both use the rosserial one's-complement style
// sum: 255 - (sum mod 256).
package codec

import (
	"errors"
	"fmt"
)

const (
	// SyncByte marks the start of every frame.
	SyncByte byte = 0xFF
	// ProtocolVersion2 is the protocol version byte following the sync marker
	// (rosserial "groovy" and later).
	ProtocolVersion2 byte = 0xFE

	// HeaderSize is the number of bytes before the payload:
	// sync, version, length (2), length checksum, topic id (2).
	HeaderSize = 7
	// FrameChecksumSize is the size of the trailing checksum.
	FrameChecksumSize = 1
	// FrameOverhead is the number of non-payload bytes in a frame.
	FrameOverhead = HeaderSize + FrameChecksumSize

	// MaxPayloadLength is the largest payload the length field can express.
	MaxPayloadLength = 0xFFFF
	// DefaultMaxPayloadSize is the decoder's default limit on declared payload
	// lengths. Frames announcing more are rejected before any payload bytes
	// are buffered.
	DefaultMaxPayloadSize = 2048
)

// Reserved topic ids, shared with rosserial_msgs/TopicInfo.
const (
	TopicPublisher        uint16 = 0
	TopicSubscriber       uint16 = 1
	TopicServiceServer    uint16 = 2
	TopicServiceClient    uint16 = 4
	TopicParameterRequest uint16 = 6
	TopicLog              uint16 = 7
	TopicTime             uint16 = 10
	TopicTxStop           uint16 = 11

	// FirstUserTopic is the lowest id rosserial clients assign to
	// application publishers and subscribers.
	FirstUserTopic uint16 = 100
)

var (
	// ErrPayloadTooLarge is returned by the encoder when a payload does not
	// fit the 16-bit length field.
	ErrPayloadTooLarge = errors.New("payload exceeds maximum frame length")

	// Decoder diagnostics. These are never returned to callers; they are
	// passed to an ErrorHandler and counted.
	ErrWrongProtocolVersion = errors.New("wrong protocol version")
	ErrHeaderChecksum       = errors.New("length checksum mismatch")
	ErrFrameTooLarge        = errors.New("declared payload length exceeds limit")
	ErrFrameChecksum        = errors.New("frame checksum mismatch")
)

// Frame is a single validated rosserial message.
type Frame struct {
	TopicID uint16
	Payload []byte
}

// Encode returns the wire representation of the frame.
func (f *Frame) Encode() ([]byte, error) {
	return EncodeFrame(f.TopicID, f.Payload)
}

// IsReserved reports whether the frame travels on a protocol control topic.
func (f *Frame) IsReserved() bool {
	return IsReservedTopic(f.TopicID)
}

func (f *Frame) String() string {
	return fmt.Sprintf("frame{topic=%d len=%d}", f.TopicID, len(f.Payload))
}

// IsReservedTopic reports whether id is below the application topic range.
func IsReservedTopic(id uint16) bool {
	return id < FirstUserTopic
}
