package codec

import (
	"encoding/binary"
	"fmt"
)

// EncodeFrame encodes a payload for the given topic into a rosserial frame.
// Frame format: [0xFF][0xFE][len LE][len checksum][topic LE][payload][checksum]
func EncodeFrame(topicID uint16, payload []byte) ([]byte, error) {
	return AppendFrame(make([]byte, 0, FrameOverhead+len(payload)), topicID, payload)
}

// AppendFrame appends the encoded frame to dst and returns the extended slice.
// dst is returned unchanged when the payload is too large.
func AppendFrame(dst []byte, topicID uint16, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadLength {
		return dst, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}

	var lengthBytes, topicBytes [2]byte
	binary.LittleEndian.PutUint16(lengthBytes[:], uint16(len(payload)))
	binary.LittleEndian.PutUint16(topicBytes[:], topicID)

	dst = append(dst, SyncByte, ProtocolVersion2)
	dst = append(dst, lengthBytes[:]...)
	dst = append(dst, Checksum(lengthBytes[:]))
	dst = append(dst, topicBytes[:]...)
	dst = append(dst, payload...)
	dst = append(dst, Checksum(topicBytes[:], payload))
	return dst, nil
}

// RequestTopics returns the frame asking the device to announce its
// publishers and subscribers: an empty message on the publisher topic.
func RequestTopics() []byte {
	frame, _ := EncodeFrame(TopicPublisher, nil)
	return frame
}
