package rosmsg

import "math"

// TopicInfo is rosserial_msgs/TopicInfo, sent by the device on the publisher
// and subscriber topics to announce its endpoints.
type TopicInfo struct {
	TopicID     uint16
	TopicName   string
	MessageType string
	MD5Sum      string
	BufferSize  int32
}

// MarshalROS implements Message.
func (m *TopicInfo) MarshalROS(b []byte) []byte {
	b = appendUint16(b, m.TopicID)
	b = appendString(b, m.TopicName)
	b = appendString(b, m.MessageType)
	b = appendString(b, m.MD5Sum)
	return appendUint32(b, uint32(m.BufferSize))
}

// UnmarshalROS implements Message.
func (m *TopicInfo) UnmarshalROS(data []byte) error {
	r := reader{data: data}
	m.TopicID = r.uint16("topic_id")
	m.TopicName = r.string("topic_name")
	m.MessageType = r.string("message_type")
	m.MD5Sum = r.string("md5sum")
	m.BufferSize = r.int32("buffer_size")
	return r.done()
}

// Log levels of rosserial_msgs/Log.
const (
	LogDebug uint8 = 0
	LogInfo  uint8 = 1
	LogWarn  uint8 = 2
	LogError uint8 = 3
	LogFatal uint8 = 4
)

// Log is rosserial_msgs/Log, a log line emitted by the device.
type Log struct {
	Level uint8
	Msg   string
}

// MarshalROS implements Message.
func (m *Log) MarshalROS(b []byte) []byte {
	b = append(b, m.Level)
	return appendString(b, m.Msg)
}

// UnmarshalROS implements Message.
func (m *Log) UnmarshalROS(data []byte) error {
	r := reader{data: data}
	m.Level = r.uint8("level")
	m.Msg = r.string("msg")
	return r.done()
}

// LevelName returns the ROS name of the log level.
func (m *Log) LevelName() string {
	switch m.Level {
	case LogDebug:
		return "DEBUG"
	case LogInfo:
		return "INFO"
	case LogWarn:
		return "WARN"
	case LogError:
		return "ERROR"
	case LogFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Time is std_msgs/Time, used to answer the device's time requests.
type Time struct {
	Sec  uint32
	Nsec uint32
}

// MarshalROS implements Message.
func (m *Time) MarshalROS(b []byte) []byte {
	b = appendUint32(b, m.Sec)
	return appendUint32(b, m.Nsec)
}

// UnmarshalROS implements Message.
func (m *Time) UnmarshalROS(data []byte) error {
	r := reader{data: data}
	m.Sec = r.uint32("secs")
	m.Nsec = r.uint32("nsecs")
	return r.done()
}

// RequestParamRequest is the request half of rosserial_msgs/RequestParam.
type RequestParamRequest struct {
	Name string
}

// MarshalROS implements Message.
func (m *RequestParamRequest) MarshalROS(b []byte) []byte {
	return appendString(b, m.Name)
}

// UnmarshalROS implements Message.
func (m *RequestParamRequest) UnmarshalROS(data []byte) error {
	r := reader{data: data}
	m.Name = r.string("name")
	return r.done()
}

// RequestParamResponse is the response half of rosserial_msgs/RequestParam.
type RequestParamResponse struct {
	Ints    []int32
	Floats  []float32
	Strings []string
}

// MarshalROS implements Message.
func (m *RequestParamResponse) MarshalROS(b []byte) []byte {
	b = appendUint32(b, uint32(len(m.Ints)))
	for _, v := range m.Ints {
		b = appendUint32(b, uint32(v))
	}
	b = appendUint32(b, uint32(len(m.Floats)))
	for _, v := range m.Floats {
		b = appendUint32(b, math.Float32bits(v))
	}
	b = appendUint32(b, uint32(len(m.Strings)))
	for _, s := range m.Strings {
		b = appendString(b, s)
	}
	return b
}

// UnmarshalROS implements Message.
func (m *RequestParamResponse) UnmarshalROS(data []byte) error {
	r := reader{data: data}

	m.Ints = nil
	if n := r.count("ints", 4); n > 0 {
		m.Ints = make([]int32, n)
		for i := range m.Ints {
			m.Ints[i] = r.int32("ints")
		}
	}

	m.Floats = nil
	if n := r.count("floats", 4); n > 0 {
		m.Floats = make([]float32, n)
		for i := range m.Floats {
			m.Floats[i] = r.float32("floats")
		}
	}

	m.Strings = nil
	if n := r.count("strings", 4); n > 0 {
		m.Strings = make([]string, n)
		for i := range m.Strings {
			m.Strings[i] = r.string("strings")
		}
	}

	return r.done()
}

// IsEmpty reports whether the response carries no values, which the device
// treats as "parameter not found".
func (m *RequestParamResponse) IsEmpty() bool {
	return len(m.Ints) == 0 && len(m.Floats) == 0 && len(m.Strings) == 0
}
