package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kabili207/rosserial-go/core/clock"
	"github.com/kabili207/rosserial-go/core/codec"
	"github.com/kabili207/rosserial-go/core/params"
	"github.com/kabili207/rosserial-go/core/registry"
	"github.com/kabili207/rosserial-go/core/rosmsg"
	"github.com/kabili207/rosserial-go/transport"
)

// sentFrame is a frame written through mockLink.SendFrame.
type sentFrame struct {
	topicID uint16
	payload []byte
}

// mockLink implements transport.Transport for testing.
type mockLink struct {
	mu           sync.Mutex
	connected    bool
	sent         []sentFrame
	frameHandler transport.FrameHandler
	stateHandler transport.StateHandler
}

func newMockLink() *mockLink {
	return &mockLink{connected: true}
}

func (m *mockLink) Start(_ context.Context) error { return nil }
func (m *mockLink) Stop() error                   { return nil }

func (m *mockLink) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockLink) setConnected(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = v
}

func (m *mockLink) SetFrameHandler(fn transport.FrameHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frameHandler = fn
}

func (m *mockLink) SetStateHandler(fn transport.StateHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stateHandler = fn
}

func (m *mockLink) SendFrame(topicID uint16, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentFrame{topicID: topicID, payload: append([]byte{}, payload...)})
	return nil
}

func (m *mockLink) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *mockLink) lastSent() *sentFrame {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return nil
	}
	f := m.sent[len(m.sent)-1]
	return &f
}

// published is a message written through mockBus.Publish.
type published struct {
	topic   string
	payload []byte
	retain  bool
}

// mockBus implements transport.Bus for testing.
type mockBus struct {
	mu           sync.Mutex
	connected    bool
	published    []published
	subs         map[string]transport.MessageHandler
	subCalls     int
	stateHandler transport.StateHandler
}

func newMockBus() *mockBus {
	return &mockBus{connected: true, subs: make(map[string]transport.MessageHandler)}
}

func (m *mockBus) Start(_ context.Context) error { return nil }
func (m *mockBus) Stop() error                   { return nil }

func (m *mockBus) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockBus) Publish(topic string, payload []byte, retain bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, published{topic: topic, payload: payload, retain: retain})
	return nil
}

func (m *mockBus) Subscribe(topic string, fn transport.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[topic] = fn
	m.subCalls++
	return nil
}

func (m *mockBus) SetStateHandler(fn transport.StateHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stateHandler = fn
}

// setConnected flips the bus state and notifies the state handler.
func (m *mockBus) setConnected(connected bool) {
	m.mu.Lock()
	m.connected = connected
	fn := m.stateHandler
	m.mu.Unlock()
	if fn == nil {
		return
	}
	if connected {
		fn(m, transport.EventConnected)
	} else {
		fn(m, transport.EventDisconnected)
	}
}

// deliver simulates a bus message arriving on topic.
func (m *mockBus) deliver(topic string, payload []byte) bool {
	m.mu.Lock()
	fn := m.subs[topic]
	m.mu.Unlock()
	if fn == nil {
		return false
	}
	fn(topic, payload)
	return true
}

func (m *mockBus) find(topic string) *published {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.published) - 1; i >= 0; i-- {
		if m.published[i].topic == topic {
			p := m.published[i]
			return &p
		}
	}
	return nil
}

func newTestRouter(t *testing.T, cfg Config) (*Router, *mockLink, *mockBus) {
	t.Helper()
	link := newMockLink()
	bus := newMockBus()
	return New(cfg, link, bus), link, bus
}

func topicInfoFrame(dir uint16, id uint16, name, msgType string) *codec.Frame {
	info := rosmsg.TopicInfo{
		TopicID:     id,
		TopicName:   name,
		MessageType: msgType,
		MD5Sum:      "992ce8a1687cec8c8bd883ec73ca41d1",
		BufferSize:  512,
	}
	return &codec.Frame{TopicID: dir, Payload: rosmsg.Marshal(&info)}
}

// --- Setup Tests ---

func TestNew_InstallsHandlers(t *testing.T) {
	_, link, _ := newTestRouter(t, Config{})

	if link.frameHandler == nil {
		t.Error("expected frame handler to be installed")
	}
	if link.stateHandler == nil {
		t.Error("expected state handler to be installed")
	}
}

func TestNew_Defaults(t *testing.T) {
	r, _, _ := newTestRouter(t, Config{})

	if r.cfg.RequestInterval != DefaultRequestInterval {
		t.Errorf("RequestInterval = %v, want %v", r.cfg.RequestInterval, DefaultRequestInterval)
	}
	if r.cfg.LogTopic != DefaultLogTopic {
		t.Errorf("LogTopic = %q, want %q", r.cfg.LogTopic, DefaultLogTopic)
	}
	if r.Registry() == nil {
		t.Error("expected registry to be created")
	}
}

func TestRequestTopics(t *testing.T) {
	r, link, _ := newTestRouter(t, Config{})

	if err := r.RequestTopics(); err != nil {
		t.Fatalf("RequestTopics() error = %v", err)
	}

	sent := link.lastSent()
	if sent == nil {
		t.Fatal("expected topic request to be sent")
	}
	if sent.topicID != codec.TopicPublisher || len(sent.payload) != 0 {
		t.Errorf("sent %+v, want empty frame on topic 0", sent)
	}
	if got := r.Counters().Snapshot().TopicRequests; got != 1 {
		t.Errorf("TopicRequests = %d, want 1", got)
	}
}

func TestRequestTopics_NotConnected(t *testing.T) {
	r, link, _ := newTestRouter(t, Config{})
	link.setConnected(false)

	if err := r.RequestTopics(); !errors.Is(err, ErrNoLink) {
		t.Errorf("RequestTopics() error = %v, want %v", err, ErrNoLink)
	}
}

func TestLinkConnected_RequestsTopics(t *testing.T) {
	_, link, _ := newTestRouter(t, Config{})

	link.stateHandler(link, transport.EventConnected)

	if link.sentCount() != 1 || link.lastSent().topicID != codec.TopicPublisher {
		t.Errorf("expected one topic request after link connect, got %d frames", link.sentCount())
	}
}

func TestLinkDisconnected_ClearsTopics(t *testing.T) {
	r, link, _ := newTestRouter(t, Config{})
	r.HandleFrame(topicInfoFrame(codec.TopicPublisher, 100, "chatter", "std_msgs/String"))

	link.stateHandler(link, transport.EventDisconnected)

	if r.Registry().Len() != 0 {
		t.Errorf("expected registry to be cleared, has %d topics", r.Registry().Len())
	}
}

func TestLinkState_Callback(t *testing.T) {
	var events []transport.Event
	_, link, _ := newTestRouter(t, Config{OnLinkState: func(e transport.Event) {
		events = append(events, e)
	}})

	link.stateHandler(link, transport.EventConnected)
	link.stateHandler(link, transport.EventDisconnected)

	if len(events) != 2 || events[0] != transport.EventConnected || events[1] != transport.EventDisconnected {
		t.Errorf("OnLinkState saw %v", events)
	}
}

// --- Publisher Tests ---

func TestHandleFrame_PublisherSetup(t *testing.T) {
	r, _, bus := newTestRouter(t, Config{})

	r.HandleFrame(topicInfoFrame(codec.TopicPublisher, 100, "/chatter", "std_msgs/String"))

	info, ok := r.Registry().Publisher(100)
	if !ok {
		t.Fatal("expected publisher to be registered")
	}
	if info.TopicName != "/chatter" {
		t.Errorf("TopicName = %q, want /chatter", info.TopicName)
	}

	meta := bus.find("chatter/meta")
	if meta == nil {
		t.Fatal("expected metadata to be published")
	}
	if !meta.retain {
		t.Error("expected metadata to be retained")
	}
	var got TopicMeta
	if err := json.Unmarshal(meta.payload, &got); err != nil {
		t.Fatalf("unmarshal metadata: %v", err)
	}
	want := TopicMeta{TopicID: 100, MessageType: "std_msgs/String", MD5Sum: "992ce8a1687cec8c8bd883ec73ca41d1", BufferSize: 512}
	if got != want {
		t.Errorf("metadata = %+v, want %+v", got, want)
	}
}

func TestHandleFrame_PublisherRepeatedAnnouncement(t *testing.T) {
	r, _, bus := newTestRouter(t, Config{})

	r.HandleFrame(topicInfoFrame(codec.TopicPublisher, 100, "chatter", "std_msgs/String"))
	r.HandleFrame(topicInfoFrame(codec.TopicPublisher, 100, "chatter", "std_msgs/String"))

	if len(bus.published) != 1 {
		t.Errorf("expected metadata published once, got %d publishes", len(bus.published))
	}
}

func TestBusReconnect_RepublishesMeta(t *testing.T) {
	r, _, bus := newTestRouter(t, Config{})
	bus.setConnected(false)

	r.HandleFrame(topicInfoFrame(codec.TopicPublisher, 100, "/imu", "sensor_msgs/Imu"))
	r.HandleFrame(topicInfoFrame(codec.TopicSubscriber, 101, "/led", "std_msgs/Bool"))
	if meta := bus.find("imu/meta"); meta != nil {
		t.Fatal("metadata must not be published while the bus is down")
	}

	// A repeated announcement is unchanged and does not publish either.
	r.HandleFrame(topicInfoFrame(codec.TopicPublisher, 100, "/imu", "sensor_msgs/Imu"))

	bus.setConnected(true)

	meta := bus.find("imu/meta")
	if meta == nil {
		t.Fatal("expected metadata to be published after bus reconnect")
	}
	if !meta.retain {
		t.Error("expected metadata to be retained")
	}
	var got TopicMeta
	if err := json.Unmarshal(meta.payload, &got); err != nil {
		t.Fatalf("unmarshal metadata: %v", err)
	}
	if got.TopicID != 100 || got.MessageType != "sensor_msgs/Imu" {
		t.Errorf("metadata = %+v", got)
	}
	if bus.find("led/meta") != nil {
		t.Error("subscribers must not get metadata")
	}
}

func TestBusDisconnect_NoPublish(t *testing.T) {
	r, _, bus := newTestRouter(t, Config{})
	r.HandleFrame(topicInfoFrame(codec.TopicPublisher, 100, "imu", "sensor_msgs/Imu"))

	bus.mu.Lock()
	before := len(bus.published)
	bus.mu.Unlock()

	bus.setConnected(false)

	bus.mu.Lock()
	after := len(bus.published)
	bus.mu.Unlock()
	if after != before {
		t.Errorf("published %d messages on disconnect", after-before)
	}
}

func TestHandleFrame_ReservedTopicRejected(t *testing.T) {
	r, _, _ := newTestRouter(t, Config{})

	r.HandleFrame(topicInfoFrame(codec.TopicPublisher, codec.TopicLog, "bad", "std_msgs/String"))

	if r.Registry().Len() != 0 {
		t.Error("expected reserved topic id to be rejected")
	}
	if got := r.Counters().Snapshot().Dropped; got != 1 {
		t.Errorf("Dropped = %d, want 1", got)
	}
}

func TestHandleFrame_InvalidTopicInfo(t *testing.T) {
	r, _, _ := newTestRouter(t, Config{})

	r.HandleFrame(&codec.Frame{TopicID: codec.TopicPublisher, Payload: []byte{0x64, 0x00, 0xFF}})

	if got := r.Counters().Snapshot().DecodeErrors; got != 1 {
		t.Errorf("DecodeErrors = %d, want 1", got)
	}
	if r.Registry().Len() != 0 {
		t.Error("expected nothing registered")
	}
}

func TestHandleFrame_DataPublished(t *testing.T) {
	r, _, bus := newTestRouter(t, Config{})
	r.HandleFrame(topicInfoFrame(codec.TopicPublisher, 101, "/sensors/imu", "sensor_msgs/Imu"))

	payload := []byte{0x01, 0xFF, 0xFE, 0x02}
	r.HandleFrame(&codec.Frame{TopicID: 101, Payload: payload})

	msg := bus.find("sensors/imu")
	if msg == nil {
		t.Fatal("expected data to be published")
	}
	if !bytes.Equal(msg.payload, payload) {
		t.Errorf("payload = % x, want % x", msg.payload, payload)
	}
	if msg.retain {
		t.Error("data messages must not be retained")
	}
	if got := r.Counters().Snapshot().Published; got != 1 {
		t.Errorf("Published = %d, want 1", got)
	}
}

func TestHandleFrame_DataBusDisconnected(t *testing.T) {
	r, _, bus := newTestRouter(t, Config{})
	r.HandleFrame(topicInfoFrame(codec.TopicPublisher, 101, "imu", "sensor_msgs/Imu"))
	bus.connected = false

	r.HandleFrame(&codec.Frame{TopicID: 101, Payload: []byte{0x01}})

	if bus.find("imu") != nil {
		t.Error("expected no publish while bus is down")
	}
	if got := r.Counters().Snapshot().Dropped; got != 1 {
		t.Errorf("Dropped = %d, want 1", got)
	}
}

func TestHandleFrame_UnknownTopicRateLimited(t *testing.T) {
	r, link, _ := newTestRouter(t, Config{RequestInterval: 5 * time.Second})
	now := time.Unix(1000, 0)
	r.nowFn = func() time.Time { return now }

	r.HandleFrame(&codec.Frame{TopicID: 125, Payload: []byte{0x01}})
	if link.sentCount() != 1 {
		t.Fatalf("expected topic request after unknown topic, got %d frames", link.sentCount())
	}

	now = now.Add(time.Second)
	r.HandleFrame(&codec.Frame{TopicID: 125, Payload: []byte{0x01}})
	if link.sentCount() != 1 {
		t.Errorf("expected request to be rate-limited, got %d frames", link.sentCount())
	}

	now = now.Add(5 * time.Second)
	r.HandleFrame(&codec.Frame{TopicID: 125, Payload: []byte{0x01}})
	if link.sentCount() != 2 {
		t.Errorf("expected second request after interval, got %d frames", link.sentCount())
	}

	if got := r.Counters().Snapshot().UnknownTopics; got != 3 {
		t.Errorf("UnknownTopics = %d, want 3", got)
	}
}

// --- Subscriber Tests ---

func TestHandleFrame_SubscriberForwarding(t *testing.T) {
	r, link, bus := newTestRouter(t, Config{})

	r.HandleFrame(topicInfoFrame(codec.TopicSubscriber, 110, "/cmd_vel", "geometry_msgs/Twist"))

	if !bus.deliver("cmd_vel", []byte{0x0A, 0x0B}) {
		t.Fatal("expected bus subscription for cmd_vel")
	}

	sent := link.lastSent()
	if sent == nil || sent.topicID != 110 {
		t.Fatalf("expected frame on topic 110, got %+v", sent)
	}
	if !bytes.Equal(sent.payload, []byte{0x0A, 0x0B}) {
		t.Errorf("payload = % x, want 0a 0b", sent.payload)
	}
	if got := r.Counters().Snapshot().Forwarded; got != 1 {
		t.Errorf("Forwarded = %d, want 1", got)
	}
}

func TestHandleFrame_SubscriberRenegotiated(t *testing.T) {
	r, link, bus := newTestRouter(t, Config{})

	r.HandleFrame(topicInfoFrame(codec.TopicSubscriber, 110, "led", "std_msgs/Bool"))
	r.HandleFrame(topicInfoFrame(codec.TopicSubscriber, 112, "led", "std_msgs/Bool"))

	if bus.subCalls != 1 {
		t.Errorf("expected a single bus subscription, got %d", bus.subCalls)
	}

	bus.deliver("led", []byte{0x01})
	if sent := link.lastSent(); sent == nil || sent.topicID != 112 {
		t.Errorf("expected forward on renegotiated id 112, got %+v", sent)
	}
}

func TestForwardToDevice_LinkDown(t *testing.T) {
	r, link, bus := newTestRouter(t, Config{})
	r.HandleFrame(topicInfoFrame(codec.TopicSubscriber, 110, "led", "std_msgs/Bool"))
	link.setConnected(false)

	bus.deliver("led", []byte{0x01})

	if link.sentCount() != 0 {
		t.Errorf("expected no frames while link is down, got %d", link.sentCount())
	}
	if got := r.Counters().Snapshot().Dropped; got != 1 {
		t.Errorf("Dropped = %d, want 1", got)
	}
}

// --- Control Topic Tests ---

func TestHandleFrame_TimeRequest(t *testing.T) {
	r, link, _ := newTestRouter(t, Config{Clock: clock.New()})

	before := time.Now().Unix()
	r.HandleFrame(&codec.Frame{TopicID: codec.TopicTime, Payload: make([]byte, 8)})

	sent := link.lastSent()
	if sent == nil || sent.topicID != codec.TopicTime {
		t.Fatalf("expected time reply, got %+v", sent)
	}
	var reply rosmsg.Time
	if err := reply.UnmarshalROS(sent.payload); err != nil {
		t.Fatalf("UnmarshalROS() error = %v", err)
	}
	after := time.Now().Unix()
	if int64(reply.Sec) < before || int64(reply.Sec) > after {
		t.Errorf("Sec = %d, want between %d and %d", reply.Sec, before, after)
	}
}

func TestHandleFrame_ParamRequest(t *testing.T) {
	store, err := params.FromMap(map[string]any{
		"gain":  []any{int64(1), int64(2)},
		"name":  "rover",
		"scale": 0.5,
	})
	if err != nil {
		t.Fatalf("FromMap() error = %v", err)
	}
	r, link, _ := newTestRouter(t, Config{Params: store})

	tests := []struct {
		name string
		want rosmsg.RequestParamResponse
	}{
		{"~gain", rosmsg.RequestParamResponse{Ints: []int32{1, 2}}},
		{"/name", rosmsg.RequestParamResponse{Strings: []string{"rover"}}},
		{"scale", rosmsg.RequestParamResponse{Floats: []float32{0.5}}},
		{"missing", rosmsg.RequestParamResponse{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := rosmsg.RequestParamRequest{Name: tt.name}
			r.HandleFrame(&codec.Frame{TopicID: codec.TopicParameterRequest, Payload: rosmsg.Marshal(&req)})

			sent := link.lastSent()
			if sent == nil || sent.topicID != codec.TopicParameterRequest {
				t.Fatalf("expected parameter reply, got %+v", sent)
			}
			want := rosmsg.Marshal(&tt.want)
			if !bytes.Equal(sent.payload, want) {
				t.Errorf("reply = % x, want % x", sent.payload, want)
			}
		})
	}
}

func TestHandleFrame_ParamRequestNoStore(t *testing.T) {
	r, link, _ := newTestRouter(t, Config{})

	req := rosmsg.RequestParamRequest{Name: "anything"}
	r.HandleFrame(&codec.Frame{TopicID: codec.TopicParameterRequest, Payload: rosmsg.Marshal(&req)})

	sent := link.lastSent()
	if sent == nil {
		t.Fatal("expected parameter reply")
	}
	var resp rosmsg.RequestParamResponse
	if err := resp.UnmarshalROS(sent.payload); err != nil {
		t.Fatalf("UnmarshalROS() error = %v", err)
	}
	if !resp.IsEmpty() {
		t.Errorf("expected empty response, got %+v", resp)
	}
}

func TestHandleFrame_DeviceLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	r, _, bus := newTestRouter(t, Config{Logger: logger})

	msg := rosmsg.Log{Level: rosmsg.LogWarn, Msg: "battery low"}
	r.HandleFrame(&codec.Frame{TopicID: codec.TopicLog, Payload: rosmsg.Marshal(&msg)})

	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "battery low") {
		t.Errorf("device log not re-logged at WARN: %q", out)
	}
	if !strings.Contains(out, "device.level=WARN") {
		t.Errorf("device log missing ROS level attribute: %q", out)
	}

	pub := bus.find(DefaultLogTopic)
	if pub == nil {
		t.Fatal("expected device log to be published")
	}
	if string(pub.payload) != "battery low" {
		t.Errorf("published %q, want %q", pub.payload, "battery low")
	}
}

func TestHandleFrame_DeviceLogLevels(t *testing.T) {
	tests := []struct {
		level uint8
		want  string
	}{
		{rosmsg.LogDebug, "device.level=DEBUG"},
		{rosmsg.LogInfo, "device.level=INFO"},
		{rosmsg.LogError, "device.level=ERROR"},
		{rosmsg.LogFatal, "device.level=FATAL"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
			r, _, _ := newTestRouter(t, Config{Logger: logger})

			msg := rosmsg.Log{Level: tt.level, Msg: "x"}
			r.HandleFrame(&codec.Frame{TopicID: codec.TopicLog, Payload: rosmsg.Marshal(&msg)})

			if out := buf.String(); !strings.Contains(out, tt.want) {
				t.Errorf("log output %q missing %q", out, tt.want)
			}
		})
	}
}

func TestHandleFrame_ServiceUnsupported(t *testing.T) {
	r, link, bus := newTestRouter(t, Config{})

	for _, id := range []uint16{2, 3, 4, 5} {
		r.HandleFrame(&codec.Frame{TopicID: id})
	}

	if got := r.Counters().Snapshot().Dropped; got != 4 {
		t.Errorf("Dropped = %d, want 4", got)
	}
	if link.sentCount() != 0 || len(bus.published) != 0 {
		t.Error("service frames must not produce traffic")
	}
}

func TestHandleFrame_TxStopAndUnhandledControl(t *testing.T) {
	r, link, _ := newTestRouter(t, Config{})

	r.HandleFrame(&codec.Frame{TopicID: codec.TopicTxStop})
	r.HandleFrame(&codec.Frame{TopicID: 50})

	if link.sentCount() != 0 {
		t.Errorf("expected no replies, got %d frames", link.sentCount())
	}
	if got := r.Counters().Snapshot().Dropped; got != 1 {
		t.Errorf("Dropped = %d, want 1", got)
	}
}

func TestHandleFrame_OnFrame(t *testing.T) {
	var seen []uint16
	r, _, _ := newTestRouter(t, Config{OnFrame: func(f *codec.Frame) {
		seen = append(seen, f.TopicID)
	}})

	r.HandleFrame(&codec.Frame{TopicID: codec.TopicTxStop})
	r.HandleFrame(&codec.Frame{TopicID: 200})

	if len(seen) != 2 || seen[0] != codec.TopicTxStop || seen[1] != 200 {
		t.Errorf("OnFrame saw %v", seen)
	}
	if got := r.Counters().Snapshot().FramesIn; got != 2 {
		t.Errorf("FramesIn = %d, want 2", got)
	}
}

func TestSharedRegistry(t *testing.T) {
	reg := registry.New(codec.IsReservedTopic)
	r, _, _ := newTestRouter(t, Config{Registry: reg})

	r.HandleFrame(topicInfoFrame(codec.TopicPublisher, 100, "a", "std_msgs/Empty"))

	if _, ok := reg.Publisher(100); !ok {
		t.Error("expected router to use the supplied registry")
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level uint8
		want  slog.Level
	}{
		{rosmsg.LogDebug, slog.LevelDebug},
		{rosmsg.LogInfo, slog.LevelInfo},
		{rosmsg.LogWarn, slog.LevelWarn},
		{rosmsg.LogError, slog.LevelError},
		{rosmsg.LogFatal, slog.LevelError},
	}
	for _, tt := range tests {
		if got := slogLevel(tt.level); got != tt.want {
			t.Errorf("slogLevel(%d) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestCounters_Reset(t *testing.T) {
	var c Counters
	c.FramesIn.Add(3)
	c.Dropped.Add(1)

	c.Reset()

	if s := c.Snapshot(); s != (CountersSnapshot{}) {
		t.Errorf("Snapshot() after Reset = %+v", s)
	}
}
