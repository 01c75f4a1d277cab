// Package router dispatches rosserial frames between a device link and the
// host message bus.
//
// The Router sits between the serial transport and the bus, handling every
// frame the device sends:
//   - Topic negotiation: registering device publishers and subscribers
//   - Data forwarding: publishing application topics on the bus and sending
//     bus messages to device subscribers
//   - Time synchronization: answering time requests from the host clock
//   - Parameters: answering parameter requests from the parameter store
//   - Logging: re-logging device log messages and publishing them on the bus
//
// Frames on unknown application topics trigger a rate-limited topic list
// request so that a device which restarted mid-session is renegotiated.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kabili207/rosserial-go/core/clock"
	"github.com/kabili207/rosserial-go/core/codec"
	"github.com/kabili207/rosserial-go/core/params"
	"github.com/kabili207/rosserial-go/core/registry"
	"github.com/kabili207/rosserial-go/core/rosmsg"
	"github.com/kabili207/rosserial-go/transport"
)

const (
	// DefaultRequestInterval is the minimum time between topic list
	// requests triggered by unknown topics.
	DefaultRequestInterval = time.Second

	// DefaultLogTopic is the bus topic device log messages are published on.
	DefaultLogTopic = "rosout"

	// metaSuffix is appended to a publisher's bus topic for its retained
	// metadata message.
	metaSuffix = "/meta"
)

// ErrNoLink is returned when the router has no device link.
var ErrNoLink = errors.New("device link not connected")

// Config configures a Router.
type Config struct {
	// Registry holds the negotiated topics. A new one is created if nil.
	Registry *registry.Registry

	// Params answers device parameter requests. If nil, every request gets
	// an empty response.
	Params *params.Store

	// Clock answers device time requests. A new one is created if nil.
	Clock *clock.Clock

	// RequestInterval rate-limits topic list requests caused by unknown
	// topics. Default: 1 second.
	RequestInterval time.Duration

	// LogTopic is the bus topic for device log messages. Default: "rosout".
	LogTopic string

	// OnFrame is called for every frame before it is dispatched. Used to
	// feed the sync monitor.
	OnFrame func(frame *codec.Frame)

	// OnLinkState is called after the router has handled a link state
	// change. Optional.
	OnLinkState func(event transport.Event)

	// Logger for routing events. Falls back to slog.Default() if nil.
	Logger *slog.Logger
}

// TopicMeta is the retained metadata published for each device publisher.
type TopicMeta struct {
	TopicID     uint16 `json:"topic_id"`
	MessageType string `json:"type"`
	MD5Sum      string `json:"md5sum"`
	BufferSize  int32  `json:"buffer_size,omitempty"`
}

// Router handles frame dispatch for a single rosserial device.
type Router struct {
	cfg       Config
	log       *slog.Logger
	deviceLog *slog.Logger
	registry  *registry.Registry
	clock     *clock.Clock
	link      transport.Transport
	bus       transport.Bus
	counters  Counters

	mu          sync.Mutex
	subscribed  map[string]bool
	lastRequest time.Time

	// nowFn allows overriding time.Now() for testing.
	nowFn func() time.Time
}

// New creates a Router between link and bus. The router installs itself as
// the link's frame and state handler and as the bus state handler.
func New(cfg Config, link transport.Transport, bus transport.Bus) *Router {
	if cfg.Registry == nil {
		cfg.Registry = registry.New(codec.IsReservedTopic)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.RequestInterval <= 0 {
		cfg.RequestInterval = DefaultRequestInterval
	}
	if cfg.LogTopic == "" {
		cfg.LogTopic = DefaultLogTopic
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &Router{
		cfg:        cfg,
		log:        logger.WithGroup("router"),
		deviceLog:  logger.WithGroup("device"),
		registry:   cfg.Registry,
		clock:      cfg.Clock,
		link:       link,
		bus:        bus,
		subscribed: make(map[string]bool),
		nowFn:      time.Now,
	}

	link.SetFrameHandler(r.HandleFrame)
	link.SetStateHandler(r.handleLinkState)
	if bus != nil {
		bus.SetStateHandler(r.handleBusState)
	}
	return r
}

// Registry returns the router's topic registry.
func (r *Router) Registry() *registry.Registry {
	return r.registry
}

// Counters returns the router's counters.
func (r *Router) Counters() *Counters {
	return &r.counters
}

// RequestTopics sends a topic list request to the device.
func (r *Router) RequestTopics() error {
	r.mu.Lock()
	r.lastRequest = r.nowFn()
	r.mu.Unlock()

	if !r.link.IsConnected() {
		return ErrNoLink
	}
	if err := r.link.SendFrame(codec.TopicPublisher, nil); err != nil {
		return fmt.Errorf("requesting topics: %w", err)
	}
	r.counters.FramesOut.Add(1)
	r.counters.TopicRequests.Add(1)
	r.log.Debug("requested topics")
	return nil
}

// maybeRequestTopics requests topics unless a request was sent within the
// configured interval.
func (r *Router) maybeRequestTopics() {
	r.mu.Lock()
	recent := !r.lastRequest.IsZero() && r.nowFn().Sub(r.lastRequest) < r.cfg.RequestInterval
	r.mu.Unlock()

	if recent {
		return
	}
	if err := r.RequestTopics(); err != nil {
		r.log.Warn("failed to request topics", "error", err)
	}
}

// HandleFrame is the main dispatch entry point for frames from the device.
func (r *Router) HandleFrame(frame *codec.Frame) {
	r.counters.FramesIn.Add(1)

	if r.cfg.OnFrame != nil {
		r.cfg.OnFrame(frame)
	}

	switch frame.TopicID {
	case codec.TopicPublisher:
		r.handleTopicInfo(registry.Publisher, frame)
	case codec.TopicSubscriber:
		r.handleTopicInfo(registry.Subscriber, frame)
	case codec.TopicServiceServer, codec.TopicServiceServer + 1,
		codec.TopicServiceClient, codec.TopicServiceClient + 1:
		r.counters.Dropped.Add(1)
		r.log.Warn("services are not supported", "topic_id", frame.TopicID)
	case codec.TopicParameterRequest:
		r.handleParamRequest(frame)
	case codec.TopicLog:
		r.handleLog(frame)
	case codec.TopicTime:
		r.handleTime()
	case codec.TopicTxStop:
		r.log.Info("device stopped transmitting")
	default:
		if frame.IsReserved() {
			r.counters.Dropped.Add(1)
			r.log.Debug("ignoring unhandled control topic", "topic_id", frame.TopicID)
			return
		}
		r.handleData(frame)
	}
}

func (r *Router) handleLinkState(_ any, event transport.Event) {
	switch event {
	case transport.EventConnected:
		if err := r.RequestTopics(); err != nil {
			r.log.Warn("failed to request topics", "error", err)
		}
	case transport.EventDisconnected:
		// The device may come back with different topic ids.
		r.registry.Clear()
		r.log.Info("device link lost, cleared topics")
	}
	if r.cfg.OnLinkState != nil {
		r.cfg.OnLinkState(event)
	}
}

// handleBusState republishes the retained metadata of every known device
// publisher after the bus (re)connects, since announcements received while
// the bus was down were not published.
func (r *Router) handleBusState(_ any, event transport.Event) {
	if event != transport.EventConnected {
		return
	}
	for _, entry := range r.registry.Entries() {
		if entry.Direction == registry.Publisher {
			r.publishMeta(entry.Info)
		}
	}
}

func (r *Router) handleTopicInfo(dir registry.Direction, frame *codec.Frame) {
	var info rosmsg.TopicInfo
	if err := info.UnmarshalROS(frame.Payload); err != nil {
		r.counters.DecodeErrors.Add(1)
		r.log.Warn("invalid topic info", "direction", dir, "error", err)
		return
	}

	changed, err := r.registry.Add(dir, info)
	if err != nil {
		r.counters.Dropped.Add(1)
		r.log.Warn("rejected topic", "direction", dir, "topic", info.TopicName,
			"topic_id", info.TopicID, "error", err)
		return
	}
	if changed {
		r.log.Info("registered topic", "direction", dir, "topic", info.TopicName,
			"topic_id", info.TopicID, "type", info.MessageType)
	}

	switch dir {
	case registry.Publisher:
		if changed {
			r.publishMeta(info)
		}
	case registry.Subscriber:
		r.subscribe(info.TopicName)
	}
}

// publishMeta publishes the retained metadata for a device publisher.
func (r *Router) publishMeta(info rosmsg.TopicInfo) {
	if r.bus == nil || !r.bus.IsConnected() {
		return
	}
	data, err := json.Marshal(TopicMeta{
		TopicID:     info.TopicID,
		MessageType: info.MessageType,
		MD5Sum:      info.MD5Sum,
		BufferSize:  info.BufferSize,
	})
	if err != nil {
		r.log.Warn("failed to encode topic metadata", "topic", info.TopicName, "error", err)
		return
	}
	if err := r.bus.Publish(busTopic(info.TopicName)+metaSuffix, data, true); err != nil {
		r.log.Warn("failed to publish topic metadata", "topic", info.TopicName, "error", err)
	}
}

// subscribe forwards bus messages on name to the device subscriber of that
// name. Each bus topic is subscribed once; the target id is looked up per
// message so a renegotiated id takes effect immediately.
func (r *Router) subscribe(name string) {
	if r.bus == nil {
		return
	}
	topic := busTopic(name)

	r.mu.Lock()
	if r.subscribed[topic] {
		r.mu.Unlock()
		return
	}
	r.subscribed[topic] = true
	r.mu.Unlock()

	err := r.bus.Subscribe(topic, func(_ string, payload []byte) {
		r.forwardToDevice(name, payload)
	})
	if err != nil {
		r.mu.Lock()
		delete(r.subscribed, topic)
		r.mu.Unlock()
		r.log.Warn("failed to subscribe", "topic", topic, "error", err)
	}
}

func (r *Router) forwardToDevice(name string, payload []byte) {
	info, ok := r.registry.SubscriberByName(name)
	if !ok {
		r.counters.Dropped.Add(1)
		return
	}
	if !r.link.IsConnected() {
		r.counters.Dropped.Add(1)
		return
	}
	if err := r.link.SendFrame(info.TopicID, payload); err != nil {
		r.counters.Dropped.Add(1)
		r.log.Warn("failed to forward to device", "topic", name, "error", err)
		return
	}
	r.counters.FramesOut.Add(1)
	r.counters.Forwarded.Add(1)
}

func (r *Router) handleData(frame *codec.Frame) {
	info, ok := r.registry.Publisher(frame.TopicID)
	if !ok {
		r.counters.UnknownTopics.Add(1)
		r.log.Warn("frame on unknown topic", "topic_id", frame.TopicID)
		r.maybeRequestTopics()
		return
	}
	if r.bus == nil || !r.bus.IsConnected() {
		r.counters.Dropped.Add(1)
		return
	}
	if err := r.bus.Publish(busTopic(info.TopicName), frame.Payload, false); err != nil {
		r.counters.Dropped.Add(1)
		r.log.Warn("failed to publish", "topic", info.TopicName, "error", err)
		return
	}
	r.counters.Published.Add(1)
}

func (r *Router) handleLog(frame *codec.Frame) {
	var msg rosmsg.Log
	if err := msg.UnmarshalROS(frame.Payload); err != nil {
		r.counters.DecodeErrors.Add(1)
		r.log.Warn("invalid log message", "error", err)
		return
	}

	r.deviceLog.Log(context.Background(), slogLevel(msg.Level), msg.Msg, "level", msg.LevelName())

	if r.bus == nil || !r.bus.IsConnected() {
		return
	}
	if err := r.bus.Publish(r.cfg.LogTopic, []byte(msg.Msg), false); err != nil {
		r.log.Debug("failed to publish device log", "error", err)
	}
}

func (r *Router) handleTime() {
	var t rosmsg.Time
	t.Sec, t.Nsec = r.clock.ROSTime()
	r.reply(codec.TopicTime, &t)
}

func (r *Router) handleParamRequest(frame *codec.Frame) {
	var req rosmsg.RequestParamRequest
	if err := req.UnmarshalROS(frame.Payload); err != nil {
		r.counters.DecodeErrors.Add(1)
		r.log.Warn("invalid parameter request", "error", err)
		return
	}

	var resp rosmsg.RequestParamResponse
	if r.cfg.Params != nil {
		var ok bool
		resp, ok = r.cfg.Params.Get(req.Name)
		if !ok {
			r.log.Warn("unknown parameter", "name", req.Name)
		}
	}
	r.reply(codec.TopicParameterRequest, &resp)
}

func (r *Router) reply(topicID uint16, m rosmsg.Message) {
	if err := r.link.SendFrame(topicID, rosmsg.Marshal(m)); err != nil {
		r.log.Warn("failed to reply", "topic_id", topicID, "error", err)
		return
	}
	r.counters.FramesOut.Add(1)
}

// busTopic maps a ROS topic name to a bus topic.
func busTopic(name string) string {
	return strings.TrimLeft(name, "/")
}

// slogLevel maps a rosserial log level to an slog level.
func slogLevel(level uint8) slog.Level {
	switch level {
	case rosmsg.LogDebug:
		return slog.LevelDebug
	case rosmsg.LogInfo:
		return slog.LevelInfo
	case rosmsg.LogWarn:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
