// Package mqtt provides the MQTT message bus for the rosserial bridge.
//
// ROS topic names are mapped to MQTT topics below a configurable prefix:
// the device topic "/sensors/imu" is published on "{prefix}/sensors/imu".
// Payloads are the raw ROS-serialized message bytes, optionally base64
// encoded for brokers or consumers that only handle text.
package mqtt

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/denisbrodbeck/machineid"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/kabili207/rosserial-go/transport"
)

// Compile-time interface check.
var _ transport.Bus = (*Transport)(nil)

const (
	// DefaultTopicPrefix is the default MQTT topic prefix for bridged topics.
	DefaultTopicPrefix = "rosserial"

	// EncodingRaw publishes payload bytes unchanged.
	EncodingRaw = "raw"
	// EncodingBase64 publishes payloads as standard base64 text.
	EncodingBase64 = "base64"

	// appID scopes the machine id used to derive default client ids.
	appID = "rosserial-go"
)

var (
	// ErrNotConnected is returned when publishing while disconnected.
	ErrNotConnected = errors.New("not connected")
	// ErrUnknownEncoding is returned for an unsupported payload encoding.
	ErrUnknownEncoding = errors.New("unknown payload encoding")
)

// Config holds the configuration for an MQTT transport.
type Config struct {
	// Broker is the MQTT broker URL (e.g., "tcp://broker.example.com:1883").
	Broker string
	// Username for MQTT authentication. Leave empty if not required.
	Username string
	// Password for MQTT authentication. Leave empty if not required.
	Password string
	// UseTLS enables TLS for the MQTT connection.
	UseTLS bool
	// ClientID is the MQTT client identifier. If empty, one is derived from
	// the machine id, falling back to a random one.
	ClientID string
	// TopicPrefix is the MQTT topic prefix (default: "rosserial").
	TopicPrefix string
	// PayloadEncoding is EncodingRaw (default) or EncodingBase64.
	PayloadEncoding string
	// QoS is the quality of service used for publish and subscribe.
	QoS byte
	// Logger is the logger to use. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Transport implements transport.Bus over MQTT.
type Transport struct {
	cfg          Config
	client       paho.Client
	log          *slog.Logger
	mu           sync.RWMutex
	connected    bool
	subs         map[string]transport.MessageHandler
	stateHandler transport.StateHandler
}

// New creates a new MQTT transport with the given configuration.
func New(cfg Config) *Transport {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = DefaultTopicPrefix
	}
	cfg.TopicPrefix = strings.Trim(cfg.TopicPrefix, "/")
	if cfg.PayloadEncoding == "" {
		cfg.PayloadEncoding = EncodingRaw
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Transport{
		cfg:  cfg,
		log:  cfg.Logger.WithGroup("mqtt"),
		subs: make(map[string]transport.MessageHandler),
	}
}

// Start connects to the MQTT broker. Subscriptions registered before Start
// are established once the connection is up.
func (t *Transport) Start(ctx context.Context) error {
	if t.cfg.Broker == "" {
		return errors.New("broker URL is required")
	}
	if t.cfg.PayloadEncoding != EncodingRaw && t.cfg.PayloadEncoding != EncodingBase64 {
		return fmt.Errorf("%w: %q", ErrUnknownEncoding, t.cfg.PayloadEncoding)
	}

	clientID := t.cfg.ClientID
	if clientID == "" {
		clientID = defaultClientID()
	}

	opts := paho.NewClientOptions().
		AddBroker(t.cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(2 * time.Minute).
		SetKeepAlive(60 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetCleanSession(true).
		SetOrderMatters(false).
		SetOnConnectHandler(t.onConnected).
		SetConnectionLostHandler(t.onConnectionLost).
		SetReconnectingHandler(t.onReconnecting)

	if t.cfg.Username != "" {
		opts.SetUsername(t.cfg.Username)
	}
	if t.cfg.Password != "" {
		opts.SetPassword(t.cfg.Password)
	}
	if t.cfg.UseTLS {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tls.VersionTLS12,
		})
	}

	client := paho.NewClient(opts)
	t.mu.Lock()
	t.client = client
	t.mu.Unlock()

	token := client.Connect()
	select {
	case <-token.Done():
	case <-time.After(30 * time.Second):
		return errors.New("connection timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
	if token.Error() != nil {
		return fmt.Errorf("connecting to broker: %w", token.Error())
	}

	return nil
}

// Stop gracefully disconnects from the MQTT broker.
func (t *Transport) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client != nil {
		t.client.Disconnect(1000)
		t.connected = false
	}
	return nil
}

// IsConnected returns true if the transport is connected to the broker.
func (t *Transport) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connected && t.client != nil && t.client.IsConnected()
}

// SetStateHandler sets the callback for bus state changes.
func (t *Transport) SetStateHandler(fn transport.StateHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stateHandler = fn
}

// Publish sends payload on the prefixed topic.
func (t *Transport) Publish(topic string, payload []byte, retain bool) error {
	if !t.IsConnected() {
		return ErrNotConnected
	}

	t.mu.RLock()
	client := t.client
	t.mu.RUnlock()

	token := client.Publish(t.fullTopic(topic), t.cfg.QoS, retain, t.encode(payload))
	if !token.WaitTimeout(10 * time.Second) {
		return errors.New("timeout publishing to MQTT")
	}
	return token.Error()
}

// Subscribe registers fn for the prefixed topic. If the client is connected
// the subscription is sent immediately, otherwise on the next connect.
func (t *Transport) Subscribe(topic string, fn transport.MessageHandler) error {
	topic = strings.TrimLeft(topic, "/")

	t.mu.Lock()
	t.subs[topic] = fn
	client := t.client
	connected := t.connected
	t.mu.Unlock()

	if client == nil || !connected {
		return nil
	}

	token := client.Subscribe(t.fullTopic(topic), t.cfg.QoS, t.pahoHandler)
	if !token.WaitTimeout(10 * time.Second) {
		return errors.New("timeout subscribing to MQTT")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	t.log.Debug("subscribed", "topic", t.fullTopic(topic))
	return nil
}

// fullTopic maps a bus topic to its MQTT topic below the prefix.
func (t *Transport) fullTopic(topic string) string {
	return t.cfg.TopicPrefix + "/" + strings.TrimLeft(topic, "/")
}

// localTopic strips the prefix from an MQTT topic.
func (t *Transport) localTopic(topic string) string {
	return strings.TrimPrefix(topic, t.cfg.TopicPrefix+"/")
}

func (t *Transport) encode(payload []byte) []byte {
	if t.cfg.PayloadEncoding == EncodingBase64 {
		return []byte(base64.StdEncoding.EncodeToString(payload))
	}
	return payload
}

func (t *Transport) decode(payload []byte) ([]byte, error) {
	if t.cfg.PayloadEncoding == EncodingBase64 {
		return base64.StdEncoding.DecodeString(string(payload))
	}
	return payload, nil
}

// resubscribe restores every registered subscription after a (re)connect.
func (t *Transport) resubscribe() error {
	t.mu.RLock()
	client := t.client
	filters := make(map[string]byte, len(t.subs))
	for topic := range t.subs {
		filters[t.fullTopic(topic)] = t.cfg.QoS
	}
	t.mu.RUnlock()

	if client == nil || len(filters) == 0 {
		return nil
	}

	token := client.SubscribeMultiple(filters, t.pahoHandler)
	if !token.WaitTimeout(10 * time.Second) {
		return errors.New("timeout subscribing to MQTT")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribing to %d topics: %w", len(filters), err)
	}
	for topic := range filters {
		t.log.Debug("subscribed", "topic", topic)
	}
	return nil
}

func (t *Transport) pahoHandler(_ paho.Client, message paho.Message) {
	t.handleMessage(message.Topic(), message.Payload())
}

func (t *Transport) handleMessage(mqttTopic string, raw []byte) {
	topic := t.localTopic(mqttTopic)

	t.mu.RLock()
	handler := t.subs[topic]
	t.mu.RUnlock()

	if handler == nil {
		return
	}

	payload, err := t.decode(raw)
	if err != nil {
		t.log.Debug("failed to decode payload", "topic", mqttTopic, "error", err)
		return
	}

	handler(topic, payload)
}

func (t *Transport) onConnected(_ paho.Client) {
	t.mu.Lock()
	t.connected = true
	handler := t.stateHandler
	t.mu.Unlock()

	t.log.Info("connected to MQTT broker", "broker", t.cfg.Broker)
	if err := t.resubscribe(); err != nil {
		t.log.Warn("failed to restore subscriptions", "error", err)
	}

	if handler != nil {
		handler(t, transport.EventConnected)
	}
}

func (t *Transport) onConnectionLost(_ paho.Client, err error) {
	t.mu.Lock()
	t.connected = false
	handler := t.stateHandler
	t.mu.Unlock()

	t.log.Error("MQTT connection lost", "error", err)

	if handler != nil {
		handler(t, transport.EventDisconnected)
	}
}

func (t *Transport) onReconnecting(_ paho.Client, _ *paho.ClientOptions) {
	t.mu.RLock()
	handler := t.stateHandler
	t.mu.RUnlock()

	t.log.Info("reconnecting to MQTT broker")

	if handler != nil {
		handler(t, transport.EventReconnecting)
	}
}

// defaultClientID derives a stable client id from the machine id so that a
// restarted bridge takes over its previous session.
func defaultClientID() string {
	id, err := machineid.ProtectedID(appID)
	if err != nil || len(id) < 12 {
		return appID + "-" + randomString(12)
	}
	return appID + "-" + id[:12]
}

func randomString(n int) string {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[rand.Intn(len(alphabet))]
	}
	return string(b)
}
