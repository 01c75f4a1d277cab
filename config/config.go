// Package config loads the bridge configuration from a TOML file.
//
// Every key is optional; values not present in the file keep the defaults
// returned by Default. Example:
//
//	[serial]
//	port = "/dev/ttyACM0"
//	baud = 57600
//
//	[mqtt]
//	broker = "tcp://localhost:1883"
//	topic_prefix = "robots/rover"
//
//	[sync]
//	timeout = "15s"
//
//	[params]
//	wheel_base = 0.32
//	pid = { kp = 1.5, ki = 0.1 }
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kabili207/rosserial-go/core/codec"
)

// Defaults applied by Default. They match the defaults of the serial, mqtt,
// connection and router packages.
const (
	DefaultBaudRate        = 57600
	DefaultTopicPrefix     = "rosserial"
	DefaultSyncTimeout     = 15 * time.Second
	DefaultRequestInterval = time.Second
)

// Payload encodings accepted in mqtt.payload_encoding.
const (
	EncodingRaw    = "raw"
	EncodingBase64 = "base64"
)

// Environment variables that override the file.
const (
	EnvMQTTURL    = "ROSSERIAL_MQTT_URL"
	EnvSerialPort = "ROSSERIAL_PORT"
)

var (
	// ErrInvalid is returned by Validate for out-of-range settings.
	ErrInvalid = errors.New("invalid config")
)

// Config is the complete bridge configuration.
type Config struct {
	Serial SerialConfig
	MQTT   MQTTConfig
	Sync   SyncConfig
	Log    LogConfig

	// Params are served to the device on parameter requests. Nested tables
	// are flattened into slash-separated names.
	Params map[string]any
}

// SerialConfig configures the device link.
type SerialConfig struct {
	Port       string
	BaudRate   int
	MaxPayload int
}

// MQTTConfig configures the message bus.
type MQTTConfig struct {
	Broker          string
	Username        string
	Password        string
	TLS             bool
	ClientID        string
	TopicPrefix     string
	PayloadEncoding string
	QoS             byte
}

// SyncConfig configures device synchronization.
type SyncConfig struct {
	// Timeout is how long the link may stay silent before sync is lost.
	Timeout time.Duration
	// RequestInterval rate-limits topic requests caused by unknown topics.
	RequestInterval time.Duration
}

// LogConfig configures the bridge's own logging.
type LogConfig struct {
	Level  string
	Format string
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Serial: SerialConfig{
			BaudRate:   DefaultBaudRate,
			MaxPayload: codec.DefaultMaxPayloadSize,
		},
		MQTT: MQTTConfig{
			TopicPrefix:     DefaultTopicPrefix,
			PayloadEncoding: EncodingRaw,
		},
		Sync: SyncConfig{
			Timeout:         DefaultSyncTimeout,
			RequestInterval: DefaultRequestInterval,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Params: map[string]any{},
	}
}

type fileConfig struct {
	Serial struct {
		Port       string `toml:"port"`
		Baud       int    `toml:"baud"`
		MaxPayload int    `toml:"max_payload"`
	} `toml:"serial"`
	MQTT struct {
		Broker          string `toml:"broker"`
		Username        string `toml:"username"`
		Password        string `toml:"password"`
		TLS             bool   `toml:"tls"`
		ClientID        string `toml:"client_id"`
		TopicPrefix     string `toml:"topic_prefix"`
		PayloadEncoding string `toml:"payload_encoding"`
		QoS             int    `toml:"qos"`
	} `toml:"mqtt"`
	Sync struct {
		Timeout         string `toml:"timeout"`
		RequestInterval string `toml:"request_interval"`
	} `toml:"sync"`
	Log struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
	} `toml:"log"`
	Params map[string]any `toml:"params"`
}

// Load reads path over the defaults and validates the result.
func Load(path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return apply(Default(), raw, meta)
}

// Parse reads TOML text over the defaults and validates the result.
func Parse(data string) (Config, error) {
	var raw fileConfig
	meta, err := toml.Decode(data, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return apply(Default(), raw, meta)
}

func apply(cfg Config, raw fileConfig, meta toml.MetaData) (Config, error) {
	if meta.IsDefined("serial", "port") {
		cfg.Serial.Port = strings.TrimSpace(raw.Serial.Port)
	}
	if meta.IsDefined("serial", "baud") {
		cfg.Serial.BaudRate = raw.Serial.Baud
	}
	if meta.IsDefined("serial", "max_payload") {
		cfg.Serial.MaxPayload = raw.Serial.MaxPayload
	}

	if meta.IsDefined("mqtt", "broker") {
		cfg.MQTT.Broker = strings.TrimSpace(raw.MQTT.Broker)
	}
	if meta.IsDefined("mqtt", "username") {
		cfg.MQTT.Username = raw.MQTT.Username
	}
	if meta.IsDefined("mqtt", "password") {
		cfg.MQTT.Password = raw.MQTT.Password
	}
	if meta.IsDefined("mqtt", "tls") {
		cfg.MQTT.TLS = raw.MQTT.TLS
	}
	if meta.IsDefined("mqtt", "client_id") {
		cfg.MQTT.ClientID = strings.TrimSpace(raw.MQTT.ClientID)
	}
	if meta.IsDefined("mqtt", "topic_prefix") {
		cfg.MQTT.TopicPrefix = strings.TrimSpace(raw.MQTT.TopicPrefix)
	}
	if meta.IsDefined("mqtt", "payload_encoding") {
		cfg.MQTT.PayloadEncoding = strings.ToLower(strings.TrimSpace(raw.MQTT.PayloadEncoding))
	}
	if meta.IsDefined("mqtt", "qos") {
		if raw.MQTT.QoS < 0 || raw.MQTT.QoS > 2 {
			return Config{}, fmt.Errorf("%w: mqtt.qos must be 0, 1 or 2, got %d", ErrInvalid, raw.MQTT.QoS)
		}
		cfg.MQTT.QoS = byte(raw.MQTT.QoS)
	}

	if meta.IsDefined("sync", "timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Sync.Timeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse sync.timeout: %w", err)
		}
		cfg.Sync.Timeout = d
	}
	if meta.IsDefined("sync", "request_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Sync.RequestInterval))
		if err != nil {
			return Config{}, fmt.Errorf("parse sync.request_interval: %w", err)
		}
		cfg.Sync.RequestInterval = d
	}

	if meta.IsDefined("log", "level") {
		cfg.Log.Level = strings.ToLower(strings.TrimSpace(raw.Log.Level))
	}
	if meta.IsDefined("log", "format") {
		cfg.Log.Format = strings.ToLower(strings.TrimSpace(raw.Log.Format))
	}

	if meta.IsDefined("params") {
		flattenParams(cfg.Params, "", raw.Params)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// flattenParams copies src into dst, joining nested table keys with "/".
func flattenParams(dst map[string]any, prefix string, src map[string]any) {
	for k, v := range src {
		name := k
		if prefix != "" {
			name = prefix + "/" + k
		}
		if table, ok := v.(map[string]any); ok {
			flattenParams(dst, name, table)
			continue
		}
		dst[name] = v
	}
}

// ApplyEnv overrides settings from environment variables read with getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvMQTTURL)); v != "" {
		c.MQTT.Broker = v
	}
	if v := strings.TrimSpace(getenv(EnvSerialPort)); v != "" {
		c.Serial.Port = v
	}
}

// Validate checks the settings that have a fixed range.
func (c *Config) Validate() error {
	if c.Serial.BaudRate <= 0 {
		return fmt.Errorf("%w: serial.baud must be positive", ErrInvalid)
	}
	if c.Serial.MaxPayload <= 0 || c.Serial.MaxPayload > codec.MaxPayloadLength {
		return fmt.Errorf("%w: serial.max_payload must be between 1 and 65535", ErrInvalid)
	}
	switch c.MQTT.PayloadEncoding {
	case EncodingRaw, EncodingBase64:
	default:
		return fmt.Errorf("%w: unknown mqtt.payload_encoding %q", ErrInvalid, c.MQTT.PayloadEncoding)
	}
	if c.Sync.Timeout <= 0 {
		return fmt.Errorf("%w: sync.timeout must be positive", ErrInvalid)
	}
	if c.Sync.RequestInterval < 0 {
		return fmt.Errorf("%w: sync.request_interval must not be negative", ErrInvalid)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log.format %q", ErrInvalid, c.Log.Format)
	}
	return nil
}

// ParseLevel converts a level name (debug, info, warn, error) to an slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("%w: log level %q", ErrInvalid, s)
	}
	return level, nil
}
