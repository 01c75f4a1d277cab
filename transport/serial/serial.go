// Package serial provides the serial link to a rosserial device.
//
// Raw bytes read from the port are fed into a per-connection codec.Decoder;
// outgoing frames are encoded and written to the port one frame per write.
package serial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/kabili207/rosserial-go/core/codec"
	"github.com/kabili207/rosserial-go/transport"
	"go.bug.st/serial"
)

// Compile-time interface check.
var _ transport.Transport = (*Transport)(nil)

const (
	// DefaultBaudRate is the default baud rate for rosserial connections.
	DefaultBaudRate = 57600

	// readBufSize is the size of the serial read buffer.
	readBufSize = 1024
)

// Config holds the configuration for a serial transport.
type Config struct {
	// Port is the serial port path (e.g., "/dev/ttyACM0" or "COM3").
	Port string
	// BaudRate is the serial baud rate. Defaults to 57600.
	BaudRate int
	// MaxPayloadSize bounds the payload length accepted from the device.
	// Defaults to codec.DefaultMaxPayloadSize.
	MaxPayloadSize int
	// Logger is the logger to use. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// openFunc opens the named port; replaced in tests.
type openFunc func(name string, mode *serial.Mode) (io.ReadWriteCloser, error)

func openSerial(name string, mode *serial.Mode) (io.ReadWriteCloser, error) {
	return serial.Open(name, mode)
}

// Transport implements transport.Transport over a serial port.
type Transport struct {
	cfg      Config
	open     openFunc
	log      *slog.Logger
	counters codec.Counters

	mu           sync.RWMutex
	port         io.ReadWriteCloser
	connected    bool
	cancel       context.CancelFunc
	done         chan struct{}
	frameHandler transport.FrameHandler
	stateHandler transport.StateHandler

	writeMu sync.Mutex
	decoder *codec.Decoder // owned by the read loop
}

// New creates a new serial transport with the given configuration.
func New(cfg Config) *Transport {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.MaxPayloadSize <= 0 {
		cfg.MaxPayloadSize = codec.DefaultMaxPayloadSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	t := &Transport{
		cfg:  cfg,
		open: openSerial,
		log:  cfg.Logger.WithGroup("serial"),
	}
	t.decoder = t.newDecoder()
	return t
}

// ListPorts returns the serial ports present on the system.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("listing serial ports: %w", err)
	}
	return ports, nil
}

func (t *Transport) newDecoder() *codec.Decoder {
	return codec.NewDecoder(codec.DecoderConfig{
		MaxPayloadSize: t.cfg.MaxPayloadSize,
		Counters:       &t.counters,
		OnError: func(err error) {
			t.log.Debug("discarded corrupt data", "error", err)
		},
	})
}

// Start opens the serial port and begins reading frames.
func (t *Transport) Start(ctx context.Context) error {
	if t.cfg.Port == "" {
		return errors.New("serial port is required")
	}

	mode := &serial.Mode{
		BaudRate: t.cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := t.open(t.cfg.Port, mode)
	if err != nil {
		return fmt.Errorf("opening serial port: %w", err)
	}

	readCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	t.mu.Lock()
	t.port = port
	t.connected = true
	t.cancel = cancel
	t.done = done
	t.decoder = t.newDecoder()
	handler := t.stateHandler
	t.mu.Unlock()

	go t.readLoop(readCtx, port, done)

	t.log.Info("connected to serial port", "port", t.cfg.Port, "baud", t.cfg.BaudRate)

	if handler != nil {
		handler(t, transport.EventConnected)
	}

	return nil
}

// Stop closes the serial port and stops the read loop.
func (t *Transport) Stop() error {
	t.mu.Lock()
	handler := t.stateHandler
	cancel := t.cancel
	t.cancel = nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	t.mu.Lock()
	t.connected = false
	port := t.port
	t.port = nil
	done := t.done
	t.done = nil
	t.mu.Unlock()

	var err error
	if port != nil {
		err = port.Close()
	}

	// Wait for read loop to finish
	if done != nil {
		<-done
	}

	if handler != nil && port != nil {
		handler(t, transport.EventDisconnected)
	}

	return err
}

// IsConnected returns true if the serial port is open.
func (t *Transport) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connected
}

// SetFrameHandler sets the callback for decoded frames.
func (t *Transport) SetFrameHandler(fn transport.FrameHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frameHandler = fn
}

// SetStateHandler sets the callback for transport state changes.
func (t *Transport) SetStateHandler(fn transport.StateHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stateHandler = fn
}

// Counters returns the link's decoder statistics.
func (t *Transport) Counters() codec.CountersSnapshot {
	return t.counters.Snapshot()
}

// SendFrame encodes a frame and writes it to the serial port.
func (t *Transport) SendFrame(topicID uint16, payload []byte) error {
	t.mu.RLock()
	port := t.port
	connected := t.connected
	t.mu.RUnlock()

	if !connected || port == nil {
		return errors.New("not connected")
	}

	frame, err := codec.EncodeFrame(topicID, payload)
	if err != nil {
		return fmt.Errorf("encoding frame: %w", err)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if _, err := port.Write(frame); err != nil {
		return fmt.Errorf("writing to serial port: %w", err)
	}

	return nil
}

// readLoop continuously reads from the serial port and decodes frames.
func (t *Transport) readLoop(ctx context.Context, port io.Reader, done chan struct{}) {
	defer close(done)

	buf := make([]byte, readBufSize)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := port.Read(buf)
		if n > 0 {
			t.processBytes(buf[:n])
		}
		if err != nil {
			if ctx.Err() != nil {
				return // context cancelled, clean shutdown
			}
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) {
				t.log.Error("serial read error", "error", err)
			}
			t.handleDisconnect(err)
			return
		}
	}
}

// processBytes feeds received bytes to the decoder and dispatches every
// completed frame.
func (t *Transport) processBytes(data []byte) {
	frames := t.decoder.Feed(data)
	if len(frames) == 0 {
		return
	}

	t.mu.RLock()
	handler := t.frameHandler
	t.mu.RUnlock()

	if handler == nil {
		return
	}
	for _, frame := range frames {
		handler(frame)
	}
}

// handleDisconnect releases the port after the read loop failed so that a
// later Start can reopen it.
func (t *Transport) handleDisconnect(err error) {
	t.mu.Lock()
	t.connected = false
	port := t.port
	t.port = nil
	cancel := t.cancel
	t.cancel = nil
	t.done = nil
	handler := t.stateHandler
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if port != nil {
		port.Close()
	}

	if err != nil {
		t.log.Error("serial disconnected", "error", err)
	}

	if handler != nil {
		handler(t, transport.EventDisconnected)
	}
}
