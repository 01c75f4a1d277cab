// Package connection tracks synchronization with the rosserial device.
//
// The device is considered in sync while frames keep arriving. The Monitor
// records the time of the last frame and fires a lost-sync callback when the
// link has been silent for longer than the timeout. The callback keeps firing
// once per timeout period until a frame arrives, so the owner can keep
// re-requesting topics from a device that has not answered yet.
package connection

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultTimeout is how long the link may stay silent before sync is
	// considered lost. rosserial devices request the time at least every
	// few seconds, so a healthy link is never quiet this long.
	DefaultTimeout = 15 * time.Second

	// DefaultCheckInterval is the resolution of the monitor's check loop.
	DefaultCheckInterval = time.Second
)

// MonitorConfig configures a sync Monitor.
type MonitorConfig struct {
	// Timeout is the silence after which sync is lost. Default: 15 seconds.
	Timeout time.Duration

	// CheckInterval is how often Start checks for timeouts. Default: 1 second.
	CheckInterval time.Duration

	// Logger for sync events. Falls back to slog.Default() if nil.
	Logger *slog.Logger
}

// Monitor tracks the time of the last frame from the device.
type Monitor struct {
	cfg      MonitorConfig
	log      *slog.Logger
	mu       sync.Mutex
	lastSeen time.Time
	synced   bool
	onSync   func()
	onLost   func()
	cancel   context.CancelFunc

	// nowFn allows overriding time.Now() for testing.
	nowFn func() time.Time
}

// NewMonitor creates a sync monitor. The timeout period starts immediately.
func NewMonitor(cfg MonitorConfig) *Monitor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultCheckInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := &Monitor{
		cfg:   cfg,
		log:   logger.WithGroup("connection"),
		nowFn: time.Now,
	}
	m.lastSeen = m.nowFn()
	return m
}

// SetOnSync sets the callback invoked when the first frame arrives after
// startup or after sync was lost.
func (m *Monitor) SetOnSync(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSync = fn
}

// SetOnLost sets the callback invoked when the link times out.
func (m *Monitor) SetOnLost(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onLost = fn
}

// Touch records that a frame was received.
func (m *Monitor) Touch() {
	m.mu.Lock()
	m.lastSeen = m.nowFn()
	established := !m.synced
	m.synced = true
	onSync := m.onSync
	m.mu.Unlock()

	if established {
		m.log.Info("sync established with device")
		if onSync != nil {
			onSync()
		}
	}
}

// IsSynced returns true if a frame arrived within the timeout.
func (m *Monitor) IsSynced() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.synced
}

// LastSeen returns the time of the last received frame, or the creation
// time if none has arrived.
func (m *Monitor) LastSeen() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSeen
}

// CheckTimeout fires the lost-sync callback if the link has been silent for
// longer than the timeout. Returns true if the callback fired.
func (m *Monitor) CheckTimeout() bool {
	m.mu.Lock()
	now := m.nowFn()
	if now.Sub(m.lastSeen) <= m.cfg.Timeout {
		m.mu.Unlock()
		return false
	}
	wasSynced := m.synced
	m.synced = false
	m.lastSeen = now
	onLost := m.onLost
	m.mu.Unlock()

	// Fire callbacks outside the lock
	if wasSynced {
		m.log.Warn("lost sync with device", "timeout", m.cfg.Timeout)
	} else {
		m.log.Debug("no response from device", "timeout", m.cfg.Timeout)
	}
	if onLost != nil {
		onLost()
	}
	return true
}

// Start begins the periodic timeout check loop. Blocks until the context
// is cancelled or Stop is called.
func (m *Monitor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()

	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckTimeout()
		}
	}
}

// Stop cancels the monitor's context, stopping the check loop.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}
