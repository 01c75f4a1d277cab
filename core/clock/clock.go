// Package clock provides the host time reported to the device in answer to
// rosserial time requests.
package clock

import (
	"sync"
	"time"
)

// Clock produces ROS timestamps (seconds + nanoseconds since the UNIX epoch).
// Now never returns a value at or before the previous one, so the device's
// time synchronisation does not observe the host clock stepping backward.
type Clock struct {
	mu       sync.Mutex
	last     time.Time
	nowFn    func() time.Time // overridable for testing
	hasValue bool
}

// New creates a Clock that uses the system clock.
func New() *Clock {
	return &Clock{nowFn: time.Now}
}

// Now returns a strictly increasing timestamp. If the underlying source has
// not advanced past the last returned value, the last value is bumped by one
// nanosecond.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.nowFn()
	if c.hasValue && !t.After(c.last) {
		t = c.last.Add(time.Nanosecond)
	}
	c.last = t
	c.hasValue = true
	return t
}

// ROSTime returns Now split into ROS seconds and nanoseconds.
func (c *Clock) ROSTime() (sec, nsec uint32) {
	return ToROS(c.Now())
}

// ToROS converts t into ROS seconds and nanoseconds.
func ToROS(t time.Time) (sec, nsec uint32) {
	return uint32(t.Unix()), uint32(t.Nanosecond())
}
