// Package registry tracks the topics a rosserial device has announced.
//
// The device answers a topic-list request with one TopicInfo per publisher
// and subscriber. Directions are from the device's point of view: a
// publisher sends data to the host, a subscriber receives data from it.
package registry

import (
	"errors"
	"slices"
	"sync"

	"github.com/kabili207/rosserial-go/core/rosmsg"
)

// ErrReservedTopic is returned when a device announces a topic on a reserved id.
var ErrReservedTopic = errors.New("topic id is reserved")

// Direction of a topic as seen from the device.
type Direction int

const (
	// Publisher topics carry data from the device to the bus.
	Publisher Direction = iota
	// Subscriber topics carry data from the bus to the device.
	Subscriber
)

func (d Direction) String() string {
	switch d {
	case Publisher:
		return "publisher"
	case Subscriber:
		return "subscriber"
	default:
		return "unknown"
	}
}

// Entry is a registered topic.
type Entry struct {
	Direction Direction
	Info      rosmsg.TopicInfo
}

// Registry is a thread-safe map of topic ids to announced topic metadata.
type Registry struct {
	mu          sync.RWMutex
	publishers  map[uint16]rosmsg.TopicInfo
	subscribers map[uint16]rosmsg.TopicInfo
	subByName   map[string]uint16
	isReserved  func(id uint16) bool
}

// New creates an empty registry. isReserved rejects announcements on
// protocol control ids; it may be nil.
func New(isReserved func(id uint16) bool) *Registry {
	return &Registry{
		publishers:  make(map[uint16]rosmsg.TopicInfo),
		subscribers: make(map[uint16]rosmsg.TopicInfo),
		subByName:   make(map[string]uint16),
		isReserved:  isReserved,
	}
}

// Add registers or replaces a topic. Returns true if the topic id was not
// known in that direction, or if its name or type changed.
func (r *Registry) Add(dir Direction, info rosmsg.TopicInfo) (bool, error) {
	if r.isReserved != nil && r.isReserved(info.TopicID) {
		return false, ErrReservedTopic
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	topics := r.publishers
	if dir == Subscriber {
		topics = r.subscribers
	}

	prev, exists := topics[info.TopicID]
	topics[info.TopicID] = info

	if dir == Subscriber {
		if exists && prev.TopicName != info.TopicName && r.subByName[prev.TopicName] == info.TopicID {
			delete(r.subByName, prev.TopicName)
		}
		r.subByName[info.TopicName] = info.TopicID
	}

	changed := !exists || prev.TopicName != info.TopicName || prev.MessageType != info.MessageType
	return changed, nil
}

// Publisher returns the device publisher registered under id.
func (r *Registry) Publisher(id uint16) (rosmsg.TopicInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.publishers[id]
	return info, ok
}

// Subscriber returns the device subscriber registered under id.
func (r *Registry) Subscriber(id uint16) (rosmsg.TopicInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.subscribers[id]
	return info, ok
}

// SubscriberByName returns the device subscriber with the given topic name.
func (r *Registry) SubscriberByName(name string) (rosmsg.TopicInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.subByName[name]
	if !ok {
		return rosmsg.TopicInfo{}, false
	}
	info, ok := r.subscribers[id]
	return info, ok
}

// Entries returns all registered topics, publishers first, each group
// ordered by topic id.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]Entry, 0, len(r.publishers)+len(r.subscribers))
	for _, info := range r.publishers {
		entries = append(entries, Entry{Direction: Publisher, Info: info})
	}
	for _, info := range r.subscribers {
		entries = append(entries, Entry{Direction: Subscriber, Info: info})
	}
	slices.SortFunc(entries, func(a, b Entry) int {
		if a.Direction != b.Direction {
			return int(a.Direction) - int(b.Direction)
		}
		return int(a.Info.TopicID) - int(b.Info.TopicID)
	})
	return entries
}

// Len returns the number of registered topics in both directions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.publishers) + len(r.subscribers)
}

// Clear forgets all topics, e.g. after the device reset.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.publishers)
	clear(r.subscribers)
	clear(r.subByName)
}
