// Package params holds the parameter values served to the device through
// rosserial parameter requests.
package params

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/kabili207/rosserial-go/core/rosmsg"
)

// ErrUnsupportedType is returned when a value cannot be represented in a
// rosserial parameter response.
var ErrUnsupportedType = errors.New("unsupported parameter type")

// ErrOutOfRange is returned for integers that do not fit the int32 values of
// a rosserial parameter response.
var ErrOutOfRange = errors.New("parameter value out of int32 range")

// Store is a thread-safe parameter server keyed by normalized names.
type Store struct {
	mu     sync.RWMutex
	values map[string]rosmsg.RequestParamResponse
}

// New creates an empty store.
func New() *Store {
	return &Store{values: make(map[string]rosmsg.RequestParamResponse)}
}

// FromMap creates a store holding every value in m.
func FromMap(m map[string]any) (*Store, error) {
	s := New()
	for name, v := range m {
		if err := s.Set(name, v); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Normalize strips the global ("/") and private ("~") prefixes. The bridge
// serves a single device, so both resolve to the same namespace.
func Normalize(name string) string {
	return strings.TrimLeft(strings.TrimSpace(name), "/~")
}

// Set stores a value. Integers and booleans are served as ints, floats as
// floats and strings as strings; slices of those types are served as arrays.
func (s *Store) Set(name string, value any) error {
	resp, err := convert(value)
	if err != nil {
		return fmt.Errorf("param %q: %w", name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[Normalize(name)] = resp
	return nil
}

// Get returns the response for a parameter request. ok is false when the
// parameter is unknown; the returned response is then empty, which the device
// treats as "not found".
func (s *Store) Get(name string) (rosmsg.RequestParamResponse, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	resp, ok := s.values[Normalize(name)]
	return resp, ok
}

// Names returns the sorted normalized parameter names.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.values))
	for name := range s.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func convert(value any) (rosmsg.RequestParamResponse, error) {
	var resp rosmsg.RequestParamResponse
	values, ok := value.([]any)
	if !ok {
		switch v := value.(type) {
		case []int64:
			for _, i := range v {
				values = append(values, i)
			}
		case []float64:
			for _, f := range v {
				values = append(values, f)
			}
		case []string:
			for _, str := range v {
				values = append(values, str)
			}
		default:
			values = []any{value}
		}
	}

	for _, v := range values {
		switch v := v.(type) {
		case bool:
			if v {
				resp.Ints = append(resp.Ints, 1)
			} else {
				resp.Ints = append(resp.Ints, 0)
			}
		case int:
			i, err := toInt32(int64(v))
			if err != nil {
				return rosmsg.RequestParamResponse{}, err
			}
			resp.Ints = append(resp.Ints, i)
		case int32:
			resp.Ints = append(resp.Ints, v)
		case int64:
			i, err := toInt32(v)
			if err != nil {
				return rosmsg.RequestParamResponse{}, err
			}
			resp.Ints = append(resp.Ints, i)
		case float32:
			resp.Floats = append(resp.Floats, v)
		case float64:
			resp.Floats = append(resp.Floats, float32(v))
		case string:
			resp.Strings = append(resp.Strings, v)
		default:
			return rosmsg.RequestParamResponse{}, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
		}
	}
	return resp, nil
}

func toInt32(v int64) (int32, error) {
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %d", ErrOutOfRange, v)
	}
	return int32(v), nil
}
