package mpmetrics

import (
	"sync"

	"go.uber.org/zap"
)

// Value is the small capability trait a user-facing metric object
// needs from the core: set an absolute value, add a delta, or read the
// current value. It has two implementations — an in-process simpleValue and a
// multiprocess-dictionary-backed mmapValue — selected by whether the
// metric writes into a shared file or stays purely local to one
// process.
type Value interface {
	Set(v float64)
	Add(delta float64)
	Get() float64
}

// simpleValue is a mutex-guarded in-memory float, used when a metric
// has no multiprocess file behind it (e.g. a process running without
// prometheus_multiproc_dir configured).
type simpleValue struct {
	mu sync.Mutex
	v  float64
}

// NewSimpleValue returns a Value with no multiprocess backing.
func NewSimpleValue() Value {
	return &simpleValue{}
}

func (s *simpleValue) Set(v float64) {
	s.mu.Lock()
	s.v = v
	s.mu.Unlock()
}

func (s *simpleValue) Add(delta float64) {
	s.mu.Lock()
	s.v += delta
	s.mu.Unlock()
}

func (s *simpleValue) Get() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.v
}

// dictBackend is the subset of dict.Dict's API mmapValue needs,
// narrowed so tests can substitute a fake without opening a real file.
type dictBackend interface {
	ReadValue(key []byte) float64
	WriteValue(key []byte, v float64) error
}

// mmapValue is a Value backed by one key in a process's multiprocess
// dictionary file. Add is a guarded read-modify-write: the dictionary
// file itself only guarantees a single aligned store is atomic, not a
// read-add-store sequence, so concurrent Add calls on the same Value
// serialize through mu. Each FileRegistry call returns a new mmapValue
// with its own mu; two Values obtained for the same key do not share it.
type mmapValue struct {
	mu      sync.Mutex
	backend dictBackend
	key     []byte
	log     *zap.Logger
}

// newMmapValue wraps a backend and key into a Value. Unexported: built
// only by FileRegistry, which owns the backend's lifetime.
func newMmapValue(backend dictBackend, key []byte, log *zap.Logger) Value {
	if log == nil {
		log = zap.NewNop()
	}
	return &mmapValue{backend: backend, key: key, log: log}
}

func (m *mmapValue) Set(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.backend.WriteValue(m.key, v); err != nil {
		// A failed write is logged and swallowed; the metric object
		// remains usable and the next write retries.
		m.log.Warn("mpmetrics: failed to write value", zap.Error(err))
	}
}

func (m *mmapValue) Add(delta float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current := m.backend.ReadValue(m.key)
	if err := m.backend.WriteValue(m.key, current+delta); err != nil {
		m.log.Warn("mpmetrics: failed to write value", zap.Error(err))
	}
}

func (m *mmapValue) Get() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.backend.ReadValue(m.key)
}
