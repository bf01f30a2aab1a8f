// Package registry implements a process-wide per-metric-type file
// registry: a mapping from file prefix to the currently-open
// MmapedDict for that prefix, with PID-change detection so a process
// that forks never keeps writing into its parent's files.
//
// Grounded on go-bitcask's core/bitcask.go, which keeps a single
// process-wide keydir guarded by one mutex; generalized here to a map
// of dicts (one per metric-type/mode prefix) instead of one keydir, and
// extended with a pid-epoch check go-bitcask has no counterpart for.
package registry

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/arcspin/mpmetrics/internal/alloc"
	"github.com/arcspin/mpmetrics/internal/dict"
)

// PIDProvider returns the current PID token used in filenames and the
// "pid" gauge label. Defaults to the OS PID, but may be any
// provider-supplied string so callers can inject a stable token that
// survives a fork.
type PIDProvider func() string

// OSPID is the default PIDProvider.
func OSPID() string {
	return fmt.Sprintf("%d", os.Getpid())
}

// Registry is the process-wide PerMetricFileRegistry. Create one per
// process (mpmetrics.FileRegistry owns the instance used by the public
// API).
type Registry struct {
	mu      sync.Mutex
	dir     string
	size    int
	pidFn   PIDProvider
	alloc   *alloc.Allocator
	log     *zap.Logger
	dicts   map[string]*dict.Dict
	lastPid string
}

// New builds a Registry rooted at dir, allocating files of initialSize
// bytes on first use of each prefix.
func New(dir string, initialSize int, pidFn PIDProvider, log *zap.Logger) *Registry {
	if pidFn == nil {
		pidFn = OSPID
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		dir:   dir,
		size:  initialSize,
		pidFn: pidFn,
		alloc: alloc.New(dir),
		log:   log,
		dicts: make(map[string]*dict.Dict),
	}
}

// Get returns the MmapedDict for prefix, allocating and opening a new
// file under the current PID if one isn't already open. It first
// applies ReinitializeOnPIDChange so a write after a fork always lands
// in a fresh, correctly-named file.
func (r *Registry) Get(prefix string) (*dict.Dict, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reinitializeLocked(false)

	if d, ok := r.dicts[prefix]; ok {
		return d, nil
	}

	path, err := r.alloc.Acquire(prefix, r.lastPid)
	if err != nil {
		return nil, fmt.Errorf("registry: acquiring file for prefix %q: %w", prefix, err)
	}

	d, err := dict.Open(path, r.size)
	if err != nil {
		_ = r.alloc.Release(path)
		return nil, fmt.Errorf("registry: opening dict %s: %w", path, err)
	}

	r.dicts[prefix] = d
	return d, nil
}

// ReinitializeOnPIDChange closes and clears every open dict if the
// current PID differs from the last one observed, then refreshes the
// cached PID. It is a no-op when the PID has not changed.
func (r *Registry) ReinitializeOnPIDChange() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reinitializeLocked(false)
}

// ResetAndReinitialize unconditionally closes and reopens, regardless
// of whether the PID changed. Intended for test suites.
func (r *Registry) ResetAndReinitialize() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reinitializeLocked(true)
}

func (r *Registry) reinitializeLocked(force bool) {
	pid := r.pidFn()
	if !force && pid == r.lastPid {
		return
	}

	for prefix, d := range r.dicts {
		if err := d.Close(); err != nil {
			r.log.Warn("closing dict during reinitialize", zap.String("prefix", prefix), zap.Error(err))
		}
	}
	r.alloc.ReleaseAll()
	r.dicts = make(map[string]*dict.Dict)
	r.lastPid = pid
}

// Close closes every open dict and releases all held locks. Intended
// for process shutdown.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for prefix, d := range r.dicts {
		if err := d.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("registry: closing dict for prefix %q: %w", prefix, err)
		}
	}
	r.alloc.ReleaseAll()
	r.dicts = make(map[string]*dict.Dict)
	return firstErr
}

// GaugePrefix builds the "gauge_<mode>" file prefix for a gauge metric.
func GaugePrefix(mode string) string {
	return "gauge_" + mode
}
