package mpmetrics

import (
	"fmt"

	"github.com/arcspin/mpmetrics/internal/registry"
)

// FileRegistry is the public face of the per-process-type metric file
// registry: it owns one multiprocess_files_dir and hands out
// Values bound to the correct per-metric-type dictionary file.
type FileRegistry struct {
	cfg *Config
	reg *registry.Registry
}

// NewFileRegistry builds a FileRegistry from options, creating dir if
// it doesn't already exist.
func NewFileRegistry(opts ...Option) (*FileRegistry, error) {
	cfg, err := resolveConfig(opts)
	if err != nil {
		return nil, err
	}
	if err := ensureDir(cfg.Dir); err != nil {
		return nil, fmt.Errorf("mpmetrics: preparing directory %s: %w", cfg.Dir, err)
	}

	reg := registry.New(cfg.Dir, cfg.InitialMmapFileSize, cfg.PIDProvider, cfg.Logger)
	return &FileRegistry{cfg: cfg, reg: reg}, nil
}

// Dir returns the configured multiprocess_files_dir.
func (fr *FileRegistry) Dir() string {
	return fr.cfg.Dir
}

// CounterValue returns a Value for key in the shared "counter" file.
func (fr *FileRegistry) CounterValue(key []byte) (Value, error) {
	return fr.valueFor("counter", key)
}

// HistogramValue returns a Value for key in the shared "histogram" file.
func (fr *FileRegistry) HistogramValue(key []byte) (Value, error) {
	return fr.valueFor("histogram", key)
}

// SummaryValue returns a Value for key in the shared "summary" file.
func (fr *FileRegistry) SummaryValue(key []byte) (Value, error) {
	return fr.valueFor("summary", key)
}

// GaugeValue returns a Value for key in the shared "gauge_<mode>"
// file. mode must be one of "min", "max", "livesum", "liveall", "all".
func (fr *FileRegistry) GaugeValue(mode string, key []byte) (Value, error) {
	return fr.valueFor(registry.GaugePrefix(mode), key)
}

func (fr *FileRegistry) valueFor(prefix string, key []byte) (Value, error) {
	d, err := fr.reg.Get(prefix)
	if err != nil {
		return nil, fmt.Errorf("mpmetrics: %s: %w", prefix, err)
	}
	return newMmapValue(d, key, fr.cfg.Logger), nil
}

// ReinitializeOnPIDChange closes every open file if the current PID
// differs from the last one observed; files are reopened under the new
// PID when the next Value is obtained. The same check otherwise runs
// only when a Value is obtained (CounterValue, HistogramValue,
// SummaryValue, GaugeValue): a Value keeps the file it was obtained
// from, and its Set, Add and Get do not check the PID. Once that file
// is closed, the Value's writes fail and are logged, and its reads
// return 0.
func (fr *FileRegistry) ReinitializeOnPIDChange() {
	fr.reg.ReinitializeOnPIDChange()
}

// ResetAndReinitialize unconditionally closes and reopens every file,
// regardless of PID. Intended for test suites.
func (fr *FileRegistry) ResetAndReinitialize() {
	fr.reg.ResetAndReinitialize()
}

// Close closes every open file and releases all held locks.
func (fr *FileRegistry) Close() error {
	return fr.reg.Close()
}
