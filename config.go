package mpmetrics

import (
	"os"

	"go.uber.org/zap"

	"github.com/arcspin/mpmetrics/internal/pagesize"
	"github.com/arcspin/mpmetrics/internal/registry"
)

// envMultiprocDir is the environment variable naming the
// default source of multiprocess_files_dir.
const envMultiprocDir = "prometheus_multiproc_dir"

// PIDProvider returns the current PID token used in filenames and the
// "pid" gauge label. Defaults to the OS PID.
type PIDProvider = registry.PIDProvider

// OSPID is the default PIDProvider, returning the OS process ID.
func OSPID() string { return registry.OSPID() }

// Config holds the process-wide settings for a FileRegistry, built via
// functional Options — the same shape as go-bitcask's bitcask.Option.
type Config struct {
	Dir                 string
	InitialMmapFileSize int
	PIDProvider         PIDProvider
	Logger              *zap.Logger
}

// Option configures a Config.
type Option func(*Config)

// WithDir sets the directory holding ".db" dictionary files, overriding
// the prometheus_multiproc_dir environment variable and the default
// process-unique temp directory.
func WithDir(dir string) Option {
	return func(c *Config) { c.Dir = dir }
}

// WithInitialMmapFileSize sets the starting size of newly created
// dictionary files. It is rounded up to a page multiple by mmapfile.
func WithInitialMmapFileSize(size int) Option {
	return func(c *Config) { c.InitialMmapFileSize = size }
}

// WithPIDProvider overrides how the current PID token is computed, for
// callers that need a stable token across a fork.
func WithPIDProvider(fn PIDProvider) Option {
	return func(c *Config) { c.PIDProvider = fn }
}

// WithLogger sets the structured logger used for warnings about
// recoverable errors (parse, key, IO). Defaults to a no-op logger, so
// this library never writes to stdout unprompted.
func WithLogger(log *zap.Logger) Option {
	return func(c *Config) { c.Logger = log }
}

// DefaultConfig resolves multiprocess_files_dir from the
// prometheus_multiproc_dir environment variable, falling back to a
// fresh process-unique temporary directory.
func DefaultConfig() (*Config, error) {
	dir := os.Getenv(envMultiprocDir)
	if dir == "" {
		tmp, err := os.MkdirTemp("", "mpmetrics-")
		if err != nil {
			return nil, err
		}
		dir = tmp
	}
	return &Config{
		Dir:                 dir,
		InitialMmapFileSize: pagesize.Get(),
		PIDProvider:         OSPID,
		Logger:              zap.NewNop(),
	}, nil
}

func resolveConfig(opts []Option) (*Config, error) {
	cfg, err := DefaultConfig()
	if err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return cfg, nil
}
