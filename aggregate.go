package mpmetrics

import (
	"go.uber.org/zap"

	"github.com/arcspin/mpmetrics/internal/aggregate"
)

// MetricFamily is the aggregated unit emitted per metric name: a
// help string, a Prometheus metric type, and its merged samples.
type MetricFamily = aggregate.MetricFamily

// Sample is one exposition-format line: a sample name, ordered labels,
// and a merged value.
type Sample = aggregate.Sample

// Label is one name=value pair of a Sample.
type Label = aggregate.Label

// Aggregate scans dir for "*.db" dictionary files and merges their
// contents into a map of metric_name -> MetricFamily, using the
// type- and gauge-mode-specific merge rules per metric type. A nil
// logger is treated as a no-op logger. A bad file or entry never fails
// the whole scrape: unparseable file names, unreadable files and
// undecodable keys are logged and skipped, and a malformed or
// truncated tail of a file is dropped silently.
func Aggregate(dir string, log *zap.Logger) (map[string]*MetricFamily, error) {
	return aggregate.Aggregate(dir, log)
}
