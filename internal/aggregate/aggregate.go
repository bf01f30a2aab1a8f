// Package aggregate implements the cross-process scrape-time merge: it scans
// a directory of "*.db" files, decodes every entry, and merges samples
// across files using metric-type- and gauge-mode-specific rules into
// the {metric_name -> MetricFamily} structure an exposition-format
// formatter consumes.
//
// Grounded on go-bitcask's core/bitcask.go startup scan (which walks
// the data directory rebuilding its keydir from every segment file on
// open) generalized from "rebuild one process's index" to "merge every
// process's independent file into one scrape", and on EntryParser's
// lenient mode for per-file fault tolerance.
package aggregate

import (
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/arcspin/mpmetrics/internal/entry"
	"github.com/arcspin/mpmetrics/internal/keycodec"
)

// Sample is one line of exposition output: a sample name, its ordered
// labels, and its merged value.
type Sample struct {
	Name   string
	Labels []Label
	Value  float64
}

// Label is one name=value pair, kept ordered rather than as a map so
// output label order is deterministic.
type Label struct {
	Name  string
	Value string
}

// MetricFamily is the aggregated unit emitted per metric name.
type MetricFamily struct {
	Name    string
	Help    string
	Type    string
	Samples []Sample
}

// mergeKey identifies one post-merge sample slot: a sample name plus
// its label set (pid included only for gauge "all"/"liveall" mode).
type mergeKey struct {
	sampleName string
	labels     string // canonical, comma-joined "name=value" pairs
}

type accumulator struct {
	family *MetricFamily
	slots  map[mergeKey]*Sample
	order  []mergeKey
}

// Aggregate scans dir for "*.db" files and returns the merged metric
// families keyed by metric name. Files are read in lexical order, so
// each family's sample order is stable. A bad file or entry never fails
// the whole aggregation: a file whose name does not parse or that
// cannot be read is logged at Warn and skipped, an entry whose key does
// not decode is logged at Warn and dropped, and a malformed or
// truncated tail of a file is dropped silently, keeping the entries
// before it.
func Aggregate(dir string, log *zap.Logger) (map[string]*MetricFamily, error) {
	if log == nil {
		log = zap.NewNop()
	}

	paths, err := listDBFiles(dir)
	if err != nil {
		return nil, err
	}

	families := make(map[string]*accumulator)

	for _, path := range paths {
		name := filepath.Base(path)
		parsed, err := ParseFilename(name)
		if err != nil {
			log.Warn("skipping file with unparseable name", zap.String("path", path), zap.Error(err))
			continue
		}

		buf, err := os.ReadFile(path)
		if err != nil {
			log.Warn("skipping unreadable file", zap.String("path", path), zap.Error(err))
			continue
		}

		keys, values, _, _ := entry.Collect(buf, entry.Lenient)
		for i, rawKey := range keys {
			decoded, err := keycodec.Decode(rawKey)
			if err != nil {
				log.Warn("dropping sample with malformed key", zap.String("path", path), zap.Error(err))
				continue
			}
			mergeSample(families, parsed, decoded, values[i])
		}
	}

	out := make(map[string]*MetricFamily, len(families))
	for name, acc := range families {
		acc.family.Samples = acc.snapshotSamples()
		out[name] = acc.family
	}
	return out, nil
}

func listDBFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".db" {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

func mergeSample(families map[string]*accumulator, parsed ParsedName, key keycodec.Key, value float64) {
	acc, ok := families[key.MetricName]
	if !ok {
		acc = &accumulator{
			family: &MetricFamily{
				Name: key.MetricName,
				Help: "Multiprocess metric",
				Type: parsed.Type,
			},
			slots: make(map[mergeKey]*Sample),
		}
		families[key.MetricName] = acc
	}

	labels := make([]Label, len(key.LabelNames))
	for i := range key.LabelNames {
		labels[i] = Label{Name: key.LabelNames[i], Value: key.LabelValues[i]}
	}

	includePID := parsed.Type == "gauge" && (parsed.Mode == "all" || parsed.Mode == "liveall")
	if includePID {
		labels = append(labels, Label{Name: "pid", Value: parsed.PID})
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i].Name < labels[j].Name })

	mk := mergeKey{sampleName: key.SampleName, labels: canonicalLabels(labels)}

	op := mergeOpFor(parsed)
	acc.apply(mk, key.SampleName, labels, value, op)
}

func canonicalLabels(labels []Label) string {
	s := ""
	for i, l := range labels {
		if i > 0 {
			s += ","
		}
		s += l.Name + "=" + l.Value
	}
	return s
}

type mergeOp int

const (
	opSum mergeOp = iota
	opMin
	opMax
	opKeepEach
)

// mergeOpFor maps a parsed filename to its merge operation.
func mergeOpFor(p ParsedName) mergeOp {
	if p.Type != "gauge" {
		return opSum
	}
	switch p.Mode {
	case "min":
		return opMin
	case "max":
		return opMax
	case "all", "liveall":
		return opKeepEach
	default: // "livesum" and any unrecognized mode default to sum
		return opSum
	}
}

func (a *accumulator) apply(mk mergeKey, sampleName string, labels []Label, value float64, op mergeOp) {
	if op == opKeepEach {
		// gauge "all"/"liveall" mode keeps one sample per contributing
		// pid rather than merging them; the pid is already folded into mk
		// via the label set, so a repeat mk here means the same pid
		// legitimately rewrote the same key and the newer value wins.
		a.setSlot(mk, sampleName, labels, value)
		return
	}

	existing, ok := a.slots[mk]
	if !ok {
		a.setSlot(mk, sampleName, labels, value)
		return
	}
	switch op {
	case opSum:
		existing.Value += value
	case opMin:
		if value < existing.Value {
			existing.Value = value
		}
	case opMax:
		if value > existing.Value {
			existing.Value = value
		}
	}
}

func (a *accumulator) setSlot(mk mergeKey, sampleName string, labels []Label, value float64) {
	if _, ok := a.slots[mk]; !ok {
		a.order = append(a.order, mk)
	}
	a.slots[mk] = &Sample{Name: sampleName, Labels: labels, Value: value}
}

// snapshotSamples returns this family's samples in first-seen order,
// deterministic given a fixed, lexically-sorted set of input files.
func (a *accumulator) snapshotSamples() []Sample {
	out := make([]Sample, 0, len(a.order))
	for _, mk := range a.order {
		out = append(out, *a.slots[mk])
	}
	return out
}
