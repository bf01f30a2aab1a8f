// Package keycodec encodes and decodes the opaque JSON quadruple used
// as a dictionary key: [metric_name, sample_name, label_names[],
// label_values[]]. The storage layer treats these bytes as opaque;
// only the aggregator decodes them.
//
// Grounded on the JSON shape in original_source's raw_entry.rs fixtures
// (`["c","c",["a"],["1"]]`-style literals); encoding/json is the
// correct stdlib choice since no faster JSON library appears in any
// go.mod across the retrieved pack, and the wire format is specified
// as JSON text, not merely "some serialization".
package keycodec

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Key is a decoded quadruple. LabelValues holds already-stringified
// label values; the core only ever stores and compares them as text.
type Key struct {
	MetricName  string
	SampleName  string
	LabelNames  []string
	LabelValues []string
}

// Encode canonicalizes labels by sorting them by name and marshals
// the quadruple to JSON text, so that the same logical (metric,
// labels) pair always produces the same bytes regardless of the
// caller's insertion order.
func Encode(metricName, sampleName string, labels map[string]string) ([]byte, error) {
	names := make([]string, 0, len(labels))
	for n := range labels {
		names = append(names, n)
	}
	sort.Strings(names)

	values := make([]string, len(names))
	for i, n := range names {
		values[i] = labels[n]
	}

	quad := [4]any{metricName, sampleName, names, values}
	b, err := json.Marshal(quad)
	if err != nil {
		return nil, fmt.Errorf("keycodec: encoding key: %w", err)
	}
	return b, nil
}

// Decode parses an encoded key back into its quadruple. A malformed
// key is a KeyError: callers in the aggregation path should log and
// drop the sample, not fail the whole scrape.
func Decode(encoded []byte) (Key, error) {
	var quad [4]json.RawMessage
	if err := json.Unmarshal(encoded, &quad); err != nil {
		return Key{}, &KeyError{Cause: err}
	}

	var metricName, sampleName string
	var labelNames, labelValues []string

	if err := json.Unmarshal(quad[0], &metricName); err != nil {
		return Key{}, &KeyError{Cause: err}
	}
	if err := json.Unmarshal(quad[1], &sampleName); err != nil {
		return Key{}, &KeyError{Cause: err}
	}
	if err := json.Unmarshal(quad[2], &labelNames); err != nil {
		return Key{}, &KeyError{Cause: err}
	}
	if err := unmarshalLabelValues(quad[3], &labelValues); err != nil {
		return Key{}, &KeyError{Cause: err}
	}
	if len(labelNames) != len(labelValues) {
		return Key{}, &KeyError{Cause: fmt.Errorf("label_names/label_values length mismatch: %d vs %d", len(labelNames), len(labelValues))}
	}

	return Key{
		MetricName:  metricName,
		SampleName:  sampleName,
		LabelNames:  labelNames,
		LabelValues: labelValues,
	}, nil
}

// unmarshalLabelValues tolerates string|number|bool|null label
// values by decoding each element loosely and stringifying it, rather
// than requiring every value to already be a JSON string.
func unmarshalLabelValues(raw json.RawMessage, out *[]string) error {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return err
	}
	values := make([]string, len(elems))
	for i, e := range elems {
		var v any
		if err := json.Unmarshal(e, &v); err != nil {
			return err
		}
		values[i] = stringify(v)
	}
	*out = values
	return nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		return formatFloat(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func formatFloat(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}

// KeyError reports a key that failed JSON validation during
// aggregation.
type KeyError struct {
	Cause error
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("keycodec: invalid key: %v", e.Cause)
}

func (e *KeyError) Unwrap() error {
	return e.Cause
}
