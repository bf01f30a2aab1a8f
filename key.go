package mpmetrics

import "github.com/arcspin/mpmetrics/internal/keycodec"

// Key is a decoded dictionary key: the [metric_name, sample_name,
// label_names, label_values] quadruple.
type Key = keycodec.Key

// EncodeKey canonicalizes labels (sorted by name) and JSON-encodes the
// quadruple into the bytes stored as a dictionary entry's key.
func EncodeKey(metricName, sampleName string, labels map[string]string) ([]byte, error) {
	return keycodec.Encode(metricName, sampleName, labels)
}

// DecodeKey parses a dictionary entry's key back into its quadruple.
func DecodeKey(encoded []byte) (Key, error) {
	return keycodec.Decode(encoded)
}
