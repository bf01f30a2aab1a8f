package keycodec_test

import (
	"testing"

	"github.com/arcspin/mpmetrics/internal/keycodec"
)

func TestEncodeIsInvariantUnderLabelPermutation(t *testing.T) {
	a, err := keycodec.Encode("c", "c", map[string]string{"a": "1", "b": "2"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	b, err := keycodec.Encode("c", "c", map[string]string{"b": "2", "a": "1"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if string(a) != string(b) {
		t.Fatalf("encoded keys differ under label permutation:\n%s\n%s", a, b)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	encoded, err := keycodec.Encode("requests_total", "requests_total", map[string]string{"method": "GET", "code": "200"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	key, err := keycodec.Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if key.MetricName != "requests_total" || key.SampleName != "requests_total" {
		t.Fatalf("got %+v", key)
	}
	if len(key.LabelNames) != 2 || key.LabelNames[0] != "code" || key.LabelNames[1] != "method" {
		t.Fatalf("expected sorted label names, got %v", key.LabelNames)
	}
	if key.LabelValues[0] != "200" || key.LabelValues[1] != "GET" {
		t.Fatalf("expected values aligned with sorted names, got %v", key.LabelValues)
	}
}

func TestDecodeMatchesSpecLiteralFixture(t *testing.T) {
	// Literal fixture: ["c","c",["a"],["1"]]
	key, err := keycodec.Decode([]byte(`["c","c",["a"],["1"]]`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if key.MetricName != "c" || key.SampleName != "c" {
		t.Fatalf("got %+v", key)
	}
	if len(key.LabelNames) != 1 || key.LabelNames[0] != "a" || key.LabelValues[0] != "1" {
		t.Fatalf("got %+v", key)
	}
}

func TestDecodeNoLabels(t *testing.T) {
	// Literal fixture: ["g","g",[],[]]
	key, err := keycodec.Decode([]byte(`["g","g",[],[]]`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(key.LabelNames) != 0 || len(key.LabelValues) != 0 {
		t.Fatalf("expected no labels, got %+v", key)
	}
}

func TestDecodeRejectsMalformedKey(t *testing.T) {
	_, err := keycodec.Decode([]byte(`not json`))
	if err == nil {
		t.Fatal("expected a KeyError for malformed JSON")
	}
	var kerr *keycodec.KeyError
	if ke, ok := err.(*keycodec.KeyError); ok {
		kerr = ke
	}
	if kerr == nil {
		t.Fatalf("error is not a *KeyError: %T", err)
	}
}

func TestDecodeRejectsLabelLengthMismatch(t *testing.T) {
	_, err := keycodec.Decode([]byte(`["m","s",["a","b"],["1"]]`))
	if err == nil {
		t.Fatal("expected error for mismatched label_names/label_values lengths")
	}
}
