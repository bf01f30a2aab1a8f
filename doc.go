// Package mpmetrics is the shared-state core of a multi-process
// Prometheus-compatible metrics collector. It lets many cooperating
// worker processes record counter/gauge/histogram/summary observations
// independently into per-process memory-mapped dictionary files, and
// lets a single exporter process merge those files into one coherent
// scrape, without any inter-process coordination on the hot path.
//
// The user-facing metric objects (Counter, Gauge, Histogram, Summary)
// and exposition-format text rendering are not part of this package;
// it exposes only the capability they need — a small Value interface
// backed by either an in-process float or a multiprocess dictionary
// entry — and the Aggregate function that merges a directory of
// dictionary files for a scrape.
//
// Example:
//
//	reg, err := mpmetrics.NewFileRegistry(mpmetrics.WithDir("/tmp/metrics"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer reg.Close()
//
//	key, _ := mpmetrics.EncodeKey("requests_total", "requests_total", map[string]string{"method": "GET"})
//	v, err := reg.CounterValue(key)
//	v.Add(1)
//
//	families, err := mpmetrics.Aggregate("/tmp/metrics", nil)
package mpmetrics
