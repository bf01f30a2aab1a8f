package aggregate

import (
	"fmt"
	"strconv"
	"strings"
)

// ParsedName is the decomposition of a "<type>(_<mode>)?_<pid>(-<n>)?.db"
// basename.
type ParsedName struct {
	Type string
	Mode string // empty unless Type == "gauge"
	PID  string
}

var validTypes = map[string]bool{
	"counter":   true,
	"histogram": true,
	"summary":   true,
	"gauge":     true,
}

// ParseFilename splits a ".db" basename into (type, mode, pid). The
// pid token may itself contain underscores; everything after the type
// (and, for gauges, the mode) is rejoined with "_" and only a trailing
// "-<digits>" disambiguator is stripped from the final component.
func ParseFilename(name string) (ParsedName, error) {
	base := strings.TrimSuffix(name, ".db")
	if base == name {
		return ParsedName{}, fmt.Errorf("aggregate: %q is not a .db file", name)
	}

	parts := strings.Split(base, "_")
	if len(parts) < 2 {
		return ParsedName{}, fmt.Errorf("aggregate: %q does not match <type>_<pid>.db", name)
	}

	typ := parts[0]
	if !validTypes[typ] {
		return ParsedName{}, fmt.Errorf("aggregate: %q has unknown metric type %q", name, typ)
	}

	rest := parts[1:]
	mode := ""
	if typ == "gauge" {
		if len(rest) < 2 {
			return ParsedName{}, fmt.Errorf("aggregate: %q is missing a gauge mode", name)
		}
		mode = rest[0]
		rest = rest[1:]
	}

	pid := strings.Join(rest, "_")
	pid = stripTrailingDisambiguator(pid)
	if pid == "" {
		return ParsedName{}, fmt.Errorf("aggregate: %q has an empty pid token", name)
	}

	return ParsedName{Type: typ, Mode: mode, PID: pid}, nil
}

// stripTrailingDisambiguator removes a trailing "-<digits>" suffix
// (the PathAllocator's collision counter) from the last component only.
func stripTrailingDisambiguator(pid string) string {
	idx := strings.LastIndexByte(pid, '-')
	if idx < 0 || idx == len(pid)-1 {
		return pid
	}
	if _, err := strconv.Atoi(pid[idx+1:]); err != nil {
		return pid
	}
	return pid[:idx]
}
