package main

import (
	"fmt"
	"time"

	"github.com/markstefanovic/poa/internal/poaerr"
)

// parseAfter turns a flat list of "col", "value", "col", "value", ...
// arguments (as --after is collected) into a map[string]any, parsing
// each value as an RFC3339 timestamp when possible, then as a YYYY-MM-DD
// date, and falling back to the raw string otherwise — an after-filter threshold is usually a
// date/timestamp column but spec.md doesn't rule out a numeric or text
// watermark.
func parseAfter(pairs []string) (map[string]any, error) {
	if len(pairs)%2 != 0 {
		return nil, poaerr.New(poaerr.KindConfigError, "--after requires an even number of col/value arguments", map[string]any{"pairs": pairs})
	}
	out := make(map[string]any, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		col, raw := pairs[i], pairs[i+1]
		out[col] = parseAfterValue(raw)
	}
	return out, nil
}

func parseAfterValue(raw string) any {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t
	}
	return raw
}

func requireConfigPath() (string, error) {
	path := configPath()
	if path == "" {
		return "", poaerr.New(poaerr.KindConfigError, "--config is required", nil)
	}
	return path, nil
}

func formatSyncResult(table string, status string, detail string) string {
	return fmt.Sprintf("%s: %s%s", table, status, detail)
}
