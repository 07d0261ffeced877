// Package durationx parses the CLI's duration-string grammar,
// <integer><unit> with unit in {s, m, h, d} (SPEC_FULL.md §6). Duration
// string parsing is an explicit out-of-scope external collaborator; this
// is deliberately minimal glue, not core engineering.
package durationx

import (
	"fmt"
	"strconv"
	"time"
)

// Parse parses a duration string like "30s", "5m", "2h", "1d".
func Parse(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("durationx: empty duration")
	}

	unit := s[len(s)-1]
	numPart := s[:len(s)-1]

	n, err := strconv.Atoi(numPart)
	if err != nil {
		return 0, fmt.Errorf("durationx: invalid duration %q: %w", s, err)
	}

	var unitDur time.Duration
	switch unit {
	case 's':
		unitDur = time.Second
	case 'm':
		unitDur = time.Minute
	case 'h':
		unitDur = time.Hour
	case 'd':
		unitDur = 24 * time.Hour
	default:
		return 0, fmt.Errorf("durationx: unknown unit in duration %q", s)
	}

	return time.Duration(n) * unitDur, nil
}
