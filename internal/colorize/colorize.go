// Package colorize classifies log lines by a case-insensitive substring
// match and renders them with fatih/color, gated on NO_COLOR and a
// terminal-detection check on the output file descriptor. This is glue
// (SPEC_FULL.md §4.7.1): the palette and classification rules are a policy
// choice, not a core testable property.
package colorize

import (
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

var (
	errorColor = color.New(color.FgRed)
	warnColor  = color.New(color.FgYellow)
	infoColor  = color.New(color.FgBlue)
	debugColor = color.New(color.Faint)
)

// Enabled reports whether output written to w should be colorized: w must
// be a terminal file descriptor, and NO_COLOR must not be set.
func Enabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Line returns line, styled according to its content, if enabled is true;
// otherwise it returns line unchanged.
func Line(line string, enabled bool) string {
	if !enabled {
		return line
	}

	lower := strings.ToLower(line)
	switch {
	case containsAny(lower, "error", "fatal", "panic"):
		return errorColor.Sprint(line)
	case strings.Contains(lower, "warn"):
		return warnColor.Sprint(line)
	case strings.Contains(lower, "info"):
		return infoColor.Sprint(line)
	case containsAny(lower, "debug", "trace"):
		return debugColor.Sprint(line)
	default:
		return line
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
