package jobstore

import (
	"fmt"
	"strings"

	"github.com/joshuarubin/job/internal/job"
	"github.com/joshuarubin/job/internal/joberrors"
)

// AmbiguousError is returned by Get and Resolve when an id prefix or job
// name matches more than one job. It carries the query and the colliding
// jobs so a caller can enumerate them for the user, the way the original
// implementation's `retry`/`wait` commands print "Multiple jobs named
// '<name>'. Use ID instead:" followed by one "<short id> (<status>)" line
// per candidate.
type AmbiguousError struct {
	Query      string
	Candidates []*job.Job
}

func (e *AmbiguousError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "multiple jobs match %q, use the full id instead:", e.Query)
	for _, j := range e.Candidates {
		fmt.Fprintf(&sb, "\n  %s (%s)", j.ShortID(), j.Status)
	}
	return sb.String()
}

// Unwrap lets errors.Is(err, joberrors.ErrAmbiguous) keep working for
// callers that only care about the error kind, not the candidate list.
func (e *AmbiguousError) Unwrap() error {
	return joberrors.ErrAmbiguous
}
