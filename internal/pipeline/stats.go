package pipeline

import "time"

// RunStats tracks what one pipeline run produced, for the end-of-run
// summary.
type RunStats struct {
	Subject     string
	Stages      int
	Derivatives int
	Elapsed     time.Duration
	Failed      bool
}
