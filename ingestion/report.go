package ingestion

import (
	"errors"
	"fmt"

	"github.com/poiesic/ragnote/core"
)

// ChunkFailure describes a chunk that was abandoned after a step exhausted
// its retries.
type ChunkFailure struct {
	Index int
	Step  core.StepName
	Err   error
}

func (f ChunkFailure) Error() string {
	return fmt.Sprintf("chunk %d: %s: %v", f.Index, f.Step, f.Err)
}

func (f ChunkFailure) Unwrap() error {
	return f.Err
}

// Report is the outcome of one run of a workflow instance.
type Report struct {
	InstanceID string
	Chunks     int
	Indexed    int
	Failures   []ChunkFailure // ordered by chunk index
}

// Complete reports whether every chunk was indexed.
func (r *Report) Complete() bool {
	return len(r.Failures) == 0
}

// Err joins the chunk failures, or returns nil when the run was complete.
func (r *Report) Err() error {
	if r.Complete() {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}
