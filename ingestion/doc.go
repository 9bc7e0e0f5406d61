// Package ingestion runs the durable ingestion workflow.
//
// An Engine turns a text into indexed chunks in four steps: split, persist,
// embed and index. Every step result is memoized in a storage.StepLog keyed by
// instance, step and chunk index, so an interrupted instance resumes where it
// stopped and never repeats a completed side effect.
//
// Chunks of one instance are processed concurrently on a worker pool. A chunk
// whose step exhausts its retries is abandoned without affecting the others;
// the instance then ends in the partial state.
package ingestion
