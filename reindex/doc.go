// Package reindex rebuilds the vector index from the stored chunks.
//
// It is used after switching embedding models or vector index backends:
// every chunk is re-embedded in batches, the vectors are normalized to unit
// length and upserted into the index. Embedding calls are retried with
// exponential backoff and progress is reported to a writer.
package reindex
