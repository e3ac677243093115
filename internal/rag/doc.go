// Package rag coordinates the per-project retrieval engine: file discovery,
// chunking, embedding, both indices, and the hybrid search pipeline.
//
// An Engine exclusively owns the index pair of one project under
// <project_root>/.terminal_helper/rag-data/ for the lifetime of a session:
//
//	code_vectors.bin            little-endian float32 vector payload
//	code_vectors.metadata.json  {"dimension", "size", "metadata": [[id, meta], ...]}
//	code_bm25.json              full BM25 snapshot
//
// Indexing runs in file batches: chunks embed concurrently within a batch,
// insertion into both indices is serialized, and snapshots are written with
// temp-file + atomic rename after the run. Per-file failures are logged and
// skipped; the run aborts only when every chunk of a batch fails to embed or
// the caller cancels. Cancellation finishes the current batch and skips the
// save, so readers always observe the last saved state.
//
// Retrieve never fails for engine-side reasons. When both indices are empty
// it auto-indexes a bounded slice of the project first; when the embedder is
// unavailable it degrades to lexical results; when nothing is indexable it
// returns an empty result.
package rag
