// Package embedder calls the out-of-process embedding service over HTTP JSON.
//
// The wire protocol is consumed, not implemented, by the engine:
//
//	GET  /health              -> 200 when ready
//	POST /embed {"text": s}   -> 200 {"embedding": [f32...]}
//
// Responses are normalized to the client's fixed dimension: short vectors are
// right-padded with 0.1, long ones truncated, and non-finite components
// replaced with 0.1. Calls carry a 30 second timeout; a failed call may start
// the external process through a caller-supplied Starter hook and is retried
// once before the failure propagates.
//
// Embeddings are cached in an LRU keyed by the SHA-256 of the input text, so
// re-indexing unchanged chunks does not re-embed them within one session.
package embedder
