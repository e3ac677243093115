// Package bm25 implements an inverted index with Okapi BM25 scoring.
//
// Documents are chunks tokenized with the comment-stripping code tokenizer;
// queries are tokenized with the same persisted options so index and query
// vocabularies always agree. Scoring uses the smoothed idf
//
//	idf(t) = ln(1 + (N - n_t + 0.5)/(n_t + 0.5) + epsilon)
//
// with k1 = 1.2, b = 0.75, epsilon = 0.25 by default. The average document
// length is maintained as a running mean on insert.
//
// Snapshots are plain JSON carrying the full index state including the
// ranking parameters and tokenizer options, written via temp file + atomic
// rename.
package bm25
