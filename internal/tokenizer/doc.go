// Package tokenizer produces lexical terms from source code and queries.
//
// The pipeline lowercases, splits on code punctuation and operators, removes
// a fixed English stopword set, and applies a minimal suffix stemmer. The
// same Options must be used for indexing and querying; the BM25 index
// persists its Options inside its snapshot for that reason.
//
// Preprocess additionally strips block, line, and hash comments and collapses
// whitespace; it runs on chunk content before index-time tokenization.
package tokenizer
