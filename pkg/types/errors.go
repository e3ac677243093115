package types

import "errors"

// Domain errors shared across the retrieval engine. Callers match them with
// errors.Is; components wrap them with context via fmt.Errorf("...: %w", err).
var (
	// Index errors
	ErrCorruptIndex    = errors.New("index file is corrupt")
	ErrIndexInProgress = errors.New("another indexing operation is already running")
	ErrNotIndexed      = errors.New("project not indexed")

	// Embedder errors
	ErrEmbedderUnavailable = errors.New("embedding service unavailable")

	// Configuration errors
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrInvalidDimension = errors.New("invalid vector dimension")

	// Search result errors
	ErrInvalidChunkID = errors.New("invalid chunk ID")
	ErrNegativeScore  = errors.New("scores must be non-negative")
)
