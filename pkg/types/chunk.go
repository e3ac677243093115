package types

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Chunk represents an immutable line-range region of one source file. It is
// the unit of indexing: both the lexical and the vector index store chunks
// keyed by the same ID.
type Chunk struct {
	// Location
	FilePath  string // Absolute path of the source file
	StartLine int    // 1-based, inclusive
	EndLine   int    // 1-based, inclusive

	// Content
	Content string

	// Metadata
	HasImports bool   // True if the chunk contains top-of-file import/include lines
	FileExt    string // Lowercase extension including the dot, e.g. ".go"
}

// ID returns the chunk identity "<file_path>:<start>-<end>", unique within
// one project index.
func (c *Chunk) ID() string {
	return fmt.Sprintf("%s:%d-%d", c.FilePath, c.StartLine, c.EndLine)
}

// Meta returns the persistable metadata view of the chunk.
func (c *Chunk) Meta() ChunkMeta {
	return ChunkMeta{
		FilePath:   c.FilePath,
		FileName:   filepath.Base(c.FilePath),
		StartLine:  c.StartLine,
		EndLine:    c.EndLine,
		FileExt:    c.FileExt,
		HasImports: c.HasImports,
	}
}

// Validate checks the chunk invariants.
func (c *Chunk) Validate() error {
	if strings.TrimSpace(c.Content) == "" {
		return errors.New("chunk content cannot be empty")
	}

	if c.StartLine <= 0 || c.EndLine <= 0 {
		return errors.New("line numbers must be positive")
	}

	if c.StartLine > c.EndLine {
		return errors.New("start line must be before or equal to end line")
	}

	if c.FilePath == "" {
		return errors.New("file path is required")
	}

	return nil
}
