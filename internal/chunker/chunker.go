package chunker

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dshills/termhelper-rag/pkg/types"
)

const (
	// MaxLinesPerChunk is the line bound of one chunk.
	MaxLinesPerChunk = 40

	// MaxCharsPerChunk is the character bound of one chunk; a chunk closes at
	// whichever bound it hits first.
	MaxCharsPerChunk = 1200

	// OverlapLines is the number of trailing lines repeated at the start of
	// the next chunk so a symbol near a boundary appears complete in at least
	// one chunk.
	OverlapLines = 10

	// binarySniffLen is how many leading bytes are inspected for a NUL byte.
	binarySniffLen = 8 * 1024
)

// importLinePattern matches top-of-file import/include forms across the
// supported languages.
var importLinePattern = regexp.MustCompile(`^\s*(import|from|#include|require\s*\(|use\s+)`)

// Chunker splits source files into line-anchored overlapping chunks.
type Chunker struct {
	maxLines int
	maxChars int
	overlap  int
}

// New creates a Chunker with the default bounds.
func New() *Chunker {
	return &Chunker{
		maxLines: MaxLinesPerChunk,
		maxChars: MaxCharsPerChunk,
		overlap:  OverlapLines,
	}
}

// NewWithBounds creates a Chunker with explicit bounds. A non-positive
// maxLines or maxChars and a negative overlap fall back to the defaults; an
// overlap of zero is kept. Overlap is capped below maxLines so successive
// chunks always advance.
func NewWithBounds(maxLines, maxChars, overlap int) *Chunker {
	c := New()
	if maxLines > 0 {
		c.maxLines = maxLines
	}
	if maxChars > 0 {
		c.maxChars = maxChars
	}
	if overlap >= 0 {
		c.overlap = overlap
	}
	if c.overlap >= c.maxLines {
		c.overlap = c.maxLines - 1
	}
	return c
}

// ChunkFile reads and chunks the file at path. Binary files yield zero chunks,
// as do empty or whitespace-only files.
func (c *Chunker) ChunkFile(path string) ([]*types.Chunk, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	if isBinary(content) {
		return nil, nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	return c.Chunk(abs, string(content)), nil
}

// Chunk splits content into chunks attributed to filePath. Boundaries are
// deterministic: the same content always yields the same chunks.
func (c *Chunker) Chunk(filePath, content string) []*types.Chunk {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	lines := strings.Split(content, "\n")
	// A trailing newline produces one empty trailing element; dropping it
	// keeps EndLine addressable in the original text.
	if n := len(lines); n > 1 && lines[n-1] == "" {
		lines = lines[:n-1]
	}

	ext := strings.ToLower(filepath.Ext(filePath))

	var chunks []*types.Chunk
	start := 0 // 0-based index of the first line of the current chunk

	for start < len(lines) {
		end := start
		chars := 0
		for end < len(lines) {
			chars += len(lines[end]) + 1
			end++
			if end-start >= c.maxLines || chars >= c.maxChars {
				break
			}
		}

		chunk := &types.Chunk{
			FilePath:  filePath,
			StartLine: start + 1,
			EndLine:   end,
			Content:   strings.Join(lines[start:end], "\n"),
			FileExt:   ext,
		}
		chunk.HasImports = containsImportLine(lines[start:end])

		if strings.TrimSpace(chunk.Content) != "" {
			chunks = append(chunks, chunk)
		}

		if end >= len(lines) {
			break
		}

		next := end - c.overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return chunks
}

// containsImportLine reports whether any line matches the import/include
// pattern.
func containsImportLine(lines []string) bool {
	for _, line := range lines {
		if importLinePattern.MatchString(line) {
			return true
		}
	}
	return false
}

// isBinary reports whether content looks binary: any NUL byte within the
// first 8 KiB.
func isBinary(content []byte) bool {
	sniff := content
	if len(sniff) > binarySniffLen {
		sniff = sniff[:binarySniffLen]
	}
	return bytes.IndexByte(sniff, 0) >= 0
}
