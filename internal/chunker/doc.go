// Package chunker divides source files into line-anchored overlapping chunks
// for embedding and lexical search.
//
// A chunk closes when it reaches 40 lines or 1200 characters, whichever comes
// first, and the next chunk re-reads the last 10 lines so declarations near a
// boundary appear complete in at least one chunk. A chunk of 10 lines or fewer
// (closed by the character bound) is followed by a chunk starting one line
// after it. StartLine and EndLine are
// 1-based and inclusive and map exactly into the original file, so snippets
// can be re-read later with a plain line-range read.
//
// Binary files (a NUL byte within the first 8 KiB) and empty or
// whitespace-only files yield zero chunks. Chunking is deterministic: the
// same bytes always produce the same chunks.
package chunker
