// Package types provides shared type definitions for the termhelper retrieval
// engine.
//
// This package defines the domain types used across the engine components:
// chunks, chunk metadata, search results, and the sentinel errors matched with
// errors.Is throughout the codebase.
//
// # Core Types
//
// Chunk represents a line-addressable region of a source file, the unit of
// indexing:
//
//	chunk := &types.Chunk{
//	    FilePath:  "/proj/internal/router.go",
//	    StartLine: 1,
//	    EndLine:   40,
//	    Content:   src,
//	}
//	id := chunk.ID() // "/proj/internal/router.go:1-40"
//
// ChunkMeta is the persistable metadata view shared by the lexical and the
// vector index; its JSON field names are part of the on-disk contract between
// index snapshots written by different engine versions.
//
// SearchResult carries the per-index scores and the fused combined score for
// one retrieval hit.
package types
