// Package mcp exposes the retrieval engine to the interactive assistant over
// the Model Context Protocol on stdio.
//
// Four tools map one-to-one onto the engine surface: index_codebase,
// retrieve_relevant_files, index_single_file, and rag_stats. Handlers
// validate parameters and delegate to rag.Engine; no ranking logic lives
// here. One engine is opened and cached per project root.
package mcp
