package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// indexCodebaseTool returns the tool definition for index_codebase
func indexCodebaseTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_codebase",
		Description: "Index a project's source files for hybrid code retrieval",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the project root",
				},
				"exclude_dirs": map[string]interface{}{
					"type":        "array",
					"description": "Directory names to exclude in addition to the defaults",
					"items":       map[string]interface{}{"type": "string"},
				},
				"max_files": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of files to index",
					"default":     1000,
				},
				"batch_size": map[string]interface{}{
					"type":        "integer",
					"description": "Files processed per embedding batch",
					"default":     20,
				},
				"force_reindex": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, rebuild both indices from scratch",
					"default":     false,
				},
			},
			Required: []string{"path"},
		},
	}
}

// retrieveRelevantFilesTool returns the tool definition for retrieve_relevant_files
func retrieveRelevantFilesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "retrieve_relevant_files",
		Description: "Rank indexed source regions against an error log or natural-language query",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the project root",
				},
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Error log, traceback, or natural-language query",
				},
				"top_k": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return",
					"default":     5,
				},
			},
			Required: []string{"path", "query"},
		},
	}
}

// indexSingleFileTool returns the tool definition for index_single_file
func indexSingleFileTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_single_file",
		Description: "Index one source file into the project's indices",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the project root",
				},
				"file": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the source file",
				},
			},
			Required: []string{"path", "file"},
		},
	}
}

// ragStatsTool returns the tool definition for rag_stats
func ragStatsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "rag_stats",
		Description: "Report index statistics and hybrid search configuration for a project",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the project root",
				},
			},
			Required: []string{"path"},
		},
	}
}
