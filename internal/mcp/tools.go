package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/termhelper-rag/internal/rag"
	"github.com/dshills/termhelper-rag/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeIndexingInProgress = -32002 // Another indexing operation is already running
	ErrorCodeCorruptIndex       = -32005 // Index files present but unreadable
)

// handleIndexCodebase handles the index_codebase tool invocation
func (s *Server) handleIndexCodebase(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, err := requirePath(args, "path")
	if err != nil {
		return nil, err
	}

	opts := rag.IndexOptions{
		MaxFiles:     getIntDefault(args, "max_files", rag.DefaultMaxFiles),
		BatchSize:    getIntDefault(args, "batch_size", rag.DefaultBatchSize),
		ForceReindex: getBoolDefault(args, "force_reindex", false),
	}
	if raw, ok := args["exclude_dirs"].([]interface{}); ok {
		for _, v := range raw {
			if name, ok := v.(string); ok {
				opts.ExcludeDirs = append(opts.ExcludeDirs, name)
			}
		}
	}

	engine, err := s.engineFor(path)
	if err != nil {
		return nil, engineError(err)
	}

	result, err := engine.IndexCodebase(ctx, opts)
	if err != nil {
		if errors.Is(err, types.ErrIndexInProgress) {
			return nil, newMCPError(ErrorCodeIndexingInProgress, "indexing already in progress", nil)
		}
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"indexed":      true,
		"file_count":   result.FileCount,
		"chunk_count":  result.ChunkCount,
		"failed_files": result.FailedFiles,
		"duration_ms":  result.Duration.Milliseconds(),
		"vector_stats": result.VectorStats,
		"bm25_stats":   result.BM25Stats,
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleRetrieveRelevantFiles handles the retrieve_relevant_files tool invocation
func (s *Server) handleRetrieveRelevantFiles(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, err := requirePath(args, "path")
	if err != nil {
		return nil, err
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "query parameter is required", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	engine, err := s.engineFor(path)
	if err != nil {
		return nil, engineError(err)
	}

	result, err := engine.Retrieve(ctx, query, rag.RetrieveOptions{
		TopK: getIntDefault(args, "top_k", 0),
	})
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "retrieval cancelled", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"results":         formatResults(result.Results),
		"grouped_results": formatGroups(result.GroupedResults),
	}
	if result.RootCause != nil {
		response["root_cause_file"] = formatResult(*result.RootCause)
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleIndexSingleFile handles the index_single_file tool invocation
func (s *Server) handleIndexSingleFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, err := requirePath(args, "path")
	if err != nil {
		return nil, err
	}

	file, ok := args["file"].(string)
	if !ok || file == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "file parameter is required", map[string]interface{}{
			"param":  "file",
			"reason": "missing or empty",
		})
	}

	engine, err := s.engineFor(path)
	if err != nil {
		return nil, engineError(err)
	}

	result, err := engine.IndexSingleFile(ctx, file)
	if err != nil {
		if errors.Is(err, types.ErrIndexInProgress) {
			return nil, newMCPError(ErrorCodeIndexingInProgress, "indexing already in progress", nil)
		}
		return nil, newMCPError(ErrorCodeInternalError, "single-file indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"file":        result.FilePath,
		"chunk_count": result.ChunkCount,
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleRagStats handles the rag_stats tool invocation
func (s *Server) handleRagStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, err := requirePath(args, "path")
	if err != nil {
		return nil, err
	}

	engine, err := s.engineFor(path)
	if err != nil {
		return nil, engineError(err)
	}

	stats := engine.Stats()
	response := map[string]interface{}{
		"vector_stats":  stats.VectorStats,
		"bm25_stats":    stats.BM25Stats,
		"hybrid_config": stats.HybridConfig,
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// formatResult flattens one search result for the tool response.
func formatResult(r types.SearchResult) map[string]interface{} {
	return map[string]interface{}{
		"chunk_id":       r.ChunkID,
		"file_path":      r.Meta.FilePath,
		"file_name":      r.Meta.FileName,
		"start_line":     r.Meta.StartLine,
		"end_line":       r.Meta.EndLine,
		"bm25_score":     r.BM25Score,
		"vector_score":   r.VectorScore,
		"combined_score": r.CombinedScore,
		"has_imports":    r.Meta.HasImports,
	}
}

func formatResults(results []types.SearchResult) []map[string]interface{} {
	out := make([]map[string]interface{}, len(results))
	for i, r := range results {
		out[i] = formatResult(r)
	}
	return out
}

func formatGroups(groups []types.FileGroup) []map[string]interface{} {
	out := make([]map[string]interface{}, len(groups))
	for i, g := range groups {
		out[i] = map[string]interface{}{
			"file_path":   g.FilePath,
			"max_score":   g.MaxScore,
			"total_score": g.TotalScore,
			"chunks":      formatResults(g.Chunks),
		}
	}
	return out
}

// engineError maps engine open failures to MCP errors.
func engineError(err error) error {
	if errors.Is(err, types.ErrCorruptIndex) {
		return newMCPError(ErrorCodeCorruptIndex, "index files are corrupt", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return newMCPError(ErrorCodeInternalError, "failed to open project", map[string]interface{}{
		"error": err.Error(),
	})
}

// requirePath extracts and validates the project root parameter.
func requirePath(args map[string]interface{}, key string) (string, error) {
	path, ok := args[key].(string)
	if !ok || path == "" {
		return "", newMCPError(ErrorCodeInvalidParams, key+" parameter is required", map[string]interface{}{
			"param":  key,
			"reason": "missing or empty",
		})
	}
	if err := validatePath(path); err != nil {
		return "", newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  key,
			"reason": err.Error(),
		})
	}
	return path, nil
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validatePath checks if a path exists and is an accessible directory.
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}

	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}

	if !info.IsDir() {
		return ErrNotDirectory
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()

	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
)
