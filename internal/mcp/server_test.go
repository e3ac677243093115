package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/termhelper-rag/internal/config"
)

// embedServer serves the embedder wire protocol for handler tests and writes
// a project config pointing at itself, so engines opened by path find it.
func embedServer(t *testing.T, root string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		var req struct {
			Text string `json:"text"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		vec := make([]float64, 8)
		for i, b := range []byte(req.Text) {
			vec[i%8] += float64(b) / 255
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": vec})
	}))
	t.Cleanup(srv.Close)

	dir := filepath.Join(root, ".terminal_helper")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	cfgBody := "embedder:\n  base_url: " + srv.URL + "\n  dimension: 8\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.ConfigFileName), []byte(cfgBody), 0o644))
}

func newProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"),
		[]byte("package main\n\nimport \"fmt\"\n\nfunc main() { fmt.Println(\"hi\") }\n"), 0o644))
	embedServer(t, root)
	return root
}

func callRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func textOf(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestHandleIndexCodebase(t *testing.T) {
	root := newProject(t)
	s, err := NewServer()
	require.NoError(t, err)

	result, err := s.handleIndexCodebase(context.Background(),
		callRequest("index_codebase", map[string]interface{}{"path": root}))
	require.NoError(t, err)

	out := textOf(t, result)
	assert.Contains(t, out, `"indexed": true`)
	assert.Contains(t, out, `"file_count": 1`)
	assert.FileExists(t, filepath.Join(root, ".terminal_helper", "rag-data", "code_bm25.json"))
}

func TestHandleRetrieveRelevantFiles(t *testing.T) {
	root := newProject(t)
	s, err := NewServer()
	require.NoError(t, err)

	_, err = s.handleIndexCodebase(context.Background(),
		callRequest("index_codebase", map[string]interface{}{"path": root}))
	require.NoError(t, err)

	result, err := s.handleRetrieveRelevantFiles(context.Background(),
		callRequest("retrieve_relevant_files", map[string]interface{}{
			"path":  root,
			"query": "error: Println failed in main.go",
		}))
	require.NoError(t, err)

	out := textOf(t, result)
	assert.Contains(t, out, "main.go")
	assert.Contains(t, out, "root_cause_file")
}

func TestHandleRagStats(t *testing.T) {
	root := newProject(t)
	s, err := NewServer()
	require.NoError(t, err)

	result, err := s.handleRagStats(context.Background(),
		callRequest("rag_stats", map[string]interface{}{"path": root}))
	require.NoError(t, err)

	out := textOf(t, result)
	assert.Contains(t, out, "vector_stats")
	assert.Contains(t, out, "bm25_stats")
	assert.Contains(t, out, "hybrid_config")
}

func TestHandleIndexSingleFile(t *testing.T) {
	root := newProject(t)
	s, err := NewServer()
	require.NoError(t, err)

	result, err := s.handleIndexSingleFile(context.Background(),
		callRequest("index_single_file", map[string]interface{}{
			"path": root,
			"file": filepath.Join(root, "main.go"),
		}))
	require.NoError(t, err)
	assert.Contains(t, textOf(t, result), `"chunk_count": 1`)
}

func TestHandlers_InvalidParams(t *testing.T) {
	s, err := NewServer()
	require.NoError(t, err)

	_, err = s.handleIndexCodebase(context.Background(),
		callRequest("index_codebase", map[string]interface{}{}))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "path"))

	_, err = s.handleIndexCodebase(context.Background(),
		callRequest("index_codebase", map[string]interface{}{"path": "relative/path"}))
	require.Error(t, err)

	root := newProject(t)
	_, err = s.handleRetrieveRelevantFiles(context.Background(),
		callRequest("retrieve_relevant_files", map[string]interface{}{"path": root}))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "query") || strings.Contains(err.Error(), "-32602"))
}
