package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/termhelper-rag/internal/bm25"
	"github.com/dshills/termhelper-rag/internal/chunker"
	"github.com/dshills/termhelper-rag/internal/config"
	"github.com/dshills/termhelper-rag/internal/embedder"
	"github.com/dshills/termhelper-rag/internal/search"
	"github.com/dshills/termhelper-rag/internal/tokenizer"
	"github.com/dshills/termhelper-rag/internal/vectorindex"
	"github.com/dshills/termhelper-rag/internal/walker"
	"github.com/dshills/termhelper-rag/pkg/types"
)

// Fixed on-disk layout per project. These names are part of the filesystem
// contract with the interactive assistant.
const (
	StateDirName    = ".terminal_helper"
	RagDataDirName  = "rag-data"
	VectorIndexName = "code_vectors"
	BM25FileName    = "code_bm25.json"
)

// Indexing defaults.
const (
	DefaultMaxFiles  = 1000
	DefaultBatchSize = 20

	// Auto-indexing bounds used when retrieval finds both indices empty.
	autoIndexMaxFiles  = 100
	autoIndexBatchSize = 10
)

// DataDir returns the index directory for a project root.
func DataDir(projectRoot string) string {
	return filepath.Join(projectRoot, StateDirName, RagDataDirName)
}

// IndexOptions controls one IndexCodebase run.
type IndexOptions struct {
	ExcludeDirs  []string
	MaxFiles     int // default 1000
	BatchSize    int // default 20
	ForceReindex bool
}

// IndexResult reports what an indexing run accomplished.
type IndexResult struct {
	FileCount   int
	ChunkCount  int
	FailedFiles int
	Duration    time.Duration
	VectorStats vectorindex.Stats
	BM25Stats   bm25.Stats
}

// RetrieveOptions controls one retrieval call. Zero values fall back to the
// project configuration.
type RetrieveOptions struct {
	TopK         int
	BM25Weight   float64
	VectorWeight float64
}

// RetrieveResult is the always-present answer of Retrieve. All fields may be
// empty when nothing is indexable or the embedder is unavailable.
type RetrieveResult struct {
	Results        []types.SearchResult
	GroupedResults []types.FileGroup
	RootCause      *types.SearchResult
}

// SingleFileResult reports an IndexSingleFile run.
type SingleFileResult struct {
	FilePath   string
	ChunkCount int
}

// StatsResult summarizes both indices and the fusion configuration.
type StatsResult struct {
	VectorStats  vectorindex.Stats
	BM25Stats    bm25.Stats
	HybridConfig config.HybridConfig
}

// Engine owns the pair of indices of one project for the lifetime of a
// retrieval session. Mutations (indexing, saving) are exclusive with
// queries; concurrent queries against a loaded engine run in parallel.
type Engine struct {
	mu sync.RWMutex

	// indexing admits one writer run at a time without blocking: a second
	// IndexCodebase or IndexSingleFile call fails fast with
	// types.ErrIndexInProgress instead of queueing behind the first.
	indexing atomic.Bool

	root     string
	dataDir  string
	cfg      *config.Config
	chunker  *chunker.Chunker
	embedder *embedder.Client

	lexical *bm25.Index
	vectors *vectorindex.Index
}

// Open initializes the engine for projectRoot: the data directory is created
// if missing and both indices are loaded when present, otherwise constructed
// empty. A nil cfg loads the project configuration; a nil emb builds a
// client from it. Corrupt index files propagate as types.ErrCorruptIndex.
func Open(projectRoot string, emb *embedder.Client, cfg *config.Config) (*Engine, error) {
	root, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, err
	}

	if cfg == nil {
		cfg, err = config.Load(root)
		if err != nil {
			return nil, err
		}
	}

	if emb == nil {
		emb, err = embedder.NewClient(embedder.Config{
			BaseURL:   cfg.Embedder.BaseURL,
			Dimension: cfg.Embedder.Dimension,
			Timeout:   time.Duration(cfg.Embedder.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, err
		}
	}

	dataDir := DataDir(root)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create rag data directory: %w", err)
	}

	e := &Engine{
		root:     root,
		dataDir:  dataDir,
		cfg:      cfg,
		chunker:  chunker.NewWithBounds(cfg.Chunker.MaxLines, cfg.Chunker.MaxChars, cfg.Chunker.OverlapLines),
		embedder: emb,
	}

	if err := e.loadIndices(); err != nil {
		return nil, err
	}

	return e, nil
}

// Root returns the absolute project root.
func (e *Engine) Root() string {
	return e.root
}

// loadIndices opens persisted snapshots or constructs empty indices.
func (e *Engine) loadIndices() error {
	bm25Path := filepath.Join(e.dataDir, BM25FileName)
	switch idx, err := bm25.Load(bm25Path); {
	case err == nil:
		e.lexical = idx
	case os.IsNotExist(err):
		e.lexical = bm25.New(bm25.Params{
			K1:      e.cfg.BM25.K1,
			B:       e.cfg.BM25.B,
			Epsilon: e.cfg.BM25.Epsilon,
		}, tokenizerOptions())
	default:
		return err
	}

	switch idx, err := vectorindex.Load(e.dataDir, VectorIndexName); {
	case err == nil:
		e.vectors = idx
	case os.IsNotExist(err):
		var newErr error
		e.vectors, newErr = vectorindex.New(e.cfg.Embedder.Dimension)
		if newErr != nil {
			return newErr
		}
	default:
		return err
	}

	return nil
}

// IndexCodebase walks, chunks, embeds and indexes the project, then saves
// both indices. Per-file failures are logged and skipped; the run aborts
// only when the embedder fails every chunk of a batch, or on cancellation.
// A cancelled run finishes its current batch and does not save, so readers
// observe the last saved state.
func (e *Engine) IndexCodebase(ctx context.Context, opts IndexOptions) (*IndexResult, error) {
	if !e.indexing.CompareAndSwap(false, true) {
		return nil, types.ErrIndexInProgress
	}
	defer e.indexing.Store(false)

	start := time.Now()

	if opts.MaxFiles <= 0 {
		opts.MaxFiles = DefaultMaxFiles
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}

	if opts.ForceReindex {
		if err := e.resetIndices(); err != nil {
			return nil, err
		}
	}

	excludes := append([]string{}, e.cfg.Walker.ExcludeDirs...)
	excludes = append(excludes, opts.ExcludeDirs...)
	w, err := walker.New(e.root, excludes)
	if err != nil {
		return nil, fmt.Errorf("open project root: %w", err)
	}

	files, err := w.Walk()
	if err != nil {
		return nil, fmt.Errorf("walk project: %w", err)
	}
	if len(files) > opts.MaxFiles {
		files = files[:opts.MaxFiles]
	}

	result := &IndexResult{}

	for batchStart := 0; batchStart < len(files); batchStart += opts.BatchSize {
		batchEnd := batchStart + opts.BatchSize
		if batchEnd > len(files) {
			batchEnd = len(files)
		}

		indexed, err := e.indexBatch(ctx, files[batchStart:batchEnd], result)
		if err != nil {
			return nil, err
		}
		result.ChunkCount += indexed

		// Cancellation is observed between batches; the finished batch stays
		// in memory but nothing is saved.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	if err := e.save(); err != nil {
		return nil, err
	}

	e.mu.RLock()
	result.VectorStats = e.vectors.Stats()
	result.BM25Stats = e.lexical.Stats()
	e.mu.RUnlock()
	result.Duration = time.Since(start)

	return result, nil
}

// indexBatch chunks and embeds one batch of files, then inserts the
// successful chunks into both indices in walker order. Returns the number of
// chunks inserted.
func (e *Engine) indexBatch(ctx context.Context, files []string, result *IndexResult) (int, error) {
	var chunks []*types.Chunk

	for _, file := range files {
		fileChunks, err := e.chunker.ChunkFile(file)
		if err != nil {
			slog.Warn("file skipped", "path", file, "error", err)
			result.FailedFiles++
			continue
		}
		result.FileCount++

		for _, c := range fileChunks {
			e.mu.RLock()
			known := e.lexical.Contains(c.ID())
			e.mu.RUnlock()
			if known {
				continue
			}
			chunks = append(chunks, c)
		}
	}

	if len(chunks) == 0 {
		return 0, nil
	}

	vectors, embedFailures := e.embedChunks(ctx, chunks)
	if embedFailures == len(chunks) && ctx.Err() == nil {
		return 0, fmt.Errorf("%w: every chunk in batch failed to embed", types.ErrEmbedderUnavailable)
	}

	// Single-writer insertion, in walker order, both indices in lockstep.
	e.mu.Lock()
	defer e.mu.Unlock()

	inserted := 0
	for i, c := range chunks {
		if vectors[i] == nil {
			continue
		}
		e.vectors.Add([]vectorindex.Entry{{Meta: c.Meta(), Vector: vectors[i]}})
		e.lexical.Add(c)
		inserted++
	}

	return inserted, nil
}

// embedChunks embeds a batch concurrently. The returned slice is positional:
// a nil vector marks a chunk whose embedding failed.
func (e *Engine) embedChunks(ctx context.Context, chunks []*types.Chunk) ([][]float32, int) {
	vectors := make([][]float32, len(chunks))

	workers := runtime.NumCPU()
	if workers > len(chunks) {
		workers = len(chunks)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var mu sync.Mutex
	failures := 0

	for i, c := range chunks {
		g.Go(func() error {
			vec, err := e.embedder.Embed(gctx, c.Content)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				slog.Warn("chunk embedding failed", "chunk", c.ID(), "error", err)
				mu.Lock()
				failures++
				mu.Unlock()
				return nil
			}
			vectors[i] = vec
			return nil
		})
	}

	_ = g.Wait()
	return vectors, failures
}

// Retrieve runs the full retrieval pipeline for an error log. It never fails
// for engine-side reasons: when nothing is indexable, the embedder is down,
// or the indices are corrupt, the result is simply empty. The only error
// returned is the caller's own cancellation.
func (e *Engine) Retrieve(ctx context.Context, errorLog string, opts RetrieveOptions) (*RetrieveResult, error) {
	empty := &RetrieveResult{}

	if ctx.Err() != nil {
		return empty, ctx.Err()
	}

	e.mu.RLock()
	indexed := e.lexical.DocCount() > 0 || e.vectors.Size() > 0
	e.mu.RUnlock()

	if !indexed {
		if _, err := e.IndexCodebase(ctx, IndexOptions{
			MaxFiles:  autoIndexMaxFiles,
			BatchSize: autoIndexBatchSize,
		}); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return empty, err
			}
			slog.Warn("auto-indexing failed", "root", e.root, "error", err)
		}
	}

	searchOpts := search.Options{
		BM25Weight:   e.cfg.Hybrid.BM25Weight,
		VectorWeight: e.cfg.Hybrid.VectorWeight,
		K:            e.cfg.Hybrid.TopK,
	}
	if opts.TopK > 0 {
		searchOpts.K = opts.TopK
	}
	if opts.BM25Weight > 0 || opts.VectorWeight > 0 {
		searchOpts.BM25Weight = opts.BM25Weight
		searchOpts.VectorWeight = opts.VectorWeight
	}

	// The embedder round trip happens before the read lock is taken; only
	// the read-only index scans run under it.
	e.mu.RLock()
	fuser := search.NewFuser(e.lexical, e.vectors, e.embedder)
	e.mu.RUnlock()

	prepared, err := fuser.Prepare(ctx, errorLog)
	if err != nil {
		return empty, err
	}

	e.mu.RLock()
	results, err := fuser.SearchPrepared(prepared, searchOpts)
	e.mu.RUnlock()

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return empty, err
		}
		slog.Warn("retrieval failed", "root", e.root, "error", err)
		return empty, nil
	}

	return &RetrieveResult{
		Results:        results,
		GroupedResults: search.GroupByFile(results),
		RootCause:      search.IdentifyRootCause(results, errorLog),
	}, nil
}

// IndexSingleFile chunks, embeds and indexes one file, then saves both
// indices. Chunks already present are left untouched.
func (e *Engine) IndexSingleFile(ctx context.Context, path string) (*SingleFileResult, error) {
	if !e.indexing.CompareAndSwap(false, true) {
		return nil, types.ErrIndexInProgress
	}
	defer e.indexing.Store(false)

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if !walker.Indexable(abs) {
		return nil, fmt.Errorf("%s: not a recognized source file", abs)
	}

	result := &IndexResult{}
	inserted, err := e.indexBatch(ctx, []string{abs}, result)
	if err != nil {
		return nil, err
	}
	if result.FailedFiles > 0 {
		return nil, fmt.Errorf("failed to read %s", abs)
	}

	if err := e.save(); err != nil {
		return nil, err
	}

	return &SingleFileResult{FilePath: abs, ChunkCount: inserted}, nil
}

// Stats returns both index summaries plus the fusion configuration.
func (e *Engine) Stats() StatsResult {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return StatsResult{
		VectorStats:  e.vectors.Stats(),
		BM25Stats:    e.lexical.Stats(),
		HybridConfig: e.cfg.Hybrid,
	}
}

// save persists both indices with temp-file + atomic rename.
func (e *Engine) save() error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if err := e.lexical.Save(e.dataDir, BM25FileName); err != nil {
		return fmt.Errorf("save bm25 index: %w", err)
	}
	if err := e.vectors.Save(e.dataDir, VectorIndexName); err != nil {
		return fmt.Errorf("save vector index: %w", err)
	}
	return nil
}

// resetIndices replaces both indices with fresh empties.
func (e *Engine) resetIndices() error {
	vectors, err := vectorindex.New(e.cfg.Embedder.Dimension)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.lexical = bm25.New(bm25.Params{
		K1:      e.cfg.BM25.K1,
		B:       e.cfg.BM25.B,
		Epsilon: e.cfg.BM25.Epsilon,
	}, tokenizerOptions())
	e.vectors = vectors
	return nil
}

func tokenizerOptions() tokenizer.Options {
	return tokenizer.DefaultOptions()
}
