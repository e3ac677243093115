package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/dshills/termhelper-rag/internal/bm25"
	"github.com/dshills/termhelper-rag/internal/embedder"
	"github.com/dshills/termhelper-rag/internal/vectorindex"
	"github.com/dshills/termhelper-rag/pkg/types"
)

// Default fusion weights and result count.
const (
	DefaultBM25Weight   = 0.3
	DefaultVectorWeight = 0.7
	DefaultTopK         = 5
)

// Options tunes one hybrid search call.
type Options struct {
	BM25Weight   float64
	VectorWeight float64
	K            int
	ExpandedK    int // candidate pool per index; defaults to 3*K
}

// DefaultOptions returns the standard fusion configuration.
func DefaultOptions() Options {
	return Options{
		BM25Weight:   DefaultBM25Weight,
		VectorWeight: DefaultVectorWeight,
		K:            DefaultTopK,
	}
}

// validate normalizes the options in place.
func (o *Options) validate() error {
	if o.BM25Weight < 0 || o.VectorWeight < 0 {
		return fmt.Errorf("%w: negative fusion weight", types.ErrInvalidConfig)
	}
	if o.BM25Weight == 0 && o.VectorWeight == 0 {
		return fmt.Errorf("%w: both fusion weights are zero", types.ErrInvalidConfig)
	}
	if o.K <= 0 {
		return fmt.Errorf("%w: k must be positive", types.ErrInvalidConfig)
	}
	if o.ExpandedK <= 0 {
		o.ExpandedK = 3 * o.K
	}

	total := o.BM25Weight + o.VectorWeight
	o.BM25Weight /= total
	o.VectorWeight /= total
	return nil
}

// Fuser combines lexical and vector rankings over one project's indices.
type Fuser struct {
	bm25     *bm25.Index
	vectors  *vectorindex.Index
	embedder *embedder.Client
}

// NewFuser creates a Fuser over the given indices and embedding client.
func NewFuser(lexical *bm25.Index, vectors *vectorindex.Index, emb *embedder.Client) *Fuser {
	return &Fuser{bm25: lexical, vectors: vectors, embedder: emb}
}

// PreparedQuery carries the lock-free half of a hybrid search: the expanded
// query text and its embedding. Vector is nil when the embedder was
// unavailable, degrading the search to lexical-only.
type PreparedQuery struct {
	Expanded string
	Vector   []float32
}

// Prepare expands and embeds the query. It touches no index state, so the
// network call to the embedder happens outside any index lock.
func (f *Fuser) Prepare(ctx context.Context, query string) (PreparedQuery, error) {
	expanded := Expand(query)

	queryVec, err := f.embedder.Embed(ctx, expanded)
	if err != nil {
		if ctx.Err() != nil {
			return PreparedQuery{}, ctx.Err()
		}
		slog.Warn("query embedding unavailable, degrading to lexical search", "error", err)
		queryVec = nil
	}

	return PreparedQuery{Expanded: expanded, Vector: queryVec}, nil
}

// SearchPrepared runs both index searches for a prepared query and fuses the
// rankings. All index access is read-only; callers holding a read lock over
// the indices get a consistent snapshot.
func (f *Fuser) SearchPrepared(prepared PreparedQuery, opts Options) ([]types.SearchResult, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	// Candidate pools never need to exceed the larger index.
	limit := f.bm25.DocCount()
	if v := f.vectors.Size(); v > limit {
		limit = v
	}
	if limit == 0 {
		return nil, nil
	}
	if opts.ExpandedK > limit {
		opts.ExpandedK = limit
	}
	if opts.K > limit {
		opts.K = limit
	}

	bm25Results := f.bm25.Search(prepared.Expanded, opts.ExpandedK)

	var vecResults []vectorindex.Result
	if prepared.Vector != nil {
		vecResults = f.vectors.Search(prepared.Vector, opts.ExpandedK)
	}

	return Fuse(bm25Results, vecResults, opts), nil
}

// Search runs the full hybrid pipeline for query: expansion and embedding,
// both index searches, and weighted merge. An embedder failure degrades to
// lexical-only results rather than failing the call.
func (f *Fuser) Search(ctx context.Context, query string, opts Options) ([]types.SearchResult, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	prepared, err := f.Prepare(ctx, query)
	if err != nil {
		return nil, err
	}

	return f.SearchPrepared(prepared, opts)
}

// Fuse merges the two rankings by chunk id. A side a chunk is missing from
// contributes zero; the combined score is the normalized weighted sum. The
// top K results are returned in descending combined order, ties broken by
// ascending chunk id for determinism.
func Fuse(bm25Results []bm25.Result, vecResults []vectorindex.Result, opts Options) []types.SearchResult {
	if err := opts.validate(); err != nil {
		return nil
	}

	merged := make(map[string]*types.SearchResult)

	for _, r := range bm25Results {
		merged[r.ChunkID] = &types.SearchResult{
			ChunkID:   r.ChunkID,
			BM25Score: r.Score,
			Meta:      r.Meta,
			Content:   r.Content,
		}
	}

	for _, r := range vecResults {
		id := r.Meta.ChunkID()
		if existing, ok := merged[id]; ok {
			existing.VectorScore = r.Score
			continue
		}
		merged[id] = &types.SearchResult{
			ChunkID:     id,
			VectorScore: r.Score,
			Meta:        r.Meta,
		}
	}

	results := make([]types.SearchResult, 0, len(merged))
	for _, r := range merged {
		r.CombinedScore = opts.BM25Weight*r.BM25Score + opts.VectorWeight*r.VectorScore
		results = append(results, *r)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].CombinedScore != results[j].CombinedScore {
			return results[i].CombinedScore > results[j].CombinedScore
		}
		return results[i].ChunkID < results[j].ChunkID
	})

	if opts.K < len(results) {
		results = results[:opts.K]
	}
	return results
}

// IdentifyRootCause picks the single result most likely to contain the
// error's origin. Results whose basename appears in the raw query are
// boosted 1.5x; results whose chunk carries import lines are boosted 1.2x.
// Returns nil for an empty result set.
func IdentifyRootCause(results []types.SearchResult, rawQuery string) *types.SearchResult {
	if len(results) == 0 {
		return nil
	}

	mentioned := MentionedFiles(rawQuery)

	best := 0
	bestScore := -1.0
	for i, r := range results {
		score := r.CombinedScore
		if _, ok := mentioned[r.Meta.FileName]; ok {
			score *= 1.5
		}
		if r.Meta.HasImports {
			score *= 1.2
		}
		if score > bestScore {
			bestScore = score
			best = i
		}
	}

	rc := results[best]
	return &rc
}

// GroupByFile buckets results by file path. Groups carry the maximum and the
// total combined score of their chunks and are ordered by maximum score
// descending; chunks inside a group keep their input order.
func GroupByFile(results []types.SearchResult) []types.FileGroup {
	order := make([]string, 0)
	groups := make(map[string]*types.FileGroup)

	for _, r := range results {
		g, ok := groups[r.Meta.FilePath]
		if !ok {
			g = &types.FileGroup{FilePath: r.Meta.FilePath}
			groups[r.Meta.FilePath] = g
			order = append(order, r.Meta.FilePath)
		}
		if r.CombinedScore > g.MaxScore || len(g.Chunks) == 0 {
			g.MaxScore = r.CombinedScore
		}
		g.TotalScore += r.CombinedScore
		g.Chunks = append(g.Chunks, r)
	}

	out := make([]types.FileGroup, 0, len(groups))
	for _, path := range order {
		out = append(out, *groups[path])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MaxScore > out[j].MaxScore
	})
	return out
}
