package vectorindex

import (
	"fmt"
	"sort"

	"github.com/dshills/termhelper-rag/internal/embedder"
	"github.com/dshills/termhelper-rag/pkg/types"
)

// metaOverheadBytes approximates the in-memory cost of one metadata record
// for the stats estimate.
const metaOverheadBytes = 200

// Entry pairs a chunk's metadata with its embedding for insertion.
type Entry struct {
	Meta   types.ChunkMeta
	Vector []float32
}

// Result is one hit of an exact L2 search.
type Result struct {
	VectorID uint32
	Score    float64
	Distance float64
	Meta     types.ChunkMeta
}

// Stats summarizes the index state.
type Stats struct {
	VectorCount int   `json:"vectorCount"`
	Dimension   int   `json:"dimension"`
	FileCount   int   `json:"fileCount"`
	MemoryUsage int64 `json:"memoryUsage"`
}

// Index is an append-only exact L2 store over vectors of one fixed
// dimension. Vector ids are dense and assigned in insertion order. The index
// is not safe for concurrent mutation; the coordinator serializes writers.
type Index struct {
	dimension int
	vectors   []float32 // flat buffer, size*dimension values
	meta      map[uint32]types.ChunkMeta
}

// New creates an empty index with the dimension locked for its lifetime.
func New(dimension int) (*Index, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: %d", types.ErrInvalidDimension, dimension)
	}
	return &Index{
		dimension: dimension,
		meta:      make(map[uint32]types.ChunkMeta),
	}, nil
}

// Dimension returns the locked vector dimension.
func (idx *Index) Dimension() int {
	return idx.dimension
}

// Size returns the number of stored vectors.
func (idx *Index) Size() int {
	return len(idx.vectors) / idx.dimension
}

// Add appends entries in order. Each vector is normalized to the index
// dimension (padded, truncated, non-finite components replaced); entries with
// a nil vector are skipped. Returns the number of entries stored.
func (idx *Index) Add(entries []Entry) int {
	added := 0
	for _, e := range entries {
		if e.Vector == nil {
			continue
		}
		vec := embedder.Normalize(e.Vector, idx.dimension)

		id := uint32(idx.Size())
		idx.vectors = append(idx.vectors, vec...)
		idx.meta[id] = e.Meta
		added++
	}
	return added
}

// Search returns the min(k, size) nearest vectors to query by exact L2
// distance, converted to a similarity score max(0, 1 - d/100). Ties break
// toward the smaller vector id.
func (idx *Index) Search(query []float32, k int) []Result {
	size := idx.Size()
	if size == 0 || k <= 0 {
		return nil
	}
	if k > size {
		k = size
	}

	q := embedder.Normalize(query, idx.dimension)

	type candidate struct {
		id       uint32
		distance float64
	}
	candidates := make([]candidate, size)
	for i := 0; i < size; i++ {
		row := idx.vectors[i*idx.dimension : (i+1)*idx.dimension]
		var d float64
		for j, qv := range q {
			diff := float64(row[j]) - float64(qv)
			d += diff * diff
		}
		candidates[i] = candidate{id: uint32(i), distance: d}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}
		return candidates[i].id < candidates[j].id
	})

	results := make([]Result, k)
	for i := 0; i < k; i++ {
		c := candidates[i]
		score := 1 - c.distance/100
		if score < 0 {
			score = 0
		}
		results[i] = Result{
			VectorID: c.id,
			Score:    score,
			Distance: c.distance,
			Meta:     idx.meta[c.id],
		}
	}
	return results
}

// Meta returns the metadata of a vector id.
func (idx *Index) Meta(id uint32) (types.ChunkMeta, bool) {
	m, ok := idx.meta[id]
	return m, ok
}

// Stats returns a summary of the index. Memory usage is estimated as the
// vector buffer plus a flat per-record metadata overhead.
func (idx *Index) Stats() Stats {
	size := idx.Size()
	files := make(map[string]struct{}, size)
	for _, m := range idx.meta {
		files[m.FilePath] = struct{}{}
	}
	return Stats{
		VectorCount: size,
		Dimension:   idx.dimension,
		FileCount:   len(files),
		MemoryUsage: int64(size)*int64(idx.dimension)*4 + int64(size)*metaOverheadBytes,
	}
}
