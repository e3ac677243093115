package bm25

import (
	"math"
	"sort"

	"github.com/dshills/termhelper-rag/internal/tokenizer"
	"github.com/dshills/termhelper-rag/pkg/types"
)

// Default Okapi BM25 parameters. They are fixed for the life of an index and
// persisted inside its snapshot.
const (
	DefaultK1      = 1.2
	DefaultB       = 0.75
	DefaultEpsilon = 0.25
)

// Params holds the BM25 ranking parameters.
type Params struct {
	K1      float64 `json:"k1"`
	B       float64 `json:"b"`
	Epsilon float64 `json:"epsilon"`
}

// DefaultParams returns the standard parameter set.
func DefaultParams() Params {
	return Params{K1: DefaultK1, B: DefaultB, Epsilon: DefaultEpsilon}
}

// Posting records one document occurrence of a term.
type Posting struct {
	DocIndex int `json:"doc"`
	TermFreq int `json:"freq"`
}

// document is one indexed chunk viewed as a bag of terms.
type document struct {
	ChunkID string `json:"chunkId"`
	Content string `json:"content"`
}

// Result is one ranked hit of a BM25 search.
type Result struct {
	ChunkID string
	Score   float64
	Meta    types.ChunkMeta
	Content string
}

// Index is an in-memory inverted index with Okapi BM25 scoring. It is not
// safe for concurrent mutation; the coordinator serializes writers.
type Index struct {
	params   Params
	tokOpts  tokenizer.Options
	docs     []document
	docIDs   map[string]int // chunk id -> doc index
	docMeta  map[string]types.ChunkMeta
	docLens  []int
	avgDL    float64
	postings map[string][]Posting
	vocab    map[string]struct{}
}

// New creates an empty index with the given parameters and tokenizer options.
func New(params Params, tokOpts tokenizer.Options) *Index {
	return &Index{
		params:   params,
		tokOpts:  tokOpts,
		docIDs:   make(map[string]int),
		docMeta:  make(map[string]types.ChunkMeta),
		postings: make(map[string][]Posting),
		vocab:    make(map[string]struct{}),
	}
}

// NewDefault creates an empty index with default parameters and options.
func NewDefault() *Index {
	return New(DefaultParams(), tokenizer.DefaultOptions())
}

// Add indexes one chunk. Adding a chunk id that is already present is a
// no-op. Cost is linear in the token count of the chunk.
func (idx *Index) Add(chunk *types.Chunk) {
	id := chunk.ID()
	if _, exists := idx.docIDs[id]; exists {
		return
	}

	tokens := tokenizer.Tokenize(tokenizer.Preprocess(chunk.Content), idx.tokOpts)

	docIndex := len(idx.docs)
	idx.docs = append(idx.docs, document{ChunkID: id, Content: chunk.Content})
	idx.docIDs[id] = docIndex
	idx.docMeta[id] = chunk.Meta()
	idx.docLens = append(idx.docLens, len(tokens))

	// Running mean; avoids re-scanning all document lengths.
	n := float64(docIndex)
	idx.avgDL = (idx.avgDL*n + float64(len(tokens))) / (n + 1)

	freqs := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		freqs[tok]++
	}
	for term, freq := range freqs {
		idx.postings[term] = append(idx.postings[term], Posting{DocIndex: docIndex, TermFreq: freq})
		idx.vocab[term] = struct{}{}
	}
}

// DocCount returns the number of indexed documents.
func (idx *Index) DocCount() int {
	return len(idx.docs)
}

// VocabSize returns the number of distinct terms.
func (idx *Index) VocabSize() int {
	return len(idx.vocab)
}

// Contains reports whether a chunk id has been indexed.
func (idx *Index) Contains(chunkID string) bool {
	_, ok := idx.docIDs[chunkID]
	return ok
}

// Search ranks documents against query and returns up to k results by
// descending score. Ties break toward the earlier-inserted document. Query
// terms missing from the index contribute nothing; only documents sharing at
// least one term with the query are returned.
func (idx *Index) Search(query string, k int) []Result {
	n := len(idx.docs)
	if n == 0 || k <= 0 {
		return nil
	}

	queryTokens := tokenizer.Tokenize(query, idx.tokOpts)
	seen := make(map[string]struct{}, len(queryTokens))
	scores := make(map[int]float64)

	for _, term := range queryTokens {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}

		plist, ok := idx.postings[term]
		if !ok {
			continue
		}

		nt := float64(len(plist))
		idf := math.Log(1 + (float64(n)-nt+0.5)/(nt+0.5) + idx.params.Epsilon)

		for _, p := range plist {
			f := float64(p.TermFreq)
			dl := float64(idx.docLens[p.DocIndex])
			denom := f + idx.params.K1*(1-idx.params.B+idx.params.B*dl/idx.avgDL)
			scores[p.DocIndex] += idf * (f * (idx.params.K1 + 1)) / denom
		}
	}

	if len(scores) == 0 {
		return nil
	}

	ranked := make([]int, 0, len(scores))
	for docIndex := range scores {
		ranked = append(ranked, docIndex)
	}
	sort.Slice(ranked, func(i, j int) bool {
		si, sj := scores[ranked[i]], scores[ranked[j]]
		if si != sj {
			return si > sj
		}
		return ranked[i] < ranked[j]
	})

	if k > len(ranked) {
		k = len(ranked)
	}

	results := make([]Result, 0, k)
	for _, docIndex := range ranked[:k] {
		doc := idx.docs[docIndex]
		score := scores[docIndex]
		if score < 0 {
			score = 0
		}
		results = append(results, Result{
			ChunkID: doc.ChunkID,
			Score:   score,
			Meta:    idx.docMeta[doc.ChunkID],
			Content: doc.Content,
		})
	}

	return results
}

// Parameters returns the ranking parameters the index was built with.
func (idx *Index) Parameters() Params {
	return idx.params
}

// Stats summarizes the index state.
type Stats struct {
	DocumentCount int     `json:"documentCount"`
	VocabSize     int     `json:"vocabSize"`
	AvgDocLength  float64 `json:"avgDocLength"`
}

// Stats returns a summary of the index.
func (idx *Index) Stats() Stats {
	return Stats{
		DocumentCount: len(idx.docs),
		VocabSize:     len(idx.vocab),
		AvgDocLength:  idx.avgDL,
	}
}
