package bm25

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dshills/termhelper-rag/internal/tokenizer"
	"github.com/dshills/termhelper-rag/pkg/types"
)

// snapshot is the JSON form of a full index. Every scoring input is carried
// so a loaded index returns bit-identical results.
type snapshot struct {
	Params    Params                     `json:"params"`
	Tokenizer tokenizer.Options          `json:"tokenizer"`
	Documents []document                 `json:"documents"`
	DocMeta   map[string]types.ChunkMeta `json:"docMeta"`
	DocLens   []int                      `json:"docLens"`
	AvgDocLen float64                    `json:"avgDocLen"`
	Postings  map[string][]Posting       `json:"postings"`
	Vocab     []string                   `json:"vocab"`
}

// Save writes a full snapshot to dir/name via a temp file and an atomic
// rename, so readers never observe a partial index.
func (idx *Index) Save(dir, name string) error {
	snap := snapshot{
		Params:    idx.params,
		Tokenizer: idx.tokOpts,
		Documents: idx.docs,
		DocMeta:   idx.docMeta,
		DocLens:   idx.docLens,
		AvgDocLen: idx.avgDL,
		Postings:  idx.postings,
		Vocab:     make([]string, 0, len(idx.vocab)),
	}
	for term := range idx.vocab {
		snap.Vocab = append(snap.Vocab, term)
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal bm25 snapshot: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	path := filepath.Join(dir, name)
	tmp, err := os.CreateTemp(dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close snapshot: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace snapshot: %w", err)
	}

	return nil
}

// Load reconstructs an index from a snapshot file. A present but unparseable
// or internally inconsistent file yields types.ErrCorruptIndex.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrCorruptIndex, path, err)
	}

	if len(snap.DocLens) != len(snap.Documents) {
		return nil, fmt.Errorf("%w: %s: document/length count mismatch", types.ErrCorruptIndex, path)
	}

	idx := New(snap.Params, snap.Tokenizer)
	idx.docs = snap.Documents
	idx.docLens = snap.DocLens
	idx.avgDL = snap.AvgDocLen
	if snap.Postings != nil {
		idx.postings = snap.Postings
	}
	if snap.DocMeta != nil {
		idx.docMeta = snap.DocMeta
	}
	for i, doc := range snap.Documents {
		if doc.ChunkID == "" {
			return nil, fmt.Errorf("%w: %s: empty chunk id at %d", types.ErrCorruptIndex, path, i)
		}
		idx.docIDs[doc.ChunkID] = i
	}
	for _, term := range snap.Vocab {
		idx.vocab[term] = struct{}{}
	}

	for term, plist := range idx.postings {
		for _, p := range plist {
			if p.DocIndex < 0 || p.DocIndex >= len(idx.docs) {
				return nil, fmt.Errorf("%w: %s: posting for %q out of range", types.ErrCorruptIndex, path, term)
			}
		}
	}

	return idx, nil
}
