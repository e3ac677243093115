package vectorindex

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/dshills/termhelper-rag/pkg/types"
)

const (
	// VectorFileExt is the extension of the binary vector payload.
	VectorFileExt = ".bin"

	// MetadataFileSuffix is appended to the index name for the metadata file.
	MetadataFileSuffix = ".metadata.json"
)

// metadataFile is the JSON form of the metadata sidecar:
// {"dimension": D, "size": n, "metadata": [[id, meta], ...]}.
type metadataFile struct {
	Dimension int        `json:"dimension"`
	Size      int        `json:"size"`
	Metadata  []metaPair `json:"metadata"`
}

// metaPair serializes as the two-element JSON array [id, meta].
type metaPair struct {
	ID   uint32
	Meta types.ChunkMeta
}

func (p metaPair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{p.ID, p.Meta})
}

func (p *metaPair) UnmarshalJSON(data []byte) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw[0], &p.ID); err != nil {
		return err
	}
	return json.Unmarshal(raw[1], &p.Meta)
}

// Save persists the index under dir as name+".bin" (little-endian float32
// payload) and name+".metadata.json". The metadata is written first; if the
// vector payload cannot be written the failure is logged and the in-memory
// state is left intact, so a later load starts with an empty index of the
// recorded dimension.
func (idx *Index) Save(dir, name string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	meta := metadataFile{
		Dimension: idx.dimension,
		Size:      idx.Size(),
		Metadata:  make([]metaPair, 0, len(idx.meta)),
	}
	for id := uint32(0); int(id) < idx.Size(); id++ {
		meta.Metadata = append(meta.Metadata, metaPair{ID: id, Meta: idx.meta[id]})
	}

	metaData, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal vector metadata: %w", err)
	}
	if err := writeAtomic(dir, name+MetadataFileSuffix, metaData); err != nil {
		return fmt.Errorf("write vector metadata: %w", err)
	}

	payload := serializeVectors(idx.vectors)
	if err := writeAtomic(dir, name+VectorFileExt, payload); err != nil {
		slog.Warn("vector payload not written, keeping in-memory state",
			"path", filepath.Join(dir, name+VectorFileExt), "error", err)
		return nil
	}

	return nil
}

// Load reconstructs an index from dir/name. A missing metadata file is
// reported as-is (callers treat it as "not indexed"); a present but
// unparseable or inconsistent file yields types.ErrCorruptIndex. A missing
// vector payload with intact metadata loads an empty index of the recorded
// dimension.
func Load(dir, name string) (*Index, error) {
	metaPath := filepath.Join(dir, name+MetadataFileSuffix)
	metaData, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, err
	}

	var meta metadataFile
	if err := json.Unmarshal(metaData, &meta); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrCorruptIndex, metaPath, err)
	}
	if meta.Dimension <= 0 {
		return nil, fmt.Errorf("%w: %s: dimension %d", types.ErrCorruptIndex, metaPath, meta.Dimension)
	}

	idx, err := New(meta.Dimension)
	if err != nil {
		return nil, err
	}

	vecPath := filepath.Join(dir, name+VectorFileExt)
	payload, err := os.ReadFile(vecPath)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("vector payload missing, starting empty", "path", vecPath)
			return idx, nil
		}
		return nil, err
	}

	if len(payload)%4 != 0 {
		return nil, fmt.Errorf("%w: %s: truncated payload", types.ErrCorruptIndex, vecPath)
	}
	vectors := deserializeVectors(payload)
	if len(vectors) != meta.Size*meta.Dimension {
		return nil, fmt.Errorf("%w: %s: payload holds %d values, metadata records %d vectors of dimension %d",
			types.ErrCorruptIndex, vecPath, len(vectors), meta.Size, meta.Dimension)
	}

	idx.vectors = vectors
	for _, pair := range meta.Metadata {
		if int(pair.ID) >= meta.Size {
			return nil, fmt.Errorf("%w: %s: vector id %d out of range", types.ErrCorruptIndex, metaPath, pair.ID)
		}
		idx.meta[pair.ID] = pair.Meta
	}

	return idx, nil
}

// serializeVectors converts the flat float32 buffer to a little-endian blob.
func serializeVectors(vectors []float32) []byte {
	blob := make([]byte, len(vectors)*4)
	for i, v := range vectors {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVectors converts a little-endian blob back to float32 values.
func deserializeVectors(blob []byte) []float32 {
	vectors := make([]float32, len(blob)/4)
	for i := range vectors {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vectors[i] = math.Float32frombits(bits)
	}
	return vectors
}

// writeAtomic writes data to dir/name via a temp file and rename.
func writeAtomic(dir, name string, data []byte) error {
	tmp, err := os.CreateTemp(dir, name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
