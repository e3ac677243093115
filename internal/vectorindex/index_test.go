package vectorindex

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/termhelper-rag/pkg/types"
)

func metaOf(id int) types.ChunkMeta {
	return types.ChunkMeta{
		FilePath:  fmt.Sprintf("/proj/file%d.ts", id),
		FileName:  fmt.Sprintf("file%d.ts", id),
		StartLine: 1,
		EndLine:   20,
		FileExt:   ".ts",
	}
}

func basis(dim, axis int, scale float32) []float32 {
	v := make([]float32, dim)
	v[axis] = scale
	return v
}

func TestNew_InvalidDimension(t *testing.T) {
	_, err := New(0)
	assert.ErrorIs(t, err, types.ErrInvalidDimension)
	_, err = New(-5)
	assert.ErrorIs(t, err, types.ErrInvalidDimension)
}

func TestAdd_AssignsDenseIDs(t *testing.T) {
	idx, err := New(4)
	require.NoError(t, err)

	added := idx.Add([]Entry{
		{Meta: metaOf(0), Vector: basis(4, 0, 1)},
		{Meta: metaOf(1), Vector: nil}, // skipped
		{Meta: metaOf(2), Vector: basis(4, 1, 1)},
	})

	assert.Equal(t, 2, added)
	assert.Equal(t, 2, idx.Size())

	m, ok := idx.Meta(0)
	require.True(t, ok)
	assert.Equal(t, metaOf(0), m)
	m, ok = idx.Meta(1)
	require.True(t, ok)
	assert.Equal(t, metaOf(2), m)
}

func TestAdd_SanitizesDimension(t *testing.T) {
	idx, err := New(3)
	require.NoError(t, err)

	idx.Add([]Entry{
		{Meta: metaOf(0), Vector: []float32{1}},          // padded
		{Meta: metaOf(1), Vector: []float32{1, 2, 3, 4}}, // truncated
		{Meta: metaOf(2), Vector: []float32{float32(math.NaN()), 0, 0}},
	})

	require.Equal(t, 3, idx.Size())
	// Every stored row has exactly the index dimension; a mis-sized record is
	// impossible by construction.
	results := idx.Search([]float32{1, 0.1, 0.1}, 3)
	require.Len(t, results, 3)
}

func TestSearch_Exactness(t *testing.T) {
	const dim = 8
	idx, err := New(dim)
	require.NoError(t, err)

	// Three padded basis vectors.
	idx.Add([]Entry{
		{Meta: metaOf(0), Vector: []float32{1, 0, 0}},
		{Meta: metaOf(1), Vector: []float32{0, 1, 0}},
		{Meta: metaOf(2), Vector: []float32{0, 0, 1}},
	})

	query := make([]float32, dim)
	query[0] = 0.9
	query[1] = 0.1
	// Stored vectors were padded with 0.1; pad the query the same way so the
	// distances below are exact.
	for i := 3; i < dim; i++ {
		query[i] = 0.1
	}

	results := idx.Search(query, 2)
	require.Len(t, results, 2)
	assert.Equal(t, uint32(0), results[0].VectorID)
	assert.Equal(t, uint32(1), results[1].VectorID)

	// d0 = (1-0.9)^2 + (0-0.1)^2 + zeros elsewhere = 0.02
	assert.InDelta(t, 0.02, results[0].Distance, 1e-6)
	assert.InDelta(t, 1-results[0].Distance/100, results[0].Score, 1e-12)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
}

func TestSearch_TieBreakSmallerID(t *testing.T) {
	idx, err := New(2)
	require.NoError(t, err)

	same := []float32{0.5, 0.5}
	idx.Add([]Entry{
		{Meta: metaOf(0), Vector: same},
		{Meta: metaOf(1), Vector: same},
	})

	results := idx.Search([]float32{0, 0}, 2)
	require.Len(t, results, 2)
	assert.Equal(t, uint32(0), results[0].VectorID)
	assert.Equal(t, uint32(1), results[1].VectorID)
}

func TestSearch_ScoreClampedAtZero(t *testing.T) {
	idx, err := New(2)
	require.NoError(t, err)
	idx.Add([]Entry{{Meta: metaOf(0), Vector: []float32{100, 100}}})

	results := idx.Search([]float32{-100, -100}, 1)
	require.Len(t, results, 1)
	assert.Equal(t, 0.0, results[0].Score)
	assert.Greater(t, results[0].Distance, 100.0)
}

func TestSearch_KClamped(t *testing.T) {
	idx, err := New(2)
	require.NoError(t, err)
	idx.Add([]Entry{{Meta: metaOf(0), Vector: []float32{1, 1}}})

	assert.Len(t, idx.Search([]float32{0, 0}, 10), 1)
	assert.Nil(t, idx.Search([]float32{0, 0}, 0))
}

func TestSearch_Empty(t *testing.T) {
	idx, err := New(2)
	require.NoError(t, err)
	assert.Nil(t, idx.Search([]float32{0, 0}, 5))
}

func TestStats(t *testing.T) {
	idx, err := New(4)
	require.NoError(t, err)

	a := metaOf(0)
	b := metaOf(0) // same file
	c := metaOf(1)
	b.StartLine = 21
	b.EndLine = 40

	idx.Add([]Entry{
		{Meta: a, Vector: basis(4, 0, 1)},
		{Meta: b, Vector: basis(4, 1, 1)},
		{Meta: c, Vector: basis(4, 2, 1)},
	})

	stats := idx.Stats()
	assert.Equal(t, 3, stats.VectorCount)
	assert.Equal(t, 4, stats.Dimension)
	assert.Equal(t, 2, stats.FileCount)
	assert.Equal(t, int64(3*4*4+3*200), stats.MemoryUsage)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	idx, err := New(3)
	require.NoError(t, err)
	idx.Add([]Entry{
		{Meta: metaOf(0), Vector: []float32{1, 0, 0}},
		{Meta: metaOf(1), Vector: []float32{0, 1, 0}},
		{Meta: metaOf(2), Vector: []float32{0.25, 0.5, 0.75}},
	})

	dir := t.TempDir()
	require.NoError(t, idx.Save(dir, "code_vectors"))

	assert.FileExists(t, filepath.Join(dir, "code_vectors.bin"))
	assert.FileExists(t, filepath.Join(dir, "code_vectors.metadata.json"))

	loaded, err := Load(dir, "code_vectors")
	require.NoError(t, err)
	assert.Equal(t, idx.Dimension(), loaded.Dimension())
	assert.Equal(t, idx.Size(), loaded.Size())

	query := []float32{0.2, 0.4, 0.9}
	assert.Equal(t, idx.Search(query, 3), loaded.Search(query, 3))
	assert.Equal(t, idx.Stats(), loaded.Stats())
}

func TestLoad_MissingPayloadStartsEmpty(t *testing.T) {
	idx, err := New(3)
	require.NoError(t, err)
	idx.Add([]Entry{{Meta: metaOf(0), Vector: []float32{1, 2, 3}}})

	dir := t.TempDir()
	require.NoError(t, idx.Save(dir, "code_vectors"))
	require.NoError(t, os.Remove(filepath.Join(dir, "code_vectors.bin")))

	loaded, err := Load(dir, "code_vectors")
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Dimension())
	assert.Equal(t, 0, loaded.Size())
}

func TestLoad_CorruptMetadata(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "code_vectors.metadata.json"), []byte("{bad"), 0o644))

	_, err := Load(dir, "code_vectors")
	assert.ErrorIs(t, err, types.ErrCorruptIndex)
}

func TestLoad_PayloadSizeMismatch(t *testing.T) {
	idx, err := New(3)
	require.NoError(t, err)
	idx.Add([]Entry{{Meta: metaOf(0), Vector: []float32{1, 2, 3}}})

	dir := t.TempDir()
	require.NoError(t, idx.Save(dir, "code_vectors"))

	// Truncate the payload to an inconsistent but 4-aligned length.
	payload := filepath.Join(dir, "code_vectors.bin")
	require.NoError(t, os.WriteFile(payload, []byte{0, 0, 0, 0}, 0o644))

	_, err = Load(dir, "code_vectors")
	assert.ErrorIs(t, err, types.ErrCorruptIndex)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(t.TempDir(), "code_vectors")
	assert.True(t, os.IsNotExist(err))
}
