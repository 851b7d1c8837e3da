package hnsw

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqvec/sqvec/quantization"
	"github.com/sqvec/sqvec/space"
)

func packAll(vectors [][]float32) [][]byte {
	records := make([][]byte, len(vectors))
	for i, v := range vectors {
		records[i] = make([]byte, quantization.RecordSize(len(v)))
		quantization.PackRecord(v, records[i])
	}
	return records
}

func buildGraph(t *testing.T, s space.Space, records [][]byte, optFns ...func(o *Options)) (*HNSW, []uint32) {
	t.Helper()

	h := New(s, optFns...)
	ids := make([]uint32, len(records))

	for i, record := range records {
		id, err := h.Insert(record)
		require.NoError(t, err)
		ids[i] = id
	}

	return h, ids
}

func TestHNSW_InsertAndSearch(t *testing.T) {
	const dim = 8

	vectors := GenerateRandomVectors(200, dim, 42)
	records := packAll(vectors)

	h, ids := buildGraph(t, space.NewL2Space(dim), records)
	require.Equal(t, 201, h.Len()) // Entry sentinel plus records

	// Each stored record must be its own nearest neighbour.
	for _, probe := range []int{0, 17, 99, 199} {
		results, err := h.KNNSearch(records[probe], 1, 100, nil)
		require.NoError(t, err)
		require.Len(t, results, 1)

		assert.Equal(t, ids[probe], results[0].ID)
		assert.InDelta(t, 0, results[0].Distance, 1e-5)
	}
}

func TestHNSW_ResultsSortedAscending(t *testing.T) {
	const dim = 16

	records := packAll(GenerateRandomVectors(300, dim, 7))
	h, _ := buildGraph(t, space.NewL2Space(dim), records)

	query := records[123]
	results, err := h.KNNSearch(query, 10, 200, nil)
	require.NoError(t, err)
	require.Len(t, results, 10)

	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i-1].Distance, results[i].Distance)
	}
}

func TestHNSW_RecallAgainstBruteForce(t *testing.T) {
	const (
		dim     = 16
		n       = 500
		queries = 20
		k       = 10
	)

	records := packAll(GenerateRandomVectors(n, dim, 1))
	h, _ := buildGraph(t, space.NewL2Space(dim), records)

	queryRecords := packAll(GenerateRandomVectors(queries, dim, 2))

	var hits, total int
	for _, q := range queryRecords {
		exact, err := h.BruteSearch(q, k, nil)
		require.NoError(t, err)

		approx, err := h.KNNSearch(q, k, 200, nil)
		require.NoError(t, err)

		want := make(map[uint32]struct{}, len(exact))
		for _, r := range exact {
			want[r.ID] = struct{}{}
		}
		for _, r := range approx {
			if _, ok := want[r.ID]; ok {
				hits++
			}
		}
		total += len(exact)
	}

	recall := float64(hits) / float64(total)
	assert.GreaterOrEqual(t, recall, 0.9, "recall@%d = %f", k, recall)
}

func TestHNSW_Filter(t *testing.T) {
	const dim = 8

	records := packAll(GenerateRandomVectors(100, dim, 3))
	h, ids := buildGraph(t, space.NewL2Space(dim), records)

	excluded := ids[50]
	filter := func(id uint32) bool { return id != excluded }

	results, err := h.KNNSearch(records[50], 10, 100, filter)
	require.NoError(t, err)

	for _, r := range results {
		assert.NotEqual(t, excluded, r.ID)
	}

	exact, err := h.BruteSearch(records[50], 10, filter)
	require.NoError(t, err)
	for _, r := range exact {
		assert.NotEqual(t, excluded, r.ID)
	}
}

func TestHNSW_InnerProductSpace(t *testing.T) {
	const dim = 8

	vectors := GenerateRandomVectors(200, dim, 4)
	for _, v := range vectors {
		normalizeInPlace(v)
	}
	records := packAll(vectors)

	h, ids := buildGraph(t, space.NewInnerProductSpace(dim), records)

	results, err := h.KNNSearch(records[10], 1, 100, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, ids[10], results[0].ID)
	assert.GreaterOrEqual(t, results[0].Distance, float32(0))
	assert.LessOrEqual(t, results[0].Distance, float32(2))
}

func TestHNSW_InvalidInputs(t *testing.T) {
	const dim = 8

	h := New(space.NewL2Space(dim))

	_, err := h.Insert(make([]byte, 3))
	var sizeErr *ErrRecordSizeMismatch
	require.ErrorAs(t, err, &sizeErr)
	assert.Equal(t, quantization.RecordSize(dim), sizeErr.Expected)

	_, err = h.KNNSearch(make([]byte, quantization.RecordSize(dim)), 0, 10, nil)
	require.ErrorIs(t, err, ErrInvalidK)

	_, err = h.BruteSearch(make([]byte, 3), 1, nil)
	require.Error(t, err)
}

func TestHNSW_GobRoundTrip(t *testing.T) {
	const dim = 8

	records := packAll(GenerateRandomVectors(150, dim, 5))
	h, _ := buildGraph(t, space.NewL2Space(dim), records)

	data, err := h.GobEncode()
	require.NoError(t, err)

	restored := New(space.NewL2Space(dim))
	require.NoError(t, restored.GobDecode(data))
	require.Equal(t, h.Len(), restored.Len())

	query := records[42]
	want, err := h.KNNSearch(query, 5, 100, nil)
	require.NoError(t, err)
	got, err := restored.KNNSearch(query, 5, 100, nil)
	require.NoError(t, err)

	assert.Equal(t, want, got)
}

func TestHNSW_GobDecodeDimensionMismatch(t *testing.T) {
	h := New(space.NewL2Space(8))

	data, err := h.GobEncode()
	require.NoError(t, err)

	other := New(space.NewL2Space(16))
	require.Error(t, other.GobDecode(data))
}

func TestHNSW_Stats(t *testing.T) {
	const dim = 8

	records := packAll(GenerateRandomVectors(100, dim, 6))
	h, _ := buildGraph(t, space.NewL2Space(dim), records)

	stats := h.Stats()
	assert.Equal(t, 100, stats.Nodes)
	assert.Equal(t, DefaultOptions.M, stats.M)
	require.NotEmpty(t, stats.Levels)
	assert.Equal(t, 100, stats.Levels[0].Nodes)
}

func normalizeInPlace(v []float32) {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= inv
	}
}
