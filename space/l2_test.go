package space

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqvec/sqvec/quantization"
)

func packVector(t *testing.T, v []float32) []byte {
	t.Helper()
	record := make([]byte, quantization.RecordSize(len(v)))
	quantization.PackRecord(v, record)
	return record
}

func randomVector(r *rand.Rand, dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = r.Float32()*2 - 1
	}
	return v
}

func TestL2Space_DataSize(t *testing.T) {
	s := NewL2Space(128)
	assert.Equal(t, 128, s.Dim())
	assert.Equal(t, 132, s.DataSize())
}

func TestL2Space_KnownDistance(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
	}{
		{"Simple", []float32{1, 2, 3}, []float32{4, 5, 6}, 27},
		{"Mixed", []float32{1, -1}, []float32{-1, 1}, 8},
		{"Identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 0},
		{"Zero", []float32{0, 0, 0}, []float32{0, 0, 0}, 0},
	}

	s := NewL2Space(3)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			space := s
			if len(tt.a) != 3 {
				space = NewL2Space(len(tt.a))
			}
			got := space.Distance(packVector(t, tt.a), packVector(t, tt.b))
			// Quantization error is bounded by half a step per dimension.
			assert.InDelta(t, tt.expected, got, 0.3)
		})
	}
}

func TestL2Space_SelfDistance(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	s := NewL2Space(64)

	for i := 0; i < 10; i++ {
		record := packVector(t, randomVector(r, 64))
		assert.InDelta(t, 0, s.Distance(record, record), 1e-5)
	}
}

func TestL2Space_Symmetry(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	s := NewL2Space(32)

	for i := 0; i < 10; i++ {
		a := packVector(t, randomVector(r, 32))
		b := packVector(t, randomVector(r, 32))
		assert.Equal(t, s.Distance(a, b), s.Distance(b, a))
	}
}

func TestL2Space_NonNegative(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	s := NewL2Space(16)

	for i := 0; i < 100; i++ {
		a := packVector(t, randomVector(r, 16))
		b := packVector(t, randomVector(r, 16))
		// Small negative rounding noise is tolerated by callers, but
		// anything beyond float rounding would indicate a kernel bug.
		assert.GreaterOrEqual(t, s.Distance(a, b), float32(-1e-3))
	}
}

// Extreme payloads at a dimension where 32-bit accumulation would already
// have overflowed (worst case wraps past int32 once dim exceeds ~130k).
func TestL2Space_WideAccumulator(t *testing.T) {
	const dim = 150000

	a := make([]byte, quantization.RecordSize(dim))
	b := make([]byte, quantization.RecordSize(dim))
	for i := 0; i < dim; i++ {
		v := int8(-128)
		a[i] = byte(int8(127))
		b[i] = byte(v)
	}
	quantization.PutRecordScale(a, dim, 1.0)
	quantization.PutRecordScale(b, dim, 1.0)

	s := NewL2Space(dim)
	got := s.Distance(a, b)

	// (127 - (-128))² per dimension.
	expected := float64(dim) * 255 * 255
	require.False(t, got < 0, "distance must not go negative on overflow")
	assert.InEpsilon(t, expected, float64(got), 1e-6)
}

func BenchmarkL2Space_Distance(b *testing.B) {
	r := rand.New(rand.NewSource(4))
	dim := 768

	av := randomVector(r, dim)
	bv := randomVector(r, dim)

	ar := make([]byte, quantization.RecordSize(dim))
	br := make([]byte, quantization.RecordSize(dim))
	quantization.PackRecord(av, ar)
	quantization.PackRecord(bv, br)

	s := NewL2Space(dim)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = s.Distance(ar, br)
	}
}
