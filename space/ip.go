package space

import "github.com/sqvec/sqvec/quantization"

// InnerProductSpace computes a cosine-style distance derived from the inner
// product of the vectors reconstructed from two packed int8 records.
// Intended for vectors normalized to unit length before quantization.
type InnerProductSpace struct {
	dim int
}

// NewInnerProductSpace creates an inner-product distance space for the
// given dimensionality.
func NewInnerProductSpace(dim int) InnerProductSpace {
	return InnerProductSpace{dim: dim}
}

// Dim returns the dimensionality the space was constructed with.
func (s InnerProductSpace) Dim() int {
	return s.dim
}

// DataSize returns the fixed byte size of one packed record.
func (s InnerProductSpace) DataSize() int {
	return dataSize(s.dim)
}

// Distance returns 1 − s1·s2·(a·b), clamped to [0, 2].
//
// The dot product is accumulated in int64 (same overflow rationale as
// L2Space). Quantization and float rounding can push the reconstructed
// inner product of unit vectors slightly outside [-1, 1]; the clamp keeps
// such noise from producing distances outside the range downstream ranking
// and pruning rely on.
func (s InnerProductSpace) Distance(a, b []byte) float32 {
	dim := s.dim
	s1 := quantization.RecordScale(a, dim)
	s2 := quantization.RecordScale(b, dim)

	var dot int64
	for i := 0; i < dim; i++ {
		dot += int64(int8(a[i])) * int64(int8(b[i]))
	}

	d := 1 - s1*s2*float32(dot)
	if d < 0 {
		return 0
	}
	if d > 2 {
		return 2
	}
	return d
}
