package space

import "github.com/sqvec/sqvec/quantization"

// L2Space computes the squared Euclidean distance between the vectors
// reconstructed from two packed int8 records.
type L2Space struct {
	dim int
}

// NewL2Space creates an L2 distance space for the given dimensionality.
func NewL2Space(dim int) L2Space {
	return L2Space{dim: dim}
}

// Dim returns the dimensionality the space was constructed with.
func (s L2Space) Dim() int {
	return s.dim
}

// DataSize returns the fixed byte size of one packed record.
func (s L2Space) DataSize() int {
	return dataSize(s.dim)
}

// Distance returns an approximation of the squared Euclidean distance
// between the original float32 vectors of a and b.
//
// The unscaled dot product and squared norms are accumulated in int64 so
// that dim * 127 * 127 cannot overflow even for dimensions in the tens of
// millions, then rescaled once via
//
//	s1²·‖a‖² + s2²·‖b‖² − 2·s1·s2·(a·b)
//
// which is the standard expansion of ‖a−b‖² applied to the de-scaled
// vectors.
func (s L2Space) Distance(a, b []byte) float32 {
	dim := s.dim
	s1 := quantization.RecordScale(a, dim)
	s2 := quantization.RecordScale(b, dim)

	var dot, norm1, norm2 int64
	for i := 0; i < dim; i++ {
		x := int64(int8(a[i]))
		y := int64(int8(b[i]))
		dot += x * y
		norm1 += x * x
		norm2 += y * y
	}

	return s1*s1*float32(norm1) + s2*s2*float32(norm2) - 2*s1*s2*float32(dot)
}
