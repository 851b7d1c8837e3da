package space

import "github.com/sqvec/sqvec/quantization"

// Space is the capability interface an index consumes to compare stored
// records. Implementations are immutable values bound to one dimensionality;
// Distance must be pure and safe for concurrent invocation.
type Space interface {
	// Dim returns the dimensionality the space was constructed with.
	Dim() int

	// DataSize returns the fixed byte size of one packed record.
	DataSize() int

	// Distance computes the distance between two packed records of
	// matching dimensionality. Smaller is more similar. Mixing records of
	// different dimensionality is a caller contract violation.
	Distance(a, b []byte) float32
}

// Compile time checks to ensure the spaces satisfy the interface.
var (
	_ Space = L2Space{}
	_ Space = InnerProductSpace{}
)

func dataSize(dim int) int {
	return quantization.RecordSize(dim)
}
