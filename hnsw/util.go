package hnsw

import "math/rand"

// GenerateRandomVectors returns num random vectors in [-1, 1) for tests and
// benchmarks, reproducible via seed.
func GenerateRandomVectors(num, dimensions int, seed int64) [][]float32 {
	r := rand.New(rand.NewSource(seed))

	vectors := make([][]float32, num)

	for i := range vectors {
		vectors[i] = make([]float32, dimensions)

		for j := range vectors[i] {
			vectors[i][j] = r.Float32()*2 - 1
		}
	}

	return vectors
}
