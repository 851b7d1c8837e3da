// Package space provides distance spaces over int8-quantized vector records.
//
// A Space is bound to one dimensionality at construction and computes
// distances directly on packed records (int8 payload plus float32 scale
// trailer, see the quantization package) without dequantizing per element:
// integer dot products and norms are accumulated in int64 and rescaled once
// per comparison. Both spaces are pure values, safe for concurrent use.
//
//   - L2Space: squared Euclidean distance of the reconstructed vectors.
//   - InnerProductSpace: 1 - reconstructed inner product, clamped to [0, 2],
//     for cosine-style ranking of normalized vectors.
package space
