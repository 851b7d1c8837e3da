// Package quantization provides symmetric int8 scalar quantization for
// memory-efficient vector storage.
//
// Each float32 vector is encoded independently: the per-vector scale is
// max(|v_i|)/127, every component is rounded to the nearest int8 and stored
// in 1 byte per dimension, followed by the scale as a little-endian float32.
// This compresses vectors 4x (minus the 4-byte scale trailer) while keeping
// enough precision for approximate nearest neighbor ranking.
//
// Encoding is stateless and requires no training. Distance evaluation over
// packed records lives in the space package.
package quantization
