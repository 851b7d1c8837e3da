package quantization

import (
	"encoding/binary"
	"math"
)

// ScaleSize is the size in bytes of the scale trailer of a packed record.
const ScaleSize = 4

// RecordSize returns the size in bytes of a packed record for the given
// dimension: one int8 per dimension plus the float32 scale trailer.
func RecordSize(dim int) int {
	return dim + ScaleSize
}

// Encode quantizes src into dst using symmetric int8 quantization and
// returns the scale factor.
//
// The scale is max(|src_i|)/127. Each component is rounded to the nearest
// integer of src_i/scale and clamped to [-128, 127]; the clamp guards the
// -128 rounding boundary and any overshoot at +127. An all-zero vector
// produces an all-zero payload with scale 1.0, so reconstruction stays
// well defined without dividing by zero.
//
// dst must have len(src) slots. Assumes finite inputs; caller's
// responsibility.
func Encode(src []float32, dst []int8) float32 {
	var maxAbs float32
	for _, v := range src {
		if v < 0 {
			v = -v
		}
		if v > maxAbs {
			maxAbs = v
		}
	}

	if maxAbs == 0 {
		for i := range dst[:len(src)] {
			dst[i] = 0
		}
		return 1.0
	}

	scale := maxAbs / 127
	invScale := 1 / scale

	for i, v := range src {
		q := int(math.Round(float64(v * invScale)))
		if q < -128 {
			q = -128
		} else if q > 127 {
			q = 127
		}
		dst[i] = int8(q)
	}

	return scale
}

// Decode reconstructs the original vector into dst as payload[i]*scale.
// dst must have len(payload) slots.
func Decode(payload []int8, scale float32, dst []float32) {
	for i, q := range payload {
		dst[i] = float32(q) * scale
	}
}

// PackRecord encodes src into the packed record layout: len(src) int8
// payload bytes followed by the little-endian float32 scale. The little
// endian trailer keeps records portable across architectures and avoids any
// alignment assumption, since the scale offset is not float-aligned for
// most dimensions.
//
// record must have RecordSize(len(src)) bytes. Returns the scale.
func PackRecord(src []float32, record []byte) float32 {
	dim := len(src)

	var maxAbs float32
	for _, v := range src {
		if v < 0 {
			v = -v
		}
		if v > maxAbs {
			maxAbs = v
		}
	}

	var scale float32
	if maxAbs == 0 {
		scale = 1.0
		for i := range record[:dim] {
			record[i] = 0
		}
	} else {
		scale = maxAbs / 127
		invScale := 1 / scale
		for i, v := range src {
			q := int(math.Round(float64(v * invScale)))
			if q < -128 {
				q = -128
			} else if q > 127 {
				q = 127
			}
			record[i] = byte(int8(q))
		}
	}

	PutRecordScale(record, dim, scale)
	return scale
}

// UnpackRecord reconstructs the float32 vector stored in record into dst.
// dst must have dim slots.
func UnpackRecord(record []byte, dim int, dst []float32) {
	scale := RecordScale(record, dim)
	for i := 0; i < dim; i++ {
		dst[i] = float32(int8(record[i])) * scale
	}
}

// RecordScale reads the scale trailer of a packed record.
func RecordScale(record []byte, dim int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(record[dim : dim+ScaleSize]))
}

// PutRecordScale writes the scale trailer of a packed record.
func PutRecordScale(record []byte, dim int, scale float32) {
	binary.LittleEndian.PutUint32(record[dim:dim+ScaleSize], math.Float32bits(scale))
}

// BytesPerDimension returns 1 (int8 storage).
func BytesPerDimension() int {
	return 1
}

// CompressionRatio returns the payload compression ratio
// (float32 -> int8, excluding the fixed scale trailer).
func CompressionRatio() float64 {
	return 4.0
}

// QuantizationError returns the worst-case per-dimension reconstruction
// error for a vector with the given scale: half a quantization step.
func QuantizationError(scale float32) float32 {
	return scale / 2
}
