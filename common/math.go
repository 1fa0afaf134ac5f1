package common

import (
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// Uses unsafe pointer operations to create a view into the original data.
// WARNING: The returned slice shares memory with the input - do not modify.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), int(size)*len(data))
}

// PutFloat32 writes v as little-endian IEEE-754 bits at buf[offset:offset+4].
//
// Parameters:
//   - buf: destination buffer
//   - offset: byte offset into buf
//   - v: the value to write
func PutFloat32(buf []byte, offset int, v float32) {
	binary.LittleEndian.PutUint32(buf[offset:offset+4], math.Float32bits(v))
}

// PutUint32 writes v little-endian at buf[offset:offset+4].
func PutUint32(buf []byte, offset int, v uint32) {
	binary.LittleEndian.PutUint32(buf[offset:offset+4], v)
}

// PutVec3 writes the three components of v at consecutive 4-byte offsets starting at offset.
// The fourth slot of a WGSL vec3 is left untouched so callers can pack a scalar there.
//
// Parameters:
//   - buf: destination buffer
//   - offset: byte offset into buf, should be 16-byte aligned for WGSL vec3 fields
//   - v: the vector to write
func PutVec3(buf []byte, offset int, v mgl32.Vec3) {
	PutFloat32(buf, offset, v[0])
	PutFloat32(buf, offset+4, v[1])
	PutFloat32(buf, offset+8, v[2])
}

// Float32At reads a little-endian float32 from buf at offset.
func Float32At(buf []byte, offset int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[offset : offset+4]))
}

// Vec3At reads three consecutive little-endian float32 values from buf at offset.
func Vec3At(buf []byte, offset int) mgl32.Vec3 {
	return mgl32.Vec3{Float32At(buf, offset), Float32At(buf, offset+4), Float32At(buf, offset+8)}
}

// CeilDiv returns the number of groups of size div needed to cover n.
// A zero divisor yields zero.
//
// Parameters:
//   - n: the extent to cover
//   - div: the group size
//
// Returns:
//   - uint32: ceil(n / div)
func CeilDiv(n, div uint32) uint32 {
	if div == 0 {
		return 0
	}
	return (n + div - 1) / div
}

// NormalizeOr returns v scaled to unit length, or fallback when v is zero or not finite.
// v is divided by its largest component first, so tiny and huge vectors keep their direction.
//
// Parameters:
//   - v: the vector to normalize
//   - fallback: returned (normalized) when v has no direction
//
// Returns:
//   - mgl32.Vec3: a unit-length vector
func NormalizeOr(v, fallback mgl32.Vec3) mgl32.Vec3 {
	scale := max(math32.Abs(v[0]), math32.Abs(v[1]), math32.Abs(v[2]))
	if scale == 0 || math32.IsNaN(scale) || math32.IsInf(scale, 0) {
		return fallback.Normalize()
	}
	u := mgl32.Vec3{v[0] / scale, v[1] / scale, v[2] / scale}
	return u.Mul(1 / u.Len())
}

// Coalesce returns the first argument that is not the zero value of T.
func Coalesce[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}
