package embedding

import (
	"encoding/binary"
	"math"
)

// Normalize scales v to unit L2 length in place. A zero vector is left as is.
func Normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return v
	}
	inv := 1 / math.Sqrt(sumSq)
	for i, x := range v {
		v[i] = float32(float64(x) * inv)
	}
	return v
}

// Float32ToBytes encodes v as little-endian float32 values.
func Float32ToBytes(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// BytesToFloat32 decodes a buffer written by Float32ToBytes. It returns nil
// if the length is not a multiple of four.
func BytesToFloat32(data []byte) []float32 {
	if len(data)%4 != 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4 : (i+1)*4]))
	}
	return floats
}
