package identity

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeEmbedding packs an embedding as big-endian float32 bytes, four bytes
// per component. Used by the audit export surface so dumps stay readable by
// the tooling that predates the vector column.
func EncodeEmbedding(embedding []float32) []byte {
	if embedding == nil {
		return nil
	}
	buf := make([]byte, len(embedding)*4)
	for i, f := range embedding {
		binary.BigEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// DecodeEmbedding is the inverse of EncodeEmbedding.
func DecodeEmbedding(data []byte) ([]float32, error) {
	if data == nil {
		return nil, nil
	}
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("embedding byte length %d is not a multiple of 4", len(data))
	}
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.BigEndian.Uint32(data[i*4:]))
	}
	return out, nil
}
