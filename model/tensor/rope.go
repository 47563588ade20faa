package tensor

import "math"

// RoPECache holds precomputed rotary position embedding angles. One
// cos/sin pair covers two adjacent dimensions of a head.
type RoPECache struct {
	cos       []float32 // [max_seq_len * head_dim/2]
	sin       []float32
	headDim   int
	maxSeqLen int
}

// NewRoPECache precomputes rotations for every position up to maxSeqLen
func NewRoPECache(headDim, maxSeqLen int, base float64) *RoPECache {
	half := headDim / 2
	rc := &RoPECache{
		cos:       make([]float32, maxSeqLen*half),
		sin:       make([]float32, maxSeqLen*half),
		headDim:   headDim,
		maxSeqLen: maxSeqLen,
	}

	for pos := 0; pos < maxSeqLen; pos++ {
		for i := 0; i < half; i++ {
			freq := 1.0 / math.Pow(base, float64(2*i)/float64(headDim))
			angle := float64(pos) * freq
			rc.cos[pos*half+i] = float32(math.Cos(angle))
			rc.sin[pos*half+i] = float32(math.Sin(angle))
		}
	}

	return rc
}

// Rotate applies the rotation for one position in place. row holds
// numHeads concatenated head vectors of headDim each.
func (rc *RoPECache) Rotate(row []float32, numHeads, pos int) {
	half := rc.headDim / 2

	for h := 0; h < numHeads; h++ {
		base := h * rc.headDim
		for i := 0; i < half; i++ {
			cos := rc.cos[pos*half+i]
			sin := rc.sin[pos*half+i]

			x0 := row[base+2*i]
			x1 := row[base+2*i+1]
			row[base+2*i] = x0*cos - x1*sin
			row[base+2*i+1] = x0*sin + x1*cos
		}
	}
}
