package tensor

import (
	"math"
	"math/rand"
	"testing"
)

func TestRoPEPositionZeroIsIdentity(t *testing.T) {
	rc := NewRoPECache(8, 16, 10000)

	rng := rand.New(rand.NewSource(3))
	row := make([]float32, 2*8)
	for i := range row {
		row[i] = float32(rng.NormFloat64())
	}
	original := append([]float32(nil), row...)

	rc.Rotate(row, 2, 0)

	for i := range row {
		if row[i] != original[i] {
			t.Fatalf("Element %d changed at position 0: %g vs %g", i, row[i], original[i])
		}
	}
}

func TestRoPEPreservesPairNorms(t *testing.T) {
	headDim := 8
	rc := NewRoPECache(headDim, 16, 10000)

	rng := rand.New(rand.NewSource(4))
	row := make([]float32, 2*headDim)
	for i := range row {
		row[i] = float32(rng.NormFloat64())
	}
	original := append([]float32(nil), row...)

	rc.Rotate(row, 2, 5)

	// a rotation changes each dimension pair but keeps its length
	for h := 0; h < 2; h++ {
		for i := 0; i < headDim/2; i++ {
			idx := h*headDim + 2*i
			before := float64(original[idx]*original[idx] + original[idx+1]*original[idx+1])
			after := float64(row[idx]*row[idx] + row[idx+1]*row[idx+1])
			if math.Abs(before-after) > 1e-4 {
				t.Errorf("Pair (%d,%d) norm changed: %g vs %g", h, i, before, after)
			}
		}
	}
}

func TestRoPEDistinctPositionsDiffer(t *testing.T) {
	headDim := 4
	rc := NewRoPECache(headDim, 16, 10000)

	a := []float32{1, 0, 1, 0}
	b := []float32{1, 0, 1, 0}
	rc.Rotate(a, 1, 1)
	rc.Rotate(b, 1, 2)

	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
		}
	}
	if same {
		t.Errorf("Expected different rotations for positions 1 and 2")
	}
}
