package tensor

import (
	"math"
	"testing"
)

func TestMatMul(t *testing.T) {
	a := &Tensor{Data: []float32{1, 2, 3, 4, 5, 6}, Shape: []int{2, 3}}
	b := &Tensor{Data: []float32{7, 8, 9, 10, 11, 12}, Shape: []int{3, 2}}

	c := MatMul(a, b)

	if c.Shape[0] != 2 || c.Shape[1] != 2 {
		t.Fatalf("Expected shape [2,2], got %v", c.Shape)
	}
	expected := []float32{58, 64, 139, 154}
	for i, v := range expected {
		if c.Data[i] != v {
			t.Errorf("Element %d: expected %g, got %g", i, v, c.Data[i])
		}
	}
}

func TestMatMulShapeMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("Expected panic on incompatible shapes")
		}
	}()
	MatMul(NewTensor(2, 3), NewTensor(2, 3))
}

func TestTranspose(t *testing.T) {
	a := &Tensor{Data: []float32{1, 2, 3, 4, 5, 6}, Shape: []int{2, 3}}

	b := Transpose(a)

	if b.Shape[0] != 3 || b.Shape[1] != 2 {
		t.Fatalf("Expected shape [3,2], got %v", b.Shape)
	}
	expected := []float32{1, 4, 2, 5, 3, 6}
	for i, v := range expected {
		if b.Data[i] != v {
			t.Errorf("Element %d: expected %g, got %g", i, v, b.Data[i])
		}
	}
}

func TestAddScaled(t *testing.T) {
	a := &Tensor{Data: []float32{1, 2, 3}, Shape: []int{3}}
	b := &Tensor{Data: []float32{10, 20, 30}, Shape: []int{3}}

	AddScaled(a, b, 0.5)

	expected := []float32{6, 12, 18}
	for i, v := range expected {
		if a.Data[i] != v {
			t.Errorf("Element %d: expected %g, got %g", i, v, a.Data[i])
		}
	}
}

func TestSoftmaxRowsSumToOne(t *testing.T) {
	a := &Tensor{Data: []float32{1, 2, 3, 0, 0, 100}, Shape: []int{2, 3}}

	s := Softmax(a)

	for row := 0; row < 2; row++ {
		sum := float32(0)
		for col := 0; col < 3; col++ {
			sum += s.Data[row*3+col]
		}
		if math.Abs(float64(sum-1)) > 1e-5 {
			t.Errorf("Row %d sums to %g, expected 1", row, sum)
		}
	}

	// the dominant logit should dominate the distribution
	if s.Data[5] < 0.99 {
		t.Errorf("Expected near-certain mass on dominant logit, got %g", s.Data[5])
	}
}

func TestLayerNormZeroMeanUnitVar(t *testing.T) {
	x := &Tensor{Data: []float32{1, 2, 3, 4}, Shape: []int{1, 4}}
	weight := &Tensor{Data: []float32{1, 1, 1, 1}, Shape: []int{4}}
	bias := NewTensor(4)

	out := LayerNorm(x, weight, bias, 1e-5)

	mean := float32(0)
	for _, v := range out.Data {
		mean += v
	}
	mean /= 4
	if math.Abs(float64(mean)) > 1e-5 {
		t.Errorf("Expected zero mean, got %g", mean)
	}

	variance := float32(0)
	for _, v := range out.Data {
		variance += (v - mean) * (v - mean)
	}
	variance /= 4
	if math.Abs(float64(variance-1)) > 1e-3 {
		t.Errorf("Expected unit variance, got %g", variance)
	}
}

func TestGELU(t *testing.T) {
	x := &Tensor{Data: []float32{0, 1, -1, 3}, Shape: []int{4}}

	out := GELU(x)

	if out.Data[0] != 0 {
		t.Errorf("GELU(0) should be 0, got %g", out.Data[0])
	}
	if math.Abs(float64(out.Data[1])-0.8412) > 1e-3 {
		t.Errorf("GELU(1) expected ~0.8412, got %g", out.Data[1])
	}
	if out.Data[2] >= 0 {
		t.Errorf("GELU(-1) should be negative, got %g", out.Data[2])
	}
	if math.Abs(float64(out.Data[3])-3) > 1e-2 {
		t.Errorf("GELU(3) should be close to 3, got %g", out.Data[3])
	}
}

func TestLayerNormNilBiasIsRMS(t *testing.T) {
	x := &Tensor{Data: []float32{1, 2, 3, 4}, Shape: []int{1, 4}}
	weight := &Tensor{Data: []float32{1, 1, 1, 1}, Shape: []int{4}}

	out := LayerNorm(x, weight, nil, 0)

	// rms of [1,2,3,4] is sqrt(30/4)
	rms := float32(math.Sqrt(30.0 / 4.0))
	for i, v := range x.Data {
		expected := v / rms
		if math.Abs(float64(out.Data[i]-expected)) > 1e-5 {
			t.Errorf("Element %d: expected %g, got %g", i, expected, out.Data[i])
		}
	}
}

func TestSiLU(t *testing.T) {
	x := &Tensor{Data: []float32{0, 1, -1}, Shape: []int{3}}

	out := SiLU(x)

	if out.Data[0] != 0 {
		t.Errorf("SiLU(0) should be 0, got %g", out.Data[0])
	}
	// 1 * sigmoid(1) = 0.7311
	if math.Abs(float64(out.Data[1])-0.7311) > 1e-3 {
		t.Errorf("SiLU(1) expected ~0.7311, got %g", out.Data[1])
	}
	// -1 * sigmoid(-1) = -0.2689
	if math.Abs(float64(out.Data[2])+0.2689) > 1e-3 {
		t.Errorf("SiLU(-1) expected ~-0.2689, got %g", out.Data[2])
	}
}

func TestMulElementwise(t *testing.T) {
	a := &Tensor{Data: []float32{1, 2, 3}, Shape: []int{3}}
	b := &Tensor{Data: []float32{4, -5, 0.5}, Shape: []int{3}}

	c := Mul(a, b)

	expected := []float32{4, -10, 1.5}
	for i, v := range expected {
		if c.Data[i] != v {
			t.Errorf("Element %d: expected %g, got %g", i, v, c.Data[i])
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	a := &Tensor{Data: []float32{1, 2}, Shape: []int{2}}
	b := a.Clone()
	b.Data[0] = 99

	if a.Data[0] != 1 {
		t.Errorf("Clone shares storage with the source")
	}
}
