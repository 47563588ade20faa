package train

import (
	"math"
	"testing"
)

func TestBackwardProduct(t *testing.T) {
	x := V(3)
	y := V(4)
	out := Mul(x, y)

	Backward(out)

	if x.Grad != 4 {
		t.Errorf("d(xy)/dx: expected 4, got %g", x.Grad)
	}
	if y.Grad != 3 {
		t.Errorf("d(xy)/dy: expected 3, got %g", y.Grad)
	}
}

func TestBackwardCompound(t *testing.T) {
	// f = (x + 2)^2, df/dx = 2(x + 2)
	x := V(1)
	out := Pow(Add(x, V(2)), 2)

	Backward(out)

	if out.Data != 9 {
		t.Errorf("Expected 9, got %g", out.Data)
	}
	if x.Grad != 6 {
		t.Errorf("Expected gradient 6, got %g", x.Grad)
	}
}

func TestBackwardSharedSubexpression(t *testing.T) {
	// f = x*x + x, df/dx = 2x + 1
	x := V(5)
	out := Add(Mul(x, x), x)

	Backward(out)

	if x.Grad != 11 {
		t.Errorf("Expected gradient 11, got %g", x.Grad)
	}
}

func TestBackwardAccumulatesAcrossCalls(t *testing.T) {
	x := V(2)

	Backward(Mul(x, V(3)))
	Backward(Mul(x, V(4)))

	// gradients add across backward passes until the optimizer zeroes them
	if x.Grad != 7 {
		t.Errorf("Expected accumulated gradient 7, got %g", x.Grad)
	}
}

func TestBackwardNumericalCheck(t *testing.T) {
	f := func(x float64) float64 {
		return math.Exp(math.Tanh(x)) * math.Log(x+2)
	}

	x := V(0.7)
	out := Mul(Exp(Tanh(x)), Log(Add(x, V(2))))
	Backward(out)

	h := 1e-6
	numerical := (f(0.7+h) - f(0.7-h)) / (2 * h)
	if math.Abs(x.Grad-numerical) > 1e-5 {
		t.Errorf("Analytic gradient %g differs from numerical %g", x.Grad, numerical)
	}
}

func TestDivAndNeg(t *testing.T) {
	a := V(6)
	b := V(2)
	out := Neg(Div(a, b))

	Backward(out)

	if out.Data != -3 {
		t.Errorf("Expected -3, got %g", out.Data)
	}
	if math.Abs(a.Grad-(-0.5)) > 1e-12 {
		t.Errorf("d(-a/b)/da: expected -0.5, got %g", a.Grad)
	}
	if math.Abs(b.Grad-1.5) > 1e-12 {
		t.Errorf("d(-a/b)/db: expected 1.5, got %g", b.Grad)
	}
}

func TestSoftmaxVec(t *testing.T) {
	logits := []*Value{V(1), V(2), V(3)}

	probs := softmaxVec(logits)

	sum := 0.0
	for _, p := range probs {
		sum += p.Data
	}
	if math.Abs(sum-1) > 1e-12 {
		t.Errorf("Probabilities sum to %g, expected 1", sum)
	}
	if !(probs[2].Data > probs[1].Data && probs[1].Data > probs[0].Data) {
		t.Errorf("Softmax ordering broken: %g %g %g", probs[0].Data, probs[1].Data, probs[2].Data)
	}
}

func TestSoftmaxVecLargeLogitsStable(t *testing.T) {
	logits := []*Value{V(1000), V(1001)}

	probs := softmaxVec(logits)

	for i, p := range probs {
		if math.IsNaN(p.Data) || math.IsInf(p.Data, 0) {
			t.Fatalf("Probability %d is not finite: %g", i, p.Data)
		}
	}
}

func TestCrossEntropyGradient(t *testing.T) {
	// d(-log softmax(z)_k)/dz_i = softmax(z)_i - [i == k]
	logits := []*Value{V(0.5), V(-0.2), V(1.1)}
	target := 2

	probs := softmaxVec(logits)
	loss := Neg(Log(probs[target]))
	Backward(loss)

	for i, l := range logits {
		expected := probs[i].Data
		if i == target {
			expected -= 1
		}
		if math.Abs(l.Grad-expected) > 1e-9 {
			t.Errorf("Logit %d gradient: expected %g, got %g", i, expected, l.Grad)
		}
	}
}

func TestMatVec(t *testing.T) {
	x := []*Value{V(1), V(2)}
	w := [][]*Value{
		{V(3), V(4)},
		{V(5), V(6)},
	}

	out := matVec(x, w)

	if out[0].Data != 11 || out[1].Data != 17 {
		t.Errorf("Expected [11, 17], got [%g, %g]", out[0].Data, out[1].Data)
	}
}

func TestLayerNormVec(t *testing.T) {
	x := []*Value{V(1), V(2), V(3), V(4)}
	ones := []*Value{V(1), V(1), V(1), V(1)}
	zeros := []*Value{V(0), V(0), V(0), V(0)}

	out := layerNormVec(x, ones, zeros, 1e-5)

	mean := 0.0
	for _, v := range out {
		mean += v.Data
	}
	mean /= 4
	if math.Abs(mean) > 1e-9 {
		t.Errorf("Expected zero mean, got %g", mean)
	}
}

func TestGeluVec(t *testing.T) {
	out := geluVec([]*Value{V(0), V(1), V(-1)})

	if out[0].Data != 0 {
		t.Errorf("GELU(0) should be 0, got %g", out[0].Data)
	}
	if math.Abs(out[1].Data-0.8412) > 1e-3 {
		t.Errorf("GELU(1) expected ~0.8412, got %g", out[1].Data)
	}
	if out[2].Data >= 0 {
		t.Errorf("GELU(-1) should be negative, got %g", out[2].Data)
	}
}
