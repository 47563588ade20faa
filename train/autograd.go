package train

import "math"

// Value is a scalar node in the reverse-mode autodiff graph. Training
// runs entirely on these; the float32 tensor path stays inference-only.
type Value struct {
	Data       float64
	Grad       float64
	children   []*Value
	localGrads []float64
}

// V wraps a constant into a graph node
func V(x float64) *Value {
	return &Value{Data: x}
}

// Add returns a+b
func Add(a, b *Value) *Value {
	return &Value{Data: a.Data + b.Data, children: []*Value{a, b}, localGrads: []float64{1, 1}}
}

// Sub returns a-b
func Sub(a, b *Value) *Value {
	return &Value{Data: a.Data - b.Data, children: []*Value{a, b}, localGrads: []float64{1, -1}}
}

// Mul returns a*b
func Mul(a, b *Value) *Value {
	return &Value{Data: a.Data * b.Data, children: []*Value{a, b}, localGrads: []float64{b.Data, a.Data}}
}

// Pow returns a^p for constant p
func Pow(a *Value, p float64) *Value {
	return &Value{Data: math.Pow(a.Data, p), children: []*Value{a}, localGrads: []float64{p * math.Pow(a.Data, p-1)}}
}

// Div returns a/b
func Div(a, b *Value) *Value {
	return Mul(a, Pow(b, -1))
}

// Neg returns -a
func Neg(a *Value) *Value {
	return Mul(a, V(-1))
}

// Log returns ln(a)
func Log(a *Value) *Value {
	return &Value{Data: math.Log(a.Data), children: []*Value{a}, localGrads: []float64{1 / a.Data}}
}

// Exp returns e^a
func Exp(a *Value) *Value {
	e := math.Exp(a.Data)
	return &Value{Data: e, children: []*Value{a}, localGrads: []float64{e}}
}

// Tanh returns tanh(a)
func Tanh(a *Value) *Value {
	t := math.Tanh(a.Data)
	return &Value{Data: t, children: []*Value{a}, localGrads: []float64{1 - t*t}}
}

// Backward accumulates gradients of out with respect to every node in
// its graph. Parameter gradients are added to, not reset; the optimizer
// zeroes them after each step, which is what makes gradient
// accumulation across micro-batches work.
func Backward(out *Value) {
	topo := make([]*Value, 0)
	visited := make(map[*Value]bool)
	var build func(*Value)
	build = func(v *Value) {
		if visited[v] {
			return
		}
		visited[v] = true
		for _, child := range v.children {
			build(child)
		}
		topo = append(topo, v)
	}
	build(out)

	out.Grad = 1
	for i := len(topo) - 1; i >= 0; i-- {
		v := topo[i]
		for j, child := range v.children {
			child.Grad += v.localGrads[j] * v.Grad
		}
	}
}

// matVec computes w·x for w stored as [out][in] rows
func matVec(x []*Value, w [][]*Value) []*Value {
	out := make([]*Value, len(w))
	for i, row := range w {
		s := V(0)
		for j, xj := range x {
			s = Add(s, Mul(xj, row[j]))
		}
		out[i] = s
	}
	return out
}

// addVec sums two vectors element-wise
func addVec(a, b []*Value) []*Value {
	out := make([]*Value, len(a))
	for i := range a {
		out[i] = Add(a[i], b[i])
	}
	return out
}

// softmaxVec computes a numerically stable softmax
func softmaxVec(logits []*Value) []*Value {
	maxVal := logits[0].Data
	for _, l := range logits {
		if l.Data > maxVal {
			maxVal = l.Data
		}
	}

	exps := make([]*Value, len(logits))
	sum := V(0)
	for i, l := range logits {
		exps[i] = Exp(Sub(l, V(maxVal)))
		sum = Add(sum, exps[i])
	}

	out := make([]*Value, len(logits))
	inv := Div(V(1), sum)
	for i := range exps {
		out[i] = Mul(exps[i], inv)
	}
	return out
}

// layerNormVec normalizes x with learned scale and shift
func layerNormVec(x []*Value, weight, bias []*Value, eps float64) []*Value {
	n := float64(len(x))

	mean := V(0)
	for _, v := range x {
		mean = Add(mean, v)
	}
	mean = Mul(V(1/n), mean)

	variance := V(0)
	for _, v := range x {
		d := Sub(v, mean)
		variance = Add(variance, Mul(d, d))
	}
	variance = Mul(V(1/n), variance)

	invStd := Pow(Add(variance, V(eps)), -0.5)
	out := make([]*Value, len(x))
	for i, v := range x {
		out[i] = Add(Mul(Mul(Sub(v, mean), invStd), weight[i]), bias[i])
	}
	return out
}

// rmsNormVec scales x by its inverse root mean square, weight only
func rmsNormVec(x []*Value, weight []*Value, eps float64) []*Value {
	n := float64(len(x))

	ms := V(0)
	for _, v := range x {
		ms = Add(ms, Mul(v, v))
	}
	ms = Mul(V(1/n), ms)

	inv := Pow(Add(ms, V(eps)), -0.5)
	out := make([]*Value, len(x))
	for i, v := range x {
		out[i] = Mul(Mul(v, inv), weight[i])
	}
	return out
}

// siluVec applies x*sigmoid(x) element-wise
func siluVec(x []*Value) []*Value {
	out := make([]*Value, len(x))
	for i, v := range x {
		sig := Div(V(1), Add(V(1), Exp(Neg(v))))
		out[i] = Mul(v, sig)
	}
	return out
}

// mulVec multiplies two vectors element-wise
func mulVec(a, b []*Value) []*Value {
	out := make([]*Value, len(a))
	for i := range a {
		out[i] = Mul(a[i], b[i])
	}
	return out
}

// geluVec applies the tanh-approximation GELU element-wise
func geluVec(x []*Value) []*Value {
	c := math.Sqrt(2.0 / math.Pi)
	out := make([]*Value, len(x))
	for i, v := range x {
		inner := Mul(V(c), Add(v, Mul(V(0.044715), Mul(v, Mul(v, v)))))
		out[i] = Mul(Mul(V(0.5), v), Add(V(1), Tanh(inner)))
	}
	return out
}
