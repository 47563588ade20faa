package tensor

import (
	"fmt"
	"math"
)

// Tensor is a dense multi-dimensional float32 array
type Tensor struct {
	Data  []float32
	Shape []int
}

// NewTensor creates a zero tensor with the given shape
func NewTensor(shape ...int) *Tensor {
	size := 1
	for _, dim := range shape {
		size *= dim
	}
	return &Tensor{
		Data:  make([]float32, size),
		Shape: shape,
	}
}

// Size returns the total number of elements
func (t *Tensor) Size() int {
	size := 1
	for _, dim := range t.Shape {
		size *= dim
	}
	return size
}

// Clone returns a deep copy of the tensor
func (t *Tensor) Clone() *Tensor {
	out := NewTensor(t.Shape...)
	copy(out.Data, t.Data)
	return out
}

// MatMul performs matrix multiplication: [m,k] x [k,n] -> [m,n]
func MatMul(a, b *Tensor) *Tensor {
	if len(a.Shape) != 2 || len(b.Shape) != 2 {
		panic("MatMul requires 2D tensors")
	}
	if a.Shape[1] != b.Shape[0] {
		panic(fmt.Sprintf("incompatible shapes: [%d,%d] x [%d,%d]", a.Shape[0], a.Shape[1], b.Shape[0], b.Shape[1]))
	}

	m, k, n := a.Shape[0], a.Shape[1], b.Shape[1]
	result := NewTensor(m, n)

	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			sum := float32(0)
			for p := 0; p < k; p++ {
				sum += a.Data[i*k+p] * b.Data[p*n+j]
			}
			result.Data[i*n+j] = sum
		}
	}

	return result
}

// Add performs element-wise addition
func Add(a, b *Tensor) *Tensor {
	if len(a.Data) != len(b.Data) {
		panic("tensors must have same size")
	}
	result := NewTensor(a.Shape...)
	for i := range a.Data {
		result.Data[i] = a.Data[i] + b.Data[i]
	}
	return result
}

// Mul performs element-wise multiplication
func Mul(a, b *Tensor) *Tensor {
	if len(a.Data) != len(b.Data) {
		panic("tensors must have same size")
	}
	result := NewTensor(a.Shape...)
	for i := range a.Data {
		result.Data[i] = a.Data[i] * b.Data[i]
	}
	return result
}

// AddScaled accumulates scale*b into a in place; this is the adapter
// merge primitive W += scale * delta
func AddScaled(a, b *Tensor, scale float32) {
	if len(a.Data) != len(b.Data) {
		panic("tensors must have same size")
	}
	for i := range a.Data {
		a.Data[i] += scale * b.Data[i]
	}
}

// Transpose swaps dimensions of a 2D tensor
func Transpose(t *Tensor) *Tensor {
	if len(t.Shape) != 2 {
		panic("Transpose requires 2D tensor")
	}
	m, n := t.Shape[0], t.Shape[1]
	result := NewTensor(n, m)

	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			result.Data[j*m+i] = t.Data[i*n+j]
		}
	}
	return result
}

// GELU applies the GELU activation element-wise
func GELU(t *Tensor) *Tensor {
	result := NewTensor(t.Shape...)
	for i, x := range t.Data {
		x3 := x * x * x
		inner := math.Sqrt(2.0/math.Pi) * float64(x+0.044715*x3)
		result.Data[i] = 0.5 * x * (1.0 + float32(math.Tanh(inner)))
	}
	return result
}

// SiLU applies x*sigmoid(x) element-wise
func SiLU(t *Tensor) *Tensor {
	result := NewTensor(t.Shape...)
	for i, x := range t.Data {
		result.Data[i] = x / (1.0 + float32(math.Exp(float64(-x))))
	}
	return result
}

// Softmax applies softmax along the last dimension of a 1D or 2D tensor
func Softmax(t *Tensor) *Tensor {
	result := NewTensor(t.Shape...)

	rows, cols := 1, t.Shape[len(t.Shape)-1]
	if len(t.Shape) == 2 {
		rows = t.Shape[0]
	}

	for i := 0; i < rows; i++ {
		offset := i * cols

		maxVal := t.Data[offset]
		for j := 1; j < cols; j++ {
			if t.Data[offset+j] > maxVal {
				maxVal = t.Data[offset+j]
			}
		}

		sum := float32(0)
		for j := 0; j < cols; j++ {
			val := float32(math.Exp(float64(t.Data[offset+j] - maxVal)))
			result.Data[offset+j] = val
			sum += val
		}

		for j := 0; j < cols; j++ {
			result.Data[offset+j] /= sum
		}
	}

	return result
}

// LayerNorm normalizes over the last dimension with learned scale/shift.
// A nil bias selects RMS normalization: no mean subtraction and scale
// only, which is what Llama-family checkpoints store.
func LayerNorm(t *Tensor, weight, bias *Tensor, eps float32) *Tensor {
	result := NewTensor(t.Shape...)

	hiddenSize := t.Shape[len(t.Shape)-1]
	totalRows := t.Size() / hiddenSize

	for i := 0; i < totalRows; i++ {
		offset := i * hiddenSize

		if bias == nil {
			ms := float32(0)
			for j := 0; j < hiddenSize; j++ {
				ms += t.Data[offset+j] * t.Data[offset+j]
			}
			ms /= float32(hiddenSize)

			rms := float32(math.Sqrt(float64(ms + eps)))
			for j := 0; j < hiddenSize; j++ {
				result.Data[offset+j] = t.Data[offset+j] / rms * weight.Data[j]
			}
			continue
		}

		mean := float32(0)
		for j := 0; j < hiddenSize; j++ {
			mean += t.Data[offset+j]
		}
		mean /= float32(hiddenSize)

		variance := float32(0)
		for j := 0; j < hiddenSize; j++ {
			diff := t.Data[offset+j] - mean
			variance += diff * diff
		}
		variance /= float32(hiddenSize)

		std := float32(math.Sqrt(float64(variance + eps)))
		for j := 0; j < hiddenSize; j++ {
			normalized := (t.Data[offset+j] - mean) / std
			result.Data[offset+j] = normalized*weight.Data[j] + bias.Data[j]
		}
	}

	return result
}
