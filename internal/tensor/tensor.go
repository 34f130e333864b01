package tensor

import (
	"fmt"
	"math"
	"slices"
)

// DType describes the element encoding of a Tensor.
type DType uint8

const (
	Float32 DType = iota
	Int32
	// Packed16 stores a 16-bit float in the high half of a 32-bit slot with
	// the low half zeroed. Storage is shared with Float32.
	Packed16
)

func (d DType) String() string {
	switch d {
	case Float32:
		return "f32"
	case Int32:
		return "i32"
	case Packed16:
		return "p16"
	default:
		return fmt.Sprintf("dtype(%d)", uint8(d))
	}
}

// Tensor is the engine-neutral value exchanged with an execution backend.
// Float32 and Packed16 tensors use F32, Int32 tensors use I32.
type Tensor struct {
	DType DType
	Shape []int
	F32   []float32
	I32   []int32
}

// Elements returns the product of the shape dimensions.
func Elements(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

func checkShape(shape []int) {
	for _, d := range shape {
		if d < 0 {
			panic(fmt.Sprintf("tensor: negative dimension in shape %v", shape))
		}
	}
}

// New allocates a zero-filled tensor.
func New(dtype DType, shape ...int) *Tensor {
	checkShape(shape)
	t := &Tensor{DType: dtype, Shape: slices.Clone(shape)}
	n := Elements(shape)
	switch dtype {
	case Int32:
		t.I32 = make([]int32, n)
	default:
		t.F32 = make([]float32, n)
	}
	return t
}

// Len returns the number of elements held by the tensor.
func (t *Tensor) Len() int {
	if t == nil {
		return 0
	}
	if t.DType == Int32 {
		return len(t.I32)
	}
	return len(t.F32)
}

// Bits returns the raw 32-bit slot at index i.
func (t *Tensor) Bits(i int) uint32 {
	if t.DType == Int32 {
		return uint32(t.I32[i])
	}
	return math.Float32bits(t.F32[i])
}

// Validate checks that the storage length matches the shape.
func (t *Tensor) Validate() error {
	if t == nil {
		return fmt.Errorf("tensor: nil")
	}
	want := Elements(t.Shape)
	if got := t.Len(); got != want {
		return fmt.Errorf("tensor: %s shape %v wants %d elements, has %d", t.DType, t.Shape, want, got)
	}
	return nil
}

func (t *Tensor) String() string {
	if t == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s%v", t.DType, t.Shape)
}
