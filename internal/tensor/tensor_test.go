package tensor

import (
	"math"
	"testing"
)

func TestNewZeroFilled(t *testing.T) {
	t.Parallel()
	x := New(Float32, 2, 1, 3)
	if x.Len() != 6 {
		t.Fatalf("expected 6 elements, got %d", x.Len())
	}
	for i, v := range x.F32 {
		if v != 0 {
			t.Fatalf("element %d not zero: %v", i, v)
		}
	}
	if err := x.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if x.I32 != nil {
		t.Fatalf("float tensor should not carry int storage")
	}
}

func TestNewInt32(t *testing.T) {
	t.Parallel()
	x := New(Int32, 1, 4)
	if len(x.I32) != 4 || x.F32 != nil {
		t.Fatalf("unexpected storage: f32=%d i32=%d", len(x.F32), len(x.I32))
	}
	x.I32[2] = -1
	if x.Bits(2) != math.MaxUint32 {
		t.Fatalf("expected all bits set, got %#x", x.Bits(2))
	}
}

func TestScalarShape(t *testing.T) {
	t.Parallel()
	x := New(Float32)
	if x.Len() != 1 {
		t.Fatalf("scalar tensor should hold one element, got %d", x.Len())
	}
}

func TestValidateMismatch(t *testing.T) {
	t.Parallel()
	x := &Tensor{DType: Int32, Shape: []int{2, 2}, I32: []int32{1, 2, 3}}
	if err := x.Validate(); err == nil {
		t.Fatalf("expected mismatch error")
	}
	var nilTensor *Tensor
	if err := nilTensor.Validate(); err == nil {
		t.Fatalf("expected nil error")
	}
}

func TestString(t *testing.T) {
	t.Parallel()
	if got := New(Packed16, 3, 1, 8).String(); got != "p16[3 1 8]" {
		t.Fatalf("unexpected string %q", got)
	}
}
