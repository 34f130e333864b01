package seqstate

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"

	"github.com/samcharles93/llmrun/internal/tensor"
)

var ErrTokenOutOfRange = errors.New("seqstate: token id outside embedding table")

// ElemType is the on-disk encoding of an embedding record element.
type ElemType string

const (
	// BF16 records are expanded into tensor.Packed16 slots bit for bit.
	BF16 ElemType = "bf16"
	// F16 records are widened to tensor.Float32 values.
	F16 ElemType = "f16"
)

// ParseElemType maps a configuration value to an ElemType.
func ParseElemType(s string) (ElemType, error) {
	switch ElemType(s) {
	case "", BF16:
		return BF16, nil
	case F16:
		return F16, nil
	default:
		return "", fmt.Errorf("seqstate: unsupported embedding dtype %q (expected bf16 or f16)", s)
	}
}

// Size is the byte width of one element.
func (e ElemType) Size() int { return 2 }

// Table is a flat binary file of fixed-size embedding records. Record i
// occupies bytes [i*HiddenSize*2, (i+1)*HiddenSize*2).
type Table struct {
	Path       string
	HiddenSize int
	Elem       ElemType
}

// NewTable validates the parameters and checks that path is a readable file.
func NewTable(path string, hiddenSize int, elem ElemType) (*Table, error) {
	if hiddenSize <= 0 {
		return nil, fmt.Errorf("seqstate: hidden size must be positive, got %d", hiddenSize)
	}
	if _, err := ParseElemType(string(elem)); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("seqstate: open embedding table: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("seqstate: close embedding table: %w", err)
	}
	if elem == "" {
		elem = BF16
	}
	return &Table{Path: path, HiddenSize: hiddenSize, Elem: elem}, nil
}

func (t *Table) recordSize() int { return t.HiddenSize * t.Elem.Size() }

// Lookup returns a [len(ids), 1, HiddenSize] tensor. The file is opened once
// per call and closed before returning.
func (t *Table) Lookup(ids []int) (_ *tensor.Tensor, err error) {
	f, err := os.Open(t.Path)
	if err != nil {
		return nil, fmt.Errorf("seqstate: open embedding table: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("seqstate: close embedding table: %w", cerr)
		}
	}()

	dtype := tensor.Packed16
	if t.Elem == F16 {
		dtype = tensor.Float32
	}
	out := tensor.New(dtype, len(ids), 1, t.HiddenSize)
	size := t.recordSize()
	record := make([]byte, size)
	for i, id := range ids {
		if id < 0 {
			return nil, fmt.Errorf("%w: %d", ErrTokenOutOfRange, id)
		}
		n, err := f.ReadAt(record, int64(id)*int64(size))
		if n < size {
			if err == nil || errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("%w: %d (read %d of %d bytes)", ErrTokenOutOfRange, id, n, size)
			}
			return nil, fmt.Errorf("seqstate: read embedding %d: %w", id, err)
		}
		dst := out.F32[i*t.HiddenSize : (i+1)*t.HiddenSize]
		t.decode(dst, record)
	}
	return out, nil
}

func (t *Table) decode(dst []float32, record []byte) {
	if t.Elem == F16 {
		for j := range dst {
			dst[j] = float16.Frombits(binary.LittleEndian.Uint16(record[2*j:])).Float32()
		}
		return
	}
	// Each bf16 value becomes the high half of a float32 slot.
	copy(dst, bfloat16.DecodeFloat32(record))
}
