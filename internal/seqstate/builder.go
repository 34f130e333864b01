// Package seqstate builds the per-step tensors an execution backend needs next
// to the key/value state: input embeddings, attention mask and position ids.
package seqstate

import (
	"fmt"
	"math"
	"strings"

	"github.com/samcharles93/llmrun/internal/tensor"
)

// MaskVariant selects the attention-mask and position-id layout.
type MaskVariant string

const (
	// MaskDefault is a boolean causal mask: 1 marks a visible position.
	MaskDefault MaskVariant = "default"
	// MaskFloat is an additive causal mask: hidden positions carry -MaxFloat32.
	MaskFloat MaskVariant = "float"
	// MaskGLM is the ChatGLM bidirectional-prefix layout.
	MaskGLM MaskVariant = "glm"
	// MaskGLM2 inverts the boolean comparison of MaskDefault.
	MaskGLM2 MaskVariant = "glm2"
)

// ParseMaskVariant maps a configuration tag to a variant. "int" and the empty
// string are aliases of MaskDefault.
func ParseMaskVariant(tag string) (MaskVariant, error) {
	switch v := MaskVariant(strings.ToLower(strings.TrimSpace(tag))); v {
	case "", "int", MaskDefault:
		return MaskDefault, nil
	case MaskFloat, MaskGLM, MaskGLM2:
		return v, nil
	default:
		return "", fmt.Errorf("seqstate: unsupported attention mask %q (expected int, float, glm or glm2)", tag)
	}
}

// State is the set of tensors produced for one forward call.
type State struct {
	Embeddings    *tensor.Tensor
	AttentionMask *tensor.Tensor
	PositionIDs   *tensor.Tensor
}

// Builder produces a fresh State for every call; nothing is cached.
type Builder struct {
	Variant MaskVariant
	Table   *Table
}

// Build creates the tensors for feeding ids when the key/value state has
// already absorbed runningLen tokens and genLen forward calls have been made
// in the current turn.
func (b *Builder) Build(ids []int, runningLen, genLen int) (State, error) {
	if len(ids) == 0 {
		return State{}, fmt.Errorf("seqstate: no input ids")
	}
	if b.Table == nil {
		return State{}, fmt.Errorf("seqstate: no embedding table")
	}
	emb, err := b.Table.Lookup(ids)
	if err != nil {
		return State{}, err
	}
	return State{
		Embeddings:    emb,
		AttentionMask: AttentionMask(b.Variant, len(ids), runningLen),
		PositionIDs:   PositionIDs(b.Variant, len(ids), runningLen, genLen),
	}, nil
}

// KVSeqLen is the key/value length attended to. A single-token step attends
// to a length of one; the backend supplies the rest from its cache.
func KVSeqLen(seqLen, runningLen int) int {
	if seqLen == 1 {
		return seqLen
	}
	return runningLen + seqLen
}

// AttentionMask builds a [1,1,seqLen,kvSeqLen] mask for the variant.
func AttentionMask(variant MaskVariant, seqLen, runningLen int) *tensor.Tensor {
	kvSeqLen := KVSeqLen(seqLen, runningLen)
	if variant == MaskFloat {
		mask := tensor.New(tensor.Float32, 1, 1, seqLen, kvSeqLen)
		for i := range seqLen {
			row := i + runningLen
			for j := range kvSeqLen {
				mask.F32[kvSeqLen*i+j] = b2f(j > row) * -math.MaxFloat32
			}
		}
		return mask
	}

	mask := tensor.New(tensor.Int32, 1, 1, seqLen, kvSeqLen)
	switch variant {
	case MaskGLM:
		for i := 1; i < seqLen; i++ {
			mask.I32[seqLen*i-1] = 1
		}
	case MaskGLM2:
		for i := range seqLen {
			row := i + runningLen
			for j := range kvSeqLen {
				mask.I32[kvSeqLen*i+j] = b2i(j > row)
			}
		}
	default:
		for i := range seqLen {
			row := i + runningLen
			for j := range kvSeqLen {
				mask.I32[kvSeqLen*i+j] = b2i(j <= row)
			}
		}
	}
	return mask
}

// PositionIDs builds [1,seqLen] ids, or [1,2,seqLen] block/segment ids for glm.
func PositionIDs(variant MaskVariant, seqLen, runningLen, genLen int) *tensor.Tensor {
	if variant == MaskGLM {
		pos := tensor.New(tensor.Int32, 1, 2, seqLen)
		if seqLen == 1 {
			pos.I32[0] = int32(runningLen - genLen - 2)
			pos.I32[1] = int32(genLen + 1)
			return pos
		}
		for i := range seqLen - 1 {
			pos.I32[i] = int32(i)
			pos.I32[seqLen+i] = 0
		}
		pos.I32[seqLen-1] = int32(seqLen - 2)
		pos.I32[2*seqLen-1] = 1
		return pos
	}

	pos := tensor.New(tensor.Int32, 1, seqLen)
	if seqLen == 1 {
		if variant == MaskGLM2 {
			pos.I32[0] = int32(genLen)
		} else {
			pos.I32[0] = int32(runningLen)
		}
		return pos
	}
	for i := range seqLen {
		pos.I32[i] = int32(i + runningLen)
	}
	return pos
}

func b2i(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

func b2f(b bool) float32 {
	if b {
		return 1
	}
	return 0
}
