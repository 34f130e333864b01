// Package reference provides a deterministic in-process engine. It performs no
// neural computation: scores peak at the token following the last position id,
// which makes the decode loop observable without a real model.
package reference

import (
	"context"
	"fmt"
	"slices"

	"github.com/goccy/go-json"

	"github.com/samcharles93/llmrun/internal/backend"
	"github.com/samcharles93/llmrun/internal/tensor"
)

const Name = "reference"

// Header is the JSON document stored in a reference model file.
type Header struct {
	VocabSize int `json:"vocab_size"`
	// StopID is emitted once StopAfter forward calls have been made against
	// the current key/value state. StopAfter <= 0 disables it.
	StopID    int `json:"stop_id"`
	StopAfter int `json:"stop_after"`
}

func init() {
	backend.Register(Backend{})
}

type Backend struct{}

func (Backend) Name() string { return Name }

func (Backend) Load(model []byte) (backend.Engine, error) {
	var h Header
	if err := json.Unmarshal(model, &h); err != nil {
		return nil, fmt.Errorf("reference: parse model header: %w", err)
	}
	if h.VocabSize <= 0 {
		return nil, fmt.Errorf("reference: vocab_size must be positive, got %d", h.VocabSize)
	}
	if h.StopAfter > 0 && (h.StopID < 0 || h.StopID >= h.VocabSize) {
		return nil, fmt.Errorf("reference: stop_id %d outside vocabulary of %d", h.StopID, h.VocabSize)
	}
	return &Engine{header: h}, nil
}

// Engine keeps no per-call state. The number of forward calls made since the
// key/value state was zeroed travels in element 0 of that state.
type Engine struct {
	header Header
	closed bool
}

func (e *Engine) Forward(_ context.Context, inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	if e.closed {
		return nil, fmt.Errorf("reference: engine closed")
	}
	if len(inputs) != 4 {
		return nil, fmt.Errorf("reference: expected 4 inputs, got %d", len(inputs))
	}
	for i, in := range inputs {
		if err := in.Validate(); err != nil {
			return nil, fmt.Errorf("reference: input %d: %w", i, err)
		}
	}
	pos := inputs[2]
	if pos.DType != tensor.Int32 || len(pos.Shape) == 0 {
		return nil, fmt.Errorf("reference: position ids must be a non-empty int32 tensor, got %s", pos)
	}
	seqLen := pos.Shape[len(pos.Shape)-1]
	if seqLen == 0 {
		return nil, fmt.Errorf("reference: empty position ids")
	}
	last := int(pos.I32[seqLen-1])

	kv := inputs[3]
	next := &tensor.Tensor{DType: kv.DType, Shape: slices.Clone(kv.Shape), F32: slices.Clone(kv.F32)}
	steps := 0
	if len(next.F32) > 0 {
		steps = int(next.F32[0])
		next.F32[0]++
	}

	target := (last + 1) % e.header.VocabSize
	if target < 0 {
		target += e.header.VocabSize
	}
	if e.header.StopAfter > 0 && steps+1 >= e.header.StopAfter {
		target = e.header.StopID
	}
	scores := tensor.New(tensor.Float32, 1, e.header.VocabSize)
	scores.F32[target] = 1
	return []*tensor.Tensor{scores, next}, nil
}

func (e *Engine) Close() error {
	e.closed = true
	return nil
}
