package reference

import (
	"context"
	"errors"
	"testing"

	"github.com/samcharles93/llmrun/internal/backend"
	"github.com/samcharles93/llmrun/internal/tensor"
)

func inputs(positions []int32, kv *tensor.Tensor) []*tensor.Tensor {
	n := len(positions)
	pos := tensor.New(tensor.Int32, 1, n)
	copy(pos.I32, positions)
	return []*tensor.Tensor{
		tensor.New(tensor.Packed16, n, 1, 2),
		tensor.New(tensor.Int32, 1, 1, n, n),
		pos,
		kv,
	}
}

func argmax(xs []float32) int {
	best := 0
	for i, v := range xs {
		if v > xs[best] {
			best = i
		}
	}
	return best
}

func TestRegistered(t *testing.T) {
	b, err := backend.Lookup("Reference")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if b.Name() != Name {
		t.Fatalf("unexpected backend %q", b.Name())
	}
	if _, err := backend.Lookup("missing"); !errors.Is(err, backend.ErrUnknownBackend) {
		t.Fatalf("expected ErrUnknownBackend, got %v", err)
	}
}

func TestForwardPeaksAfterLastPosition(t *testing.T) {
	t.Parallel()
	eng, err := Backend{}.Load([]byte(`{"vocab_size":8}`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	defer eng.Close()

	kv := tensor.New(tensor.Float32, 2, 3)
	out, err := eng.Forward(context.Background(), inputs([]int32{0, 1, 2}, kv))
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 outputs, got %d", len(out))
	}
	if got := argmax(out[0].F32); got != 3 {
		t.Fatalf("expected peak at 3, got %d", got)
	}
	if out[1].F32[0] != 1 || kv.F32[0] != 0 {
		t.Fatalf("kv step counter not advanced on a copy: out=%v in=%v", out[1].F32[0], kv.F32[0])
	}

	out, err = eng.Forward(context.Background(), inputs([]int32{7}, out[1]))
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	if got := argmax(out[0].F32); got != 0 {
		t.Fatalf("expected wrap to 0, got %d", got)
	}
}

func TestForwardStopAfter(t *testing.T) {
	t.Parallel()
	eng, err := Backend{}.Load([]byte(`{"vocab_size":16,"stop_id":15,"stop_after":2}`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	kv := tensor.New(tensor.Float32, 1, 1)
	out, err := eng.Forward(context.Background(), inputs([]int32{0, 1}, kv))
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	if got := argmax(out[0].F32); got != 2 {
		t.Fatalf("first call should not stop, got %d", got)
	}
	out, err = eng.Forward(context.Background(), inputs([]int32{2}, out[1]))
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	if got := argmax(out[0].F32); got != 15 {
		t.Fatalf("second call should emit stop id, got %d", got)
	}
}

func TestLoadRejectsBadHeaders(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"not-json":     `vocab`,
		"zero-vocab":   `{"vocab_size":0}`,
		"stop-outside": `{"vocab_size":4,"stop_id":9,"stop_after":1}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := (Backend{}).Load([]byte(raw)); err == nil {
				t.Fatalf("expected error for %s", raw)
			}
		})
	}
}

func TestForwardAfterClose(t *testing.T) {
	t.Parallel()
	eng, err := Backend{}.Load([]byte(`{"vocab_size":4}`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	_ = eng.Close()
	if _, err := eng.Forward(context.Background(), inputs([]int32{0}, tensor.New(tensor.Float32, 1))); err == nil {
		t.Fatalf("expected error after close")
	}
}
