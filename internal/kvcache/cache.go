// Package kvcache holds the recurrent key/value state threaded between forward
// calls, together with the number of tokens that state has absorbed.
package kvcache

import (
	"errors"
	"fmt"
	"slices"

	"github.com/samcharles93/llmrun/internal/tensor"
)

var ErrNilState = errors.New("kvcache: nil state")

// Cache is owned by a single decoder. Its state is opaque: it is only ever
// handed to the next forward call.
type Cache struct {
	shape      []int
	state      *tensor.Tensor
	runningLen int
}

// New returns a cache whose state has shape [layers, perLayer...].
func New(layers int, perLayer []int) (*Cache, error) {
	if layers <= 0 {
		return nil, fmt.Errorf("kvcache: layer count must be positive, got %d", layers)
	}
	if len(perLayer) == 0 {
		return nil, fmt.Errorf("kvcache: empty per-layer shape")
	}
	for _, d := range perLayer {
		if d < 0 {
			return nil, fmt.Errorf("kvcache: negative dimension in %v", perLayer)
		}
	}
	return &Cache{shape: append([]int{layers}, perLayer...)}, nil
}

// Shape returns a copy of the full state shape.
func (c *Cache) Shape() []int { return slices.Clone(c.shape) }

// Init replaces the state with a zero tensor. The running length is kept.
func (c *Cache) Init() {
	c.state = tensor.New(tensor.Float32, c.shape...)
}

// State returns the value to pass into the next forward call.
func (c *Cache) State() *tensor.Tensor { return c.state }

// Advance replaces the state with the value returned by a forward call.
func (c *Cache) Advance(next *tensor.Tensor) error {
	if next == nil {
		return ErrNilState
	}
	c.state = next
	return nil
}

// Absorb records that n more tokens were fed through the state.
func (c *Cache) Absorb(n int) { c.runningLen += n }

// RunningLen is the total number of tokens absorbed since the last reset.
func (c *Cache) RunningLen() int { return c.runningLen }

// Rewind drops the tokens absorbed after the running length was n.
func (c *Cache) Rewind(n int) {
	if n >= 0 && n < c.runningLen {
		c.runningLen = n
	}
}

// ClearLen zeroes the running length without touching the state.
func (c *Cache) ClearLen() { c.runningLen = 0 }

// Reset drops the state and zeroes the running length.
func (c *Cache) Reset() {
	c.state = nil
	c.runningLen = 0
}
