package backend

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/samcharles93/llmrun/internal/tensor"
)

var ErrUnknownBackend = errors.New("backend: unknown backend")

// Engine is a loaded model. Forward consumes
// [embeddings, attention mask, position ids, key/value state] and returns at
// least [scores, next key/value state].
type Engine interface {
	Forward(ctx context.Context, inputs []*tensor.Tensor) ([]*tensor.Tensor, error)
	Close() error
}

// Backend turns serialized model bytes into an Engine.
type Backend interface {
	Name() string
	Load(model []byte) (Engine, error)
}

var (
	mu       sync.RWMutex
	backends = map[string]Backend{}
)

// Register makes a backend available by name. Registering the same name twice
// replaces the previous entry.
func Register(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	backends[Normalize(b.Name())] = b
}

// Normalize lowercases and trims a backend name.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Lookup returns the backend registered under name.
func Lookup(name string) (Backend, error) {
	mu.RLock()
	defer mu.RUnlock()
	b, ok := backends[Normalize(name)]
	if !ok {
		return nil, fmt.Errorf("%w %q (available: %s)", ErrUnknownBackend, name, strings.Join(namesLocked(), ", "))
	}
	return b, nil
}

// Names lists registered backends in sorted order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	return namesLocked()
}

func namesLocked() []string {
	out := make([]string, 0, len(backends))
	for name := range backends {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}
