// Package speech turns recorded audio into the text prompt of a turn.
package speech

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var ErrUnknownTranscriber = errors.New("speech: unknown transcriber")

// Transcriber produces the sentence spoken in audioPath using the speech
// model identified by model.
type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, model, audioPath string) (string, error)
}

var (
	mu       sync.RWMutex
	registry = map[string]Transcriber{}
)

func Register(t Transcriber) {
	mu.Lock()
	defer mu.Unlock()
	registry[normalize(t.Name())] = t
}

func Lookup(name string) (Transcriber, error) {
	mu.RLock()
	defer mu.RUnlock()
	t, ok := registry[normalize(name)]
	if !ok {
		names := make([]string, 0, len(registry))
		for n := range registry {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("%w %q (available: %s)", ErrUnknownTranscriber, name, strings.Join(names, ", "))
	}
	return t, nil
}

func normalize(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

func init() {
	Register(Sidecar{})
}
