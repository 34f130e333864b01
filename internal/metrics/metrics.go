// Package metrics collects per-turn decode counters on a private Prometheus
// registry. Nothing is served; the registry can be written to a textfile for
// node_exporter style collection.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "llmrun"

// Turn is what one generation contributes to the collectors.
type Turn struct {
	PromptTokens int
	// Steps counts forward calls, prefill included.
	Steps   int
	Prefill time.Duration
	Decode  time.Duration
}

type Collector struct {
	reg          *prometheus.Registry
	promptTokens prometheus.Counter
	decodeSteps  prometheus.Counter
	turns        prometheus.Counter
	prefill      prometheus.Histogram
	decode       prometheus.Histogram
}

func New() *Collector {
	c := &Collector{
		reg: prometheus.NewRegistry(),
		promptTokens: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prompt_tokens_total",
			Help:      "Prompt tokens fed through prefill",
		}),
		decodeSteps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_steps_total",
			Help:      "Forward calls made, prefill included",
		}),
		turns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Completed generations",
		}),
		prefill: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prefill_duration_seconds",
			Help:      "Prefill latency per turn",
			Buckets:   prometheus.DefBuckets,
		}),
		decode: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "decode_duration_seconds",
			Help:      "Accumulated decode latency per turn",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
	}
	c.reg.MustRegister(c.promptTokens, c.decodeSteps, c.turns, c.prefill, c.decode)
	return c
}

func (c *Collector) Observe(t Turn) {
	c.promptTokens.Add(float64(max(t.PromptTokens, 0)))
	c.decodeSteps.Add(float64(max(t.Steps, 0)))
	c.turns.Inc()
	c.prefill.Observe(t.Prefill.Seconds())
	c.decode.Observe(t.Decode.Seconds())
}

// WriteToTextfile writes the registry in the text exposition format.
func (c *Collector) WriteToTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.reg); err != nil {
		return fmt.Errorf("metrics: write %s: %w", path, err)
	}
	return nil
}
