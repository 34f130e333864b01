package inference

import (
	"fmt"
	"io"
	"time"
)

// Stats are the per-turn counters. GeneratedTokens counts forward calls,
// prefill included.
type Stats struct {
	PromptTokens    int
	GeneratedTokens int
	RunningLen      int
	Prefill         time.Duration
	Decode          time.Duration
}

func (s Stats) Total() time.Duration { return s.Prefill + s.Decode }

func (s Stats) PromptTPS() float64 { return rate(s.PromptTokens, s.Prefill) }

func (s Stats) DecodeTPS() float64 { return rate(s.GeneratedTokens, s.Decode) }

func (s Stats) TotalTPS() float64 { return rate(s.PromptTokens+s.GeneratedTokens, s.Total()) }

func (s Stats) ChatTPS() float64 { return rate(s.GeneratedTokens, s.Total()) }

// rate is zero when no time was measured.
func rate(n int, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / d.Seconds()
}

// WriteReport renders the speed block printed after a turn.
func (s Stats) WriteReport(w io.Writer) error {
	_, err := fmt.Fprintf(w, "\n#################################\n"+
		" total tokens num  = %d\n"+
		"prompt tokens num  = %d\n"+
		"output tokens num  = %d\n"+
		"  total time = %.2f s\n"+
		"prefill time = %.2f s\n"+
		" decode time = %.2f s\n"+
		"  total speed = %.2f tok/s\n"+
		"prefill speed = %.2f tok/s\n"+
		" decode speed = %.2f tok/s\n"+
		"   chat speed = %.2f tok/s\n"+
		"##################################\n",
		s.PromptTokens+s.GeneratedTokens,
		s.PromptTokens,
		s.GeneratedTokens,
		s.Total().Seconds(),
		s.Prefill.Seconds(),
		s.Decode.Seconds(),
		s.TotalTPS(),
		s.PromptTPS(),
		s.DecodeTPS(),
		s.ChatTPS(),
	)
	return err
}

// Sum adds the counters of several turns.
func Sum(turns ...Stats) Stats {
	var total Stats
	for _, s := range turns {
		total.PromptTokens += s.PromptTokens
		total.GeneratedTokens += s.GeneratedTokens
		total.RunningLen = s.RunningLen
		total.Prefill += s.Prefill
		total.Decode += s.Decode
	}
	return total
}

// WriteBenchReport renders the shorter block printed by the benchmark.
func (s Stats) WriteBenchReport(w io.Writer) error {
	_, err := fmt.Fprintf(w, "\n#################################\n"+
		"prompt tokens num  = %d\n"+
		"decode tokens num  = %d\n"+
		"prefill time = %.2f s\n"+
		" decode time = %.2f s\n"+
		"prefill speed = %.2f tok/s\n"+
		" decode speed = %.2f tok/s\n"+
		"##################################\n",
		s.PromptTokens,
		s.GeneratedTokens,
		s.Prefill.Seconds(),
		s.Decode.Seconds(),
		s.PromptTPS(),
		s.DecodeTPS(),
	)
	return err
}
