package logits

// DefaultRepeatPenalty is the repetition penalty used when none is configured.
const DefaultRepeatPenalty float32 = 1.1

// SamplerConfig configures the behaviour of a Sampler.
type SamplerConfig struct {
	RepeatPenalty float32
}

// Sampler picks the next token greedily after penalising ids that have
// already been produced.
type Sampler struct {
	cfg      SamplerConfig
	scratch  []float32
	seenMark []uint32
	epoch    uint32
}

// NewSampler returns a new sampler with the provided configuration.
func NewSampler(cfg SamplerConfig) *Sampler {
	if cfg.RepeatPenalty <= 0 {
		cfg.RepeatPenalty = DefaultRepeatPenalty
	}
	return &Sampler{cfg: cfg}
}

// RepeatPenalty reports the penalty in effect.
func (s *Sampler) RepeatPenalty() float32 { return s.cfg.RepeatPenalty }

// Sample returns the index of the highest score once every distinct id in
// exclude has been penalised: negative scores are multiplied by the penalty
// and non-negative ones divided by it. The input slice is not modified.
//
// The running maximum starts at zero with index 0, so a vector whose
// adjusted scores are all <= 0 yields 0.
func (s *Sampler) Sample(scores []float32, exclude []int) int {
	if cap(s.scratch) < len(scores) {
		s.scratch = make([]float32, len(scores))
	}
	adjusted := s.scratch[:len(scores)]
	copy(adjusted, scores)
	s.penalize(adjusted, exclude)
	return argmaxFromZero(adjusted)
}

// adjust applies the repetition penalty in place and returns scores.
func (s *Sampler) adjust(scores []float32, exclude []int) []float32 {
	s.penalize(scores, exclude)
	return scores
}

func (s *Sampler) penalize(scores []float32, exclude []int) {
	if len(exclude) == 0 {
		return
	}
	if len(s.seenMark) < len(scores) {
		s.seenMark = make([]uint32, len(scores))
	}
	s.epoch++
	if s.epoch == 0 {
		clear(s.seenMark)
		s.epoch = 1
	}
	penalty := s.cfg.RepeatPenalty
	for _, id := range exclude {
		if id < 0 || id >= len(scores) || s.seenMark[id] == s.epoch {
			continue
		}
		s.seenMark[id] = s.epoch
		if scores[id] < 0 {
			scores[id] *= penalty
		} else {
			scores[id] /= penalty
		}
	}
}

func argmaxFromZero(scores []float32) int {
	var best float32
	idx := 0
	for i, v := range scores {
		if v > best {
			best = v
			idx = i
		}
	}
	return idx
}
