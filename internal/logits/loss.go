package logits

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// DefaultVocabSize is the vocabulary length scored by CrossEntropy when the
// model configuration does not name one. It matches the Qwen model family.
const DefaultVocabSize = 151936

// smallestNormal is the smallest positive normal float32 (FLT_MIN).
const smallestNormal float32 = 0x1p-126

// Softmax returns exp(x-max)/sum(exp(x-max)) for every score.
func Softmax(scores []float32) []float32 {
	if len(scores) == 0 {
		return nil
	}
	wide := make([]float64, len(scores))
	for i, v := range scores {
		wide[i] = float64(v)
	}
	floats.AddConst(-floats.Max(wide), wide)
	for i, v := range wide {
		wide[i] = math.Exp(v)
	}
	floats.Scale(1/floats.Sum(wide), wide)

	out := make([]float32, len(wide))
	for i, v := range wide {
		out[i] = float32(v)
	}
	return out
}

// CrossEntropy returns -ln(p[target]) under the softmax of the first vocab
// scores. A probability that underflows to zero is floored at FLT_MIN.
func CrossEntropy(scores []float32, target, vocab int) (float32, error) {
	if vocab <= 0 {
		return 0, fmt.Errorf("logits: vocab size must be positive, got %d", vocab)
	}
	if len(scores) < vocab {
		return 0, fmt.Errorf("logits: %d scores for vocab of %d", len(scores), vocab)
	}
	if target < 0 || target >= vocab {
		return 0, fmt.Errorf("logits: target %d outside vocab of %d", target, vocab)
	}
	p := Softmax(scores[:vocab])[target]
	if p > 0 {
		return -float32(math.Log(float64(p))), nil
	}
	return -float32(math.Log(float64(smallestNormal))), nil
}
