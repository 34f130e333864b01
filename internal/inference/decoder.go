package inference

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/samcharles93/llmrun/internal/backend"
	"github.com/samcharles93/llmrun/internal/kvcache"
	"github.com/samcharles93/llmrun/internal/logits"
	"github.com/samcharles93/llmrun/internal/seqstate"
	"github.com/samcharles93/llmrun/internal/tensor"
	"github.com/samcharles93/llmrun/internal/tokenizer"
)

// ErrShortOutput is returned when the engine yields fewer than the two
// outputs (scores, next key/value state) a forward call must produce.
var ErrShortOutput = errors.New("inference: engine returned fewer than two outputs")

type Options struct {
	Engine    backend.Engine
	Tokenizer tokenizer.Tokenizer
	Builder   *seqstate.Builder
	Cache     *kvcache.Cache
	Sampler   *logits.Sampler

	// MaxNewTokens bounds a text generation as prompt plus forward calls.
	MaxNewTokens int
	ReuseKV      bool
	// VocabSize is the prefix of the score vector used for scoring.
	VocabSize int
}

// Decoder drives prefill and the decode loop for a single conversation.
// It is not safe for concurrent use.
type Decoder struct {
	engine  backend.Engine
	tok     tokenizer.Tokenizer
	builder *seqstate.Builder
	cache   *kvcache.Cache
	sampler *logits.Sampler

	maxNewTokens int
	reuseKV      bool
	vocabSize    int

	history   []int
	promptLen int
	genSeqLen int
	prefill   time.Duration
	decode    time.Duration
}

func New(opts Options) (*Decoder, error) {
	switch {
	case opts.Engine == nil:
		return nil, fmt.Errorf("inference: engine is required")
	case opts.Tokenizer == nil:
		return nil, fmt.Errorf("inference: tokenizer is required")
	case opts.Builder == nil:
		return nil, fmt.Errorf("inference: sequence builder is required")
	case opts.Cache == nil:
		return nil, fmt.Errorf("inference: key/value cache is required")
	}
	sampler := opts.Sampler
	if sampler == nil {
		sampler = logits.NewSampler(logits.SamplerConfig{})
	}
	vocab := opts.VocabSize
	if vocab <= 0 {
		vocab = logits.DefaultVocabSize
	}
	return &Decoder{
		engine:       opts.Engine,
		tok:          opts.Tokenizer,
		builder:      opts.Builder,
		cache:        opts.Cache,
		sampler:      sampler,
		maxNewTokens: opts.MaxNewTokens,
		reuseKV:      opts.ReuseKV,
		vocabSize:    vocab,
	}, nil
}

// Init prepares a generation: counters are zeroed and the key/value state is
// replaced by zeros. Without reuse the running length and history are
// cleared as well.
func (d *Decoder) Init() {
	d.genSeqLen = 0
	d.prefill = 0
	d.decode = 0
	d.cache.Init()
	if !d.reuseKV {
		d.cache.ClearLen()
		d.history = d.history[:0]
	}
}

// Reset forgets the conversation: history, running length and state.
func (d *Decoder) Reset() {
	d.history = d.history[:0]
	d.cache.Reset()
}

// Forward feeds ids through the engine and returns the score vector. The
// decoder is only mutated once the engine has produced both outputs.
func (d *Decoder) Forward(ctx context.Context, ids []int) ([]float32, error) {
	kv := d.cache.State()
	if kv == nil {
		return nil, fmt.Errorf("inference: forward before init: %w", kvcache.ErrNilState)
	}
	st, err := d.builder.Build(ids, d.cache.RunningLen(), d.genSeqLen)
	if err != nil {
		return nil, fmt.Errorf("inference: build inputs: %w", err)
	}
	outs, err := safeForward(ctx, d.engine, []*tensor.Tensor{st.Embeddings, st.AttentionMask, st.PositionIDs, kv})
	if err != nil {
		return nil, fmt.Errorf("inference: forward: %w", err)
	}
	if len(outs) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrShortOutput, len(outs))
	}
	scores := outs[0]
	if scores == nil || scores.DType != tensor.Float32 || len(scores.F32) == 0 {
		return nil, fmt.Errorf("inference: engine returned invalid scores %v", scores)
	}
	if err := d.cache.Advance(outs[1]); err != nil {
		return nil, fmt.Errorf("inference: advance state: %w", err)
	}
	d.cache.Absorb(len(ids))
	d.genSeqLen++
	return scores.F32, nil
}

// GenerateIDs runs a complete generation over promptIDs and returns the
// produced ids. It calls Init itself. A negative maxNewTokens uses the
// configured budget, which here bounds the number of forward calls.
func (d *Decoder) GenerateIDs(ctx context.Context, promptIDs []int, maxNewTokens int) (_ []int, err error) {
	d.Init()
	base := d.cache.RunningLen()
	defer func() {
		if err != nil {
			d.cache.Rewind(base)
		}
	}()
	d.promptLen = len(promptIDs)
	if maxNewTokens < 0 {
		maxNewTokens = d.maxNewTokens
	}
	all := slices.Clone(promptIDs)

	scores, err := d.Forward(ctx, promptIDs)
	if err != nil {
		return nil, err
	}
	token := d.sampler.Sample(scores, all)
	out := []int{token}
	all = append(all, token)

	for d.genSeqLen < maxNewTokens {
		scores, err = d.Forward(ctx, []int{token})
		if err != nil {
			return out, err
		}
		token = d.sampler.Sample(scores, all)
		if d.tok.IsStop(token) {
			break
		}
		out = append(out, token)
		all = append(all, token)
	}
	return out, nil
}

// GenerateText streams decoded text to w and returns it. The caller runs
// Init first. The token produced by prefill is always emitted; endWith is
// written only when a stop id ends the loop.
func (d *Decoder) GenerateText(ctx context.Context, promptIDs []int, w io.Writer, endWith string) (_ string, err error) {
	if w == nil {
		w = io.Discard
	}
	d.promptLen = len(promptIDs)
	turn := append(slices.Clone(d.history), promptIDs...)
	defer d.settle(d.cache.RunningLen(), &turn, &err)

	start := time.Now()
	scores, err := d.Forward(ctx, promptIDs)
	if err != nil {
		return "", err
	}
	token := d.sampler.Sample(scores, turn)
	word, err := tokenizer.DecodePiece(d.tok, token)
	d.prefill = time.Since(start)
	if err != nil {
		return "", fmt.Errorf("inference: decode %d: %w", token, err)
	}
	if _, err := io.WriteString(w, word); err != nil {
		return "", fmt.Errorf("inference: write output: %w", err)
	}
	out := word

	for d.promptLen+d.genSeqLen < d.maxNewTokens {
		start = time.Now()
		turn = append(turn, token)
		scores, err = d.Forward(ctx, []int{token})
		if err != nil {
			return out, err
		}
		token = d.sampler.Sample(scores, turn)
		d.decode += time.Since(start)

		if d.tok.IsStop(token) {
			if _, err := io.WriteString(w, endWith); err != nil {
				return out, fmt.Errorf("inference: write output: %w", err)
			}
			break
		}
		word, err = tokenizer.DecodePiece(d.tok, token)
		if err != nil {
			return out, fmt.Errorf("inference: decode %d: %w", token, err)
		}
		if _, err := io.WriteString(w, word); err != nil {
			return out, fmt.Errorf("inference: write output: %w", err)
		}
		out += word
	}
	return out, nil
}

// ScoreFirst runs one prefill over inputIDs and returns the cross-entropy of
// the first target id. The caller runs Init first.
func (d *Decoder) ScoreFirst(ctx context.Context, inputIDs, targetIDs []int) (_ float32, err error) {
	if len(targetIDs) == 0 {
		return 0, fmt.Errorf("inference: no target ids")
	}
	d.promptLen = len(inputIDs)
	turn := append(slices.Clone(d.history), inputIDs...)
	defer d.settle(d.cache.RunningLen(), &turn, &err)

	start := time.Now()
	scores, err := d.Forward(ctx, inputIDs)
	d.prefill = time.Since(start)
	if err != nil {
		return 0, err
	}
	loss, err := logits.CrossEntropy(scores, targetIDs[0], d.vocabSize)
	if err != nil {
		return 0, fmt.Errorf("inference: score: %w", err)
	}
	return loss, nil
}

// settle publishes the ids of a turn once it succeeded. A failed turn leaves
// the history as it was and rewinds the running length to base.
func (d *Decoder) settle(base int, turn *[]int, err *error) {
	if *err != nil {
		d.cache.Rewind(base)
		return
	}
	d.history = *turn
}

// Stats reports the counters of the most recent generation.
func (d *Decoder) Stats() Stats {
	return Stats{
		PromptTokens:    d.promptLen,
		GeneratedTokens: d.genSeqLen,
		RunningLen:      d.cache.RunningLen(),
		Prefill:         d.prefill,
		Decode:          d.decode,
	}
}

// History returns a copy of the ids fed during the conversation.
func (d *Decoder) History() []int { return slices.Clone(d.history) }

func (d *Decoder) RunningLen() int { return d.cache.RunningLen() }

func (d *Decoder) ReuseKV() bool { return d.reuseKV }

func safeForward(ctx context.Context, e backend.Engine, inputs []*tensor.Tensor) (outs []*tensor.Tensor, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in Forward: %v", rec)
		}
	}()
	return e.Forward(ctx, inputs)
}
