// Package session ties a model directory to a decoder: it loads the
// configuration's collaborators, renders prompts, and runs turns.
package session

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/samcharles93/llmrun/internal/backend"
	"github.com/samcharles93/llmrun/internal/config"
	"github.com/samcharles93/llmrun/internal/inference"
	"github.com/samcharles93/llmrun/internal/kvcache"
	"github.com/samcharles93/llmrun/internal/logger"
	"github.com/samcharles93/llmrun/internal/logits"
	"github.com/samcharles93/llmrun/internal/metrics"
	"github.com/samcharles93/llmrun/internal/prompt"
	"github.com/samcharles93/llmrun/internal/seqstate"
	"github.com/samcharles93/llmrun/internal/tokenizer"
)

var ErrNotLoaded = errors.New("session: not loaded")

// DefaultEndWith is written when generation ends on a stop id and the caller
// passed no terminator.
const DefaultEndWith = "\n"

type Option func(*Session)

func WithLogger(l logger.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithMetrics records every turn into c.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Session) { s.metrics = c }
}

// WithTokenizer skips loading tokenizer_file.
func WithTokenizer(t tokenizer.Tokenizer) Option {
	return func(s *Session) { s.tok = t }
}

// Session is a single conversational or benchmarking context. It is not
// safe for concurrent use.
type Session struct {
	cfg     *config.Config
	id      string
	log     logger.Logger
	metrics *metrics.Collector

	tok       tokenizer.Tokenizer
	engine    backend.Engine
	decoder   *inference.Decoder
	templates prompt.Templates
}

func New(cfg *config.Config, opts ...Option) (*Session, error) {
	if cfg == nil {
		return nil, fmt.Errorf("session: configuration is required")
	}
	s := &Session{cfg: cfg, id: uuid.NewString()}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	s.log = s.log.With("session", s.id)
	return s, nil
}

func (s *Session) ID() string { return s.id }

func (s *Session) Config() *config.Config { return s.cfg }

func (s *Session) loaded() bool { return s.decoder != nil }

// Load validates the configuration and opens the embedding table, tokenizer
// and engine, in that order.
func (s *Session) Load(ctx context.Context) (err error) {
	if s.loaded() {
		return nil
	}
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	variant, err := seqstate.ParseMaskVariant(s.cfg.AttentionMask())
	if err != nil {
		return err
	}
	elem, err := seqstate.ParseElemType(s.cfg.EmbeddingDType())
	if err != nil {
		return err
	}
	be, err := backend.Lookup(s.cfg.Backend())
	if err != nil {
		return err
	}

	table, err := seqstate.NewTable(s.cfg.EmbeddingFile(), s.cfg.HiddenSize(), elem)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}

	if s.tok == nil {
		start := time.Now()
		s.log.Info("load tokenizer", "path", s.cfg.TokenizerFile())
		tok, loadErr := tokenizer.Load(s.cfg.TokenizerFile(), s.cfg.StopIDs())
		if loadErr != nil {
			return fmt.Errorf("session: %w", loadErr)
		}
		s.tok = tok
		defer func() {
			if err == nil {
				return
			}
			if c, ok := s.tok.(io.Closer); ok {
				err = errors.Join(err, c.Close())
			}
			s.tok = nil
		}()
		s.log.Debug("tokenizer loaded", "elapsed", time.Since(start))
	}

	cache, err := kvcache.New(s.cfg.LayerNums(), s.cfg.KeyValueShape())
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}

	modelPath := s.cfg.LLMModel()
	s.log.Info("load model", "path", modelPath, "backend", be.Name())
	model, err := os.ReadFile(modelPath)
	if err != nil {
		return fmt.Errorf("session: read model: %w", err)
	}
	engine, err := be.Load(model)
	if err != nil {
		return fmt.Errorf("session: open %s engine: %w", be.Name(), err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, engine.Close())
		}
	}()

	sampler := logits.NewSampler(logits.SamplerConfig{RepeatPenalty: s.cfg.RepetitionPenalty()})
	decoder, err := inference.New(inference.Options{
		Engine:       engine,
		Tokenizer:    s.tok,
		Builder:      &seqstate.Builder{Variant: variant, Table: table},
		Cache:        cache,
		Sampler:      sampler,
		MaxNewTokens: s.cfg.MaxNewTokens(),
		ReuseKV:      s.cfg.ReuseKV(),
		VocabSize:    s.cfg.VocabSize(),
	})
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}

	s.engine = engine
	s.decoder = decoder
	s.templates = prompt.Templates{Prompt: s.cfg.PromptTemplate(), Chat: s.cfg.ChatTemplate()}
	s.log.Info("model loaded",
		"kv_shape", cache.Shape(),
		"attention_mask", string(variant),
		"reuse_kv", s.cfg.ReuseKV(),
		"repetition_penalty", sampler.RepeatPenalty(),
	)
	return nil
}

// Close releases the engine and then the tokenizer. Calling it again is a
// no-op.
func (s *Session) Close() error {
	var errs []error
	if s.engine != nil {
		if err := s.engine.Close(); err != nil {
			errs = append(errs, fmt.Errorf("session: close engine: %w", err))
		}
		s.engine = nil
	}
	if s.tok != nil {
		if c, ok := s.tok.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("session: close tokenizer: %w", err))
			}
		}
		s.tok = nil
	}
	s.decoder = nil
	return errors.Join(errs...)
}

// Reset forgets the conversation held by the key/value state.
func (s *Session) Reset() {
	if s.loaded() {
		s.decoder.Reset()
	}
}

// Stats reports the counters of the last turn.
func (s *Session) Stats() inference.Stats {
	if !s.loaded() {
		return inference.Stats{}
	}
	return s.decoder.Stats()
}

// Response answers a single user message, streaming the reply to w.
func (s *Session) Response(ctx context.Context, text string, w io.Writer, endWith string) (string, error) {
	if !s.loaded() {
		return "", ErrNotLoaded
	}
	s.decoder.Init()
	p := s.templates.RenderSingle(text)
	p = prompt.WithSeparator(p, s.cfg.TurnSeparator(), s.decoder.ReuseKV(), s.decoder.RunningLen())
	return s.generate(ctx, p, w, endWith)
}

// ResponseHistory answers the last item of a conversation. An empty
// history yields an empty reply.
func (s *Session) ResponseHistory(ctx context.Context, items []prompt.Item, w io.Writer, endWith string) (string, error) {
	if !s.loaded() {
		return "", ErrNotLoaded
	}
	if len(items) == 0 {
		return "", nil
	}
	s.decoder.Init()
	p := s.templates.RenderHistory(items)
	p = prompt.WithSeparator(p, s.cfg.TurnSeparator(), s.decoder.ReuseKV(), s.decoder.RunningLen())
	return s.generate(ctx, p, w, endWith)
}

func (s *Session) generate(ctx context.Context, p string, w io.Writer, endWith string) (string, error) {
	if endWith == "" {
		endWith = DefaultEndWith
	}
	ids, err := s.tok.Encode(p)
	if err != nil {
		return "", fmt.Errorf("session: encode prompt: %w", err)
	}
	out, err := s.decoder.GenerateText(ctx, ids, w, endWith)
	if err != nil {
		return out, err
	}
	s.record()
	return out, nil
}

// ResponseFiles scores a pre-tokenised sample. Both files hold raw
// little-endian int32 ids; only the first target id is scored.
func (s *Session) ResponseFiles(ctx context.Context, inputPath, targetPath string) (float32, error) {
	if !s.loaded() {
		return 0, ErrNotLoaded
	}
	s.decoder.Init()
	input, err := ReadIDs(inputPath)
	if err != nil {
		return 0, err
	}
	target, err := ReadIDs(targetPath)
	if err != nil {
		return 0, err
	}
	if len(target) == 0 {
		return 0, fmt.Errorf("session: %s holds no target ids", targetPath)
	}
	loss, err := s.decoder.ScoreFirst(ctx, input, target)
	if err != nil {
		return 0, err
	}
	s.record()
	return loss, nil
}

// ReadIDs reads a file of little-endian int32 values. Trailing bytes that do
// not fill a value are ignored.
func ReadIDs(path string) ([]int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("session: read ids: %w", err)
	}
	ids := make([]int, len(data)/4)
	for i := range ids {
		ids[i] = int(int32(binary.LittleEndian.Uint32(data[i*4:])))
	}
	return ids, nil
}

func (s *Session) record() {
	st := s.decoder.Stats()
	if s.metrics != nil {
		s.metrics.Observe(metrics.Turn{
			PromptTokens: st.PromptTokens,
			Steps:        st.GeneratedTokens,
			Prefill:      st.Prefill,
			Decode:       st.Decode,
		})
	}
	s.log.Debug("turn complete",
		"prompt_tokens", st.PromptTokens,
		"forward_calls", st.GeneratedTokens,
		"running_len", st.RunningLen,
		"prefill", st.Prefill,
		"decode", st.Decode,
	)
}
