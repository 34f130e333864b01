package config

import (
	"errors"
	"fmt"
	"math"

	"github.com/samcharles93/llmrun/internal/seqstate"
)

const (
	KeyHiddenSize        = "hidden_size"
	KeyLayerNums         = "layer_nums"
	KeyKeyValueShape     = "key_value_shape"
	KeyAttentionMask     = "attention_mask"
	KeyReuseKV           = "reuse_kv"
	KeyMaxNewTokens      = "max_new_tokens"
	KeyPromptTemplate    = "prompt_template"
	KeyChatTemplate      = "chat_template"
	KeySystemPrompt      = "system_prompt"
	KeyTurnSeparator     = "turn_separator"
	KeyLLMModel          = "llm_model"
	KeyTokenizerFile     = "tokenizer_file"
	KeyEmbeddingFile     = "embedding_file"
	KeyEmbeddingDType    = "embedding_dtype"
	KeyBackend           = "backend"
	KeyRepetitionPenalty = "repetition_penalty"
	KeyVocabSize         = "vocab_size"
	KeyStopIDs           = "stop_ids"
	KeyIsVisual          = "is_visual"
)

const (
	DefaultAttentionMask     = "int"
	DefaultMaxNewTokens      = 512
	DefaultSystemPrompt      = "You are a helpful assistant."
	DefaultTurnSeparator     = "<|im_end|>\n"
	DefaultLLMModel          = "llm.kmodel"
	DefaultTokenizerFile     = "tokenizer.json"
	DefaultEmbeddingFile     = "embeddings_bf16.bin"
	DefaultEmbeddingDType    = "bf16"
	DefaultBackend           = "reference"
	DefaultRepetitionPenalty = 1.1
	DefaultVocabSize         = 151936
)

func (c *Config) HiddenSize() int { return c.intOr(KeyHiddenSize, 0) }
func (c *Config) LayerNums() int { return c.intOr(KeyLayerNums, 0) }
func (c *Config) KeyValueShape() []int { return c.intsOr(KeyKeyValueShape, nil) }

// AttentionMask is the mask variant tag, "int" when unset.
func (c *Config) AttentionMask() string { return c.stringOr(KeyAttentionMask, DefaultAttentionMask) }

func (c *Config) ReuseKV() bool { return c.boolOr(KeyReuseKV, false) }
func (c *Config) MaxNewTokens() int { return c.intOr(KeyMaxNewTokens, DefaultMaxNewTokens) }

func (c *Config) PromptTemplate() string { return c.stringOr(KeyPromptTemplate, "") }
func (c *Config) ChatTemplate() string { return c.stringOr(KeyChatTemplate, "") }
func (c *Config) SystemPrompt() string { return c.stringOr(KeySystemPrompt, DefaultSystemPrompt) }
func (c *Config) TurnSeparator() string { return c.stringOr(KeyTurnSeparator, DefaultTurnSeparator) }

// LLMModel, TokenizerFile and EmbeddingFile are resolved against Dir.
func (c *Config) LLMModel() string { return c.resolve(c.stringOr(KeyLLMModel, DefaultLLMModel)) }
func (c *Config) TokenizerFile() string {
	return c.resolve(c.stringOr(KeyTokenizerFile, DefaultTokenizerFile))
}
func (c *Config) EmbeddingFile() string {
	return c.resolve(c.stringOr(KeyEmbeddingFile, DefaultEmbeddingFile))
}

func (c *Config) EmbeddingDType() string { return c.stringOr(KeyEmbeddingDType, DefaultEmbeddingDType) }
func (c *Config) Backend() string { return c.stringOr(KeyBackend, DefaultBackend) }

func (c *Config) RepetitionPenalty() float32 {
	return float32(c.floatOr(KeyRepetitionPenalty, DefaultRepetitionPenalty))
}

func (c *Config) VocabSize() int { return c.intOr(KeyVocabSize, DefaultVocabSize) }
func (c *Config) StopIDs() []int { return c.intsOr(KeyStopIDs, nil) }
func (c *Config) IsVisual() bool { return c.boolOr(KeyIsVisual, false) }

// Validate reports every problem found, each wrapped in ErrInvalid.
func (c *Config) Validate() error {
	var errs []error
	check := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	positive := func(key string, required bool) {
		v, ok, err := c.intField(key)
		switch {
		case err != nil:
			check(err)
		case !ok && required:
			check(fmt.Errorf("%s is required", key))
		case ok && v <= 0:
			check(fmt.Errorf("%s must be positive, got %d", key, v))
		}
	}
	positive(KeyHiddenSize, true)
	positive(KeyLayerNums, true)
	positive(KeyMaxNewTokens, false)
	positive(KeyVocabSize, false)

	shape, ok, err := c.intsField(KeyKeyValueShape)
	switch {
	case err != nil:
		check(err)
	case !ok || len(shape) == 0:
		check(fmt.Errorf("%s must be a non-empty list", KeyKeyValueShape))
	default:
		for _, d := range shape {
			if d < 0 {
				check(fmt.Errorf("%s has negative dimension %d", KeyKeyValueShape, d))
				break
			}
		}
	}
	if _, _, err := c.intsField(KeyStopIDs); err != nil {
		check(err)
	}

	for _, key := range []string{
		KeyAttentionMask, KeyPromptTemplate, KeyChatTemplate, KeySystemPrompt, KeyTurnSeparator,
		KeyLLMModel, KeyTokenizerFile, KeyEmbeddingFile, KeyEmbeddingDType, KeyBackend,
	} {
		if _, _, err := c.stringField(key); err != nil {
			check(err)
		}
	}
	for _, key := range []string{KeyReuseKV, KeyIsVisual} {
		if _, _, err := c.boolField(key); err != nil {
			check(err)
		}
	}
	if v, ok, err := c.floatField(KeyRepetitionPenalty); err != nil {
		check(err)
	} else if ok && v <= 0 {
		check(fmt.Errorf("%s must be positive, got %v", KeyRepetitionPenalty, v))
	}

	if _, err := seqstate.ParseMaskVariant(c.AttentionMask()); err != nil {
		check(err)
	}
	if _, err := seqstate.ParseElemType(c.EmbeddingDType()); err != nil {
		check(err)
	}
	if c.IsVisual() {
		check(errors.New("visual models are not supported"))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

func (c *Config) intField(key string) (int, bool, error) {
	v, ok := c.doc[key]
	if !ok || v == nil {
		return 0, false, nil
	}
	n, err := toInt(key, v)
	return n, true, err
}

func toInt(key string, v any) (int, error) {
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) {
		return 0, fmt.Errorf("%s must be an integer, got %v", key, v)
	}
	return int(f), nil
}

func (c *Config) intsField(key string) ([]int, bool, error) {
	v, ok := c.doc[key]
	if !ok || v == nil {
		return nil, false, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, true, fmt.Errorf("%s must be a list of integers, got %v", key, v)
	}
	out := make([]int, 0, len(list))
	for _, item := range list {
		n, err := toInt(key, item)
		if err != nil {
			return nil, true, err
		}
		out = append(out, n)
	}
	return out, true, nil
}

func (c *Config) floatField(key string) (float64, bool, error) {
	v, ok := c.doc[key]
	if !ok || v == nil {
		return 0, false, nil
	}
	f, isNum := v.(float64)
	if !isNum {
		return 0, true, fmt.Errorf("%s must be a number, got %v", key, v)
	}
	return f, true, nil
}

func (c *Config) stringField(key string) (string, bool, error) {
	v, ok := c.doc[key]
	if !ok || v == nil {
		return "", false, nil
	}
	s, isStr := v.(string)
	if !isStr {
		return "", true, fmt.Errorf("%s must be a string, got %v", key, v)
	}
	return s, true, nil
}

func (c *Config) boolField(key string) (bool, bool, error) {
	v, ok := c.doc[key]
	if !ok || v == nil {
		return false, false, nil
	}
	b, isBool := v.(bool)
	if !isBool {
		return false, true, fmt.Errorf("%s must be a boolean, got %v", key, v)
	}
	return b, true, nil
}

func (c *Config) intOr(key string, def int) int {
	if v, ok, err := c.intField(key); ok && err == nil {
		return v
	}
	return def
}

func (c *Config) intsOr(key string, def []int) []int {
	if v, ok, err := c.intsField(key); ok && err == nil {
		return v
	}
	return def
}

func (c *Config) floatOr(key string, def float64) float64 {
	if v, ok, err := c.floatField(key); ok && err == nil {
		return v
	}
	return def
}

func (c *Config) stringOr(key, def string) string {
	if v, ok, err := c.stringField(key); ok && err == nil {
		return v
	}
	return def
}

func (c *Config) boolOr(key string, def bool) bool {
	if v, ok, err := c.boolField(key); ok && err == nil {
		return v
	}
	return def
}
