package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const validJSON = `{
	"hidden_size": 896,
	"layer_nums": 24,
	"key_value_shape": [2, 1, 2, 0, 64],
	"prompt_template": "<|im_start|>user\n%s<|im_end|>\n<|im_start|>assistant\n",
	"llm_model": "qwen.kmodel",
	"stop_ids": [151645]
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadDirectoryJSON(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "config.json", validJSON)

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if c.HiddenSize() != 896 || c.LayerNums() != 24 {
		t.Fatalf("sizes: hidden=%d layers=%d", c.HiddenSize(), c.LayerNums())
	}
	if diff := cmp.Diff([]int{2, 1, 2, 0, 64}, c.KeyValueShape()); diff != "" {
		t.Fatalf("kv shape (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{151645}, c.StopIDs()); diff != "" {
		t.Fatalf("stop ids (-want +got):\n%s", diff)
	}
	if got, want := c.LLMModel(), filepath.Join(dir, "qwen.kmodel"); got != want {
		t.Fatalf("llm_model: got %q want %q", got, want)
	}
	if c.Path() != filepath.Join(dir, "config.json") {
		t.Fatalf("unexpected path %q", c.Path())
	}
}

func TestDefaults(t *testing.T) {
	t.Parallel()
	c, err := New(map[string]any{}, "/models/q")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if c.AttentionMask() != "int" || c.ReuseKV() || c.MaxNewTokens() != 512 {
		t.Fatalf("unexpected defaults: mask=%q reuse=%v max=%d", c.AttentionMask(), c.ReuseKV(), c.MaxNewTokens())
	}
	if c.PromptTemplate() != "" || c.ChatTemplate() != "" {
		t.Fatalf("templates should default to empty")
	}
	if c.SystemPrompt() != DefaultSystemPrompt || c.TurnSeparator() != "<|im_end|>\n" {
		t.Fatalf("unexpected chat defaults")
	}
	if c.TokenizerFile() != "/models/q/tokenizer.json" || c.EmbeddingFile() != "/models/q/embeddings_bf16.bin" {
		t.Fatalf("unexpected file defaults: %q %q", c.TokenizerFile(), c.EmbeddingFile())
	}
	if c.RepetitionPenalty() != float32(1.1) || c.VocabSize() != 151936 || c.Backend() != "reference" {
		t.Fatalf("unexpected numeric defaults")
	}
}

func TestAbsolutePathsAreKept(t *testing.T) {
	t.Parallel()
	c, err := New(map[string]any{"tokenizer_file": "/abs/tok.json"}, "/models/q")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if c.TokenizerFile() != "/abs/tok.json" {
		t.Fatalf("got %q", c.TokenizerFile())
	}
}

func TestLoadYAMLAndTOML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	yamlPath := writeFile(t, dir, "model.yaml", "hidden_size: 8\nlayer_nums: 2\nkey_value_shape: [2, 4]\nreuse_kv: true\nattention_mask: glm2\n")
	tomlPath := writeFile(t, dir, "model.toml", "hidden_size = 8\nlayer_nums = 2\nkey_value_shape = [2, 4]\nreuse_kv = true\nattention_mask = \"glm2\"\n")

	for _, path := range []string{yamlPath, tomlPath} {
		c, err := Load(path)
		if err != nil {
			t.Fatalf("%s: load: %v", path, err)
		}
		if err := c.Validate(); err != nil {
			t.Fatalf("%s: validate: %v", path, err)
		}
		if c.HiddenSize() != 8 || !c.ReuseKV() || c.AttentionMask() != "glm2" {
			t.Fatalf("%s: unexpected values", path)
		}
		if diff := cmp.Diff([]int{2, 4}, c.KeyValueShape()); diff != "" {
			t.Fatalf("%s: kv shape (-want +got):\n%s", path, diff)
		}
	}
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	if _, err := Load(dir); err == nil {
		t.Fatalf("expected error for directory without configuration")
	}
	bad := writeFile(t, dir, "config.ini", "x=1")
	if _, err := Load(bad); err == nil {
		t.Fatalf("expected unsupported extension error")
	}
	broken := writeFile(t, dir, "broken.json", "{")
	if _, err := Load(broken); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	base := func() map[string]any {
		return map[string]any{"hidden_size": 8, "layer_nums": 2, "key_value_shape": []int{2, 4}}
	}
	cases := []struct {
		name   string
		mutate func(map[string]any)
		want   string
	}{
		{"missing-hidden", func(m map[string]any) { delete(m, "hidden_size") }, "hidden_size is required"},
		{"zero-layers", func(m map[string]any) { m["layer_nums"] = 0 }, "layer_nums must be positive"},
		{"empty-shape", func(m map[string]any) { m["key_value_shape"] = []int{} }, "key_value_shape must be a non-empty list"},
		{"negative-dim", func(m map[string]any) { m["key_value_shape"] = []int{2, -1} }, "negative dimension"},
		{"unknown-mask", func(m map[string]any) { m["attention_mask"] = "sparse" }, "sparse"},
		{"unknown-dtype", func(m map[string]any) { m["embedding_dtype"] = "int8" }, "int8"},
		{"visual", func(m map[string]any) { m["is_visual"] = true }, "visual models are not supported"},
		{"wrong-type", func(m map[string]any) { m["reuse_kv"] = "yes" }, "reuse_kv must be a boolean"},
		{"fractional", func(m map[string]any) { m["hidden_size"] = 1.5 }, "hidden_size must be an integer"},
		{"penalty", func(m map[string]any) { m["repetition_penalty"] = 0 }, "repetition_penalty must be positive"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			doc := base()
			tc.mutate(doc)
			c, err := New(doc, "")
			if err != nil {
				t.Fatalf("new: %v", err)
			}
			err = c.Validate()
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestMergePatch(t *testing.T) {
	t.Parallel()
	c, err := New(map[string]any{
		"max_new_tokens": 512,
		"reuse_kv":       false,
		"nested":         map[string]any{"a": 1, "b": 2},
		"drop":           "me",
	}, "")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := c.MergePatch([]byte(`{"max_new_tokens":64,"reuse_kv":true,"drop":null,"nested":{"b":null,"c":3}}`)); err != nil {
		t.Fatalf("patch: %v", err)
	}
	if c.MaxNewTokens() != 64 || !c.ReuseKV() {
		t.Fatalf("patch not applied")
	}
	if _, ok := c.Get("drop"); ok {
		t.Fatalf("null member should delete the key")
	}
	nested, _ := c.Get("nested")
	if diff := cmp.Diff(map[string]any{"a": 1.0, "c": 3.0}, nested); diff != "" {
		t.Fatalf("nested (-want +got):\n%s", diff)
	}
	if err := c.MergePatch([]byte(`[1,2]`)); err == nil {
		t.Fatalf("expected error for non-object patch")
	}
	if err := c.MergePatch([]byte(`{`)); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestDumpRoundTrip(t *testing.T) {
	t.Parallel()
	c, err := Parse([]byte(validJSON), FormatJSON, "")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	out, err := c.Dump()
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	if !strings.Contains(out, "\n    \"hidden_size\": 896") {
		t.Fatalf("dump is not indented JSON:\n%s", out)
	}
	again, err := Parse([]byte(out), FormatJSON, "")
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if diff := cmp.Diff(c.doc, again.doc); diff != "" {
		t.Fatalf("round trip (-want +got):\n%s", diff)
	}
}

func TestSet(t *testing.T) {
	t.Parallel()
	c, err := New(nil, "")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := c.Set(KeyMaxNewTokens, 32); err != nil {
		t.Fatalf("set: %v", err)
	}
	if c.MaxNewTokens() != 32 {
		t.Fatalf("got %d", c.MaxNewTokens())
	}
}
