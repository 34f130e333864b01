package prompt

import "testing"

const (
	qwenPrompt = "<|im_start|>user\n%s<|im_end|>\n<|im_start|>assistant\n"
	qwenChat   = "<|im_start|>%r\n%s<|im_end|>\n"
)

func TestApply(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name, tpl, content, role, want string
	}{
		{"empty-template", "", "hi", "user", "hi"},
		{"no-content-placeholder", "plain", "hi", "", "hi"},
		{"content-only", "[%s]", "hi", "", "[hi]"},
		{"role-and-content", "%r: %s", "hi", "user", "user: hi"},
		{"role-missing-placeholder", "[%s]", "hi", "user", "hi"},
		{"role-ignored-when-empty", "%r: %s", "hi", "", "%r: hi"},
		{"first-occurrence-only", "%s|%s", "a", "", "a|%s"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Apply(tc.tpl, tc.content, tc.role); got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}

func TestRenderSingleWithoutPlaceholderReturnsContent(t *testing.T) {
	t.Parallel()
	tpl := Templates{Prompt: "no placeholder here"}
	if got := tpl.RenderSingle("hello"); got != "hello" {
		t.Fatalf("got %q", got)
	}
}

func TestRenderHistoryUserLast(t *testing.T) {
	t.Parallel()
	tpl := Templates{Prompt: qwenPrompt, Chat: qwenChat}
	got := tpl.RenderHistory([]Item{
		{Role: RoleSystem, Content: "Be brief."},
		{Role: RoleUser, Content: "Hi"},
	})
	want := "<|im_start|>system\nBe brief.<|im_end|>\n" +
		"<|im_start|>user\nHi<|im_end|>\n<|im_start|>assistant\n"
	if got != want {
		t.Fatalf("got %q\nwant %q", got, want)
	}
}

func TestRenderHistoryAssistantLast(t *testing.T) {
	t.Parallel()
	tpl := Templates{Prompt: qwenPrompt, Chat: qwenChat}
	got := tpl.RenderHistory([]Item{
		{Role: RoleUser, Content: "Hi"},
		{Role: RoleAssistant, Content: "Hello"},
	})
	want := "<|im_start|>user\nHi<|im_end|>\n<|im_start|>assistant\nHello<|im_end|>\n"
	if got != want {
		t.Fatalf("got %q\nwant %q", got, want)
	}
}

func TestRenderHistoryEmpty(t *testing.T) {
	t.Parallel()
	if got := (Templates{Prompt: qwenPrompt}).RenderHistory(nil); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}

func TestWithSeparator(t *testing.T) {
	t.Parallel()
	if got := WithSeparator("x", DefaultSeparator, true, 3); got != "<|im_end|>\nx" {
		t.Fatalf("got %q", got)
	}
	if got := WithSeparator("x", DefaultSeparator, true, 0); got != "x" {
		t.Fatalf("fresh conversation must not get a separator, got %q", got)
	}
	if got := WithSeparator("x", DefaultSeparator, false, 9); got != "x" {
		t.Fatalf("separator requires reuse, got %q", got)
	}
}
