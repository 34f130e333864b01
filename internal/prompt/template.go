// Package prompt renders user text and chat history into the literal prompt
// consumed by the tokenizer.
package prompt

import "strings"

const (
	ContentPlaceholder = "%s"
	RolePlaceholder    = "%r"

	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DefaultSeparator closes the previous turn when key/value reuse continues a
// conversation.
const DefaultSeparator = "<|im_end|>\n"

// Item is one (role, content) turn of a conversation.
type Item struct {
	Role    string
	Content string
}

// Apply substitutes role (when non-empty) and then content into tpl. An empty
// template, or one lacking a required placeholder, yields content unchanged.
// Only the first occurrence of each placeholder is replaced.
func Apply(tpl, content, role string) string {
	if tpl == "" {
		return content
	}
	if role != "" {
		if !strings.Contains(tpl, RolePlaceholder) {
			return content
		}
		tpl = strings.Replace(tpl, RolePlaceholder, role, 1)
	}
	if !strings.Contains(tpl, ContentPlaceholder) {
		return content
	}
	return strings.Replace(tpl, ContentPlaceholder, content, 1)
}

// Templates holds the plain prompt template and the role-aware chat template.
type Templates struct {
	Prompt string
	Chat   string
}

// RenderSingle wraps a single user message with the prompt template.
func (t Templates) RenderSingle(text string) string {
	return Apply(t.Prompt, text, "")
}

// RenderHistory renders every item but the last with the chat template. The
// last item uses the prompt template when it is a user turn.
func (t Templates) RenderHistory(items []Item) string {
	if len(items) == 0 {
		return ""
	}
	var b strings.Builder
	last := len(items) - 1
	for _, it := range items[:last] {
		b.WriteString(Apply(t.Chat, it.Content, it.Role))
	}
	if it := items[last]; it.Role == RoleUser {
		b.WriteString(t.RenderSingle(it.Content))
	} else {
		b.WriteString(Apply(t.Chat, it.Content, it.Role))
	}
	return b.String()
}

// WithSeparator prepends sep when a reused key/value state already holds
// tokens from an earlier turn.
func WithSeparator(text, sep string, reuseKV bool, runningLen int) string {
	if reuseKV && runningLen > 0 {
		return sep + text
	}
	return text
}
