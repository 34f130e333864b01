package session

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/samcharles93/llmrun/internal/prompt"
)

const (
	CommandExit  = "/exit"
	CommandReset = "/reset"

	// QuestionPrompt is shown before every user line.
	QuestionPrompt = "\nQ: "
)

// LineReader supplies user input. io.EOF ends the conversation.
type LineReader interface {
	ReadLine(prompt string) (string, error)
}

// Chat runs the interactive loop until /exit or end of input. History
// persists across turns; the key/value state is reset after each reply so
// the whole history is rendered again on the next turn.
func (s *Session) Chat(ctx context.Context, lines LineReader, w io.Writer) error {
	if !s.loaded() {
		return ErrNotLoaded
	}
	history := []prompt.Item{{Role: prompt.RoleSystem, Content: s.cfg.SystemPrompt()}}
	for {
		line, err := lines.ReadLine(QuestionPrompt)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("session: read input: %w", err)
		}
		switch line {
		case CommandExit:
			return nil
		case CommandReset:
			history = history[:1]
			s.Reset()
			if _, err := io.WriteString(w, "\nA: reset done.\n"); err != nil {
				return err
			}
			continue
		}

		if _, err := io.WriteString(w, "\nA: "); err != nil {
			return err
		}
		history = append(history, prompt.Item{Role: prompt.RoleUser, Content: line})
		reply, err := s.ResponseHistory(ctx, history, w, "")
		if err != nil {
			return err
		}
		history = append(history, prompt.Item{Role: prompt.RoleAssistant, Content: reply})
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
		s.Reset()
	}
}
