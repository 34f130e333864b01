package main

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTrimTrailingNewline(t *testing.T) {
	t.Parallel()
	tests := []struct{ in, want string }{
		{"hi\n", "hi"},
		{"hi\r\n", "hi"},
		{"hi", "hi"},
		{"\n", ""},
		{"a\nb\n", "a\nb"},
	}
	for _, tt := range tests {
		if got := trimTrailingNewline(tt.in); got != tt.want {
			t.Fatalf("trimTrailingNewline(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestReadBufferedLines(t *testing.T) {
	t.Parallel()
	var out strings.Builder
	r := &lineReader{out: &out, buf: bufio.NewReader(strings.NewReader("hello\r\n\n/exit"))}

	var got []string
	for {
		line, err := r.readBuffered("> ")
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("readBuffered: %v", err)
		}
		got = append(got, line)
		r.remember(line)
	}
	if diff := cmp.Diff([]string{"hello", "", "/exit"}, got); diff != "" {
		t.Fatalf("lines mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"hello", "/exit"}, r.history); diff != "" {
		t.Fatalf("history mismatch (-want +got):\n%s", diff)
	}
	if out.String() != "> > > > " {
		t.Fatalf("prompts = %q", out.String())
	}
}
