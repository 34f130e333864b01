package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// lineReader reads user turns from a terminal or a pipe.
type lineReader struct {
	in      *os.File
	out     io.Writer
	buf     *bufio.Reader
	history []string
}

func newLineReader(in *os.File, out io.Writer) *lineReader {
	return &lineReader{in: in, out: out, buf: bufio.NewReader(in)}
}

func (r *lineReader) interactive() bool {
	return isatty.IsTerminal(r.in.Fd())
}

// readBuffered reads one newline-terminated line. A final unterminated line
// is returned; io.EOF is reported only when nothing was read.
func (r *lineReader) readBuffered(prompt string) (string, error) {
	if _, err := fmt.Fprint(r.out, prompt); err != nil {
		return "", err
	}
	s, err := r.buf.ReadString('\n')
	if err == io.EOF && s == "" {
		return "", io.EOF
	}
	if err != nil && err != io.EOF {
		return "", err
	}
	return trimTrailingNewline(s), nil
}

func (r *lineReader) remember(line string) {
	if strings.TrimSpace(line) != "" {
		r.history = append(r.history, line)
	}
}

func trimTrailingNewline(s string) string {
	if len(s) > 0 && s[len(s)-1] == '\n' {
		s = s[:len(s)-1]
	}
	if len(s) > 0 && s[len(s)-1] == '\r' {
		s = s[:len(s)-1]
	}
	return s
}
