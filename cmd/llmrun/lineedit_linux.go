//go:build linux

package main

import (
	"fmt"
	"io"

	"golang.org/x/sys/unix"
)

// ReadLine reads one line, with cursor movement and history when stdin is a
// terminal. Ctrl+C, and Ctrl+D on an empty line, end input with io.EOF.
func (r *lineReader) ReadLine(prompt string) (string, error) {
	if !r.interactive() {
		line, err := r.readBuffered(prompt)
		if err == nil {
			r.remember(line)
		}
		return line, err
	}

	fd := int(r.in.Fd())
	oldState, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return "", err
	}
	raw := *oldState
	raw.Lflag &^= unix.ICANON | unix.ECHO
	raw.Cc[unix.VMIN] = 1
	raw.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, &raw); err != nil {
		return "", err
	}
	defer func() {
		_ = unix.IoctlSetTermios(fd, unix.TCSETS, oldState)
	}()

	e := &editor{out: r.out, prompt: prompt, history: r.history, histPos: len(r.history)}
	fmt.Fprint(r.out, prompt)
	var buf [16]byte
	for {
		n, err := r.in.Read(buf[:])
		if err != nil {
			return "", err
		}
		for _, b := range buf[:n] {
			line, done, err := e.feed(b)
			if err != nil {
				return "", err
			}
			if done {
				r.remember(line)
				return line, nil
			}
		}
	}
}

// editor holds the state of one line being edited in raw mode.
type editor struct {
	out     io.Writer
	prompt  string
	line    []byte
	cursor  int
	esc     int
	csi     []byte
	history []string
	histPos int
	draft   string
}

func (e *editor) redraw() {
	fmt.Fprintf(e.out, "\r%s%s\x1b[K", e.prompt, e.line)
	if e.cursor < len(e.line) {
		fmt.Fprintf(e.out, "\r%s%s", e.prompt, e.line[:e.cursor])
	}
}

func (e *editor) feed(b byte) (string, bool, error) {
	switch e.esc {
	case 1:
		e.esc = 0
		if b == '[' {
			e.esc = 2
			e.csi = e.csi[:0]
		}
		return "", false, nil
	case 2:
		e.csi = append(e.csi, b)
		if (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || b == '~' {
			e.esc = 0
			e.handleCSI(string(e.csi))
		}
		return "", false, nil
	}

	switch b {
	case 27:
		e.esc = 1
	case '\r', '\n':
		fmt.Fprint(e.out, "\r\n")
		return string(e.line), true, nil
	case 3: // Ctrl+C
		fmt.Fprint(e.out, "^C\r\n")
		return "", false, io.EOF
	case 4: // Ctrl+D
		if len(e.line) == 0 {
			fmt.Fprint(e.out, "\r\n")
			return "", false, io.EOF
		}
	case 127, 8:
		if e.cursor > 0 {
			e.line = append(e.line[:e.cursor-1], e.line[e.cursor:]...)
			e.cursor--
			e.redraw()
		}
	case 1: // Ctrl+A
		e.cursor = 0
		e.redraw()
	case 5: // Ctrl+E
		e.cursor = len(e.line)
		e.redraw()
	case 23: // Ctrl+W
		start := e.cursor
		for start > 0 && e.line[start-1] == ' ' {
			start--
		}
		for start > 0 && e.line[start-1] != ' ' {
			start--
		}
		e.line = append(e.line[:start], e.line[e.cursor:]...)
		e.cursor = start
		e.redraw()
	default:
		if b >= 32 {
			e.line = append(e.line, 0)
			copy(e.line[e.cursor+1:], e.line[e.cursor:])
			e.line[e.cursor] = b
			e.cursor++
			e.redraw()
		}
	}
	return "", false, nil
}

func (e *editor) handleCSI(seq string) {
	switch seq {
	case "A": // up
		if e.histPos == 0 {
			return
		}
		if e.histPos == len(e.history) {
			e.draft = string(e.line)
		}
		e.histPos--
		e.line = append(e.line[:0], e.history[e.histPos]...)
	case "B": // down
		if e.histPos >= len(e.history) {
			return
		}
		e.histPos++
		if e.histPos == len(e.history) {
			e.line = append(e.line[:0], e.draft...)
		} else {
			e.line = append(e.line[:0], e.history[e.histPos]...)
		}
	case "C":
		if e.cursor < len(e.line) {
			e.cursor++
		}
		e.redraw()
		return
	case "D":
		if e.cursor > 0 {
			e.cursor--
		}
		e.redraw()
		return
	case "H":
		e.cursor = 0
		e.redraw()
		return
	case "F":
		e.cursor = len(e.line)
		e.redraw()
		return
	case "3~":
		if e.cursor < len(e.line) {
			e.line = append(e.line[:e.cursor], e.line[e.cursor+1:]...)
		}
		e.redraw()
		return
	default:
		return
	}
	e.cursor = len(e.line)
	e.redraw()
}
