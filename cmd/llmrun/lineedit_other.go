//go:build !linux

package main

func (r *lineReader) ReadLine(prompt string) (string, error) {
	line, err := r.readBuffered(prompt)
	if err == nil {
		r.remember(line)
	}
	return line, err
}
