package speech

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const SidecarName = "sidecar"

// Sidecar reads a transcript produced ahead of time by an external speech
// recogniser. The transcript of clip.wav is clip.wav.txt; a .txt path is
// read directly. The model argument is not consulted.
type Sidecar struct{}

func (Sidecar) Name() string { return SidecarName }

func (Sidecar) Transcribe(ctx context.Context, _ string, audioPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	transcript := audioPath
	if !strings.EqualFold(filepath.Ext(audioPath), ".txt") {
		if strings.EqualFold(filepath.Ext(audioPath), ".wav") {
			if err := checkWAV(audioPath); err != nil {
				return "", err
			}
		}
		transcript = audioPath + ".txt"
	}
	data, err := os.ReadFile(transcript)
	if err != nil {
		return "", fmt.Errorf("speech: read transcript: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("speech: empty transcript %s", transcript)
	}
	return text, nil
}

func checkWAV(path string) (err error) {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("speech: open audio: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("speech: close audio: %w", cerr)
		}
	}()
	var hdr [12]byte
	if _, err := io.ReadFull(f, hdr[:]); err != nil {
		return fmt.Errorf("speech: %s: short RIFF header: %w", path, err)
	}
	if !bytes.Equal(hdr[0:4], []byte("RIFF")) || !bytes.Equal(hdr[8:12], []byte("WAVE")) {
		return fmt.Errorf("speech: %s is not a RIFF/WAVE file", path)
	}
	return nil
}
