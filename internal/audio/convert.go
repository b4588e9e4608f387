// Package audio converts uploaded recordings into the raw 16kHz mono PCM
// the recognizer expects.
package audio

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const (
	sampleRate     = 16000
	convertTimeout = 30 * time.Second
	wavHeaderSize  = 44
)

// ToPCM converts an uploaded audio payload to raw 16kHz mono 16-bit PCM.
// WebM/Opus uploads (the browser MediaRecorder default) go through ffmpeg,
// WAV uploads get their header stripped, anything else is assumed to be raw
// PCM already.
func ToPCM(ctx context.Context, data []byte, filename, contentType string) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty audio payload")
	}

	name := strings.ToLower(filename)
	ct := strings.ToLower(contentType)

	switch {
	case strings.HasSuffix(name, ".webm") || strings.Contains(ct, "webm"):
		return Convert(ctx, data)
	case strings.HasSuffix(name, ".wav") || strings.Contains(ct, "wav"):
		return StripWAVHeader(data)
	default:
		return data, nil
	}
}

// Convert decodes a WebM/Opus payload to raw PCM via ffmpeg. ffmpeg must be
// on PATH; a missing binary or decode failure is returned to the caller
// rather than silently producing garbage audio.
func Convert(ctx context.Context, data []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, convertTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-f", "webm",
		"-i", "pipe:0",
		"-ar", fmt.Sprintf("%d", sampleRate),
		"-ac", "1",
		"-f", "s16le",
		"pipe:1",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(data)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if len(detail) > 300 {
			detail = detail[len(detail)-300:]
		}
		return nil, fmt.Errorf("ffmpeg conversion failed: %w (%s)", err, detail)
	}

	pcm := stdout.Bytes()
	if len(pcm) == 0 {
		return nil, fmt.Errorf("ffmpeg produced no audio output")
	}
	return pcm, nil
}

// StripWAVHeader removes the 44-byte RIFF header from a canonical WAV file.
func StripWAVHeader(data []byte) ([]byte, error) {
	if len(data) <= wavHeaderSize {
		return nil, fmt.Errorf("WAV payload too short: %d bytes", len(data))
	}
	if !bytes.HasPrefix(data, []byte("RIFF")) {
		return nil, fmt.Errorf("not a RIFF WAV file")
	}
	return data[wavHeaderSize:], nil
}
