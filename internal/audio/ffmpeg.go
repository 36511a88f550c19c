// Package audio converts uploads into the format the recognizer is configured
// for, using an external ffmpeg binary.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

var ErrNotAvailable = errors.New("ffmpeg is not available")

// FFmpeg re-encodes audio to FLAC at a fixed sample rate and channel count.
type FFmpeg struct {
	Binary     string
	SampleRate int
	Channels   int
}

// NewFFmpeg looks ffmpeg up on PATH.
func NewFFmpeg(sampleRate, channels int) (*FFmpeg, error) {
	f := &FFmpeg{Binary: "ffmpeg", SampleRate: sampleRate, Channels: channels}
	if !f.Available() {
		return nil, ErrNotAvailable
	}
	return f, nil
}

func (f *FFmpeg) Available() bool {
	_, err := exec.LookPath(f.Binary)
	return err == nil
}

func (f *FFmpeg) args(in, out string) []string {
	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-i", in,
		"-vn",
		"-c:a", "flac",
	}
	if f.SampleRate > 0 {
		args = append(args, "-ar", strconv.Itoa(f.SampleRate))
	}
	if f.Channels > 0 {
		args = append(args, "-ac", strconv.Itoa(f.Channels))
	}
	return append(args, "-f", "flac", out)
}

// Normalize writes a FLAC rendition of in to out.
func (f *FFmpeg) Normalize(ctx context.Context, in, out string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.Binary, f.args(in, out)...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
