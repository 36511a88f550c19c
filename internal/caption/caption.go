// Package caption turns a plain transcript into a numbered SubRip document.
package caption

import (
	"fmt"
	"strings"
	"time"
)

// ContentType is the content type caption documents are stored with.
const ContentType = "text/plain"

// Timing assigns a time window to the transcript line at index i.
type Timing interface {
	Window(i int) (start, end time.Duration)
}

// FixedSpacing places line i at i*Interval and shows it for Duration. It does
// not follow the audio; real alignment needs word offsets from the recognizer.
type FixedSpacing struct {
	Interval time.Duration
	Duration time.Duration
}

// DefaultTiming spaces lines three seconds apart, two seconds each.
var DefaultTiming = FixedSpacing{Interval: 3 * time.Second, Duration: 2 * time.Second}

func (f FixedSpacing) Window(i int) (time.Duration, time.Duration) {
	start := time.Duration(i) * f.Interval
	return start, start + f.Duration
}

// Block is one numbered caption.
type Block struct {
	Index int
	Start time.Duration
	End   time.Duration
	Text  string
}

// Build splits transcript on line boundaries and times each line. An empty
// transcript has no blocks.
func Build(transcript string, timing Timing) []Block {
	if transcript == "" {
		return nil
	}
	if timing == nil {
		timing = DefaultTiming
	}
	lines := strings.Split(strings.ReplaceAll(transcript, "\r\n", "\n"), "\n")
	blocks := make([]Block, len(lines))
	for i, line := range lines {
		start, end := timing.Window(i)
		blocks[i] = Block{Index: i + 1, Start: start, End: end, Text: line}
	}
	return blocks
}

// Render writes blocks in SubRip form, separated by a blank line.
func Render(blocks []Block) string {
	var sb strings.Builder
	for i, b := range blocks {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%d\n%s --> %s\n%s\n", b.Index, FormatTime(b.Start), FormatTime(b.End), b.Text)
	}
	return sb.String()
}

// Document is Build followed by Render.
func Document(transcript string, timing Timing) string {
	return Render(Build(transcript, timing))
}

// FormatTime formats d as HH:MM:SS,mmm. Negative durations clamp to zero.
func FormatTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int(d / time.Hour)
	minutes := int(d/time.Minute) % 60
	seconds := int(d/time.Second) % 60
	millis := int(d/time.Millisecond) % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, millis)
}

// ParseTime reads a HH:MM:SS,mmm timestamp back into a duration.
func ParseTime(s string) (time.Duration, error) {
	var h, m, sec, ms int
	n, err := fmt.Sscanf(s, "%d:%d:%d,%d", &h, &m, &sec, &ms)
	if err != nil || n != 4 {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}
	if h < 0 || m < 0 || m > 59 || sec < 0 || sec > 59 || ms < 0 || ms > 999 {
		return 0, fmt.Errorf("timestamp %q out of range", s)
	}
	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(sec)*time.Second +
		time.Duration(ms)*time.Millisecond, nil
}
