// Package screen keeps a rolling buffer of recent screen captures for the
// engine's visual context requests. Capture itself is pluggable; the
// gateway only owns the buffer and the capture cadence.
package screen

import (
	"context"
	"encoding/base64"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultMaxFrames bounds the rolling buffer.
	DefaultMaxFrames = 10
	// DefaultInterval is the capture cadence.
	DefaultInterval = 500 * time.Millisecond
	// MediaType of buffered frames.
	MediaType = "image/jpeg"
)

// CaptureFunc grabs one encoded frame. Errors are skipped, never fatal;
// a display can be locked or absent at any moment.
type CaptureFunc func(ctx context.Context) ([]byte, error)

// Buffer is a fixed-capacity rolling frame store. Safe for concurrent use.
type Buffer struct {
	mu     sync.Mutex
	frames [][]byte
	max    int
}

// NewBuffer builds a buffer holding at most max frames. Zero or negative
// max selects DefaultMaxFrames.
func NewBuffer(max int) *Buffer {
	if max <= 0 {
		max = DefaultMaxFrames
	}
	return &Buffer{max: max}
}

// Add appends a frame, evicting the oldest when full.
func (b *Buffer) Add(frame []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames = append(b.frames, frame)
	if len(b.frames) > b.max {
		b.frames = b.frames[len(b.frames)-b.max:]
	}
}

// Len returns the buffered frame count.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.frames)
}

// Base64 returns the buffered frames oldest-first, base64-encoded for the
// wire. Never nil.
func (b *Buffer) Base64() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.frames))
	for _, f := range b.frames {
		out = append(out, base64.StdEncoding.EncodeToString(f))
	}
	return out
}

// Clear drops all buffered frames.
func (b *Buffer) Clear() {
	b.mu.Lock()
	b.frames = nil
	b.mu.Unlock()
}

// Run fills the buffer on a fixed cadence until the context ends. Capture
// errors are logged at debug and skipped.
func (b *Buffer) Run(ctx context.Context, logger *slog.Logger, capture CaptureFunc, interval time.Duration) {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			frame, err := capture(ctx)
			if err != nil {
				logger.Debug("screen capture skipped", slog.String("error", err.Error()))
				continue
			}
			b.Add(frame)
		}
	}
}
