// Package audio carries PCM frames between the capture/playback boundary
// and the session bridge, and gates outbound capture while synthesized
// speech is playing.
package audio

import (
	"context"
	"io"
	"sync"
	"time"
)

// Wire format for both directions: PCM16 little-endian, mono, 16 kHz.
const (
	SampleRate     = 16000
	Channels       = 1
	BytesPerSample = 2

	// DefaultFrameBytes is 200ms of audio, the engine's minimum buffer.
	DefaultFrameBytes = 6400
)

// Player is the native playback boundary. Play receives raw synthesized
// PCM; Halt stops playback immediately (barge-in).
type Player interface {
	Play(pcm []byte) error
	Halt()
}

// NopPlayer discards audio. Used when playback is disabled.
type NopPlayer struct{}

func (NopPlayer) Play([]byte) error { return nil }
func (NopPlayer) Halt()             {}

// StreamPlayer appends synthesized PCM to a writer (file, FIFO, pipe to an
// external player). Halt drops frames until the next Play call after the
// halt flag is cleared by Resume.
type StreamPlayer struct {
	mu     sync.Mutex
	w      io.Writer
	halted bool
}

// NewStreamPlayer wraps w as a Player.
func NewStreamPlayer(w io.Writer) *StreamPlayer {
	return &StreamPlayer{w: w}
}

func (p *StreamPlayer) Play(pcm []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.halted {
		return nil
	}
	_, err := p.w.Write(pcm)
	return err
}

func (p *StreamPlayer) Halt() {
	p.mu.Lock()
	p.halted = true
	p.mu.Unlock()
}

// Resume lifts a previous Halt.
func (p *StreamPlayer) Resume() {
	p.mu.Lock()
	p.halted = false
	p.mu.Unlock()
}

// StreamFrames reads fixed-size PCM chunks from r and delivers them until
// EOF or context cancellation. A non-zero interval paces delivery, which
// keeps file-backed capture sources from flooding the channel. The final
// short chunk before EOF is delivered as-is.
func StreamFrames(ctx context.Context, r io.Reader, size int, interval time.Duration) <-chan []byte {
	if size <= 0 {
		size = DefaultFrameBytes
	}
	out := make(chan []byte)
	go func() {
		defer close(out)
		var tick *time.Ticker
		if interval > 0 {
			tick = time.NewTicker(interval)
			defer tick.Stop()
		}
		for {
			buf := make([]byte, size)
			n, err := io.ReadFull(r, buf)
			if n > 0 {
				select {
				case out <- buf[:n]:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				return
			}
			if tick != nil {
				select {
				case <-tick.C:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
