package audio

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateSuppressesOnTTSStart(t *testing.T) {
	g := NewGate(DefaultGrace)
	defer g.Stop()

	assert.True(t, g.Allow(), "gate should pass audio before any tts")

	g.OnTTSStart()
	assert.False(t, g.Allow(), "gate must drop audio immediately after tts_start")
	assert.True(t, g.Suppressed())
}

func TestGateLiftsAfterGrace(t *testing.T) {
	grace := 30 * time.Millisecond
	g := NewGate(grace)
	defer g.Stop()

	g.OnTTSStart()
	g.OnTTSEnd()

	// Still suppressed inside the grace window.
	assert.False(t, g.Allow(), "suppression must hold through the grace delay")

	require.Eventually(t, g.Allow, 500*time.Millisecond, 5*time.Millisecond,
		"suppression should lift after the grace delay")
}

func TestGateRestartCancelsPendingLift(t *testing.T) {
	grace := 30 * time.Millisecond
	g := NewGate(grace)
	defer g.Stop()

	g.OnTTSStart()
	g.OnTTSEnd()
	g.OnTTSStart() // new utterance before the lift fires

	time.Sleep(3 * grace)
	assert.False(t, g.Allow(), "a newer tts_start must invalidate the scheduled lift")
}

func TestGateBargeInFlag(t *testing.T) {
	g := NewGate(DefaultGrace)
	defer g.Stop()

	assert.False(t, g.BargeInActive())
	g.OnBargeIn()
	assert.True(t, g.BargeInActive())

	g.OnTurnEnded()
	assert.False(t, g.BargeInActive(), "turn boundary clears the barge-in flag")
}

func TestGateZeroGraceUsesDefault(t *testing.T) {
	g := NewGate(0)
	defer g.Stop()
	assert.Equal(t, DefaultGrace, g.grace)
}

func TestStreamPlayerHalt(t *testing.T) {
	var buf bytes.Buffer
	p := NewStreamPlayer(&buf)

	require.NoError(t, p.Play([]byte{1, 2, 3, 4}))
	assert.Equal(t, 4, buf.Len())

	p.Halt()
	require.NoError(t, p.Play([]byte{5, 6}))
	assert.Equal(t, 4, buf.Len(), "halted player must drop frames")

	p.Resume()
	require.NoError(t, p.Play([]byte{7, 8}))
	assert.Equal(t, 6, buf.Len())
}

func TestStreamFramesChunking(t *testing.T) {
	ctx := context.Background()
	src := strings.NewReader(strings.Repeat("a", 10))

	var chunks [][]byte
	for c := range StreamFrames(ctx, src, 4, 0) {
		chunks = append(chunks, c)
	}

	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 4)
	assert.Len(t, chunks[1], 4)
	assert.Len(t, chunks[2], 2, "trailing short chunk is delivered as-is")
}

func TestStreamFramesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A canceled context must not leave the goroutine stuck on send.
	ch := StreamFrames(ctx, strings.NewReader(strings.Repeat("x", 1<<16)), 16, 0)
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("stream did not terminate after cancellation")
		}
	}
}
