package cmd

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Radix-Obsidian/Voco-ai-sub000/internal/rpc"
	"github.com/Radix-Obsidian/Voco-ai-sub000/internal/toolexec"
)

func TestScreenBufferNilWithoutCaptureCommand(t *testing.T) {
	testEnv(t)
	logger = slog.Default()

	assert.Nil(t, screenBuffer(context.Background()))
}

func TestFramesUnavailableWithoutCaptureSource(t *testing.T) {
	testEnv(t)
	logger = slog.Default()

	// Mirror the connect wiring: no capture command means no provider.
	tools := toolexec.New(logger)
	if frames := screenBuffer(context.Background()); frames != nil {
		tools.SetFrameProvider(frames)
	}

	_, err := tools.RecentFrames(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, rpc.ErrCapabilityUnavailable)
}

func TestCommandCapture(t *testing.T) {
	capture := commandCapture("printf frame")
	out, err := capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("frame"), out)

	silent := commandCapture("true")
	_, err = silent(context.Background())
	assert.Error(t, err, "empty capture output is an error")
}

func TestScreenBufferFillsFromCaptureCommand(t *testing.T) {
	testEnv(t)
	logger = slog.Default()
	viper.Set("screen.capture_cmd", "printf frame")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	buf := screenBuffer(ctx)
	require.NotNil(t, buf)
	assert.Eventually(t, func() bool { return buf.Len() > 0 },
		3*time.Second, 50*time.Millisecond)
}
