package screen

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferEvictsOldest(t *testing.T) {
	b := NewBuffer(3)
	for i := 0; i < 5; i++ {
		b.Add([]byte{byte(i)})
	}

	require.Equal(t, 3, b.Len())
	frames := b.Base64()
	require.Len(t, frames, 3)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte{2}), frames[0], "oldest surviving frame first")
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte{4}), frames[2])
}

func TestBufferBase64NeverNil(t *testing.T) {
	b := NewBuffer(0)
	assert.NotNil(t, b.Base64())
	assert.Empty(t, b.Base64())
}

func TestBufferClear(t *testing.T) {
	b := NewBuffer(2)
	b.Add([]byte("frame"))
	b.Clear()
	assert.Zero(t, b.Len())
}

func TestRunSkipsCaptureErrors(t *testing.T) {
	b := NewBuffer(5)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int
	done := make(chan struct{})
	go func() {
		defer close(done)
		b.Run(ctx, nil, func(context.Context) ([]byte, error) {
			calls++
			if calls%2 == 0 {
				return nil, errors.New("display locked")
			}
			return []byte(fmt.Sprintf("frame-%d", calls)), nil
		}, 5*time.Millisecond)
	}()

	require.Eventually(t, func() bool { return b.Len() >= 2 },
		time.Second, 5*time.Millisecond, "good frames keep arriving despite capture errors")

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("capture loop did not stop on context cancel")
	}
}
