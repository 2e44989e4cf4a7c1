package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Radix-Obsidian/Voco-ai-sub000/internal/protocol"
)

// responseCollector gathers dispatcher output across goroutines.
type responseCollector struct {
	mu        sync.Mutex
	responses []protocol.Response
	sendErr   error
}

func (c *responseCollector) send(resp protocol.Response) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.responses = append(c.responses, resp)
	return nil
}

func (c *responseCollector) all() []protocol.Response {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]protocol.Response, len(c.responses))
	copy(out, c.responses)
	return out
}

func mustRequest(t *testing.T, id, method string, params any) protocol.Request {
	t.Helper()
	req, err := protocol.NewRequest(id, method, params)
	require.NoError(t, err)
	return req
}

func TestDispatchSuccess(t *testing.T) {
	d := NewDispatcher(nil, 0)
	var col responseCollector

	d.Register("local/read_file", func(_ context.Context, params json.RawMessage) (any, error) {
		var p struct {
			FilePath string `json:"file_path"`
		}
		require.NoError(t, json.Unmarshal(params, &p))
		return "contents of " + p.FilePath, nil
	})

	d.Dispatch(context.Background(), mustRequest(t, "r1", "local/read_file",
		map[string]string{"file_path": "src/app.ts"}), col.send)
	d.Wait()

	responses := col.all()
	require.Len(t, responses, 1, "exactly one response per recognized request")
	resp := responses[0]
	assert.Equal(t, "r1", protocol.CorrelationKey(resp.ID), "response id must match request id")
	assert.Nil(t, resp.Error)

	var result string
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.Equal(t, "contents of src/app.ts", result)
}

func TestDispatchMethodNotFound(t *testing.T) {
	d := NewDispatcher(nil, 0)
	var col responseCollector

	d.Dispatch(context.Background(), mustRequest(t, "r2", "local/nonexistent", nil), col.send)
	d.Wait()

	responses := col.all()
	require.Len(t, responses, 1, "unknown methods must still get a response")
	require.NotNil(t, responses[0].Error)
	assert.Equal(t, protocol.CodeMethodNotFound, responses[0].Error.Code)
	assert.Contains(t, responses[0].Error.Message, "local/nonexistent")
	assert.Equal(t, "r2", protocol.CorrelationKey(responses[0].ID))
}

func TestDispatchExecutionError(t *testing.T) {
	d := NewDispatcher(nil, 0)
	var col responseCollector

	d.Register("local/execute_command", func(context.Context, json.RawMessage) (any, error) {
		return nil, errors.New("exit status 2: make: *** No rule")
	})

	d.Dispatch(context.Background(), mustRequest(t, "r3", "local/execute_command", nil), col.send)
	d.Wait()

	responses := col.all()
	require.Len(t, responses, 1)
	require.NotNil(t, responses[0].Error)
	assert.Equal(t, protocol.CodeExecutionFailed, responses[0].Error.Code)
	assert.Contains(t, responses[0].Error.Message, "exit status 2")
}

func TestDispatchCapabilityUnavailable(t *testing.T) {
	d := NewDispatcher(nil, 0)
	var col responseCollector

	d.Register("local/get_recent_frames", func(context.Context, json.RawMessage) (any, error) {
		return nil, fmt.Errorf("screen capture not configured: %w", ErrCapabilityUnavailable)
	})

	d.Dispatch(context.Background(), mustRequest(t, "r4", "local/get_recent_frames", nil), col.send)
	d.Wait()

	responses := col.all()
	require.Len(t, responses, 1)
	require.NotNil(t, responses[0].Error)
	assert.Equal(t, protocol.CodeCapabilityUnavailable, responses[0].Error.Code)
}

func TestDispatchInvalidParams(t *testing.T) {
	d := NewDispatcher(nil, 0)
	var col responseCollector

	d.Register("local/glob_find", func(context.Context, json.RawMessage) (any, error) {
		return nil, InvalidParams("pattern is required")
	})

	d.Dispatch(context.Background(), mustRequest(t, "r5", "local/glob_find", nil), col.send)
	d.Wait()

	responses := col.all()
	require.Len(t, responses, 1)
	require.NotNil(t, responses[0].Error)
	assert.Equal(t, protocol.CodeInvalidParams, responses[0].Error.Code)
	assert.Equal(t, "pattern is required", responses[0].Error.Message)
}

func TestDispatchTimeout(t *testing.T) {
	d := NewDispatcher(nil, 30*time.Millisecond)
	var col responseCollector

	d.Register("local/slow", func(ctx context.Context, _ json.RawMessage) (any, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return "too late", nil
		}
	})

	d.Dispatch(context.Background(), mustRequest(t, "r6", "local/slow", nil), col.send)
	d.Wait()

	responses := col.all()
	require.Len(t, responses, 1)
	require.NotNil(t, responses[0].Error)
	assert.Equal(t, protocol.CodeExecutionFailed, responses[0].Error.Code)
	assert.Contains(t, responses[0].Error.Message, "timed out")
}

func TestDispatchPanicRecovery(t *testing.T) {
	d := NewDispatcher(nil, 0)
	var col responseCollector

	d.Register("local/broken", func(context.Context, json.RawMessage) (any, error) {
		panic("handler bug")
	})

	d.Dispatch(context.Background(), mustRequest(t, "r7", "local/broken", nil), col.send)
	d.Wait()

	responses := col.all()
	require.Len(t, responses, 1, "a panicking handler still owes its one response")
	require.NotNil(t, responses[0].Error)
	assert.Equal(t, protocol.CodeInternalError, responses[0].Error.Code)
}

func TestDispatchNotificationDropped(t *testing.T) {
	d := NewDispatcher(nil, 0)
	var col responseCollector

	d.Register("local/read_file", func(context.Context, json.RawMessage) (any, error) {
		return "x", nil
	})

	d.Dispatch(context.Background(), protocol.Request{
		JSONRPC: protocol.Version,
		Method:  "local/read_file",
	}, col.send)
	d.Wait()

	assert.Empty(t, col.all(), "requests without an id get no response")
}

func TestDispatchConcurrentOutOfOrder(t *testing.T) {
	d := NewDispatcher(nil, 0)
	var col responseCollector

	release := make(chan struct{})
	d.Register("local/slow", func(context.Context, json.RawMessage) (any, error) {
		<-release
		return "slow done", nil
	})
	d.Register("local/fast", func(context.Context, json.RawMessage) (any, error) {
		return "fast done", nil
	})

	d.Dispatch(context.Background(), mustRequest(t, "slow-1", "local/slow", nil), col.send)
	d.Dispatch(context.Background(), mustRequest(t, "fast-1", "local/fast", nil), col.send)

	// The fast response must not wait for the slow handler.
	require.Eventually(t, func() bool { return len(col.all()) == 1 },
		time.Second, 5*time.Millisecond, "loop must not block on a slow handler")
	assert.Equal(t, "fast-1", protocol.CorrelationKey(col.all()[0].ID))

	close(release)
	d.Wait()

	responses := col.all()
	require.Len(t, responses, 2)
	assert.Equal(t, "slow-1", protocol.CorrelationKey(responses[1].ID))
}

func TestMethodsSorted(t *testing.T) {
	d := NewDispatcher(nil, 0)
	d.Register("local/write_file", nil)
	d.Register("local/read_file", nil)
	d.Register("local/execute_command", nil)

	assert.Equal(t, []string{"local/execute_command", "local/read_file", "local/write_file"}, d.Methods())
}

func TestDispatchEachRequestGetsOwnResponse(t *testing.T) {
	d := NewDispatcher(nil, 0)
	var col responseCollector

	d.Register("local/echo", func(_ context.Context, params json.RawMessage) (any, error) {
		return string(params), nil
	})

	const n = 20
	for i := 0; i < n; i++ {
		d.Dispatch(context.Background(), mustRequest(t, fmt.Sprintf("r%d", i), "local/echo", i), col.send)
	}
	d.Wait()

	responses := col.all()
	require.Len(t, responses, n)
	seen := map[string]bool{}
	for _, r := range responses {
		key := protocol.CorrelationKey(r.ID)
		assert.False(t, seen[key], "duplicate response for %s", key)
		seen[key] = true
	}
}
