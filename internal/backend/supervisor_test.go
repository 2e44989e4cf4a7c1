package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartSkipsAlreadyHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSupervisor(nil, t.TempDir(), []Process{
		{Name: "engine", Command: "does-not-exist-anywhere", HealthURL: srv.URL, Required: true},
	})
	s.SetPolling(10*time.Millisecond, 200*time.Millisecond)

	// Healthy endpoint means the bogus command is never spawned.
	require.NoError(t, s.Start(context.Background()))
}

func TestStartRequiredFailureAborts(t *testing.T) {
	s := NewSupervisor(nil, t.TempDir(), []Process{
		{Name: "engine", Command: "does-not-exist-anywhere", Required: true},
	})
	s.SetPolling(10*time.Millisecond, 100*time.Millisecond)

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine")
}

func TestStartOptionalFailureContinues(t *testing.T) {
	s := NewSupervisor(nil, t.TempDir(), []Process{
		{Name: "proxy", Command: "does-not-exist-anywhere", Required: false},
	})
	s.SetPolling(10*time.Millisecond, 100*time.Millisecond)

	assert.NoError(t, s.Start(context.Background()), "optional process failure is a warning")
}

func TestWaitHealthyPollsUntilUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSupervisor(nil, t.TempDir(), nil)
	s.SetPolling(10*time.Millisecond, 2*time.Second)

	require.NoError(t, s.waitHealthy(context.Background(), srv.URL))
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}

func TestWaitHealthyTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := NewSupervisor(nil, t.TempDir(), nil)
	s.SetPolling(10*time.Millisecond, 100*time.Millisecond)

	err := s.waitHealthy(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not pass")
}

func TestReport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	dir := t.TempDir()
	s := NewSupervisor(nil, dir, []Process{
		{Name: "engine", HealthURL: srv.URL},
		{Name: "proxy"},
	})

	// engine looks alive via this test process's own PID.
	require.NoError(t, s.pidFile("engine").Write())

	statuses := s.Report(context.Background())
	require.Len(t, statuses, 2)
	assert.True(t, statuses[0].Running)
	assert.True(t, statuses[0].Healthy)
	assert.False(t, statuses[1].Running)
	assert.False(t, statuses[1].Healthy)
}

func TestStopRemovesStalePidFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewSupervisor(nil, dir, []Process{{Name: "engine"}})

	require.NoError(t, s.pidFile("engine").WritePID(999999))
	require.NoError(t, s.Stop())

	_, err := s.pidFile("engine").Read()
	assert.Error(t, err, "stale pid file is cleaned up")
}

func TestStartClearsStalePidFile(t *testing.T) {
	dir := t.TempDir()
	s := NewSupervisor(nil, dir, []Process{{Name: "engine", Command: "sleep", Args: []string{"5"}}})
	s.SetPolling(10*time.Millisecond, 100*time.Millisecond)

	require.NoError(t, s.pidFile("engine").WritePID(999999))
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Stop() })

	pid, err := s.pidFile("engine").Read()
	require.NoError(t, err)
	assert.NotEqual(t, 999999, pid, "stale pid replaced by the spawned process")
}
