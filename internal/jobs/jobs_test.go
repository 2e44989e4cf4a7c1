package jobs

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartAndComplete(t *testing.T) {
	tr := NewTracker(nil, DefaultRetention, DefaultOrphanAfter)

	tr.Start("j1", "web_search")
	active := tr.Active()
	require.Len(t, active, 1)
	assert.Equal(t, StatusRunning, active[0].Status)
	assert.Equal(t, "web_search", active[0].Tool)

	ok := tr.Complete("j1", StatusCompleted, "3 results")
	assert.True(t, ok)

	active = tr.Active()
	require.Len(t, active, 1)
	assert.Equal(t, StatusCompleted, active[0].Status)
	assert.Equal(t, "3 results", active[0].Output)
}

func TestRetentionWindow(t *testing.T) {
	retention := 40 * time.Millisecond
	tr := NewTracker(nil, retention, DefaultOrphanAfter)

	tr.Start("j1", "scan")
	tr.Complete("j1", StatusCompleted, "")

	// Present for at least the retention window.
	assert.Len(t, tr.Active(), 1, "terminal entry must remain visible inside retention")

	require.Eventually(t, func() bool { return len(tr.Active()) == 0 },
		time.Second, 5*time.Millisecond, "terminal entry must be removed after retention")
}

func TestCompleteUnknownJob(t *testing.T) {
	tr := NewTracker(nil, DefaultRetention, DefaultOrphanAfter)
	assert.False(t, tr.Complete("ghost", StatusCompleted, ""))
}

func TestDuplicateCompletionIgnored(t *testing.T) {
	tr := NewTracker(nil, time.Minute, DefaultOrphanAfter)
	tr.Start("j1", "scan")

	assert.True(t, tr.Complete("j1", StatusFailed, "boom"))
	assert.False(t, tr.Complete("j1", StatusCompleted, "late"), "second completion must be ignored")

	active := tr.Active()
	require.Len(t, active, 1)
	assert.Equal(t, StatusFailed, active[0].Status)
	assert.Equal(t, "boom", active[0].Output)
}

func TestDuplicateStartIgnored(t *testing.T) {
	tr := NewTracker(nil, DefaultRetention, DefaultOrphanAfter)
	tr.Start("j1", "first")
	tr.Start("j1", "second")

	active := tr.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "first", active[0].Tool)
}

func TestUnknownStatusBecomesFailed(t *testing.T) {
	tr := NewTracker(nil, time.Minute, DefaultOrphanAfter)
	tr.Start("j1", "scan")
	tr.Complete("j1", Status("exploded"), "")

	assert.Equal(t, StatusFailed, tr.Active()[0].Status)
}

func TestReapOrphans(t *testing.T) {
	tr := NewTracker(nil, time.Minute, 50*time.Millisecond)
	tr.Start("old", "hung_tool")
	tr.Start("new", "quick_tool")

	// Only jobs past the orphan horizon get reaped.
	n := tr.Reap(time.Now().Add(100 * time.Millisecond))
	assert.Equal(t, 2, n)

	tr2 := NewTracker(nil, time.Minute, time.Hour)
	tr2.Start("young", "tool")
	assert.Zero(t, tr2.Reap(time.Now()))

	for _, j := range tr.Active() {
		assert.Equal(t, StatusFailed, j.Status)
		assert.Contains(t, j.Output, "timeout")
	}
}

func TestArrivalOrderPreserved(t *testing.T) {
	tr := NewTracker(nil, time.Minute, DefaultOrphanAfter)
	tr.Start("a", "t1")
	tr.Start("b", "t2")
	tr.Start("c", "t3")
	tr.Complete("b", StatusCompleted, "")

	active := tr.Active()
	require.Len(t, active, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{active[0].ID, active[1].ID, active[2].ID})
}

func TestNotifyFiresOnChange(t *testing.T) {
	tr := NewTracker(nil, 30*time.Millisecond, DefaultOrphanAfter)

	var mu sync.Mutex
	var calls int
	tr.SetNotify(func([]Job) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	tr.Start("j1", "scan")
	tr.Complete("j1", StatusCompleted, "")

	mu.Lock()
	assert.GreaterOrEqual(t, calls, 2, "start and complete must both notify")
	mu.Unlock()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls >= 3
	}, time.Second, 5*time.Millisecond, "retention removal must notify")
}
