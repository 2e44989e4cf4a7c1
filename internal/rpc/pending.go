package rpc

import (
	"encoding/json"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/Radix-Obsidian/Voco-ai-sub000/internal/protocol"
)

// Pending is the correlation arena for locally-initiated calls: a map from
// correlation id to a completion handle, removed on response, timeout, or
// connection teardown.
type Pending struct {
	mu sync.Mutex
	m  map[string]chan protocol.Response
}

// NewPending returns an empty arena.
func NewPending() *Pending {
	return &Pending{m: make(map[string]chan protocol.Response)}
}

// Register creates a completion handle for id. The returned cancel func
// removes the handle; callers must invoke it once the wait is over,
// whichever way it ended.
func (p *Pending) Register(id string) (<-chan protocol.Response, func()) {
	ch := make(chan protocol.Response, 1)
	p.mu.Lock()
	p.m[id] = ch
	p.mu.Unlock()

	cancel := func() {
		p.mu.Lock()
		delete(p.m, id)
		p.mu.Unlock()
	}
	return ch, cancel
}

// Resolve delivers a response to its waiter. Returns false when no handle
// matches, which covers late responses after timeout or disconnect.
func (p *Pending) Resolve(resp protocol.Response) bool {
	key := protocol.CorrelationKey(resp.ID)
	p.mu.Lock()
	ch, ok := p.m[key]
	if ok {
		delete(p.m, key)
	}
	p.mu.Unlock()
	if !ok {
		return false
	}
	ch <- resp
	return true
}

// FailAll resolves every outstanding handle with the given error and
// clears the arena. Called when the channel goes down so waiters do not
// hang on a dead connection.
func (p *Pending) FailAll(code int, message string) {
	p.mu.Lock()
	handles := p.m
	p.m = make(map[string]chan protocol.Response)
	p.mu.Unlock()

	for id, ch := range handles {
		raw, _ := json.Marshal(id)
		ch <- protocol.NewError(raw, code, message, nil)
	}
}

// Len returns the number of outstanding handles.
func (p *Pending) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.m)
}

// NewCallID returns a ULID correlation id, optionally prefixed
// ("cmd_01J8ZQ...").
func NewCallID(prefix string) string {
	id := ulid.Make().String()
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}
