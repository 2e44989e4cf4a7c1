// Package rpc routes inbound JSON-RPC requests to registered local tool
// handlers and correlates replies to locally-initiated calls.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Radix-Obsidian/Voco-ai-sub000/internal/protocol"
)

// DefaultTimeout bounds a single handler invocation.
const DefaultTimeout = 30 * time.Second

// ErrCapabilityUnavailable marks a method the host cannot serve in its
// current configuration. It maps to protocol.CodeCapabilityUnavailable
// instead of a generic execution failure.
var ErrCapabilityUnavailable = errors.New("capability unavailable")

// HandlerFunc executes one tool call. The context carries the per-request
// deadline; the returned value must be JSON-serializable.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

// InvalidParams builds a handler error that maps to the invalid-params
// code instead of a generic execution failure.
func InvalidParams(format string, args ...any) error {
	return &protocol.RPCError{Code: protocol.CodeInvalidParams, Message: fmt.Sprintf(format, args...)}
}

// Dispatcher routes requests by method name. Handlers run on their own
// goroutines so a slow tool call never blocks the message loop; responses
// therefore may leave out of arrival order.
type Dispatcher struct {
	mu       sync.RWMutex
	logger   *slog.Logger
	timeout  time.Duration
	handlers map[string]HandlerFunc
	inflight sync.WaitGroup
}

// NewDispatcher builds a dispatcher. A zero timeout selects DefaultTimeout.
func NewDispatcher(logger *slog.Logger, timeout time.Duration) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{
		logger:   logger,
		timeout:  timeout,
		handlers: make(map[string]HandlerFunc),
	}
}

// Register installs a handler for a method name, replacing any previous
// registration.
func (d *Dispatcher) Register(method string, h HandlerFunc) {
	d.mu.Lock()
	d.handlers[method] = h
	d.mu.Unlock()
}

// Methods returns the registered method names, sorted.
func (d *Dispatcher) Methods() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.handlers))
	for m := range d.handlers {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Dispatch routes one inbound request. Every request carrying an id gets
// exactly one response through send: a result, a structured error, or a
// method-not-found error for unregistered methods. Requests without an id
// are notifications and are logged and dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, req protocol.Request, send func(protocol.Response) error) {
	if len(req.ID) == 0 {
		d.logger.Warn("rpc notification dropped", slog.String("method", req.Method))
		return
	}

	d.mu.RLock()
	handler, ok := d.handlers[req.Method]
	d.mu.RUnlock()

	if !ok {
		d.logger.Warn("rpc method not found", slog.String("method", req.Method))
		d.send(send, protocol.NewError(req.ID, protocol.CodeMethodNotFound,
			fmt.Sprintf("method not found: %s", req.Method), nil))
		return
	}

	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		d.send(send, d.invoke(ctx, handler, req))
	}()
}

// Wait blocks until every in-flight handler has produced its response.
func (d *Dispatcher) Wait() {
	d.inflight.Wait()
}

func (d *Dispatcher) invoke(ctx context.Context, handler HandlerFunc, req protocol.Request) (resp protocol.Response) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	// A panicking handler still owes the peer its one response.
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("rpc handler panic",
				slog.String("method", req.Method), slog.Any("panic", r))
			resp = protocol.NewError(req.ID, protocol.CodeInternalError,
				fmt.Sprintf("internal error in %s", req.Method), nil)
		}
	}()

	start := time.Now()
	result, err := handler(ctx, req.Params)
	elapsed := time.Since(start)

	if err != nil {
		d.logger.Warn("rpc handler failed",
			slog.String("method", req.Method),
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()))
		return d.errorResponse(req, err)
	}

	d.logger.Debug("rpc handled",
		slog.String("method", req.Method),
		slog.Duration("elapsed", elapsed))

	out, err := protocol.NewResult(req.ID, result)
	if err != nil {
		return protocol.NewError(req.ID, protocol.CodeInternalError,
			fmt.Sprintf("marshal result: %v", err), nil)
	}
	return out
}

func (d *Dispatcher) errorResponse(req protocol.Request, err error) protocol.Response {
	var rpcErr *protocol.RPCError
	switch {
	case errors.As(err, &rpcErr):
		return protocol.Response{JSONRPC: protocol.Version, ID: req.ID, Error: rpcErr}
	case errors.Is(err, ErrCapabilityUnavailable):
		return protocol.NewError(req.ID, protocol.CodeCapabilityUnavailable, err.Error(), nil)
	case errors.Is(err, context.DeadlineExceeded):
		return protocol.NewError(req.ID, protocol.CodeExecutionFailed,
			fmt.Sprintf("%s timed out after %s", req.Method, d.timeout), nil)
	default:
		return protocol.NewError(req.ID, protocol.CodeExecutionFailed, err.Error(), nil)
	}
}

func (d *Dispatcher) send(send func(protocol.Response) error, resp protocol.Response) {
	if err := send(resp); err != nil {
		d.logger.Warn("rpc response dropped",
			slog.String("id", protocol.CorrelationKey(resp.ID)),
			slog.String("error", err.Error()))
	}
}
