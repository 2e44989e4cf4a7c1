// Package backend supervises the local engine processes the gateway talks
// to: the cognitive engine and the LLM proxy. Spawned processes are
// tracked with PID files under the state dir so stop/status work across
// gateway invocations.
package backend

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"
)

// Polling defaults while waiting for a spawned process to become healthy.
const (
	DefaultPollInterval = 500 * time.Millisecond
	DefaultStartTimeout = 60 * time.Second
)

// Process describes one supervised backend process.
type Process struct {
	// Name keys the PID file ("engine", "proxy").
	Name string
	// Command and Args spawn the process.
	Command string
	Args    []string
	// Dir is the working directory, empty for inherit.
	Dir string
	// HealthURL answers 2xx when the process is up.
	HealthURL string
	// Required marks a process whose startup failure aborts Start.
	// Optional processes degrade to a logged warning.
	Required bool
}

// Status is one row of a status report.
type Status struct {
	Name    string
	PID     int
	Running bool
	Healthy bool
}

// Supervisor starts, stops, and reports on the backend processes.
type Supervisor struct {
	logger   *slog.Logger
	stateDir string
	procs    []Process
	client   *http.Client

	pollInterval time.Duration
	startTimeout time.Duration
}

// NewSupervisor builds a supervisor writing PID files under stateDir.
func NewSupervisor(logger *slog.Logger, stateDir string, procs []Process) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		logger:       logger,
		stateDir:     stateDir,
		procs:        procs,
		client:       &http.Client{Timeout: 2 * time.Second},
		pollInterval: DefaultPollInterval,
		startTimeout: DefaultStartTimeout,
	}
}

// SetPolling overrides the health poll cadence and budget, used by tests.
func (s *Supervisor) SetPolling(interval, timeout time.Duration) {
	s.pollInterval = interval
	s.startTimeout = timeout
}

func (s *Supervisor) pidFile(name string) *PIDFile {
	return NewPIDFile(filepath.Join(s.stateDir, name+".pid"))
}

// Start launches every configured process that is not already healthy. A
// required process that fails to come up aborts with an error; optional
// processes log a warning and are skipped.
func (s *Supervisor) Start(ctx context.Context) error {
	for _, proc := range s.procs {
		if s.healthy(ctx, proc.HealthURL) {
			s.logger.Info("already running, skipping",
				slog.String("process", proc.Name))
			continue
		}
		if err := s.startOne(ctx, proc); err != nil {
			if proc.Required {
				return fmt.Errorf("start %s: %w", proc.Name, err)
			}
			s.logger.Warn("optional process failed to start",
				slog.String("process", proc.Name),
				slog.String("error", err.Error()))
		}
	}
	return nil
}

func (s *Supervisor) startOne(ctx context.Context, proc Process) error {
	if pf := s.pidFile(proc.Name); pf.Stale() {
		s.logger.Info("clearing stale pid file from a previous run",
			slog.String("process", proc.Name),
			slog.String("path", pf.Path))
		_ = pf.Remove()
	}

	cmd := exec.Command(proc.Command, proc.Args...)
	cmd.Dir = proc.Dir
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawn %q: %w", proc.Command, err)
	}

	if err := s.pidFile(proc.Name).WritePID(cmd.Process.Pid); err != nil {
		s.logger.Warn("pid file write failed",
			slog.String("process", proc.Name),
			slog.String("error", err.Error()))
	}
	// Reap the child when it exits so it does not zombie.
	go func() { _ = cmd.Wait() }()

	s.logger.Info("process spawned",
		slog.String("process", proc.Name),
		slog.Int("pid", cmd.Process.Pid))

	if proc.HealthURL == "" {
		return nil
	}
	if err := s.waitHealthy(ctx, proc.HealthURL); err != nil {
		return err
	}
	s.logger.Info("process healthy", slog.String("process", proc.Name))
	return nil
}

// waitHealthy polls the health endpoint until it answers or the budget is
// spent.
func (s *Supervisor) waitHealthy(ctx context.Context, url string) error {
	deadline := time.Now().Add(s.startTimeout)
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		if s.healthy(ctx, url) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("health check %s did not pass within %s", url, s.startTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Supervisor) healthy(ctx context.Context, url string) bool {
	if url == "" {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Stop terminates every tracked process and removes its PID file. Missing
// or dead processes are not errors.
func (s *Supervisor) Stop() error {
	for _, proc := range s.procs {
		pf := s.pidFile(proc.Name)
		pid, running := pf.IsRunning()
		if !running {
			if pf.Stale() {
				s.logger.Info("removing stale pid file",
					slog.String("process", proc.Name),
					slog.String("path", pf.Path))
			}
			_ = pf.Remove()
			continue
		}
		if err := pf.Signal(syscall.SIGTERM); err != nil {
			s.logger.Warn("terminate failed",
				slog.String("process", proc.Name),
				slog.Int("pid", pid),
				slog.String("error", err.Error()))
			continue
		}
		s.logger.Info("process stopped",
			slog.String("process", proc.Name),
			slog.Int("pid", pid))
		_ = pf.Remove()
	}
	return nil
}

// Report returns the live status of every configured process.
func (s *Supervisor) Report(ctx context.Context) []Status {
	out := make([]Status, 0, len(s.procs))
	for _, proc := range s.procs {
		pid, running := s.pidFile(proc.Name).IsRunning()
		out = append(out, Status{
			Name:    proc.Name,
			PID:     pid,
			Running: running,
			Healthy: s.healthy(ctx, proc.HealthURL),
		})
	}
	return out
}
