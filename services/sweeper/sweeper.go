// Package sweeper periodically declares overdue loans defaulted.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"sentechain/crypto"
)

// DefaultSchedule runs the sweep hourly.
const DefaultSchedule = "@every 1h"

// Target is implemented by core.Node.
type Target interface {
	SweepDefaults(caller crypto.Address) (int, error)
}

// Status reports the outcome of the latest sweep.
type Status struct {
	LastRun   time.Time `json:"lastRun"`
	Defaulted int       `json:"defaulted"`
	Total     int       `json:"total"`
	LastError string    `json:"lastError,omitempty"`
}

type Service struct {
	target   Target
	caller   crypto.Address
	schedule string
	logger   *slog.Logger
	nowFn    func() time.Time

	cron *cron.Cron

	mu     sync.Mutex
	status Status
}

// New validates schedule (standard five-field cron or @descriptors) and
// returns a stopped service. caller is recorded as the defaulting account.
func New(target Target, caller crypto.Address, schedule string, logger *slog.Logger) (*Service, error) {
	if target == nil {
		return nil, errors.New("sweeper: target required")
	}
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("sweeper: invalid schedule %q: %w", schedule, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "sweeper")
	return &Service{
		target:   target,
		caller:   caller,
		schedule: schedule,
		logger:   logger,
		nowFn:    time.Now,
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{logger}))),
	}, nil
}

// Start schedules the sweep. It returns immediately.
func (s *Service) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, func() { _, _ = s.RunOnce() }); err != nil {
		return fmt.Errorf("sweeper: schedule: %w", err)
	}
	s.cron.Start()
	s.logger.Info("sweeper scheduled", "schedule", s.schedule)
	return nil
}

// Stop halts scheduling and waits for a running sweep or ctx.
func (s *Service) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce sweeps immediately.
func (s *Service) RunOnce() (int, error) {
	start := s.nowFn()
	n, err := s.target.SweepDefaults(s.caller)

	s.mu.Lock()
	s.status.LastRun = start
	s.status.Defaulted = n
	s.status.Total += n
	s.status.LastError = ""
	if err != nil {
		s.status.LastError = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("sweep failed", "defaulted", n, "error", err)
		return n, err
	}
	if n > 0 {
		s.logger.Info("sweep defaulted overdue loans", "defaulted", n, "duration_ms", s.nowFn().Sub(start).Milliseconds())
	}
	return n, nil
}

// Status returns a copy of the latest sweep outcome.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}
