// Package worker runs the background loops of the service.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Worker is a background loop with an explicit lifecycle.
type Worker interface {
	Start(ctx context.Context) error
	Stop() error
	Name() string
}

// HealthReporter is implemented by workers that can report their last error
type HealthReporter interface {
	LastError() error
}

// Manager starts workers together and stops them in reverse order.
type Manager struct {
	logger *zap.Logger

	mu      sync.RWMutex
	workers []Worker
	running []Worker
	cancel  context.CancelFunc
}

func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{logger: logger}
}

// Register adds a worker. Names must be unique; registering while running
// is refused.
func (m *Manager) Register(w Worker) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running != nil {
		return fmt.Errorf("cannot register %s: workers are running", w.Name())
	}
	for _, existing := range m.workers {
		if existing.Name() == w.Name() {
			return fmt.Errorf("worker %s already registered", w.Name())
		}
	}
	m.workers = append(m.workers, w)
	return nil
}

// StartAll starts every worker or none: when one fails, those already
// started are stopped again and the start error is returned.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running != nil {
		return fmt.Errorf("workers already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	started := make([]Worker, 0, len(m.workers))
	for _, w := range m.workers {
		if err := w.Start(runCtx); err != nil {
			cancel()
			stopErr := stopReverse(started, m.logger)
			return errors.Join(fmt.Errorf("start %s: %w", w.Name(), err), stopErr)
		}
		started = append(started, w)
	}

	m.running = started
	m.cancel = cancel
	m.logger.Info("Workers started", zap.Int("count", len(started)))
	return nil
}

// StopAll cancels the shared context and stops workers newest first.
func (m *Manager) StopAll() error {
	m.mu.Lock()
	running, cancel := m.running, m.cancel
	m.running, m.cancel = nil, nil
	m.mu.Unlock()

	if running == nil {
		return nil
	}
	cancel()
	err := stopReverse(running, m.logger)
	m.logger.Info("Workers stopped", zap.Int("count", len(running)))
	return err
}

func stopReverse(workers []Worker, logger *zap.Logger) error {
	var errs []error
	for i := len(workers) - 1; i >= 0; i-- {
		if err := workers[i].Stop(); err != nil {
			logger.Error("Failed to stop worker", zap.String("worker", workers[i].Name()), zap.Error(err))
			errs = append(errs, fmt.Errorf("stop %s: %w", workers[i].Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.workers)
}

func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running != nil
}

// Health returns the last error of each worker that reports one, keyed by name
func (m *Manager) Health() map[string]error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]error, len(m.workers))
	for _, w := range m.workers {
		if hr, ok := w.(HealthReporter); ok {
			out[w.Name()] = hr.LastError()
		}
	}
	return out
}
