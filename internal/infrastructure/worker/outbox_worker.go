package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/justifi/internal/application/port"
	"github.com/garyjia/justifi/internal/domain/entity"
)

// OutboxConfig holds configuration for the outbox worker
type OutboxConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	SendTimeout  time.Duration
}

// DefaultOutboxConfig returns default configuration
func DefaultOutboxConfig() OutboxConfig {
	return OutboxConfig{
		PollInterval: 5 * time.Second,
		BatchSize:    20,
		MaxAttempts:  5,
		SendTimeout:  30 * time.Second,
	}
}

// DeliveryRecorder observes delivery outcomes
type DeliveryRecorder interface {
	Delivered(channel string)
	Failed(channel string)
}

type nopRecorder struct{}

func (nopRecorder) Delivered(string) {}
func (nopRecorder) Failed(string)    {}

// OutboxWorker drains pending notifications through a Sender
type OutboxWorker struct {
	config   OutboxConfig
	repo     port.NotificationRepository
	sender   port.Sender
	recorder DeliveryRecorder
	logger   *zap.Logger

	mu        sync.RWMutex
	cancel    context.CancelFunc
	done      chan struct{}
	isRunning bool
	sent      int
	failed    int
	lastError error
}

// NewOutboxWorker creates a new outbox worker. recorder may be nil.
func NewOutboxWorker(config OutboxConfig, repo port.NotificationRepository, sender port.Sender, recorder DeliveryRecorder, logger *zap.Logger) *OutboxWorker {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultOutboxConfig().PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultOutboxConfig().BatchSize
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultOutboxConfig().MaxAttempts
	}
	if config.SendTimeout <= 0 {
		config.SendTimeout = DefaultOutboxConfig().SendTimeout
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &OutboxWorker{
		config:   config,
		repo:     repo,
		sender:   sender,
		recorder: recorder,
		logger:   logger,
	}
}

// Start begins the polling loop
func (w *OutboxWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isRunning {
		return fmt.Errorf("outbox worker already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.isRunning = true

	w.logger.Info("OutboxWorker started",
		zap.String("channel", w.sender.Name()),
		zap.Duration("poll_interval", w.config.PollInterval),
		zap.Int("batch_size", w.config.BatchSize))

	go w.pollLoop(loopCtx, w.done)
	return nil
}

// Stop cancels the loop and waits for the in-flight batch to finish
func (w *OutboxWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	w.mu.RLock()
	w.logger.Info("OutboxWorker stopped",
		zap.Int("sent_count", w.sent),
		zap.Int("failed_count", w.failed))
	w.mu.RUnlock()
	return nil
}

// Name returns the worker name for identification
func (w *OutboxWorker) Name() string {
	return "OutboxWorker"
}

// LastError returns the error of the most recent poll, if any
func (w *OutboxWorker) LastError() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastError
}

func (w *OutboxWorker) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, err := w.ProcessOnce(ctx)
			w.mu.Lock()
			w.lastError = err
			w.mu.Unlock()
			if err != nil {
				w.logger.Error("Failed to process outbox", zap.Error(err))
			}
		}
	}
}

// ProcessOnce delivers one batch of pending notifications and returns how
// many were sent. A failed send is recorded on the row and does not stop
// the batch.
func (w *OutboxWorker) ProcessOnce(ctx context.Context) (int, error) {
	pending, err := w.repo.ListPending(ctx, w.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending notifications: %w", err)
	}

	sent := 0
	for _, n := range pending {
		if ctx.Err() != nil {
			break
		}
		if w.deliver(ctx, n) {
			sent++
		}
	}
	return sent, nil
}

func (w *OutboxWorker) deliver(ctx context.Context, n *entity.Notification) bool {
	sendCtx, cancel := context.WithTimeout(ctx, w.config.SendTimeout)
	defer cancel()

	channel := w.sender.Name()
	if err := w.sender.Send(sendCtx, n); err != nil {
		w.recorder.Failed(channel)
		w.logger.Warn("Notification delivery failed",
			zap.String("notification_id", n.ID.String()),
			zap.Int("attempt", n.Attempts+1),
			zap.Error(err))
		if delivered := port.DeliveredRecipients(err); len(delivered) > 0 {
			if rerr := w.repo.MarkDelivered(ctx, n.ID, delivered); rerr != nil {
				w.logger.Error("Failed to record delivered recipients",
					zap.String("notification_id", n.ID.String()),
					zap.Error(rerr))
			}
		}
		if rerr := w.repo.RecordFailure(ctx, n.ID, err.Error(), w.config.MaxAttempts); rerr != nil {
			w.logger.Error("Failed to record delivery failure",
				zap.String("notification_id", n.ID.String()),
				zap.Error(rerr))
		}
		w.mu.Lock()
		w.failed++
		w.mu.Unlock()
		return false
	}

	w.recorder.Delivered(channel)
	if err := w.repo.MarkSent(ctx, n.ID); err != nil {
		w.logger.Error("Failed to mark notification sent",
			zap.String("notification_id", n.ID.String()),
			zap.Error(err))
	}
	w.mu.Lock()
	w.sent++
	w.mu.Unlock()
	return true
}
