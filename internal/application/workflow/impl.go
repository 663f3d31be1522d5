package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/garyjia/justifi/internal/application/dispatcher"
	"github.com/garyjia/justifi/internal/application/port"
	"github.com/garyjia/justifi/internal/application/routing"
	"github.com/garyjia/justifi/internal/domain/apperr"
	"github.com/garyjia/justifi/internal/domain/entity"
	"github.com/garyjia/justifi/internal/domain/event"
	domainwf "github.com/garyjia/justifi/internal/domain/workflow"
)

// engineImpl is the concrete implementation of Engine
type engineImpl struct {
	justifications port.JustificationRepository
	tasks          port.ApprovalTaskRepository
	comments       port.CommentRepository
	types          port.JustificationTypeRepository
	resolver       routing.Resolver
	txManager      port.TransactionManager
	notifier       port.Notifier
	audit          port.AuditLogger
	dispatcher     dispatcher.Publisher
	logger         Logger

	locks *keyedMutex
	clock func() time.Time
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting events
func WithDispatcher(d dispatcher.Publisher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithLogger sets the engine logger
func WithLogger(l Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = l
	}
}

// WithTypeRegistry enables dynamic value validation for registered justification types
func WithTypeRegistry(types port.JustificationTypeRepository) EngineOption {
	return func(e *engineImpl) {
		e.types = types
	}
}

// WithClock overrides the time source
func WithClock(clock func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.clock = clock
	}
}

// NewEngine creates a new workflow engine
func NewEngine(
	justifications port.JustificationRepository,
	tasks port.ApprovalTaskRepository,
	comments port.CommentRepository,
	resolver routing.Resolver,
	txManager port.TransactionManager,
	notifier port.Notifier,
	audit port.AuditLogger,
	opts ...EngineOption,
) Engine {
	e := &engineImpl{
		justifications: justifications,
		tasks:          tasks,
		comments:       comments,
		resolver:       resolver,
		txManager:      txManager,
		notifier:       notifier,
		audit:          audit,
		logger:         nopLogger{},
		locks:          newKeyedMutex(),
		clock:          time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

func (e *engineImpl) now() time.Time {
	return e.clock().UTC()
}

func (e *engineImpl) loadTask(ctx context.Context, id entity.TaskID) (*entity.ApprovalTask, error) {
	task, err := e.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load task %s", id)
	}
	if task == nil {
		return nil, apperr.NotFound("task", id)
	}
	return task, nil
}

func (e *engineImpl) loadJustification(ctx context.Context, id entity.JustificationID) (*entity.Justification, error) {
	j, err := e.justifications.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load justification %s", id)
	}
	if j == nil {
		return nil, apperr.NotFound("justification", id)
	}
	return j, nil
}

// transitionError maps state machine refusals to Conflict.
func transitionError(err error, format string, args ...any) error {
	if errors.Is(err, domainwf.ErrInvalidTransition) || errors.Is(err, domainwf.ErrInvalidState) {
		return apperr.Conflict(err, format, args...)
	}
	return apperr.Internal(err, format, args...)
}

// storeError maps a lost compare-and-set to Conflict and anything else to Internal.
func storeError(err error, format string, args ...any) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, port.ErrVersionConflict) {
		return apperr.Conflict(err, format, args...)
	}
	return apperr.Internal(err, format, args...)
}

// sideEffects returns a context for audit, notification and events that
// outlives the caller's cancellation.
func sideEffects(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

func (e *engineImpl) record(ctx context.Context, id entity.JustificationID, action, actor string, details map[string]any) {
	e.audit.Record(ctx, entity.EntityJustification, id.String(), action, actor, details)
}

func (e *engineImpl) emit(ctx context.Context, eventType event.Type, id entity.JustificationID, payload map[string]interface{}) {
	if e.dispatcher == nil {
		return
	}
	e.dispatcher.Publish(ctx, event.NewEvent(eventType, id.String(), payload))
}

func (e *engineImpl) emitStatusChange(ctx context.Context, id entity.JustificationID, from, to entity.JustificationStatus, actor string) {
	e.emit(ctx, event.TypeStatusChanged, id, map[string]interface{}{
		event.PayloadFrom:  string(from),
		event.PayloadTo:    string(to),
		event.PayloadActor: actor,
	})
}

func (e *engineImpl) emitTaskChange(ctx context.Context, task *entity.ApprovalTask, to entity.TaskStatus, actor string) {
	e.emit(ctx, event.TypeTaskStatusChanged, task.JustificationID, map[string]interface{}{
		event.PayloadTaskID: task.ID.String(),
		event.PayloadFrom:   string(task.Status),
		event.PayloadTo:     string(to),
		event.PayloadActor:  actor,
	})
}
