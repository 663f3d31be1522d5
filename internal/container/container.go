package container

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/justifi/internal/application/dispatcher"
	"github.com/garyjia/justifi/internal/application/port"
	"github.com/garyjia/justifi/internal/application/workflow"
	"github.com/garyjia/justifi/internal/infrastructure/export"
	"github.com/garyjia/justifi/internal/infrastructure/metrics"
	"github.com/garyjia/justifi/internal/infrastructure/worker"
)

// Container manages all application dependencies and lifecycle.
// Components are initialised in dependency order and torn down in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure
	database *DatabaseBundle
	senders  *SenderBundle
	exporter *export.ExcelExporter
	metrics  *metrics.Metrics

	// Application
	dispatcher dispatcher.Bus
	engine     workflow.Engine
	services   *ServiceBundle

	workers *worker.Manager

	// Lifecycle
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components and begins processing.
// Components are initialized in dependency order:
// 1. Database and repositories
// 2. Event dispatcher and metrics
// 3. Application services and workflow engine
// 4. Delivery channel and exporter
// 5. Workers
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	// Step 1: database and repositories
	db, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return c.abort(fmt.Errorf("failed to initialize database: %w", err))
	}
	c.database = db
	c.logger.Info("Database initialized", zap.String("driver", c.config.Database.Driver))

	// Step 2: dispatcher and metrics
	d, err := ProvideDispatcher(c.logger)
	if err != nil {
		return c.abort(fmt.Errorf("failed to initialize dispatcher: %w", err))
	}
	c.dispatcher = d
	m, err := ProvideMetrics(d, c.config.Version)
	if err != nil {
		return c.abort(fmt.Errorf("failed to initialize metrics: %w", err))
	}
	c.metrics = m

	// Step 3: services and workflow engine
	services, err := ProvideServices(db.Repositories, c.logger)
	if err != nil {
		return c.abort(fmt.Errorf("failed to initialize services: %w", err))
	}
	c.services = services

	engine, err := ProvideWorkflowEngine(&WorkflowDeps{
		Repos:      db.Repositories,
		Services:   services,
		Dispatcher: d,
		Logger:     c.logger,
	})
	if err != nil {
		return c.abort(fmt.Errorf("failed to initialize workflow engine: %w", err))
	}
	c.engine = engine
	c.logger.Info("Services and workflow engine initialized")

	// Step 4: delivery channel and exporter
	senders, err := ProvideSender(&c.config.Notification, c.logger)
	if err != nil {
		return c.abort(fmt.Errorf("failed to initialize notification channel: %w", err))
	}
	c.senders = senders
	c.exporter = export.NewExcelExporter(c.config.Export, c.logger)
	c.logger.Info("Notification channel initialized", zap.String("channel", senders.Sender.Name()))

	// Step 5: workers
	workers, err := ProvideWorkers(&WorkerDeps{
		Repos:    db.Repositories,
		Sender:   senders.Sender,
		Recorder: c.metrics,
		Config:   &c.config.Notification,
		Logger:   c.logger,
	})
	if err != nil {
		return c.abort(fmt.Errorf("failed to initialize workers: %w", err))
	}
	c.workers = workers
	if err := workers.StartAll(c.ctx); err != nil {
		return c.abort(fmt.Errorf("failed to start workers: %w", err))
	}
	c.logger.Info("Workers started", zap.Int("count", workers.Count()))

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// abort releases whatever Start managed to open before failing.
func (c *Container) abort(err error) error {
	if closeErr := c.teardown(); closeErr != nil {
		c.logger.Error("Cleanup after failed start", zap.Error(closeErr))
	}
	return err
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")
	err := c.teardown()
	c.closed.Store(true)
	c.ready.Store(false)

	if err != nil {
		c.logger.Error("Container closed with errors", zap.Error(err))
		return err
	}
	c.logger.Info("Container closed successfully")
	return nil
}

func (c *Container) teardown() error {
	var errs []error

	if c.cancel != nil {
		c.cancel()
	}

	// Step 5
	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
		c.workers = nil
	}

	// Step 4
	if c.senders != nil && c.senders.Conn != nil {
		if err := c.senders.Conn.Drain(); err != nil {
			errs = append(errs, fmt.Errorf("drain nats: %w", err))
		}
	}
	c.senders = nil

	// Step 2
	if c.dispatcher != nil && c.dispatcher.Healthy() {
		if err := c.dispatcher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
	}

	// Step 1
	if c.database != nil && c.database.SQL != nil {
		if err := c.database.SQL.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}
	set := func(name string, err error) {
		if err != nil {
			status.Components[name] = ComponentHealth{Healthy: false, Message: err.Error()}
			status.Overall = false
			return
		}
		status.Components[name] = ComponentHealth{Healthy: true}
	}
	notInitialized := errors.New("not initialized")

	// Database
	switch {
	case c.database == nil:
		set("database", notInitialized)
	case c.database.SQL != nil:
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		set("database", c.database.SQL.HealthCheck(pingCtx))
		cancel()
	default:
		status.Components["database"] = ComponentHealth{Healthy: true, Message: DriverMemory}
	}

	// Dispatcher
	if c.dispatcher == nil {
		set("dispatcher", notInitialized)
	} else if !c.dispatcher.Healthy() {
		set("dispatcher", dispatcher.ErrClosed)
	} else {
		var failed int64
		stats := c.dispatcher.Stats()
		for _, s := range stats {
			failed += s.Failed
		}
		status.Components["dispatcher"] = ComponentHealth{
			Healthy: true,
			Message: fmt.Sprintf("subscribers: %d, failed deliveries: %d", len(stats), failed),
		}
	}

	// Workers
	if c.workers == nil || !c.workers.IsRunning() {
		set("workers", errors.New("not running"))
	} else {
		for name, err := range c.workers.Health() {
			set("worker."+name, err)
		}
		status.Components["workers"] = ComponentHealth{
			Healthy: true,
			Message: fmt.Sprintf("worker count: %d", c.workers.Count()),
		}
	}

	return status
}

// Engine returns the workflow engine.
func (c *Container) Engine() workflow.Engine {
	return c.engine
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	if c.database == nil {
		return nil
	}
	return c.database.Repositories
}

// Exporter returns the spreadsheet exporter.
func (c *Container) Exporter() port.Exporter {
	return c.exporter
}

// Metrics returns the Prometheus registry wrapper.
func (c *Container) Metrics() *metrics.Metrics {
	return c.metrics
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Bus {
	return c.dispatcher
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.Manager {
	return c.workers
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}
