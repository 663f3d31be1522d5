package container

import (
	"context"
	"fmt"
	"io/fs"
	"os"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/garyjia/justifi/internal/application/dispatcher"
	"github.com/garyjia/justifi/internal/application/port"
	"github.com/garyjia/justifi/internal/application/routing"
	"github.com/garyjia/justifi/internal/application/service"
	"github.com/garyjia/justifi/internal/application/workflow"
	"github.com/garyjia/justifi/internal/infrastructure/metrics"
	"github.com/garyjia/justifi/internal/infrastructure/notify"
	"github.com/garyjia/justifi/internal/infrastructure/persistence/memory"
	"github.com/garyjia/justifi/internal/infrastructure/persistence/repository"
	"github.com/garyjia/justifi/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/justifi/internal/infrastructure/worker"
	"github.com/garyjia/justifi/migrations"
	"github.com/garyjia/justifi/pkg/database"
	"github.com/garyjia/justifi/pkg/utils"
)

// Database drivers
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// RepositoryBundle holds every repository plus the transaction manager
// that spans them.
type RepositoryBundle struct {
	Justifications port.JustificationRepository
	Tasks          port.ApprovalTaskRepository
	Rules          port.RoutingRuleRepository
	Comments       port.CommentRepository
	Audit          port.AuditRepository
	Notifications  port.NotificationRepository
	Types          port.JustificationTypeRepository
	Templates      port.EmailTemplateRepository
	Users          port.UserRepository
	TxManager      port.TransactionManager
}

// DatabaseBundle holds the storage backend. SQL is nil for the memory driver.
type DatabaseBundle struct {
	SQL          *database.DB
	Repositories *RepositoryBundle
}

// ServiceBundle holds the application services.
type ServiceBundle struct {
	Audit         service.AuditService
	Notifications service.NotificationService
	Query         service.QueryService
	Rules         service.RuleService
	Types         service.TypeService
	Templates     service.TemplateService
	Users         service.UserService
}

// SenderBundle holds the outbox delivery channel. Conn is set only for nats.
type SenderBundle struct {
	Sender port.Sender
	Conn   *nats.Conn
}

// MigrationsFS returns the directory override when set, else the embedded migrations.
func MigrationsFS(dir string) fs.FS {
	if dir != "" {
		return os.DirFS(dir)
	}
	return migrations.FS
}

// ProvideDatabase opens the configured backend. For sqlite it also applies
// pending migrations.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	switch cfg.Driver {
	case DriverMemory:
		store := memory.NewStore()
		return &DatabaseBundle{
			Repositories: &RepositoryBundle{
				Justifications: store.Justifications(),
				Tasks:          store.Tasks(),
				Rules:          store.Rules(),
				Comments:       store.Comments(),
				Audit:          store.Audit(),
				Notifications:  store.Notifications(),
				Types:          store.Types(),
				Templates:      store.Templates(),
				Users:          store.Users(),
				TxManager:      store,
			},
		}, nil

	case DriverSQLite:
		db, err := database.New(database.Config{
			Path:            cfg.Path,
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
		}, logger)
		if err != nil {
			return nil, err
		}

		applied, err := database.NewMigrator(db, logger).RunMigrations(context.Background(), MigrationsFS(cfg.MigrationsDir))
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		logger.Info("Database ready", zap.Int("migrations_applied", applied))

		return &DatabaseBundle{
			SQL:          db,
			Repositories: ProvideRepositories(sqlite.NewDB(db)),
		}, nil

	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// ProvideRepositories creates the SQL repositories over one transaction manager.
func ProvideRepositories(db *sqlite.DB) *RepositoryBundle {
	return &RepositoryBundle{
		Justifications: repository.NewJustificationRepository(db),
		Tasks:          repository.NewApprovalTaskRepository(db),
		Rules:          repository.NewRoutingRuleRepository(db),
		Comments:       repository.NewCommentRepository(db),
		Audit:          repository.NewAuditRepository(db),
		Notifications:  repository.NewNotificationRepository(db),
		Types:          repository.NewJustificationTypeRepository(db),
		Templates:      repository.NewEmailTemplateRepository(db),
		Users:          repository.NewUserRepository(db),
		TxManager:      db,
	}
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Bus, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return dispatcher.New(
		dispatcher.WithLogger(utils.NewKVLogger(logger.Named("dispatcher"))),
	), nil
}

// ProvideMetrics creates the registry and subscribes it to workflow events.
func ProvideMetrics(b dispatcher.Bus, version string) (*metrics.Metrics, error) {
	m := metrics.New()
	m.SetBuildInfo(version)
	if b != nil {
		if err := m.Subscribe(b); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ProvideServices creates all application services.
func ProvideServices(repos *RepositoryBundle, logger *zap.Logger) (*ServiceBundle, error) {
	if repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	serviceLogger := utils.NewKVLogger(logger.Named("service"))
	audit := service.NewAuditService(repos.Audit, serviceLogger)

	return &ServiceBundle{
		Audit:         audit,
		Notifications: service.NewNotificationService(repos.Notifications, repos.Templates, serviceLogger),
		Query:         service.NewQueryService(repos.Justifications, repos.Tasks, repos.Comments, repos.Audit, serviceLogger),
		Rules:         service.NewRuleService(repos.Rules, serviceLogger, service.WithUserDirectory(repos.Users)),
		Types:         service.NewTypeService(repos.Types, serviceLogger),
		Templates:     service.NewTemplateService(repos.Templates, serviceLogger),
		Users:         service.NewUserService(repos.Users, serviceLogger),
	}, nil
}

// WorkflowDeps holds dependencies required for creating the workflow engine.
type WorkflowDeps struct {
	Repos      *RepositoryBundle
	Services   *ServiceBundle
	Dispatcher dispatcher.Bus
	Logger     *zap.Logger
}

// ProvideWorkflowEngine creates the routing resolver and the engine on top of it.
func ProvideWorkflowEngine(deps *WorkflowDeps) (workflow.Engine, error) {
	if deps == nil {
		return nil, fmt.Errorf("workflow dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.Services == nil {
		return nil, fmt.Errorf("services are required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}

	opts := []workflow.EngineOption{
		workflow.WithDispatcher(deps.Dispatcher),
		workflow.WithTypeRegistry(deps.Repos.Types),
	}
	if deps.Logger != nil {
		opts = append(opts, workflow.WithLogger(utils.NewKVLogger(deps.Logger.Named("workflow"))))
	}

	return workflow.NewEngine(
		deps.Repos.Justifications,
		deps.Repos.Tasks,
		deps.Repos.Comments,
		routing.NewResolver(deps.Repos.Rules),
		deps.Repos.TxManager,
		deps.Services.Notifications,
		deps.Services.Audit,
		opts...,
	), nil
}

// ProvideSender creates the delivery channel named by cfg.Channel.
func ProvideSender(cfg *NotificationConfig, logger *zap.Logger) (*SenderBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("notification config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	switch cfg.Channel {
	case notify.ChannelLog, "":
		return &SenderBundle{Sender: notify.NewLogSender(logger)}, nil
	case notify.ChannelLark:
		return &SenderBundle{Sender: notify.NewLarkSenderFromConfig(cfg.Lark, logger)}, nil
	case notify.ChannelNATS:
		conn, err := notify.ConnectNATS(cfg.NATS, logger)
		if err != nil {
			return nil, err
		}
		return &SenderBundle{
			Sender: notify.NewNATSSender(conn, cfg.NATS.Subject, logger),
			Conn:   conn,
		}, nil
	default:
		return nil, fmt.Errorf("unknown notification channel %q", cfg.Channel)
	}
}

// WorkerDeps holds dependencies required for creating workers.
type WorkerDeps struct {
	Repos    *RepositoryBundle
	Sender   port.Sender
	Recorder worker.DeliveryRecorder
	Config   *NotificationConfig
	Logger   *zap.Logger
}

// ProvideWorkers creates the worker manager with the outbox worker registered.
// Workers are not started.
func ProvideWorkers(deps *WorkerDeps) (*worker.Manager, error) {
	if deps == nil {
		return nil, fmt.Errorf("worker dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.Sender == nil {
		return nil, fmt.Errorf("sender is required")
	}
	if deps.Config == nil {
		return nil, fmt.Errorf("notification config is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	outboxCfg := worker.DefaultOutboxConfig()
	if deps.Config.PollInterval > 0 {
		outboxCfg.PollInterval = deps.Config.PollInterval
	}
	if deps.Config.BatchSize > 0 {
		outboxCfg.BatchSize = deps.Config.BatchSize
	}
	if deps.Config.MaxAttempts > 0 {
		outboxCfg.MaxAttempts = deps.Config.MaxAttempts
	}
	if deps.Config.SendTimeout > 0 {
		outboxCfg.SendTimeout = deps.Config.SendTimeout
	}

	manager := worker.NewManager(deps.Logger)
	if err := manager.Register(worker.NewOutboxWorker(outboxCfg, deps.Repos.Notifications, deps.Sender, deps.Recorder, deps.Logger)); err != nil {
		return nil, err
	}
	return manager, nil
}
