package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/acarcay/voice-agent/internal/config"
	"github.com/acarcay/voice-agent/internal/infra/db"
	"github.com/acarcay/voice-agent/internal/infra/redis"
	"github.com/acarcay/voice-agent/internal/notify"
	notifyMock "github.com/acarcay/voice-agent/internal/notify/mock"
	"github.com/acarcay/voice-agent/internal/orchestrator"
	"github.com/acarcay/voice-agent/internal/queue"
	"github.com/acarcay/voice-agent/internal/repository"
	pgrepo "github.com/acarcay/voice-agent/internal/repository/postgres"
	scyllarepo "github.com/acarcay/voice-agent/internal/repository/scylla"
	"github.com/acarcay/voice-agent/internal/rooms"
	roomsMock "github.com/acarcay/voice-agent/internal/rooms/mock"
	appointmentsvc "github.com/acarcay/voice-agent/internal/service/appointment"
	"github.com/acarcay/voice-agent/internal/state"
	"github.com/acarcay/voice-agent/internal/telephony"
	telephonyMock "github.com/acarcay/voice-agent/internal/telephony/mock"
	"github.com/acarcay/voice-agent/pkg/logger"
)

// Container wires together shared infrastructure dependencies.
type Container struct {
	Config *config.Config
	Logger *logger.Logger

	Postgres *db.Postgres
	Scylla   *db.Scylla
	Redis    *redis.Client
	Kafka    *queue.Kafka

	// lazily initialised components
	components struct {
		once         sync.Once
		repositories *repositories
		stateStores  *stateStores
		dispatchers  *dispatchers
		providers    *providers
		senders      *senders
		notifier     notify.Notifier
		appointments *appointmentsvc.Service
		orchestrator *orchestrator.Orchestrator
	}
}

type repositories struct {
	Appointments     repository.AppointmentRepository
	CallLogs         repository.CallLogStore
	NotificationLogs repository.NotificationLogRepository
}

type stateStores struct {
	Manager *state.Manager
	Locker  state.Locker
}

type dispatchers struct {
	Notifications *queue.NotificationDispatcher
}

type providers struct {
	Rooms     rooms.Provisioner
	Telephony telephony.Provider
}

type senders struct {
	SMS   notify.SMSSender
	Email notify.EmailSender
}

// Build constructs a container for the given configuration path.
func Build(ctx context.Context, configPath string) (*Container, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	lg, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, err
	}

	pg, err := db.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("bootstrap postgres: %w", err)
	}

	scylla, err := db.NewScylla(cfg.Scylla)
	if err != nil {
		return nil, fmt.Errorf("bootstrap scylla: %w", err)
	}

	redisClient, err := redis.NewClient(cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("bootstrap redis: %w", err)
	}

	kafka, err := queue.NewKafka(cfg.Kafka)
	if err != nil {
		return nil, fmt.Errorf("bootstrap kafka: %w", err)
	}

	return &Container{
		Config:   cfg,
		Logger:   lg,
		Postgres: pg,
		Scylla:   scylla,
		Redis:    redisClient,
		Kafka:    kafka,
	}, nil
}

func (c *Container) initComponents() {
	c.components.once.Do(func() {
		repos := &repositories{
			Appointments:     pgrepo.NewAppointmentRepository(c.Postgres.DB()),
			CallLogs:         scyllarepo.NewCallLogStore(c.Scylla.Session()),
			NotificationLogs: pgrepo.NewNotificationLogRepository(c.Postgres.DB()),
		}

		stores := &stateStores{
			Manager: state.NewManager(c.Redis.Inner(), int64(c.Config.Cache.EventLogMax)),
			Locker:  state.NewRedisLocker(c.Redis.Inner(), c.Config.Orchestrator.LockTTL, c.Logger),
		}

		disp := &dispatchers{
			Notifications: queue.NewNotificationDispatcher(c.Kafka, c.Config.Kafka.NotificationsTopic),
		}

		var roomProvisioner rooms.Provisioner
		if c.Config.Room.ServiceURL != "" {
			roomProvisioner = rooms.NewHTTPProvisioner(c.Config.Room)
		} else {
			roomProvisioner = roomsMock.NewProvisioner()
		}

		prov := &providers{
			Rooms:     roomProvisioner,
			Telephony: telephonyMock.NewProvider(c.Config.CallBridge),
		}

		snd := &senders{
			SMS:   notifyMock.NewSMSSender(c.Logger),
			Email: notifyMock.NewEmailSender(c.Logger),
		}

		notifier := notify.NewQueueNotifier(disp.Notifications)

		c.components.repositories = repos
		c.components.stateStores = stores
		c.components.dispatchers = disp
		c.components.providers = prov
		c.components.senders = snd
		c.components.notifier = notifier
		c.components.appointments = appointmentsvc.NewService(
			repos.Appointments,
			repos.CallLogs,
			repos.NotificationLogs,
			stores.Manager,
			stores.Manager,
			stores.Manager,
			stores.Manager,
			c.Config.Cache.AppointmentTTL,
		)
		c.components.orchestrator = orchestrator.New(
			orchestrator.ConfigFrom(c.Config),
			prov.Rooms,
			prov.Telephony,
			repos.Appointments,
			repos.CallLogs,
			stores.Manager,
			stores.Manager,
			stores.Manager,
			stores.Locker,
			notifier,
			c.Logger,
		)
	})
}

// Repositories exposes initialized repositories.
func (c *Container) Repositories() *repositories {
	c.initComponents()
	return c.components.repositories
}

// State exposes the Redis-backed cache, event log, metrics, and locker.
func (c *Container) State() *stateStores {
	c.initComponents()
	return c.components.stateStores
}

// Dispatchers exposes Kafka dispatchers.
func (c *Container) Dispatchers() *dispatchers {
	c.initComponents()
	return c.components.dispatchers
}

// Providers exposes external providers.
func (c *Container) Providers() *providers {
	c.initComponents()
	return c.components.providers
}

// Senders exposes the delivery channels used by the notification worker.
func (c *Container) Senders() *senders {
	c.initComponents()
	return c.components.senders
}

// Notifier exposes the queue-backed backup notifier.
func (c *Container) Notifier() notify.Notifier {
	c.initComponents()
	return c.components.notifier
}

// Appointments exposes the appointment service.
func (c *Container) Appointments() *appointmentsvc.Service {
	c.initComponents()
	return c.components.appointments
}

// Orchestrator exposes the call orchestrator.
func (c *Container) Orchestrator() *orchestrator.Orchestrator {
	c.initComponents()
	return c.components.orchestrator
}

// EnsureTopics creates the Kafka topics this deployment uses.
func (c *Container) EnsureTopics(ctx context.Context) error {
	return c.Kafka.EnsureTopics(ctx, []string{c.Config.Kafka.NotificationsTopic}, 3, 1)
}

// Close releases all held resources.
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	if c.components.dispatchers != nil && c.components.dispatchers.Notifications != nil {
		if err := c.components.dispatchers.Notifications.Close(); err != nil {
			errs = append(errs, fmt.Errorf("notification dispatcher close: %w", err))
		}
	}
	if c.Kafka != nil {
		if err := c.Kafka.Close(); err != nil {
			errs = append(errs, fmt.Errorf("kafka close: %w", err))
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if c.Scylla != nil {
		if err := c.Scylla.Close(); err != nil {
			errs = append(errs, fmt.Errorf("scylla close: %w", err))
		}
	}
	if c.Postgres != nil {
		if err := c.Postgres.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("postgres close: %w", err))
		}
	}
	if c.Logger != nil {
		c.Logger.Sync()
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
