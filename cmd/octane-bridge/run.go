package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/tyetech/hpe-application-automation-tools-plugin/internal/api"
	"github.com/tyetech/hpe-application-automation-tools-plugin/internal/bridge"
	"github.com/tyetech/hpe-application-automation-tools-plugin/internal/config"
	"github.com/tyetech/hpe-application-automation-tools-plugin/internal/identity"
	"github.com/tyetech/hpe-application-automation-tools-plugin/internal/mq"
	"github.com/tyetech/hpe-application-automation-tools-plugin/internal/mqm"
	"github.com/tyetech/hpe-application-automation-tools-plugin/internal/repo"
	"github.com/tyetech/hpe-application-automation-tools-plugin/internal/scheduler"
	"github.com/tyetech/hpe-application-automation-tools-plugin/internal/telemetry"
	"github.com/tyetech/hpe-application-automation-tools-plugin/internal/worker"
)

func newRunCmd(configFn func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the bridge daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// graceful shutdown
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			return runDaemon(ctx, configFn())
		},
	}
}

// lazySecrets открывает OS keyring при первом обращении.
// Без password_from_keyring keyring не нужен и не открывается.
type lazySecrets struct {
	once  sync.Once
	store *config.KeyringStore
	err   error
}

func (s *lazySecrets) Password(username string) (string, error) {
	s.once.Do(func() {
		s.store, s.err = config.OpenKeyring()
	})
	if s.err != nil {
		return "", s.err
	}
	return s.store.Password(username)
}

func runDaemon(ctx context.Context, configPath string) error {
	v := config.New(configPath)
	cfg, err := config.Read(v)
	if err != nil {
		return err
	}

	// Инициализируем structured logging
	logger := telemetry.SetupLogger(telemetry.LogOptions{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	logger.Info("starting octane-bridge", "version", version)

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)

	id, err := identity.LoadOrCreate(cfg.Identity.InstanceIDFile, cfg.Identity.SelfURL)
	if err != nil {
		return fmt.Errorf("identity: %w", err)
	}
	logger.Info("identity loaded", "instance_id", id.InstanceID, "self_url", id.SelfURL)

	secrets := &lazySecrets{}
	snapshot, err := cfg.ServerSnapshot(secrets)
	if err != nil {
		return err
	}

	// Журнал задач (опционально)
	var journal bridge.Journal
	var journalReader api.JournalReader
	if cfg.Journal.DSN != "" {
		pool, err := repo.NewPool(ctx, cfg.Journal.DSN)
		if err != nil {
			return fmt.Errorf("journal: %w", err)
		}
		defer pool.Close()

		journalRepo := repo.NewJournalRepo(pool)
		if err := journalRepo.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("journal schema: %w", err)
		}
		abandonJournal(ctx, journalRepo, logger)

		journal = journalRepo
		journalReader = journalRepo
		logger.Info("task journal enabled")
	}

	// События о задачах (опционально)
	var events bridge.EventSink
	if cfg.Events.AMQPURL != "" {
		conn, err := mq.NewConnection(cfg.Events.AMQPURL, logger)
		if err != nil {
			logger.Warn("RabbitMQ not available, task events disabled", "error", err)
		} else {
			defer conn.Close()

			if err := mq.SetupTopology(ctx, conn); err != nil {
				logger.Warn("failed to setup topology", "error", err)
			}
			events = mq.NewPublisher(conn, logger)
			logger.Info("task events enabled", "topology", mq.TopologyInfo())
		}
	}

	factory := mqm.NewFactory(mqm.Options{
		PollTimeout: cfg.Bridge.PollTimeout,
		Logger:      logger,
	})

	relay := worker.NewRelay(worker.RelayConfig{
		Identity: id,
		LocalURL: cfg.Local.URL,
		Timeout:  cfg.Local.Timeout,
		Logger:   logger,
	})

	dispatcher := bridge.NewDispatcher(bridge.DispatcherConfig{
		Processor:  relay,
		Factory:    factory,
		Workers:    cfg.Bridge.TaskWorkers,
		Journal:    journal,
		Events:     events,
		InstanceID: id.InstanceID,
		Logger:     logger,
		Metrics:    metrics,
	})

	client := bridge.New(bridge.Config{
		Server:                snapshot,
		Identity:              id,
		Factory:               factory,
		Dispatcher:            dispatcher,
		Backoff:               cfg.Backoff(),
		ConcurrentConnections: cfg.Bridge.ConcurrentConnections,
		ConnectivityWorkers:   cfg.Bridge.ConnectivityWorkers,
		StopTimeout:           cfg.Bridge.StopTimeout,
		Logger:                logger,
		Metrics:               metrics,
	})

	if err := client.Start(ctx); err != nil {
		return err
	}

	// Hot reload: новый снимок уходит в bridge, остальные секции требуют рестарта
	config.Watch(v, logger, func(next *config.Config) {
		snap, err := next.ServerSnapshot(secrets)
		if err != nil {
			logger.Error("failed to build server configuration", "error", err)
			return
		}
		client.Update(snap)
	})

	var watchdog *scheduler.Watchdog
	if cfg.Watchdog.Enabled {
		watchdog, err = scheduler.NewWatchdog(scheduler.WatchdogConfig{
			Target:   client,
			Schedule: cfg.Watchdog.Schedule,
			Logger:   logger,
		})
		if err != nil {
			client.Stop()
			return fmt.Errorf("watchdog: %w", err)
		}
		watchdog.Start()
	}

	server := api.NewServer(cfg.API.Addr, api.NewHandler(api.Config{
		Bridge:   client,
		Journal:  journalReader,
		Gatherer: prometheus.DefaultGatherer,
		Logger:   logger,
	}))

	serverErr := make(chan error, 1)
	go func() { serverErr <- server.Run(ctx) }()

	// Ожидаем сигнал завершения
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-serverErr:
		logger.Error("status server stopped", "error", err)
	}

	if watchdog != nil {
		watchdog.Stop()
	}
	client.Stop()
	// Задачи живут на контексте dispatcher: сигнал их не отменяет,
	// результаты уходят на сервер, пока не истечёт stop_timeout
	if !dispatcher.Stop(cfg.Bridge.StopTimeout) {
		logger.Warn("tasks cancelled after stop timeout", "timeout", cfg.Bridge.StopTimeout)
	}

	logger.Info("octane-bridge stopped")
	return err
}

// abandonJournal помечает задачи прошлого запуска как ABANDONED.
// Повторно выполнять их нельзя: Octane уже не ждёт результатов.
func abandonJournal(ctx context.Context, journal *repo.JournalRepo, logger *slog.Logger) {
	abandoned, err := journal.AbandonUnfinished(ctx)
	if err != nil {
		logger.Error("failed to abandon unfinished tasks", "error", err)
		return
	}
	for _, entry := range abandoned {
		logger.Warn("task from previous run abandoned",
			"task_id", entry.TaskID,
			"method", entry.Method,
			"url", entry.URL,
			"received_at", entry.ReceivedAt,
		)
	}
}
