package scheduler

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/robfig/cron/v3"
)

// PollingTarget — polling loop, за которым следит Watchdog.
type PollingTarget interface {
	Enabled() bool
	OpenConnections() int
	PendingAttempts() int
	Kick()
}

// Watchdog перезапускает polling loop, если цепочка попыток оборвалась.
//
// Цепочка держится только на том, что каждая попытка запускает
// преемника. Если включённый клиент не имеет ни открытых long-poll,
// ни ожидающих попыток, цепочка потеряна и Watchdog запускает её заново.
type Watchdog struct {
	target   PollingTarget
	schedule string
	logger   *slog.Logger

	cron  *cron.Cron
	kicks atomic.Int64
}

// WatchdogConfig — конфигурация Watchdog.
type WatchdogConfig struct {
	Target   PollingTarget
	Schedule string // расписание проверок (default: "@every 1m")
	Logger   *slog.Logger
}

// NewWatchdog создаёт Watchdog. Проверки не начинаются до Start.
func NewWatchdog(cfg WatchdogConfig) (*Watchdog, error) {
	schedule := cfg.Schedule
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if err := ValidateSchedule(schedule); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	w := &Watchdog{
		target:   cfg.Target,
		schedule: schedule,
		logger:   logger,
		cron:     cron.New(cron.WithParser(cronParser)),
	}

	if _, err := w.cron.AddFunc(schedule, func() { w.Tick() }); err != nil {
		return nil, fmt.Errorf("add watchdog job: %w", err)
	}

	return w, nil
}

// Start запускает периодические проверки.
func (w *Watchdog) Start() {
	w.logger.Info("watchdog started", "schedule", w.schedule)
	w.cron.Start()
}

// Stop останавливает проверки и ждёт завершения текущей.
func (w *Watchdog) Stop() {
	<-w.cron.Stop().Done()
	w.logger.Info("watchdog stopped")
}

// Tick выполняет одну проверку. Возвращает true, если loop был перезапущен.
func (w *Watchdog) Tick() bool {
	if !w.target.Enabled() {
		return false
	}

	open := w.target.OpenConnections()
	pending := w.target.PendingAttempts()
	if open > 0 || pending > 0 {
		w.logger.Debug("polling loop alive", "open_connections", open, "pending_attempts", pending)
		return false
	}

	w.logger.Warn("polling loop is enabled but idle, restarting")
	w.kicks.Add(1)
	w.target.Kick()
	return true
}

// Kicks возвращает количество перезапусков.
func (w *Watchdog) Kicks() int64 {
	return w.kicks.Load()
}
