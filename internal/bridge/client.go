package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/tyetech/hpe-application-automation-tools-plugin/internal/domain"
	"github.com/tyetech/hpe-application-automation-tools-plugin/internal/telemetry"
)

// Default configuration values.
const (
	defaultConnectivityWorkers = 5
	defaultStopTimeout         = 5 * time.Second
)

// ErrAlreadyStarted — Start вызван повторно.
var ErrAlreadyStarted = errors.New("bridge client already started")

// Client — polling loop для одного Octane сервера.
//
// Два состояния:
//   - disabled — Location пустой, poll не выполняется
//   - active — Location задан, попытки poll перезапускают сами себя
//
// Каждая попытка захватывает снимок конфигурации в начале и работает
// только с ним; Update влияет лишь на следующие попытки.
type Client struct {
	config   atomic.Pointer[domain.ServerConfig]
	identity domain.Identity

	factory    ClientFactory
	dispatcher TaskDispatcher
	backoff    Backoff

	slots        *SlotPool
	connectivity *pool.Pool
	pending      atomic.Int32

	// Lifecycle
	logger      *slog.Logger
	metrics     *telemetry.Metrics
	stopTimeout time.Duration

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	stopped bool
}

// Config — конфигурация Client.
type Config struct {
	// Server — начальный снимок конфигурации сервера.
	Server domain.ServerConfig

	// Identity — идентичность этого CI хоста.
	Identity domain.Identity

	// Factory создаёт клиента Octane для снимка конфигурации.
	Factory ClientFactory

	// Dispatcher получает batch задач.
	Dispatcher TaskDispatcher

	// Backoff — задержки после ошибок (нулевые поля — default).
	Backoff Backoff

	// ConcurrentConnections — целевое количество long-poll (default: 1).
	ConcurrentConnections int

	// ConnectivityWorkers — размер пула попыток poll (default: 5).
	ConnectivityWorkers int

	// StopTimeout — сколько Stop ждёт завершения попыток (default: 5s).
	StopTimeout time.Duration

	Logger  *slog.Logger
	Metrics *telemetry.Metrics
}

// New создаёт новый Client. Poll не начинается до Start.
func New(cfg Config) *Client {
	workers := cfg.ConnectivityWorkers
	if workers <= 0 {
		workers = defaultConnectivityWorkers
	}

	stopTimeout := cfg.StopTimeout
	if stopTimeout <= 0 {
		stopTimeout = defaultStopTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		identity:     cfg.Identity,
		factory:      cfg.Factory,
		dispatcher:   cfg.Dispatcher,
		backoff:      cfg.Backoff.withDefaults(),
		slots:        NewSlotPool(cfg.ConcurrentConnections),
		connectivity: pool.New().WithMaxGoroutines(workers),
		logger:       logger,
		metrics:      cfg.Metrics,
		stopTimeout:  stopTimeout,
	}

	server := cfg.Server
	c.config.Store(&server)

	return c
}

// Start запускает polling, если сервер сконфигурирован.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.started = true
	c.mu.Unlock()

	cfg := c.Config()
	logger := telemetry.WithServer(c.logger, cfg.Location, cfg.SharedSpace)

	if !cfg.IsConfigured() {
		logger.Info("bridge client initialized in disconnected state")
		return nil
	}

	c.launch()
	logger.Info("bridge client initialized",
		"instance_id", c.identity.InstanceID,
		"concurrent_connections", c.slots.Target(),
	)
	return nil
}

// Stop останавливает polling.
//
// Прерывает backoff и текущие long-poll через context и ждёт их
// завершения не дольше StopTimeout.
func (c *Client) Stop() {
	c.mu.Lock()
	if !c.started || c.stopped {
		c.stopped = true
		c.mu.Unlock()
		return
	}
	c.stopped = true
	c.cancel()
	c.mu.Unlock()

	c.logger.Info("stopping bridge client...")

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		c.connectivity.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("bridge client stopped")
	case <-time.After(c.stopTimeout):
		c.logger.Warn("bridge client stop timed out", "timeout", c.stopTimeout)
	}
}

// Update атомарно заменяет снимок конфигурации.
//
// Если новый Location не пустой, запускается одна попытка poll
// (она ничего не делает, если слот уже занят). Текущие long-poll
// не прерываются и завершаются со старым снимком.
func (c *Client) Update(cfg domain.ServerConfig) {
	snapshot := cfg
	c.config.Store(&snapshot)

	logger := telemetry.WithServer(c.logger, snapshot.Location, snapshot.SharedSpace)

	if !snapshot.IsConfigured() {
		logger.Info("bridge disabled by configuration change")
		return
	}

	logger.Info("bridge updated", "abridged", snapshot.Abridged)
	c.launch()
}

// Kick запускает попытку poll, если сервер сконфигурирован.
func (c *Client) Kick() {
	if c.Config().IsConfigured() {
		c.launch()
	}
}

// Config возвращает текущий снимок конфигурации.
func (c *Client) Config() domain.ServerConfig {
	return *c.config.Load()
}

// Location возвращает адрес текущего сервера.
func (c *Client) Location() string {
	return c.Config().Location
}

// SharedSpace возвращает текущий shared space.
func (c *Client) SharedSpace() string {
	return c.Config().SharedSpace
}

// Username возвращает имя пользователя. Пароль наружу не отдаётся.
func (c *Client) Username() string {
	return c.Config().Username
}

// Enabled возвращает true, если polling включён текущей конфигурацией.
func (c *Client) Enabled() bool {
	return c.Config().PollingEnabled()
}

// OpenConnections возвращает количество открытых long-poll.
func (c *Client) OpenConnections() int {
	return c.slots.InUse()
}

// PendingAttempts возвращает количество запущенных, но не завершённых попыток
// (включая ожидающие в backoff).
func (c *Client) PendingAttempts() int {
	return int(c.pending.Load())
}

// Status — снимок состояния для внешнего наблюдения.
type Status struct {
	Location        string `json:"location"`
	SharedSpace     string `json:"shared_space"`
	Username        string `json:"username"`
	Enabled         bool   `json:"enabled"`
	OpenConnections int    `json:"open_connections"`
	PendingAttempts int    `json:"pending_attempts"`
	InstanceID      string `json:"instance_id"`
}

// Status возвращает текущее состояние клиента.
func (c *Client) Status() Status {
	cfg := c.Config()
	return Status{
		Location:        cfg.Location,
		SharedSpace:     cfg.SharedSpace,
		Username:        cfg.Username,
		Enabled:         cfg.PollingEnabled(),
		OpenConnections: c.slots.InUse(),
		PendingAttempts: c.PendingAttempts(),
		InstanceID:      c.identity.InstanceID,
	}
}

// launch отправляет попытку poll в пул connectivity.
//
// Отправка идёт из отдельной горутины: вызывающий (в том числе сама
// попытка, запускающая преемника) никогда не ждёт свободного воркера.
func (c *Client) launch() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started || c.stopped {
		return
	}

	ctx := c.ctx
	c.pending.Add(1)
	c.wg.Add(1)

	go c.connectivity.Go(func() {
		defer c.wg.Done()
		defer c.pending.Add(-1)
		c.attempt(ctx)
	})
}

// continuePolling запускает преемника, если polling включён и есть свободный слот.
func (c *Client) continuePolling() {
	if c.Config().PollingEnabled() && c.slots.HasCapacity() {
		c.launch()
	}
}

// attempt выполняет одну попытку poll.
func (c *Client) attempt(ctx context.Context) {
	cfg := c.Config()
	logger := telemetry.WithServer(c.logger, cfg.Location, cfg.SharedSpace)

	if !cfg.IsConfigured() {
		logger.Debug("bridge disabled, skipping poll attempt")
		return
	}

	if !c.slots.TryAcquire() {
		// Попытка, держащая слот, сама запустит преемника
		logger.Debug("connection slots busy, skipping poll attempt", "open_connections", c.slots.InUse())
		return
	}
	c.metrics.SetOpenConnections(c.slots.InUse())

	var released bool
	release := func() {
		if released {
			return
		}
		released = true
		c.slots.Release()
		c.metrics.SetOpenConnections(c.slots.InUse())
	}

	defer func() {
		if r := recover(); r != nil {
			release()
			logger.Error("poll attempt panicked",
				"panic", r,
				"stack", string(debug.Stack()),
			)
			c.recoverFromFailure(ctx, logger, fmt.Errorf("poll attempt panicked: %v", r))
		}
	}()

	logger.Info("connecting to Octane server",
		"instance_id", c.identity.InstanceID,
		"self_url", c.identity.SelfURL,
		"open_connections", c.slots.InUse(),
	)

	raw, err := c.factory.Create(cfg).GetAbridgedTasks(ctx, c.identity.InstanceID, c.identity.SelfURL)
	release()

	if err != nil {
		c.recoverFromFailure(ctx, logger, err)
		return
	}

	hasTasks := len(raw) > 0
	if hasTasks {
		c.metrics.ObservePoll("tasks")
		logger.Info("back from Octane server with some tasks")
	} else {
		c.metrics.ObservePoll("empty")
		logger.Info("back from Octane server with no tasks")
	}

	c.continuePolling()

	if hasTasks && c.dispatcher != nil {
		c.dispatcher.Dispatch(ctx, cfg, raw)
	}
}

// recoverFromFailure выдерживает backoff по виду ошибки и запускает преемника.
//
// Прерванный backoff логируется, но правило запуска преемника всё равно
// применяется: после Stop оно ничего не запустит.
func (c *Client) recoverFromFailure(ctx context.Context, logger *slog.Logger, err error) {
	kind := FailureKind(err)
	delay := c.backoff.Delay(err)
	c.metrics.ObservePoll(kind)

	logger.Error("connection to Octane server temporarily failed",
		"reason", kind,
		"error", err,
		"retry_in", delay,
	)

	if !sleep(ctx, delay) {
		logger.Info("interrupted while backing off, continue to re-connect")
	}

	c.continuePolling()
}
