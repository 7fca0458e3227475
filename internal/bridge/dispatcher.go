package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/tyetech/hpe-application-automation-tools-plugin/internal/domain"
	"github.com/tyetech/hpe-application-automation-tools-plugin/internal/telemetry"
)

// DefaultTaskWorkers — размер пула воркеров задач.
const DefaultTaskWorkers = 30

// Dispatcher разбирает batch задач и выполняет каждую задачу в пуле воркеров.
//
// Гарантии:
//   - каждая задача batch отправляется в пул ровно один раз
//   - порядок отправки сохраняется, порядок выполнения — нет
//   - ошибка или паника одной задачи не влияет на остальные
//   - retry нет: задача выполняется один раз
//   - Dispatch не ждёт воркеров: задачи встают в очередь, из которой
//     их забирает feeder
type Dispatcher struct {
	processor Processor
	factory   ClientFactory
	journal   Journal
	events    EventSink
	workers   int

	instanceID string

	pool *pool.Pool

	// ctx задач живёт до Stop диспетчера, а не до остановки poll.
	ctx    context.Context
	cancel context.CancelFunc

	logger  *slog.Logger
	metrics *telemetry.Metrics

	mu      sync.Mutex
	queue   []queuedTask
	stopped bool

	wake       chan struct{}
	feederDone chan struct{}
	drained    chan struct{}
	stopOnce   sync.Once
}

// queuedTask — задача со снимком конфигурации, с которым она пришла.
type queuedTask struct {
	cfg  domain.ServerConfig
	task domain.Task
}

// DispatcherConfig — конфигурация Dispatcher.
type DispatcherConfig struct {
	Processor Processor
	Factory   ClientFactory

	// Workers — размер пула (default: 30).
	Workers int

	// Journal и Events опциональны.
	Journal Journal
	Events  EventSink

	// InstanceID попадает в события о задачах.
	InstanceID string

	Logger  *slog.Logger
	Metrics *telemetry.Metrics
}

// NewDispatcher создаёт Dispatcher и запускает feeder очереди.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultTaskWorkers
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Dispatcher{
		processor:  cfg.Processor,
		factory:    cfg.Factory,
		journal:    cfg.Journal,
		events:     cfg.Events,
		workers:    workers,
		instanceID: cfg.InstanceID,
		pool:       pool.New().WithMaxGoroutines(workers),
		ctx:        ctx,
		cancel:     cancel,
		logger:     logger,
		metrics:    cfg.Metrics,
		wake:       make(chan struct{}, 1),
		feederDone: make(chan struct{}),
		drained:    make(chan struct{}),
	}
	go d.feed()
	return d
}

// Workers возвращает размер пула.
func (d *Dispatcher) Workers() int {
	return d.workers
}

// Backlog возвращает количество задач, которые ждут свободного воркера.
func (d *Dispatcher) Backlog() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Dispatch разбирает batch и ставит каждую задачу в очередь пула.
//
// Ошибка разбора логируется и приводит к нулю отправленных задач.
// Вызов не ждёт воркеров. ctx попытки poll задачам не передаётся:
// задача, полученная от сервера, выполняется и после остановки poll.
func (d *Dispatcher) Dispatch(_ context.Context, cfg domain.ServerConfig, raw []byte) int {
	logger := telemetry.WithServer(d.logger, cfg.Location, cfg.SharedSpace)

	tasks, err := domain.ParseTaskBatch(raw)
	if err != nil {
		d.metrics.ObserveParseFailure()
		logger.Error("failed to process tasks", "error", err)
		return 0
	}
	if len(tasks) == 0 {
		return 0
	}

	if d.isStopped() {
		logger.Warn("dispatcher stopped, dropping tasks", "count", len(tasks))
		return 0
	}

	// Запись в журнал до постановки в очередь: MarkRunning не обгонит RecordReceived
	for _, task := range tasks {
		d.recordReceived(logger, task, cfg)
	}

	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		logger.Warn("dispatcher stopped, dropping tasks", "count", len(tasks))
		return 0
	}
	for _, task := range tasks {
		d.queue = append(d.queue, queuedTask{cfg: cfg, task: task})
	}
	backlog := len(d.queue)
	d.mu.Unlock()
	d.signal()

	logger.Info("going to process tasks", "count", len(tasks), "backlog", backlog)
	d.metrics.ObserveDispatched(len(tasks))
	return len(tasks)
}

func (d *Dispatcher) isStopped() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopped
}

func (d *Dispatcher) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// feed переносит задачи из очереди в пул. Блокируется на pool.Go,
// когда все воркеры заняты, вместо вызывающего Dispatch.
func (d *Dispatcher) feed() {
	defer close(d.feederDone)

	for {
		d.mu.Lock()
		batch := d.queue
		d.queue = nil
		stopped := d.stopped
		d.mu.Unlock()

		for i, item := range batch {
			if d.ctx.Err() != nil {
				// Stop истёк: оставшиеся задачи в журнале останутся RECEIVED
				d.logger.Warn("dispatcher stopped, dropping queued tasks", "count", len(batch)-i)
				break
			}
			d.pool.Go(func() {
				d.execute(item.cfg, item.task)
			})
		}

		// После stopped очередь больше не пополняется
		if stopped {
			return
		}

		<-d.wake
	}
}

// execute выполняет одну задачу на воркере.
func (d *Dispatcher) execute(cfg domain.ServerConfig, task domain.Task) {
	ctx := d.ctx
	logger := telemetry.WithTaskID(telemetry.WithServer(d.logger, cfg.Location, cfg.SharedSpace), task.ID)
	start := time.Now()

	status := domain.TaskStatusSucceeded
	var errMsg string

	defer func() {
		if r := recover(); r != nil {
			status = domain.TaskStatusFailed
			errMsg = fmt.Sprintf("panic: %v", r)
			logger.Error("task panicked",
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
		d.finish(ctx, logger, cfg, task, status, errMsg, time.Since(start))
	}()

	if d.journal != nil {
		if err := d.journal.MarkRunning(ctx, task.ID); err != nil {
			logger.Warn("failed to journal task start", "error", err)
		}
	}

	logger.Debug("task started", "method", task.EffectiveMethod(), "url", task.URL)

	if err := d.processor.Process(ctx, task, d.factory, cfg); err != nil {
		status = domain.TaskStatusFailed
		errMsg = err.Error()
		if !errors.Is(err, domain.ErrTaskExecution) {
			err = fmt.Errorf("%w: %v", domain.ErrTaskExecution, err)
		}
		logger.Error("task failed", "error", err)
	}
}

// finish фиксирует результат задачи в журнале, метриках и событиях.
func (d *Dispatcher) finish(ctx context.Context, logger *slog.Logger, cfg domain.ServerConfig, task domain.Task, status domain.TaskStatus, errMsg string, elapsed time.Duration) {
	d.metrics.ObserveTask(status.String(), elapsed)

	if status == domain.TaskStatusSucceeded {
		logger.Info("task succeeded", "duration", elapsed)
	}

	if d.journal != nil {
		if err := d.journal.MarkFinished(ctx, task.ID, status, errMsg); err != nil {
			logger.Warn("failed to journal task result", "error", err)
		}
	}

	if d.events != nil {
		event := domain.TaskEvent{
			TaskID:      task.ID,
			ServiceID:   task.ServiceID,
			InstanceID:  d.instanceID,
			Location:    cfg.Location,
			SharedSpace: cfg.SharedSpace,
			Status:      status,
			Error:       errMsg,
			Duration:    elapsed,
			FinishedAt:  time.Now(),
		}
		if err := d.events.PublishTaskCompleted(ctx, event); err != nil {
			// Не критично — событие информационное
			logger.Warn("failed to publish task event", "error", err)
		}
	}
}

// recordReceived пишет задачу в журнал до отправки в пул.
func (d *Dispatcher) recordReceived(logger *slog.Logger, task domain.Task, cfg domain.ServerConfig) {
	if d.journal == nil {
		return
	}
	if err := d.journal.RecordReceived(d.ctx, task, cfg); err != nil {
		logger.Warn("failed to journal received task", "task_id", task.ID, "error", err)
	}
}

// Stop запрещает новые задачи и ждёт завершения очереди и текущих задач
// не дольше timeout. Контекст задач отменяется только после этого ожидания.
// Возвращает false, если timeout истёк раньше.
func (d *Dispatcher) Stop(timeout time.Duration) bool {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.stopped = true
		d.mu.Unlock()
		d.signal()

		go func() {
			<-d.feederDone
			d.pool.Wait()
			close(d.drained)
		}()
	})

	select {
	case <-d.drained:
		d.cancel()
		d.logger.Info("task dispatcher stopped")
		return true
	case <-time.After(timeout):
		d.cancel()
		d.logger.Warn("task dispatcher stop timed out, cancelling running tasks", "timeout", timeout)
		return false
	}
}
