package bridge

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tyetech/hpe-application-automation-tools-plugin/internal/domain"
)

// fakeRemote — управляемый Octane сервер для тестов.
type fakeRemote struct {
	respond func(ctx context.Context, call int) ([]byte, error)

	active atomic.Int32
	peak   atomic.Int32

	mu      sync.Mutex
	calls   []time.Time
	configs []domain.ServerConfig
	results map[string][]byte
}

func (f *fakeRemote) Create(cfg domain.ServerConfig) RemoteClient {
	f.mu.Lock()
	f.configs = append(f.configs, cfg)
	f.mu.Unlock()
	return &fakeSession{remote: f}
}

func (f *fakeRemote) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeRemote) callTimes() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.calls...)
}

func (f *fakeRemote) createdConfigs() []domain.ServerConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ServerConfig(nil), f.configs...)
}

type fakeSession struct {
	remote *fakeRemote
}

func (s *fakeSession) GetAbridgedTasks(ctx context.Context, _, _ string) ([]byte, error) {
	f := s.remote
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		old := f.peak.Load()
		if n <= old || f.peak.CompareAndSwap(old, n) {
			break
		}
	}

	f.mu.Lock()
	call := len(f.calls)
	f.calls = append(f.calls, time.Now())
	f.mu.Unlock()

	return f.respond(ctx, call)
}

func (s *fakeSession) PutAbridgedResult(_ context.Context, _, taskID string, result []byte) error {
	f := s.remote
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.results == nil {
		f.results = make(map[string][]byte)
	}
	f.results[taskID] = result
	return nil
}

// blockUntilDone держит long-poll открытым до остановки клиента.
func blockUntilDone(ctx context.Context) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// fakeProcessor записывает выполненные задачи.
type fakeProcessor struct {
	fn func(task domain.Task) error

	mu    sync.Mutex
	tasks []domain.Task
	cfgs  []domain.ServerConfig
}

func (p *fakeProcessor) Process(_ context.Context, task domain.Task, _ ClientFactory, cfg domain.ServerConfig) error {
	p.mu.Lock()
	p.tasks = append(p.tasks, task)
	p.cfgs = append(p.cfgs, cfg)
	p.mu.Unlock()

	if p.fn != nil {
		return p.fn(task)
	}
	return nil
}

func (p *fakeProcessor) processed() []domain.Task {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Task(nil), p.tasks...)
}

// recordingDispatcher запоминает полученные batch.
type recordingDispatcher struct {
	mu      sync.Mutex
	batches [][]byte
	cfgs    []domain.ServerConfig
}

func (d *recordingDispatcher) Dispatch(_ context.Context, cfg domain.ServerConfig, raw []byte) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.batches = append(d.batches, raw)
	d.cfgs = append(d.cfgs, cfg)
	return 0
}

func (d *recordingDispatcher) received() ([][]byte, []domain.ServerConfig) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([][]byte(nil), d.batches...), append([]domain.ServerConfig(nil), d.cfgs...)
}

// fakeJournal запоминает финальные статусы задач.
type fakeJournal struct {
	mu       sync.Mutex
	received []string
	running  []string
	finished map[string]domain.TaskStatus
}

func (j *fakeJournal) RecordReceived(_ context.Context, task domain.Task, _ domain.ServerConfig) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.received = append(j.received, task.ID)
	return nil
}

func (j *fakeJournal) MarkRunning(_ context.Context, taskID string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.running = append(j.running, taskID)
	return nil
}

func (j *fakeJournal) MarkFinished(_ context.Context, taskID string, status domain.TaskStatus, _ string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.finished == nil {
		j.finished = make(map[string]domain.TaskStatus)
	}
	j.finished[taskID] = status
	return nil
}

func (j *fakeJournal) status(taskID string) domain.TaskStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.finished[taskID]
}

// fakeEvents запоминает опубликованные события.
type fakeEvents struct {
	mu     sync.Mutex
	events []domain.TaskEvent
}

func (e *fakeEvents) PublishTaskCompleted(_ context.Context, event domain.TaskEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return nil
}

func (e *fakeEvents) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.events)
}

// --- Helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testServerConfig() domain.ServerConfig {
	return domain.ServerConfig{
		Location:    "http://octane.test",
		SharedSpace: "1001",
		Abridged:    true,
		Username:    "bridge",
		Password:    "secret",
	}
}

func testIdentity() domain.Identity {
	return domain.Identity{InstanceID: "instance-1", SelfURL: "http://jenkins.test/"}
}

// waitFor ждёт выполнения условия или падает по timeout.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting: %s", msg)
}
