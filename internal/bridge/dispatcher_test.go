package bridge

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tyetech/hpe-application-automation-tools-plugin/internal/domain"
	"github.com/tyetech/hpe-application-automation-tools-plugin/internal/telemetry"
)

const threeTasks = `[
	{"id": "t1", "url": "/job/a/build", "method": "POST"},
	{"id": "t2", "url": "/job/b/api/json"},
	{"id": "t3", "url": "/job/c/api/json"}
]`

func TestDispatcher_SubmitsEachTaskOnce(t *testing.T) {
	processor := &fakeProcessor{}
	d := NewDispatcher(DispatcherConfig{
		Processor: processor,
		Logger:    discardLogger(),
	})

	n := d.Dispatch(context.Background(), testServerConfig(), []byte(threeTasks))
	if n != 3 {
		t.Fatalf("expected 3 submissions, got %d", n)
	}
	if !d.Stop(2 * time.Second) {
		t.Fatal("dispatcher should stop in time")
	}

	tasks := processor.processed()
	if len(tasks) != 3 {
		t.Fatalf("expected 3 processed tasks, got %d", len(tasks))
	}

	seen := make(map[string]int)
	for _, task := range tasks {
		seen[task.ID]++
	}
	for _, id := range []string{"t1", "t2", "t3"} {
		if seen[id] != 1 {
			t.Errorf("task %s processed %d times, want 1", id, seen[id])
		}
	}

	// Processor получает снимок конфигурации, с которым пришёл batch
	for _, cfg := range processor.cfgs {
		if cfg.Location != "http://octane.test" {
			t.Errorf("processor got wrong config: %s", cfg)
		}
	}
}

func TestDispatcher_FailuresAreIsolated(t *testing.T) {
	processor := &fakeProcessor{
		fn: func(task domain.Task) error {
			switch task.ID {
			case "t2":
				return errors.New("local CI returned garbage")
			case "t3":
				panic("processor bug")
			}
			return nil
		},
	}
	journal := &fakeJournal{}
	events := &fakeEvents{}

	d := NewDispatcher(DispatcherConfig{
		Processor:  processor,
		Journal:    journal,
		Events:     events,
		InstanceID: "instance-1",
		Logger:     discardLogger(),
	})

	d.Dispatch(context.Background(), testServerConfig(), []byte(threeTasks))
	d.Stop(2 * time.Second)

	if len(processor.processed()) != 3 {
		t.Fatalf("all siblings should run, got %d", len(processor.processed()))
	}

	want := map[string]domain.TaskStatus{
		"t1": domain.TaskStatusSucceeded,
		"t2": domain.TaskStatusFailed,
		"t3": domain.TaskStatusFailed,
	}
	for id, status := range want {
		if got := journal.status(id); got != status {
			t.Errorf("task %s: status %s, want %s", id, got, status)
		}
	}
	if len(journal.received) != 3 || len(journal.running) != 3 {
		t.Errorf("journal should see 3 received / 3 running, got %d / %d", len(journal.received), len(journal.running))
	}
	if events.count() != 3 {
		t.Errorf("expected 3 events, got %d", events.count())
	}
	if events.events[0].InstanceID != "instance-1" {
		t.Errorf("event should carry instance id, got %q", events.events[0].InstanceID)
	}
}

func TestDispatcher_MalformedBatch(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)
	processor := &fakeProcessor{}

	d := NewDispatcher(DispatcherConfig{
		Processor: processor,
		Logger:    discardLogger(),
		Metrics:   metrics,
	})

	n := d.Dispatch(context.Background(), testServerConfig(), []byte(`{{not json`))
	if n != 0 {
		t.Errorf("malformed batch should dispatch nothing, got %d", n)
	}
	d.Stop(time.Second)

	if len(processor.processed()) != 0 {
		t.Error("processor must not be called for malformed batch")
	}
	if got := testutil.ToFloat64(metrics.BatchParseFails); got != 1 {
		t.Errorf("parse failures = %v, want 1", got)
	}
}

func TestDispatcher_BoundedWorkers(t *testing.T) {
	var current, peak atomic.Int32
	processor := &fakeProcessor{
		fn: func(domain.Task) error {
			n := current.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			current.Add(-1)
			return nil
		},
	}

	d := NewDispatcher(DispatcherConfig{
		Processor: processor,
		Workers:   2,
		Logger:    discardLogger(),
	})

	batch := `[{"id":"1"},{"id":"2"},{"id":"3"},{"id":"4"},{"id":"5"},{"id":"6"}]`
	if n := d.Dispatch(context.Background(), testServerConfig(), []byte(batch)); n != 6 {
		t.Fatalf("expected 6 submissions, got %d", n)
	}
	d.Stop(2 * time.Second)

	if peak.Load() > 2 {
		t.Errorf("peak concurrent tasks %d exceeds pool size 2", peak.Load())
	}
	if len(processor.processed()) != 6 {
		t.Errorf("expected 6 processed, got %d", len(processor.processed()))
	}
}

func TestDispatcher_StoppedDropsTasks(t *testing.T) {
	processor := &fakeProcessor{}
	d := NewDispatcher(DispatcherConfig{Processor: processor, Logger: discardLogger()})
	d.Stop(time.Second)

	if n := d.Dispatch(context.Background(), testServerConfig(), []byte(threeTasks)); n != 0 {
		t.Errorf("stopped dispatcher should not accept tasks, got %d", n)
	}
}

func TestDispatcher_DefaultWorkers(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{Processor: &fakeProcessor{}})
	if d.Workers() != DefaultTaskWorkers {
		t.Errorf("Workers() = %d, want %d", d.Workers(), DefaultTaskWorkers)
	}
	d.Stop(time.Second)
}

// gatedProcessor держит задачу до закрытия release и отправляет результат,
// только если контекст задачи ещё жив.
type gatedProcessor struct {
	started chan struct{}
	release chan struct{}
}

func newGatedProcessor() *gatedProcessor {
	return &gatedProcessor{started: make(chan struct{}, 16), release: make(chan struct{})}
}

func (p *gatedProcessor) Process(ctx context.Context, task domain.Task, factory ClientFactory, cfg domain.ServerConfig) error {
	p.started <- struct{}{}
	select {
	case <-p.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return factory.Create(cfg).PutAbridgedResult(ctx, "instance-1", task.ID, []byte(`{"status":200}`))
}

func TestDispatcher_DispatchDoesNotWaitForWorkers(t *testing.T) {
	processor := newGatedProcessor()
	d := NewDispatcher(DispatcherConfig{
		Processor: processor,
		Factory:   &fakeRemote{},
		Workers:   1,
		Logger:    discardLogger(),
	})

	for i := 0; i < 3; i++ {
		start := time.Now()
		if n := d.Dispatch(context.Background(), testServerConfig(), []byte(threeTasks)); n != 3 {
			t.Fatalf("batch %d: expected 3 accepted, got %d", i, n)
		}
		if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
			t.Errorf("batch %d: Dispatch took %v with busy workers", i, elapsed)
		}
	}

	<-processor.started

	// Feeder занят первым batch и ждёт воркера, новый batch остаётся в очереди
	before := d.Backlog()
	d.Dispatch(context.Background(), testServerConfig(), []byte(threeTasks))
	if got := d.Backlog(); got != before+3 {
		t.Errorf("backlog = %d, want %d while the only worker is busy", got, before+3)
	}

	close(processor.release)
	if !d.Stop(2 * time.Second) {
		t.Fatal("dispatcher should drain the backlog after workers are released")
	}
	if d.Backlog() != 0 {
		t.Errorf("backlog should be empty after Stop, got %d", d.Backlog())
	}
}

func TestDispatcher_StopLetsRunningTaskPostResult(t *testing.T) {
	processor := newGatedProcessor()
	remote := &fakeRemote{}
	journal := &fakeJournal{}
	d := NewDispatcher(DispatcherConfig{
		Processor: processor,
		Factory:   remote,
		Journal:   journal,
		Logger:    discardLogger(),
	})

	d.Dispatch(context.Background(), testServerConfig(), []byte(`[{"id":"t1","url":"/job/a/build","method":"POST"}]`))
	<-processor.started

	stopped := make(chan bool, 1)
	go func() { stopped <- d.Stop(2 * time.Second) }()

	// Stop уже начат, а задача ещё выполняется
	time.Sleep(50 * time.Millisecond)
	close(processor.release)

	if !<-stopped {
		t.Fatal("Stop should finish once the running task completes")
	}
	if got := journal.status("t1"); got != domain.TaskStatusSucceeded {
		t.Errorf("task status = %s, want %s", got, domain.TaskStatusSucceeded)
	}
	remote.mu.Lock()
	_, posted := remote.results["t1"]
	remote.mu.Unlock()
	if !posted {
		t.Error("result of a task started before Stop should reach the server")
	}
}

func TestDispatcher_StopTimeoutCancelsTasks(t *testing.T) {
	processor := newGatedProcessor()
	journal := &fakeJournal{}
	d := NewDispatcher(DispatcherConfig{
		Processor: processor,
		Factory:   &fakeRemote{},
		Journal:   journal,
		Logger:    discardLogger(),
	})

	d.Dispatch(context.Background(), testServerConfig(), []byte(`[{"id":"stuck"}]`))
	<-processor.started

	if d.Stop(100 * time.Millisecond) {
		t.Fatal("Stop should report timeout while the task is stuck")
	}
	waitFor(t, time.Second, func() bool {
		return journal.status("stuck") == domain.TaskStatusFailed
	}, "stuck task cancelled after stop timeout")
}
