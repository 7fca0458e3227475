package bridge

import (
	"context"

	"github.com/tyetech/hpe-application-automation-tools-plugin/internal/domain"
)

// RemoteClient — аутентифицированный клиент Octane сервера.
//
// Ошибки GetAbridgedTasks оборачивают domain.ErrAuthentication,
// domain.ErrTemporarilyUnavailable, либо считаются транспортными.
type RemoteClient interface {
	// GetAbridgedTasks выполняет long-poll и возвращает сырой batch задач.
	// Пустой ответ означает "работы нет".
	GetAbridgedTasks(ctx context.Context, instanceID, selfURL string) ([]byte, error)

	// PutAbridgedResult отправляет результат выполнения задачи.
	PutAbridgedResult(ctx context.Context, instanceID, taskID string, result []byte) error
}

// ClientFactory создаёт RemoteClient для снимка конфигурации.
type ClientFactory interface {
	Create(cfg domain.ServerConfig) RemoteClient
}

// Processor выполняет одну задачу.
type Processor interface {
	Process(ctx context.Context, task domain.Task, factory ClientFactory, cfg domain.ServerConfig) error
}

// TaskDispatcher принимает batch, полученный от сервера.
// Возвращает количество принятых задач. Не должен ждать воркеров:
// вызов идёт из горутины пула connectivity.
type TaskDispatcher interface {
	Dispatch(ctx context.Context, cfg domain.ServerConfig, raw []byte) int
}

// Journal фиксирует жизненный цикл задач (опционально).
type Journal interface {
	RecordReceived(ctx context.Context, task domain.Task, cfg domain.ServerConfig) error
	MarkRunning(ctx context.Context, taskID string) error
	MarkFinished(ctx context.Context, taskID string, status domain.TaskStatus, errMsg string) error
}

// EventSink публикует события о завершённых задачах (опционально).
type EventSink interface {
	PublishTaskCompleted(ctx context.Context, event domain.TaskEvent) error
}
