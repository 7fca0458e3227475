package domain

// TaskStatus — статус задачи в журнале bridge.
//
// Жизненный цикл:
//
//	RECEIVED → RUNNING → SUCCEEDED
//	                   ↘ FAILED
//	(или) → ABANDONED (процесс упал до завершения задачи)
type TaskStatus string

const (
	// TaskStatusReceived — задача получена и поставлена в пул.
	TaskStatusReceived TaskStatus = "RECEIVED"

	// TaskStatusRunning — задача выполняется воркером.
	TaskStatusRunning TaskStatus = "RUNNING"

	// TaskStatusSucceeded — результат доставлен на сервер.
	TaskStatusSucceeded TaskStatus = "SUCCEEDED"

	// TaskStatusFailed — выполнение или доставка результата не удались.
	TaskStatusFailed TaskStatus = "FAILED"

	// TaskStatusAbandoned — задача потеряна при рестарте процесса.
	TaskStatusAbandoned TaskStatus = "ABANDONED"
)

// IsTerminal возвращает true, если статус финальный.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusSucceeded, TaskStatusFailed, TaskStatusAbandoned:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление TaskStatus.
func (s TaskStatus) String() string {
	return string(s)
}
