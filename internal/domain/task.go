package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Task — одна задача, выданная Octane сервером через long-poll.
//
// Сервер присылает batch задач как JSON-массив объектов. Каждый объект
// описывает HTTP-запрос, который bridge должен выполнить на локальном
// CI хосте и вернуть результат обратно на сервер.
//
// Task не персистится: если процесс упал между получением и выполнением,
// задача теряется (сервер переиздаст её при необходимости).
type Task struct {
	// ID — идентификатор задачи на стороне сервера.
	ID string `json:"id"`

	// ServiceID — идентификатор сервиса-отправителя (возвращается в результате).
	ServiceID string `json:"serviceId,omitempty"`

	// Method — HTTP-метод. Пустой означает GET.
	Method string `json:"method,omitempty"`

	// URL — адрес ресурса на CI хосте (абсолютный или относительный путь).
	URL string `json:"url"`

	// Headers — заголовки запроса.
	Headers map[string]string `json:"headers,omitempty"`

	// Body — тело запроса как строка.
	Body string `json:"body,omitempty"`

	// Raw — исходный JSON-объект задачи, как он пришёл от сервера.
	Raw json.RawMessage `json:"-"`
}

// TaskResult — результат выполнения задачи, отправляемый на сервер.
type TaskResult struct {
	ID        string            `json:"id"`
	ServiceID string            `json:"serviceId,omitempty"`
	Status    int               `json:"status"`
	Headers   map[string]string `json:"headers,omitempty"`
	Body      string            `json:"body,omitempty"`
}

// ParseTaskBatch разбирает batch задач, полученный от сервера.
//
// Пустой payload (или пробелы) — валидный пустой batch.
// Некорректный JSON возвращает ErrTaskBatchParse; в этом случае
// ни одна задача не возвращается.
func ParseTaskBatch(raw []byte) ([]Task, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTaskBatchParse, err)
	}

	tasks := make([]Task, 0, len(items))
	for i, item := range items {
		var task Task
		if err := json.Unmarshal(item, &task); err != nil {
			return nil, fmt.Errorf("%w: task #%d: %v", ErrTaskBatchParse, i, err)
		}
		task.Raw = append(json.RawMessage(nil), item...)
		tasks = append(tasks, task)
	}

	return tasks, nil
}

// EffectiveMethod возвращает HTTP-метод задачи с учётом default.
func (t *Task) EffectiveMethod() string {
	if t.Method == "" {
		return "GET"
	}
	return t.Method
}
