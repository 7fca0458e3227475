package domain

import "time"

// TaskEvent — событие о завершении задачи (для внешних подписчиков).
type TaskEvent struct {
	TaskID      string        `json:"task_id"`
	ServiceID   string        `json:"service_id,omitempty"`
	InstanceID  string        `json:"instance_id,omitempty"`
	Location    string        `json:"location"`
	SharedSpace string        `json:"shared_space"`
	Status      TaskStatus    `json:"status"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration_ns"`
	FinishedAt  time.Time     `json:"finished_at"`
}
