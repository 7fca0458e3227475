package domain

import "time"

// JournalEntry — запись о задаче в журнале bridge.
type JournalEntry struct {
	TaskID      string     `json:"task_id"`
	ServiceID   string     `json:"service_id,omitempty"`
	Method      string     `json:"method"`
	URL         string     `json:"url"`
	Location    string     `json:"location"`
	SharedSpace string     `json:"shared_space"`
	Status      TaskStatus `json:"status"`
	Error       string     `json:"error,omitempty"`
	ReceivedAt  time.Time  `json:"received_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// NewJournalEntry создаёт запись RECEIVED для задачи.
func NewJournalEntry(task Task, cfg ServerConfig) JournalEntry {
	return JournalEntry{
		TaskID:      task.ID,
		ServiceID:   task.ServiceID,
		Method:      task.EffectiveMethod(),
		URL:         task.URL,
		Location:    cfg.Location,
		SharedSpace: cfg.SharedSpace,
		Status:      TaskStatusReceived,
		ReceivedAt:  time.Now().UTC(),
	}
}
