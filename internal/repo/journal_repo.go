package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tyetech/hpe-application-automation-tools-plugin/internal/bridge"
	"github.com/tyetech/hpe-application-automation-tools-plugin/internal/domain"
)

// abandonedMessage — error для задач, потерянных при рестарте.
const abandonedMessage = "process stopped before the task finished"

const journalSchema = `
	CREATE TABLE IF NOT EXISTS bridge_tasks (
		task_id      TEXT PRIMARY KEY,
		service_id   TEXT,
		method       TEXT NOT NULL,
		url          TEXT NOT NULL,
		location     TEXT NOT NULL,
		shared_space TEXT NOT NULL,
		status       TEXT NOT NULL,
		error        TEXT,
		received_at  TIMESTAMPTZ NOT NULL,
		started_at   TIMESTAMPTZ,
		finished_at  TIMESTAMPTZ
	);
	CREATE INDEX IF NOT EXISTS bridge_tasks_status_idx ON bridge_tasks (status);
`

const journalColumns = `task_id, service_id, method, url, location, shared_space,
	status, error, received_at, started_at, finished_at`

// JournalRepo — журнал задач bridge.
//
// Задачи не переживают рестарт процесса; журнал делает потери видимыми:
// при старте незавершённые записи помечаются ABANDONED.
type JournalRepo struct {
	pool *pgxpool.Pool
}

var _ bridge.Journal = (*JournalRepo)(nil)

// NewJournalRepo создаёт новый JournalRepo.
func NewJournalRepo(pool *pgxpool.Pool) *JournalRepo {
	return &JournalRepo{pool: pool}
}

// EnsureSchema создаёт таблицу журнала, если её нет.
func (r *JournalRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, journalSchema); err != nil {
		return fmt.Errorf("ensure journal schema: %w", err)
	}
	return nil
}

// RecordReceived записывает полученную задачу.
//
// Повторно полученная задача (тот же ID) начинает жизненный цикл заново.
func (r *JournalRepo) RecordReceived(ctx context.Context, task domain.Task, cfg domain.ServerConfig) error {
	entry := domain.NewJournalEntry(task, cfg)

	query := `
		INSERT INTO bridge_tasks (task_id, service_id, method, url, location, shared_space, status, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (task_id) DO UPDATE
		SET status = EXCLUDED.status, received_at = EXCLUDED.received_at,
		    started_at = NULL, finished_at = NULL, error = NULL
	`
	_, err := r.pool.Exec(ctx, query,
		entry.TaskID,
		nullString(entry.ServiceID),
		entry.Method,
		entry.URL,
		entry.Location,
		entry.SharedSpace,
		entry.Status,
		entry.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

// MarkRunning переводит задачу в RUNNING.
func (r *JournalRepo) MarkRunning(ctx context.Context, taskID string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE bridge_tasks SET status = $2, started_at = now()
		WHERE task_id = $1
	`, taskID, domain.TaskStatusRunning)
	if err != nil {
		return fmt.Errorf("mark running: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkFinished записывает финальный статус задачи.
func (r *JournalRepo) MarkFinished(ctx context.Context, taskID string, status domain.TaskStatus, errMsg string) error {
	if !status.IsTerminal() {
		return fmt.Errorf("%w: %s is not a final status", ErrInvalidState, status)
	}

	result, err := r.pool.Exec(ctx, `
		UPDATE bridge_tasks SET status = $2, error = $3, finished_at = now()
		WHERE task_id = $1
	`, taskID, status, nullString(errMsg))
	if err != nil {
		return fmt.Errorf("mark finished: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListUnfinished возвращает задачи в статусах RECEIVED и RUNNING.
func (r *JournalRepo) ListUnfinished(ctx context.Context, limit int) ([]domain.JournalEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+journalColumns+`
		FROM bridge_tasks
		WHERE status IN ('RECEIVED', 'RUNNING')
		ORDER BY received_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unfinished: %w", err)
	}
	return collectEntries(rows)
}

// AbandonUnfinished помечает ABANDONED все незавершённые задачи
// и возвращает их. Вызывается при старте, до начала polling.
func (r *JournalRepo) AbandonUnfinished(ctx context.Context) ([]domain.JournalEntry, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE bridge_tasks
		SET status = $1, error = $2, finished_at = now()
		WHERE status IN ('RECEIVED', 'RUNNING')
		RETURNING `+journalColumns,
		domain.TaskStatusAbandoned, abandonedMessage)
	if err != nil {
		return nil, fmt.Errorf("abandon unfinished: %w", err)
	}
	return collectEntries(rows)
}

// --- Helpers ---

func collectEntries(rows pgx.Rows) ([]domain.JournalEntry, error) {
	defer rows.Close()

	var entries []domain.JournalEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

func scanEntry(row pgx.Row) (*domain.JournalEntry, error) {
	var entry domain.JournalEntry
	var serviceID, entryError *string

	err := row.Scan(
		&entry.TaskID,
		&serviceID,
		&entry.Method,
		&entry.URL,
		&entry.Location,
		&entry.SharedSpace,
		&entry.Status,
		&entryError,
		&entry.ReceivedAt,
		&entry.StartedAt,
		&entry.FinishedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan journal entry: %w", err)
	}

	if serviceID != nil {
		entry.ServiceID = *serviceID
	}
	if entryError != nil {
		entry.Error = *entryError
	}

	return &entry, nil
}
