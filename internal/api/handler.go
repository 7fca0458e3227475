package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tyetech/hpe-application-automation-tools-plugin/internal/bridge"
	"github.com/tyetech/hpe-application-automation-tools-plugin/internal/domain"
)

// StatusSource — то, что API показывает о bridge.
type StatusSource interface {
	Status() bridge.Status
}

// JournalReader читает незавершённые задачи из журнала.
type JournalReader interface {
	ListUnfinished(ctx context.Context, limit int) ([]domain.JournalEntry, error)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	bridge   StatusSource
	journal  JournalReader
	gatherer prometheus.Gatherer
	logger   *slog.Logger
	started  time.Time
}

// Config — конфигурация для создания Handler.
type Config struct {
	Bridge StatusSource
	// Journal опционален: без него /api/v1/tasks отвечает 404.
	Journal  JournalReader
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Handler{
		bridge:   cfg.Bridge,
		journal:  cfg.Journal,
		gatherer: cfg.Gatherer,
		logger:   cfg.Logger,
		started:  time.Now(),
	}
}
