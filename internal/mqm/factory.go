package mqm

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/tyetech/hpe-application-automation-tools-plugin/internal/bridge"
	"github.com/tyetech/hpe-application-automation-tools-plugin/internal/domain"
)

// maxSessions — сколько сессий Factory держит одновременно.
// Старые снимки нужны только задачам, которые ещё отправляют результат.
const maxSessions = 4

// Options — настройки клиентов Octane.
type Options struct {
	// HTTPClient — базовый клиент (default: http.Client без таймаута).
	// Таймауты задаются на каждый запрос через context.
	HTTPClient *http.Client

	// PollTimeout — максимальная длительность long-poll (default: 3m).
	PollTimeout time.Duration

	// RequestTimeout — таймаут sign-in и отправки результата (default: 30s).
	RequestTimeout time.Duration

	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{}
	}
	if o.PollTimeout <= 0 {
		o.PollTimeout = defaultPollTimeout
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = defaultRequestTimeout
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Factory создаёт клиентов Octane по снимку конфигурации.
type Factory struct {
	opts Options

	mu       sync.Mutex
	sessions map[domain.ServerConfig]*Client
}

var _ bridge.ClientFactory = (*Factory)(nil)

// NewFactory создаёт Factory.
func NewFactory(opts Options) *Factory {
	return &Factory{
		opts:     opts.withDefaults(),
		sessions: make(map[domain.ServerConfig]*Client),
	}
}

// Create возвращает клиента для снимка конфигурации.
// Для одинаковых снимков возвращается одна и та же сессия.
func (f *Factory) Create(cfg domain.ServerConfig) bridge.RemoteClient {
	return f.session(cfg)
}

func (f *Factory) session(cfg domain.ServerConfig) *Client {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.sessions[cfg]; ok {
		return c
	}

	if len(f.sessions) >= maxSessions {
		f.sessions = make(map[domain.ServerConfig]*Client)
	}

	c := NewClient(cfg, f.opts)
	f.sessions[cfg] = c
	return c
}
