package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tyetech/hpe-application-automation-tools-plugin/internal/bridge"
	"github.com/tyetech/hpe-application-automation-tools-plugin/internal/domain"
	"github.com/tyetech/hpe-application-automation-tools-plugin/internal/telemetry"
)

const defaultHTTPTimeout = 30 * time.Second

// RelayConfig — конфигурация Relay.
type RelayConfig struct {
	// Identity — идентичность CI хоста (InstanceID для отправки результата).
	Identity domain.Identity

	// LocalURL — адрес CI хоста для выполнения задач (default: Identity.SelfURL).
	LocalURL string

	// HTTPClient для запросов к CI хосту (default: http.Client{}).
	HTTPClient *http.Client

	// Timeout одного запроса к CI хосту (default: 30s).
	Timeout time.Duration

	Logger *slog.Logger
}

// Relay выполняет задачи как HTTP-запросы к локальному CI хосту.
type Relay struct {
	identity   domain.Identity
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

var _ bridge.Processor = (*Relay)(nil)

// NewRelay создаёт Relay.
func NewRelay(cfg RelayConfig) *Relay {
	baseURL := cfg.LocalURL
	if baseURL == "" {
		baseURL = cfg.Identity.SelfURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Relay{
		identity:   cfg.Identity,
		baseURL:    baseURL,
		httpClient: httpClient,
		timeout:    timeout,
		logger:     logger,
	}
}

// Process выполняет задачу и отправляет результат на сервер из cfg.
func (r *Relay) Process(ctx context.Context, task domain.Task, factory bridge.ClientFactory, cfg domain.ServerConfig) error {
	logger := telemetry.WithTaskID(r.logger, task.ID)

	result, execErr := r.Execute(ctx, task)
	if execErr != nil {
		logger.Warn("task request to local CI failed", "error", execErr)
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("%w: marshal result: %v", domain.ErrTaskExecution, err)
	}

	if err := factory.Create(cfg).PutAbridgedResult(ctx, r.identity.InstanceID, task.ID, payload); err != nil {
		return fmt.Errorf("%w: post result: %w", domain.ErrTaskExecution, err)
	}

	logger.Debug("task result posted", "status", result.Status)

	if execErr != nil {
		return fmt.Errorf("%w: %w", domain.ErrTaskExecution, execErr)
	}
	return nil
}

// Execute выполняет HTTP-запрос задачи.
//
// Результат заполнен всегда: при ошибке это статус 500 с текстом ошибки.
func (r *Relay) Execute(ctx context.Context, task domain.Task) (domain.TaskResult, error) {
	result := domain.TaskResult{
		ID:        task.ID,
		ServiceID: task.ServiceID,
		Headers:   map[string]string{},
	}

	target, err := resolveURL(r.baseURL, task.URL)
	if err != nil {
		return failedResult(result, err), err
	}

	// Таймаут
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var bodyReader io.Reader
	if task.Body != "" {
		bodyReader = strings.NewReader(task.Body)
	}

	req, err := http.NewRequestWithContext(ctx, task.EffectiveMethod(), target, bodyReader)
	if err != nil {
		err = fmt.Errorf("%w: create request: %v", ErrHTTPRequest, err)
		return failedResult(result, err), err
	}

	for key, val := range task.Headers {
		req.Header.Set(key, val)
	}

	// Content-Type по умолчанию для запросов с body
	if bodyReader != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrHTTPRequest, err)
		return failedResult(result, err), err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		err = fmt.Errorf("%w: read response: %v", ErrHTTPRequest, err)
		return failedResult(result, err), err
	}

	result.Status = resp.StatusCode
	for key := range resp.Header {
		result.Headers[key] = resp.Header.Get(key)
	}
	result.Body = string(respBody)

	return result, nil
}

// failedResult — ответ серверу, если локальный запрос не выполнился.
func failedResult(result domain.TaskResult, err error) domain.TaskResult {
	result.Status = http.StatusInternalServerError
	result.Body = err.Error()
	return result
}

// resolveURL переносит path и query из URL задачи на base.
//
// Хост из URL задачи игнорируется: Octane знает CI хост по self-url,
// а выполнять запрос нужно по локальному адресу.
func resolveURL(base, raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("%w: url is required", ErrInvalidTask)
	}

	b, err := url.Parse(base)
	if err != nil || b.Host == "" {
		return "", fmt.Errorf("%w: bad base url %q", ErrInvalidTask, base)
	}

	t, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidTask, err)
	}

	path := t.Path
	if !strings.HasPrefix(path, b.Path) {
		path = strings.TrimRight(b.Path, "/") + "/" + strings.TrimLeft(path, "/")
	}

	out := *b
	out.Path = path
	out.RawPath = ""
	out.RawQuery = t.RawQuery
	out.Fragment = ""
	return out.String(), nil
}
