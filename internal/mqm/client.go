package mqm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tyetech/hpe-application-automation-tools-plugin/internal/domain"
)

// Default configuration values.
const (
	defaultPollTimeout    = 3 * time.Minute
	defaultRequestTimeout = 30 * time.Second

	clientTypeHeader  = "HPECLIENTTYPE"
	clientTypeValue   = "HPE_CI_CLIENT"
	impersonateHeader = "Impersonate-User"
	selfType          = "jenkins"
)

// ErrUnexpectedStatus — сервер вернул код, который клиент не ожидает.
var ErrUnexpectedStatus = errors.New("unexpected octane response")

// Client — сессия к одному Octane серверу.
//
// Безопасен для конкурентного использования: long-poll и отправка
// результатов идут из разных горутин.
type Client struct {
	cfg            domain.ServerConfig
	baseURL        string
	httpClient     *http.Client
	pollTimeout    time.Duration
	requestTimeout time.Duration
	logger         *slog.Logger

	mu       sync.Mutex
	signedIn bool
}

// NewClient создаёт клиента для снимка конфигурации.
func NewClient(cfg domain.ServerConfig, opts Options) *Client {
	opts = opts.withDefaults()

	hc := *opts.HTTPClient
	jar, _ := cookiejar.New(nil)
	hc.Jar = jar

	return &Client{
		cfg:            cfg,
		baseURL:        strings.TrimRight(cfg.Location, "/"),
		httpClient:     &hc,
		pollTimeout:    opts.PollTimeout,
		requestTimeout: opts.RequestTimeout,
		logger:         opts.Logger.With("location", cfg.Location, "shared_space", cfg.SharedSpace),
	}
}

// GetAbridgedTasks выполняет long-poll и возвращает batch задач.
//
// Пустой результат (nil, nil) означает, что задач нет.
func (c *Client) GetAbridgedTasks(ctx context.Context, instanceID, selfURL string) ([]byte, error) {
	params := url.Values{}
	params.Set("self-type", selfType)
	params.Set("self-url", selfURL)
	target := c.tasksURL(instanceID) + "?" + params.Encode()

	for retried := false; ; retried = true {
		if err := c.ensureSession(ctx); err != nil {
			return nil, err
		}

		status, body, err := c.do(ctx, http.MethodGet, target, nil, c.pollTimeout)
		if err != nil {
			return nil, fmt.Errorf("get tasks: %w", err)
		}

		switch status {
		case http.StatusOK:
			return body, nil
		case http.StatusNoContent, http.StatusRequestTimeout:
			return nil, nil
		case http.StatusUnauthorized, http.StatusForbidden:
			c.resetSession()
			if !retried {
				c.logger.Debug("octane session expired, signing in again")
				continue
			}
			return nil, fmt.Errorf("%w: get tasks: HTTP %d", domain.ErrAuthentication, status)
		case http.StatusServiceUnavailable:
			return nil, fmt.Errorf("%w: get tasks: HTTP %d", domain.ErrTemporarilyUnavailable, status)
		default:
			return nil, fmt.Errorf("%w: get tasks: HTTP %d: %s", ErrUnexpectedStatus, status, truncate(string(body), 200))
		}
	}
}

// PutAbridgedResult отправляет результат задачи.
func (c *Client) PutAbridgedResult(ctx context.Context, instanceID, taskID string, result []byte) error {
	target := c.tasksURL(instanceID) + "/" + url.PathEscape(taskID) + "/result"

	for retried := false; ; retried = true {
		if err := c.ensureSession(ctx); err != nil {
			return err
		}

		status, body, err := c.do(ctx, http.MethodPut, target, result, c.requestTimeout)
		if err != nil {
			return fmt.Errorf("put result: %w", err)
		}

		switch {
		case status >= 200 && status < 300:
			return nil
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			c.resetSession()
			if !retried {
				continue
			}
			return fmt.Errorf("%w: put result: HTTP %d", domain.ErrAuthentication, status)
		case status == http.StatusServiceUnavailable:
			return fmt.Errorf("%w: put result: HTTP %d", domain.ErrTemporarilyUnavailable, status)
		default:
			return fmt.Errorf("%w: put result: HTTP %d: %s", ErrUnexpectedStatus, status, truncate(string(body), 200))
		}
	}
}

// signInRequest — тело запроса sign_in.
type signInRequest struct {
	User     string `json:"user"`
	Password string `json:"password"`
}

// ensureSession выполняет sign-in, если сессии ещё нет.
//
// Без имени пользователя sign-in не выполняется (анонимный доступ).
func (c *Client) ensureSession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.signedIn || c.cfg.Username == "" {
		return nil
	}

	payload, err := json.Marshal(signInRequest{User: c.cfg.Username, Password: c.cfg.Password})
	if err != nil {
		return fmt.Errorf("marshal sign in: %w", err)
	}

	status, body, err := c.do(ctx, http.MethodPost, c.baseURL+"/authentication/sign_in", payload, c.requestTimeout)
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}

	switch {
	case status >= 200 && status < 300:
		c.signedIn = true
		c.logger.Debug("signed in to octane server", "username", c.cfg.Username)
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: sign in as %q: HTTP %d", domain.ErrAuthentication, c.cfg.Username, status)
	case status == http.StatusServiceUnavailable:
		return fmt.Errorf("%w: sign in: HTTP %d", domain.ErrTemporarilyUnavailable, status)
	default:
		return fmt.Errorf("%w: sign in: HTTP %d: %s", ErrUnexpectedStatus, status, truncate(string(body), 200))
	}
}

// resetSession сбрасывает сессию, следующий запрос выполнит sign-in.
func (c *Client) resetSession() {
	c.mu.Lock()
	c.signedIn = false
	c.mu.Unlock()
}

func (c *Client) tasksURL(instanceID string) string {
	return fmt.Sprintf("%s/internal-api/shared_spaces/%s/analytics/ci/servers/%s/tasks",
		c.baseURL, url.PathEscape(c.cfg.SharedSpace), url.PathEscape(instanceID))
}

// do выполняет запрос и читает тело ответа целиком.
func (c *Client) do(ctx context.Context, method, target string, body []byte, timeout time.Duration) (int, []byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set(clientTypeHeader, clientTypeValue)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.ImpersonatedUser != "" {
		req.Header.Set(impersonateHeader, c.cfg.ImpersonatedUser)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}

	return resp.StatusCode, respBody, nil
}

// truncate обрезает строку до указанной длины.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
