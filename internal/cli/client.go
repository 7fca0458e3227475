package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// --- Response types (дублируются из bridge.Status и domain.JournalEntry, CLI не импортирует их) ---

// BridgeStatus — состояние bridge из API.
type BridgeStatus struct {
	Location        string `json:"location"`
	SharedSpace     string `json:"shared_space"`
	Username        string `json:"username"`
	Enabled         bool   `json:"enabled"`
	OpenConnections int    `json:"open_connections"`
	PendingAttempts int    `json:"pending_attempts"`
	InstanceID      string `json:"instance_id"`
}

// TaskEntry — незавершённая задача из журнала.
type TaskEntry struct {
	TaskID      string `json:"task_id"`
	Method      string `json:"method"`
	URL         string `json:"url"`
	Location    string `json:"location"`
	SharedSpace string `json:"shared_space"`
	Status      string `json:"status"`
	ReceivedAt  string `json:"received_at"`
	StartedAt   string `json:"started_at,omitempty"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для API статуса bridge.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// BridgeStatus возвращает состояние bridge.
func (c *Client) BridgeStatus() (*BridgeStatus, error) {
	var status BridgeStatus
	err := c.get("/api/v1/bridge", &status)
	return &status, err
}

// UnfinishedTasks возвращает задачи, которые bridge получил, но не завершил.
func (c *Client) UnfinishedTasks(limit int) ([]TaskEntry, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var tasks []TaskEntry
	err := c.list("/api/v1/tasks/unfinished", params, &tasks)
	return tasks, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	resp, err := c.do(http.MethodGet, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return json.Unmarshal(dr.Data, result)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) do(method, path string) (*http.Response, error) {
	req, err := http.NewRequest(method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var er errorResponse
	if err := json.Unmarshal(body, &er); err != nil || er.Error.Code == "" {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
