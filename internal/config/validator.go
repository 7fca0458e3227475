package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/tyetech/hpe-application-automation-tools-plugin/internal/scheduler"
)

// ValidationError — одна ошибка валидации.
type ValidationError struct {
	Field   string // путь ключа (например, "server.location")
	Value   any    // некорректное значение
	Message string // описание
}

// Error реализует error.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors — набор ошибок валидации.
type ValidationErrors []ValidationError

// Error реализует error.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels возвращает допустимые уровни логирования.
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidLogFormats возвращает допустимые форматы логов.
func ValidLogFormats() []string {
	return []string{"json", "text"}
}

// Validate проверяет Config и возвращает все найденные ошибки.
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError

	// Server: пустой location допустим (bridge выключен)
	if loc := strings.TrimSpace(c.Server.Location); loc != "" {
		if !isHTTPURL(loc) {
			errs = append(errs, ValidationError{"server.location", c.Server.Location, "must be an http(s) URL"})
		}
		if c.Server.SharedSpace == "" {
			errs = append(errs, ValidationError{"server.shared_space", c.Server.SharedSpace, "is required when location is set"})
		}
		if c.Server.PasswordFromKeyring && c.Server.Username == "" {
			errs = append(errs, ValidationError{"server.username", c.Server.Username, "is required to read password from keyring"})
		}
	}

	// Bridge
	if c.Bridge.ConcurrentConnections < 1 {
		errs = append(errs, ValidationError{"bridge.concurrent_connections", c.Bridge.ConcurrentConnections, "must be at least 1"})
	}
	if c.Bridge.ConnectivityWorkers < 1 {
		errs = append(errs, ValidationError{"bridge.connectivity_workers", c.Bridge.ConnectivityWorkers, "must be at least 1"})
	}
	if c.Bridge.TaskWorkers < 1 {
		errs = append(errs, ValidationError{"bridge.task_workers", c.Bridge.TaskWorkers, "must be at least 1"})
	}
	backoffs := []struct {
		field string
		value time.Duration
	}{
		{"bridge.auth_backoff", c.Bridge.AuthBackoff},
		{"bridge.unavailable_backoff", c.Bridge.UnavailableBackoff},
		{"bridge.transport_backoff", c.Bridge.TransportBackoff},
	}
	for _, b := range backoffs {
		if b.value < 0 {
			errs = append(errs, ValidationError{b.field, b.value, "must not be negative"})
		}
	}

	// Identity / Local
	if c.Identity.SelfURL != "" && !isHTTPURL(c.Identity.SelfURL) {
		errs = append(errs, ValidationError{"identity.self_url", c.Identity.SelfURL, "must be an http(s) URL"})
	}
	if c.Local.URL != "" && !isHTTPURL(c.Local.URL) {
		errs = append(errs, ValidationError{"local.url", c.Local.URL, "must be an http(s) URL"})
	}

	// Watchdog
	if c.Watchdog.Enabled {
		if err := scheduler.ValidateSchedule(c.Watchdog.Schedule); err != nil {
			errs = append(errs, ValidationError{"watchdog.schedule", c.Watchdog.Schedule, err.Error()})
		}
	}

	// Logging
	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errs = append(errs, ValidationError{"logging.level", c.Logging.Level, fmt.Sprintf("must be one of %v", ValidLogLevels())})
	}
	if c.Logging.Format != "" && !slices.Contains(ValidLogFormats(), strings.ToLower(c.Logging.Format)) {
		errs = append(errs, ValidationError{"logging.format", c.Logging.Format, fmt.Sprintf("must be one of %v", ValidLogFormats())})
	}

	return errs
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
