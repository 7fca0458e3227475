package bridge

import (
	"context"
	"errors"
	"time"

	"github.com/tyetech/hpe-application-automation-tools-plugin/internal/domain"
)

// Default backoff values.
const (
	defaultAuthBackoff        = 20 * time.Second
	defaultUnavailableBackoff = 20 * time.Second
	defaultTransportBackoff   = time.Second
)

// Виды ошибок poll (для логов и метрик).
const (
	FailureAuthentication = "authentication"
	FailureUnavailable    = "unavailable"
	FailureTransport      = "transport"
)

// Backoff — задержки перед следующей попыткой по виду ошибки.
type Backoff struct {
	Authentication time.Duration // после ErrAuthentication (default: 20s)
	Unavailable    time.Duration // после ErrTemporarilyUnavailable (default: 20s)
	Transport      time.Duration // после любой другой ошибки (default: 1s)
}

// DefaultBackoff возвращает задержки по умолчанию.
func DefaultBackoff() Backoff {
	return Backoff{
		Authentication: defaultAuthBackoff,
		Unavailable:    defaultUnavailableBackoff,
		Transport:      defaultTransportBackoff,
	}
}

// withDefaults заменяет нулевые поля значениями по умолчанию.
func (b Backoff) withDefaults() Backoff {
	if b.Authentication <= 0 {
		b.Authentication = defaultAuthBackoff
	}
	if b.Unavailable <= 0 {
		b.Unavailable = defaultUnavailableBackoff
	}
	if b.Transport <= 0 {
		b.Transport = defaultTransportBackoff
	}
	return b
}

// Delay возвращает задержку для ошибки.
func (b Backoff) Delay(err error) time.Duration {
	switch FailureKind(err) {
	case FailureAuthentication:
		return b.Authentication
	case FailureUnavailable:
		return b.Unavailable
	default:
		return b.Transport
	}
}

// FailureKind классифицирует ошибку poll.
func FailureKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrAuthentication):
		return FailureAuthentication
	case errors.Is(err, domain.ErrTemporarilyUnavailable):
		return FailureUnavailable
	default:
		return FailureTransport
	}
}

// sleep ждёт d с учётом context.
// Возвращает false, если ожидание прервано.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
