package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// connectionName видно в management UI брокера.
	connectionName = "octane-bridge"
	heartbeat      = 10 * time.Second

	initialReconnectDelay = time.Second
	maxReconnectDelay     = 30 * time.Second
)

var (
	// ErrNoChannel — брокер сейчас недоступен (первое подключение не удалось
	// или идёт reconnect). Событие о задаче в этом случае теряется.
	ErrNoChannel = errors.New("no amqp channel available")

	errConnectionClosed = errors.New("amqp connection closed")
)

// Connection держит одно AMQP соединение и один канал для событий bridge.
//
// При разрыве watchConnection переподключается в фоне. Пока соединения нет,
// Channel возвращает nil, а WithChannel — ErrNoChannel: dispatcher не ждёт
// брокер, задачи выполняются без событий.
type Connection struct {
	url    string
	logger *slog.Logger

	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool

	closedCh    chan struct{}
	reconnectCh chan struct{}
	reconnects  atomic.Int64
}

// NewConnection подключается к брокеру. Ошибка первого подключения
// возвращается сразу: вызывающий решает, работать ли без событий.
func NewConnection(url string, logger *slog.Logger) (*Connection, error) {
	c := &Connection{
		url:         url,
		logger:      logger.With("component", "amqp"),
		closedCh:    make(chan struct{}),
		reconnectCh: make(chan struct{}, 1),
	}

	if err := c.connect(); err != nil {
		return nil, err
	}

	go c.watchConnection()

	return c, nil
}

// dialConfig — параметры AMQP соединения bridge.
func dialConfig() amqp.Config {
	props := amqp.NewConnectionProperties()
	props.SetClientConnectionName(connectionName)
	return amqp.Config{
		Heartbeat:  heartbeat,
		Properties: props,
	}
}

// connect открывает соединение и канал. Сеть — без блокировки mu,
// чтобы Channel и Close не ждали медленный брокер.
func (c *Connection) connect() error {
	conn, err := amqp.DialConfig(c.url, dialConfig())
	if err != nil {
		return fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return errConnectionClosed
	}
	c.conn = conn
	c.channel = ch
	c.mu.Unlock()

	c.logger.Info("connected to RabbitMQ")
	return nil
}

// watchConnection ждёт разрыва и запускает reconnect.
func (c *Connection) watchConnection() {
	for {
		c.mu.RLock()
		if c.closed {
			c.mu.RUnlock()
			return
		}
		notifyClose := c.conn.NotifyClose(make(chan *amqp.Error, 1))
		c.mu.RUnlock()

		select {
		case <-c.closedCh:
			return
		case err := <-notifyClose:
			if err != nil {
				c.logger.Warn("RabbitMQ connection lost, task events paused", "error", err)
			}
			if !c.reconnect() {
				return
			}
		}
	}
}

// reconnect повторяет connect с удвоением задержки до maxReconnectDelay.
// Возвращает false, если Connection закрыт через Close.
func (c *Connection) reconnect() bool {
	c.mu.Lock()
	c.channel = nil
	c.mu.Unlock()

	delay := initialReconnectDelay
	for attempt := 1; ; attempt++ {
		select {
		case <-c.closedCh:
			return false
		case <-time.After(delay):
		}

		err := c.connect()
		if errors.Is(err, errConnectionClosed) {
			return false
		}
		if err != nil {
			c.logger.Warn("reconnect failed", "attempt", attempt, "next_delay", nextReconnectDelay(delay), "error", err)
			delay = nextReconnectDelay(delay)
			continue
		}

		c.reconnects.Add(1)
		c.logger.Info("task events resumed", "attempts", attempt)

		// Consumer команды events перезапускает подписку
		select {
		case c.reconnectCh <- struct{}{}:
		default:
		}
		return true
	}
}

func nextReconnectDelay(delay time.Duration) time.Duration {
	return min(delay*2, maxReconnectDelay)
}

// Channel возвращает текущий канал или nil во время reconnect.
func (c *Connection) Channel() *amqp.Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channel
}

// ReconnectNotify сигналит после каждого успешного reconnect.
func (c *Connection) ReconnectNotify() <-chan struct{} {
	return c.reconnectCh
}

// Reconnects — сколько раз соединение восстанавливалось.
func (c *Connection) Reconnects() int64 {
	return c.reconnects.Load()
}

// Close закрывает канал и соединение и прерывает reconnect. Повторный вызов — no-op.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.closedCh)

	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}
	}
	if c.conn != nil && !c.conn.IsClosed() {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
	}

	c.logger.Info("RabbitMQ connection closed")
	return errors.Join(errs...)
}

// IsConnected — есть ли сейчас живое соединение с каналом.
func (c *Connection) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && c.channel != nil && !c.conn.IsClosed()
}

// WithChannel вызывает fn с текущим каналом.
func (c *Connection) WithChannel(ctx context.Context, fn func(ch *amqp.Channel) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ch := c.Channel()
	if ch == nil {
		return ErrNoChannel
	}
	return fn(ch)
}
