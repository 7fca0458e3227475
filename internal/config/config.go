// Package config загружает конфигурацию bridge через viper.
//
// Источники (по приоритету): переменные окружения OCTANE_BRIDGE_*,
// YAML файл, значения по умолчанию. Ключи вложенные: server.location
// соответствует OCTANE_BRIDGE_SERVER_LOCATION.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tyetech/hpe-application-automation-tools-plugin/internal/bridge"
	"github.com/tyetech/hpe-application-automation-tools-plugin/internal/domain"
)

// EnvPrefix — префикс переменных окружения.
const EnvPrefix = "OCTANE_BRIDGE"

// Config — полная конфигурация процесса.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Bridge   BridgeConfig   `mapstructure:"bridge"`
	Identity IdentityConfig `mapstructure:"identity"`
	Local    LocalConfig    `mapstructure:"local"`
	Journal  JournalConfig  `mapstructure:"journal"`
	Events   EventsConfig   `mapstructure:"events"`
	Watchdog WatchdogConfig `mapstructure:"watchdog"`
	API      APIConfig      `mapstructure:"api"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig — подключение к Octane серверу.
type ServerConfig struct {
	// Location — адрес сервера. Пустой — bridge выключен.
	Location    string `mapstructure:"location"`
	SharedSpace string `mapstructure:"shared_space"`
	// Abridged — включает долгоживущий polling.
	Abridged bool   `mapstructure:"abridged"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	// PasswordFromKeyring — брать пароль из OS keyring по имени пользователя.
	PasswordFromKeyring bool   `mapstructure:"password_from_keyring"`
	ImpersonatedUser    string `mapstructure:"impersonated_user"`
}

// BridgeConfig — параметры polling loop.
type BridgeConfig struct {
	ConcurrentConnections int           `mapstructure:"concurrent_connections"`
	ConnectivityWorkers   int           `mapstructure:"connectivity_workers"`
	TaskWorkers           int           `mapstructure:"task_workers"`
	AuthBackoff           time.Duration `mapstructure:"auth_backoff"`
	UnavailableBackoff    time.Duration `mapstructure:"unavailable_backoff"`
	TransportBackoff      time.Duration `mapstructure:"transport_backoff"`
	PollTimeout           time.Duration `mapstructure:"poll_timeout"`
	StopTimeout           time.Duration `mapstructure:"stop_timeout"`
}

// IdentityConfig — идентичность CI хоста.
type IdentityConfig struct {
	// InstanceIDFile — где хранится instance ID. Пустой — новый ID на каждый запуск.
	InstanceIDFile string `mapstructure:"instance_id_file"`
	// SelfURL — публичный адрес CI хоста, который видит Octane.
	SelfURL string `mapstructure:"self_url"`
}

// LocalConfig — куда relay отправляет запросы задач.
type LocalConfig struct {
	// URL — локальный адрес CI хоста (default: identity.self_url).
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// JournalConfig — журнал задач в PostgreSQL. Пустой DSN — журнал выключен.
type JournalConfig struct {
	DSN string `mapstructure:"dsn"`
}

// EventsConfig — события о задачах в RabbitMQ. Пустой URL — события выключены.
type EventsConfig struct {
	AMQPURL string `mapstructure:"amqp_url"`
}

// WatchdogConfig — периодическая проверка polling loop.
type WatchdogConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// APIConfig — HTTP сервер статуса.
type APIConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig — настройки slog.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Default возвращает конфигурацию по умолчанию.
func Default() *Config {
	backoff := bridge.DefaultBackoff()
	return &Config{
		Bridge: BridgeConfig{
			ConcurrentConnections: bridge.DefaultConcurrentConnections,
			ConnectivityWorkers:   5,
			TaskWorkers:           bridge.DefaultTaskWorkers,
			AuthBackoff:           backoff.Authentication,
			UnavailableBackoff:    backoff.Unavailable,
			TransportBackoff:      backoff.Transport,
			PollTimeout:           3 * time.Minute,
			StopTimeout:           5 * time.Second,
		},
		Local: LocalConfig{
			Timeout: 30 * time.Second,
		},
		Watchdog: WatchdogConfig{
			Enabled:  true,
			Schedule: "@every 1m",
		},
		API: APIConfig{
			Addr: ":8090",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// SetDefaults регистрирует значения по умолчанию в v.
//
// Ключи без default не видны через AutomaticEnv при Unmarshal,
// поэтому регистрируются все ключи, включая пустые.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.location", d.Server.Location)
	v.SetDefault("server.shared_space", d.Server.SharedSpace)
	v.SetDefault("server.abridged", d.Server.Abridged)
	v.SetDefault("server.username", d.Server.Username)
	v.SetDefault("server.password", d.Server.Password)
	v.SetDefault("server.password_from_keyring", d.Server.PasswordFromKeyring)
	v.SetDefault("server.impersonated_user", d.Server.ImpersonatedUser)

	v.SetDefault("bridge.concurrent_connections", d.Bridge.ConcurrentConnections)
	v.SetDefault("bridge.connectivity_workers", d.Bridge.ConnectivityWorkers)
	v.SetDefault("bridge.task_workers", d.Bridge.TaskWorkers)
	v.SetDefault("bridge.auth_backoff", d.Bridge.AuthBackoff)
	v.SetDefault("bridge.unavailable_backoff", d.Bridge.UnavailableBackoff)
	v.SetDefault("bridge.transport_backoff", d.Bridge.TransportBackoff)
	v.SetDefault("bridge.poll_timeout", d.Bridge.PollTimeout)
	v.SetDefault("bridge.stop_timeout", d.Bridge.StopTimeout)

	v.SetDefault("identity.instance_id_file", d.Identity.InstanceIDFile)
	v.SetDefault("identity.self_url", d.Identity.SelfURL)

	v.SetDefault("local.url", d.Local.URL)
	v.SetDefault("local.timeout", d.Local.Timeout)

	v.SetDefault("journal.dsn", d.Journal.DSN)
	v.SetDefault("events.amqp_url", d.Events.AMQPURL)

	v.SetDefault("watchdog.enabled", d.Watchdog.Enabled)
	v.SetDefault("watchdog.schedule", d.Watchdog.Schedule)

	v.SetDefault("api.addr", d.API.Addr)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}

// New создаёт viper с defaults и env overrides.
// path — YAML файл конфигурации (может быть пустым).
func New(path string) *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	}
	return v
}

// Read читает файл конфигурации, если он задан, и загружает Config.
func Read(v *viper.Viper) (*Config, error) {
	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return Load(v)
}

// Load преобразует текущее состояние v в Config и валидирует его.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ServerSnapshot строит снимок конфигурации сервера для bridge.
//
// Если password_from_keyring включён, пароль берётся из secrets.
func (c *Config) ServerSnapshot(secrets SecretStore) (domain.ServerConfig, error) {
	snapshot := domain.ServerConfig{
		Location:         strings.TrimSpace(c.Server.Location),
		SharedSpace:      c.Server.SharedSpace,
		Abridged:         c.Server.Abridged,
		Username:         c.Server.Username,
		Password:         c.Server.Password,
		ImpersonatedUser: c.Server.ImpersonatedUser,
	}

	if c.Server.PasswordFromKeyring && snapshot.IsConfigured() {
		if secrets == nil {
			return domain.ServerConfig{}, fmt.Errorf("%w: keyring is not available", ErrSecretNotFound)
		}
		password, err := secrets.Password(c.Server.Username)
		if err != nil {
			return domain.ServerConfig{}, fmt.Errorf("server password: %w", err)
		}
		snapshot.Password = password
	}

	return snapshot, nil
}

// Backoff возвращает задержки bridge.
func (c *Config) Backoff() bridge.Backoff {
	return bridge.Backoff{
		Authentication: c.Bridge.AuthBackoff,
		Unavailable:    c.Bridge.UnavailableBackoff,
		Transport:      c.Bridge.TransportBackoff,
	}
}
