package domain

import "fmt"

// ServerConfig — снимок конфигурации подключения к одному Octane серверу.
//
// После создания не изменяется. Любое изменение параметров подключения
// создаёт новый снимок, который атомарно заменяет активный; выполняющиеся
// операции продолжают работать со снимком, захваченным в начале.
type ServerConfig struct {
	// Location — базовый URL сервера. Пустой означает "bridge выключен".
	Location string

	// SharedSpace — идентификатор shared space.
	SharedSpace string

	// Abridged — включён ли polling режим.
	Abridged bool

	// Username / Password — учётные данные для sign-in.
	Username string
	Password string

	// ImpersonatedUser — пользователь, от имени которого работает bridge.
	ImpersonatedUser string
}

// IsConfigured возвращает true, если задан адрес сервера.
func (c ServerConfig) IsConfigured() bool {
	return c.Location != ""
}

// PollingEnabled возвращает true, если bridge должен держать long-poll.
func (c ServerConfig) PollingEnabled() bool {
	return c.IsConfigured() && c.Abridged
}

// String не включает пароль.
func (c ServerConfig) String() string {
	return fmt.Sprintf("location=%q shared_space=%q username=%q abridged=%t",
		c.Location, c.SharedSpace, c.Username, c.Abridged)
}

// Identity — идентичность этого CI хоста для сервера.
//
// Инициализируется один раз при старте процесса и дальше только читается.
type Identity struct {
	// InstanceID — стабильный идентификатор экземпляра CI хоста.
	InstanceID string

	// SelfURL — внешний базовый URL CI хоста (callback для сервера).
	SelfURL string
}
