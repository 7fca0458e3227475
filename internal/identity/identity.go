// Package identity хранит идентичность CI хоста для Octane.
//
// Octane различает CI серверы по instance ID, поэтому он должен
// переживать перезапуски процесса: UUID генерируется один раз
// и сохраняется в файл.
package identity

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/tyetech/hpe-application-automation-tools-plugin/internal/domain"
)

// ErrInvalidInstanceID — файл содержит не UUID.
var ErrInvalidInstanceID = errors.New("invalid instance id")

// LoadOrCreate читает instance ID из path или создаёт новый.
//
// Пустой path — UUID живёт только до конца процесса.
func LoadOrCreate(path, selfURL string) (domain.Identity, error) {
	if path == "" {
		return domain.Identity{InstanceID: uuid.NewString(), SelfURL: selfURL}, nil
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		id, err := uuid.Parse(strings.TrimSpace(string(data)))
		if err != nil {
			return domain.Identity{}, fmt.Errorf("%w in %s: %v", ErrInvalidInstanceID, path, err)
		}
		return domain.Identity{InstanceID: id.String(), SelfURL: selfURL}, nil

	case errors.Is(err, os.ErrNotExist):
		id := uuid.NewString()
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return domain.Identity{}, fmt.Errorf("create identity dir: %w", err)
		}
		if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
			return domain.Identity{}, fmt.Errorf("write identity: %w", err)
		}
		return domain.Identity{InstanceID: id, SelfURL: selfURL}, nil

	default:
		return domain.Identity{}, fmt.Errorf("read identity: %w", err)
	}
}
