package config

import (
	"log/slog"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Watch следит за файлом конфигурации и вызывает onChange с новой
// валидной конфигурацией. Невалидные изменения логируются и пропускаются:
// bridge продолжает работать с предыдущим снимком.
func Watch(v *viper.Viper, logger *slog.Logger, onChange func(*Config)) {
	if v.ConfigFileUsed() == "" {
		return
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		HandleChange(v, logger, e, onChange)
	})
	v.WatchConfig()
}

// HandleChange загружает конфигурацию после события файла.
func HandleChange(v *viper.Viper, logger *slog.Logger, e fsnotify.Event, onChange func(*Config)) {
	if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
		return
	}

	cfg, err := Load(v)
	if err != nil {
		logger.Error("ignoring invalid configuration change", "file", e.Name, "error", err)
		return
	}

	logger.Info("configuration file changed", "file", e.Name)
	onChange(cfg)
}
