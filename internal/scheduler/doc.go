// Package scheduler следит за polling loop bridge по расписанию.
//
// Структура:
//   - watchdog.go — Watchdog: периодическая проверка и Kick
//   - cron.go     — парсинг расписаний (robfig/cron)
//
// Использование:
//
//	wd, err := scheduler.NewWatchdog(scheduler.WatchdogConfig{
//	    Target:   client,
//	    Schedule: "@every 1m",
//	    Logger:   logger,
//	})
//	if err != nil {
//	    return err
//	}
//	wd.Start()
//	defer wd.Stop()
package scheduler
