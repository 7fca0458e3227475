// Package bridge держит long-poll соединение с Octane сервером и
// выполняет полученные задачи.
//
// # Обзор
//
// CI хост не принимает входящих соединений, поэтому сервер не может
// отправить ему задачу напрямую. Bridge сам опрашивает сервер:
// открывает long-poll, получает batch задач, отдаёт их в пул воркеров
// и сразу открывает следующий poll.
//
// # Ключевые компоненты
//
// ## Client
//
// Polling loop для одной конфигурации сервера.
// Создаётся через New(cfg Config) и запускается методом Start(ctx).
//
//	c := bridge.New(bridge.Config{
//	    Server:     serverCfg,
//	    Identity:   ident,
//	    Factory:    mqm.NewFactory(mqm.Options{}),
//	    Dispatcher: dispatcher,
//	    Logger:     logger,
//	})
//
//	if err := c.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Stop()
//
// Каждая попытка poll сама решает, запускать ли следующую. Внешнего
// супервизора нет (см. scheduler.Watchdog), поэтому тело попытки обёрнуто
// в recover и любой выход из неё проходит через правило запуска преемника.
//
// ## SlotPool
//
// Атомарный счётчик открытых long-poll. TryAcquire не блокирует:
// если цель уже достигнута, попытка просто не стартует.
//
// ## Dispatcher
//
// Ограниченный пул воркеров (по умолчанию 30). Каждая задача из batch
// выполняется независимо через Processor; ошибка одной задачи не влияет
// на остальные.
//
// # Backoff
//
// После неудачного poll следующая попытка откладывается:
//   - ErrAuthentication — 20s
//   - ErrTemporarilyUnavailable — 20s
//   - любая другая ошибка — 1s
//
// Ни одна ошибка не останавливает polling навсегда.
package bridge
