package domain

import "errors"

// Ошибки взаимодействия с Octane сервером и выполнения задач.
//
// Любая другая ошибка удалённого вызова считается транспортной.
var (
	// ErrAuthentication — сервер отклонил учётные данные.
	ErrAuthentication = errors.New("authentication failed")

	// ErrTemporarilyUnavailable — сервер временно недоступен (maintenance, backpressure).
	ErrTemporarilyUnavailable = errors.New("server temporarily unavailable")

	// ErrTaskBatchParse — batch задач не удалось разобрать.
	ErrTaskBatchParse = errors.New("task batch parse failed")

	// ErrTaskExecution — задача завершилась ошибкой.
	ErrTaskExecution = errors.New("task execution failed")
)
