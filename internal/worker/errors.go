package worker

import "errors"

// Ошибки relay.
var (
	// ErrInvalidTask — задача без URL или с некорректным URL.
	ErrInvalidTask = errors.New("invalid task")

	// ErrHTTPRequest — запрос к локальному CI завершился ошибкой.
	ErrHTTPRequest = errors.New("http request failed")
)
