// Package repo хранит журнал задач bridge в PostgreSQL (pgx).
//
// Журнал необязателен: без DSN bridge работает без него.
package repo
