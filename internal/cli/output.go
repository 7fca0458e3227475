package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
)

// Состояния bridge, которые видит пользователь.
const (
	StatePolling  = "POLLING"
	StateIdle     = "IDLE"
	StateDisabled = "DISABLED"
)

// Output управляет форматированием вывода CLI.
type Output struct {
	jsonMode bool
	w        io.Writer // stdout для данных
	errW     io.Writer // stderr для сообщений
}

// NewOutput создаёт Output. Если jsonMode=true, данные выводятся в JSON.
func NewOutput(jsonMode bool) *Output {
	return NewOutputTo(jsonMode, os.Stdout, os.Stderr)
}

// NewOutputTo создаёт Output с явными writer'ами.
func NewOutputTo(jsonMode bool, w, errW io.Writer) *Output {
	return &Output{jsonMode: jsonMode, w: w, errW: errW}
}

// JSONMode сообщает, включён ли вывод в JSON.
func (o *Output) JSONMode() bool {
	return o.jsonMode
}

// Print выводит данные: таблицу или JSON в зависимости от режима.
func (o *Output) Print(headers []string, rows [][]string, jsonData any) {
	if o.jsonMode {
		o.JSON(jsonData)
		return
	}
	o.Table(headers, rows)
}

// Table выводит данные в виде таблицы через tabwriter.
func (o *Output) Table(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)

	// Заголовки
	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	// Разделитель
	dashes := make([]string, len(headers))
	for i, h := range headers {
		dashes[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(dashes, "\t"))

	// Строки данных
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	tw.Flush()
}

// JSON выводит данные в формате JSON с отступами.
func (o *Output) JSON(v any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// Success выводит сообщение об успехе в stderr.
func (o *Output) Success(msg string) {
	fmt.Fprintln(o.errW, msg)
}

// Error выводит сообщение об ошибке в stderr.
func (o *Output) Error(msg string) {
	fmt.Fprintln(o.errW, color.New(color.FgRed).Sprint("Error: ")+msg)
}

// State определяет состояние bridge по его статусу.
func State(s BridgeStatus) string {
	switch {
	case !s.Enabled:
		return StateDisabled
	case s.OpenConnections > 0:
		return StatePolling
	default:
		return StateIdle
	}
}

// ColorState раскрашивает состояние. Без терминала fatih/color цвет отключает сам.
func ColorState(state string) string {
	switch state {
	case StatePolling:
		return color.New(color.FgGreen).Sprint(state)
	case StateIdle:
		return color.New(color.FgYellow).Sprint(state)
	case StateDisabled:
		return color.New(color.FgRed).Sprint(state)
	default:
		return state
	}
}

// ColorTaskStatus раскрашивает финальный статус задачи.
func ColorTaskStatus(status string) string {
	switch status {
	case "SUCCEEDED":
		return color.New(color.FgGreen).Sprint(status)
	case "FAILED":
		return color.New(color.FgRed).Sprint(status)
	case "ABANDONED":
		return color.New(color.FgYellow).Sprint(status)
	default:
		return status
	}
}
