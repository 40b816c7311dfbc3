// sagactl — небольшой оператор-CLI поверх pkg/eventbus, делающий
// drain-dlq/replay вызываемыми операциями оператора, а не только
// внутренними методами шины. Ни один из сервисов саги не зависит от
// этого бинарника — он подключается к той же шине событий отдельным
// соединением и используется только вручную, при разборе инцидентов.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/sagacore/order-saga/pkg/config"
	"github.com/sagacore/order-saga/pkg/event"
	"github.com/sagacore/order-saga/pkg/eventbus"
	"github.com/sagacore/order-saga/pkg/logger"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}
	logger.Init(logger.Config{Level: cfg.App.LogLevel, Pretty: cfg.App.LogPretty})

	bus, err := eventbus.Connect(cfg.EventBus)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ошибка подключения к шине событий: %v\n", err)
		os.Exit(1)
	}
	defer bus.Close()

	ctx := context.Background()

	switch os.Args[1] {
	case "drain-dlq":
		runDrainDLQ(ctx, bus, os.Args[2:])
	case "replay":
		runReplay(ctx, bus, os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `sagactl — операторские команды над dead_letter_queue.

Использование:
  sagactl drain-dlq -limit N     выгрузить (и ack-нуть) до N сообщений из DLQ, вывести JSON
  sagactl replay -file PATH      опубликовать заново событие из JSON-файла с очищенными retry-заголовками`)
}

// runDrainDLQ выгружает до -limit сообщений из dead_letter_queue и печатает
// их как JSON-массив {envelope, headers, routing_key} — доступно оператору
// вручную, а не только изнутри сервисов.
func runDrainDLQ(ctx context.Context, bus *eventbus.Bus, args []string) {
	fs := flag.NewFlagSet("drain-dlq", flag.ExitOnError)
	limit := fs.Int("limit", 10, "максимальное число сообщений, которые нужно выгрузить из DLQ")
	fs.Parse(args)

	messages, err := bus.DrainDLQ(ctx, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ошибка выгрузки DLQ: %v\n", err)
		os.Exit(1)
	}

	type drainedMessage struct {
		Envelope   *event.Envelope `json:"envelope"`
		Headers    map[string]any  `json:"headers"`
		RoutingKey string          `json:"routing_key"`
	}
	out := make([]drainedMessage, len(messages))
	for i, m := range messages {
		out[i] = drainedMessage{Envelope: m.Envelope, Headers: m.Headers, RoutingKey: m.RoutingKey}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "ошибка вывода JSON: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "выгружено %d сообщений из DLQ\n", len(out))
}

// runReplay читает сериализованный event.Envelope из файла (например, одно
// из сообщений, выгруженных drain-dlq) и публикует его заново с чистыми
// заголовками (retry-счётчик сброшен).
func runReplay(ctx context.Context, bus *eventbus.Bus, args []string) {
	fs := flag.NewFlagSet("replay", flag.ExitOnError)
	path := fs.String("file", "", "путь к JSON-файлу с event.Envelope для повторной публикации")
	fs.Parse(args)

	if *path == "" {
		fmt.Fprintln(os.Stderr, "требуется -file")
		os.Exit(1)
	}

	data, err := os.ReadFile(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ошибка чтения файла: %v\n", err)
		os.Exit(1)
	}

	env, err := event.Unmarshal(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ошибка разбора envelope: %v\n", err)
		os.Exit(1)
	}

	if err := bus.Replay(ctx, env); err != nil {
		fmt.Fprintf(os.Stderr, "ошибка повторной публикации: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "событие %s (%s) опубликовано заново\n", env.EventID, env.EventType)
}
