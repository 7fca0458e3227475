package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tyetech/hpe-application-automation-tools-plugin/internal/cli"
	"github.com/tyetech/hpe-application-automation-tools-plugin/internal/config"
	"github.com/tyetech/hpe-application-automation-tools-plugin/internal/mq"
	"github.com/tyetech/hpe-application-automation-tools-plugin/internal/telemetry"
)

func newEventsCmd(configFn func() string, outputFn func() *cli.Output) *cobra.Command {
	var amqpURL string

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print task completion events from RabbitMQ",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if amqpURL == "" {
				cfg, err := config.Read(config.New(configFn()))
				if err != nil {
					return err
				}
				amqpURL = cfg.Events.AMQPURL
			}
			if amqpURL == "" {
				return errors.New("events.amqp_url is not configured")
			}

			// Логи в stderr, события в stdout
			logger := telemetry.SetupLogger(telemetry.LogOptions{
				Level:  "warn",
				Format: "text",
				Output: cmd.ErrOrStderr(),
			})

			conn, err := mq.NewConnection(amqpURL, logger)
			if err != nil {
				return fmt.Errorf("connect to RabbitMQ: %w", err)
			}
			defer conn.Close()

			if err := mq.SetupTopology(ctx, conn); err != nil {
				return fmt.Errorf("setup topology: %w", err)
			}

			out := outputFn()
			consumer := mq.NewConsumer(conn, logger, mq.ConsumerConfig{
				Handler: func(_ context.Context, msg *mq.Message) error {
					event, err := mq.DecodeTaskEvent(msg)
					if err != nil {
						// Повтор не исправит чужое сообщение
						logger.Warn("skipping message", "message_id", msg.ID, "error", err)
						return nil
					}
					if out.JSONMode() {
						out.JSON(event)
						return nil
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s  %s  %s\n",
						event.FinishedAt.Format(time.RFC3339),
						event.TaskID,
						cli.ColorTaskStatus(string(event.Status)),
						event.Duration.Round(time.Millisecond),
						event.Error,
					)
					return nil
				},
			})

			err = consumer.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&amqpURL, "amqp-url", "", "RabbitMQ URL (default: events.amqp_url from config)")

	return cmd
}
