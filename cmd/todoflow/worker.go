package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"todoflow/internal/config"
	"todoflow/internal/db"
	"todoflow/pkg/consumer"
	"todoflow/pkg/event"
	"todoflow/pkg/log"
	"todoflow/pkg/task"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the Kafka consumers (recurring tasks and reminders)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runWorker(cmd.Context())
	},
}

func runWorker(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.EventBackend != config.BackendKafka {
		return fmt.Errorf("worker requires EVENT_BACKEND=kafka; the memory backend runs its consumers inside the server process")
	}
	log.Init(log.Config{Level: log.Level(cfg.LogLevel), JSONOutput: cfg.LogJSON})
	logger := log.WithComponent("worker")

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	tasks := task.NewPgStore(pool)

	recurring := consumer.NewRecurring(tasks, log.WithComponent("recurring-consumer"))
	reminder := consumer.NewReminder(
		consumer.LogNotifier{Log: log.WithComponent("notifier")},
		log.WithComponent("reminder-consumer"),
	)

	sources := []struct {
		topic, group string
		handler      event.Handler
	}{
		{event.TopicTaskEvents, event.GroupRecurring, recurring.Handle},
		{event.TopicReminders, event.GroupReminder, reminder.Handle},
	}

	var wg sync.WaitGroup
	errCh := make(chan error, len(sources))
	for _, sc := range sources {
		src := event.NewKafkaSource(cfg.KafkaBrokers, sc.topic, sc.group, log.WithComponent("kafka-source"))
		wg.Add(1)
		go func(src *event.Source, h event.Handler) {
			defer wg.Done()
			defer src.Close()
			if err := src.Run(ctx, h); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- err
			}
		}(src, sc.handler)
	}

	wg.Wait()
	close(errCh)
	for err := range errCh {
		return err
	}
	logger.Info().Msg("worker stopped")
	return nil
}
