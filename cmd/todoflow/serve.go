package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"todoflow/internal/api"
	"todoflow/internal/auth"
	"todoflow/internal/config"
	"todoflow/internal/db"
	"todoflow/pkg/chat"
	"todoflow/pkg/consumer"
	"todoflow/pkg/event"
	"todoflow/pkg/log"
	"todoflow/pkg/task"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log.Init(log.Config{Level: log.Level(cfg.LogLevel), JSONOutput: cfg.LogJSON})
	logger := log.WithComponent("serve")

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	tasks := task.NewPgStore(pool)
	chatStore := chat.NewPgStore(pool)
	if err := tasks.EnsureTable(ctx); err != nil {
		return err
	}
	if err := chatStore.EnsureTables(ctx); err != nil {
		return err
	}

	authMgr, err := auth.New(cfg.AuthSecret)
	if err != nil {
		return err
	}

	// One event backend per deployment. In-process dispatch runs the
	// consumers inside this process; with Kafka they live in the worker.
	var (
		pub event.Publisher
		bus *event.Bus
	)
	switch cfg.EventBackend {
	case config.BackendKafka:
		pub = event.NewKafkaProducer(cfg.KafkaBrokers, log.WithComponent("kafka-producer"))
	default:
		bus = event.NewBus(log.WithComponent("bus"))
		pub = bus

		recurring := consumer.NewRecurring(tasks, log.WithComponent("recurring-consumer"))
		bus.Subscribe(event.TaskCompleted, recurring.Handle)

		reminder := consumer.NewReminder(
			consumer.LogNotifier{Log: log.WithComponent("notifier")},
			log.WithComponent("reminder-consumer"),
		)
		bus.Subscribe(event.ReminderDue, reminder.Handle)
	}
	defer pub.Close()

	scheduler := consumer.NewScheduler(tasks, pub, cfg.ReminderInterval, log.WithComponent("scheduler"))
	go func() {
		if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("scheduler stopped")
		}
	}()

	var responder chat.Responder
	if cfg.OpenAIKey != "" {
		responder = chat.NewOpenAI(cfg.OpenAIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL)
		logger.Info().Msg("chat agent using OpenAI API")
	} else {
		responder = chat.Mock{}
		logger.Info().Msg("chat agent running in mock mode (no API key)")
	}
	chatSvc := chat.NewService(chatStore, tasks, pub, responder, log.WithComponent("chat"))

	server := api.New(api.Deps{
		Tasks:            tasks,
		Chat:             chatSvc,
		ChatStore:        chatStore,
		Auth:             authMgr,
		Publisher:        pub,
		Bus:              bus,
		DevTokenEndpoint: cfg.DevTokenEndpoint,
		EventBackend:     cfg.EventBackend,
		Logger:           log.WithComponent("http"),
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", httpServer.Addr).Str("event_backend", cfg.EventBackend).Msg("listening")
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
