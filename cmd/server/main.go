// Command server runs the LibriPal HTTP API: catalog search, circulation,
// patron accounts, notifications, and the chat assistant. main only wires
// dependencies; business logic lives in the internal service packages.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"libripal/internal/assistant/llm"
	assistantmetrics "libripal/internal/assistant/metrics"
	assistantservice "libripal/internal/assistant/service"
	"libripal/internal/auth"
	catalogcache "libripal/internal/catalog/cache"
	catalogmetrics "libripal/internal/catalog/metrics"
	catalogservice "libripal/internal/catalog/service"
	"libripal/internal/catalog/source"
	circmetrics "libripal/internal/circulation/metrics"
	circservice "libripal/internal/circulation/service"
	circstore "libripal/internal/circulation/store"
	"libripal/internal/notification/email"
	notifmetrics "libripal/internal/notification/metrics"
	notifservice "libripal/internal/notification/service"
	notifstore "libripal/internal/notification/store"
	"libripal/internal/notification/telegram"
	patronservice "libripal/internal/patron/service"
	patronstore "libripal/internal/patron/store"
	"libripal/internal/platform/config"
	"libripal/internal/platform/httpserver"
	"libripal/internal/platform/logger"
	platformmetrics "libripal/internal/platform/metrics"
	"libripal/internal/platform/postgres"
	"libripal/internal/platform/redis"
	"libripal/internal/reminder"
	remindermetrics "libripal/internal/reminder/metrics"
	httptransport "libripal/internal/transport/http"
	"libripal/pkg/platform/events"
	eventskafka "libripal/pkg/platform/events/store/kafka"
	eventsmemory "libripal/pkg/platform/events/store/memory"
	"libripal/pkg/platform/events/publisher"

	assistanthandler "libripal/internal/assistant/handler"
	cataloghandler "libripal/internal/catalog/handler"
	circhandler "libripal/internal/circulation/handler"
	notifhandler "libripal/internal/notification/handler"
	patronhandler "libripal/internal/patron/handler"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	var health []httptransport.HealthCheck

	// Storage. Without a DSN everything stays in memory, which is enough
	// for local development and the test suites.
	var (
		loanStore   circstore.LoanStore
		patronStore patronstore.PatronStore
		notifStore  notifstore.NotificationStore
		codeStore   notifstore.LinkCodeStore
	)
	if cfg.Database.DSN != "" {
		pool, err := postgres.New(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer pool.Close()
		loanStore = circstore.NewPostgres(pool.DB)
		patronStore = patronstore.NewPostgres(pool.DB)
		pgNotif := notifstore.NewPostgres(pool.DB)
		notifStore, codeStore = pgNotif, pgNotif
		health = append(health, httptransport.HealthCheck{Name: "db", Check: pool.Health})
	} else {
		log.Warn("DATABASE_URL not set, using in-memory storage")
		loanStore = circstore.NewMemory()
		patronStore = patronstore.NewMemory()
		memNotif := notifstore.NewMemory()
		notifStore, codeStore = memNotif, memNotif
	}

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		client, err := redis.New(cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()
		redisClient = client
		health = append(health, httptransport.HealthCheck{Name: "redis", Check: client.Health})
	}

	// Domain events. Kafka when brokers are configured, memory otherwise.
	var eventStore events.Store
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaStore, err := eventskafka.New(ctx, cfg.Kafka.Brokers, eventskafka.WithTopic(cfg.Kafka.Topic))
		if err != nil {
			return err
		}
		defer kafkaStore.Close()
		eventStore = kafkaStore
	} else {
		log.Warn("KAFKA_BROKERS not set, domain events stay in memory")
		eventStore = eventsmemory.NewInMemoryStore()
	}
	pub := publisher.NewPublisher(eventStore, publisher.WithAsyncBuffer(256))
	defer pub.Close()

	appMetrics := platformmetrics.New()

	// Catalog.
	sourceClient := &http.Client{Timeout: cfg.Sources.Timeout}
	googleBooks := source.NewGoogleBooks(
		source.WithGoogleBooksBaseURL(cfg.Sources.GoogleBooksURL),
		source.WithGoogleBooksAPIKey(cfg.Sources.GoogleBooksKey),
		source.WithGoogleBooksHTTPClient(sourceClient),
	)
	openLibrary := source.NewOpenLibrary(
		source.WithOpenLibraryBaseURL(cfg.Sources.OpenLibraryURL),
		source.WithOpenLibraryHTTPClient(sourceClient),
	)
	catalogOpts := []catalogservice.Option{
		catalogservice.WithLogger(log),
		catalogservice.WithMetrics(catalogmetrics.New()),
	}
	if redisClient != nil {
		catalogOpts = append(catalogOpts,
			catalogservice.WithCache(catalogcache.NewRedis(redisClient.Client, cfg.Sources.CacheTTL, log)))
	}
	catalog := catalogservice.New(googleBooks, openLibrary, catalogOpts...)

	// Patron, notification, and circulation services reference each other;
	// the proxies let the patron service come first.
	loanLister := &loanListerProxy{}
	notifLister := &notificationListerProxy{}
	patrons := patronservice.New(patronStore,
		patronservice.WithLogger(log),
		patronservice.WithMetrics(appMetrics),
		patronservice.WithEmitter(pub),
		patronservice.WithLoanLister(loanLister),
		patronservice.WithNotificationLister(notifLister),
	)

	notifOpts := []notifservice.Option{
		notifservice.WithLogger(log),
		notifservice.WithMetrics(notifmetrics.New()),
		notifservice.WithEmitter(pub),
	}
	if cfg.SMTP.Host != "" {
		notifOpts = append(notifOpts, notifservice.WithEmail(
			email.New(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)))
	}
	if cfg.Telegram.BotToken != "" {
		notifOpts = append(notifOpts, notifservice.WithTelegram(
			telegram.New(cfg.Telegram.BotToken, telegram.WithAPIBase(cfg.Telegram.APIBase))))
	}
	notifications := notifservice.New(notifStore, codeStore, patrons, notifOpts...)
	notifLister.svc = notifications

	circulation := circservice.New(loanStore,
		circservice.WithLogger(log),
		circservice.WithMetrics(circmetrics.New()),
		circservice.WithEmitter(pub),
		circservice.WithNotifier(notifications),
	)
	loanLister.svc = circulation

	// Assistant.
	model := llm.NewOpenAI(cfg.OpenAI.APIKey, llm.WithModel(cfg.OpenAI.Model))
	assistant := assistantservice.New(model, catalog, circulation,
		assistantservice.WithLogger(log),
		assistantservice.WithMetrics(assistantmetrics.New()),
	)

	// Auth.
	tokens := auth.NewJWTManager(cfg.Server.JWTSigningKey)
	authService := auth.NewService(auth.NewMockIdentityProvider(), tokens, patrons, auth.WithLogger(log))

	// Reminder sweep.
	sweeper := reminder.New(patrons, loanStore, notifications,
		reminder.WithLogger(log),
		reminder.WithMetrics(remindermetrics.New()),
		reminder.WithEmitter(pub),
	)
	go func() {
		if err := sweeper.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("reminder worker stopped", "error", err)
		}
	}()

	notifHandler := notifhandler.New(notifications, log)
	router := httptransport.NewRouter(httptransport.Deps{
		Logger:    log,
		Metrics:   appMetrics,
		Validator: tokens,
		Public: []httptransport.Registrar{
			auth.NewHandler(authService, log),
			httptransport.RegistrarFunc(notifHandler.RegisterPublic),
		},
		Protected: []httptransport.Registrar{
			cataloghandler.New(catalog, log),
			circhandler.New(circulation, log),
			patronhandler.New(patrons, log),
			notifHandler,
			assistanthandler.New(assistant, log),
		},
		Health: health,
	})

	srv := httpserver.New(cfg.Server.Addr, router)
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting libripal", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}
