package main

import (
	"context"
	"expvar"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"deskflow/dispatch-service/internal/config"
	"deskflow/dispatch-service/internal/dispatch"
	"deskflow/dispatch-service/internal/estimate"
	"deskflow/dispatch-service/internal/events"
	"deskflow/dispatch-service/internal/httpapi"
	"deskflow/dispatch-service/internal/hub"
	"deskflow/dispatch-service/internal/models"
	"deskflow/dispatch-service/internal/registry"
	"deskflow/dispatch-service/internal/scheduler"
	"deskflow/dispatch-service/internal/store"
	"deskflow/dispatch-service/internal/store/postgres"
	"deskflow/dispatch-service/internal/telemetry"

	"github.com/google/uuid"
	"github.com/igm/sockjs-go/sockjs"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg := config.Load()
	shutdownTelemetry := telemetry.Setup("dispatch-service")
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	if cfg.StationsPath == "" {
		log.Fatal("STATIONS_PATH is required")
	}
	reg, err := registry.LoadFile(cfg.StationsPath)
	if err != nil {
		log.Fatalf("load stations: %v", err)
	}

	st := store.New(reg)
	sch := scheduler.New(st)
	est := estimate.New(reg, st)

	options := dispatch.Options{DefaultActor: cfg.DefaultActor}

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db connect: %v", err)
		}
		defer pool.Close()

		journal := postgres.NewJournal(pool)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := journal.Setup(ctx); err != nil {
			cancel()
			log.Fatalf("journal setup: %v", err)
		}
		cancel()
		options.Journal = journalWithTimeout{journal: journal, timeout: cfg.JournalTimeout}
	}

	h := hub.New()
	options.Sinks = append(options.Sinks, h)

	if cfg.NATSURL != "" {
		publisher, err := events.NewPublisher(cfg.NATSURL)
		if err != nil {
			log.Fatalf("nats connect: %v", err)
		}
		defer publisher.Close()
		options.Sinks = append(options.Sinks, publisher)
	}

	coordinator := dispatch.New(reg, st, sch, est, options)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := coordinator.Restore(ctx); err != nil {
		cancel()
		log.Fatalf("restore: %v", err)
	}
	cancel()

	handler := httpapi.NewHandler(coordinator)
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		IPPerMinute:      cfg.RateLimitPerMinute,
		IPBurst:          cfg.RateLimitBurst,
		StationPerMinute: cfg.StationRateLimitPerMinute,
		StationBurst:     cfg.StationRateLimitBurst,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", expvar.Handler())
	mux.Handle("/api/", handler.Routes())
	mux.Handle("/healthz", handler.Routes())
	mux.Handle("/realtime/", sockjs.NewHandler("/realtime", sockjs.DefaultOptions, func(session sockjs.Session) {
		client := &hub.Client{ID: uuid.NewString(), Send: make(chan []byte, 16)}
		h.Register(client)
		defer h.Unregister(client)

		go func() {
			for msg := range client.Send {
				_ = session.Send(string(msg))
			}
		}()

		for {
			msg, err := session.Recv()
			if err != nil {
				return
			}
			parsed, ok := hub.ParseSubscribe([]byte(msg))
			if !ok {
				continue
			}
			if parsed.Action == "unsubscribe" {
				h.UpdateSubscription(client, hub.Subscription{})
				continue
			}
			h.UpdateSubscription(client, hub.Subscription{StationID: parsed.StationID})
		}
	}))

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(httpapi.LoggingMiddleware(limiter.Middleware(mux)), "dispatch-service"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("dispatch-service listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

// journalWithTimeout bounds every journal call so a stalled database
// surfaces as a timeout instead of blocking a station lock.
type journalWithTimeout struct {
	journal *postgres.Journal
	timeout time.Duration
}

func (j journalWithTimeout) AppendEvent(ctx context.Context, event models.DispatchEvent, ticket models.Ticket) error {
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}
	return j.journal.AppendEvent(ctx, event, ticket)
}

func (j journalWithTimeout) LoadActiveTickets(ctx context.Context) ([]models.Ticket, error) {
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}
	return j.journal.LoadActiveTickets(ctx)
}
