package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"vistream/billing-service/internal/checkout"
	"vistream/billing-service/internal/config"
	"vistream/billing-service/internal/gateway"
	"vistream/billing-service/internal/httpapi"
	"vistream/billing-service/internal/order"
	"vistream/billing-service/internal/plan"
	"vistream/billing-service/internal/storage"
	"vistream/billing-service/internal/subscription"
	"vistream/billing-service/pkg/messaging"

	"github.com/joho/godotenv"
)

type App struct {
	cfg       config.Config
	logger    *slog.Logger
	store     *storage.Store
	publisher messaging.Publisher
	outbox    *messaging.OutboxDispatcher
	httpSrv   *http.Server
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	store, err := storage.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	plans := plan.NewCatalog(store.Pool())
	orders := order.NewStore(store.Pool())
	ledger := subscription.NewLedger(store.Pool())
	gw := gateway.NewClient(cfg.Gateway)

	orchestrator := checkout.NewOrchestrator(plans, orders, gw, logger)
	reconciler := checkout.NewReconciler(checkout.ReconcilerConfig{
		IPNSecret:      cfg.Gateway.IPNSecret,
		ReturnSecret:   cfg.Gateway.ReturnSecret,
		ReturnFallback: cfg.Gateway.ReturnFallback,
		QueryDelay:     cfg.Gateway.QueryDelay,
	}, plans, orders, ledger, gw, logger)

	publisher, err := messaging.NewRabbitPublisher(cfg.RabbitURL, cfg.EventsExchange)
	if err != nil {
		store.Close()
		return nil, err
	}

	outbox := messaging.NewOutboxDispatcher(store.Pool(), publisher, cfg.OutboxInterval, cfg.OutboxBatch, logger)

	api := httpapi.NewServer(orchestrator, reconciler, orders, ledger, plans, logger)
	httpSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api,
	}

	return &App{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		publisher: publisher,
		outbox:    outbox,
		httpSrv:   httpSrv,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)

	a.outbox.Start(ctx)

	go func() {
		a.logger.Info("billing http server listening", "addr", a.cfg.HTTPAddr)
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

func (a *App) Close(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.ShutdownGracePeriod)
	defer cancel()
	_ = a.httpSrv.Shutdown(shutdownCtx)
	a.publisher.Close()
	a.store.Close()
}

func Run() error {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer app.Close(ctx)

	return app.Run(ctx)
}
