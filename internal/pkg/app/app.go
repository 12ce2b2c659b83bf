package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/andrey-berenda/locadora/internal/pkg/config"
	"github.com/andrey-berenda/locadora/internal/pkg/notify"
	"github.com/andrey-berenda/locadora/internal/pkg/processing"
	"github.com/andrey-berenda/locadora/internal/pkg/secrets"
	"github.com/andrey-berenda/locadora/internal/pkg/storage"
	"github.com/andrey-berenda/locadora/internal/pkg/sweep"
	"github.com/andrey-berenda/locadora/internal/pkg/webhook"
)

// App holds the wired services shared by the Lambda functions and the CLI.
type App struct {
	Config     *config.Config
	Logger     *zap.SugaredLogger
	Store      *storage.Store
	Reconciler *webhook.Reconciler
	Sweeper    *sweep.Sweeper
	Processor  processing.Processor
}

func New(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (*App, error) {
	if cfg.NeedsSecrets() {
		client, err := secrets.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("secrets.New: %w", err)
		}
		if err = cfg.ResolveSecrets(ctx, client); err != nil {
			return nil, fmt.Errorf("cfg.ResolveSecrets: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	store, err := storage.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("storage.New: %w", err)
	}

	dispatcher, err := newDispatcher(cfg, store, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	var opts []webhook.Option
	if cfg.AsaasWebhookToken != "" {
		opts = append(opts, webhook.WithToken(cfg.AsaasWebhookToken))
	}

	httpClient := &http.Client{Timeout: 15 * time.Second}

	return &App{
		Config:     cfg,
		Logger:     logger,
		Store:      store,
		Reconciler: webhook.New(store, store, dispatcher, logger, opts...),
		Sweeper:    sweep.New(store, loc, logger),
		Processor:  processing.New(store, httpClient, cfg.AsaasAPIKey, cfg.AsaasBaseURL),
	}, nil
}

func newDispatcher(cfg *config.Config, store *storage.Store, logger *zap.SugaredLogger) (webhook.Dispatcher, error) {
	var ops notify.OpsNotifier
	if cfg.TelegramEnabled() {
		n, err := notify.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramOpsChatID)
		if err != nil {
			return nil, fmt.Errorf("notify.NewTelegramNotifier: %w", err)
		}
		ops = n
	}

	if !cfg.WhatsAppEnabled() {
		logger.Warn("whatsapp sender is not configured, confirmations will fail and be retried on redelivery")
		return notify.New(store, unconfiguredSender{}, ops, logger), nil
	}

	sender := notify.NewWhatsAppSender(nil, "", cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioWhatsAppFrom)
	return notify.New(store, sender, ops, logger), nil
}

type unconfiguredSender struct{}

func (unconfiguredSender) Send(context.Context, string, string) error {
	return fmt.Errorf("whatsapp sender is not configured")
}

func (a *App) Close() {
	a.Store.Close()
	_ = a.Logger.Sync()
}
