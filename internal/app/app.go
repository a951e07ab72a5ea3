package app

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/emersion/go-smtp"
	"golang.org/x/sync/errgroup"

	"github.com/yourusername/mailfeed/internal/api"
	"github.com/yourusername/mailfeed/internal/config"
	"github.com/yourusername/mailfeed/internal/ingest"
	"github.com/yourusername/mailfeed/internal/mailauth"
	"github.com/yourusername/mailfeed/internal/mailparse"
	"github.com/yourusername/mailfeed/internal/notify"
	"github.com/yourusername/mailfeed/internal/registry"
	"github.com/yourusername/mailfeed/internal/smtpserver"
	"github.com/yourusername/mailfeed/internal/storage"
)

// App is the runtime container: configuration, store, registries and the
// two servers.
type App struct {
	cfg    config.Config
	logger *slog.Logger

	store      *storage.Store
	registry   *registry.Registry
	hub        *notify.Hub
	dispatcher *notify.Dispatcher
	pipeline   *ingest.Pipeline

	smtpServer *smtp.Server
	webServer  *http.Server
}

// New builds the whole object graph. verifier computes the
// authentication verdicts; pass mailauth.Bypass in test setups.
func New(cfg config.Config, verifier mailauth.Verifier, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{cfg: cfg, logger: logger}

	store, err := storage.NewStore(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	a.store = store

	a.registry = registry.New()
	a.hub = notify.NewHub(logger)
	a.dispatcher = notify.NewDispatcher(a.hub, a.registry, notify.DispatcherConfig{
		WebhookTimeout: cfg.Notify.WebhookTimeout,
		MaxRetries:     cfg.Notify.WebhookMaxRetries,
		InitialBackoff: cfg.Notify.WebhookBackoff,
		BodyLimit:      cfg.Notify.WebhookBodyLimit,
	}, logger)

	a.pipeline = &ingest.Pipeline{
		Domain:     cfg.Domain,
		Store:      a.store,
		Decode:     mailparse.Parse,
		Verifier:   verifier,
		Policy:     mailauth.Policy{RejectSPFFail: cfg.RejectSPFFail},
		Dispatcher: a.dispatcher,
		AuthBypass: cfg.AuthBypass,
		Logger:     logger,
	}

	a.initSMTP()
	a.initWeb()
	return a, nil
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Pipeline exposes the orchestrator, mainly for tests.
func (a *App) Pipeline() *ingest.Pipeline { return a.pipeline }

func (a *App) initSMTP() {
	be := smtpserver.NewBackend(a.pipeline, a.cfg.Domain, a.logger)
	s := smtp.NewServer(be)
	s.Addr = fmt.Sprintf("%s:%d", a.cfg.SMTPHost, a.cfg.SMTPPort)
	s.Domain = a.cfg.Domain
	s.ReadTimeout, s.WriteTimeout = 10*time.Second, 10*time.Second
	s.MaxMessageBytes = a.cfg.MaxMessageBytes
	s.MaxRecipients = 50

	if a.cfg.CertFile != "" && a.cfg.KeyFile != "" {
		if cert, err := tls.LoadX509KeyPair(a.cfg.CertFile, a.cfg.KeyFile); err == nil {
			s.TLSConfig = &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}
		} else {
			a.logger.Warn("TLS disabled", "error", err)
		}
	}

	a.smtpServer = s
}

func (a *App) initWeb() {
	srv := api.NewServer(a.store, a.registry, a.hub, a.cfg.APIToken, api.Options{
		Heartbeat: a.cfg.Notify.HeartbeatInterval,
	}, a.logger)

	a.webServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", a.cfg.WebHost, a.cfg.WebPort),
		Handler: srv.Router(),
	}
}

// Run serves SMTP and HTTP until one of them fails.
func (a *App) Run() error {
	g := new(errgroup.Group)

	g.Go(func() error {
		a.logger.Info("SMTP listening", "addr", a.smtpServer.Addr)
		return a.smtpServer.ListenAndServe()
	})
	g.Go(func() error {
		a.logger.Info("HTTP listening", "addr", a.webServer.Addr)
		if err := a.webServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	return g.Wait()
}

// Close shuts both servers down, waits for in-flight webhook deliveries,
// and closes the store.
func (a *App) Close() error {
	_ = a.smtpServer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = a.webServer.Shutdown(ctx)

	a.dispatcher.Wait()
	return a.store.Close()
}
