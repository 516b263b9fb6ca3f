// Package server initializes and runs the credential service. It opens
// the database, runs migrations, wires the services together, and owns
// the background sweep of dead ledger rows.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/avasilyev-dev/authkeeper/internal/logging"
	"github.com/avasilyev-dev/authkeeper/internal/server/auth"
	"github.com/avasilyev-dev/authkeeper/internal/server/config"
	"github.com/avasilyev-dev/authkeeper/internal/server/federation"
	"github.com/avasilyev-dev/authkeeper/internal/server/hashing"
	"github.com/avasilyev-dev/authkeeper/internal/server/notify"
	"github.com/avasilyev-dev/authkeeper/internal/server/repositories/repomanager"
	"github.com/avasilyev-dev/authkeeper/internal/server/services"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	authService *services.AuthService
	ledger      *services.RefreshLedger
	otpService  *services.OTPService
	oidcClient  *federation.OIDCClient
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	sl := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(sl)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	tokens := auth.NewTokenService(
		[]byte(cfg.AccessTokenSecret), []byte(cfg.RefreshTokenSecret),
		cfg.AccessTokenValidityDuration, cfg.RefreshTokenValidityDuration)

	ledger := services.NewRefreshLedger(db, rm)
	otps := services.NewOTPService(db, rm, cfg.OtpValidityDuration, cfg.OtpCooldown, cfg.OtpMaxAttempts)
	bridge := services.NewFederationBridge(db, rm)
	sender := notify.NewLogSender(logger)

	var oidcClient *federation.OIDCClient
	if len(cfg.OIDCProviders) > 0 {
		oidcClient, err = federation.NewOIDCClient(ctx, cfg.OIDCProviders)
		if err != nil {
			return nil, fmt.Errorf("oidc init error: %w", err)
		}
	}

	authService := services.NewAuthService(db, rm, tokens,
		hashing.NewBcryptHasher(0), ledger, otps, bridge, sender, logger)

	return &App{
		config:      cfg,
		logger:      logger,
		db:          db,
		authService: authService,
		ledger:      ledger,
		otpService:  otps,
		oidcClient:  oidcClient,
	}, nil
}

// Auth returns the auth orchestrator for embedding callers.
func (app *App) Auth() *services.AuthService { return app.authService }

// OIDC returns the relying-party client, or nil when no providers are
// configured.
func (app *App) OIDC() *federation.OIDCClient { return app.oidcClient }

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// runSweeper periodically purges revoked and expired refresh tokens plus
// dead one-time codes until the context is cancelled.
func (app *App) runSweeper(ctx context.Context) {
	ticker := time.NewTicker(app.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			app.sweepOnce(ctx)
		}
	}
}

func (app *App) sweepOnce(ctx context.Context) {
	if n, err := app.ledger.Sweep(ctx); err != nil {
		app.logger.Error(ctx, "refresh token sweep failed", "error", err)
	} else if n > 0 {
		app.logger.Info(ctx, "refresh tokens swept", "count", n)
	}

	if n, err := app.otpService.PurgeExpired(ctx); err != nil {
		app.logger.Error(ctx, "otp purge failed", "error", err)
	} else if n > 0 {
		app.logger.Info(ctx, "one-time codes purged", "count", n)
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "sweep_interval", app.config.SweepInterval.String())

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.runSweeper(ctx)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
}
