package app

import (
	"context"
	"fmt"
	"time"

	"github.com/condoprime/mono-repo/backend/services/tenancy-service/internal/config"
	"github.com/condoprime/mono-repo/backend/shared/go-repositories"
	"github.com/condoprime/mono-repo/backend/shared/go-utils"
	"github.com/jackc/pgx/v4/pgxpool"
)

const (
	maxRetries     = 5
	connectTimeout = 5 * time.Second
	initialBackoff = 500 * time.Millisecond
)

// App owns the two independently-owned stores. Nothing ever opens a
// transaction spanning both pools.
type App struct {
	Config     *config.Config
	IdentityDB *pgxpool.Pool
	TenancyDB  *pgxpool.Pool
}

func NewApp(cfg *config.Config) (*App, error) {
	identityDB, err := connectWithRetry("identity", cfg.IdentityDBUrl)
	if err != nil {
		return nil, err
	}
	tenancyDB, err := connectWithRetry("tenancy", cfg.TenancyDBUrl)
	if err != nil {
		identityDB.Close()
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := repositories.InitIdentitySchema(ctx, identityDB); err != nil {
		identityDB.Close()
		tenancyDB.Close()
		return nil, err
	}
	if err := repositories.InitTenancySchema(ctx, tenancyDB); err != nil {
		identityDB.Close()
		tenancyDB.Close()
		return nil, err
	}

	return &App{
		Config:     cfg,
		IdentityDB: identityDB,
		TenancyDB:  tenancyDB,
	}, nil
}

// Ping checks both stores; the first failure wins.
func (a *App) Ping(ctx context.Context) error {
	if err := a.IdentityDB.Ping(ctx); err != nil {
		return fmt.Errorf("identity store: %w", err)
	}
	if err := a.TenancyDB.Ping(ctx); err != nil {
		return fmt.Errorf("tenancy store: %w", err)
	}
	return nil
}

func (a *App) Close() {
	if a.IdentityDB != nil {
		a.IdentityDB.Close()
	}
	if a.TenancyDB != nil {
		a.TenancyDB.Close()
	}
	utils.Logger.Info("Database connections closed.")
}

func connectWithRetry(name, databaseURL string) (*pgxpool.Pool, error) {
	backoff := initialBackoff
	for i := 1; i <= maxRetries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		pool, err := newDBPool(ctx, databaseURL)
		cancel()
		if err == nil {
			utils.Logger.Infof("Connected to %s database on attempt %d", name, i)
			return pool, nil
		}

		utils.Logger.WithError(err).Warnf(
			"Failed to connect to %s database on attempt %d/%d. Retrying in %v...",
			name, i, maxRetries, backoff,
		)
		if i == maxRetries {
			return nil, fmt.Errorf("unable to connect to %s database after %d attempts: %w", name, maxRetries, err)
		}
		time.Sleep(backoff)
		backoff *= 2
	}
	return nil, fmt.Errorf("unable to connect to %s database", name)
}

// newDBPool constructs the pgx pool with production-safe settings.
func newDBPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	cfg.MaxConnIdleTime = 2 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second
	return pgxpool.ConnectConfig(ctx, cfg)
}
