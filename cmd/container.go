// cmd/container.go
//
// Root composition root. Owns infrastructure (DB, store client) and wires the
// modules. This is the only place that knows about ALL of them.
package main

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/astralabs/astra-backend/pkg/asyncx"
	"github.com/astralabs/astra-backend/pkg/authx"
	"github.com/astralabs/astra-backend/pkg/authx/authxpg"
	"github.com/astralabs/astra-backend/pkg/config"
	"github.com/astralabs/astra-backend/pkg/logx"
	"github.com/astralabs/astra-backend/pkg/metricx"
	"github.com/astralabs/astra-backend/pkg/queuex"
	"github.com/astralabs/astra-backend/pkg/rebalance"
	"github.com/astralabs/astra-backend/pkg/statusx"
	"github.com/astralabs/astra-backend/pkg/storex"
	"github.com/astralabs/astra-backend/pkg/wsx"
)

// Container holds shared infrastructure and composed modules.
type Container struct {
	Config *config.Config

	// Infrastructure
	DB    *sqlx.DB
	Store *storex.Client

	// Modules
	AuthRepo       *authxpg.Repository
	Queue          *queuex.Queue
	Tracker        *statusx.Tracker
	Metrics        *metricx.Metrics
	Verifier       *authx.JWTVerifier
	AuthMiddleware *authx.Middleware
	Gateway        *wsx.Gateway
	Rebalance      *rebalance.Service
	Handlers       *rebalance.Handlers
}

func NewContainer(ctx context.Context, cfg *config.Config) *Container {
	logx.Info("Initializing application container...")

	c := &Container{Config: cfg}
	c.initInfrastructure(ctx)
	c.initModules()

	logx.Info("Application container initialized")
	return c
}

// ---------------------------------------------------------------------------
// Infrastructure — optional Postgres, store client
// ---------------------------------------------------------------------------

func (c *Container) initInfrastructure(ctx context.Context) {
	if c.Config.Database.Enabled() {
		db, err := sqlx.Connect("postgres", c.Config.Database.DSN())
		if err != nil {
			logx.Fatalf("Failed to connect to database: %v", err)
		}
		db.SetMaxOpenConns(c.Config.Database.MaxOpenConns)
		db.SetMaxIdleConns(c.Config.Database.MaxIdleConns)
		db.SetConnMaxLifetime(c.Config.Database.ConnMaxLifetime)
		c.DB = db
		logx.Info("Database connected")
	} else {
		logx.Info("No database configured, auth falls back to token identities")
	}

	c.Store = storex.NewClient(ctx, storex.Options{
		RestURL:      c.Config.Store.RestURL,
		RestToken:    c.Config.Store.RestToken,
		RedisURL:     c.Config.Store.RedisURL,
		PingAttempts: c.Config.Store.PingAttempts,
		PingBackoff:  c.Config.Store.PingBackoff,
	})
	if !c.Store.SupportsBlocking() {
		logx.Warn("Persistent transport unavailable: blocking pops and the status relay are disabled")
	}
}

// ---------------------------------------------------------------------------
// Module composition
// ---------------------------------------------------------------------------

func (c *Container) initModules() {
	c.Queue = queuex.NewQueue(c.Store, queuex.WithJobTTL(c.Config.Queue.JobTTL))
	c.Tracker = statusx.NewTracker(c.Store)
	c.Metrics = metricx.New(c.Store)

	c.Verifier = authx.NewJWTVerifier(c.Config.Auth.JWTSecret, c.Config.Auth.TokenTTL, c.Config.Auth.Issuer)

	var users authx.UserFinder = authx.TrustedFinder{}
	var revoked authx.RevocationChecker
	if c.DB != nil {
		c.AuthRepo = authxpg.NewRepository(c.DB)
		users = c.AuthRepo
		revoked = c.AuthRepo
	}
	c.AuthMiddleware = authx.NewMiddleware(c.Verifier, users, revoked)

	c.Gateway = wsx.NewGateway(c.Store, c.Verifier, wsx.Options{
		StatusChannel: c.Config.Gateway.StatusChannel,
		PendingTTL:    c.Config.Gateway.PendingTTL,
	})

	c.Rebalance = rebalance.NewService(c.Store, c.Queue, c.Tracker, c.Metrics, c.Gateway, rebalance.Config{
		QueueKey:        c.Config.Queue.RequestKey,
		TrackingKey:     c.Config.Queue.TrackingKey,
		StatusChannel:   c.Config.Gateway.StatusChannel,
		RateLimit:       c.Config.Gateway.RateLimit,
		RateLimitWindow: c.Config.Gateway.RateLimitWindow,
	})
	c.Handlers = rebalance.NewHandlers(c.Rebalance)
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// StartBackgroundServices runs the status relay and the revoked-token
// janitor until ctx is cancelled.
func (c *Container) StartBackgroundServices(ctx context.Context) {
	if c.Store.SupportsBlocking() {
		asyncx.DoCtx(ctx, func(ctx context.Context) {
			for {
				if err := c.Gateway.RunRelay(ctx); err != nil {
					logx.Errorf("Status relay stopped: %v", err)
				}
				select {
				case <-ctx.Done():
					return
				case <-time.After(5 * time.Second):
					logx.Info("Restarting status relay...")
				}
			}
		})
	}

	if c.AuthRepo != nil {
		asyncx.DoCtx(ctx, func(ctx context.Context) {
			ticker := time.NewTicker(time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if n, err := c.AuthRepo.CleanExpired(ctx); err != nil {
						logx.Errorf("Revoked-token cleanup failed: %v", err)
					} else if n > 0 {
						logx.Infof("Dropped %d expired revocation rows", n)
					}
				}
			}
		})
	}
}

func (c *Container) Cleanup() {
	logx.Info("Cleaning up resources...")

	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			logx.Errorf("Error closing database: %v", err)
		}
	}
	if c.Store != nil {
		if err := c.Store.Close(); err != nil {
			logx.Errorf("Error closing store client: %v", err)
		}
	}

	logx.Info("Cleanup complete")
}
