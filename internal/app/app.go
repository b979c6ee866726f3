// Package app assembles the running server from configuration: it picks
// the Postgres or in-memory store, Redis or in-process change fan-out,
// MinIO or filesystem document storage and the crash reporter.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"edusync/internal/config"
	"edusync/internal/feedback"
	"edusync/internal/ratelimit"
	"edusync/internal/security"
	"edusync/internal/server"
	"edusync/internal/util"
	"edusync/pkg/account"
	"edusync/pkg/backend"
	"edusync/pkg/live"
	"edusync/pkg/storage"
	"edusync/pkg/store"
)

// App owns every long-lived dependency of the server.
type App struct {
	Server *server.Server

	closers []func() error
}

// New builds the application. Anything opened before a failure is closed
// again.
func New(ctx context.Context, cfg config.FileConfig, logger *slog.Logger) (_ *App, err error) {
	a := &App{}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	trusted, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	var dataStore store.Store
	if cfg.DatabaseURL != "" {
		gs, err := store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
		a.closers = append(a.closers, gs.Close)
		dataStore = gs
	} else {
		logger.Warn("databaseURL not set, using in-memory store")
		dataStore = store.NewMemoryStore()
	}

	var (
		client   redis.UniversalClient
		notifier live.Notifier
		revoker  store.TokenRevoker
	)
	if cfg.RedisAddr != "" {
		client = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		a.closers = append(a.closers, client.Close)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		notifier = live.NewRedisNotifier(client, "edusync:changes")
		revoker = store.NewRedisTokenRevoker(client, "edusync:revoked")
	} else {
		logger.Warn("redisAddr not set, change notifications and revocations stay in-process")
		notifier = live.NewBroker()
		revoker = store.NewMemoryTokenRevoker()
	}

	var objects storage.ObjectStore
	if cfg.MinioEndpoint != "" {
		ms, err := storage.NewMinioStore(ctx, storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("init minio: %w", err)
		}
		objects = ms
	} else {
		fs, err := storage.NewFileStore(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("init file storage: %w", err)
		}
		objects = fs
	}

	var reporter feedback.CrashReporter = feedback.NewLogReporter(logger)
	if cfg.AMQPURL != "" {
		ar, err := feedback.NewAMQPReporter(cfg.AMQPURL, cfg.CrashQueue)
		if err != nil {
			return nil, fmt.Errorf("init crash reporter: %w", err)
		}
		a.closers = append(a.closers, ar.Close)
		reporter = ar
	}

	sessions, err := store.NewJWTSessionStore(cfg.JWTSecret, cfg.SessionDuration(), revoker, store.JWTOptions{
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
	})
	if err != nil {
		return nil, fmt.Errorf("init sessions: %w", err)
	}
	accounts, err := account.New(account.Config{Store: dataStore, Sessions: sessions})
	if err != nil {
		return nil, err
	}
	svc, err := backend.New(backend.Config{
		Store:       dataStore,
		Objects:     objects,
		Notifier:    notifier,
		CallTimeout: cfg.CallTimeoutDuration(),
		URLExpiry:   cfg.URLExpiryDuration(),
		Location:    loc,
	})
	if err != nil {
		return nil, err
	}

	signupLimiter, err := newLimiter(client, "signup", rateOrDefault(cfg.SignupRateLimitPerMinute, 5))
	if err != nil {
		return nil, err
	}
	loginLimiter, err := newLimiter(client, "login", rateOrDefault(cfg.LoginRateLimitPerMinute, 10))
	if err != nil {
		return nil, err
	}
	rules := security.DefaultRules
	if cfg.LoginAlertThreshold > 0 {
		rules = make(map[string]security.Rule, len(security.DefaultRules))
		for event, rule := range security.DefaultRules {
			rules[event] = rule
		}
		rules[security.EventLogin] = security.Rule{Threshold: int64(cfg.LoginAlertThreshold), Window: 5 * time.Minute}
	}

	a.Server, err = server.New(server.Config{
		Accounts:       accounts,
		Backend:        svc,
		SignupLimiter:  signupLimiter,
		LoginLimiter:   loginLimiter,
		Alerter:        security.NewAuditAlerter(client, "edusync:alerts", rules),
		Reporter:       reporter,
		TrustedProxies: trusted,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// newLimiter keeps counters in Redis when a client is configured so that
// every instance shares one quota.
func newLimiter(client redis.UniversalClient, name string, limit int) (ratelimit.Limiter, error) {
	if client == nil {
		return ratelimit.NewMemoryLimiter(limit, time.Minute)
	}
	l, err := ratelimit.NewRedisFixedWindowLimiter(client, "edusync:ratelimit:"+name, limit, time.Minute)
	if err != nil {
		return nil, fmt.Errorf("init %s limiter: %w", name, err)
	}
	return l, nil
}

func rateOrDefault(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

// Close releases connections in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
