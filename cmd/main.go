package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	grpchealth "google.golang.org/grpc/health"

	"github.com/keil-app/keil-server/internal/api/authctx"
	grpcHealthWatcher "github.com/keil-app/keil-server/internal/api/grpc/health"
	grpcRouter "github.com/keil-app/keil-server/internal/api/grpc/router"
	grpcServer "github.com/keil-app/keil-server/internal/api/grpc/server"
	httpRouter "github.com/keil-app/keil-server/internal/api/http/router"
	httpServer "github.com/keil-app/keil-server/internal/api/http/server"
	"github.com/keil-app/keil-server/internal/config"
	"github.com/keil-app/keil-server/internal/identity"
	"github.com/keil-app/keil-server/internal/logger"
	"github.com/keil-app/keil-server/internal/metrics"
	"github.com/keil-app/keil-server/internal/model"
	"github.com/keil-app/keil-server/internal/repository/postgres"
	"github.com/keil-app/keil-server/internal/repository/sqlite"
	"github.com/keil-app/keil-server/internal/server"
	"github.com/keil-app/keil-server/internal/service"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel)

	users, closeStore, err := openUserStore(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("failed to initialize storage", "error", err, "driver", cfg.Database.Driver)
	}
	defer closeStore()

	verifier, closeVerifier, err := newVerifier(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize identity verifier", "error", err)
	}
	defer closeVerifier()

	m := metrics.New()
	gate := service.NewGate(verifier, users, cfg.Auth.VerifyTimeout, m, logger)
	health := service.NewHealth(users, cfg.Supabase.Configured(), logger)
	ctxMgr := authctx.NewManager()

	gin.SetMode(cfg.HTTP.Mode)
	api := httpServer.NewHTTPServer(
		httpRouter.New(gate, health, ctxMgr, m, cfg.HTTP.CORSAllowedOrigins, logger).Register(),
		fmt.Sprintf(":%s", cfg.HTTP.Port),
	)

	healthServer := grpchealth.NewServer()
	ops := grpcServer.NewGRPCServer(
		grpcRouter.New(gate, healthServer, ctxMgr, logger).Register(),
		fmt.Sprintf(":%s", cfg.GRPC.Port),
	)
	watcher := grpcHealthWatcher.NewWatcher(healthServer, health, cfg.GRPC.HealthInterval, logger)

	sl := server.NewSecurityLayer(cfg.HTTP.EnableHTTPS, cfg.HTTP.CertFileName, cfg.HTTP.PrivateKeyFileName)
	servers := []model.Server{api, ops}

	var wg sync.WaitGroup
	for _, s := range servers {
		wg.Add(1)
		go func(s model.Server) {
			defer wg.Done()
			logger.Info("Starting server on", "address", s.Address())
			if err := s.Start(sl); err != nil {
				logger.Error("failed to start server", "error", err, "address", s.Address())
				stop()
			}
		}(s)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		watcher.Run(ctx)
	}()

	logAppVersion()

	<-ctx.Done()
	logger.Info("received interruption signal, shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	for _, s := range servers {
		if err := s.Stop(shutdownCtx); err != nil {
			logger.Error("error during server shutdown", "error", err, "address", s.Address())
		}
	}

	wg.Wait()
	logger.Info("shutdown complete")
}

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}

// storeHandle is what the process needs from a user store.
type storeHandle interface {
	model.UserStore
	Close() error
}

type postgresStore struct {
	*postgres.UserRepository
	conn *postgres.Connection
}

func (s postgresStore) Close() error {
	return s.conn.Close()
}

func openUserStore(ctx context.Context, cfg config.Database) (storeHandle, func(), error) {
	var store storeHandle

	switch cfg.Driver {
	case config.DriverSQLite:
		repo, err := sqlite.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		store = repo
	default:
		conn, err := postgres.NewConection(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		store = postgresStore{UserRepository: postgres.NewUserRepository(conn), conn: conn}
	}

	return store, func() { _ = store.Close() }, nil
}

// newVerifier prefers local JWT verification and wraps the result in the
// Redis cache when one is configured.
func newVerifier(ctx context.Context, cfg *config.Config, logger *logger.Logger) (model.IdentityVerifier, func(), error) {
	var verifier model.IdentityVerifier
	if cfg.Supabase.Local() {
		verifier = identity.NewJWT(cfg.Supabase.JWTSecret, cfg.Supabase.JWTAudience)
		logger.Info("Identity: verifying tokens locally")
	} else {
		verifier = identity.NewSupabase(cfg.Supabase.URL, cfg.Supabase.SecretKey, &http.Client{Timeout: cfg.Auth.VerifyTimeout})
		logger.Info("Identity: verifying tokens against authority", "url", cfg.Supabase.URL)
	}

	if !cfg.Cache.Enabled() {
		return verifier, func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Cache.RedisAddr,
		Password: cfg.Cache.RedisPassword,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger.Info("Identity: verification cache enabled", "addr", cfg.Cache.RedisAddr, "ttl", cfg.Cache.TTL)

	return identity.NewCache(verifier, client, cfg.Cache.TTL, logger), func() { _ = client.Close() }, nil
}
