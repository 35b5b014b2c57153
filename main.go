package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"civichero-be/config"
	"civichero-be/controllers"
	"civichero-be/logger"
	"civichero-be/metrics"
	"civichero-be/middlewares"
	"civichero-be/notify"
	"civichero-be/repository"
	"civichero-be/routes"
	"civichero-be/services"
	"civichero-be/session"
	"civichero-be/storage"
	"civichero-be/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var (
	verbose bool
	cfg     *config.Config
	log     *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "civichero",
	Short: "Civic issue reporting API for citizens and NGOs",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		log, err = logger.New(cfg.Env, verbose)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the demo citizen and NGO accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		client, db, err := config.ConnectDB(ctx, cfg)
		if err != nil {
			return err
		}
		defer client.Disconnect(context.Background())

		users := repository.NewUserRepository(db)
		if err := users.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("failed to create user indexes: %w", err)
		}
		return config.SeedDemoUsers(ctx, users, session.NewPasswordProvider(users), log)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.AddCommand(serveCmd, seedCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newFeed(rdb *redis.Client) (notify.Feed, func(), error) {
	if cfg.ChangeFeed == "nats" {
		nc, err := config.ConnectNATS(cfg)
		if err != nil {
			return nil, nil, err
		}
		log.Info("change feed on NATS", zap.String("url", cfg.NATSURL))
		return notify.NewNATSFeed(nc, log), func() { _ = nc.Drain() }, nil
	}
	log.Info("change feed on Redis pub/sub")
	return notify.NewRedisFeed(rdb, log), func() {}, nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := repository.NewUserRepository(db).EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}
	if err := repository.NewIssueRepository(db).EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("failed to create issue indexes: %w", err)
	}
	return nil
}

func serve(ctx context.Context) error {
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	client, db, err := config.ConnectDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Disconnect(context.Background())
	log.Info("MongoDB connection established", zap.String("database", cfg.MongoDatabase))

	if err := ensureIndexes(ctx, db); err != nil {
		return err
	}

	rdb, err := config.ConnectRedis(ctx, cfg)
	if err != nil {
		return err
	}
	defer rdb.Close()

	feed, closeFeed, err := newFeed(rdb)
	if err != nil {
		return err
	}
	defer closeFeed()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	users := repository.NewUserRepository(db)
	issues := repository.NewIssueRepository(db)
	files := storage.NewGridFSStore(db, cfg.PublicBaseURL)

	sessions := session.NewStore(
		session.NewPasswordProvider(users),
		users,
		session.NewRedisCache(rdb),
		session.Config{JWTSecret: cfg.JWTSecret, TTL: cfg.SessionTTL},
		log,
	)

	issueSvc := services.NewIssueService(issues, sessions, files, feed, collector,
		services.IssueServiceConfig{ResolveAward: cfg.XPResolveAward}, log)
	leaderboard := services.NewLeaderboardService(users)
	dashboards := services.NewDashboardService(issueSvc, leaderboard)

	origins := middlewares.ExplicitOrigins(cfg.CORSOrigins)
	hub := ws.NewIssueHub(feed, origins, log)
	go func() {
		if err := hub.Run(ctx); err != nil {
			log.Error("issue hub stopped", zap.Error(err))
		}
	}()

	loginLimiter := middlewares.NewLoginRateLimiter(cfg.LoginRatePerMin, log)
	defer loginLimiter.Stop()

	router := routes.NewRouter(routes.Handlers{
		Auth: controllers.NewAuthController(sessions, controllers.CookieConfig{
			Domain:     cfg.Domain,
			Production: cfg.Production(),
			JWTSecret:  cfg.JWTSecret,
		}, log),
		Issue: controllers.NewIssueController(issueSvc),
		User:  controllers.NewUserController(leaderboard, dashboards),
		File:  controllers.NewFileController(files),

		Authenticate: middlewares.Authenticate(sessions, cfg.JWTSecret, log),
		LoginLimiter: loginLimiter.Middleware(),
		IssueLimiter: middlewares.IssueRateLimiter(rdb, cfg.IssueLimitPrefix, cfg.IssueDailyLimit, log),

		IssueFeed: hub.HandleWebSocket,
		Metrics:   metrics.Handler(reg),

		Middleware: []gin.HandlerFunc{
			middlewares.RequestLogger(log, collector),
			middlewares.CORS(origins),
		},
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("API server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Info("API server stopped gracefully")
	return nil
}
