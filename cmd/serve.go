package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"timemate/internal/auth"
	"timemate/internal/config"
	"timemate/internal/db"
	grpcserver "timemate/internal/grpc"
	"timemate/internal/handlers"
	"timemate/internal/logging"
	"timemate/internal/middleware"
	"timemate/internal/observability"
	"timemate/internal/rabbitmq"
	"timemate/internal/repositories"
	"timemate/internal/services"
	"timemate/internal/supabase"
	"timemate/internal/telemetry"
)

const auditRoutingKey = "audit.logs"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the gRPC health endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// stores groups the record store implementations for one backend.
type stores struct {
	sessions repositories.SessionRepository
	members  repositories.MembershipRepository
	profiles repositories.ProfileRepository
	pinger   grpcserver.Pinger
	close    func() error
}

func openStores(ctx context.Context, cfg *config.Config, client *supabase.Client) (*stores, error) {
	if cfg.StoreBackend == config.BackendREST {
		store := supabase.NewStore(client)
		return &stores{
			sessions: store,
			members:  store,
			profiles: store,
			pinger:   client,
			close:    func() error { return nil },
		}, nil
	}

	database, err := db.Connect(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	if cfg.DBDriver == db.DriverSQLite {
		if err := db.Migrate(ctx, database); err != nil {
			database.Close()
			return nil, err
		}
	}
	return &stores{
		sessions: repositories.NewSessionRepo(database),
		members:  repositories.NewMembershipRepo(database),
		profiles: repositories.NewProfileRepo(database),
		pinger:   database,
		close:    database.Close,
	}, nil
}

func newRedis(ctx context.Context, cfg *config.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		logrus.Info("redis disabled, auth endpoints are not rate limited")
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		PoolSize:     20,
		MinIdleConns: 2,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		logrus.WithError(err).Warn("redis unreachable, auth endpoints are not rate limited")
		_ = client.Close()
		return nil
	}
	logrus.WithField("addr", cfg.RedisAddr).Info("redis connected")
	return client
}

// publishAuthEvents forwards auth state changes to the event exchange.
func publishAuthEvents(ctx context.Context, change supabase.AuthStateChange) {
	observability.IncAuthEvent(string(change.Event))

	payload := map[string]interface{}{}
	if change.User != nil && change.User.ID != "" {
		payload["user_id"] = change.User.ID
	}
	envelope := observability.EventEnvelope{
		EventType: "auth_events",
		EventName: string(change.Event),
		Payload:   payload,
	}
	key := "auth_events." + strings.ToLower(string(change.Event))
	if err := observability.PublishEvent(ctx, key, envelope, observability.HeadersFromContext(ctx)); err != nil {
		logrus.WithError(err).WithField("event", change.Event).Warn("auth event publish failed")
	}
}

func tokenValidator(cfg *config.Config, authClient *supabase.AuthClient) middleware.TokenValidator {
	if cfg.SupabaseJWTSecret == "" {
		return authClient
	}
	validator, err := auth.NewJWTValidator(cfg.SupabaseJWTSecret)
	if err != nil {
		logrus.WithError(err).Warn("local jwt validation disabled")
		return authClient
	}
	return validator
}

func serve(ctx context.Context, cfg *config.Config) error {
	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.ServiceName, cfg.AppEnv, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logrus.WithError(err).Warn("tracer shutdown failed")
		}
	}()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	logrus.WithFields(logrus.Fields{
		"mode":   rabbitmq.PublisherMode(publisher),
		"reason": rabbitmq.PublisherNoopReason(publisher),
	}).Info("event publisher ready")
	audit := telemetry.NewAuditEmitter(publisher, auditRoutingKey, cfg.ServiceName, cfg.AppEnv)

	if cfg.SupabaseURL == "" {
		logrus.Warn("SUPABASE_URL is empty, auth endpoints will fail")
	}
	client := supabase.New(cfg.SupabaseURL, cfg.SupabaseAnonKey)
	authClient := supabase.NewAuthClient(client)
	unsubscribe := authClient.OnAuthStateChange(publishAuthEvents)
	defer unsubscribe()

	st, err := openStores(ctx, cfg, client)
	if err != nil {
		return err
	}
	defer st.close()

	sessionSvc := services.NewSessionService(st.sessions, st.members, services.SessionConfig{
		PageSize: cfg.SessionPageSize,
		Location: cfg.Location(),
	})
	accountSvc := services.NewAccountService(authClient, st.profiles, cfg.PasswordResetRedirect)

	redisClient := newRedis(ctx, cfg)
	if redisClient != nil {
		defer redisClient.Close()
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		gin.Recovery(),
		otelgin.Middleware(cfg.ServiceName),
		observability.RequestIDMiddleware(),
		logging.RequestLogger(),
		observability.HTTPMetricsMiddleware(),
	)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		if err := st.pinger.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	handlers.RegisterRoutes(router,
		handlers.NewSessionHandler(sessionSvc, audit),
		handlers.NewAuthHandler(accountSvc, audit),
		tokenValidator(cfg, authClient),
		middleware.RateLimit(redisClient, cfg.RateLimitMax, cfg.RateLimitWindow),
	)
	handlers.RegisterDebugRoutes(router, sessionSvc, audit, cfg.DebugRoutes)

	health := grpcserver.NewHealthServer(st.pinger)
	go health.Watch(ctx, 15*time.Second)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}
	go func() {
		logrus.WithField("port", cfg.GRPCPort).Info("grpc health server listening")
		if err := health.Serve(lis); err != nil {
			logrus.WithError(err).Error("grpc server stopped")
		}
	}()
	defer health.Stop()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logrus.WithFields(logrus.Fields{"port": cfg.Port, "backend": cfg.StoreBackend}).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logrus.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
