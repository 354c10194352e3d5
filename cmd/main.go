/**
 * @description
 * This is the main entry point for the checkout-service. It is responsible
 * for initializing all components of the service, including configuration,
 * database connection, external API clients, message brokers, repositories,
 * the core application services, the cron scheduler, and the HTTP server. It
 * wires everything together and starts the service.
 *
 * @dependencies
 * - log, log/slog, net/http: Standard Go libraries.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - github.com/redis/go-redis/v9: Redis client for rate limiting.
 * - internal/api, internal/app, internal/config, internal/jobs, internal/store.
 * - pkg/attributionclient, pkg/gatewayclient, pkg/notifyclient, pkg/rabbitmq.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/tendapay/checkout-service/internal/api"
	"github.com/tendapay/checkout-service/internal/app"
	"github.com/tendapay/checkout-service/internal/config"
	"github.com/tendapay/checkout-service/internal/domain"
	"github.com/tendapay/checkout-service/internal/jobs"
	"github.com/tendapay/checkout-service/internal/store"
	"github.com/tendapay/checkout-service/pkg/attributionclient"
	"github.com/tendapay/checkout-service/pkg/gatewayclient"
	"github.com/tendapay/checkout-service/pkg/notifyclient"
	cqrabbit "github.com/tendapay/checkout-service/pkg/rabbitmq"
)

func main() {
	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.InternalAPIKey) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"internal api key must be configured\" env=INTERNAL_API_KEY")
	}

	log.Printf("level=info component=bootstrap msg=\"starting checkout-service\" port=%s", cfg.ServerPort)

	// Resolve the local timezone used for revenue windows and remarketing
	// day boundaries. A bad name degrades to UTC rather than failing boot.
	location, err := time.LoadLocation(cfg.LocalTimezone)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"timezone load failed; falling back to UTC\" tz=%s err=%v", cfg.LocalTimezone, err)
		location = time.UTC
	}

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	// Configure connection pool for checkout traffic bursts.
	poolConfig.MaxConns = 100
	poolConfig.MinConns = 20
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Ensure required tables exist (idempotent)
	if err := store.EnsureSchema(context.Background(), dbpool); err != nil {
		log.Printf("level=warn component=bootstrap msg=\"schema bootstrap failed (may already exist)\" err=%v", err)
	}

	// Initialize the RabbitMQ producer to publish sale lifecycle events.
	// Checkout must keep working when the broker is down, so a failed
	// connection degrades to the no-op fallback publisher.
	var producer cqrabbit.Publisher
	eventProducer, err := cqrabbit.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		producer = &cqrabbit.EventProducerFallback{}
	} else {
		defer eventProducer.Close()
		producer = eventProducer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	// Initialize external service clients.
	gatewayClient := gatewayclient.NewClient(cfg.GatewayAPIBaseURL, cfg.GatewayAPIKey, time.Duration(cfg.GatewayTimeoutSeconds)*time.Second)
	notifyClient := notifyclient.NewClient(cfg.NotifyServiceURL, cfg.NotifyServiceAPIKey)
	attributionClient := attributionclient.NewClient(cfg.AttributionServiceURL, cfg.AttributionServiceAPIKey)

	// Optional Redis for rate limiting; missing or unreachable Redis just
	// disables limiting.
	var redisClient *redis.Client
	rateLimitingEnabled := cfg.CheckoutRateLimitPerMinute > 0 || cfg.WebhookRateLimitPerMinute > 0
	if rateLimitingEnabled {
		if strings.TrimSpace(cfg.RedisURL) == "" {
			log.Println("level=warn component=bootstrap msg=\"redis url missing; rate limiting disabled\" env=REDIS_URL")
		} else {
			redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
			if parseErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; rate limiting disabled\" err=%v", parseErr)
			} else {
				redisClient = redis.NewClient(redisOptions)
				pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancelPing()
				if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
					log.Printf("level=warn component=bootstrap msg=\"redis ping failed; rate limiting disabled\" err=%v", pingErr)
					redisClient.Close()
					redisClient = nil
				} else {
					defer redisClient.Close()
					log.Println("level=info component=bootstrap msg=\"redis connected\"")
				}
			}
		}
	}

	// Initialize the data access layer (repository).
	repository := store.NewPostgresRepository(dbpool, cfg.LocalTimezone)

	// Initialize the core application services with their dependencies.
	reconciler := app.NewReconciler(repository, producer)
	checkoutService := app.NewService(repository, gatewayClient, reconciler)
	balanceService := app.NewBalanceService(repository, location)
	remarketingService := app.NewRemarketingService(repository, notifyClient, location)

	var rateLimiter *app.RedisRateLimiter
	if redisClient != nil {
		rateLimiter = app.NewRedisRateLimiter(redisClient, cfg.RedisRateLimitPrefix)
	}

	// Initialize the API handlers and router.
	handlers := api.NewCheckoutHandlers(checkoutService, balanceService, rateLimiter, cfg.CheckoutRateLimitPerMinute, cfg.WebhookRateLimitPerMinute)
	router := api.CheckoutRoutes(handlers, cfg.InternalAPIKey)

	// Wire up the sale event consumer so this instance also performs the
	// side effects of terminal transitions.
	saleConsumer := app.NewSaleEventConsumer(repository, balanceService, notifyClient, attributionClient, remarketingService)
	rabbitConsumer, err := cqrabbit.NewConsumer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq consumer unavailable; sale side effects disabled on this instance\" err=%v", err)
	} else {
		defer rabbitConsumer.Close()
		if err := rabbitConsumer.ConsumeWithBindings(domain.SaleEventExchange, cfg.SaleEventQueue, saleConsumer.Bindings()); err != nil {
			log.Fatalf("level=fatal component=bootstrap msg=\"sale event consumer start failed\" err=%v", err)
		}
		log.Printf("level=info component=bootstrap msg=\"sale event consumer started\" queue=%s", cfg.SaleEventQueue)
	}

	// Start the cron scheduler for the remarketing drain and stale report.
	slogger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	scheduler := jobs.NewScheduler(jobs.NewJobs(remarketingService, repository, slogger, cfg), slogger, cfg)
	scheduler.Start()

	// Start the HTTP server.
	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	<-scheduler.Stop().Done()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
