package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/firstcodebyte/artvista-canvas-commerce/internal/cart/cache"
	cartrepo "github.com/firstcodebyte/artvista-canvas-commerce/internal/cart/repository"
	catalogrepo "github.com/firstcodebyte/artvista-canvas-commerce/internal/catalog/repository"
	"github.com/firstcodebyte/artvista-canvas-commerce/internal/gateway"
	h "github.com/firstcodebyte/artvista-canvas-commerce/internal/http"
	"github.com/firstcodebyte/artvista-canvas-commerce/internal/orders/publisher"
	"github.com/firstcodebyte/artvista-canvas-commerce/internal/orders/repository"
	"github.com/firstcodebyte/artvista-canvas-commerce/internal/orders/service"
	"github.com/firstcodebyte/artvista-canvas-commerce/internal/reconciliation"
	"github.com/firstcodebyte/artvista-canvas-commerce/internal/session"
	"github.com/firstcodebyte/artvista-canvas-commerce/pkg/config"
	"github.com/firstcodebyte/artvista-canvas-commerce/pkg/logger"
	"github.com/firstcodebyte/artvista-canvas-commerce/pkg/metrics"
	"github.com/firstcodebyte/artvista-canvas-commerce/pkg/shutdown"
	"github.com/midtrans/midtrans-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const serviceName = "storefront"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{Service: serviceName, Env: cfg.AppEnv, Level: cfg.LogLevel})

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("storefront stopped with error", "err", err)
		os.Exit(1)
	}
	log.Info("storefront stopped")
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	// Orders
	creds := &repository.Credentials{
		Host:              cfg.DB.Host,
		Port:              cfg.DB.Port,
		User:              cfg.DB.User,
		Password:          cfg.DB.Password,
		DBName:            cfg.DB.Name,
		MigrationsDirPath: cfg.DB.MigrationsPath,
	}
	orders, err := repository.NewRepository(creds)
	if err != nil {
		return fmt.Errorf("connect orders database: %w", err)
	}
	defer orders.Close()
	if err := orders.RunMigrations(creds); err != nil {
		return fmt.Errorf("migrate orders database: %w", err)
	}
	log.Info("orders migrations completed")

	// Reconciliation cases share the orders database
	recCreds := &reconciliation.Credentials{
		Host:              cfg.DB.Host,
		Port:              cfg.DB.Port,
		User:              cfg.DB.User,
		Password:          cfg.DB.Password,
		DBName:            cfg.DB.Name,
		MigrationsDirPath: cfg.DB.ReconciliationMigrationsPath,
	}
	cases, err := reconciliation.NewStore(ctx, recCreds)
	if err != nil {
		return fmt.Errorf("connect reconciliation store: %w", err)
	}
	defer cases.Close()
	if err := cases.RunMigrations(recCreds); err != nil {
		return fmt.Errorf("migrate reconciliation store: %w", err)
	}

	// Catalog
	artworks, err := catalogrepo.NewRepository(cfg.Catalog.DBPath)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer artworks.Close()
	if err := artworks.RunMigrations(cfg.Catalog.MigrationsPath); err != nil {
		return fmt.Errorf("migrate catalog: %w", err)
	}

	// Carts
	mongoDB, err := cartrepo.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return err
	}
	defer func() {
		if err := mongoDB.Client().Disconnect(context.Background()); err != nil {
			log.Warn("mongo disconnect failed", "err", err)
		}
	}()
	carts := cartrepo.NewMongoRepository(mongoDB)
	if err := carts.CreateIndexes(ctx); err != nil {
		return fmt.Errorf("ensure cart indexes: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}

	sessions := session.NewManager(
		session.NewCachedStore(carts, cache.NewRedisCache(rdb), log),
		log)

	// Gateway
	adapter, parsers, err := newGateway(cfg.Gateway, log)
	if err != nil {
		return err
	}

	queue := reconciliation.NewKafkaQueue(cfg.Kafka...)
	defer queue.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewServerMetrics(reg, serviceName)

	lifecycle := service.NewLifecycle(service.Deps{
		Repo:     orders,
		Gateway:  adapter,
		Sessions: sessions,
		Guard:    service.NewRedisGuard(rdb),
		Queue:    queue,
		Metrics:  m,
		Logger:   log,
		GuardTTL: cfg.OrderStaleAfter + time.Minute,
	})
	history := service.NewHistoryReader(orders, log)

	poller := publisher.NewOutboxPoller(orders, lifecycle, cfg.OrderStaleAfter, log, cfg.Kafka...)
	defer poller.Close()

	router := h.NewRouter(h.RouterConfig{
		JWTSecret:      []byte(cfg.JWTSecret),
		RequestTimeout: cfg.RequestTimeout,
		Logger:         log,
		Metrics:        m,
		Gatherer:       reg,
	}, h.Handlers{
		Session:  h.NewSessionHandler(sessions, cfg.RequestTimeout),
		Cart:     h.NewCartHandler(sessions, artworks, cfg.RequestTimeout),
		Checkout: h.NewCheckoutHandler(sessions, lifecycle, log, cfg.RequestTimeout),
		Payment:  h.NewPaymentHandler(adapter, parsers.razorpay, parsers.midtrans, log, cfg.RequestTimeout),
		Orders:   h.NewOrdersHandler(history, cfg.RequestTimeout),
		Admin: h.NewAdminHandler(cases, map[string]h.Pinger{
			"postgres": orders,
			"redis":    redisPinger{rdb},
			"mongo":    mongoPinger{mongoDB},
		}, 2*time.Second),
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		poller.Run(gctx)
		return nil
	})

	g.Go(func() error {
		log.Info("http server starting", "port", cfg.HTTPPort, "gateway", adapter.Provider())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		log.Info("grpc health server starting", "port", cfg.GRPCPort)
		return grpcServer.Serve(lis)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down storefront")
		healthServer.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		grpcServer.GracefulStop()
		return err
	})

	return g.Wait()
}

type parsers struct {
	razorpay h.CallbackParser
	midtrans h.CallbackParser
}

// newGateway builds the adapter for the configured provider and the callback parser of that provider.
func newGateway(cfg config.Gateway, log *slog.Logger) (*gateway.Adapter, parsers, error) {
	client := &http.Client{Timeout: 5 * time.Second}

	switch cfg.Provider {
	case "razorpay":
		if cfg.RazorpayKeySecret == "" {
			return nil, parsers{}, errors.New("RAZORPAY_KEY_SECRET is required for the razorpay gateway")
		}
		rp := gateway.NewRazorpay(gateway.RazorpayConfig{
			KeyID:       cfg.RazorpayKeyID,
			KeySecret:   cfg.RazorpayKeySecret,
			ScriptURL:   cfg.ScriptURL,
			CallbackURL: cfg.CallbackURL,
		})
		loader := gateway.NewScriptLoader(cfg.ScriptURL, client)
		return gateway.NewAdapter(loader, rp, log), parsers{razorpay: rp.ParseCallback}, nil

	case "midtrans":
		if cfg.MidtransServerKey == "" {
			return nil, parsers{}, errors.New("MIDTRANS_SERVER_KEY is required for the midtrans gateway")
		}
		env := midtrans.Sandbox
		if cfg.MidtransEnv == "production" {
			env = midtrans.Production
		}
		mt := gateway.NewMidtrans(cfg.MidtransServerKey, cfg.MidtransClientKey, env)
		loader := gateway.NewScriptLoader(mt.ScriptURL(), client)
		return gateway.NewAdapter(loader, mt, log), parsers{midtrans: mt.ParseNotification}, nil

	default:
		return nil, parsers{}, fmt.Errorf("unknown gateway provider %q", cfg.Provider)
	}
}

type redisPinger struct{ c *redis.Client }

func (p redisPinger) Ping(ctx context.Context) error { return p.c.Ping(ctx).Err() }

type mongoPinger struct{ db *mongo.Database }

func (p mongoPinger) Ping(ctx context.Context) error { return p.db.Client().Ping(ctx, nil) }
