package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

var ErrMissingJWTSecret = errors.New("JWT_SECRET is required outside dev")

type Config struct {
	AppEnv   string
	LogLevel string

	HTTPPort int
	GRPCPort int

	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	DB       DB
	Catalog  Catalog
	MongoURI string
	MongoDB  string
	Redis    Redis
	Kafka    []string

	JWTSecret string
	Gateway   Gateway

	OrderStaleAfter time.Duration
}

type DB struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	MigrationsPath               string
	ReconciliationMigrationsPath string
}

type Catalog struct {
	DBPath         string
	MigrationsPath string
}

type Redis struct {
	Addr     string
	Password string
}

type Gateway struct {
	// Provider is "razorpay" or "midtrans".
	Provider          string
	RazorpayKeyID     string
	RazorpayKeySecret string
	ScriptURL         string
	CallbackURL       string
	MidtransServerKey string
	MidtransClientKey string
	MidtransEnv       string
}

func Load() (Config, error) {
	cfg := Config{
		AppEnv:   getEnv("APP_ENV", "dev"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		HTTPPort: getEnvInt("HTTP_PORT", 8080),
		GRPCPort: getEnvInt("GRPC_PORT", 8081),

		RequestTimeout:  getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		DB: DB{
			Host:                         getEnv("DB_HOST", "localhost"),
			Port:                         getEnvInt("DB_PORT", 5432),
			User:                         getEnv("DB_USER", "postgres"),
			Password:                     getEnv("DB_PASSWORD", "postgres"),
			Name:                         getEnv("DB_NAME", "artvista"),
			MigrationsPath:               getEnv("MIGRATIONS_PATH", "./internal/orders/repository/migrations"),
			ReconciliationMigrationsPath: getEnv("RECONCILIATION_MIGRATIONS_PATH", "./internal/reconciliation/migrations"),
		},
		Catalog: Catalog{
			DBPath:         getEnv("CATALOG_DB_PATH", "./artvista-catalog.db"),
			MigrationsPath: getEnv("CATALOG_MIGRATIONS_PATH", "./internal/catalog/repository/migrations"),
		},
		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:  getEnv("MONGO_DB_NAME", "cartdb"),
		Redis: Redis{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		Kafka: splitCSV(getEnv("KAFKA_BROKERS", "localhost:9092")),

		JWTSecret: os.Getenv("JWT_SECRET"),
		Gateway: Gateway{
			Provider:          strings.ToLower(getEnv("GATEWAY_PROVIDER", "razorpay")),
			RazorpayKeyID:     getEnv("RAZORPAY_KEY_ID", "rzp_test_artvista"),
			RazorpayKeySecret: os.Getenv("RAZORPAY_KEY_SECRET"),
			ScriptURL:         getEnv("RAZORPAY_SCRIPT_URL", "https://checkout.razorpay.com/v1/checkout.js"),
			CallbackURL:       getEnv("PAYMENT_CALLBACK_URL", "http://localhost:8080/api/v1/payments/razorpay/callback"),
			MidtransServerKey: os.Getenv("MIDTRANS_SERVER_KEY"),
			MidtransClientKey: os.Getenv("MIDTRANS_CLIENT_KEY"),
			MidtransEnv:       getEnv("MIDTRANS_ENV", "sandbox"),
		},

		OrderStaleAfter: getEnvDuration("ORDER_STALE_AFTER", 15*time.Minute),
	}

	if cfg.JWTSecret == "" {
		if cfg.AppEnv != "dev" {
			return Config{}, ErrMissingJWTSecret
		}
		cfg.JWTSecret = "dev-secret-please-change"
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)

	if v == "" {
		return def
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}

	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}

	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
