package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	LogLevel   string
	Database   DatabaseConfig
	Rabbit     RabbitConfig
	Gateway    GatewayConfig
	Settlement SettlementConfig
	Withdrawal WithdrawalConfig
	Mutation   MutationConfig
	Report     ReportConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RabbitConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	VHost    string
	Queue    string
	Prefetch int
	Workers  int
}

// GatewayConfig carries the payment-gateway credentials used to verify
// notification signatures.
type GatewayConfig struct {
	ServerKey string
	Env       string
}

type SettlementConfig struct {
	MerchantCommissionRate decimal.Decimal
	DriverShareRate        decimal.Decimal
}

// WithdrawalConfig bounds payout requests. Amounts are minor currency units.
type WithdrawalConfig struct {
	MinAmount        decimal.Decimal
	DailyMaxDriver   decimal.Decimal
	DailyMaxMerchant decimal.Decimal
}

// MutationConfig bounds per-account lock acquisition and conflict retries.
type MutationConfig struct {
	LockTimeout time.Duration
	MaxRetries  int
}

type ReportConfig struct {
	Interval time.Duration
}

func Load() *Config {
	// .env is optional; production relies on real environment variables.
	_ = godotenv.Load()

	dbPort, _ := strconv.Atoi(getEnv("DB_PORT", "5432"))
	rmqPort, _ := strconv.Atoi(getEnv("RABBITMQ_PORT", "5672"))
	prefetch, _ := strconv.Atoi(getEnv("RABBITMQ_PREFETCH", "32"))
	workers, _ := strconv.Atoi(getEnv("RABBITMQ_WORKERS", "4"))
	lockTimeoutMs, _ := strconv.Atoi(getEnv("MUTATION_LOCK_TIMEOUT_MS", "3000"))
	maxRetries, _ := strconv.Atoi(getEnv("MUTATION_MAX_RETRIES", "3"))
	reportInterval, _ := strconv.Atoi(getEnv("REPORT_INTERVAL_SECONDS", "300"))

	return &Config{
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "settlement_db"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Rabbit: RabbitConfig{
			Host:     getEnv("RABBITMQ_HOST", "localhost"),
			Port:     rmqPort,
			User:     getEnv("RABBITMQ_USER", "guest"),
			Password: getEnv("RABBITMQ_PASSWORD", "guest"),
			VHost:    getEnv("RABBITMQ_VHOST", "/"),
			Queue:    getEnv("RABBITMQ_QUEUE", "gateway_notifications"),
			Prefetch: prefetch,
			Workers:  workers,
		},
		Gateway: GatewayConfig{
			ServerKey: getEnv("GATEWAY_SERVER_KEY", ""),
			Env:       getEnv("GATEWAY_ENV", "sandbox"),
		},
		Settlement: SettlementConfig{
			MerchantCommissionRate: getEnvDecimal("MERCHANT_COMMISSION_RATE", "0.15"),
			DriverShareRate:        getEnvDecimal("DRIVER_SHARE_RATE", "0.80"),
		},
		Withdrawal: WithdrawalConfig{
			MinAmount:        getEnvDecimal("WITHDRAWAL_MIN_AMOUNT", "50000"),
			DailyMaxDriver:   getEnvDecimal("WITHDRAWAL_DAILY_MAX_DRIVER", "2000000"),
			DailyMaxMerchant: getEnvDecimal("WITHDRAWAL_DAILY_MAX_MERCHANT", "10000000"),
		},
		Mutation: MutationConfig{
			LockTimeout: time.Duration(lockTimeoutMs) * time.Millisecond,
			MaxRetries:  maxRetries,
		},
		Report: ReportConfig{
			Interval: time.Duration(reportInterval) * time.Second,
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDecimal(key, defaultValue string) decimal.Decimal {
	d, err := decimal.NewFromString(getEnv(key, defaultValue))
	if err != nil {
		d, _ = decimal.NewFromString(defaultValue)
	}
	return d
}
