package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Reservation ReservationConfig
	Credential  CredentialConfig
	Scanner     ScannerConfig
	CardGateway CardGatewayConfig
	Logging     LoggingConfig
}

type ServerConfig struct {
	Port string
	Host string
	Env  string
}

type DatabaseConfig struct {
	URL      string // Full database URL
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// ReservationConfig controls hold and order lifecycle timing.
type ReservationConfig struct {
	HoldTTL          time.Duration // how long a hold lasts before expiry
	MaxUnitsPerHold  int           // business cap per hold
	SweepInterval    time.Duration // how often the expiry sweeps run
	CashVerifyWindow time.Duration // how long a pending cash order stays reservable
	ServiceFeePct    float64       // order fee percent applied to the subtotal
	PaymentTimeout   time.Duration // bound on a single gateway call
}

// CredentialConfig holds the secret behind ticket tamper-detection hashes.
type CredentialConfig struct {
	Secret string
}

// ScannerConfig controls check-in authentication and rate limiting.
type ScannerConfig struct {
	JWTSecret     string
	RateLimit     int           // validation attempts per key per window
	RateWindow    time.Duration // sliding window for the limit
	TokenLifetime time.Duration
}

type CardGatewayConfig struct {
	BaseURL   string
	SecretKey string
}

type LoggingConfig struct {
	Level string
}

func Load() (*Config, error) {
	// Load .env files if they exist (try .env.local first, then .env)
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Host: getEnv("HOST", "localhost"),
			Env:  getEnv("ENV", "development"),
		},
		Database: parseDatabaseConfig(),
		Reservation: ReservationConfig{
			HoldTTL:          time.Duration(getEnvAsInt("HOLD_TTL_MINUTES", 15)) * time.Minute,
			MaxUnitsPerHold:  getEnvAsInt("MAX_UNITS_PER_HOLD", 10),
			SweepInterval:    time.Duration(getEnvAsInt("SWEEP_INTERVAL_SECONDS", 60)) * time.Second,
			CashVerifyWindow: time.Duration(getEnvAsInt("CASH_VERIFICATION_WINDOW_HOURS", 48)) * time.Hour,
			ServiceFeePct:    getEnvAsFloat("SERVICE_FEE_PERCENT", 3.0),
			PaymentTimeout:   time.Duration(getEnvAsInt("PAYMENT_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		Credential: CredentialConfig{
			Secret: getEnv("CREDENTIAL_SECRET", "change-me-in-production"),
		},
		Scanner: ScannerConfig{
			JWTSecret:     getEnv("SCANNER_JWT_SECRET", "change-me-in-production"),
			RateLimit:     getEnvAsInt("SCAN_RATE_LIMIT", 10),
			RateWindow:    time.Duration(getEnvAsInt("SCAN_RATE_WINDOW_SECONDS", 60)) * time.Second,
			TokenLifetime: time.Duration(getEnvAsInt("SCANNER_TOKEN_LIFETIME_HOURS", 12)) * time.Hour,
		},
		CardGateway: CardGatewayConfig{
			BaseURL:   getEnv("CARD_GATEWAY_URL", ""),
			SecretKey: getEnv("CARD_GATEWAY_SECRET_KEY", ""),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	return config, nil
}

func parseDatabaseConfig() DatabaseConfig {
	var dbConfig DatabaseConfig

	// Check if DATABASE_URL is provided
	if databaseURL := getEnv("DATABASE_URL", ""); databaseURL != "" {
		dbConfig = parseDatabaseURL(databaseURL)
	} else {
		// Fall back to individual environment variables
		dbConfig = DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "ticketgate"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		}
	}

	dbConfig.MaxOpenConns = getEnvAsInt("DB_MAX_OPEN_CONNS", 25)
	dbConfig.MaxIdleConns = getEnvAsInt("DB_MAX_IDLE_CONNS", 5)
	dbConfig.ConnMaxLifetime = time.Duration(getEnvAsInt("DB_CONN_MAX_LIFETIME_MINUTES", 5)) * time.Minute

	return dbConfig
}

func parseDatabaseURL(databaseURL string) DatabaseConfig {
	config := DatabaseConfig{
		URL: databaseURL,
	}

	// Parse the URL
	u, err := url.Parse(databaseURL)
	if err != nil {
		// If parsing fails, return the URL as-is
		return config
	}

	// Extract components
	config.Host = u.Hostname()
	if u.Port() != "" {
		config.Port, _ = strconv.Atoi(u.Port())
	} else {
		config.Port = 5432 // Default PostgreSQL port
	}

	if u.User != nil {
		config.User = u.User.Username()
		config.Password, _ = u.User.Password()
	}

	// Remove leading slash from path to get database name
	config.DBName = strings.TrimPrefix(u.Path, "/")

	// Parse query parameters for SSL mode
	query := u.Query()
	config.SSLMode = query.Get("sslmode")
	if config.SSLMode == "" {
		config.SSLMode = "disable"
	}

	return config
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
