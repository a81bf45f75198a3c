package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/youngalip/savor-backend/utils"
)

// Config menampung seluruh konfigurasi aplikasi yang dibaca dari environment
type Config struct {
	Port        string
	GinMode     string
	CORSOrigin  string
	FrontendURL string
	JWTSecret   string
	JWTTTL      time.Duration

	SeedDemo          bool
	SeedStaffPassword string
	SeedTableCount    int

	DBDriver string
	DBDSN    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MidtransServerKey string
	MidtransClientKey string
	MidtransEnv       string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string

	SessionWindow     time.Duration
	CustomerRetention time.Duration
	SweepInterval     time.Duration
	RateCacheTTL      time.Duration

	DefaultServiceChargeRate decimal.Decimal
	DefaultTaxRate           decimal.Decimal
}

// Load -> baca .env (jika ada) lalu isi Config dengan default yang aman untuk development
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		utils.InfoLogger.Warn(".env file not found, using process environment")
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigin:  getEnv("CORS_ORIGIN", "http://localhost:5173"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),
		JWTSecret:   getEnv("JWT_SECRET", ""),
		JWTTTL:      getEnvDuration("JWT_TTL", 12*time.Hour),

		SeedDemo:          getEnv("SEED_DEMO", "false") == "true",
		SeedStaffPassword: getEnv("SEED_STAFF_PASSWORD", ""),
		SeedTableCount:    getEnvInt("SEED_TABLE_COUNT", 10),

		DBDriver: getEnv("DB_DRIVER", "mysql"),
		DBDSN:    getEnv("DB_DSN", "root:@tcp(127.0.0.1:3306)/savor?charset=utf8mb4&parseTime=True&loc=Local"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MidtransServerKey: getEnv("MIDTRANS_SERVER_KEY", ""),
		MidtransClientKey: getEnv("MIDTRANS_CLIENT_KEY", ""),
		MidtransEnv:       getEnv("MIDTRANS_ENV", "sandbox"),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@savor.local"),

		SessionWindow:     getEnvDuration("SESSION_WINDOW", 2*time.Hour),
		CustomerRetention: getEnvDuration("CUSTOMER_RETENTION", 24*time.Hour),
		SweepInterval:     getEnvDuration("SWEEP_INTERVAL", 5*time.Minute),
		RateCacheTTL:      getEnvDuration("RATE_CACHE_TTL", time.Hour),

		DefaultServiceChargeRate: getEnvDecimal("DEFAULT_SERVICE_CHARGE_RATE", decimal.RequireFromString("0.07")),
		DefaultTaxRate:           getEnvDecimal("DEFAULT_TAX_RATE", decimal.RequireFromString("0.10")),
	}
}

// IsProductionGateway -> true bila MIDTRANS_ENV=production
func (c *Config) IsProductionGateway() bool {
	return c.MidtransEnv == "production"
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		utils.ErrorLogger.Errorf("invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		utils.ErrorLogger.Errorf("invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}

func getEnvDecimal(key string, fallback decimal.Decimal) decimal.Decimal {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		utils.ErrorLogger.Errorf("invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}
