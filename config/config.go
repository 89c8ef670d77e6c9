package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

type Config struct {
	ServiceName string
	LoggerLevel string

	AppPort         int
	ShutdownTimeout time.Duration

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	MigrationsPath   string

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	TelegramBotToken string

	JWTSecret string
	JWTIssuer string

	// LiveRelay selects how live events fan out: "local" keeps them in
	// process, "redis" relays them through Redis pub/sub to every instance.
	LiveRelay string

	NotifyConcurrency int

	// Timezone is where pickup hours are read for the fare bands.
	Timezone    string
	PricingFile string
	Pricing     Pricing
}

func Load() Config {
	_ = godotenv.Load(".env")

	cfg := Config{}

	cfg.ServiceName = cast.ToString(getOrReturnDefault("SERVICE_NAME", "ridebook"))
	cfg.LoggerLevel = cast.ToString(getOrReturnDefault("LOGGER_LEVEL", "debug"))
	cfg.AppPort = cast.ToInt(getOrReturnDefault("APP_PORT", 8080))
	cfg.ShutdownTimeout = cast.ToDuration(getOrReturnDefault("SHUTDOWN_TIMEOUT", "10s"))

	cfg.PostgresHost = cast.ToString(getOrReturnDefault("POSTGRES_HOST", "localhost"))
	cfg.PostgresPort = cast.ToString(getOrReturnDefault("POSTGRES_PORT", "5432"))
	cfg.PostgresUser = cast.ToString(getOrReturnDefault("POSTGRES_USER", "postgres"))
	cfg.PostgresPassword = cast.ToString(getOrReturnDefault("POSTGRES_PASSWORD", "1234"))
	cfg.PostgresDB = cast.ToString(getOrReturnDefault("POSTGRES_DB", "ridebook"))
	cfg.MigrationsPath = cast.ToString(getOrReturnDefault("MIGRATIONS_PATH", "migrations"))

	cfg.RedisHost = cast.ToString(getOrReturnDefault("REDIS_HOST", "localhost"))
	cfg.RedisPort = cast.ToString(getOrReturnDefault("REDIS_PORT", "6379"))
	cfg.RedisPassword = cast.ToString(getOrReturnDefault("REDIS_PASSWORD", ""))
	cfg.RedisDB = cast.ToInt(getOrReturnDefault("REDIS_DB", 0))

	cfg.TelegramBotToken = cast.ToString(getOrReturnDefault("TG_BOT_TOKEN", ""))

	cfg.JWTSecret = cast.ToString(getOrReturnDefault("JWT_SECRET", "change-me"))
	cfg.JWTIssuer = cast.ToString(getOrReturnDefault("JWT_ISSUER", "ridebook"))

	cfg.LiveRelay = cast.ToString(getOrReturnDefault("LIVE_RELAY", "local"))
	cfg.NotifyConcurrency = cast.ToInt(getOrReturnDefault("NOTIFY_CONCURRENCY", 5))

	cfg.Timezone = cast.ToString(getOrReturnDefault("TIMEZONE", "Asia/Kuala_Lumpur"))
	cfg.Pricing = DefaultPricing()
	cfg.PricingFile = cast.ToString(getOrReturnDefault("PRICING_FILE", ""))
	if cfg.PricingFile != "" {
		p, err := LoadPricing(cfg.PricingFile)
		if err != nil {
			panic(err)
		}
		cfg.Pricing = p
	}

	return cfg
}

func (c Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

func getOrReturnDefault(key string, defaultValue interface{}) interface{} {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return defaultValue
}
