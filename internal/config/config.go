package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type Config struct {
	Server     ServerConfig
	Storage    string
	Postgres   PostgresConfig
	Redis      RedisConfig
	Restaurant RestaurantConfig
	Auth       AuthConfig
	Limits     LimitsConfig
}

type ServerConfig struct {
	Host          string
	Port          int
	PublicBaseURL string
}

type RedisConfig struct {
	Addr     string // empty disables redis
	Password string
	DB       int
}

type PostgresConfig struct {
	User        string
	Password    string
	Name        string
	Host        string
	Port        int
	SSLMode     string
	MaxConns    int32
	AutoMigrate bool
}

func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Name, p.SSLMode,
	)
}

type RestaurantConfig struct {
	Location     *time.Location
	WaitPerParty time.Duration
}

type AuthConfig struct {
	JWTSecret string
}

type LimitsConfig struct {
	RatePerMinute   int
	AvailabilityTTL time.Duration
	IdempotencyTTL  time.Duration
}

func New() (*Config, error) {
	const op = "config.New"

	_ = godotenv.Load()

	serverPort, err := intEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	serverCfg := ServerConfig{
		Host: strEnv("SERVER_HOST", "localhost"),
		Port: serverPort,
	}
	serverCfg.PublicBaseURL = strEnv("PUBLIC_BASE_URL", fmt.Sprintf("http://%s:%d", serverCfg.Host, serverCfg.Port))

	storage := strEnv("STORAGE_DRIVER", StoragePostgres)
	if storage != StoragePostgres && storage != StorageMemory {
		return nil, fmt.Errorf("%s: invalid STORAGE_DRIVER %q", op, storage)
	}

	var postgresCfg PostgresConfig
	if storage == StoragePostgres {
		postgresCfg, err = postgresFromEnv()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	redisDB, err := intEnv("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	redisCfg := RedisConfig{
		Addr:     os.Getenv("REDIS_ADDR"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       redisDB,
	}

	loc, err := time.LoadLocation(strEnv("RESTAURANT_TIMEZONE", "Local"))
	if err != nil {
		return nil, fmt.Errorf("%s: invalid RESTAURANT_TIMEZONE: %w", op, err)
	}

	waitPerParty, err := durationEnv("QUEUE_WAIT_PER_PARTY", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" && storage != StorageMemory {
		return nil, fmt.Errorf("%s: missing JWT_SECRET", op)
	}

	rate, err := intEnv("RATE_LIMIT_PER_MINUTE", 10)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cacheTTL, err := durationEnv("AVAILABILITY_CACHE_TTL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	idemTTL, err := durationEnv("IDEMPOTENCY_TTL", 2*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Config{
		Server:   serverCfg,
		Storage:  storage,
		Postgres: postgresCfg,
		Redis:    redisCfg,
		Restaurant: RestaurantConfig{
			Location:     loc,
			WaitPerParty: waitPerParty,
		},
		Auth: AuthConfig{JWTSecret: jwtSecret},
		Limits: LimitsConfig{
			RatePerMinute:   rate,
			AvailabilityTTL: cacheTTL,
			IdempotencyTTL:  idemTTL,
		},
	}, nil
}

func postgresFromEnv() (PostgresConfig, error) {
	port, err := intEnv("POSTGRES_PORT", 5432)
	if err != nil {
		return PostgresConfig{}, err
	}

	user := os.Getenv("POSTGRES_USER")
	if user == "" {
		return PostgresConfig{}, fmt.Errorf("missing POSTGRES_USER")
	}

	password := os.Getenv("POSTGRES_PASSWORD")
	if password == "" {
		return PostgresConfig{}, fmt.Errorf("missing POSTGRES_PASSWORD")
	}

	name := os.Getenv("POSTGRES_DB")
	if name == "" {
		return PostgresConfig{}, fmt.Errorf("missing POSTGRES_DB")
	}

	maxConns, err := intEnv("POSTGRES_MAX_CONNS", 0)
	if err != nil {
		return PostgresConfig{}, err
	}

	autoMigrate, err := boolEnv("POSTGRES_AUTO_MIGRATE", false)
	if err != nil {
		return PostgresConfig{}, err
	}

	return PostgresConfig{
		User:        user,
		Password:    password,
		Name:        name,
		Host:        strEnv("POSTGRES_HOST", "localhost"),
		Port:        port,
		SSLMode:     strEnv("POSTGRES_SSLMODE", "disable"),
		MaxConns:    int32(maxConns),
		AutoMigrate: autoMigrate,
	}, nil
}

func strEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func boolEnv(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
