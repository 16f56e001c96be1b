package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type (
	Config struct {
		HTTP      HTTP      `envPrefix:"HTTP_"`
		Logger    Logger    `envPrefix:"LOGGER_"`
		Telemetry Telemetry `envPrefix:"TELEMETRY_"`
		DB        DB        `envPrefix:"DB_"`
		Tiles     Tiles     `envPrefix:"TILES_"`
		Cache     Cache     `envPrefix:"CACHE_"`
		Redis     Redis     `envPrefix:"REDIS_"`
	}

	HTTP struct {
		Server  Server        `envPrefix:"SERVER_"`
		Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`
	}

	Server struct {
		Port         string        `env:"PORT,required"`
		ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
		WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"15s"`
		IdleTimeout  time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	}

	Logger struct {
		Level string `env:"LEVEL,required"`
	}

	Telemetry struct {
		Enabled        bool   `env:"ENABLED" envDefault:"false"`
		ServiceName    string `env:"SERVICE_NAME" envDefault:"guide-helper-clusterbuster"`
		ServiceVersion string `env:"SERVICE_VERSION" envDefault:"1.0.0"`
		Environment    string `env:"ENVIRONMENT" envDefault:"production"`
		OTLPEndpoint   string `env:"OTLP_ENDPOINT" envDefault:"otel-collector.observability.svc.cluster.local:4317"`
	}

	DB struct {
		DSN              string        `env:"DSN,required"`
		AppName          string        `env:"APP_NAME" envDefault:"clusterbuster"`
		ConnectTimeout   time.Duration `env:"CONNECT_TIMEOUT" envDefault:"5s"`
		StatementTimeout time.Duration `env:"STATEMENT_TIMEOUT" envDefault:"30s"`
		MaxConns         int32         `env:"MAX_CONNS" envDefault:"10"`
	}

	// Tiles holds server-level defaults for every tile request.
	Tiles struct {
		MaxZoomLevel  int      `env:"MAX_ZOOM_LEVEL" envDefault:"12"`
		Table         string   `env:"TABLE" envDefault:"public.points"`
		Geometry      string   `env:"GEOMETRY" envDefault:"wkb_geometry"`
		SRID          int      `env:"SRID" envDefault:"3857"`
		SourceLayer   string   `env:"SOURCE_LAYER" envDefault:"points"`
		Radius        float64  `env:"RADIUS" envDefault:"15"`
		Extent        int      `env:"EXTENT" envDefault:"4096"`
		BufferSize    int      `env:"BUFFER_SIZE" envDefault:"256"`
		Attributes    []string `env:"ATTRIBUTES" envSeparator:","`
		FilterColumns []string `env:"FILTER_COLUMNS" envSeparator:","`
		AllowedTables []string `env:"ALLOWED_TABLES" envSeparator:","`
		Debug         bool     `env:"DEBUG" envDefault:"false"`
		SingleFlight  bool     `env:"SINGLE_FLIGHT" envDefault:"true"`
	}

	Cache struct {
		Type       string        `env:"TYPE" envDefault:"memory"`
		MaxEntries int           `env:"MAX_ENTRIES" envDefault:"10000"`
		SizeBytes  int           `env:"SIZE_BYTES" envDefault:"268435456"`
		SQLitePath string        `env:"SQLITE_PATH" envDefault:"file:cache.db?cache=shared"`
		TTL        time.Duration `env:"TTL" envDefault:"24h"`
		TTLPerZoom time.Duration `env:"TTL_PER_ZOOM" envDefault:"0s"`
		TTLMax     time.Duration `env:"TTL_MAX" envDefault:"0s"`
		Breaker    Breaker       `envPrefix:"BREAKER_"`
	}

	Breaker struct {
		Enabled          bool          `env:"ENABLED" envDefault:"true"`
		MaxRequests      uint32        `env:"MAX_REQUESTS" envDefault:"5"`
		Interval         time.Duration `env:"INTERVAL" envDefault:"30s"`
		Timeout          time.Duration `env:"TIMEOUT" envDefault:"60s"`
		FailureThreshold float64       `env:"FAILURE_THRESHOLD" envDefault:"0.8"`
		MinRequests      uint32        `env:"MIN_REQUESTS" envDefault:"5"`
	}

	Redis struct {
		Addr     string `env:"ADDR" envDefault:"localhost:6379"`
		Password string `env:"PASSWORD" envDefault:""`
		DB       int    `env:"DB" envDefault:"0"`
	}
)

func New() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Printf("NOTICE: .env file not found or cannot be loaded: %v\n", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}
