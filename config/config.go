package config

import (
	"time"

	"github.com/reviewloop/reviewloop/internal/logger"
	"github.com/reviewloop/reviewloop/internal/tracing"
	"github.com/reviewloop/reviewloop/services/events"
	"github.com/reviewloop/reviewloop/services/mailer"
	"github.com/reviewloop/reviewloop/services/reviews"
	"github.com/reviewloop/reviewloop/services/scheduler"
	"github.com/reviewloop/reviewloop/services/storage"
)

type AppConfig struct {
	APIPort     string `env:"PORT,required" envDefault:"12222"`
	APIKey      string `env:"API_KEY,required"`
	PodName     string `env:"POD_NAME" envDefault:"local"`
	PodNamespace string `env:"POD_NAMESPACE" envDefault:"default"`
	// Key for the stored mail tokens, 32 bytes raw or base64
	EncryptionKey string `env:"ENCRYPTION_KEY,required"`
}

type TrackingConfig struct {
	PublicUrl   string        `env:"TRACKING_PUBLIC_URL" envDefault:"http://localhost:12222"`
	TokenSecret string        `env:"TRACKING_TOKEN_SECRET,required"`
	TokenExpiry time.Duration `env:"TRACKING_TOKEN_EXPIRY" envDefault:"2160h"`
}

type DispatcherConfig struct {
	MailerTimeout time.Duration `env:"MAILER_TIMEOUT" envDefault:"30s"`
}

type DatabaseConfig struct {
	Host            string `env:"REVIEWLOOP_POSTGRES_HOST,required"`
	Port            string `env:"REVIEWLOOP_POSTGRES_PORT,required"`
	User            string `env:"REVIEWLOOP_POSTGRES_USER,required"`
	DBName          string `env:"REVIEWLOOP_POSTGRES_DB_NAME,required"`
	Password        string `env:"REVIEWLOOP_POSTGRES_PASSWORD,required"`
	MaxConn         int    `env:"REVIEWLOOP_POSTGRES_DB_MAX_CONN" envDefault:"50"`
	MaxIdleConn     int    `env:"REVIEWLOOP_POSTGRES_DB_MAX_IDLE_CONN" envDefault:"10"`
	ConnMaxLifetime int    `env:"REVIEWLOOP_POSTGRES_DB_CONN_MAX_LIFETIME" envDefault:"60"`
	LogLevel        string `env:"REVIEWLOOP_POSTGRES_LOG_LEVEL" envDefault:"WARN"`
	SSLMode         string `env:"REVIEWLOOP_POSTGRES_SSL_MODE" envDefault:"require"`
}

type Config struct {
	AppConfig        *AppConfig
	TrackingConfig   *TrackingConfig
	DispatcherConfig *DispatcherConfig
	DatabaseConfig   *DatabaseConfig
	Logger           *logger.Config
	Tracing          *tracing.JaegerConfig
	Scheduler        *scheduler.Config
	Events           *events.Config
	Mailer           *mailer.Config
	Reviews          *reviews.Config
	Storage          *storage.Config
}
