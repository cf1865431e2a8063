package config

import (
	"log"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"github.com/reviewloop/reviewloop/internal/logger"
	"github.com/reviewloop/reviewloop/internal/tracing"
	"github.com/reviewloop/reviewloop/services/events"
	"github.com/reviewloop/reviewloop/services/mailer"
	"github.com/reviewloop/reviewloop/services/reviews"
	"github.com/reviewloop/reviewloop/services/scheduler"
	"github.com/reviewloop/reviewloop/services/storage"
)

func InitConfig() (*Config, error) {
	config := &Config{
		AppConfig:        &AppConfig{},
		TrackingConfig:   &TrackingConfig{},
		DispatcherConfig: &DispatcherConfig{},
		DatabaseConfig:   &DatabaseConfig{},
		Logger:           &logger.Config{},
		Tracing:          &tracing.JaegerConfig{},
		Scheduler:        &scheduler.Config{},
		Events:           &events.Config{},
		Mailer:           &mailer.Config{},
		Reviews:          &reviews.Config{},
		Storage:          &storage.Config{},
	}

	err := godotenv.Load()
	if err != nil {
		log.Print("Unable to load .env file")
	}

	if err := env.Parse(config); err != nil {
		return nil, err
	}

	return config, nil
}

// ParseEnv fills a component config that is not part of Config
func ParseEnv(target interface{}) error {
	return env.Parse(target)
}
