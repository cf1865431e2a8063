package mocks

import "github.com/reviewloop/reviewloop/internal/logger"

// NewLogger returns an initialized development logger for tests
func NewLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode:  true,
		LogLevel: "error",
	})
	appLogger.InitLogger()
	return appLogger
}
