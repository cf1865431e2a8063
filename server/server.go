package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"gorm.io/gorm"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"

	"github.com/reviewloop/reviewloop/api"
	"github.com/reviewloop/reviewloop/config"
	"github.com/reviewloop/reviewloop/internal/cron"
	cron_config "github.com/reviewloop/reviewloop/internal/cron/config"
	"github.com/reviewloop/reviewloop/internal/logger"
	"github.com/reviewloop/reviewloop/internal/repository"
	"github.com/reviewloop/reviewloop/internal/tracing"
	"github.com/reviewloop/reviewloop/services"
)

const shutdownTimeout = 15 * time.Second

type Server struct {
	config       *config.Config
	log          logger.Logger
	httpServer   *http.Server
	router       *gin.Engine
	services     *services.Services
	repositories *repository.Repositories
	cronManager  *cron.CronManager
	tracerCloser io.Closer
}

func NewServer(cfg *config.Config, log logger.Logger, db *gorm.DB) (*Server, error) {
	tracer, closer, err := tracing.NewJaegerTracer(cfg.Tracing, log)
	if err != nil {
		return nil, fmt.Errorf("could not initialize jaeger tracer: %w", err)
	}
	opentracing.SetGlobalTracer(tracer)

	repos := repository.InitRepositories(db)

	svcs, err := services.InitServices(cfg, log, repos)
	if err != nil {
		closer.Close()
		return nil, err
	}

	cronConfig := &cron_config.Config{}
	if err := config.ParseEnv(cronConfig); err != nil {
		closer.Close()
		return nil, err
	}
	cronManager := cron.NewCronManager(cronConfig, log, kubernetesClient(log), svcs.Scheduler, svcs.ReviewService)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	return &Server{
		config:       cfg,
		log:          log,
		router:       router,
		services:     svcs,
		repositories: repos,
		cronManager:  cronManager,
		tracerCloser: closer,
		httpServer: &http.Server{
			Addr:              ":" + cfg.AppConfig.APIPort,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// kubernetesClient returns nil outside a cluster; the cron manager then runs
// without leader election
func kubernetesClient(log logger.Logger) kubernetes.Interface {
	restConfig, err := rest.InClusterConfig()
	if err != nil {
		log.Infof("Not running in kubernetes: %v", err)
		return nil
	}
	client, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		log.Warnf("Could not create kubernetes client: %v", err)
		return nil
	}
	return client
}

func (s *Server) recoverWithJaeger(name string) {
	if r := recover(); r != nil {
		span := opentracing.GlobalTracer().StartSpan(
			fmt.Sprintf("panic.%s", name),
		)
		defer span.Finish()

		ext.Error.Set(span, true)
		span.LogKV(
			"event", "panic",
			"process", name,
			"error", fmt.Sprintf("%v", r),
			"stack", string(debug.Stack()),
		)

		s.log.Errorf("Panic in %s: %v\n%s", name, r, debug.Stack())
	}
}

func (s *Server) wrapGoroutine(name string, fn func()) {
	defer s.recoverWithJaeger(name)
	fn()
}

func (s *Server) Run() error {
	api.RegisterRoutes(s.router, s.services, s.log, s.config.AppConfig.APIKey)

	if err := s.cronManager.Start(s.config.AppConfig.PodName, s.config.AppConfig.PodNamespace); err != nil {
		return err
	}
	s.log.Info("Cron manager started")

	go s.wrapGoroutine("http_server", func() {
		s.log.Infof("Starting HTTP server on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Errorf("HTTP server error: %v", err)
		}
	})
	s.log.Info("reviewloop is now running. Press Ctrl+C to exit.")

	return s.waitForShutdown()
}

func (s *Server) waitForShutdown() error {
	defer s.recoverWithJaeger("shutdown")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	s.log.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Errorf("HTTP server shutdown error: %v", err)
	} else {
		s.log.Info("HTTP server shut down successfully")
	}

	// waits for a running cycle to finish its in-flight sends
	stopped := make(chan struct{})
	go s.wrapGoroutine("cron_shutdown", func() {
		defer close(stopped)
		s.cronManager.Stop()
	})
	select {
	case <-stopped:
		s.log.Info("Cron manager stopped")
	case <-shutdownCtx.Done():
		s.log.Warn("Cron manager stop timed out, forcing exit")
	}

	if err := s.services.Close(); err != nil {
		s.log.Warnf("Events publisher close error: %v", err)
	}
	if s.tracerCloser != nil {
		s.tracerCloser.Close()
	}
	return nil
}
