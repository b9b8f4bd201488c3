package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/code19m/errx"
	"github.com/rcrowley/go-metrics"

	"github.com/rise-and-shine/fileupload/cfgloader"
	"github.com/rise-and-shine/fileupload/filestore"
	"github.com/rise-and-shine/fileupload/filestore/localfs"
	"github.com/rise-and-shine/fileupload/filestore/miniowr"
	"github.com/rise-and-shine/fileupload/http/server"
	"github.com/rise-and-shine/fileupload/http/server/middleware"
	"github.com/rise-and-shine/fileupload/http/uploadapi"
	"github.com/rise-and-shine/fileupload/meta"
	"github.com/rise-and-shine/fileupload/observability/logger"
	"github.com/rise-and-shine/fileupload/observability/tracing"
	"github.com/rise-and-shine/fileupload/records"
	"github.com/rise-and-shine/fileupload/upload"
)

const (
	serviceName    = "fileupload"
	serviceVersion = "v0.1.0"

	driverLocal = "local"
	driverMinIO = "minio"

	shutdownTimeout = 10 * time.Second
	metricsInterval = time.Minute
)

// Config is the demo host configuration, loaded from ./config/${ENVIRONMENT}.yaml.
type Config struct {
	Logger  logger.Config              `yaml:"logger"`
	Tracing tracing.Config             `yaml:"tracing"`
	HTTP    server.Config              `yaml:"http"`
	Storage StorageConfig              `yaml:"storage"`
	Uploads map[string]upload.Settings `yaml:"uploads" validate:"required,min=1,dive"`
}

// StorageConfig selects and configures the file store backend.
type StorageConfig struct {
	Driver string          `yaml:"driver" validate:"oneof=local minio" default:"local"`
	Local  *localfs.Config `yaml:"local" validate:"required_if=Driver local"`
	MinIO  *miniowr.Config `yaml:"minio" validate:"required_if=Driver minio"`
}

func main() {
	cfg := cfgloader.MustLoad[Config]()

	meta.SetServiceInfo(serviceName, serviceVersion)
	logger.SetGlobal(cfg.Logger)
	defer func() { _ = logger.Sync() }()

	log := logger.Named("main")

	shutdownTracer, err := tracing.InitGlobalTracer(cfg.Tracing, serviceName, serviceVersion)
	if err != nil {
		log.Fatalx(err)
	}
	defer func() {
		if shutdownErr := shutdownTracer(); shutdownErr != nil {
			log.Errorx(shutdownErr)
		}
	}()

	store, err := newStore(cfg.Storage)
	if err != nil {
		log.Fatalx(err)
	}

	recs := records.NewMemory()
	registry := metrics.NewRegistry()

	uploads, err := upload.BuildRegistry(cfg.Uploads, store,
		upload.WithLogger(logger.Named("upload")),
		upload.WithMetrics(registry),
		upload.WithRecordReader(recs),
	)
	if err != nil {
		log.Fatalx(err)
	}
	log.With("aliases", uploads.Aliases(), "driver", cfg.Storage.Driver).Info("upload registry ready")

	srv := server.NewHTTPServer(cfg.HTTP, []server.Middleware{
		middleware.NewRecoveryMW(log),
		middleware.NewTracingMW(),
		middleware.NewTimeoutMW(cfg.HTTP.HandleTimeout),
		middleware.NewMetaInjectMW(),
		middleware.NewLoggerMW(log),
		middleware.NewErrorHandlerMW(cfg.HTTP.HideErrorDetails),
	})
	uploadapi.NewHandler(uploads, recs, store, log).Register(srv.App())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go reportMetrics(ctx, registry, logger.Named("metrics"))

	go func() {
		log.With("address", cfg.HTTP.Address()).Info("http server listening")
		if serveErr := srv.Start(); serveErr != nil {
			log.Errorx(errx.Wrap(serveErr))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err = srv.Stop(shutdownCtx); err != nil {
		log.Errorx(errx.Wrap(err))
	}
	log.Info("server stopped")
}

func newStore(cfg StorageConfig) (filestore.FileStore, error) {
	switch cfg.Driver {
	case driverMinIO:
		return miniowr.New(*cfg.MinIO)
	default:
		return localfs.New(*cfg.Local)
	}
}

// reportMetrics logs a snapshot of every upload counter until ctx is done.
func reportMetrics(ctx context.Context, registry metrics.Registry, log logger.Logger) {
	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snapshot := make(map[string]int64)
			registry.Each(func(name string, m any) {
				if c, ok := m.(metrics.Counter); ok {
					snapshot[name] = c.Count()
				}
			})
			log.With("counters", snapshot).Info("upload metrics")
		}
	}
}
