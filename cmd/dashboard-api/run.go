package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	apiserver "github.com/retinalab/retina-dashboard/internal/api_server"
	"github.com/retinalab/retina-dashboard/internal/artifact"
	"github.com/retinalab/retina-dashboard/internal/assistant"
	"github.com/retinalab/retina-dashboard/internal/audit"
	"github.com/retinalab/retina-dashboard/internal/auth"
	"github.com/retinalab/retina-dashboard/internal/config"
	"github.com/retinalab/retina-dashboard/internal/events"
	v1 "github.com/retinalab/retina-dashboard/internal/handlers/v1"
	"github.com/retinalab/retina-dashboard/internal/jobs"
	"github.com/retinalab/retina-dashboard/internal/processing"
	"github.com/retinalab/retina-dashboard/internal/service"
	"github.com/retinalab/retina-dashboard/internal/store"
	"github.com/retinalab/retina-dashboard/pkg/migrations"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the dashboard api",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, done := setup()
		defer done()

		zap.S().Info("Starting API service")
		defer zap.S().Info("API service stopped")
		zap.S().Infof("Using config: %s", cfg)

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
		defer cancel()

		zap.S().Info("Initializing data store")
		db, err := store.InitDB(cfg)
		if err != nil {
			zap.S().Fatalw("initializing data store", "error", err)
		}

		if cfg.Database.Type == "sqlite" || cfg.Service.MigrationFolder == "" {
			err = store.AutoMigrate(db)
		} else {
			err = migrations.MigrateStore(db, cfg.Service.MigrationFolder)
		}
		if err != nil {
			zap.S().Fatalw("running migrations", "error", err)
		}

		jobClient, err := jobs.NewClient(ctx, cfg, db)
		if err != nil {
			zap.S().Fatalw("initializing job client", "error", err)
		}
		if err := jobClient.Migrate(ctx); err != nil {
			zap.S().Fatalw("running migrations", "error", err)
		}

		s := store.NewStore(db)
		defer s.Close()

		artifacts, err := newArtifactStore(ctx, cfg.Service.S3)
		if err != nil {
			zap.S().Fatalw("initializing artifact store", "error", err)
		}

		writer, err := newEventWriter(cfg.Service.Events)
		if err != nil {
			zap.S().Fatalw("initializing event writer", "error", err)
		}
		producer := events.NewEventProducer(writer, events.WithOutputTopic(cfg.Service.Events.Topic))
		defer func() {
			_ = producer.Close()
		}()

		recorder := audit.NewRecorder(s.Audit())
		engine := processing.NewEngine(s, jobClient, producer, recorder, processing.Config{
			FundusDelay:   cfg.Service.Processing.FundusDelay.Duration(),
			ErgDelay:      cfg.Service.Processing.ErgDelay.Duration(),
			AnalysisDelay: cfg.Service.Processing.AnalysisDelay.Duration(),
		})

		if err := jobClient.Start(ctx, processing.NewWorkers(engine)); err != nil {
			zap.S().Fatalw("starting job client", "error", err)
		}
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), jobs.DefaultStopTimeout)
			defer stopCancel()
			if err := jobClient.Stop(stopCtx); err != nil {
				zap.S().Warnw("failed to stop job client", "error", err)
			}
		}()

		sweeper := processing.NewSweeper(engine,
			cfg.Service.Processing.SweepInterval.Duration(),
			cfg.Service.Processing.StuckTimeout.Duration(),
		)
		go sweeper.Run(ctx)

		handler := v1.NewServiceHandler(
			service.NewUploadService(s, artifacts, engine, recorder),
			service.NewAnalysisService(s, engine, recorder, service.NewReportService()),
			service.NewConsentService(recorder),
			service.NewChatService(s, assistant.NewKeyword()),
		)

		authenticator, err := auth.NewAuthenticator(cfg.Service.Auth)
		if err != nil {
			zap.S().Fatalw("creating authenticator", "error", err)
		}

		go func() {
			defer cancel()
			listener, err := newListener(cfg.Service.Address)
			if err != nil {
				zap.S().Fatalw("creating listener", "error", err)
			}

			server := apiserver.New(cfg, listener, handler, authenticator, s)
			if err := server.Run(ctx); err != nil {
				zap.S().Fatalw("Error running server", "error", err)
			}
		}()

		go func() {
			defer cancel()
			listener, err := newListener(cfg.Service.MetricsAddress)
			if err != nil {
				zap.S().Fatalw("creating listener", "error", err)
			}

			metricsServer := apiserver.NewMetricServer(cfg.Service.MetricsAddress, listener)
			if err := metricsServer.Run(ctx); err != nil {
				zap.S().Fatalw("Error running metrics server", "error", err)
			}
		}()

		<-ctx.Done()
		return nil
	},
}

func newArtifactStore(ctx context.Context, cfg config.S3) (artifact.Store, error) {
	if cfg.Endpoint == "" {
		zap.S().Warn("no s3 endpoint configured, artifacts are kept in memory")
		return artifact.NewMemoryStore(), nil
	}

	m, err := artifact.NewMinioStore(
		artifact.WithEndpoint(cfg.Endpoint),
		artifact.WithBucket(cfg.Bucket),
		artifact.WithAccessKey(cfg.AccessKey),
		artifact.WithSecretKey(cfg.SecretKey),
		artifact.WithSSL(cfg.UseSSL),
		artifact.WithPublicURL(cfg.PublicURL),
	)
	if err != nil {
		return nil, err
	}
	if err := m.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

func newEventWriter(cfg config.Events) (events.Writer, error) {
	switch cfg.Writer {
	case "kafka":
		return events.NewKafkaWriter(cfg.Brokers, cfg.ClientID)
	case "stdout", "":
		return &events.StdoutWriter{}, nil
	case "none":
		return &events.DiscardWriter{}, nil
	default:
		return nil, fmt.Errorf("unknown event writer %q", cfg.Writer)
	}
}

func newListener(address string) (net.Listener, error) {
	if address == "" {
		address = "localhost:0"
	}
	return net.Listen("tcp", address)
}
