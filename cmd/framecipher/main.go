package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/DavidOeztuerk/Skillswap-sub014/pkg/config"
	http_server "github.com/DavidOeztuerk/Skillswap-sub014/pkg/http"
	"github.com/DavidOeztuerk/Skillswap-sub014/pkg/keyring"
	"github.com/DavidOeztuerk/Skillswap-sub014/pkg/metrics"
	"github.com/DavidOeztuerk/Skillswap-sub014/pkg/telemetry"
	"github.com/DavidOeztuerk/Skillswap-sub014/pkg/version"
	"github.com/DavidOeztuerk/Skillswap-sub014/pkg/worker"
)

var logger = logrus.New()

func main() {
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)
	logger.SetLevel(logrus.InfoLevel)

	cfg, err := config.Load(logger)
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	applyLogging(cfg.Logging)

	logger.WithFields(logrus.Fields{
		"version":   version.Version,
		"suite":     cfg.Cipher.Suite,
		"tolerance": cfg.Cipher.GenerationTolerance,
	}).Info("Starting frame cipher engine")

	metrics.Init(logger)

	suite, err := keyring.ParseSuite(cfg.Cipher.Suite)
	if err != nil {
		logger.Fatalf("Invalid cipher suite: %v", err)
	}

	bridge := http_server.NewBridgeHandler(logger, worker.Options{
		Suite:               suite,
		GenerationTolerance: uint8(cfg.Cipher.GenerationTolerance),
		QueueDepth:          cfg.Cipher.QueueDepth,
	})

	server := http_server.NewServer(logger, &cfg.HTTP, bridge)

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	if cfg.Messaging.Enabled {
		publisher, err := telemetry.Dial(
			logger,
			cfg.Messaging.AMQPURL,
			cfg.Messaging.QueueName,
			cfg.Messaging.PublishInterval,
			bridge.AggregateStats,
		)
		if err != nil {
			logger.WithError(err).Error("Stats publishing disabled: AMQP connection failed")
		} else {
			go publisher.Run(rootCtx)
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.WithField("signal", sig.String()).Info("Shutting down")
	case err := <-errCh:
		if err != nil {
			logger.WithError(err).Error("HTTP server exited")
		}
	}

	rootCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Graceful shutdown failed")
	}

	logger.Info("Frame cipher engine stopped")
}

func applyLogging(cfg config.LoggingConfig) {
	if level, err := logrus.ParseLevel(cfg.Level); err == nil {
		logger.SetLevel(level)
	} else {
		logger.WithField("level", cfg.Level).Warn("Unknown log level, keeping info")
	}

	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}
