package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"organicscan/classifier"
	qhttp "organicscan/http"
	"organicscan/monitoring"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the scan API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServer(ctx)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides config and PORT)")
	rootCmd.AddCommand(serveCmd)
}

// notifyingWarmer tells scan stream subscribers when the watcher brings the
// models online.
type notifyingWarmer struct {
	*classifier.Classifier
	hub *monitoring.ScanHub
}

func (w notifyingWarmer) Warm() error {
	if err := w.Classifier.Warm(); err != nil {
		return err
	}
	return w.hub.PublishModelStatus(true)
}

func runServer(ctx context.Context) error {
	if servePort > 0 {
		cfg.Http.Port = servePort
	}

	clf := classifier.New(classifier.NewFileStore(cfg.Models.Dir), logger)
	if err := clf.Warm(); err != nil {
		logger.Warn("models not loaded, scans fail until they are trained",
			zap.String("dir", cfg.Models.Dir), zap.Error(err))
	}

	metrics := monitoring.NewMetrics()
	metrics.Gauge("models_loaded", "Whether the classification models are loaded.", func() float64 {
		if clf.Loaded() {
			return 1
		}
		return 0
	})

	var predictor classifier.Predictor = clf
	if cfg.Models.CacheSize > 0 {
		cache, err := classifier.NewCachingPredictor(clf, cfg.Models.CacheSize)
		if err != nil {
			return fmt.Errorf("prediction cache: %w", err)
		}
		metrics.Counter("prediction_cache_hits_total", "Scans answered from the prediction cache.", func() float64 {
			return float64(cache.Hits())
		})
		metrics.Counter("prediction_cache_misses_total", "Scans that ran the models.", func() float64 {
			return float64(cache.Misses())
		})
		predictor = cache
	}

	hub := monitoring.NewScanHub(logger, cfg.Http.AllowedOrigins)
	go hub.Run(ctx)
	metrics.Gauge("ws_clients", "Connected scan stream clients.", func() float64 {
		return float64(hub.ClientCount())
	})

	if cfg.Models.Watch && !clf.Loaded() {
		watcher, err := classifier.NewWatcher(cfg.Models.Dir, notifyingWarmer{clf, hub}, logger)
		if err != nil {
			return err
		}
		go func() {
			if err := watcher.Run(ctx); err != nil {
				logger.Warn("model watcher stopped", zap.Error(err))
			}
		}()
	}

	api := qhttp.NewAPI(predictor, clf,
		qhttp.WithScanHub(hub),
		qhttp.WithMetrics(metrics),
		qhttp.WithLogger(logger),
	)
	server := qhttp.NewServer(qhttp.ServerConfig{
		Port:           cfg.Http.Port,
		Timeout:        cfg.Http.Timeout,
		AllowedOrigins: cfg.Http.AllowedOrigins,
		MaxBodyBytes:   cfg.Http.MaxBodyBytes,
	}, api, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	return server.Stop(context.Background())
}
