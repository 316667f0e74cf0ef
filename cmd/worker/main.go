package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tenantic/assistant-core/internal/bootstrap"
	"github.com/tenantic/assistant-core/internal/config"
	"github.com/tenantic/assistant-core/internal/observability/logging"
	"github.com/tenantic/assistant-core/internal/observability/metrics"
)

const serviceName = "assistant-worker"

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	requeuePending(ctx, app, logger)

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeDocumentProcess(ctx, func(handlerCtx context.Context, documentID string) error {
		processCtx, cancel := context.WithTimeout(handlerCtx, 5*time.Minute)
		defer cancel()

		// Pending rows carry the enqueue time in updated_at.
		if doc, err := app.Documents.GetByID(processCtx, documentID); err == nil {
			workerMetrics.ObserveQueueLag(serviceName, time.Since(doc.UpdatedAt))
		}

		workerMetrics.StartDocument()
		start := time.Now()
		processErr := app.ProcessUC.ProcessByID(processCtx, documentID)
		workerMetrics.FinishDocument(serviceName, time.Since(start), processErr)
		return processErr
	})
	if err != nil {
		logger.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}

// requeuePending republishes documents still marked pending. Jobs whose
// queue message was lost before a worker picked them up get a second
// chance on every worker start.
func requeuePending(ctx context.Context, app *bootstrap.App, logger *slog.Logger) {
	ids, err := app.Documents.ListPendingIDs(ctx)
	if err != nil {
		logger.Error("pending_scan_failed", "error", err)
		return
	}
	for _, id := range ids {
		if err := app.Queue.PublishDocumentProcess(ctx, id); err != nil {
			logger.Error("pending_requeue_failed", "document_id", id, "error", err)
			continue
		}
		logger.Info("pending_requeued", "document_id", id)
	}
}
