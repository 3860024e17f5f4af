// Package api assembles the worker's HTTP server: router wiring,
// middleware stack, and graceful shutdown. Grounded on the teacher's
// api/http.go ListenAndServe/NewCatalystAPIRouter shape.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/videoreport/api/config"
	"github.com/videoreport/api/handlers"
	"github.com/videoreport/api/log"
	"github.com/videoreport/api/middleware"
)

// ListenAndServe runs the worker's HTTP server until ctx is cancelled, then
// gives in-flight requests 5 seconds to finish before returning.
func ListenAndServe(ctx context.Context, cli config.Cli, h *handlers.Collection) error {
	router := NewRouter(cli, h)
	server := http.Server{Addr: cli.HTTPAddress, Handler: router}
	ctx, cancel := context.WithCancel(ctx)

	log.LogNoRequestID("starting worker HTTP server", "version", config.Version, "host", cli.HTTPAddress)

	var err error
	go func() {
		err = server.ListenAndServe()
		cancel()
	}()

	<-ctx.Done()
	if err != nil && err != http.ErrServerClosed {
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}

// NewRouter wires every worker endpoint from §6's wire table. /health is
// unauthenticated (it backs the platform's own readiness probe); everything
// else requires the shared worker secret. /result is only mounted in dev
// mode — in production, result delivery goes through the gateway's
// presigned-URL redirect instead.
func NewRouter(cli config.Cli, h *handlers.Collection) *httprouter.Router {
	router := httprouter.New()
	withLogging := middleware.LogRequest()
	withAuth := func(next httprouter.Handle) httprouter.Handle {
		return middleware.IsAuthorized(cli.WorkerSecret, next)
	}

	router.GET("/health", withLogging(h.Health()))

	router.POST("/process", withLogging(withAuth(h.Process())))
	router.POST("/process-task", withLogging(withAuth(h.ProcessTask())))
	router.POST("/process-ocr-batch", withLogging(withAuth(h.OCRBatch())))
	router.GET("/status/:upload_id", withLogging(withAuth(h.Status())))
	router.POST("/cron/cleanup-checkpoints", withLogging(withAuth(h.CleanupCheckpoints())))

	if cli.Dev {
		router.GET("/result/:upload_id", withLogging(withAuth(h.Result())))
	}

	return router
}
