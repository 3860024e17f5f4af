package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/golang/glog"
	_ "github.com/lib/pq"
	"github.com/peterbourgon/ff/v3"
	"golang.org/x/sync/errgroup"

	"github.com/videoreport/api/api"
	"github.com/videoreport/api/audio"
	"github.com/videoreport/api/clients"
	"github.com/videoreport/api/config"
	"github.com/videoreport/api/handlers"
	"github.com/videoreport/api/log"
	"github.com/videoreport/api/ocr"
	"github.com/videoreport/api/pipeline"
	"github.com/videoreport/api/ratelimit"
	"github.com/videoreport/api/status"
	"github.com/videoreport/api/taskqueue"
	"github.com/videoreport/api/video"
)

func main() {
	if err := flag.Set("logtostderr", "true"); err != nil {
		glog.Fatal(err)
	}
	vFlag := flag.Lookup("v")
	fs := flag.NewFlagSet("videoreport-worker", flag.ExitOnError)
	cli := config.Cli{}

	version := fs.Bool("version", false, "print application version")
	verbosity := fs.String("v", "", "log verbosity: {4|5|6}")
	_ = fs.String("config", "", "config file (optional)")

	fs.StringVar(&cli.HTTPAddress, "http-addr", "0.0.0.0:8989", "address to bind the worker HTTP server")
	fs.BoolVar(&cli.Dev, "dev", false, "relax required-secret checks; mounts /result")
	fs.IntVar(&cli.PromPort, "prom-port", 9090, "Prometheus metrics listen port")

	fs.StringVar(&cli.WorkerSecret, "worker-secret", "", "bearer token required on every authenticated worker endpoint")

	fs.StringVar(&cli.VisionAPIEndpoint, "vision-api-endpoint", "", "endpoint for the OCR vision provider")
	fs.StringVar(&cli.VisionAPIKey, "vision-api-key", "", "API key for the OCR vision provider")
	fs.StringVar(&cli.VisionAPIEndpointFallback, "vision-api-endpoint-fallback", "", "endpoint for a second, lower-priority OCR vision provider (optional)")
	fs.StringVar(&cli.VisionAPIKeyFallback, "vision-api-key-fallback", "", "API key for the fallback OCR vision provider")
	fs.StringVar(&cli.SpeechAPIEndpoint, "speech-api-endpoint", "", "endpoint for the speech-to-text provider")
	fs.StringVar(&cli.SpeechAPIKey, "speech-api-key", "", "API key for the speech-to-text provider")

	fs.StringVar(&cli.ObjectStoreAccount, "object-store-account", "", "object store account ID")
	fs.StringVar(&cli.ObjectStoreAccessKey, "object-store-access-key", "", "object store access key")
	fs.StringVar(&cli.ObjectStoreSecret, "object-store-secret", "", "object store secret key")
	fs.StringVar(&cli.ObjectStoreBucket, "object-store-bucket", "", "object store bucket name")
	fs.StringVar(&cli.ObjectStoreEndpoint, "object-store-endpoint", "", "object store endpoint override; empty selects the default AWS endpoint resolver")
	fs.StringVar(&cli.ObjectStoreRegion, "object-store-region", "auto", "object store region")

	fs.StringVar(&cli.StatusStoreURL, "status-store-url", "", "Postgres connection string for the status/checkpoint store")
	fs.StringVar(&cli.StatusStoreServiceKey, "status-store-service-key", "", "service key for the status store, if the driver requires one")

	fs.StringVar(&cli.TaskQueueProject, "task-queue-project", "", "cloud project the task queue lives in")
	fs.StringVar(&cli.TaskQueueLocation, "task-queue-location", "", "region the task queue lives in")
	fs.StringVar(&cli.TaskQueueBaseURL, "task-queue-base-url", "http://localhost:8989", "base URL the worker dispatches /process-task and /process-ocr-batch callbacks to")

	fs.StringVar(&cli.DetectionMode, "detection-mode", "standard", "default detection_mode when an intake request omits one")
	fs.IntVar(&cli.OCRBatchSize, "ocr-batch-size", config.DefaultBatchSize, "scenes processed per OCR batch before continuation via the task queue")
	fs.DurationVar(&cli.HeartbeatInterval, "heartbeat-interval", config.HeartbeatInterval, "longest gap between status writes while a job runs (not read by the progress reporter, which uses config.HeartbeatInterval)")

	err := ff.Parse(fs, os.Args[1:],
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
		ff.WithEnvVarPrefix("VIDEOREPORT"),
	)
	if err != nil {
		glog.Fatalf("error parsing cli: %s", err)
	}
	if len(fs.Args()) > 0 {
		glog.Fatalf("unexpected extra arguments on command line: %v", fs.Args())
	}

	if *version {
		fmt.Printf("videoreport-worker version: %s (%s, %s)\n", config.Version, config.Commit, config.BuildTime)
		return
	}
	if *verbosity != "" {
		if err := vFlag.Value.Set(*verbosity); err != nil {
			glog.Fatal(err)
		}
	}

	if !cli.Dev {
		requireSecret("worker-secret", cli.WorkerSecret)
		requireSecret("vision-api-endpoint", cli.VisionAPIEndpoint)
		requireSecret("vision-api-key", cli.VisionAPIKey)
		requireSecret("speech-api-endpoint", cli.SpeechAPIEndpoint)
		requireSecret("speech-api-key", cli.SpeechAPIKey)
		requireSecret("status-store-url", cli.StatusStoreURL)
		requireSecret("object-store-bucket", cli.ObjectStoreBucket)
		requireSecret("object-store-access-key", cli.ObjectStoreAccessKey)
		requireSecret("object-store-secret", cli.ObjectStoreSecret)
	}

	objects, err := clients.NewObjectStore(cli)
	if err != nil {
		glog.Fatalf("failed to construct object store client: %v", err)
	}

	var statusStore *status.PostgresStore
	if cli.StatusStoreURL != "" {
		statusStore, err = status.NewPostgresStore(cli.StatusStoreURL)
		if err != nil {
			glog.Fatalf("failed to connect to status store: %v", err)
		}
	}
	var (
		statusWriter status.StatusWriter
		statusReader status.StatusReader
		checkpoints  status.CheckpointStore
	)
	if statusStore != nil {
		statusWriter, statusReader, checkpoints = statusStore, statusStore, statusStore
	} else {
		mem := status.NewMemStore()
		statusWriter, statusReader, checkpoints = mem, mem, mem
		log.LogNoRequestID("no status-store-url set, falling back to an in-memory store (dev only)")
	}

	tasks := taskqueue.NewHTTPTaskQueue(cli.TaskQueueBaseURL, cli.WorkerSecret)

	speechLimiter := ratelimit.New(5, 50, time.Minute)
	visionLimiter := ratelimit.New(10, 100, time.Minute)

	vision := ocr.NewChain(nil)
	vision.Register(ocr.NewHTTPVisionProvider("primary", cli.VisionAPIEndpoint, cli.VisionAPIKey), 0, visionLimiter)
	if cli.VisionAPIEndpointFallback != "" {
		vision.Register(ocr.NewHTTPVisionProvider("fallback", cli.VisionAPIEndpointFallback, cli.VisionAPIKeyFallback), 1, ratelimit.New(10, 100, time.Minute))
	}

	speech := audio.NewHTTPSpeechProvider(cli.SpeechAPIEndpoint, cli.SpeechAPIKey)

	orchestrator := pipeline.NewOrchestrator(
		cli,
		statusWriter,
		statusReader,
		checkpoints,
		objects,
		tasks,
		video.Probe{},
		audio.NewEnergyThresholdVADModel(),
		speech,
		speechLimiter,
		vision,
	)

	h := &handlers.Collection{
		Cli:          cli,
		Orchestrator: orchestrator,
		StatusRead:   statusReader,
		Checkpoints:  checkpoints,
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	group, ctx := errgroup.WithContext(rootCtx)
	orchestrator.WatchSignals(ctx)

	group.Go(func() error {
		return api.ListenAndServe(ctx, cli, h)
	})

	if err := group.Wait(); err != nil {
		glog.Fatalf("fatal worker error: %v", err)
	}
}

func requireSecret(flagName, value string) {
	if value == "" {
		glog.Fatalf("missing required secret: -%s (set VIDEOREPORT_%s or pass -dev for local development)", flagName, strings.ToUpper(strings.ReplaceAll(flagName, "-", "_")))
	}
}
