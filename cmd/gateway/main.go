package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/peterbourgon/ff/v3"
	"golang.org/x/sync/errgroup"

	"github.com/videoreport/api/clients"
	"github.com/videoreport/api/config"
	"github.com/videoreport/api/gateway"
	"github.com/videoreport/api/log"
)

func main() {
	if err := flag.Set("logtostderr", "true"); err != nil {
		glog.Fatal(err)
	}
	vFlag := flag.Lookup("v")
	fs := flag.NewFlagSet("videoreport-gateway", flag.ExitOnError)
	cli := config.Cli{}

	version := fs.Bool("version", false, "print application version")
	verbosity := fs.String("v", "", "log verbosity: {4|5|6}")
	_ = fs.String("config", "", "config file (optional)")

	fs.StringVar(&cli.GatewayHTTPAddress, "http-addr", "0.0.0.0:8080", "address to bind the gateway HTTP server")
	fs.BoolVar(&cli.Dev, "dev", false, "relax required-secret checks")

	fs.StringVar(&cli.WorkerBaseURL, "worker-base-url", "http://localhost:8989", "base URL of the worker this gateway proxies to")
	fs.StringVar(&cli.WorkerSecret, "worker-secret", "", "bearer token shared with the worker")
	fs.StringVar(&cli.SessionSecret, "session-secret", "", "HMAC secret validating caller session tokens")
	fs.StringVar(&cli.QuotaServiceURL, "quota-service-url", "", "base URL of the quota service (§4.8)")

	fs.StringVar(&cli.ObjectStoreAccount, "object-store-account", "", "object store account ID")
	fs.StringVar(&cli.ObjectStoreAccessKey, "object-store-access-key", "", "object store access key")
	fs.StringVar(&cli.ObjectStoreSecret, "object-store-secret", "", "object store secret key")
	fs.StringVar(&cli.ObjectStoreBucket, "object-store-bucket", "", "object store bucket name")
	fs.StringVar(&cli.ObjectStoreEndpoint, "object-store-endpoint", "", "object store endpoint override")
	fs.StringVar(&cli.ObjectStoreRegion, "object-store-region", "auto", "object store region")

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
		fmt.Printf("videoreport-gateway version: %s (%s, %s)\n", config.Version, config.Commit, config.BuildTime)
		return
	}
	if *verbosity != "" {
		if err := vFlag.Value.Set(*verbosity); err != nil {
			glog.Fatal(err)
		}
	}

	if !cli.Dev {
		requireSecret("worker-secret", cli.WorkerSecret)
		requireSecret("session-secret", cli.SessionSecret)
		requireSecret("quota-service-url", cli.QuotaServiceURL)
		requireSecret("object-store-bucket", cli.ObjectStoreBucket)
		requireSecret("object-store-access-key", cli.ObjectStoreAccessKey)
		requireSecret("object-store-secret", cli.ObjectStoreSecret)
	}

	objects, err := clients.NewObjectStore(cli)
	if err != nil {
		glog.Fatalf("failed to construct object store client: %v", err)
	}

	var quota clients.QuotaClient
	if cli.QuotaServiceURL != "" {
		quota = clients.NewHTTPQuotaClient(cli.QuotaServiceURL)
	} else {
		log.LogNoRequestID("no quota-service-url set, quota checks always pass (dev only)")
		quota = devAlwaysAllowQuota{}
	}

	coll := &gateway.Collection{
		Cli:     cli,
		Objects: objects,
		Quota:   quota,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}

	router := gateway.NewRouter(coll)
	server := &http.Server{Addr: cli.GatewayHTTPAddress, Handler: router}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	group, ctx := errgroup.WithContext(rootCtx)
	group.Go(func() error {
		log.LogNoRequestID("starting gateway HTTP server", "version", config.Version, "host", cli.GatewayHTTPAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		glog.Errorf("error shutting down gateway server: %v", err)
	}

	if err := group.Wait(); err != nil {
		glog.Fatalf("fatal gateway error: %v", err)
	}
}

func requireSecret(flagName, value string) {
	if value == "" {
		glog.Fatalf("missing required secret: -%s (set VIDEOREPORT_%s or pass -dev for local development)", flagName, strings.ToUpper(strings.ReplaceAll(flagName, "-", "_")))
	}
}

// devAlwaysAllowQuota is used only when no quota service is configured in
// -dev mode, so local runs don't need one stood up.
type devAlwaysAllowQuota struct{}

func (devAlwaysAllowQuota) CheckQuota(_ context.Context, _ string) (clients.QuotaStatus, error) {
	return clients.QuotaStatus{PlanType: "dev", Quota: -1, Used: 0, Remaining: 1}, nil
}
