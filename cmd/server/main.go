package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"

	"github.com/harborgoods/storefront-web/internal/cfg"
	"github.com/harborgoods/storefront-web/internal/cryptoutil"
	"github.com/harborgoods/storefront-web/internal/csp"
	"github.com/harborgoods/storefront-web/internal/health"
	"github.com/harborgoods/storefront-web/internal/httpmw"
	"github.com/harborgoods/storefront-web/internal/httpserver"
	"github.com/harborgoods/storefront-web/internal/log"
	"github.com/harborgoods/storefront-web/internal/metrics"
	"github.com/harborgoods/storefront-web/internal/opshttp"
	"github.com/harborgoods/storefront-web/internal/otelx"
	"github.com/harborgoods/storefront-web/internal/pagehttp"
	"github.com/harborgoods/storefront-web/internal/prof"
	"github.com/harborgoods/storefront-web/internal/ratelimit"
	"github.com/harborgoods/storefront-web/internal/render"
	"github.com/harborgoods/storefront-web/internal/storefront"
	"github.com/harborgoods/storefront-web/internal/theme"
	v "github.com/harborgoods/storefront-web/internal/version"
	"github.com/harborgoods/storefront-web/internal/webassets"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Get build/version info
	vi := v.Get()

	var conf cfg.App
	var showVersion bool

	// Parse config from flags and env
	cfg.Register(flag.CommandLine, &conf)
	flag.BoolVar(&showVersion, "V", false, "Print version+build information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf(
			"%s %s (commit=%s, commit_date=%s, build_date=%s, go=%s, dirty=%v)\n",
			vi.AppName, vi.Version, vi.Commit, vi.CommitDate, vi.BuildDate, vi.GoVersion,
			vi.VCSDirty != nil && *vi.VCSDirty,
		)
		os.Exit(0)
	}

	// Fill in config from environment variables with prefix SFW_ and validate
	cfg.FillFromEnv(flag.CommandLine, "SFW_", func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})

	// validate config
	if err := cfg.Validate(conf); err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	// Setup logging
	lvl, err := log.ParseLevel(conf.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %s: %v\n", conf.LogLevel, err)
		os.Exit(1)
	}
	stLvl, err := log.ParseLevel(conf.StacktraceLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid stacktrace level %s: %v\n", conf.StacktraceLevel, err)
		os.Exit(1)
	}
	lg, err := log.New(log.Options{
		App:             v.AppName,
		Version:         v.Version,
		Commit:          v.Commit,
		Level:           lvl,
		StacktraceLevel: stLvl,
		JsonFormat:      conf.LogJSON,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init error:", err)
		os.Exit(1)
	}
	// no-op for slog/stderr, but here if we swap backends in the future to ensure any buffered logs are flushed on shutdown
	defer lg.Sync()
	L := lg.With("component", "server")
	ctx = log.WithContext(ctx, L)

	L.Info(ctx, "initializing application",
		"version", vi.Version,
		"commit", vi.Commit,
		"commit_date", vi.CommitDate,
		"build_date", vi.BuildDate,
		"go_version", vi.GoVersion,
		"vcs_dirty", vi.VCSDirty,
		"http_port", conf.HTTPPort,
		"admin_port", conf.AdminPort,
		"dev", conf.Dev,
		"enable_pprof", conf.EnablePprof,
		"enable_pyroscope", conf.EnablePyroscope,
		"enable_tracing", conf.EnableTracing,
		"enable_theme_updates", conf.EnableThemeUpdates,
		"otlp_endpoint", conf.OTLPEndpoint,
		"pyro_server", conf.PyroServer,
		"pyro_tenant", conf.PyroTenantID,
		"trace_sample", conf.TraceSample,
		"store_domain", conf.StoreDomain,
		"api_version", conf.APIVersion,
		"cdn_host", conf.CDNHost,
		"base_url", conf.BaseURL,
		"theme_ssm_param", conf.ThemeSSMParam,
		"theme_s3_bucket", conf.ThemeS3Bucket,
		"theme_s3_prefix", conf.ThemeS3Prefix,
		"theme_signing_key_arn", conf.ThemeSigningKeyARN,
	)

	// Setup pyroscope profiling
	stopProf, err := prof.Start(ctx, prof.Options{
		Enabled:       conf.EnablePyroscope,
		AppName:       v.AppName,
		AuthToken:     "",
		ServerAddress: conf.PyroServer,
		TenantID:      conf.PyroTenantID,
		Tags: map[string]string{
			"app":       v.AppName,
			"component": "server",
			"version":   vi.Version,
			"commit":    vi.Commit,
			"source":    "go-agent",
		},
	})
	if err != nil {
		L.Error(ctx, err, "pyroscope start failed", "pyro_server", conf.PyroServer)
	}
	defer func() { stopProf() }()

	// Setup otel for tracing
	// Insecure is true because we are only writing to a collector on localhost
	shutdownOTEL, err := otelx.Init(ctx, otelx.Options{
		Enabled:   conf.EnableTracing,
		Endpoint:  conf.OTLPEndpoint,
		Insecure:  true,
		Sample:    conf.TraceSample,
		Service:   v.AppName,
		Component: "server",
		Version:   vi.Version,
	})
	if err != nil {
		L.Error(ctx, err, "otel init failed")
	}
	defer func() { _ = shutdownOTEL(context.Background()) }()

	// Setup metrics / admin listener
	var m *metrics.ServerMetrics = metrics.New()
	m.SetBuildInfoFromVersion(v.AppName, "server", vi)
	m.SetProfilingActive(conf.EnablePyroscope)

	// storefront API client; every page load queries through it
	api, err := storefront.New(storefront.Options{
		Endpoint:    conf.Endpoint(),
		AccessToken: conf.AccessToken,
		Logger:      L,
		Metrics:     m,
	})
	if err != nil {
		L.Error(ctx, err, "failed to create storefront client")
		os.Exit(1)
	}

	// theme manager starts on the embedded seed theme so the server can
	// render before (or without) a remote bundle
	themeMgr := theme.NewManager()
	themeMgr.Set(theme.Snapshot{
		FS: webassets.SeedThemeFS(),
		Meta: theme.Meta{
			Source:  theme.SourceSeed,
			Version: "seed",
		},
	})
	L.Info(ctx, "loaded embedded seed theme")

	// remote theme bundle pipeline, only when a bucket is configured
	var themeLoader *theme.Loader
	if conf.ThemeS3Bucket != "" {
		awsCfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			L.Error(ctx, err, "failed to load AWS config")
			os.Exit(1)
		}

		var verifier theme.ReleaseVerifier
		if conf.ThemeSigningKeyARN != "" {
			verifier = cryptoutil.NewKMSVerifier(kms.NewFromConfig(awsCfg), conf.ThemeSigningKeyARN)
		}

		themeLoader, err = theme.NewLoader(ctx, theme.LoaderOptions{
			Logger:    L,
			SSMParam:  conf.ThemeSSMParam,
			S3Bucket:  conf.ThemeS3Bucket,
			S3Prefix:  conf.ThemeS3Prefix,
			Verifier:  verifier,
			AWSConfig: &awsCfg,
		})
		if err != nil {
			L.Error(ctx, err, "failed to create theme loader, theme updates will be disabled")
		} else {
			if err := themeLoader.LoadIntoManager(ctx, themeMgr); err != nil {
				L.Error(ctx, err, "failed to load theme bundle, serving seed theme")
			} else {
				L.Info(ctx, "loaded theme bundle from S3",
					"theme_version", themeMgr.ThemeVersion(),
					"theme_hash", themeMgr.ThemeHash(),
				)
			}
		}
	}
	m.SetThemeSource(string(themeMgr.Source()))
	m.SetThemeBundle(themeMgr.ThemeHash())
	if t := themeMgr.LoadedAt(); !t.IsZero() {
		m.SetThemeLoadedTimestamp(t)
	}

	if themeLoader != nil && conf.EnableThemeUpdates {
		// poll for new bundles, validate and hot-swap into the manager
		watcher := theme.NewWatcher(&theme.WatcherOptions{
			Logger:       L,
			Loader:       themeLoader,
			Manager:      themeMgr,
			PollInterval: 30 * time.Second,
			Metrics:      m,
			OnSwap: func(hash, version string) {
				m.SetThemeBundle(hash)
				m.SetThemeSource(string(theme.SourceS3))
				m.SetThemeLoadedTimestamp(time.Now())
			},
		})
		// Run the watcher in a separate goroutine
		go watcher.Run(ctx)
	}

	// streaming page renderer over the embedded templates
	renderer, err := render.New(render.Options{
		Templates: webassets.Templates(),
		StoreName: conf.StoreName,
		Logger:    L,
		Metrics:   m,
	})
	if err != nil {
		L.Error(ctx, err, "failed to create renderer")
		os.Exit(1)
	}

	// page handlers over the storefront API
	site, err := pagehttp.New(pagehttp.Options{
		API:      api,
		Renderer: renderer,
		Logger:   L,
		BaseURL:  conf.BaseURL,
	})
	if err != nil {
		L.Error(ctx, err, "failed to create page handlers")
		os.Exit(1)
	}

	// theme asset handler with seed fallback
	assetHandler, err := theme.NewHandler(&theme.HandlerOptions{
		Manager: themeMgr,
		SeedFS:  webassets.SeedThemeFS(),
	})
	if err != nil {
		L.Error(ctx, err, "failed to create theme asset handler")
		os.Exit(1)
	}

	// setup toggle for server shutdown
	var gate health.ShutdownGate

	// readiness requires an active theme plus an open shutdown gate
	readiness := health.All(
		gate.Probe(),
		health.CheckFunc(func(ctx context.Context) error {
			return themeMgr.ReadyErr()
		}),
	)

	// Setup rate limiter middleware for page routes
	limiter := ratelimit.New(ctx,
		// increment prometheus counter on each denied request
		ratelimit.WithOnDenied(func(ip string) {
			m.IncRateLimitDenied()
		}),
		// only log the first time an ip is denied each time it is cleaned from the bucket
		ratelimit.WithOnFirstDenied(func(ip string) {
			L.Warn(ctx, "rate limit triggered", "ip", ip)
		}),
		ratelimit.WithOnCapacity(func() {
			m.IncRateLimitCapacity()
			L.Warn(ctx, "rate limit capacity reached, rejecting new visitors until some are evicted")
		}),
	)

	// start storefront http server
	siteHTTPStop, err := httpserver.Start(
		ctx,
		httpserver.Options{
			Port:         conf.HTTPPort,
			Health:       health.Fixed(true, ""),
			Readiness:    readiness,
			PageRoutes:   site.Routes,
			AssetHandler: assetHandler,
			NotFound:     http.HandlerFunc(site.NotFound),
			ThemeInfo:    themeMgr,
			CSP: csp.Policy{
				Dev:     conf.Dev,
				CDNHost: conf.CDNHost,
			},
			ClientIPOpts: httpmw.ClientIPOptions{TrustedHops: conf.TrustedHops},
			UseRecoverMW: true,
			OnPanic:      m.IncHttpPanic,
			MetricsMW:    m.Middleware,
			RateLimitMW:  limiter.Middleware,
			Logger:       L,
		},
	)

	if err != nil {
		L.Error(ctx, err, "failed to start site http listener port")
		os.Exit(1)
	}
	defer func() { _ = siteHTTPStop(context.Background()) }()

	// start admin/ops listener to serve metrics, health checks, pprof and any future admin APIs
	// sg restricts inbound to internal monitoring infrastructure
	// we reject connections from public ips in middleware to prevent
	// accidental exposure if sg is misconfigured or a load balancer ever sends traffic there
	opsHTTPStop, err := opshttp.Start(ctx, L, &opshttp.Options{
		Port:        conf.AdminPort,
		Metrics:     m.Handler(),
		EnablePprof: conf.EnablePprof,
		Health:      health.Fixed(true, ""),
		Readiness:   readiness,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start ops http listener")
		os.Exit(1)
	}
	defer func() { _ = opsHTTPStop(context.Background()) }()

	// notify systemd that we started successfully if started under systemd
	if err := notifySystemd(); err != nil {
		// log and dont exit, worst case systemd will kill the process after timeout
		L.Warn(ctx, "failed to notify systemd of readiness", "error", err)
	}

	// block until signal so we dont exit
	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	// wait for ctrl+c / sigterm
	<-sigCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	L.Info(context.Background(), "shutdown signal received")

	// fail health checks to drain connections
	gate.Set("draining")
	L.Info(context.Background(), "shutdown gate closed")

	// sleep to allow in-flight requests to finish and for the load balancer
	// to see the failing readiness check and stop sending new requests
	L.Info(context.Background(), "sleeping 60s for in-flight and load balancer health checks to drain")
	forceCh := make(chan os.Signal, 1)
	signal.Notify(forceCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-time.After(60 * time.Second):
		L.Info(context.Background(), "drain period complete")
	case <-forceCh:
		L.Warn(context.Background(), "second signal received, skipping drain")
	}
	signal.Stop(forceCh)

	if err := siteHTTPStop(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "app http server shutdown")
	}

	if err := opsHTTPStop(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "ops http server shutdown")
	}

	if err := shutdownOTEL(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "otel shutdown")
	}

	stopProf()

	L.Info(context.Background(), "shutdown complete")
	os.Exit(0)
}

func notifySystemd() error {
	// systemd will set NOTIFY_SOCKET to a unix socket path if we were started under systemd with type=notify
	addr := os.Getenv("NOTIFY_SOCKET")
	if addr == "" {
		return fmt.Errorf("NOTIFY_SOCKET not set, skipping systemd notify")
	}
	conn, err := net.Dial("unixgram", addr)
	if err != nil {
		return fmt.Errorf("systemd notify failed: dial failed: %w", err)
	}
	conn.Write([]byte("READY=1"))
	if err := conn.Close(); err != nil {
		return fmt.Errorf("systemd notify failed: close failed: %w", err)
	}
	return nil
}
