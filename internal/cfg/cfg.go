package cfg

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/harborgoods/storefront-web/internal/log"
)

type App struct {
	LogJSON         bool
	LogLevel        string
	StacktraceLevel string

	HTTPPort  int
	AdminPort int

	// Dev widens the content-security policy to allow local live-reload
	// websocket origins and relaxes nothing else.
	Dev bool

	EnablePprof        bool
	EnablePyroscope    bool
	EnableTracing      bool
	EnableThemeUpdates bool

	PyroServer   string
	PyroTenantID string
	OTLPEndpoint string
	TraceSample  float64

	// Storefront API
	StoreDomain string
	APIVersion  string
	APIEndpoint string // derived from StoreDomain+APIVersion when empty
	AccessToken string
	CDNHost     string

	// Presentation
	StoreName string
	BaseURL   string

	// Theme bundle pipeline
	ThemeSSMParam      string
	ThemeS3Bucket      string
	ThemeS3Prefix      string
	ThemeSigningKeyARN string

	// Number of trusted reverse proxies for client IP resolution
	TrustedHops int
}

// Register binds all config fields to the given FlagSet with defaults inline
func Register(fs *flag.FlagSet, c *App) {
	fs.BoolVar(&c.LogJSON, "log-json", true, "JSON logs (true) or logfmt (false)")
	fs.StringVar(&c.LogLevel, "log-level", "info", "debug|info|warn|error")
	fs.StringVar(&c.StacktraceLevel, "stacktrace-level", "error", "debug|info|warn|error")
	fs.IntVar(&c.HTTPPort, "http-port", 8080, "listen TCP port (1..65535)")
	fs.IntVar(&c.AdminPort, "admin-port", 9000, "admin listen TCP port (1..65535)")
	fs.BoolVar(&c.Dev, "dev", false, "development mode (allows localhost websocket CSP origins)")
	fs.BoolVar(&c.EnablePprof, "enable-pprof", true, "Enable pprof profiling (on admin port only)")
	fs.BoolVar(&c.EnableTracing, "enable-tracing", false, "Enable OTLP tracing and push to otlp-endpoint")
	fs.BoolVar(&c.EnablePyroscope, "enable-pyroscope", false, "Enable pushing Pyroscope data to server set in -pyro-server")
	fs.BoolVar(&c.EnableThemeUpdates, "enable-theme-updates", true, "Enable refreshing theme bundles from S3/SSM")
	fs.Float64Var(&c.TraceSample, "trace-sample", 0.0, "trace sampling ratio (0..1)")
	fs.StringVar(&c.PyroServer, "pyro-server", "", "pyroscope server url to push to")
	fs.StringVar(&c.PyroTenantID, "pyro-tenant", "", "tenant (x-scope-orgid) to use for pyro-server")
	fs.StringVar(&c.OTLPEndpoint, "otlp-endpoint", "", "OTLP endpoint to push to (gRPC) (host:port)")
	fs.StringVar(&c.StoreDomain, "store-domain", "", "storefront API domain (example: shop.harborgoods.com)")
	fs.StringVar(&c.APIVersion, "api-version", "2024-07", "storefront API version")
	fs.StringVar(&c.APIEndpoint, "api-endpoint", "", "full storefront GraphQL endpoint URL (overrides store-domain/api-version)")
	fs.StringVar(&c.AccessToken, "access-token", "", "storefront API public access token")
	fs.StringVar(&c.CDNHost, "cdn-host", "", "image/media CDN host allowed by the content-security policy")
	fs.StringVar(&c.StoreName, "store-name", "Harbor Goods", "store display name used in page titles and the layout header")
	fs.StringVar(&c.BaseURL, "base-url", "", "public site origin for robots.txt and sitemap.xml (example: https://shop.harborgoods.com)")
	fs.StringVar(&c.ThemeSSMParam, "theme-ssm-param", "/app/storefront-web/theme/stable/release/id", "ssm parameter name to get theme bundle hash from")
	fs.StringVar(&c.ThemeS3Bucket, "theme-s3-bucket", "", "s3 bucket name to get theme bundles from")
	fs.StringVar(&c.ThemeS3Prefix, "theme-s3-prefix", "apps/storefront-web/theme/bundles", "s3 prefix (key) to get theme bundles from")
	fs.StringVar(&c.ThemeSigningKeyARN, "theme-signing-key-arn", "", "KMS key ARN for theme bundle signature verification")
	fs.IntVar(&c.TrustedHops, "trusted-hops", 1, "number of trusted reverse proxies for client IP resolution (0 = none)")
}

// FillFromEnv sets any flag not explicitly passed on the CLI from
// environment variables. Flag "foo-bar" maps to PREFIX_FOO_BAR.
// Precedence: cli flag > env var > default.
func FillFromEnv(fs *flag.FlagSet, prefix string, logf func(string, ...any)) {
	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	fs.VisitAll(func(f *flag.Flag) {
		key := prefix + strings.ReplaceAll(strings.ToUpper(f.Name), "-", "_")
		envVal, envSet := os.LookupEnv(key)
		if !envSet {
			return
		}
		if explicit[f.Name] {
			if logf != nil {
				logf("flag -%s: cli value %q overrides env %s=%q", f.Name, f.Value.String(), key, envVal)
			}
			return
		}
		prev := f.Value.String()
		if err := fs.Set(f.Name, envVal); err != nil {
			fs.Set(f.Name, prev)
			if logf != nil {
				logf("flag -%s: ignoring invalid env %s=%q: %v", f.Name, key, envVal, err)
			}
		}
	})
}

// Endpoint returns the storefront GraphQL endpoint, deriving it from the
// store domain and API version when no explicit endpoint was configured.
func (c App) Endpoint() string {
	if c.APIEndpoint != "" {
		return c.APIEndpoint
	}
	return fmt.Sprintf("https://%s/api/%s/graphql.json", c.StoreDomain, c.APIVersion)
}

// Validate checks that config values are within expected ranges and formats.
// Returns an error describing all invalid fields, or nil if all valid.
func Validate(c App) error {
	var errs []error

	// Ports
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.HTTPPort))
	}
	if c.AdminPort < 1 || c.AdminPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid ADMIN_PORT %d (must be 1..65535)", c.AdminPort))
	}
	if c.AdminPort == c.HTTPPort {
		errs = append(errs, fmt.Errorf("ADMIN_PORT and HTTP_PORT must differ (both %d)", c.HTTPPort))
	}

	// Log levels
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err))
	}
	if c.StacktraceLevel != "" {
		if _, err := log.ParseLevel(c.StacktraceLevel); err != nil {
			errs = append(errs, fmt.Errorf("invalid STACKTRACE_LEVEL %q: %w", c.StacktraceLevel, err))
		}
	}

	// Tracing sample
	if c.TraceSample < 0 || c.TraceSample > 1 {
		errs = append(errs, fmt.Errorf("invalid TRACE_SAMPLE %.3f (must be 0..1)", c.TraceSample))
	}
	if c.EnableTracing && c.OTLPEndpoint == "" {
		errs = append(errs, errors.New("ENABLE_TRACING requires OTLP_ENDPOINT"))
	}
	if c.EnablePyroscope && c.PyroServer == "" {
		errs = append(errs, errors.New("ENABLE_PYROSCOPE requires PYRO_SERVER"))
	}

	// Storefront API: an endpoint must be resolvable and parseable
	if c.APIEndpoint == "" && c.StoreDomain == "" {
		errs = append(errs, errors.New("one of STORE_DOMAIN or API_ENDPOINT is required"))
	} else if u, err := url.Parse(c.Endpoint()); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("invalid storefront endpoint %q", c.Endpoint()))
	}
	if c.AccessToken == "" {
		errs = append(errs, errors.New("ACCESS_TOKEN is required"))
	}

	if c.BaseURL != "" {
		if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("invalid BASE_URL %q (must be an absolute origin)", c.BaseURL))
		}
	}

	// Theme updates need a bucket to pull from
	if c.EnableThemeUpdates && c.ThemeS3Bucket != "" && c.ThemeSSMParam == "" {
		errs = append(errs, errors.New("THEME_S3_BUCKET requires THEME_SSM_PARAM"))
	}

	if c.TrustedHops < 0 || c.TrustedHops > 8 {
		errs = append(errs, fmt.Errorf("invalid TRUSTED_HOPS %d (must be 0..8)", c.TrustedHops))
	}

	return errors.Join(errs...)
}
