// Package storefront is the typed client for the remote GraphQL commerce
// API. Every route loader goes through it: one method per query document,
// returning domain types, with per-operation metrics and tracing.
package storefront

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/machinebox/graphql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/harborgoods/storefront-web/internal/log"
	"github.com/harborgoods/storefront-web/internal/xerrors"
)

// ErrNotFound marks a well-formed query whose subject does not exist.
var ErrNotFound = errors.New("storefront: not found")

// Metrics receives query observability signals; implemented by the
// metrics package.
type Metrics interface {
	ObserveQueryDuration(operation string, seconds float64)
	IncQueryError(operation string)
}

type nopMetrics struct{}

func (nopMetrics) ObserveQueryDuration(string, float64) {}
func (nopMetrics) IncQueryError(string)                 {}

type Options struct {
	// Endpoint is the full GraphQL URL of the storefront API.
	Endpoint string

	// AccessToken authenticates every query; sent as a request header.
	AccessToken string

	// TokenHeader defaults to "X-Storefront-Access-Token".
	TokenHeader string

	// HTTPClient defaults to a client with a 10s timeout.
	HTTPClient *http.Client

	Logger  log.Logger
	Metrics Metrics
}

type Client struct {
	gql         *graphql.Client
	token       string
	tokenHeader string
	logger      log.Logger
	metrics     Metrics
}

func New(opts Options) (*Client, error) {
	if opts.Endpoint == "" {
		return nil, xerrors.New("storefront: Endpoint is required")
	}
	if opts.AccessToken == "" {
		return nil, xerrors.New("storefront: AccessToken is required")
	}
	if opts.TokenHeader == "" {
		opts.TokenHeader = "X-Storefront-Access-Token"
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}

	return &Client{
		gql:         graphql.NewClient(opts.Endpoint, graphql.WithHTTPClient(opts.HTTPClient)),
		token:       opts.AccessToken,
		tokenHeader: opts.TokenHeader,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
	}, nil
}

// run executes one query document with variables, decoding into out.
// Transport and API errors come back as a single error; callers translate
// "entity missing" (a nil pointer in the decoded response) themselves.
func (c *Client) run(ctx context.Context, operation, doc string, vars map[string]any, out any) error {
	tracer := otel.Tracer("storefront-web/storefront")
	ctx, span := tracer.Start(ctx, "storefront."+operation)
	defer span.End()
	span.SetAttributes(attribute.String("graphql.operation", operation))

	req := graphql.NewRequest(doc)
	req.Header.Set(c.tokenHeader, c.token)
	for k, v := range vars {
		req.Var(k, v)
	}

	start := time.Now()
	err := c.gql.Run(ctx, req, out)
	c.metrics.ObserveQueryDuration(operation, time.Since(start).Seconds())

	if err != nil {
		c.metrics.IncQueryError(operation)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn(ctx, "storefront query failed",
			"operation", operation,
			"error", err.Error(),
		)
		return xerrors.Wrapf(err, "storefront %s", operation)
	}
	return nil
}

// connection is the standard nodes+pageInfo shape of paginated fields.
type connection[T any] struct {
	Nodes    []T      `json:"nodes"`
	PageInfo PageInfo `json:"pageInfo"`
}
