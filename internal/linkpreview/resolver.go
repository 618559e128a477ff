package linkpreview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/publicsuffix"
)

const (
	instrumentationName = "github.com/xbookmarks/api/internal/linkpreview"

	defaultUserAgent   = "Mozilla/5.0 (compatible; X-Bookmarks-Bot/1.0)"
	defaultMaxBodySize = 1 << 20 // 1 MB
	defaultAttempts    = 1
	defaultRetryDelay  = 200 * time.Millisecond
	maxRedirects       = 10
)

// Resolution outcomes recorded on the resolutions counter.
const (
	resultHit      = "hit"
	resultMiss     = "miss"
	resultDegraded = "degraded"
)

// Options configures a Resolver.
type Options struct {
	UserAgent   string
	MaxBodySize int64
	// Shorteners are registrable domains (e.g. "t.co") whose links are
	// expanded before the cache lookup.
	Shorteners []string
	// FetchAttempts bounds page fetches per miss. The default of 1 makes a
	// failed fetch a cached negative result; with more attempts only
	// transient failures (network errors, 429 and 5xx) are retried.
	FetchAttempts uint
	RetryDelay    time.Duration
}

// Resolver turns a URL into a Preview, serving from the Store when it can.
type Resolver struct {
	store       Store
	client      *http.Client
	userAgent   string
	maxBodySize int64
	shorteners  map[string]struct{}
	attempts    uint
	retryDelay  time.Duration

	tracer      trace.Tracer
	resolutions metric.Int64Counter
}

// NewResolver creates a Resolver. A nil client gets NewHTTPClient defaults.
func NewResolver(store Store, client *http.Client, opts Options) *Resolver {
	if client == nil {
		client = NewHTTPClient(10*time.Second, true)
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = defaultMaxBodySize
	}
	if opts.FetchAttempts == 0 {
		opts.FetchAttempts = defaultAttempts
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = defaultRetryDelay
	}

	shorteners := make(map[string]struct{}, len(opts.Shorteners))
	for _, s := range opts.Shorteners {
		shorteners[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}

	resolutions, err := otel.Meter(instrumentationName).Int64Counter(
		"linkpreview.resolutions",
		metric.WithDescription("Link preview resolutions by outcome"),
	)
	if err != nil {
		slog.Warn("creating resolutions counter", "error", err)
		resolutions = noop.Int64Counter{}
	}

	return &Resolver{
		store:       store,
		client:      client,
		userAgent:   opts.UserAgent,
		maxBodySize: opts.MaxBodySize,
		shorteners:  shorteners,
		attempts:    opts.FetchAttempts,
		retryDelay:  opts.RetryDelay,
		tracer:      otel.Tracer(instrumentationName),
		resolutions: resolutions,
	}
}

// NewHTTPClient builds the outbound client used for unshortening and fetching.
// When blockPrivate is set, connections to loopback and private addresses are refused.
func NewHTTPClient(timeout time.Duration, blockPrivate bool) *http.Client {
	dialer := &net.Dialer{Timeout: timeout}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if blockPrivate {
		transport.DialContext = safeDialContext(dialer)
	} else {
		transport.DialContext = dialer.DialContext
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(transport),
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
}

// Resolve returns the preview for rawURL. Network failures degrade to a
// preview with every field nil, which is cached like any other result.
// Only store failures are returned as errors.
//
// The caller's cancellation is ignored; the client timeout bounds the work.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (*Preview, error) {
	ctx, span := r.tracer.Start(context.WithoutCancel(ctx), "linkpreview.Resolve",
		trace.WithAttributes(attribute.String("url.original", rawURL)))
	defer span.End()

	canonical := rawURL
	if r.isShortened(rawURL) {
		canonical = r.unshorten(ctx, rawURL)
	}
	span.SetAttributes(attribute.String("url.canonical", canonical))

	cached, err := r.store.Get(ctx, canonical)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cache lookup failed")
		return nil, err
	}
	if cached != nil {
		r.record(ctx, resultHit)
		return cached, nil
	}

	result := resultMiss
	meta, err := r.fetch(ctx, canonical)
	if err != nil {
		slog.Warn("link preview fetch failed", "url", canonical, "error", err)
		result = resultDegraded
	}

	p := &Preview{
		URL:         canonical,
		Title:       meta.Title,
		Description: meta.Description,
		Image:       meta.Image,
		SiteName:    meta.SiteName,
	}
	if err := r.store.Put(ctx, p); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cache write failed")
		return nil, err
	}

	r.record(ctx, result)
	return p, nil
}

func (r *Resolver) record(ctx context.Context, result string) {
	r.resolutions.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("linkpreview.result", result))
}

// isShortened reports whether rawURL points at a configured shortener. Hosts
// are compared by registrable domain, so "microsoft.com" never matches "t.co".
func (r *Resolver) isShortened(rawURL string) bool {
	if len(r.shorteners) == 0 {
		return false
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return false
	}
	if _, ok := r.shorteners[host]; ok {
		return true
	}

	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return false
	}
	_, ok := r.shorteners[domain]
	return ok
}

// unshorten follows redirects with a single HEAD request and returns the final
// URL. Any failure returns rawURL unchanged.
func (r *Resolver) unshorten(ctx context.Context, rawURL string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		slog.Warn("unshortening failed", "url", rawURL, "error", err)
		return rawURL
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		slog.Warn("unshortening failed", "url", rawURL, "error", err)
		return rawURL
	}
	defer resp.Body.Close()

	if resp.Request == nil || resp.Request.URL == nil {
		return rawURL
	}
	return resp.Request.URL.String()
}

// fetch GETs the page and extracts its metadata, retrying transient failures.
func (r *Resolver) fetch(ctx context.Context, pageURL string) (Metadata, error) {
	jitter := r.retryDelay / 2
	if jitter <= 0 {
		jitter = 1
	}

	body, err := retry.DoWithData(
		func() ([]byte, error) {
			return r.fetchOnce(ctx, pageURL)
		},
		retry.Context(ctx),
		retry.Attempts(r.attempts),
		retry.Delay(r.retryDelay),
		retry.MaxJitter(jitter),
		retry.RetryIf(isRetryable),
		retry.OnRetry(func(n uint, err error) {
			slog.Debug("retrying link preview fetch", "attempt", n+1, "url", pageURL, "error", err)
		}),
	)
	if err != nil {
		return Metadata{}, err
	}
	return Extract(string(body)), nil
}

func (r *Resolver) fetchOnce(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadPageURL, err)
	}
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	return body, nil
}

type statusError struct {
	code int
}

func (e *statusError) Error() string { return fmt.Sprintf("HTTP %d", e.code) }

var errBadPageURL = errors.New("invalid page URL")

// isRetryable reports whether a fetch failure is transient. 4xx responses
// other than 429, timeouts and refused destinations are permanent.
func isRetryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	if errors.Is(err, errPrivateAddress) || errors.Is(err, errBadPageURL) {
		return false
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return false
	}
	return true
}

// errPrivateAddress is returned by the dialer for refused destinations.
var errPrivateAddress = errors.New("connection to private address is not allowed")

// privateRanges are CIDR blocks for private / loopback / link-local IPs.
var privateRanges []*net.IPNet

func init() {
	for _, cidr := range []string{
		"0.0.0.0/8",
		"127.0.0.0/8",
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"169.254.0.0/16",
		"100.64.0.0/10",
		"::/128",
		"::1/128",
		"fc00::/7",
		"fe80::/10",
	} {
		_, block, _ := net.ParseCIDR(cidr)
		privateRanges = append(privateRanges, block)
	}
}

func isPrivateIP(ip net.IP) bool {
	for _, block := range privateRanges {
		if block.Contains(ip) {
			return true
		}
	}
	return false
}

// safeDialContext resolves DNS then rejects private IPs before connecting.
func safeDialContext(dialer *net.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}

		ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
		if err != nil {
			return nil, err
		}
		if len(ips) == 0 {
			return nil, fmt.Errorf("no addresses for %s", host)
		}

		for _, ip := range ips {
			if isPrivateIP(ip.IP) {
				return nil, fmt.Errorf("%w: %s", errPrivateAddress, ip.IP)
			}
		}

		// Connect to the first resolved IP.
		return dialer.DialContext(ctx, network, net.JoinHostPort(ips[0].IP.String(), port))
	}
}
