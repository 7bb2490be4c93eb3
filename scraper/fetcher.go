package scraper

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/kdp-parser/config"
	"github.com/aluiziolira/kdp-parser/models"
	"github.com/gocolly/colly/v2"
)

// TransportFunc builds the round tripper used for every request of a session.
type TransportFunc func(SessionConfig) http.RoundTripper

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Fetcher retrieves product pages through rotating identities, retrying
// transient failures and refreshing the identity when a challenge page is served.
type Fetcher struct {
	cfg       *config.Config
	builder   *SessionBuilder
	detector  ChallengeDetector
	rand      Rand
	sleep     SleepFunc
	transport TransportFunc
	Metrics   *Metrics
}

// Option customises a Fetcher.
type Option func(*Fetcher)

// WithRand sets the sampling source for identities and pacing.
func WithRand(r Rand) Option {
	return func(f *Fetcher) { f.rand = r }
}

// WithSleep replaces the pacing sleep.
func WithSleep(fn SleepFunc) Option {
	return func(f *Fetcher) { f.sleep = fn }
}

// WithTransport replaces the proxy transport factory.
func WithTransport(fn TransportFunc) Option {
	return func(f *Fetcher) { f.transport = fn }
}

// WithMetrics shares a metrics bundle with other components.
func WithMetrics(m *Metrics) Option {
	return func(f *Fetcher) { f.Metrics = m }
}

// NewFetcher builds a fetcher from cfg. The proxy list must be non-empty.
func NewFetcher(cfg *config.Config, opts ...Option) (*Fetcher, error) {
	f := &Fetcher{
		cfg:      cfg,
		detector: NewChallengeDetector(cfg.TitlePrefixLen),
		rand:     DefaultRand,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.transport == nil {
		f.transport = proxyTransport(cfg.Timeout)
	}
	if f.Metrics == nil {
		f.Metrics = NewMetrics()
	}

	creds, err := ParseCredentials(cfg.Proxies)
	if err != nil {
		return nil, err
	}
	pool, err := NewIdentityPool(creds, f.rand)
	if err != nil {
		return nil, err
	}
	f.builder = NewSessionBuilder(pool, f.rand, cfg.Referer)
	return f, nil
}

// Fetch returns the raw HTML of target. A non-success status stops
// immediately with ErrRejected; exhausting MaxAttempts returns ErrFetchExhausted.
// A challenge rebuilds the session and pauses before the next attempt; no
// pause follows the final attempt.
func (f *Fetcher) Fetch(ctx context.Context, target string) (string, error) {
	if err := validateTarget(target); err != nil {
		return "", err
	}

	session, err := f.builder.Build()
	if err != nil {
		return "", err
	}
	client := f.newClient(session)
	defer func() { client.close() }()

	if err := f.warmUp(ctx, client); err != nil {
		return "", err
	}

	maxAttempts := f.cfg.MaxAttempts
	asin := models.ASIN(target)
	var last error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		slog.Info("fetch attempt",
			slog.Int("attempt", attempt+1),
			slog.Int("max_attempts", maxAttempts),
			slog.String("url", target),
			slog.String("asin", asin),
			slog.String("template", client.session.Template),
			slog.String("proxy", client.session.Proxy.String()),
		)

		if attempt > 0 {
			delay := between(f.rand, f.cfg.RetryDelayMin, f.cfg.RetryDelayMax)
			slog.Debug("pacing before retry", slog.Duration("delay", delay))
			if err := f.sleep(ctx, delay); err != nil {
				return "", err
			}
		}

		start := time.Now()
		status, body, err := client.get(target)
		f.Metrics.ObserveDuration(time.Since(start))
		if err != nil {
			classified := classifyError(err)
			label := errorTypeLabel(classified)
			slog.Error("fetch transport error",
				slog.String("url", target),
				slog.String("category", label),
				slog.Any("error", err),
			)
			f.Metrics.IncAttempt("transport_error")
			f.Metrics.IncError(label)
			last = classified
			continue
		}

		if status < http.StatusOK || status >= http.StatusMultipleChoices {
			rejected := ErrRejected{StatusCode: status}
			slog.Error("fetch rejected",
				slog.String("url", target),
				slog.Int("status", status),
			)
			f.Metrics.IncAttempt("rejected")
			f.Metrics.IncError(errorTypeLabel(rejected))
			return "", rejected
		}

		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			slog.Error("fetch response unparseable", slog.String("url", target), slog.Any("error", err))
			f.Metrics.IncAttempt("unparseable")
			last = fmt.Errorf("parse response: %w", err)
			continue
		}

		if f.detector.Inspect(doc).IsChallenge {
			slog.Warn("challenge page detected, refreshing identity",
				slog.String("url", target),
				slog.String("proxy", client.session.Proxy.String()),
			)
			f.Metrics.IncAttempt("challenge")
			f.Metrics.IncError(errorTypeLabel(ErrChallenge))
			last = ErrChallenge

			next, err := f.builder.Rebuild(client.session)
			if err != nil {
				return "", err
			}
			client.close()
			client = f.newClient(next)
			f.Metrics.IncRefresh()

			if attempt+1 < maxAttempts {
				delay := between(f.rand, f.cfg.ChallengeDelayMin, f.cfg.ChallengeDelayMax)
				slog.Debug("pacing after challenge", slog.Duration("delay", delay))
				if err := f.sleep(ctx, delay); err != nil {
					return "", err
				}
			}
			continue
		}

		f.Metrics.IncAttempt("success")
		return string(body), nil
	}

	slog.Error("all fetch attempts failed", slog.String("url", target), slog.Int("attempts", maxAttempts))
	return "", ErrFetchExhausted{Attempts: maxAttempts, Last: last}
}

// warmUp visits the configured warm-up pages with the session; failures are
// logged and ignored. Pauses fall between pages only, so the first attempt
// starts right after the last one.
func (f *Fetcher) warmUp(ctx context.Context, client *sessionClient) error {
	if len(f.cfg.WarmUpURLs) == 0 {
		return nil
	}
	slog.Info("warming up session", slog.Int("pages", len(f.cfg.WarmUpURLs)))
	for i, u := range f.cfg.WarmUpURLs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i > 0 {
			if err := f.sleep(ctx, between(f.rand, f.cfg.WarmUpDelayMin, f.cfg.WarmUpDelayMax)); err != nil {
				return err
			}
		}
		status, _, err := client.get(u)
		if err != nil {
			slog.Warn("warm-up request failed", slog.String("url", u), slog.Any("error", err))
		} else {
			slog.Info("warm-up request", slog.String("url", u), slog.Int("status", status))
		}
	}
	return nil
}

// sessionClient is the collector and transport bound to one SessionConfig.
type sessionClient struct {
	session   SessionConfig
	collector *colly.Collector
	transport http.RoundTripper

	status int
	body   []byte
}

func (f *Fetcher) newClient(session SessionConfig) *sessionClient {
	sc := &sessionClient{
		session:   session,
		transport: f.transport(session),
	}

	c := colly.NewCollector(
		colly.UserAgent(session.UserAgent()),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(f.cfg.Timeout)
	c.ParseHTTPErrorResponse = true
	c.WithTransport(sc.transport)

	headers := session.Headers()
	c.OnRequest(func(r *colly.Request) {
		for key, values := range headers {
			r.Headers.Del(key)
			for _, v := range values {
				r.Headers.Add(key, v)
			}
		}
	})
	c.OnResponse(func(r *colly.Response) {
		sc.status = r.StatusCode
		sc.body = r.Body
	})

	sc.collector = c
	return sc
}

func (sc *sessionClient) get(target string) (int, []byte, error) {
	sc.status, sc.body = 0, nil
	if err := sc.collector.Visit(target); err != nil {
		return 0, nil, err
	}
	if sc.status == 0 {
		return 0, nil, fmt.Errorf("no response received for %s", target)
	}
	return sc.status, sc.body, nil
}

func (sc *sessionClient) close() {
	if closer, ok := sc.transport.(interface{ CloseIdleConnections() }); ok {
		closer.CloseIdleConnections()
	}
}

func proxyTransport(timeout time.Duration) TransportFunc {
	return func(session SessionConfig) http.RoundTripper {
		return &http.Transport{
			Proxy: http.ProxyURL(session.Proxy.URL()),
			DialContext: (&net.Dialer{
				Timeout:   timeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			ForceAttemptHTTP2:   true,
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func validateTarget(target string) error {
	parsed, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("parse target url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("target url %q must be http or https", target)
	}
	if parsed.Host == "" {
		return fmt.Errorf("target url %q must include a host", target)
	}
	return nil
}
