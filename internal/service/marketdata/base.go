package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FinCast/internal/domain/models"
	"FinCast/internal/service/metrics"
	"FinCast/internal/service/ratelimit"
	xhttp "FinCast/pkg/http"
	"FinCast/pkg/logger"
)

// permanentError marks failures a retry cannot fix.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// httpSource is the shared plumbing of the HTTP market data providers:
// pacing, retries with linear backoff and latency metrics.
type httpSource struct {
	name     string
	baseURL  string
	client   *xhttp.Client
	limiter  *ratelimit.Limiter
	attempts int
	backoff  time.Duration
	log      *logger.Logger
}

// Option configures a provider.
type Option func(*httpSource)

// WithBaseURL overrides the provider endpoint.
func WithBaseURL(u string) Option {
	return func(s *httpSource) {
		if u != "" {
			s.baseURL = u
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *httpSource) {
		if d > 0 {
			s.client = xhttp.NewClient(xhttp.WithTimeout(d))
		}
	}
}

// WithRetry sets the number of attempts and the backoff step between them.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(s *httpSource) {
		if attempts > 0 {
			s.attempts = attempts
		}
		if backoff >= 0 {
			s.backoff = backoff
		}
	}
}

// WithLimiter paces outgoing requests.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(s *httpSource) { s.limiter = l }
}

// WithLogger sets a structured logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *httpSource) { s.log = logger.OrNop(l) }
}

func newHTTPSource(name, baseURL string, opts ...Option) *httpSource {
	metrics.Register()
	s := &httpSource{
		name:     name,
		baseURL:  baseURL,
		client:   xhttp.NewClient(xhttp.WithTimeout(10 * time.Second)),
		attempts: 3,
		backoff:  200 * time.Millisecond,
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// getJSON issues one GET under baseURL and decodes JSON into dest.
func (s *httpSource) getJSON(ctx context.Context, path string, headers map[string]string, query map[string][]string, dest interface{}) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx, s.name); err != nil {
			return fmt.Errorf("%s rate limit: %w", s.name, err)
		}
	}
	start := time.Now()
	err := s.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         s.baseURL + path,
		Headers:     headers,
		QueryParams: query,
	}, dest)
	metrics.MarketDataLatency.WithLabelValues(s.name).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.MarketDataErrors.WithLabelValues(s.name).Inc()
		return fmt.Errorf("get %s: %w", path, err)
	}
	return nil
}

// retry runs fn up to s.attempts times. Client errors other than 429 and
// permanent errors are not retried. The final failure wraps models.ErrDataSourceUnavailable.
func (s *httpSource) retry(ctx context.Context, ticker string, fn func() error) error {
	var err error
	for i := 1; i <= s.attempts; i++ {
		err = fn()
		if err == nil {
			return nil
		}
		var se *xhttp.StatusError
		if errors.As(err, &se) && !se.Temporary() {
			break
		}
		var pe *permanentError
		if errors.As(err, &pe) {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if i == s.attempts {
			break
		}
		s.log.Warn("marketdata.retry",
			logger.String("provider", s.name),
			logger.String("ticker", ticker),
			logger.Int("attempt", i),
			logger.Error(err),
		)
		select {
		case <-time.After(time.Duration(i) * s.backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("%w: %s %s: %v", models.ErrDataSourceUnavailable, s.name, ticker, err)
}

// dayOf truncates t to its UTC calendar day.
func dayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
