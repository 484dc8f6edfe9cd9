package status

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Domenick1991/jcsyfill/config"
	"github.com/Domenick1991/jcsyfill/internal/retry"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const maxBodyBytes = 4 * 1024 * 1024

// Fetcher is the HTTP client shared by all sources. It rate limits requests
// across sources and retries transient failures.
type Fetcher struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
	retry     retry.Config
	logger    *zap.Logger
}

func NewFetcher(cfg config.LookupConfig, logger *zap.Logger) *Fetcher {
	rps := cfg.RatePerSecond
	if rps <= 0 {
		rps = 2
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	rc := retry.DefaultConfig()
	rc.MaxAttempts = cfg.RetryAttempts + 1

	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(rate.Limit(rps), burst),
		userAgent: cfg.UserAgent,
		retry:     rc,
		logger:    logger,
	}
}

// Get returns the body of url. A 404 yields ErrNotFound; 5xx and 429 are
// retried.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	op := retry.Operation(func() error {
		if err := f.limiter.Wait(ctx); err != nil {
			return err
		}
		b, err := f.get(ctx, url)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	notify := func(err error, next time.Duration) {
		f.logger.Debug("fetch failed, retrying",
			zap.String("url", url), zap.Duration("backoff", next), zap.Error(err))
	}
	if err := backoff.RetryNotify(op, f.retry.BackOff(ctx), notify); err != nil {
		return nil, err
	}
	return body, nil
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, retry.Transient(fmt.Errorf("get %s: status %d", url, resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("get %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
