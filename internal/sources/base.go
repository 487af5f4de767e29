package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/lifelog-labs/lifelog-sync-server/internal/config"
	"github.com/lifelog-labs/lifelog-sync-server/internal/httpclient"
)

// baseSource carries the state shared by the network-backed sources:
// configuration, credentials, rate-limit counters, and health metrics.
type baseSource struct {
	cfg     *config.SourceConfig
	client  httpclient.Client
	metrics *sourceMetrics

	// authMu guards the cached token state
	authMu      sync.Mutex
	token       string
	tokenExpiry *time.Time
	now         func() time.Time
}

func newBaseSource(cfg *config.SourceConfig, client httpclient.Client) *baseSource {
	if client == nil {
		client = httpclient.NewDefaultClient(0)
	}
	return &baseSource{
		cfg:     cfg,
		client:  client,
		metrics: newSourceMetrics(time.Now),
		now:     time.Now,
	}
}

// Name returns the configured source name
func (b *baseSource) Name() string {
	return b.cfg.Name
}

// CheckRateLimit reports whether the source may issue another request and,
// when allowed, consumes one unit of budget
func (b *baseSource) CheckRateLimit() bool {
	maxRequests := 0
	if b.cfg.RateLimit != nil {
		maxRequests = b.cfg.RateLimit.MaxRequests
	}
	return b.metrics.AllowRequest(maxRequests)
}

// Metrics returns a point-in-time snapshot of the source's health metrics
func (b *baseSource) Metrics() MetricsSnapshot {
	return b.metrics.Snapshot()
}

// refreshResponse is the token refresh payload returned by vendor APIs
type refreshResponse struct {
	AccessToken string     `json:"accessToken"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

// currentToken returns the access token, consulting the cache first and the
// configuration second. It does not refresh.
func (b *baseSource) currentToken() (string, error) {
	b.authMu.Lock()
	defer b.authMu.Unlock()

	if b.token != "" && (b.tokenExpiry == nil || b.now().Before(*b.tokenExpiry)) {
		return b.token, nil
	}

	if b.cfg.Auth != nil && b.cfg.Auth.RefreshToken != "" && b.cfg.Auth.IsExpired(b.now()) {
		// Configured token is stale; force the refresh path
		return "", fmt.Errorf("access token expired")
	}

	token, err := b.cfg.Auth.GetAccessToken()
	if err != nil {
		return "", err
	}

	b.token = token
	if b.cfg.Auth != nil && b.cfg.Auth.ExpiresAt != nil {
		expiry := *b.cfg.Auth.ExpiresAt
		b.tokenExpiry = &expiry
	}
	return token, nil
}

// refreshToken performs one silent token refresh against the vendor API
func (b *baseSource) refreshToken(ctx context.Context) error {
	if b.cfg.Auth == nil || b.cfg.Auth.RefreshToken == "" {
		return fmt.Errorf("no refresh token configured")
	}

	body, err := b.client.Get(ctx, b.cfg.Endpoint+"/oauth/refresh",
		httpclient.WithBearerToken(b.cfg.Auth.RefreshToken))
	if err != nil {
		return fmt.Errorf("token refresh failed: %w", err)
	}

	var refreshed refreshResponse
	if err := json.Unmarshal(body, &refreshed); err != nil {
		return fmt.Errorf("failed to parse token refresh response: %w", err)
	}
	if refreshed.AccessToken == "" {
		return fmt.Errorf("token refresh response contained no access token")
	}

	b.authMu.Lock()
	b.token = refreshed.AccessToken
	b.tokenExpiry = refreshed.ExpiresAt
	b.authMu.Unlock()

	return nil
}

// authenticate verifies credentials against the given probe path. When the
// probe rejects the token and a refresh token is configured, one silent
// refresh is attempted before the failure is surfaced.
func (b *baseSource) authenticate(ctx context.Context, probePath string) error {
	err := b.probe(ctx, probePath)
	if err == nil {
		b.metrics.SetStatus(StatusActive)
		return nil
	}

	if isAuthRejection(err) && b.cfg.Auth != nil && b.cfg.Auth.RefreshToken != "" {
		if refreshErr := b.refreshToken(ctx); refreshErr == nil {
			if err = b.probe(ctx, probePath); err == nil {
				b.metrics.SetStatus(StatusActive)
				return nil
			}
		}
	}

	// An exhausted request budget is an expected condition, not an auth
	// fault; error counters and status stay untouched.
	if errors.Is(err, ErrRateLimited) {
		return err
	}

	b.metrics.RecordError(fmt.Sprintf("authentication failed: %v", err))
	return fmt.Errorf("authentication failed for source %s: %w", b.cfg.Name, err)
}

// probe issues an authenticated GET against the probe path
func (b *baseSource) probe(ctx context.Context, probePath string) error {
	if !b.CheckRateLimit() {
		return ErrRateLimited
	}

	token, err := b.currentToken()
	if err != nil {
		// Surface as a rejection so the refresh path runs
		return &httpclient.StatusError{StatusCode: http.StatusUnauthorized, URL: b.cfg.Endpoint + probePath}
	}

	_, err = b.client.Get(ctx, b.cfg.Endpoint+probePath, httpclient.WithBearerToken(token))
	return err
}

// getJSON issues an authenticated, rate-limited GET and decodes the response
func (b *baseSource) getJSON(ctx context.Context, url string, out any) error {
	if !b.CheckRateLimit() {
		return ErrRateLimited
	}

	token, err := b.currentToken()
	if err != nil {
		return fmt.Errorf("no valid credentials for source %s: %w", b.cfg.Name, err)
	}

	body, err := b.client.Get(ctx, url, httpclient.WithBearerToken(token))
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response from %s: %w", url, err)
	}
	return nil
}

// finishSync records the outcome of one sync attempt. Rate-limit rejections
// are an expected condition and do not touch the error counters.
func (b *baseSource) finishSync(records int, err error) {
	if err == nil {
		b.metrics.RecordSync(records, true)
		return
	}
	if errors.Is(err, ErrRateLimited) {
		return
	}
	b.metrics.RecordSync(0, false)
	b.metrics.RecordError(err.Error())
}

// isAuthRejection reports whether the error is a 401/403 response
func isAuthRejection(err error) bool {
	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden
	}
	return false
}

// syncRange resolves the requested time range, defaulting to the last seven days
func syncRange(now func() time.Time, start, end *time.Time) (time.Time, time.Time) {
	to := now()
	if end != nil {
		to = *end
	}
	from := to.AddDate(0, 0, -7)
	if start != nil {
		from = *start
	}
	return from, to
}
