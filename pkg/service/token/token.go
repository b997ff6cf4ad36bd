package token

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/itmoou/attendbot/pkg/domain/interfaces"
	"github.com/itmoou/attendbot/pkg/domain/model"
	"github.com/itmoou/attendbot/pkg/domain/types"
	"github.com/itmoou/attendbot/pkg/service/metrics"
	"github.com/itmoou/attendbot/pkg/utils/logging"
	"github.com/itmoou/attendbot/pkg/utils/safe"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/singleflight"
)

var (
	ErrTokenEndpoint        = goerr.New("token endpoint returned an error")
	ErrUnknownCredential    = goerr.New("credential set is not registered")
	ErrNoRefreshToken       = goerr.New("no refresh token available")
	ErrMalformedTokenResult = goerr.New("token response has no access_token")
)

const (
	DefaultMargin   = 60 * time.Second
	minMargin       = 30 * time.Second
	maxMargin       = 60 * time.Second
	defaultLifetime = 5 * time.Minute
	previewLength   = 8
	maxErrorBody    = 4096
)

// Grant is the OAuth2 grant type used for a credential set.
type Grant string

const (
	GrantRefreshToken      Grant = "refresh_token"
	GrantClientCredentials Grant = "client_credentials"
)

// Credential describes how to obtain access tokens for one credential set.
type Credential struct {
	Set                types.CredentialSet
	TokenURL           string
	ClientID           string
	ClientSecret       string `masq:"secret"`
	Scope              string
	Grant              Grant
	StaticRefreshToken string `masq:"secret"`
}

type entry struct {
	accessToken string
	expiresAt   time.Time

	// refreshToken is the last value known in memory, with the time it was obtained
	refreshToken  string
	refreshAt     time.Time
	refreshSource string
}

// Cache hands out access tokens per credential set and refreshes them shortly
// before they expire.
type Cache struct {
	mu      sync.Mutex
	creds   map[types.CredentialSet]Credential
	entries map[types.CredentialSet]*entry
	group   singleflight.Group

	clock      func() time.Time
	httpClient *http.Client
	margin     time.Duration
	store      interfaces.RefreshTokenRepository
	metrics    metrics.Recorder
}

var _ interfaces.TokenProvider = &Cache{}

type Option func(*Cache)

func WithClock(clock func() time.Time) Option {
	return func(c *Cache) {
		c.clock = clock
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Cache) {
		c.httpClient = client
	}
}

// WithMargin sets how long before expiry a token is considered stale. It is clamped to 30s..60s.
func WithMargin(d time.Duration) Option {
	return func(c *Cache) {
		switch {
		case d < minMargin:
			c.margin = minMargin
		case d > maxMargin:
			c.margin = maxMargin
		default:
			c.margin = d
		}
	}
}

func WithRefreshTokenStore(store interfaces.RefreshTokenRepository) Option {
	return func(c *Cache) {
		c.store = store
	}
}

func WithMetrics(m metrics.Recorder) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

func New(creds []Credential, opts ...Option) *Cache {
	c := &Cache{
		creds:      make(map[types.CredentialSet]Credential, len(creds)),
		entries:    make(map[types.CredentialSet]*entry),
		clock:      time.Now,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		margin:     DefaultMargin,
		metrics:    metrics.Nop{},
	}
	for _, cred := range creds {
		c.creds[cred.Set] = cred
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetAccessToken returns a cached token while it has more than the margin left,
// otherwise it refreshes. Concurrent callers share one refresh.
func (c *Cache) GetAccessToken(ctx context.Context, set types.CredentialSet) (string, error) {
	if tok, ok := c.fresh(set); ok {
		return tok, nil
	}

	// The shared refresh outlives any single caller; each caller still honors its own ctx.
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(set.String(), func() (any, error) {
		if tok, ok := c.fresh(set); ok {
			return tok, nil
		}
		return c.refresh(shared, set)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", goerr.Wrap(ctx.Err(), "gave up waiting for token", goerr.V("credential", set))
	}
}

// Rotate refreshes even when the cached token is still fresh.
func (c *Cache) Rotate(ctx context.Context, set types.CredentialSet) error {
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(set.String(), func() (any, error) {
		return c.refresh(shared, set)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return goerr.Wrap(ctx.Err(), "gave up waiting for rotation", goerr.V("credential", set))
	}
}

// Invalidate drops the cached access token. The refresh token is kept.
func (c *Cache) Invalidate(set types.CredentialSet) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[set]; ok {
		e.accessToken = ""
		e.expiresAt = time.Time{}
	}
}

// SetRefreshToken stores a refresh token provided by an operator and drops the cached access token.
func (c *Cache) SetRefreshToken(ctx context.Context, set types.CredentialSet, value string, by types.TokenUpdater) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return goerr.Wrap(ErrNoRefreshToken, "refresh token is empty", goerr.V("credential", set))
	}
	if _, ok := c.creds[set]; !ok {
		return goerr.Wrap(ErrUnknownCredential, "cannot set refresh token", goerr.V("credential", set))
	}

	now := c.clock()
	if c.store != nil {
		if err := c.store.Put(ctx, &model.RefreshTokenRecord{
			Credential: set,
			Value:      value,
			UpdatedAt:  now,
			UpdatedBy:  by,
		}); err != nil {
			return goerr.Wrap(err, "failed to store refresh token", goerr.V("credential", set))
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entryLocked(set)
	e.accessToken = ""
	e.expiresAt = time.Time{}
	e.refreshToken = value
	e.refreshAt = now
	e.refreshSource = "memory"
	return nil
}

// Info describes the cache state of set for diagnostics.
func (c *Cache) Info(ctx context.Context, set types.CredentialSet) (*model.TokenInfo, error) {
	cred, ok := c.creds[set]
	if !ok {
		return nil, goerr.Wrap(ErrUnknownCredential, "cannot describe token", goerr.V("credential", set))
	}

	info := &model.TokenInfo{Credential: set}
	now := c.clock()

	c.mu.Lock()
	if e, ok := c.entries[set]; ok && e.accessToken != "" {
		info.HasAccessToken = true
		info.ExpiresAt = e.expiresAt
		info.ExpiresIn = e.expiresAt.Sub(now)
	}
	c.mu.Unlock()

	if cred.Grant == GrantRefreshToken {
		rt, source, err := c.resolveRefreshToken(ctx, cred)
		if err != nil && !errors.Is(err, ErrNoRefreshToken) {
			return nil, err
		}
		info.RefreshTokenLength = len(rt)
		info.RefreshTokenPreview = preview(rt)
		info.RefreshTokenSource = source
	}

	return info, nil
}

func (c *Cache) fresh(set types.CredentialSet) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[set]
	if !ok || e.accessToken == "" {
		return "", false
	}
	if c.clock().Before(e.expiresAt.Add(-c.margin)) {
		return e.accessToken, true
	}
	return "", false
}

func (c *Cache) entryLocked(set types.CredentialSet) *entry {
	e, ok := c.entries[set]
	if !ok {
		e = &entry{}
		c.entries[set] = e
	}
	return e
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

func (c *Cache) refresh(ctx context.Context, set types.CredentialSet) (string, error) {
	cred, ok := c.creds[set]
	if !ok {
		return "", goerr.Wrap(ErrUnknownCredential, "cannot refresh token", goerr.V("credential", set))
	}

	tok, err := c.requestToken(ctx, cred)
	c.metrics.RecordTokenRefresh(set.String(), err)
	if err != nil {
		return "", err
	}
	return tok, nil
}

func (c *Cache) requestToken(ctx context.Context, cred Credential) (string, error) {
	logger := logging.From(ctx).With("credential", cred.Set)

	form := url.Values{}
	form.Set("grant_type", string(cred.Grant))
	form.Set("client_id", cred.ClientID)
	form.Set("client_secret", cred.ClientSecret)

	var sentRefreshToken string
	switch cred.Grant {
	case GrantRefreshToken:
		rt, source, err := c.resolveRefreshToken(ctx, cred)
		if err != nil {
			return "", err
		}
		logger.Debug("using refresh token", "source", source, "length", len(rt))
		sentRefreshToken = rt
		form.Set("refresh_token", rt)
	case GrantClientCredentials:
		if cred.Scope != "" {
			form.Set("scope", cred.Scope)
		}
	default:
		return "", goerr.New("unsupported grant type", goerr.V("grant", cred.Grant), goerr.V("credential", cred.Set))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cred.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", goerr.Wrap(err, "failed to create token request", goerr.V("url", cred.TokenURL))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", goerr.Wrap(err, "failed to call token endpoint", goerr.V("url", cred.TokenURL), goerr.V("credential", cred.Set))
	}
	defer safe.DrainClose(ctx, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", goerr.Wrap(ErrTokenEndpoint, "token request rejected",
			goerr.V("credential", cred.Set),
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(body)))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", goerr.Wrap(err, "failed to decode token response", goerr.V("credential", cred.Set))
	}
	if tr.AccessToken == "" {
		return "", goerr.Wrap(ErrMalformedTokenResult, "empty access token", goerr.V("credential", cred.Set))
	}

	now := c.clock()
	expiresAt := c.expiry(ctx, now, tr)

	c.mu.Lock()
	e := c.entryLocked(cred.Set)
	e.accessToken = tr.AccessToken
	e.expiresAt = expiresAt
	rotated := cred.Grant == GrantRefreshToken && tr.RefreshToken != "" && tr.RefreshToken != sentRefreshToken
	if rotated {
		e.refreshToken = tr.RefreshToken
		e.refreshAt = now
		e.refreshSource = "memory"
	}
	c.mu.Unlock()

	logger.Info("access token refreshed", "expires_at", expiresAt, "rotated", rotated)

	if rotated {
		c.persistRotation(ctx, cred.Set, tr.RefreshToken, now)
	}

	return tr.AccessToken, nil
}

// persistRotation writes a rotated refresh token. Failure only logs since the
// in-memory copy still serves the next refresh.
func (c *Cache) persistRotation(ctx context.Context, set types.CredentialSet, value string, now time.Time) {
	if c.store == nil {
		logging.From(ctx).Warn("refresh token rotated but no store is configured", "credential", set)
		return
	}

	if err := c.store.Put(ctx, &model.RefreshTokenRecord{
		Credential: set,
		Value:      value,
		UpdatedAt:  now,
		UpdatedBy:  types.TokenUpdaterAuto,
	}); err != nil {
		logging.From(ctx).Error("failed to persist rotated refresh token",
			"credential", set,
			"error", err)
		return
	}
	logging.From(ctx).Info("rotated refresh token persisted", "credential", set, "length", len(value))
}

// resolveRefreshToken picks the newest of the stored and in-memory values,
// falling back to the static configured value.
func (c *Cache) resolveRefreshToken(ctx context.Context, cred Credential) (string, string, error) {
	c.mu.Lock()
	var memValue string
	var memAt time.Time
	if e, ok := c.entries[cred.Set]; ok {
		memValue, memAt = e.refreshToken, e.refreshAt
	}
	c.mu.Unlock()

	if c.store != nil {
		rec, err := c.store.Get(ctx, cred.Set)
		switch {
		case err != nil:
			logging.From(ctx).Warn("refresh token store unavailable", "credential", cred.Set, "error", err)
		case rec != nil && rec.Value != "":
			if memValue != "" && memAt.After(rec.UpdatedAt) {
				return memValue, "memory", nil
			}
			return rec.Value, "store", nil
		}
	}

	if memValue != "" {
		return memValue, "memory", nil
	}

	if cred.StaticRefreshToken != "" {
		logging.From(ctx).Info("falling back to configured refresh token", "credential", cred.Set)
		return cred.StaticRefreshToken, "static", nil
	}

	return "", "", goerr.Wrap(ErrNoRefreshToken, "refresh token is not available", goerr.V("credential", cred.Set))
}

// expiry uses expires_in, then the exp claim of a JWT access token, then a default lifetime.
func (c *Cache) expiry(ctx context.Context, now time.Time, tr tokenResponse) time.Time {
	if tr.ExpiresIn > 0 {
		return now.Add(time.Duration(tr.ExpiresIn) * time.Second)
	}

	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tr.AccessToken, &claims); err == nil && claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}

	logging.From(ctx).Warn("token lifetime unknown, using default", "lifetime", defaultLifetime)
	return now.Add(defaultLifetime)
}

func preview(s string) string {
	if len(s) <= previewLength {
		return s
	}
	return s[:previewLength] + "..."
}
