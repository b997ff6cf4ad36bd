package token_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/itmoou/attendbot/pkg/domain/model"
	"github.com/itmoou/attendbot/pkg/domain/types"
	"github.com/itmoou/attendbot/pkg/repository/memory"
	"github.com/itmoou/attendbot/pkg/service/token"
	"github.com/m-mizutani/gt"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type tokenServer struct {
	*httptest.Server
	calls         atomic.Int32
	mu            sync.Mutex
	refreshTokens []string
	respond       func(n int32) map[string]any
}

func newTokenServer(t *testing.T, respond func(n int32) map[string]any) *tokenServer {
	t.Helper()
	ts := &tokenServer{respond: respond}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := ts.calls.Add(1)
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		ts.mu.Lock()
		ts.refreshTokens = append(ts.refreshTokens, r.PostForm.Get("refresh_token"))
		ts.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ts.respond(n))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *tokenServer) sentRefreshTokens() []string {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return append([]string(nil), ts.refreshTokens...)
}

func flexCredential(url string) token.Credential {
	return token.Credential{
		Set:                types.CredentialFlex,
		TokenURL:           url,
		ClientID:           "open-api",
		Grant:              token.GrantRefreshToken,
		StaticRefreshToken: "rt-static",
	}
}

func TestCache_ReuseWindow(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)}
	ts := newTokenServer(t, func(n int32) map[string]any {
		return map[string]any{"access_token": "at-" + string(rune('0'+n)), "expires_in": 120}
	})

	cache := token.New([]token.Credential{flexCredential(ts.URL)},
		token.WithClock(clock.Now),
		token.WithMargin(30*time.Second),
	)
	ctx := context.Background()

	tok, err := cache.GetAccessToken(ctx, types.CredentialFlex)
	gt.NoError(t, err).Required()
	gt.Value(t, tok).Equal("at-1")
	gt.Value(t, ts.calls.Load()).Equal(int32(1))

	t.Run("120s left is served from cache", func(t *testing.T) {
		tok, err := cache.GetAccessToken(ctx, types.CredentialFlex)
		gt.NoError(t, err).Required()
		gt.Value(t, tok).Equal("at-1")
		gt.Value(t, ts.calls.Load()).Equal(int32(1))
	})

	t.Run("10s left refreshes exactly once", func(t *testing.T) {
		clock.Advance(110 * time.Second)

		tok, err := cache.GetAccessToken(ctx, types.CredentialFlex)
		gt.NoError(t, err).Required()
		gt.Value(t, tok).Equal("at-2")
		gt.Value(t, ts.calls.Load()).Equal(int32(2))
	})
}

func TestCache_ConcurrentCallersShareRefresh(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "at-shared", "expires_in": 3600})
	}))
	defer srv.Close()

	cache := token.New([]token.Credential{{
		Set:      types.CredentialBot,
		TokenURL: srv.URL,
		ClientID: "app",
		Scope:    "https://api.botframework.com/.default",
		Grant:    token.GrantClientCredentials,
	}})

	var wg sync.WaitGroup
	results := make([]string, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := cache.GetAccessToken(context.Background(), types.CredentialBot)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			results[i] = tok
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	gt.Value(t, calls.Load()).Equal(int32(1))
	for _, r := range results {
		gt.Value(t, r).Equal("at-shared")
	}
}

func TestCache_CanceledCallerDoesNotFailSharedRefresh(t *testing.T) {
	arrived := make(chan struct{}, 1)
	release := make(chan struct{})
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		arrived <- struct{}{}
		<-release
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "at-detached", "expires_in": 3600})
	}))
	defer srv.Close()

	cache := token.New([]token.Credential{{
		Set:      types.CredentialBot,
		TokenURL: srv.URL,
		ClientID: "app",
		Grant:    token.GrantClientCredentials,
	}})

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := cache.GetAccessToken(firstCtx, types.CredentialBot)
		firstErr <- err
	}()
	<-arrived

	type result struct {
		tok string
		err error
	}
	second := make(chan result, 1)
	go func() {
		tok, err := cache.GetAccessToken(context.Background(), types.CredentialBot)
		second <- result{tok: tok, err: err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	gt.Bool(t, errors.Is(<-firstErr, context.Canceled)).True()

	close(release)
	got := <-second
	gt.NoError(t, got.err).Required()
	gt.Value(t, got.tok).Equal("at-detached")

	tok, err := cache.GetAccessToken(context.Background(), types.CredentialBot)
	gt.NoError(t, err).Required()
	gt.Value(t, tok).Equal("at-detached")
	gt.Value(t, calls.Load()).Equal(int32(1))
}

func TestCache_RefreshTokenRotation(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)}
	ts := newTokenServer(t, func(n int32) map[string]any {
		if n == 1 {
			return map[string]any{"access_token": "at-1", "refresh_token": "rt-rotated", "expires_in": 60}
		}
		return map[string]any{"access_token": "at-2", "expires_in": 60}
	})

	repo := memory.New()
	ctx := context.Background()
	gt.NoError(t, repo.RefreshToken().Put(ctx, &model.RefreshTokenRecord{
		Credential: types.CredentialFlex,
		Value:      "rt-stored",
		UpdatedAt:  clock.Now().Add(-time.Hour),
		UpdatedBy:  types.TokenUpdaterInitial,
	})).Required()

	cache := token.New([]token.Credential{flexCredential(ts.URL)},
		token.WithClock(clock.Now),
		token.WithRefreshTokenStore(repo.RefreshToken()),
	)

	_, err := cache.GetAccessToken(ctx, types.CredentialFlex)
	gt.NoError(t, err).Required()

	rec, err := repo.RefreshToken().Get(ctx, types.CredentialFlex)
	gt.NoError(t, err).Required()
	gt.Value(t, rec.Value).Equal("rt-rotated")
	gt.Value(t, rec.UpdatedBy).Equal(types.TokenUpdaterAuto)

	clock.Advance(time.Minute)
	_, err = cache.GetAccessToken(ctx, types.CredentialFlex)
	gt.NoError(t, err).Required()

	gt.Value(t, ts.sentRefreshTokens()).Equal([]string{"rt-stored", "rt-rotated"})

	// no refresh_token in the response keeps the rotated value
	rec, err = repo.RefreshToken().Get(ctx, types.CredentialFlex)
	gt.NoError(t, err).Required()
	gt.Value(t, rec.Value).Equal("rt-rotated")
}

type failingStore struct{}

func (failingStore) Get(ctx context.Context, credential types.CredentialSet) (*model.RefreshTokenRecord, error) {
	return nil, errors.New("store down")
}

func (failingStore) Put(ctx context.Context, record *model.RefreshTokenRecord) error {
	return errors.New("store down")
}

func TestCache_RotationSurvivesStoreFailure(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)}
	ts := newTokenServer(t, func(n int32) map[string]any {
		return map[string]any{"access_token": "at", "refresh_token": "rt-next-" + string(rune('0'+n)), "expires_in": 60}
	})

	cache := token.New([]token.Credential{flexCredential(ts.URL)},
		token.WithClock(clock.Now),
		token.WithRefreshTokenStore(failingStore{}),
	)
	ctx := context.Background()

	_, err := cache.GetAccessToken(ctx, types.CredentialFlex)
	gt.NoError(t, err).Required()

	gt.NoError(t, cache.Rotate(ctx, types.CredentialFlex)).Required()

	gt.Value(t, ts.sentRefreshTokens()).Equal([]string{"rt-static", "rt-next-1"})
}

func TestCache_EndpointError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer srv.Close()

	cache := token.New([]token.Credential{flexCredential(srv.URL)})
	_, err := cache.GetAccessToken(context.Background(), types.CredentialFlex)
	gt.Error(t, err)
	gt.Bool(t, errors.Is(err, token.ErrTokenEndpoint)).True()
}

func TestCache_UnknownCredential(t *testing.T) {
	cache := token.New(nil)
	_, err := cache.GetAccessToken(context.Background(), types.CredentialBot)
	gt.Bool(t, errors.Is(err, token.ErrUnknownCredential)).True()
}

func TestCache_ExpiryFromJWT(t *testing.T) {
	now := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	exp := now.Add(10 * time.Minute)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("secret"))
	gt.NoError(t, err).Required()

	ts := newTokenServer(t, func(n int32) map[string]any {
		return map[string]any{"access_token": signed}
	})

	clock := &fakeClock{now: now}
	cache := token.New([]token.Credential{flexCredential(ts.URL)}, token.WithClock(clock.Now))
	ctx := context.Background()

	_, err = cache.GetAccessToken(ctx, types.CredentialFlex)
	gt.NoError(t, err).Required()

	info, err := cache.Info(ctx, types.CredentialFlex)
	gt.NoError(t, err).Required()
	gt.Bool(t, info.HasAccessToken).True()
	gt.Bool(t, info.ExpiresAt.Equal(exp)).True()
	gt.Value(t, info.RefreshTokenPreview).Equal("rt-stati...")
	gt.Value(t, info.RefreshTokenSource).Equal("static")

	cache.Invalidate(types.CredentialFlex)
	info, err = cache.Info(ctx, types.CredentialFlex)
	gt.NoError(t, err).Required()
	gt.Bool(t, info.HasAccessToken).False()
}

func TestCache_DefaultLifetime(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)}
	ts := newTokenServer(t, func(n int32) map[string]any {
		return map[string]any{"access_token": "opaque"}
	})

	cache := token.New([]token.Credential{flexCredential(ts.URL)}, token.WithClock(clock.Now))
	ctx := context.Background()

	_, err := cache.GetAccessToken(ctx, types.CredentialFlex)
	gt.NoError(t, err).Required()

	info, err := cache.Info(ctx, types.CredentialFlex)
	gt.NoError(t, err).Required()
	gt.Value(t, info.ExpiresIn).Equal(5 * time.Minute)
}

func TestCache_SetRefreshToken(t *testing.T) {
	ts := newTokenServer(t, func(n int32) map[string]any {
		return map[string]any{"access_token": "at", "expires_in": 3600}
	})
	repo := memory.New()
	cache := token.New([]token.Credential{flexCredential(ts.URL)}, token.WithRefreshTokenStore(repo.RefreshToken()))
	ctx := context.Background()

	gt.NoError(t, cache.SetRefreshToken(ctx, types.CredentialFlex, " rt-manual ", types.TokenUpdaterManual)).Required()

	rec, err := repo.RefreshToken().Get(ctx, types.CredentialFlex)
	gt.NoError(t, err).Required()
	gt.Value(t, rec.Value).Equal("rt-manual")
	gt.Value(t, rec.UpdatedBy).Equal(types.TokenUpdaterManual)

	_, err = cache.GetAccessToken(ctx, types.CredentialFlex)
	gt.NoError(t, err).Required()
	gt.Value(t, ts.sentRefreshTokens()).Equal([]string{"rt-manual"})
}
