package teams

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/itmoou/attendbot/pkg/utils/safe"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/m-mizutani/goerr/v2"
)

const (
	DefaultOpenIDConfigURL = "https://login.botframework.com/v1/.well-known/openidconfiguration"
	BotFrameworkIssuer     = "https://api.botframework.com"

	keySetTTL       = 24 * time.Hour
	clockSkew       = 5 * time.Minute
	serviceURLClaim = "serviceurl"
)

var ErrUnauthorized = goerr.New("unauthorized bot request")

type openIDConfiguration struct {
	Issuer  string `json:"issuer"`
	JWKSURI string `json:"jwks_uri"`
}

// Verifier checks the bearer token the Bot Framework attaches to inbound activities.
type Verifier struct {
	appID      string
	openIDURL  string
	issuer     string
	httpClient *http.Client
	clock      func() time.Time

	mu        sync.Mutex
	keySet    jwk.Set
	fetchedAt time.Time
}

type VerifierOption func(*Verifier)

func WithOpenIDConfigURL(u string) VerifierOption {
	return func(v *Verifier) {
		v.openIDURL = u
	}
}

func WithIssuer(iss string) VerifierOption {
	return func(v *Verifier) {
		v.issuer = iss
	}
}

func WithVerifierClock(clock func() time.Time) VerifierOption {
	return func(v *Verifier) {
		v.clock = clock
	}
}

func WithVerifierHTTPClient(hc *http.Client) VerifierOption {
	return func(v *Verifier) {
		v.httpClient = hc
	}
}

func NewVerifier(appID string, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		appID:      appID,
		openIDURL:  DefaultOpenIDConfigURL,
		issuer:     BotFrameworkIssuer,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify validates authorization (the raw header value) and, when the token
// names a service URL, checks it matches the activity's serviceURL.
func (v *Verifier) Verify(ctx context.Context, authorization, serviceURL string) error {
	raw, ok := strings.CutPrefix(authorization, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return goerr.Wrap(ErrUnauthorized, "missing bearer token")
	}

	keySet, err := v.keys(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to load bot framework keys")
	}

	tok, err := jwt.Parse([]byte(raw),
		jwt.WithKeySet(keySet, jws.WithInferAlgorithmFromKey(true)),
		jwt.WithValidate(true),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.appID),
		jwt.WithAcceptableSkew(clockSkew),
		jwt.WithClock(jwt.ClockFunc(v.clock)),
	)
	if err != nil {
		return goerr.Wrap(ErrUnauthorized, "token verification failed", goerr.V("reason", err.Error()))
	}

	if claimed, ok := tok.Get(serviceURLClaim); ok {
		s, _ := claimed.(string)
		if !sameServiceURL(s, serviceURL) {
			return goerr.Wrap(ErrUnauthorized, "service URL mismatch",
				goerr.V("claimed", s),
				goerr.V("activity", serviceURL))
		}
	}

	return nil
}

func sameServiceURL(a, b string) bool {
	return strings.EqualFold(strings.TrimRight(a, "/"), strings.TrimRight(b, "/"))
}

func (v *Verifier) keys(ctx context.Context) (jwk.Set, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.keySet != nil && v.clock().Sub(v.fetchedAt) < keySetTTL {
		return v.keySet, nil
	}

	config, err := v.getOpenIDConfiguration(ctx)
	if err != nil {
		return nil, err
	}

	keySet, err := jwk.Fetch(ctx, config.JWKSURI, jwk.WithHTTPClient(v.httpClient))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch public keys", goerr.V("jwks_uri", config.JWKSURI))
	}

	v.keySet = keySet
	v.fetchedAt = v.clock()
	return keySet, nil
}

func (v *Verifier) getOpenIDConfiguration(ctx context.Context) (*openIDConfiguration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.openIDURL, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create request")
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch OpenID configuration")
	}
	defer safe.Close(ctx, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, goerr.New("failed to fetch OpenID configuration", goerr.V("status", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read OpenID configuration response")
	}

	var config openIDConfiguration
	if err := json.Unmarshal(body, &config); err != nil {
		return nil, goerr.Wrap(err, "failed to parse OpenID configuration")
	}
	if config.JWKSURI == "" {
		return nil, goerr.New("OpenID configuration has no jwks_uri")
	}

	return &config, nil
}
