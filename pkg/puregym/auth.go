// Package puregym talks to the gym's identity provider and member API.
package puregym

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/papercomputeco/gymqr/pkg/credentials"
)

const (
	//nolint:gosec // OAuth endpoint URL, not a credential.
	DefaultTokenURL   = "https://auth.puregym.com/connect/token"
	DefaultAPIBaseURL = "https://capi.puregym.com"

	// DefaultClientID is the public client the mobile app authenticates as.
	// It has an empty secret and is sent as HTTP Basic auth.
	DefaultClientID = "ro.client"
	DefaultScope    = "pgcapi offline_access"

	defaultHTTPTimeout = 30 * time.Second
)

// AuthConfig configures an AuthClient. Zero values fall back to the
// production defaults.
type AuthConfig struct {
	TokenURL   string
	ClientID   string
	Scope      string
	HTTPClient *http.Client
}

// AuthClient exchanges a member's email and password for a bearer token using
// the OAuth2 password grant. Tokens are not cached.
type AuthClient struct {
	oauth      *oauth2.Config
	httpClient *http.Client
}

// NewAuthClient creates an AuthClient.
func NewAuthClient(cfg AuthConfig) *AuthClient {
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID
	}
	if cfg.Scope == "" {
		cfg.Scope = DefaultScope
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout}
	}

	return &AuthClient{
		oauth: &oauth2.Config{
			ClientID: cfg.ClientID,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
			Scopes: strings.Fields(cfg.Scope),
		},
		httpClient: cfg.HTTPClient,
	}
}

// FetchToken performs the password grant for cred and returns the access
// token. Transport failures are returned as *RequestError, anything the
// provider answered that is not a usable token as *ResponseError.
func (a *AuthClient) FetchToken(ctx context.Context, cred credentials.Credential) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)

	token, err := a.oauth.PasswordCredentialsToken(ctx, cred.Email, cred.Password)
	if err != nil {
		return "", classifyTokenError(err)
	}

	if token.AccessToken == "" {
		return "", &ResponseError{Op: "fetch token", Err: errors.New("token response missing access_token")}
	}

	return token.AccessToken, nil
}

// oauth2 reports a failure to read the token response body as a plain
// string error with this prefix, so the transport error is not unwrappable.
const tokenBodyReadPrefix = "oauth2: cannot fetch token:"

func classifyTokenError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		return &ResponseError{Op: "fetch token", StatusCode: status, Err: err}
	}

	if isTransportError(err) || strings.HasPrefix(err.Error(), tokenBodyReadPrefix) {
		return &RequestError{Op: "fetch token", Err: err}
	}

	return &ResponseError{Op: "fetch token", Err: err}
}
