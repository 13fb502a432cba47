package oauthflow

// Package oauthflow holds the authorization-code + PKCE plumbing shared by
// the OAuth2 identity provider adapters.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	domainauth "github.com/nextphaseit/portal-gateway/internal/domain/auth"
	"github.com/nextphaseit/portal-gateway/internal/ports"
)

// DefaultTimeout bounds each provider round trip.
const DefaultTimeout = 10 * time.Second

// maxProfileBytes caps profile documents read from a provider.
const maxProfileBytes = 1 << 20

// AuthCodeURL builds the authorization URL with the S256 challenge.
// redirect_uri, client_id and scope come from cfg.
func AuthCodeURL(cfg *oauth2.Config, in ports.AuthorizeInput, extra ...oauth2.AuthCodeOption) (string, error) {
	if in.State == "" || in.CodeChallenge == "" {
		return "", errors.New("state and code challenge are required")
	}
	opts := append([]oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("code_challenge", in.CodeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	}, extra...)
	return cfg.AuthCodeURL(in.State, opts...), nil
}

// Context returns ctx bounded by timeout and carrying client for x/oauth2 and go-oidc.
func Context(ctx context.Context, client *http.Client, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	if client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, client)
	}
	return ctx, cancel
}

// Exchange redeems code with the PKCE verifier. Failures wrap ErrTokenExchangeFailed
// with a short description; the transport error itself is not wrapped.
func Exchange(ctx context.Context, cfg *oauth2.Config, in ports.ExchangeInput) (*oauth2.Token, error) {
	if in.Code == "" {
		return nil, fmt.Errorf("%w: authorization code is required", domainauth.ErrTokenExchangeFailed)
	}
	if in.CodeVerifier == "" {
		return nil, fmt.Errorf("%w: code verifier is required", domainauth.ErrTokenExchangeFailed)
	}
	tok, err := cfg.Exchange(ctx, in.Code, oauth2.VerifierOption(in.CodeVerifier))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domainauth.ErrTokenExchangeFailed, Describe(err))
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("%w: token response has no access token", domainauth.ErrTokenExchangeFailed)
	}
	return tok, nil
}

// Describe summarizes an exchange error without response bodies or secrets.
func Describe(err error) string {
	var re *oauth2.RetrieveError
	switch {
	case errors.As(err, &re):
		status := 0
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		if re.ErrorCode != "" {
			return fmt.Sprintf("token endpoint returned %d (%s)", status, re.ErrorCode)
		}
		return fmt.Sprintf("token endpoint returned %d", status)
	case errors.Is(err, context.DeadlineExceeded):
		return "token endpoint timed out"
	default:
		return "token endpoint unreachable"
	}
}

// FetchJSON GETs url with tok as bearer and decodes a JSON object.
// Failures wrap ErrProfileFetchFailed.
func FetchJSON(ctx context.Context, client *http.Client, url string, tok *oauth2.Token) (map[string]any, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", domainauth.ErrProfileFetchFailed, err)
	}
	tok.SetAuthHeader(req)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: profile endpoint timed out", domainauth.ErrProfileFetchFailed)
		}
		return nil, fmt.Errorf("%w: profile endpoint unreachable", domainauth.ErrProfileFetchFailed)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxProfileBytes))
		return nil, fmt.Errorf("%w: profile endpoint returned %d", domainauth.ErrProfileFetchFailed, resp.StatusCode)
	}

	var doc map[string]any
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxProfileBytes)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decode profile: %v", domainauth.ErrProfileFetchFailed, err)
	}
	return doc, nil
}
