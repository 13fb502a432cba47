package oauthflow

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	domainauth "github.com/nextphaseit/portal-gateway/internal/domain/auth"
	"github.com/nextphaseit/portal-gateway/internal/ports"
)

func testConfig(tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:    "client-1",
		RedirectURL: "https://gw.test/auth/microsoft/callback",
		Scopes:      []string{"openid", "email"},
		Endpoint: oauth2.Endpoint{
			AuthURL:   "https://idp.test/authorize",
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func TestAuthCodeURL(t *testing.T) {
	raw, err := AuthCodeURL(testConfig("https://idp.test/token"), ports.AuthorizeInput{State: "st", CodeChallenge: "ch"})
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "client-1", q.Get("client_id"))
	assert.Equal(t, "https://gw.test/auth/microsoft/callback", q.Get("redirect_uri"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "openid email", q.Get("scope"))
	assert.Equal(t, "st", q.Get("state"))
	assert.Equal(t, "ch", q.Get("code_challenge"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))

	_, err = AuthCodeURL(testConfig(""), ports.AuthorizeInput{State: "st"})
	assert.Error(t, err)
}

func TestExchange_SendsVerifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if r.Form.Get("code_verifier") != "the-verifier" || r.Form.Get("code") != "the-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at","token_type":"Bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	ctx, cancel := Context(context.Background(), srv.Client(), time.Second)
	defer cancel()

	tok, err := Exchange(ctx, testConfig(srv.URL), ports.ExchangeInput{Code: "the-code", CodeVerifier: "the-verifier"})
	require.NoError(t, err)
	assert.Equal(t, "at", tok.AccessToken)

	_, err = Exchange(ctx, testConfig(srv.URL), ports.ExchangeInput{Code: "the-code", CodeVerifier: "wrong"})
	require.ErrorIs(t, err, domainauth.ErrTokenExchangeFailed)
	assert.Contains(t, err.Error(), "400 (invalid_grant)")

	_, err = Exchange(ctx, testConfig(srv.URL), ports.ExchangeInput{Code: "the-code"})
	assert.ErrorIs(t, err, domainauth.ErrTokenExchangeFailed)
}

func TestExchange_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	ctx, cancel := Context(context.Background(), nil, time.Second)
	defer cancel()
	_, err := Exchange(ctx, testConfig(srv.URL), ports.ExchangeInput{Code: "c", CodeVerifier: "v"})
	require.ErrorIs(t, err, domainauth.ErrTokenExchangeFailed)
	assert.Contains(t, err.Error(), "unreachable")
}

func TestFetchJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"id":"1","mail":"staff@nextphaseit.org"}`))
	}))
	defer srv.Close()

	doc, err := FetchJSON(context.Background(), srv.Client(), srv.URL, &oauth2.Token{AccessToken: "at", TokenType: "Bearer"})
	require.NoError(t, err)
	assert.Equal(t, "staff@nextphaseit.org", doc["mail"])

	_, err = FetchJSON(context.Background(), srv.Client(), srv.URL, &oauth2.Token{AccessToken: "bad", TokenType: "Bearer"})
	require.ErrorIs(t, err, domainauth.ErrProfileFetchFailed)
	assert.Contains(t, err.Error(), "401")
}
