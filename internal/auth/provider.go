// Package auth obtains bearer tokens for the inference service through an
// OAuth2 client-credentials exchange.
package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/joseph-ayodele/document-extractor/internal/common"
)

// Provider hands out bearer tokens.
type Provider interface {
	Token(ctx context.Context) (string, error)
}

// Invalidator is implemented by providers that cache tokens. Callers invoke
// it when a downstream service rejects a token with 401.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

// Fetcher performs one token exchange.
type Fetcher interface {
	Fetch(ctx context.Context) (*oauth2.Token, error)
}

// Config for the client-credentials exchange.
type Config struct {
	AuthURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration // default 30s
}

// ClientCredentials exchanges client id and secret for a token on every call.
type ClientCredentials struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClientCredentials(cfg Config, httpClient *http.Client, logger *slog.Logger) *ClientCredentials {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ClientCredentials{cfg: cfg, http: httpClient, logger: logger}
}

// Token implements Provider.
func (c *ClientCredentials) Token(ctx context.Context) (string, error) {
	tok, err := c.Fetch(ctx)
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// Fetch implements Fetcher. grant_type, client_id and client_secret are
// sent form-encoded in the request body.
func (c *ClientCredentials) Fetch(ctx context.Context) (*oauth2.Token, error) {
	if strings.TrimSpace(c.cfg.ClientSecret) == "" {
		c.logger.Error("auth.token.missing_secret")
		return nil, common.AuthError("client secret is not configured", nil)
	}
	if c.cfg.AuthURL == "" {
		return nil, common.AuthError("auth url is not configured", nil)
	}

	cc := clientcredentials.Config{
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
		TokenURL:     c.cfg.AuthURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	start := time.Now()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)
	tok, err := cc.Token(ctx)
	if err != nil {
		msg := "token exchange failed"
		if re, ok := err.(*oauth2.RetrieveError); ok && re.Response != nil {
			msg = "token exchange returned status " + re.Response.Status
		}
		c.logger.Error("auth.token.exchange_failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, common.AuthError(msg, err)
	}
	if tok.AccessToken == "" {
		return nil, common.AuthError("token response has no access_token", nil)
	}
	c.logger.Info("auth.token.ok",
		"expires_in_s", int(time.Until(tok.Expiry).Seconds()),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return tok, nil
}
