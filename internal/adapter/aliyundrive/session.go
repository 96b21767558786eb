package aliyundrive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/semmidev/alipan-runner/internal/domain"
	"golang.org/x/oauth2"
)

// Session exchanges the long-lived refresh token for short-lived access
// tokens. The provider rotates the refresh token on every exchange, so the
// value held here changes after each Renew. It is not safe for concurrent use.
type Session struct {
	tokenURL   string
	httpClient *http.Client
	logger     Logger
	now        func() time.Time

	refreshToken string
	token        *oauth2.Token
}

func NewSession(tokenURL, refreshToken string, httpClient *http.Client, logger Logger) *Session {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Session{
		tokenURL:     tokenURL,
		httpClient:   httpClient,
		logger:       logger,
		now:          time.Now,
		refreshToken: refreshToken,
	}
}

// Token returns the cached access token, renewing first when it is absent or
// expired.
func (s *Session) Token(ctx context.Context) (string, error) {
	if s.Expired(s.now()) {
		if err := s.Renew(ctx); err != nil {
			return "", err
		}
	}
	return s.token.AccessToken, nil
}

// Expired reports whether a renewal is needed at now. A session that has
// never renewed is expired.
func (s *Session) Expired(now time.Time) bool {
	if s.token == nil || s.token.AccessToken == "" || s.token.Expiry.IsZero() {
		return true
	}
	return !now.Before(s.token.Expiry)
}

// Invalidate drops the access token so the next Token call renews.
func (s *Session) Invalidate() {
	s.token = nil
}

func (s *Session) Renew(ctx context.Context) error {
	payload, err := json.Marshal(tokenRequest{
		GrantType:    "refresh_token",
		RefreshToken: s.refreshToken,
	})
	if err != nil {
		return fmt.Errorf("encode token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, bytes.NewReader(payload))
	if err != nil {
		return &domain.EndpointError{URL: s.tokenURL, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("token exchange: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read token response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusBadRequest, resp.StatusCode == http.StatusUnauthorized:
		return &domain.ResponseError{Kind: domain.KindUnauthorized, StatusCode: resp.StatusCode, Endpoint: s.tokenURL, Body: body}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &domain.ResponseError{Kind: domain.KindOther, StatusCode: resp.StatusCode, Endpoint: s.tokenURL, Body: body}
	}

	var tok oauth2.Token
	if err := json.Unmarshal(body, &tok); err != nil {
		return fmt.Errorf("decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return &domain.ResponseError{Kind: domain.KindOther, StatusCode: resp.StatusCode, Endpoint: s.tokenURL, Body: body}
	}

	if tok.RefreshToken != "" {
		s.refreshToken = tok.RefreshToken
	}
	tok.Expiry = s.now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	s.token = &tok

	s.logger.Debugf("Renewed access token, expires at %s", tok.Expiry.Format(time.RFC3339))
	return nil
}
