// Package copernicus talks to the Copernicus Data Space Ecosystem: token
// lifecycle, catalog search, and product download.
package copernicus

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/couchcryptid/lst-ingest/internal/domain"
	"github.com/couchcryptid/lst-ingest/internal/observability"
)

type sessionState int

const (
	stateUnauthenticated sessionState = iota
	stateAuthenticated
	stateExpired
)

// Session manages the CDSE OAuth token pair and authenticates outgoing
// requests. Safe for concurrent use.
//
// Authentication is lazy: the first Do call performs the password grant. A
// 401 on an authenticated request marks the token expired and triggers one
// refresh-grant retry; a second 401 surfaces as AuthenticationError, fatal
// for the run.
type Session struct {
	identityURL string
	clientID    string
	username    string
	password    string
	httpClient   *http.Client
	streamClient *http.Client
	logger       *slog.Logger
	metrics      *observability.Metrics

	mu           sync.Mutex
	state        sessionState
	accessToken  string
	refreshToken string
}

// NewSession creates an unauthenticated session.
func NewSession(identityURL, clientID, username, password string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Session {
	return &Session{
		identityURL: identityURL,
		clientID:    clientID,
		username:    username,
		password:    password,
		httpClient: &http.Client{Timeout: timeout},
		// http.Client.Timeout caps the whole body read, which would kill
		// long archive streams. Streaming requests are bounded by their
		// request context instead.
		streamClient: &http.Client{},
		logger:       logger,
		metrics:      metrics,
	}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// Authenticate performs the password grant and stores the token pair.
func (s *Session) Authenticate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticateLocked(ctx)
}

func (s *Session) authenticateLocked(ctx context.Context) error {
	form := url.Values{
		"grant_type": {"password"},
		"client_id":  {s.clientID},
		"username":   {s.username},
		"password":   {s.password},
	}
	tok, err := s.tokenRequest(ctx, form)
	if err != nil {
		return err
	}
	s.accessToken = tok.AccessToken
	s.refreshToken = tok.RefreshToken
	s.state = stateAuthenticated
	s.logger.Info("authenticated with identity provider", "expires_in", tok.ExpiresIn)
	return nil
}

func (s *Session) refreshLocked(ctx context.Context) error {
	if s.refreshToken == "" {
		return s.authenticateLocked(ctx)
	}
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {s.clientID},
		"refresh_token": {s.refreshToken},
	}
	tok, err := s.tokenRequest(ctx, form)
	if err != nil {
		// The refresh token may itself have expired; one full
		// re-authentication before giving up.
		s.logger.Warn("token refresh failed, re-authenticating", "error", err)
		return s.authenticateLocked(ctx)
	}
	s.accessToken = tok.AccessToken
	s.refreshToken = tok.RefreshToken
	s.state = stateAuthenticated
	if s.metrics != nil {
		s.metrics.TokenRefreshes.Inc()
	}
	return nil
}

func (s *Session) tokenRequest(ctx context.Context, form url.Values) (tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.identityURL, strings.NewReader(form.Encode()))
	if err != nil {
		return tokenResponse{}, fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return tokenResponse{}, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return tokenResponse{}, &domain.AuthenticationError{Status: resp.StatusCode, Body: string(body)}
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return tokenResponse{}, fmt.Errorf("decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return tokenResponse{}, &domain.AuthenticationError{Status: resp.StatusCode, Body: "empty access token"}
	}
	return tok, nil
}

// Do sends an authenticated request, authenticating on first use and
// retrying once through a token refresh when the server answers 401.
// The caller owns the response body.
func (s *Session) Do(req *http.Request) (*http.Response, error) {
	return s.send(req, s.httpClient)
}

// DoStream is Do for large responses: the session's per-request timeout does
// not apply, so the body can stream for as long as the request context
// allows.
func (s *Session) DoStream(req *http.Request) (*http.Response, error) {
	return s.send(req, s.streamClient)
}

func (s *Session) send(req *http.Request, client *http.Client) (*http.Response, error) {
	s.mu.Lock()
	if s.state != stateAuthenticated {
		if err := s.authenticateLocked(req.Context()); err != nil {
			s.mu.Unlock()
			return nil, err
		}
	}
	token := s.accessToken
	s.mu.Unlock()

	resp, err := s.do(req, token, client)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	resp.Body.Close()

	s.mu.Lock()
	// Another goroutine may have refreshed while we held the stale token.
	if token == s.accessToken {
		s.state = stateExpired
		if err := s.refreshLocked(req.Context()); err != nil {
			s.mu.Unlock()
			return nil, err
		}
	}
	token = s.accessToken
	s.mu.Unlock()

	resp, err = s.do(req, token, client)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &domain.AuthenticationError{Status: resp.StatusCode, Body: string(body)}
	}
	return resp, nil
}

func (s *Session) do(req *http.Request, token string, client *http.Client) (*http.Response, error) {
	r := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("rewind request body: %w", err)
		}
		r.Body = body
	}
	r.Header.Set("Authorization", "Bearer "+token)
	return client.Do(r)
}
