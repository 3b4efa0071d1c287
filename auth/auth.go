// Package auth resolves the caller identity for gateway requests.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Identity is the authenticated principal, typically an email address.
type Identity string

// ErrNoSession indicates that no caller identity could be resolved from
// the request.
var ErrNoSession = errors.New("no session")

// Resolver resolves a caller identity from an incoming request.
type Resolver interface {
	Resolve(r *http.Request) (Identity, error)
}

// TokenResolver resolves identity from a static bearer token. It backs
// local development and tests.
type TokenResolver struct {
	Token string
	User  Identity
}

// NewTokenResolver creates a token resolver. An empty token disables it.
func NewTokenResolver(token, user string) *TokenResolver {
	return &TokenResolver{Token: token, User: Identity(user)}
}

// Resolve checks the Authorization bearer token against the configured one.
func (t *TokenResolver) Resolve(r *http.Request) (Identity, error) {
	if t.Token == "" {
		return "", ErrNoSession
	}
	bearer, err := extractBearer(r)
	if err != nil {
		return "", err
	}
	if bearer != t.Token {
		return "", ErrNoSession
	}
	return t.User, nil
}

// SessionResolver resolves identity by forwarding the request's cookies to
// an external identity provider's session endpoint. The endpoint is
// expected to return {"user": {"email": "..."}} for a live session.
type SessionResolver struct {
	sessionURL string
	httpClient *http.Client
}

// NewSessionResolver creates a session resolver for the given endpoint.
func NewSessionResolver(sessionURL string, timeout time.Duration) *SessionResolver {
	return &SessionResolver{
		sessionURL: sessionURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type sessionPayload struct {
	User struct {
		Email string `json:"email"`
	} `json:"user"`
}

// Resolve looks up the ambient session for the request.
func (s *SessionResolver) Resolve(r *http.Request) (Identity, error) {
	if s.sessionURL == "" {
		return "", ErrNoSession
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, s.sessionURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create session request: %w", err)
	}
	if cookie := r.Header.Get("Cookie"); cookie != "" {
		req.Header.Set("Cookie", cookie)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to look up session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", ErrNoSession
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read session response: %w", err)
	}

	var payload sessionPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("failed to unmarshal session response: %w", err)
	}
	if payload.User.Email == "" {
		return "", ErrNoSession
	}

	return Identity(payload.User.Email), nil
}

// Chain tries each resolver in order and returns the first identity found.
type Chain []Resolver

// Resolve returns the first successfully resolved identity.
func (c Chain) Resolve(r *http.Request) (Identity, error) {
	for _, resolver := range c {
		id, err := resolver.Resolve(r)
		if err == nil {
			return id, nil
		}
	}
	return "", ErrNoSession
}

func extractBearer(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", ErrNoSession
	}
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", ErrNoSession
	}
	token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	if token == "" {
		return "", ErrNoSession
	}
	return token, nil
}
