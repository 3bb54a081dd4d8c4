package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kimhsiao/jour/internal/settings"
)

// discoveryDocument is the subset of the OpenID Connect discovery document
// the sign-in flow needs.
type discoveryDocument struct {
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
}

type tokenResponse struct {
	IDToken string `json:"id_token"`
}

const stateCookieName = "jour-oauth-state"

func newState() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

var oidcHTTPClient = &http.Client{Timeout: 10 * time.Second}

func fetchDiscovery(ctx context.Context, discoveryURL string) (*discoveryDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, discoveryURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build discovery request: %w", err)
	}
	resp, err := oidcHTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch discovery document: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discovery document returned status %d", resp.StatusCode)
	}

	var doc discoveryDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse discovery document: %w", err)
	}
	if doc.AuthorizationEndpoint == "" || doc.TokenEndpoint == "" {
		return nil, fmt.Errorf("discovery document is missing endpoints")
	}
	return &doc, nil
}

// redirectURI is where the provider sends the user back after sign-in.
func redirectURI(cfg *settings.Config, r *http.Request) string {
	scheme := cfg.Scheme
	if scheme == "" {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s/authorize", scheme, r.Host)
}

// handleSignIn redirects the browser to the provider's authorization
// endpoint.
func (s *server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.Load(r.Context())
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	if cfg.OpenIDClientID == "" || cfg.OpenIDDiscoveryDocument == "" {
		s.render(w, r, "signin", "Sign in", map[string]interface{}{
			"Configured": false,
		})
		return
	}

	doc, err := fetchDiscovery(r.Context(), cfg.OpenIDDiscoveryDocument)
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	state, err := newState()
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", cfg.OpenIDClientID)
	q.Set("redirect_uri", redirectURI(cfg, r))
	q.Set("scope", "openid email")
	q.Set("state", state)
	http.Redirect(w, r, doc.AuthorizationEndpoint+"?"+q.Encode(), http.StatusFound)
}

// handleAuthorize finishes the code flow: it exchanges the code for an id
// token, reads the email claim and starts a session when it matches the
// configured owner. The id token arrives over the direct TLS exchange with
// the token endpoint, so its signature is not re-verified here.
func (s *server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		s.clientError(w, http.StatusBadRequest, "missing authorization code")
		return
	}

	// The state must round-trip through the provider unchanged.
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		s.clientError(w, http.StatusBadRequest, "state mismatch")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookieName, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})

	cfg, err := s.store.Load(r.Context())
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	doc, err := fetchDiscovery(r.Context(), cfg.OpenIDDiscoveryDocument)
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	email, err := exchangeCode(r.Context(), doc, cfg, code, redirectURI(cfg, r))
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	if email == "" || email != cfg.UserEmail {
		s.log.Warn("sign-in rejected", map[string]interface{}{"email": email})
		s.clientError(w, http.StatusForbidden, "this journal belongs to someone else")
		return
	}

	if err := s.setSession(w, r, email); err != nil {
		s.serverError(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

// exchangeCode trades an authorization code for the email claim of the id
// token.
func exchangeCode(ctx context.Context, doc *discoveryDocument, cfg *settings.Config, code, redirect string) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", redirect)
	form.Set("client_id", cfg.OpenIDClientID)
	form.Set("client_secret", cfg.OpenIDClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, doc.TokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := oidcHTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("exchange authorization code: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var tokens tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return "", fmt.Errorf("parse token response: %w", err)
	}
	if tokens.IDToken == "" {
		return "", fmt.Errorf("token response carried no id_token")
	}

	return emailClaim(tokens.IDToken)
}

// emailClaim decodes the id token payload without signature verification.
func emailClaim(idToken string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return "", fmt.Errorf("decode id token: %w", err)
	}
	email, _ := claims["email"].(string)
	return email, nil
}
