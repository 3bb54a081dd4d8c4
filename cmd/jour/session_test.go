package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kimhsiao/jour/internal/models"
)

func TestVerifySessionRoundTrip(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	now := time.Now()

	value := signSession("kim@example.net", now.Add(time.Hour), key)
	if got := verifySession(value, now, key); got != "kim@example.net" {
		t.Errorf("verifySession() = %q, want %q", got, "kim@example.net")
	}
}

func TestVerifySessionExpired(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	now := time.Now()

	value := signSession("kim@example.net", now.Add(-time.Minute), key)
	if got := verifySession(value, now, key); got != "" {
		t.Errorf("verifySession() = %q for an expired session, want empty", got)
	}
}

func TestVerifySessionTampered(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	now := time.Now()

	value := signSession("kim@example.net", now.Add(time.Hour), key)
	forged := strings.Replace(value, "kim@", "eve@", 1)
	if got := verifySession(forged, now, key); got != "" {
		t.Errorf("verifySession() = %q for a forged session, want empty", got)
	}
}

func TestVerifySessionGarbage(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	for _, value := range []string{"", "a|b", "a|b|c|d", "kim@example.net|notanumber|deadbeef"} {
		if got := verifySession(value, time.Now(), key); got != "" {
			t.Errorf("verifySession(%q) = %q, want empty", value, got)
		}
	}
}

func enableSignIn(t *testing.T, srv *server, discoveryURL string) {
	t.Helper()
	ctx := context.Background()
	if err := srv.store.SaveOpenID(ctx, "jour-client", "client-secret", discoveryURL); err != nil {
		t.Fatalf("SaveOpenID() error = %v", err)
	}
	if err := srv.store.SetPlain(ctx, models.SettingUserEmail, "kim@example.net"); err != nil {
		t.Fatalf("SetPlain() error = %v", err)
	}
}

func TestRequireSessionRedirectsWhenConfigured(t *testing.T) {
	srv, _, _ := newTestServer(t)
	enableSignIn(t, srv, "https://id.example.net/.well-known/openid-configuration")

	rr := get(t, srv, "/2024/03")
	if rr.Code != http.StatusFound {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusFound)
	}
	if loc := rr.Header().Get("Location"); loc != "/sign-in" {
		t.Errorf("Location = %q, want %q", loc, "/sign-in")
	}
}

func TestRequireSessionOpenWhenUnconfigured(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rr := get(t, srv, "/2024/03")
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
	}
}

// unsignedToken builds a JWT whose payload carries the email claim. The
// signature part is empty, which is all the unverified decode needs.
func unsignedToken(t *testing.T, email string) string {
	t.Helper()
	enc := func(v interface{}) string {
		raw, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal token part: %v", err)
		}
		return base64.RawURLEncoding.EncodeToString(raw)
	}
	header := enc(map[string]string{"alg": "none", "typ": "JWT"})
	payload := enc(map[string]string{"email": email})
	return header + "." + payload + "."
}

// fakeProvider serves the OpenID discovery document and token endpoint.
func fakeProvider(t *testing.T, email string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var origin string
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"authorization_endpoint":%q,"token_endpoint":%q}`,
			origin+"/authorize", origin+"/token")
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		fmt.Fprintf(w, `{"id_token":%q}`, unsignedToken(t, email))
	})
	server := httptest.NewServer(mux)
	origin = server.URL
	t.Cleanup(server.Close)
	return server
}

// authorize replays the provider callback with a matching state cookie.
func authorize(t *testing.T, srv *server, code string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/authorize?code="+code+"&state=teststate", nil)
	req.AddCookie(&http.Cookie{Name: stateCookieName, Value: "teststate"})
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	return rr
}

func TestAuthorizeSignsIn(t *testing.T) {
	srv, _, _ := newTestServer(t)
	provider := fakeProvider(t, "kim@example.net")
	enableSignIn(t, srv, provider.URL+"/.well-known/openid-configuration")

	rr := authorize(t, srv, "abc123")
	if rr.Code != http.StatusFound {
		t.Fatalf("status = %d, want %d: %s", rr.Code, http.StatusFound, rr.Body.String())
	}
	if loc := rr.Header().Get("Location"); loc != "/" {
		t.Errorf("Location = %q, want %q", loc, "/")
	}

	cookies := rr.Result().Cookies()
	var session *http.Cookie
	for _, c := range cookies {
		if c.Name == sessionCookieName {
			session = c
		}
	}
	if session == nil {
		t.Fatal("no session cookie issued")
	}

	req := httptest.NewRequest(http.MethodGet, "/2024/03", nil)
	req.AddCookie(session)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status with session = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestAuthorizeRejectsStranger(t *testing.T) {
	srv, _, _ := newTestServer(t)
	provider := fakeProvider(t, "eve@example.org")
	enableSignIn(t, srv, provider.URL+"/.well-known/openid-configuration")

	rr := authorize(t, srv, "abc123")
	if rr.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestAuthorizeStateMismatch(t *testing.T) {
	srv, _, _ := newTestServer(t)
	provider := fakeProvider(t, "kim@example.net")
	enableSignIn(t, srv, provider.URL+"/.well-known/openid-configuration")

	req := httptest.NewRequest(http.MethodGet, "/authorize?code=abc123&state=teststate", nil)
	req.AddCookie(&http.Cookie{Name: stateCookieName, Value: "different"})
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestAuthorizeMissingCode(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rr := get(t, srv, "/authorize")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestSignInUnconfiguredShowsHelp(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rr := get(t, srv, "/sign-in")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if !strings.Contains(rr.Body.String(), "Sign-in is not configured") {
		t.Error("page does not explain the missing configuration")
	}
}

func TestSignInRedirectsToProvider(t *testing.T) {
	srv, _, _ := newTestServer(t)
	provider := fakeProvider(t, "kim@example.net")
	enableSignIn(t, srv, provider.URL+"/.well-known/openid-configuration")

	rr := get(t, srv, "/sign-in")
	if rr.Code != http.StatusFound {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusFound)
	}
	loc := rr.Header().Get("Location")
	if !strings.HasPrefix(loc, provider.URL+"/authorize?") {
		t.Errorf("Location = %q, want provider authorization endpoint", loc)
	}
	if !strings.Contains(loc, "client_id=jour-client") {
		t.Errorf("Location = %q is missing the client id", loc)
	}
	if !strings.Contains(loc, "state=") {
		t.Errorf("Location = %q is missing the state parameter", loc)
	}
}
