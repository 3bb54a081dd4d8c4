package main

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	sessionCookieName = "jour-session"
	sessionTTL        = 30 * 24 * time.Hour
)

// signSession produces "email|expiresUnix|hmac" signed with the stored
// secret key.
func signSession(email string, expires time.Time, key []byte) string {
	payload := fmt.Sprintf("%s|%d", email, expires.Unix())
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(payload))
	return payload + "|" + hex.EncodeToString(mac.Sum(nil))
}

// verifySession checks the signature and expiry of a session value and
// returns the email it was issued for, or "".
func verifySession(value string, now time.Time, key []byte) string {
	parts := strings.Split(value, "|")
	if len(parts) != 3 {
		return ""
	}
	email, expiresRaw, sig := parts[0], parts[1], parts[2]

	expiresUnix, err := strconv.ParseInt(expiresRaw, 10, 64)
	if err != nil {
		return ""
	}
	expires := time.Unix(expiresUnix, 0)
	if now.After(expires) {
		return ""
	}

	want := signSession(email, expires, key)
	if !hmac.Equal([]byte(value), []byte(want)) {
		return ""
	}
	return email
}

// setSession issues the signed session cookie for an email.
func (s *server) setSession(w http.ResponseWriter, r *http.Request, email string) error {
	key, err := s.store.SecretKey(r.Context())
	if err != nil {
		return err
	}
	value := signSession(email, time.Now().Add(sessionTTL), key)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    base64.URLEncoding.EncodeToString([]byte(value)),
		Path:     "/",
		MaxAge:   int(sessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// sessionEmail returns the verified email from the request's session cookie,
// or "" when there is no valid session.
func (s *server) sessionEmail(r *http.Request) string {
	c, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	raw, err := base64.URLEncoding.DecodeString(c.Value)
	if err != nil {
		return ""
	}
	key, err := s.store.SecretKey(r.Context())
	if err != nil {
		return ""
	}
	return verifySession(string(raw), time.Now(), key)
}

// requireSession gates a handler behind sign-in. Sign-in is only enforced
// once OpenID and the owner's email address are configured; a fresh install
// stays open so it can be configured at all.
func (s *server) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg, err := s.store.Load(r.Context())
		if err != nil {
			s.serverError(w, r, err)
			return
		}
		if cfg.OpenIDClientID == "" || cfg.UserEmail == "" {
			next(w, r)
			return
		}
		if s.sessionEmail(r) != cfg.UserEmail {
			http.Redirect(w, r, "/sign-in", http.StatusFound)
			return
		}
		next(w, r)
	}
}

func (s *server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	http.Redirect(w, r, "/sign-in", http.StatusFound)
}
