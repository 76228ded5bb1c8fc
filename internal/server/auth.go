// auth.go - Credential check, session issuance, and the auth gate.
//
// The cookie carries "token.signature" where the signature is an
// HMAC-SHA256 of the opaque token under the configured cookie secret.
// The token itself only has meaning inside the in-memory SessionStore.
package server

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// AuthConfig holds the single configured credential pair and the cookie
// settings used by the login/logout handlers and the gate. Unit tests
// construct this directly.
type AuthConfig struct {
	User          string
	Pass          string // plain secret or a bcrypt hash
	CookieName    string
	CookieSecret  string
	SessionTTL    time.Duration
	SecureCookies bool
}

const usernameKey ctxKey = "username"

// UsernameFromContext returns the authenticated username if present.
func UsernameFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(usernameKey).(string); ok {
		return s
	}
	return ""
}

func (a AuthConfig) cookieName() string {
	if a.CookieName == "" {
		return "evd_session"
	}
	return a.CookieName
}

func (a AuthConfig) ttl() time.Duration {
	if a.SessionTTL <= 0 {
		return 8 * time.Hour
	}
	return a.SessionTTL
}

func signToken(secret []byte, token string) string {
	m := hmac.New(sha256.New, secret)
	_, _ = m.Write([]byte(token))
	return hex.EncodeToString(m.Sum(nil))
}

// sealToken returns the cookie value "token.signature".
func (a AuthConfig) sealToken(token string) string {
	return token + "." + signToken([]byte(a.CookieSecret), token)
}

// openToken verifies the signature and returns the bare token.
func (a AuthConfig) openToken(sealed string) (string, error) {
	parts := strings.Split(sealed, ".")
	if len(parts) != 2 {
		return "", errors.New("invalid cookie format")
	}
	token, sig := parts[0], parts[1]
	want := signToken([]byte(a.CookieSecret), token)
	if !hmac.Equal([]byte(sig), []byte(want)) {
		return "", errors.New("invalid signature")
	}
	return token, nil
}

// looksLikeBcrypt reports whether the configured password is a bcrypt
// hash rather than a plain secret.
func looksLikeBcrypt(s string) bool {
	if len(s) != 60 {
		return false
	}
	return strings.HasPrefix(s, "$2a$") ||
		strings.HasPrefix(s, "$2b$") ||
		strings.HasPrefix(s, "$2y$")
}

// checkCredentials compares the submitted pair against the configured one
// in constant structure: both comparisons always run.
func (a AuthConfig) checkCredentials(username, password string) bool {
	uHash := sha256.Sum256([]byte(username))
	wantU := sha256.Sum256([]byte(a.User))
	uOK := hmac.Equal(uHash[:], wantU[:])

	var pOK bool
	if looksLikeBcrypt(a.Pass) {
		pOK = bcrypt.CompareHashAndPassword([]byte(a.Pass), []byte(password)) == nil
	} else {
		pHash := sha256.Sum256([]byte(password))
		wantP := sha256.Sum256([]byte(a.Pass))
		pOK = hmac.Equal(pHash[:], wantP[:])
	}

	return uOK && pOK
}

// tokenFromRequest extracts and verifies the session token carried by the
// request cookie. Missing or tampered cookies yield an empty token.
func (a AuthConfig) tokenFromRequest(r *http.Request) string {
	c, err := r.Cookie(a.cookieName())
	if err != nil {
		return ""
	}
	token, err := a.openToken(c.Value)
	if err != nil {
		return ""
	}
	return token
}

// loginHandler handles POST /login with a form-encoded username/password.
// On success it creates a session, sets the signed cookie, and redirects
// to /home. On bad credentials it re-renders the login view with a 401.
func (a AuthConfig) loginHandler(store *SessionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		username := r.PostFormValue("username")
		password := r.PostFormValue("password")

		ok := a.checkCredentials(username, password)
		GetMetrics().RecordLoginAttempt(ok)
		if !ok {
			rid := RequestIDFromContext(r.Context())
			log.Printf("rid=%s msg=%q", rid, "login_rejected")
			renderLogin(w, http.StatusUnauthorized, "Invalid credentials.")
			return
		}

		token, expiresAt := store.Create(username)
		GetMetrics().SetActiveSessions(int64(store.Len()))

		http.SetCookie(w, &http.Cookie{
			Name:     a.cookieName(),
			Value:    a.sealToken(token),
			Path:     "/",
			Expires:  expiresAt,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			Secure:   a.SecureCookies,
		})

		http.Redirect(w, r, "/home", http.StatusSeeOther)
	}
}

// logoutHandler revokes whatever token the cookie carries and clears the
// cookie. It sits outside the gate: logging out with a stale, tampered,
// or absent cookie succeeds all the same.
func (a AuthConfig) logoutHandler(store *SessionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if token := a.tokenFromRequest(r); token != "" {
			store.Revoke(token)
			GetMetrics().SetActiveSessions(int64(store.Len()))
		}

		http.SetCookie(w, &http.Cookie{
			Name:     a.cookieName(),
			Value:    "",
			Path:     "/",
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			Secure:   a.SecureCookies,
		})

		http.Redirect(w, r, "/login", http.StatusSeeOther)
	}
}

// requireAuth admits the request only when the cookie carries a valid,
// unexpired session token. Failures redirect to /login without telling
// the caller why.
func (a AuthConfig) requireAuth(store *SessionStore, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := a.tokenFromRequest(r)
		sess, ok := store.Validate(token)
		if !ok {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}

		ctx := context.WithValue(r.Context(), usernameKey, sess.Username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
