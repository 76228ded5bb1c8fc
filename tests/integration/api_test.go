//go:build integration
// +build integration

package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"evidence-drop/internal/server"
)

const (
	testUser   = "said"
	testPass   = "secreto"
	cookieName = "evd_session"
)

func newTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()

	uploadDir := t.TempDir()
	srv, err := server.New(server.Config{
		Addr: ":0",
		Auth: server.AuthConfig{
			User:         testUser,
			Pass:         testPass,
			CookieName:   cookieName,
			CookieSecret: "integration-secret-0123456789abcdef",
			SessionTTL:   time.Hour,
		},
		UploadDir: uploadDir,
	})
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, uploadDir
}

// noRedirectClient returns a client that surfaces redirects instead of
// following them, so the gate's 302s can be asserted directly.
func noRedirectClient() *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func postLogin(t *testing.T, client *http.Client, baseURL, user, pass string) *http.Response {
	t.Helper()

	form := url.Values{}
	form.Set("username", user)
	form.Set("password", pass)

	resp, err := client.Post(baseURL+"/login", "application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatalf("POST /login: %v", err)
	}
	return resp
}

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == cookieName {
			return c
		}
	}
	return nil
}

func TestLoginUploadLogoutWorkflow(t *testing.T) {
	ts, uploadDir := newTestServer(t)
	client := noRedirectClient()

	t.Run("login page is public", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/login")
		if err != nil {
			t.Fatalf("GET /login: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
	})

	t.Run("bad credentials rejected", func(t *testing.T) {
		resp := postLogin(t, client, ts.URL, testUser, "wrong")
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", resp.StatusCode)
		}
		body, _ := io.ReadAll(resp.Body)
		if !strings.Contains(string(body), "Invalid credentials") {
			t.Errorf("expected login view with error message")
		}
		if sessionCookie(resp) != nil {
			t.Errorf("no session cookie must be set on failed login")
		}
	})

	t.Run("gate redirects without a session", func(t *testing.T) {
		for _, path := range []string{"/home", "/evidencia"} {
			resp, err := client.Get(ts.URL + path)
			if err != nil {
				t.Fatalf("GET %s: %v", path, err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusFound {
				t.Fatalf("GET %s: expected 302, got %d", path, resp.StatusCode)
			}
			if loc := resp.Header.Get("Location"); loc != "/login" {
				t.Fatalf("GET %s: expected redirect to /login, got %q", path, loc)
			}
		}
	})

	// Login once and drive the authenticated flow with the cookie.
	resp := postLogin(t, client, ts.URL, testUser, testPass)
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected 303 on login, got %d", resp.StatusCode)
	}
	cookie := sessionCookie(resp)
	if cookie == nil {
		t.Fatalf("expected session cookie on successful login")
	}
	if !cookie.HttpOnly {
		t.Errorf("session cookie must be HttpOnly")
	}

	t.Run("home page greets the user", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, ts.URL+"/home", nil)
		req.AddCookie(cookie)
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("GET /home: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		body, _ := io.ReadAll(resp.Body)
		if !strings.Contains(string(body), testUser) {
			t.Errorf("expected the page to name the logged-in user")
		}
	})

	var savedAs string
	t.Run("authenticated upload lands on disk", func(t *testing.T) {
		var buf bytes.Buffer
		writer := multipart.NewWriter(&buf)
		part, err := writer.CreateFormFile("evidence", "informe final.pdf")
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		if _, err := part.Write([]byte("pdf bytes")); err != nil {
			t.Fatalf("writing part: %v", err)
		}
		writer.Close()

		req, _ := http.NewRequest(http.MethodPost, ts.URL+"/evidencia", &buf)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		req.AddCookie(cookie)

		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("POST /evidencia: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
		}

		var result struct {
			OK   bool `json:"ok"`
			File struct {
				OriginalName string `json:"originalName"`
				SavedAs      string `json:"savedAs"`
				StoredIn     string `json:"storedIn"`
			} `json:"file"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			t.Fatalf("decoding upload response: %v", err)
		}
		if !result.OK {
			t.Fatalf("expected ok:true")
		}
		if result.File.OriginalName != "informe final.pdf" {
			t.Errorf("originalName = %q", result.File.OriginalName)
		}
		savedAs = result.File.SavedAs

		entries, err := os.ReadDir(uploadDir)
		if err != nil {
			t.Fatalf("reading upload dir: %v", err)
		}
		if len(entries) != 1 || entries[0].Name() != savedAs {
			t.Fatalf("expected %q on disk, got %v", savedAs, entries)
		}
	})

	t.Run("upload without a session is gated", func(t *testing.T) {
		var buf bytes.Buffer
		writer := multipart.NewWriter(&buf)
		part, _ := writer.CreateFormFile("evidence", "sneaky.bin")
		part.Write([]byte("nope"))
		writer.Close()

		req, _ := http.NewRequest(http.MethodPost, ts.URL+"/evidencia", &buf)
		req.Header.Set("Content-Type", writer.FormDataContentType())

		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("POST /evidencia: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusFound {
			t.Fatalf("expected 302, got %d", resp.StatusCode)
		}
	})

	t.Run("operational endpoints", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/health")
		if err != nil {
			t.Fatalf("GET /health: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("health: expected 200, got %d", resp.StatusCode)
		}

		resp, err = client.Get(ts.URL + "/metrics")
		if err != nil {
			t.Fatalf("GET /metrics: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("metrics: expected 200, got %d", resp.StatusCode)
		}
		body, _ := io.ReadAll(resp.Body)
		if !strings.Contains(string(body), "evd_") {
			t.Errorf("expected exported metrics in the text exposition")
		}
	})

	t.Run("logout revokes the session", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, ts.URL+"/logout", nil)
		req.AddCookie(cookie)
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("GET /logout: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusSeeOther {
			t.Fatalf("expected 303, got %d", resp.StatusCode)
		}

		// The old cookie no longer opens the gate.
		req, _ = http.NewRequest(http.MethodGet, ts.URL+"/home", nil)
		req.AddCookie(cookie)
		resp, err = client.Do(req)
		if err != nil {
			t.Fatalf("GET /home after logout: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusFound {
			t.Fatalf("expected 302 after logout, got %d", resp.StatusCode)
		}
	})
}

func TestLoginRateLimited(t *testing.T) {
	ts, _ := newTestServer(t)
	client := noRedirectClient()

	// The login limiter allows 10 attempts per minute per IP; the 11th
	// must be rejected regardless of credentials.
	var last int
	for i := 0; i < 11; i++ {
		resp := postLogin(t, client, ts.URL, testUser, "wrong")
		resp.Body.Close()
		last = resp.StatusCode
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after exhausting the login budget, got %d", last)
	}
}
