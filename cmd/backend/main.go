package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"evidence-drop/internal/server"
)

func main() {
	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	// Fail fast on malformed or missing configuration.
	if err := server.ValidateAllConfiguration(); err != nil {
		log.Printf("service=backend msg=%q err=%v", "invalid_configuration", err)
		os.Exit(1)
	}
	server.WarnOnOptionalMissingConfig()

	addr := getenvDefault("EVD_ADDR", ":8080")

	build := server.BuildInfo{
		Version: getenvDefault("EVD_VERSION", "dev"),
		Commit:  getenvDefault("EVD_COMMIT", "unknown"),
	}

	ttlMinutes, err := strconv.Atoi(getenvDefault("EVD_SESSION_TTL_MIN", "480"))
	if err != nil {
		log.Printf("service=backend msg=%q err=%v", "bad_session_ttl", err)
		os.Exit(1)
	}

	auth := server.AuthConfig{
		User:          os.Getenv("EVD_AUTH_USER"),
		Pass:          os.Getenv("EVD_AUTH_PASS"),
		CookieName:    getenvDefault("EVD_COOKIE_NAME", "evd_session"),
		CookieSecret:  os.Getenv("EVD_COOKIE_SECRET"),
		SessionTTL:    time.Duration(ttlMinutes) * time.Minute,
		SecureCookies: getenvDefault("EVD_ENV", "production") == "production",
	}

	var sweep time.Duration
	if raw := os.Getenv("EVD_SESSION_SWEEP_INTERVAL"); raw != "" {
		sweep, err = time.ParseDuration(raw)
		if err != nil {
			log.Printf("service=backend msg=%q err=%v", "bad_sweep_interval", err)
			os.Exit(1)
		}
	}

	// Archiving is optional; a partially configured archive is fatal.
	archiver, err := server.NewArchiverFromEnv()
	if err != nil {
		log.Printf("service=backend msg=%q err=%v", "archive_setup_failed", err)
		os.Exit(1)
	}
	if archiver != nil {
		log.Printf("service=backend msg=%q", "evidence_archiving_enabled")
	}

	srv, err := server.New(server.Config{
		Addr:          addr,
		Build:         build,
		Auth:          auth,
		UploadDir:     getenvDefault("EVD_UPLOAD_DIR", "storage/evidences"),
		Archiver:      archiver,
		SweepInterval: sweep,
	})
	if err != nil {
		log.Printf("service=backend msg=%q err=%v", "server_setup_failed", err)
		os.Exit(1)
	}

	// Start the HTTP server in a background goroutine so we can listen
	// for OS signals while the server runs.
	errCh := make(chan error, 1)
	go func() {
		log.Printf("service=backend msg=%q addr=%s version=%s commit=%s",
			"starting", addr, build.Version, build.Commit)
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	// Block until either a shutdown signal is received or the server errors.
	select {
	case sig := <-sigCh:
		log.Printf("service=backend msg=%q signal=%s", "shutting_down", sig.String())
		// Give the server 5 seconds to finish in-flight requests.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("service=backend msg=%q err=%v", "shutdown_error", err)
			os.Exit(1)
		}
		log.Printf("service=backend msg=%q", "shutdown_complete")
	case err := <-errCh:
		if err != nil {
			log.Printf("service=backend msg=%q err=%v", "server_error", err)
			os.Exit(1)
		}
	}
}

// getenvDefault reads an environment variable and returns a default value if not set.
func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}
