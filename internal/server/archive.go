// archive.go - Optional mirror of stored evidence to S3-compatible storage.
//
// The local filesystem stays the source of truth; the archiver re-opens
// the stored file after ingestion finishes and streams it to the bucket
// in the background. Failures are logged and never surfaced to uploaders.
package server

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Archiver mirrors artifacts into an object-storage bucket.
type Archiver struct {
	client *minio.Client
	bucket string
}

func normaliseEndpoint(raw string) (endpoint string, secure bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("empty endpoint")
	}

	// Accept either "minio:9000" or "http://minio:9000" / "https://minio:9000".
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", false, err
		}
		if u.Host == "" {
			return "", false, fmt.Errorf("invalid endpoint")
		}
		if u.Path != "" && u.Path != "/" {
			return "", false, fmt.Errorf("endpoint must not contain a path")
		}
		secure = (u.Scheme == "https")
		return u.Host, secure, nil
	}

	// No scheme provided, treat as host:port (insecure by default for local MinIO).
	return raw, false, nil
}

// NewArchiverFromEnv builds an Archiver when all EVD_S3_* settings are
// present. Returns (nil, nil) when archiving is not configured at all;
// a partially configured archive is an error.
func NewArchiverFromEnv() (*Archiver, error) {
	rawEndpoint := os.Getenv("EVD_S3_ENDPOINT")
	accessKey := os.Getenv("EVD_S3_ACCESS_KEY")
	secretKey := os.Getenv("EVD_S3_SECRET_KEY")
	bucket := os.Getenv("EVD_BUCKET")

	if rawEndpoint == "" && accessKey == "" && secretKey == "" && bucket == "" {
		return nil, nil
	}
	if rawEndpoint == "" || accessKey == "" || secretKey == "" || bucket == "" {
		return nil, fmt.Errorf("archive configuration incomplete")
	}

	endpoint, secure, err := normaliseEndpoint(rawEndpoint)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, err
	}

	// Sanity check: bucket must exist.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("archive bucket does not exist: %s", bucket)
	}

	return &Archiver{client: client, bucket: bucket}, nil
}

// Archive streams the artifact's stored file to the bucket under its
// stored name.
func (a *Archiver) Archive(ctx context.Context, artifact Artifact) error {
	f, err := os.Open(artifact.StoredPath)
	if err != nil {
		return fmt.Errorf("archive: open %s: %w", artifact.StoredName, err)
	}
	defer func() { _ = f.Close() }()

	_, err = a.client.PutObject(
		ctx,
		a.bucket,
		artifact.StoredName,
		f,
		artifact.Size,
		minio.PutObjectOptions{ContentType: "application/octet-stream"},
	)
	if err != nil {
		return fmt.Errorf("archive: put %s: %w", artifact.StoredName, err)
	}
	return nil
}

// ArchiveAsync mirrors the artifact in a background goroutine. Ingestion
// never waits on the bucket.
func (a *Archiver) ArchiveAsync(artifact Artifact) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		if err := a.Archive(ctx, artifact); err != nil {
			Error("evidence archive failed", map[string]any{
				"stored_name": artifact.StoredName,
			}, err)
			return
		}
		Info("evidence archived", map[string]any{
			"stored_name": artifact.StoredName,
			"bucket":      a.bucket,
			"size_bytes":  artifact.Size,
		})
	}()
}

// Ping checks bucket reachability, used by the health endpoint.
func (a *Archiver) Ping(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("bucket missing: %s", a.bucket)
	}
	return nil
}
