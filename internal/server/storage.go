// storage.go - Evidence storage on the local filesystem.
//
// Stored names are "<unix-millis>_<sanitized original name>" so that
// concurrent uploads of identically named files cannot collide, and the
// destination path always resolves inside the configured root.
package server

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"
)

// Artifact describes one stored upload.
type Artifact struct {
	OriginalName string
	StoredName   string
	StoredPath   string // absolute path under the storage root
	Size         int64
}

// EvidenceStore owns the upload directory. Dir is the configured
// (possibly relative) path reported back to clients; the absolute root
// is resolved once at construction.
type EvidenceStore struct {
	Dir  string
	root string
}

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// SafeFileName replaces every character outside [A-Za-z0-9._-] with an
// underscore. Empty names fall back to "evidence".
func SafeFileName(name string) string {
	if name == "" {
		return "evidence"
	}
	return unsafeNameChars.ReplaceAllString(name, "_")
}

// NewEvidenceStore resolves dir against the working directory.
func NewEvidenceStore(dir string) (*EvidenceStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage: empty upload directory")
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve %q: %w", dir, err)
	}
	return &EvidenceStore{Dir: dir, root: root}, nil
}

// Root returns the absolute storage root.
func (es *EvidenceStore) Root() string {
	return es.root
}

// EnsureRoot creates the storage root if absent. Called before any bytes
// are accepted; failure aborts ingestion.
func (es *EvidenceStore) EnsureRoot() error {
	return os.MkdirAll(es.root, 0o750)
}

// storedName composes the collision-free on-disk name for originalName.
func (es *EvidenceStore) storedName(originalName string) string {
	millis := strconv.FormatInt(time.Now().UnixMilli(), 10)
	return millis + "_" + SafeFileName(originalName)
}

// Save streams src to a freshly named destination file. The file handle is
// closed on every exit path. A partially written file stays on disk when
// the copy fails mid-stream; nothing cleans it up.
func (es *EvidenceStore) Save(originalName string, src io.Reader) (Artifact, error) {
	name := es.storedName(originalName)
	path := filepath.Join(es.root, name)

	dst, err := os.Create(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("storage: create destination: %w", err)
	}

	n, copyErr := io.Copy(dst, src)
	closeErr := dst.Close()

	if copyErr != nil {
		return Artifact{}, fmt.Errorf("storage: write stream: %w", copyErr)
	}
	if closeErr != nil {
		return Artifact{}, fmt.Errorf("storage: close destination: %w", closeErr)
	}

	return Artifact{
		OriginalName: originalName,
		StoredName:   name,
		StoredPath:   path,
		Size:         n,
	}, nil
}
