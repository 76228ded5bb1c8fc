package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"
)

// uploadResult is the JSON body returned by POST /evidencia.
type uploadResult struct {
	OK      bool        `json:"ok"`
	Message string      `json:"message,omitempty"`
	File    *uploadFile `json:"file,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type uploadFile struct {
	OriginalName string `json:"originalName"`
	SavedAs      string `json:"savedAs"`
	StoredIn     string `json:"storedIn"`
}

// maxUploadBytes reads EVD_MAX_UPLOAD_BYTES and returns the maximum
// allowed upload size in bytes. Returns 0 if not set (no limit).
func maxUploadBytes() (int64, error) {
	raw := os.Getenv("EVD_MAX_UPLOAD_BYTES")
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

func writeUploadJSON(w http.ResponseWriter, status int, res uploadResult) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(res)
}

// uploadEvidenceHandler handles POST /evidencia for streaming uploads.
// It walks the multipart stream looking for the "evidence" field and
// copies the file body straight to the evidence store as bytes arrive;
// nothing is buffered in memory. Authentication is checked once by the
// gate before any bytes are read, and not re-checked mid-stream: a
// session expiring during a long upload does not abort it.
func (cfg Config) uploadEvidenceHandler(es *EvidenceStore, arch *Archiver) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		rid := RequestIDFromContext(r.Context())
		start := time.Now()

		limit, err := maxUploadBytes()
		if err != nil {
			http.Error(w, "server misconfigured", http.StatusInternalServerError)
			return
		}
		if limit > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
		}

		// The storage root must exist before any bytes are accepted.
		if err := es.EnsureRoot(); err != nil {
			log.Printf("rid=%s msg=%q err=%v", rid, "upload_dir_create_failed", err)
			GetMetrics().RecordUploadError()
			writeUploadJSON(w, http.StatusInternalServerError, uploadResult{
				OK:    false,
				Error: "storage unavailable",
			})
			return
		}

		mr, err := r.MultipartReader()
		if err != nil {
			writeUploadJSON(w, http.StatusBadRequest, uploadResult{
				OK:    false,
				Error: "bad multipart request",
			})
			return
		}

		var saved *Artifact
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				// Surface 413 when MaxBytesReader tripped mid-stream.
				var maxErr *http.MaxBytesError
				if errors.As(err, &maxErr) {
					GetMetrics().RecordUploadError()
					writeUploadJSON(w, http.StatusRequestEntityTooLarge, uploadResult{
						OK:    false,
						Error: "file too large",
					})
					return
				}
				writeUploadJSON(w, http.StatusBadRequest, uploadResult{
					OK:    false,
					Error: "bad multipart request",
				})
				return
			}

			if part.FormName() != "evidence" || part.FileName() == "" {
				_ = part.Close()
				continue
			}

			artifact, err := es.Save(part.FileName(), part)
			_ = part.Close()
			if err != nil {
				var maxErr *http.MaxBytesError
				if errors.As(err, &maxErr) {
					GetMetrics().RecordUploadError()
					writeUploadJSON(w, http.StatusRequestEntityTooLarge, uploadResult{
						OK:    false,
						Error: "file too large",
					})
					return
				}
				// A partially written file may remain on disk; it is
				// neither retried nor cleaned up here.
				log.Printf("rid=%s msg=%q err=%v", rid, "upload_write_failed", err)
				GetMetrics().RecordUploadError()
				writeUploadJSON(w, http.StatusInternalServerError, uploadResult{
					OK:    false,
					Error: "failed to store file",
				})
				return
			}
			saved = &artifact
			break
		}

		if saved == nil {
			writeUploadJSON(w, http.StatusBadRequest, uploadResult{
				OK:    false,
				Error: "no file received",
			})
			return
		}

		GetMetrics().RecordUpload(saved.Size, time.Since(start))
		log.Printf("rid=%s msg=%q user=%s original=%q saved_as=%q bytes=%d",
			rid, "evidence_stored", UsernameFromContext(r.Context()),
			saved.OriginalName, saved.StoredName, saved.Size)

		if arch != nil {
			arch.ArchiveAsync(*saved)
		}

		writeUploadJSON(w, http.StatusOK, uploadResult{
			OK:      true,
			Message: "evidence stored",
			File: &uploadFile{
				OriginalName: saved.OriginalName,
				SavedAs:      saved.StoredName,
				StoredIn:     es.Dir,
			},
		})
	})
}
