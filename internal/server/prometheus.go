// prometheus.go - Prometheus metrics exporter
package server

import (
	"fmt"
	"net/http"
	"strings"
)

// PrometheusExporter converts internal metrics to Prometheus text format.
type PrometheusExporter struct {
	version string
}

// NewPrometheusExporter creates a new Prometheus exporter
func NewPrometheusExporter(version string) *PrometheusExporter {
	if version == "" {
		version = "dev"
	}
	return &PrometheusExporter{version: version}
}

// Handler returns an HTTP handler for the /metrics endpoint
func (p *PrometheusExporter) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		snapshot := GetMetrics().Snapshot()

		var output strings.Builder

		output.WriteString("# HELP evd_info Application version info\n")
		output.WriteString("# TYPE evd_info gauge\n")
		output.WriteString(fmt.Sprintf("evd_info{version=%q} 1\n\n", p.version))

		output.WriteString("# HELP evd_requests_total Total number of HTTP requests\n")
		output.WriteString("# TYPE evd_requests_total counter\n")
		output.WriteString(fmt.Sprintf("evd_requests_total %d\n\n", snapshot.RequestsTotal))

		output.WriteString("# HELP evd_request_errors_4xx Total number of 4xx responses\n")
		output.WriteString("# TYPE evd_request_errors_4xx counter\n")
		output.WriteString(fmt.Sprintf("evd_request_errors_4xx %d\n\n", snapshot.RequestErrors4xx))

		output.WriteString("# HELP evd_request_errors_5xx Total number of 5xx responses\n")
		output.WriteString("# TYPE evd_request_errors_5xx counter\n")
		output.WriteString(fmt.Sprintf("evd_request_errors_5xx %d\n\n", snapshot.RequestErrors5xx))

		output.WriteString("# HELP evd_uploads_total Total number of stored evidence files\n")
		output.WriteString("# TYPE evd_uploads_total counter\n")
		output.WriteString(fmt.Sprintf("evd_uploads_total %d\n\n", snapshot.UploadsTotal))

		output.WriteString("# HELP evd_upload_bytes_total Total bytes written to evidence storage\n")
		output.WriteString("# TYPE evd_upload_bytes_total counter\n")
		output.WriteString(fmt.Sprintf("evd_upload_bytes_total %d\n\n", snapshot.UploadBytesTotal))

		output.WriteString("# HELP evd_upload_errors_total Total number of failed uploads\n")
		output.WriteString("# TYPE evd_upload_errors_total counter\n")
		output.WriteString(fmt.Sprintf("evd_upload_errors_total %d\n\n", snapshot.UploadErrorsTotal))

		output.WriteString("# HELP evd_upload_avg_duration_ms Average upload duration in milliseconds\n")
		output.WriteString("# TYPE evd_upload_avg_duration_ms gauge\n")
		output.WriteString(fmt.Sprintf("evd_upload_avg_duration_ms %f\n\n", snapshot.UploadAvgDurationMs))

		output.WriteString("# HELP evd_login_attempts_total Total number of login attempts\n")
		output.WriteString("# TYPE evd_login_attempts_total counter\n")
		output.WriteString(fmt.Sprintf("evd_login_attempts_total %d\n\n", snapshot.LoginAttemptsTotal))

		output.WriteString("# HELP evd_login_failures_total Total number of rejected logins\n")
		output.WriteString("# TYPE evd_login_failures_total counter\n")
		output.WriteString(fmt.Sprintf("evd_login_failures_total %d\n\n", snapshot.LoginFailuresTotal))

		output.WriteString("# HELP evd_active_sessions Current number of outstanding sessions\n")
		output.WriteString("# TYPE evd_active_sessions gauge\n")
		output.WriteString(fmt.Sprintf("evd_active_sessions %d\n", snapshot.ActiveSessionsTotal))

		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(output.String()))
	}
}
