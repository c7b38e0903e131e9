package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/sagarc03/s3put"
	"github.com/sagarc03/s3put/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// UploadResult describes one finished or planned upload.
type UploadResult struct {
	ID          string `json:"id"`
	Source      string `json:"source"`
	Bucket      string `json:"bucket"`
	Key         string `json:"key"`
	URL         string `json:"url"`
	Size        int64  `json:"size_bytes"`
	ContentType string `json:"content_type"`
	ACL         string `json:"acl"`
}

// SignedRequest is a signed request that was built but not sent.
type SignedRequest struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
}

// newSignedRequest captures req for display with the access key masked.
func newSignedRequest(req *http.Request) SignedRequest {
	headers := make(map[string]string, len(req.Header))
	for name := range req.Header {
		headers[name] = req.Header.Get(name)
	}
	headers["Authorization"] = redactAuthorization(headers["Authorization"])

	return SignedRequest{
		Method:  req.Method,
		URL:     req.URL.String(),
		Headers: headers,
	}
}

// redactAuthorization masks the access key id in an Authorization header.
func redactAuthorization(header string) string {
	auth, err := s3put.ParseAuthorization(header)
	if err != nil {
		return "(redacted)"
	}
	return strings.Replace(header, "Credential="+auth.AccessKeyID+"/", "Credential="+config.MaskSecret(auth.AccessKeyID)+"/", 1)
}

// Formatter formats results for output.
type Formatter interface {
	FormatUpload(w io.Writer, result UploadResult) error
	FormatDryRun(w io.Writer, result UploadResult, req SignedRequest) error
	FormatConfig(w io.Writer, cfg config.Config, path string) error
	FormatError(w io.Writer, err error) error
}

// NewFormatter returns the appropriate formatter based on flags.
func NewFormatter(jsonOutput, quiet bool) Formatter {
	if jsonOutput {
		return &JSONFormatter{}
	}
	return &HumanFormatter{Quiet: quiet}
}

// HumanFormatter outputs human-readable text.
type HumanFormatter struct {
	Quiet bool
}

// FormatUpload formats an upload result as human-readable text.
func (f *HumanFormatter) FormatUpload(w io.Writer, result UploadResult) error {
	if f.Quiet {
		return nil
	}
	_, _ = fmt.Fprintf(w, "Uploaded: %s -> s3://%s/%s (%s)\n", result.Source, result.Bucket, result.Key, formatSize(result.Size))
	_, _ = fmt.Fprintf(w, "  URL: %s\n", result.URL)
	return nil
}

// FormatDryRun prints the request that would have been sent.
func (f *HumanFormatter) FormatDryRun(w io.Writer, result UploadResult, req SignedRequest) error {
	_, _ = fmt.Fprintf(w, "%s %s\n", req.Method, req.URL)

	names := make([]string, 0, len(req.Headers))
	for name := range req.Headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		_, _ = fmt.Fprintf(w, "%s: %s\n", name, req.Headers[name])
	}

	if !f.Quiet {
		_, _ = fmt.Fprintf(w, "\nDry run: %s (%s) not uploaded\n", result.Source, formatSize(result.Size))
	}
	return nil
}

// FormatConfig formats the effective configuration as human-readable text.
func (f *HumanFormatter) FormatConfig(w io.Writer, cfg config.Config, path string) error {
	if path != "" {
		_, _ = fmt.Fprintf(w, "Config file:  %s\n", path)
	}
	_, _ = fmt.Fprintf(w, "Endpoint:     %s\n", cfg.S3.Endpoint)
	_, _ = fmt.Fprintf(w, "Region:       %s\n", orNotSet(cfg.S3.Region))
	_, _ = fmt.Fprintf(w, "Bucket:       %s\n", orNotSet(cfg.S3.Bucket))
	_, _ = fmt.Fprintf(w, "Access Key:   %s\n", orNotSet(cfg.S3.AccessKey))
	_, _ = fmt.Fprintf(w, "Secret Key:   %s\n", orNotSet(cfg.S3.SecretKey))
	_, _ = fmt.Fprintf(w, "ACL:          %s\n", cfg.Upload.ACL)
	_, _ = fmt.Fprintf(w, "Content-Type: %s\n", cfg.Upload.ContentType)
	_, _ = fmt.Fprintf(w, "Timeout:      %s\n", cfg.HTTP.Timeout)
	return nil
}

// FormatError formats an error as human-readable text.
// Rejected uploads show the S3 error code and request id on separate lines.
func (f *HumanFormatter) FormatError(w io.Writer, err error) error {
	_, _ = fmt.Fprintf(w, "Error: %v\n", err)

	var statusErr *s3put.StatusError
	if errors.As(err, &statusErr) && statusErr.RequestID != "" {
		_, _ = fmt.Fprintf(w, "  Request ID: %s\n", statusErr.RequestID)
	}
	return nil
}

// JSONFormatter outputs JSON.
type JSONFormatter struct{}

// FormatUpload formats an upload result as JSON.
func (f *JSONFormatter) FormatUpload(w io.Writer, result UploadResult) error {
	return writeJSON(w, result)
}

// FormatDryRun formats a dry run as JSON.
func (f *JSONFormatter) FormatDryRun(w io.Writer, result UploadResult, req SignedRequest) error {
	output := struct {
		DryRun  bool          `json:"dry_run"`
		Upload  UploadResult  `json:"upload"`
		Request SignedRequest `json:"request"`
	}{
		DryRun:  true,
		Upload:  result,
		Request: req,
	}
	return writeJSON(w, output)
}

// FormatConfig formats the effective configuration as JSON.
func (f *JSONFormatter) FormatConfig(w io.Writer, cfg config.Config, path string) error {
	output := struct {
		Path        string `json:"path,omitempty"`
		Endpoint    string `json:"endpoint"`
		Region      string `json:"region,omitempty"`
		Bucket      string `json:"bucket,omitempty"`
		AccessKey   string `json:"access_key,omitempty"`
		SecretKey   string `json:"secret_key,omitempty"`
		AllowHTTP   bool   `json:"allow_http"`
		ACL         string `json:"acl"`
		ContentType string `json:"content_type"`
		Timeout     string `json:"timeout"`
	}{
		Path:        path,
		Endpoint:    cfg.S3.Endpoint,
		Region:      cfg.S3.Region,
		Bucket:      cfg.S3.Bucket,
		AccessKey:   cfg.S3.AccessKey,
		SecretKey:   cfg.S3.SecretKey,
		AllowHTTP:   cfg.S3.AllowHTTP,
		ACL:         cfg.Upload.ACL,
		ContentType: cfg.Upload.ContentType,
		Timeout:     cfg.HTTP.Timeout.String(),
	}
	return writeJSON(w, output)
}

// FormatError formats an error as JSON.
func (f *JSONFormatter) FormatError(w io.Writer, err error) error {
	output := struct {
		Error     string `json:"error"`
		Status    int    `json:"status,omitempty"`
		Code      string `json:"code,omitempty"`
		RequestID string `json:"request_id,omitempty"`
	}{
		Error: err.Error(),
	}

	var statusErr *s3put.StatusError
	if errors.As(err, &statusErr) {
		output.Status = statusErr.StatusCode
		output.Code = statusErr.Code
		output.RequestID = statusErr.RequestID
	}
	return writeJSON(w, output)
}

// writeJSON writes a value as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func orNotSet(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}

// formatSize formats bytes as human-readable size.
func formatSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
		TB = GB * 1024
	)

	switch {
	case bytes >= TB:
		return fmt.Sprintf("%.1f TB", float64(bytes)/TB)
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
