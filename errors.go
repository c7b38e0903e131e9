package s3put

import (
	"encoding/xml"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// Configuration errors. They are always wrapped in a *ConfigError.
var (
	// ErrInvalidEndpoint is returned when the endpoint is not a bare origin.
	ErrInvalidEndpoint = errors.New("invalid endpoint")
	// ErrUnsupportedScheme is returned when the endpoint scheme is neither https nor http.
	ErrUnsupportedScheme = errors.New("unsupported endpoint scheme")
	// ErrInsecureEndpoint is returned for http:// endpoints unless WithInsecureHTTP is set.
	ErrInsecureEndpoint = errors.New("insecure endpoint")
	ErrBucketRequired    = errors.New("bucket is required")
	ErrAccessKeyRequired = errors.New("access key id is required")
	ErrSecretKeyRequired = errors.New("secret access key is required")
)

// ErrEmptyKey is returned by Upload when the object key is empty.
var ErrEmptyKey = errors.New("object key is required")

// ConfigError reports an uploader configuration that was rejected by New.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config: " + e.Field + ": " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// TransportError wraps a failure returned by the Doer.
// The underlying error is kept as-is so callers can match on it.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return "transport: " + e.Method + " " + e.URL + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatusError is returned when the store answers with anything but 200.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
	RequestID  string
}

func (e *StatusError) Error() string {
	var b strings.Builder
	b.WriteString("upload rejected: status code ")
	b.WriteString(strconv.Itoa(e.StatusCode))
	if e.Code != "" {
		b.WriteString(" (")
		b.WriteString(e.Code)
		b.WriteString(")")
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

// Is reports whether target matches this error.
// It matches if target is a *StatusError with the same StatusCode.
func (e *StatusError) Is(target error) bool {
	var t *StatusError
	if !errors.As(target, &t) {
		return false
	}
	return t.StatusCode == e.StatusCode
}

// Sentinel errors for common rejections.
// Use errors.Is() to check for these conditions.
var (
	ErrBadRequest = &StatusError{StatusCode: http.StatusBadRequest}
	ErrForbidden  = &StatusError{StatusCode: http.StatusForbidden}
	ErrNotFound   = &StatusError{StatusCode: http.StatusNotFound}
)

// maxErrorBody bounds how much of a rejection body is read.
const maxErrorBody = 64 << 10

// errorResponse is the S3 REST error document.
type errorResponse struct {
	XMLName   xml.Name `xml:"Error"`
	Code      string   `xml:"Code"`
	Message   string   `xml:"Message"`
	RequestID string   `xml:"RequestId"`
}

// parseStatusError builds a StatusError from a non-200 response.
// A body that is not an S3 error document is ignored.
func parseStatusError(resp *http.Response) *StatusError {
	serr := &StatusError{
		StatusCode: resp.StatusCode,
		RequestID:  resp.Header.Get("X-Amz-Request-Id"),
	}
	if resp.Body == nil {
		return serr
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(body) == 0 {
		return serr
	}

	var doc errorResponse
	if xml.Unmarshal(body, &doc) == nil {
		serr.Code = doc.Code
		serr.Message = doc.Message
		if doc.RequestID != "" {
			serr.RequestID = doc.RequestID
		}
	}
	return serr
}
