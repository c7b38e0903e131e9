// Package s3test provides an in-process S3 endpoint for tests.
//
// The server accepts signed single-object PUT requests, verifies the SigV4
// Authorization header against a fixed set of access keys and keeps the
// uploaded objects in memory.
//
//	srv := s3test.NewServer(map[string]string{"AKIATEST": "secret"})
//	defer srv.Close()
//
//	uploader, _ := s3put.New(s3put.Config{
//	    Endpoint:        srv.Endpoint(),
//	    AccessKeyID:     "AKIATEST",
//	    SecretAccessKey: "secret",
//	    Bucket:          "mybucket",
//	}, s3put.WithHTTPClient(srv.Client()))
package s3test

import (
	"crypto/hmac"
	"crypto/md5" //nolint:gosec // ETag, not security
	"encoding/hex"
	"encoding/xml"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sagarc03/s3put"
)

// Object is an object stored by the server.
type Object struct {
	Bucket      string
	Key         string
	Body        []byte
	ContentType string
	ACL         string
	ETag        string
}

// Server is a fake S3 endpoint backed by httptest.NewTLSServer.
type Server struct {
	srv    *httptest.Server
	keys   map[string]string
	region string
	logger *slog.Logger
	plain  bool

	mu       sync.Mutex
	objects  map[string]Object
	requests int
	forced   *s3Error
}

// Option configures a Server.
type Option func(*Server)

// WithRegion sets the region the server expects in credential scopes.
// Defaults to s3put.DefaultRegion.
func WithRegion(region string) Option {
	return func(s *Server) {
		s.region = region
	}
}

// WithLogger sets the logger for rejected requests.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithPlainHTTP serves plain http instead of TLS, for clients that build
// their own *http.Client and are run with s3put.WithInsecureHTTP.
func WithPlainHTTP() Option {
	return func(s *Server) {
		s.plain = true
	}
}

// NewServer starts a TLS server that accepts requests signed with one of
// keys (access key to secret key).
func NewServer(keys map[string]string, opts ...Option) *Server {
	s := &Server{
		keys:    keys,
		region:  s3put.DefaultRegion,
		logger:  slog.Default(),
		objects: make(map[string]Object),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.plain {
		s.srv = httptest.NewServer(s.router())
	} else {
		s.srv = httptest.NewTLSServer(s.router())
	}
	return s
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Put("/{bucket}/*", s.handlePut)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, &s3Error{status: http.StatusNotFound, code: "NoSuchKey", message: "The specified key does not exist."})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, &s3Error{status: http.StatusMethodNotAllowed, code: "MethodNotAllowed", message: "The specified method is not allowed against this resource."})
	})
	return r
}

// Endpoint returns the origin of the server, https unless WithPlainHTTP is set.
func (s *Server) Endpoint() string {
	return s.srv.URL
}

// Client returns an *http.Client for the server. For TLS servers it trusts
// the server certificate.
func (s *Server) Client() *http.Client {
	return s.srv.Client()
}

// Close shuts the server down.
func (s *Server) Close() {
	s.srv.Close()
}

// Requests returns the number of PUT requests received, accepted or not.
func (s *Server) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

// RespondWith makes the next PUT fail with status and S3 error code,
// without verifying or storing anything.
func (s *Server) RespondWith(status int, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forced = &s3Error{status: status, code: code, message: "forced response"}
}

// Object returns the stored object for bucket and key.
func (s *Server) Object(bucket, key string) (Object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[bucket+"/"+key]
	return obj, ok
}

// Objects returns all stored objects sorted by bucket and key.
func (s *Server) Objects() []Object {
	s.mu.Lock()
	defer s.mu.Unlock()

	objs := make([]Object, 0, len(s.objects))
	for _, obj := range s.objects {
		objs = append(objs, obj)
	}
	sort.Slice(objs, func(i, j int) bool {
		if objs[i].Bucket != objs[j].Bucket {
			return objs[i].Bucket < objs[j].Bucket
		}
		return objs[i].Key < objs[j].Key
	})
	return objs
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests++
	forced := s.forced
	s.forced = nil
	s.mu.Unlock()

	if forced != nil {
		writeError(w, r, forced)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, r, &s3Error{status: http.StatusBadRequest, code: "IncompleteBody", message: err.Error()})
		return
	}

	rawPath := escapedPath(r)
	if serr := s.verify(r, rawPath, body); serr != nil {
		s.logger.Debug("rejected request", "path", rawPath, "code", serr.code, "reason", serr.message)
		writeError(w, r, serr)
		return
	}

	bucket, key, err := splitObjectPath(rawPath)
	if err != nil {
		writeError(w, r, &s3Error{status: http.StatusBadRequest, code: "InvalidURI", message: err.Error()})
		return
	}

	sum := md5.Sum(body) //nolint:gosec // ETag, not security
	obj := Object{
		Bucket:      bucket,
		Key:         key,
		Body:        body,
		ContentType: r.Header.Get("Content-Type"),
		ACL:         r.Header.Get("X-Amz-Acl"),
		ETag:        hex.EncodeToString(sum[:]),
	}

	s.mu.Lock()
	s.objects[bucket+"/"+key] = obj
	s.mu.Unlock()

	w.Header().Set("ETag", `"`+obj.ETag+`"`)
	w.WriteHeader(http.StatusOK)
}

// verify recomputes the SigV4 signature of r and compares it with the
// one in the Authorization header.
func (s *Server) verify(r *http.Request, rawPath string, body []byte) *s3Error {
	auth, err := s3put.ParseAuthorization(r.Header.Get("Authorization"))
	if err != nil {
		return &s3Error{status: http.StatusForbidden, code: "AccessDenied", message: err.Error()}
	}

	secret, found := s.keys[auth.AccessKeyID]
	if !found {
		return &s3Error{status: http.StatusForbidden, code: "InvalidAccessKeyId", message: "The AWS Access Key Id you provided does not exist in our records."}
	}

	if auth.Region != s.region || auth.Service != s3put.Service {
		return &s3Error{status: http.StatusBadRequest, code: "AuthorizationHeaderMalformed", message: "credential scope " + auth.Region + "/" + auth.Service + " is not valid here"}
	}

	requestTime, err := time.Parse(s3put.DateTimeFormat, r.Header.Get("X-Amz-Date"))
	if err != nil {
		return &s3Error{status: http.StatusForbidden, code: "AccessDenied", message: "invalid X-Amz-Date"}
	}
	if requestTime.Format(s3put.DateFormat) != auth.Date {
		return &s3Error{status: http.StatusForbidden, code: "SignatureDoesNotMatch", message: "credential date mismatch"}
	}

	payloadHash := r.Header.Get("X-Amz-Content-Sha256")
	if payloadHash != s3put.PayloadHash(body) {
		return &s3Error{status: http.StatusBadRequest, code: "XAmzContentSHA256Mismatch", message: "The provided 'x-amz-content-sha256' header does not match what was computed."}
	}

	headers := http.Header{}
	for _, name := range auth.SignedHeaders {
		switch name {
		case "host", "x-amz-date", "x-amz-content-sha256":
			continue
		case "content-length":
			headers.Set(name, strconv.FormatInt(r.ContentLength, 10))
			continue
		}
		values := r.Header.Values(name)
		if len(values) == 0 {
			return &s3Error{status: http.StatusForbidden, code: "SignatureDoesNotMatch", message: "signed header " + name + " is missing"}
		}
		headers[http.CanonicalHeaderKey(name)] = values
	}

	signer := s3put.NewSigner(s3put.Credentials{AccessKeyID: auth.AccessKeyID, SecretAccessKey: secret}, s.region, s3put.Service)
	expected := signer.Sign(s3put.SignRequest{
		Method:      r.Method,
		Host:        r.Host,
		Path:        rawPath,
		Query:       r.URL.Query(),
		Headers:     headers,
		PayloadHash: payloadHash,
	}, requestTime)

	if expected.SignedHeaders != strings.Join(auth.SignedHeaders, ";") ||
		!hmac.Equal([]byte(expected.Signature), []byte(auth.Signature)) {
		return &s3Error{status: http.StatusForbidden, code: "SignatureDoesNotMatch", message: "The request signature we calculated does not match the signature you provided."}
	}
	return nil
}

// escapedPath returns the path exactly as it was sent on the wire.
func escapedPath(r *http.Request) string {
	p, _, _ := strings.Cut(r.RequestURI, "?")
	if p == "" {
		return r.URL.EscapedPath()
	}
	return p
}

func splitObjectPath(rawPath string) (string, string, error) {
	rawBucket, rawKey, ok := strings.Cut(strings.TrimPrefix(rawPath, "/"), "/")
	if !ok || rawBucket == "" || rawKey == "" {
		return "", "", errors.New("path must be /{bucket}/{key}")
	}
	bucket, err := url.PathUnescape(rawBucket)
	if err != nil {
		return "", "", err
	}
	key, err := url.PathUnescape(rawKey)
	if err != nil {
		return "", "", err
	}
	return bucket, key, nil
}

type s3Error struct {
	status  int
	code    string
	message string
}

type errorResponse struct {
	XMLName   xml.Name `xml:"Error"`
	Code      string   `xml:"Code"`
	Message   string   `xml:"Message"`
	Resource  string   `xml:"Resource"`
	RequestID string   `xml:"RequestId"`
}

func writeError(w http.ResponseWriter, r *http.Request, e *s3Error) {
	requestID := uuid.NewString()
	w.Header().Set("Content-Type", "application/xml")
	w.Header().Set("X-Amz-Request-Id", requestID)
	w.WriteHeader(e.status)
	_, _ = io.WriteString(w, xml.Header)
	_ = xml.NewEncoder(w).Encode(errorResponse{
		Code:      e.code,
		Message:   e.message,
		Resource:  r.URL.Path,
		RequestID: requestID,
	})
}
