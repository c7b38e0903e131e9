package s3put

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DefaultTimeout is the default HTTP client timeout.
const DefaultTimeout = 30 * time.Second

// Doer sends a single HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Uploader performs signed single-object PUT uploads to one bucket.
// It is immutable after New and safe for concurrent use.
type Uploader struct {
	endpoint  *url.URL
	bucket    string
	signer    *Signer
	client    Doer
	logger    *slog.Logger
	now       func() time.Time
	allowHTTP bool
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithHTTPClient sets a custom transport.
func WithHTTPClient(client Doer) Option {
	return func(u *Uploader) {
		u.client = client
	}
}

// WithTimeout sets the timeout of the default *http.Client.
// It has no effect when the transport set by WithHTTPClient is not an *http.Client.
func WithTimeout(timeout time.Duration) Option {
	return func(u *Uploader) {
		if c, ok := u.client.(*http.Client); ok {
			c.Timeout = timeout
		}
	}
}

// WithLogger sets the logger used for debug output. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(u *Uploader) {
		u.logger = logger
	}
}

// WithClock overrides the time source used for signing.
func WithClock(now func() time.Time) Option {
	return func(u *Uploader) {
		u.now = now
	}
}

// WithInsecureHTTP allows plain http:// endpoints, e.g. a local MinIO.
func WithInsecureHTTP() Option {
	return func(u *Uploader) {
		u.allowHTTP = true
	}
}

// New creates a new Uploader with the given config and options.
// It returns a *ConfigError when the config is rejected.
func New(cfg Config, opts ...Option) (*Uploader, error) {
	u := &Uploader{
		bucket: cfg.Bucket,
		client: &http.Client{Timeout: DefaultTimeout},
		logger: slog.Default(),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(u)
	}

	endpoint, err := NormalizeEndpoint(cfg.Endpoint, u.allowHTTP)
	if err != nil {
		return nil, err
	}
	u.endpoint = endpoint

	switch {
	case cfg.Bucket == "":
		return nil, &ConfigError{Field: "bucket", Err: ErrBucketRequired}
	case cfg.AccessKeyID == "":
		return nil, &ConfigError{Field: "access_key_id", Err: ErrAccessKeyRequired}
	case cfg.SecretAccessKey == "":
		return nil, &ConfigError{Field: "secret_access_key", Err: ErrSecretKeyRequired}
	}

	region := cfg.Region
	if region == "" {
		region = RegionFromHost(endpoint.Host)
	}

	u.signer = NewSigner(Credentials{
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
	}, region, Service)

	return u, nil
}

// Endpoint returns the normalized endpoint origin, e.g. "https://s3.eu-west-2.amazonaws.com".
func (u *Uploader) Endpoint() string {
	return u.endpoint.String()
}

// Bucket returns the target bucket name.
func (u *Uploader) Bucket() string {
	return u.bucket
}

// Region returns the region used for signing.
func (u *Uploader) Region() string {
	return u.signer.Region()
}

// ObjectPath returns the escaped request path of key.
func (u *Uploader) ObjectPath(key string) string {
	return ObjectPath(u.bucket, key)
}

// ObjectURL returns the full request URL of key.
func (u *Uploader) ObjectURL(key string) string {
	return u.Endpoint() + u.ObjectPath(key)
}

// NewRequest builds the signed PUT request for in without sending it.
// Every call hashes the content and signs with the current time.
func (u *Uploader) NewRequest(ctx context.Context, in UploadInput) (*http.Request, error) {
	if in.Key == "" {
		return nil, ErrEmptyKey
	}
	in = in.withDefaults()

	path := u.ObjectPath(in.Key)
	payloadHash := PayloadHash(in.Content)
	contentLength := strconv.Itoa(len(in.Content))

	headers := http.Header{}
	headers.Set("X-Amz-Acl", in.ACL)
	headers.Set("X-Amz-Content-Sha256", payloadHash)
	headers.Set("Content-Length", contentLength)
	headers.Set("Content-Type", in.ContentType)

	sig := u.signer.Sign(SignRequest{
		Method:      http.MethodPut,
		Host:        u.endpoint.Host,
		Path:        path,
		Headers:     headers,
		PayloadHash: payloadHash,
	}, u.now())

	var body io.Reader = http.NoBody
	if len(in.Content) > 0 {
		body = bytes.NewReader(in.Content)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u.endpoint.String()+path, body)
	if err != nil {
		return nil, err
	}
	// Keep the escaped form; the signature covers it byte for byte.
	req.URL.RawPath = path
	req.Host = sig.Host
	req.ContentLength = int64(len(in.Content))

	req.Header.Set("Authorization", sig.Authorization)
	req.Header.Set("X-Amz-Date", sig.Date)
	req.Header.Set("Host", sig.Host)
	req.Header.Set("Content-Length", contentLength)
	req.Header.Set("Content-Type", in.ContentType)
	req.Header.Set("X-Amz-Acl", in.ACL)
	req.Header.Set("X-Amz-Content-Sha256", payloadHash)

	return req, nil
}

// Upload sends in as a single signed PUT.
//
// It returns nil only for a 200 response. Transport failures are returned as
// *TransportError and any other status as *StatusError. Nothing is retried.
func (u *Uploader) Upload(ctx context.Context, in UploadInput) error {
	req, err := u.NewRequest(ctx, in)
	if err != nil {
		return err
	}

	log := u.logger.With("bucket", u.bucket, "key", in.Key)
	log.DebugContext(ctx, "uploading object", "size", len(in.Content))

	resp, err := u.client.Do(req)
	if err != nil {
		log.DebugContext(ctx, "upload transport failure", "err", err)
		return &TransportError{Method: req.Method, URL: u.ObjectURL(in.Key), Err: err}
	}
	if resp.Body == nil {
		resp.Body = http.NoBody
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		serr := parseStatusError(resp)
		log.DebugContext(ctx, "upload rejected", "status", resp.StatusCode, "code", serr.Code)
		return serr
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	log.DebugContext(ctx, "upload complete", "status", resp.StatusCode)
	return nil
}
