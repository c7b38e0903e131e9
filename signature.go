package s3put

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

const (
	SignatureAlgorithm = "AWS4-HMAC-SHA256"
	DateTimeFormat     = "20060102T150405Z"
	DateFormat         = "20060102"

	scopeTerminator = "aws4_request"
)

// Signer computes AWS Signature Version 4 Authorization headers.
// A Signer holds no mutable state and is safe for concurrent use.
type Signer struct {
	creds   Credentials
	region  string
	service string
}

// NewSigner creates a new signer.
//
// Parameters:
//   - creds: static access key pair
//   - region: AWS region (e.g., "eu-west-2")
//   - service: AWS service name (e.g., "s3")
func NewSigner(creds Credentials, region, service string) *Signer {
	return &Signer{
		creds:   creds,
		region:  region,
		service: service,
	}
}

// Region returns the region used in the credential scope.
func (s *Signer) Region() string {
	return s.region
}

// Sign computes the SigV4 signature of req at time t.
//
// The signed header set is every header in req.Headers plus host,
// x-amz-date and x-amz-content-sha256, which are always derived from
// req.Host, t and req.PayloadHash. An empty PayloadHash is treated as the
// hash of an empty body. Sign is deterministic: the same request, credentials
// and time always produce the same signature.
//
// Example:
//
//	signer := s3put.NewSigner(creds, "eu-west-2", "s3")
//	sig := signer.Sign(s3put.SignRequest{
//	    Method:      http.MethodPut,
//	    Host:        "s3.eu-west-2.amazonaws.com",
//	    Path:        "/bucket/file.txt",
//	    PayloadHash: s3put.PayloadHash(body),
//	}, time.Now())
//	req.Header.Set("Authorization", sig.Authorization)
func (s *Signer) Sign(req SignRequest, t time.Time) Signature {
	t = t.UTC()
	amzDate := t.Format(DateTimeFormat)
	dateStamp := t.Format(DateFormat)

	payloadHash := req.PayloadHash
	if payloadHash == "" {
		payloadHash = EmptyPayloadHash
	}

	headers := canonicalHeaderMap(req.Headers)
	headers["host"] = req.Host
	headers["x-amz-date"] = amzDate
	headers["x-amz-content-sha256"] = payloadHash

	signedHeaders, canonicalHeaders := buildCanonicalHeaders(headers)
	canonicalRequest := buildCanonicalRequest(req.Method, req.Path, req.Query, canonicalHeaders, signedHeaders, payloadHash)

	credentialScope := fmt.Sprintf("%s/%s/%s/%s", dateStamp, s.region, s.service, scopeTerminator)
	stringToSign := buildStringToSign(amzDate, credentialScope, canonicalRequest)

	signingKey := deriveSigningKey(s.creds.SecretAccessKey, dateStamp, s.region, s.service)
	signature := hex.EncodeToString(hmacSHA256(signingKey, []byte(stringToSign)))

	return Signature{
		Authorization: fmt.Sprintf("%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
			SignatureAlgorithm, s.creds.AccessKeyID, credentialScope, signedHeaders, signature),
		Date:            amzDate,
		Host:            req.Host,
		SignedHeaders:   signedHeaders,
		Signature:       signature,
		CredentialScope: credentialScope,
	}
}

// AuthorizationHeader is a parsed SigV4 Authorization header value.
type AuthorizationHeader struct {
	AccessKeyID   string
	Date          string // credential scope date, YYYYMMDD
	Region        string
	Service       string
	SignedHeaders []string
	Signature     string
}

// ErrMalformedAuthorization is returned by ParseAuthorization.
var ErrMalformedAuthorization = errors.New("malformed authorization header")

// ParseAuthorization parses a header of the form
//
//	AWS4-HMAC-SHA256 Credential=AKID/20130524/us-east-1/s3/aws4_request, SignedHeaders=host;x-amz-date, Signature=abc
func ParseAuthorization(header string) (AuthorizationHeader, error) {
	var auth AuthorizationHeader

	algorithm, rest, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || algorithm != SignatureAlgorithm {
		return auth, fmt.Errorf("invalid algorithm: %w", ErrMalformedAuthorization)
	}

	for _, field := range strings.Split(rest, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(field), "=")
		if !found {
			return auth, fmt.Errorf("invalid field %q: %w", field, ErrMalformedAuthorization)
		}
		switch key {
		case "Credential":
			parts := strings.Split(value, "/")
			if len(parts) != 5 || parts[4] != scopeTerminator {
				return auth, fmt.Errorf("invalid credential format: %w", ErrMalformedAuthorization)
			}
			auth.AccessKeyID = parts[0]
			auth.Date = parts[1]
			auth.Region = parts[2]
			auth.Service = parts[3]
		case "SignedHeaders":
			auth.SignedHeaders = strings.Split(value, ";")
		case "Signature":
			auth.Signature = value
		}
	}

	if auth.AccessKeyID == "" || len(auth.SignedHeaders) == 0 || auth.Signature == "" {
		return auth, fmt.Errorf("missing components: %w", ErrMalformedAuthorization)
	}
	return auth, nil
}

func buildCanonicalRequest(method, path string, query url.Values, canonicalHeaders, signedHeaders, payloadHash string) string {
	if path == "" {
		path = "/"
	}
	return fmt.Sprintf("%s\n%s\n%s\n%s\n%s\n%s",
		method,
		path,
		buildCanonicalQueryString(query),
		canonicalHeaders,
		signedHeaders,
		payloadHash,
	)
}

// canonicalHeaderMap lowercases names, trims values and collapses inner
// whitespace. Multiple values of one header are joined with commas.
func canonicalHeaderMap(headers http.Header) map[string]string {
	m := make(map[string]string, len(headers)+3)
	for name, values := range headers {
		cleaned := make([]string, len(values))
		for i, v := range values {
			cleaned[i] = strings.Join(strings.Fields(v), " ")
		}
		m[strings.ToLower(name)] = strings.Join(cleaned, ",")
	}
	return m
}

// buildCanonicalHeaders returns the signed header list and the canonical
// headers block, sorted by name and formatted as "name:value\n".
func buildCanonicalHeaders(headers map[string]string) (string, string) {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	var result strings.Builder
	for _, name := range names {
		result.WriteString(name)
		result.WriteString(":")
		result.WriteString(headers[name])
		result.WriteString("\n")
	}
	return strings.Join(names, ";"), result.String()
}

func buildCanonicalQueryString(query url.Values) string {
	if len(query) == 0 {
		return ""
	}

	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var pairs []string
	for _, k := range keys {
		values := append([]string(nil), query[k]...)
		sort.Strings(values)
		for _, v := range values {
			pairs = append(pairs, EscapeSegment(k)+"="+EscapeSegment(v))
		}
	}
	return strings.Join(pairs, "&")
}

func buildStringToSign(amzDate, credentialScope, canonicalRequest string) string {
	return fmt.Sprintf("%s\n%s\n%s\n%s",
		SignatureAlgorithm,
		amzDate,
		credentialScope,
		sha256Hash(canonicalRequest),
	)
}

func deriveSigningKey(secretKey, dateStamp, region, service string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secretKey), []byte(dateStamp))
	kRegion := hmacSHA256(kDate, []byte(region))
	kService := hmacSHA256(kRegion, []byte(service))
	return hmacSHA256(kService, []byte(scopeTerminator))
}

func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

func sha256Hash(data string) string {
	return PayloadHash([]byte(data))
}
