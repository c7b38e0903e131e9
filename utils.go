package s3put

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/url"
	"strings"
)

// EmptyPayloadHash is the hex SHA-256 digest of an empty byte sequence.
const EmptyPayloadHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

// PayloadHash returns the lowercase hex SHA-256 digest of content.
// A nil or empty content yields EmptyPayloadHash.
func PayloadHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// EscapeSegment percent-encodes every byte outside the RFC 3986 unreserved
// set (A-Z a-z 0-9 - . _ ~), including '/'. Hex digits are uppercase.
func EscapeSegment(s string) string {
	return escape(s, false)
}

// EscapeKey percent-encodes an object key like EscapeSegment but keeps '/'
// literal, so "a/b c" becomes "a/b%20c" and the store sees nested folders.
func EscapeKey(key string) string {
	return escape(key, true)
}

// ObjectPath returns "/" + escaped bucket + "/" + escaped key.
func ObjectPath(bucket, key string) string {
	return "/" + EscapeSegment(bucket) + "/" + EscapeKey(key)
}

func escape(s string, keepSlash bool) string {
	n := 0
	for i := 0; i < len(s); i++ {
		if !shouldKeep(s[i], keepSlash) {
			n++
		}
	}
	if n == 0 {
		return s
	}

	const hexUpper = "0123456789ABCDEF"
	buf := make([]byte, 0, len(s)+2*n)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if shouldKeep(c, keepSlash) {
			buf = append(buf, c)
			continue
		}
		buf = append(buf, '%', hexUpper[c>>4], hexUpper[c&0x0f])
	}
	return string(buf)
}

func shouldKeep(c byte, keepSlash bool) bool {
	switch {
	case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '.', c == '_', c == '~':
		return true
	case c == '/':
		return keepSlash
	default:
		return false
	}
}

// RegionFromHost derives the AWS region from an S3 endpoint host.
// It understands s3.<region>.amazonaws.com, s3-<region>.amazonaws.com and
// the dualstack form. Any other host, including the global
// s3.amazonaws.com, yields DefaultRegion.
func RegionFromHost(host string) string {
	host = strings.ToLower(host)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	var labels []string
	switch {
	case strings.HasSuffix(host, ".amazonaws.com"):
		labels = strings.Split(strings.TrimSuffix(host, ".amazonaws.com"), ".")
	case strings.HasSuffix(host, ".amazonaws.com.cn"):
		labels = strings.Split(strings.TrimSuffix(host, ".amazonaws.com.cn"), ".")
	default:
		return DefaultRegion
	}

	for i, label := range labels {
		if strings.HasPrefix(label, "s3-") {
			region := strings.TrimPrefix(label, "s3-")
			if region == "external-1" {
				return DefaultRegion
			}
			return region
		}
		if label != "s3" {
			continue
		}
		for _, next := range labels[i+1:] {
			if next == "dualstack" || next == "accelerate" {
				continue
			}
			return next
		}
	}
	return DefaultRegion
}

// NormalizeEndpoint turns a user supplied endpoint into a scheme + host origin.
// An empty endpoint means DefaultEndpoint and a missing scheme means https.
// allowHTTP controls whether a plain http:// endpoint is accepted.
func NormalizeEndpoint(endpoint string, allowHTTP bool) (*url.URL, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, &ConfigError{Field: "endpoint", Err: ErrInvalidEndpoint}
	}

	switch strings.ToLower(u.Scheme) {
	case "https":
	case "http":
		if !allowHTTP {
			return nil, &ConfigError{Field: "endpoint", Err: ErrInsecureEndpoint}
		}
	default:
		return nil, &ConfigError{Field: "endpoint", Err: ErrUnsupportedScheme}
	}

	if u.Host == "" || u.User != nil || (u.Path != "" && u.Path != "/") ||
		u.RawQuery != "" || u.Fragment != "" || u.Opaque != "" {
		return nil, &ConfigError{Field: "endpoint", Err: ErrInvalidEndpoint}
	}

	return &url.URL{Scheme: strings.ToLower(u.Scheme), Host: u.Host}, nil
}
