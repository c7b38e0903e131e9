package s3put

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const (
	// DefaultEndpoint is used when Config.Endpoint is empty.
	DefaultEndpoint = "s3.eu-west-2.amazonaws.com"
	// DefaultRegion is used when the region cannot be derived from the endpoint.
	DefaultRegion = "us-east-1"
	// DefaultACL is applied when UploadInput.ACL is empty.
	DefaultACL = ACLPublicRead
	// DefaultContentType is applied when UploadInput.ContentType is empty.
	DefaultContentType = "binary/octet-stream"

	// Service is the SigV4 service name for S3.
	Service = "s3"
)

// Config holds the static settings of an Uploader.
type Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Region          string // optional, derived from Endpoint when empty
}

// Credentials is a static access key pair.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
}

// String never includes the secret.
func (c Credentials) String() string {
	return "Credentials{AccessKeyID: " + c.AccessKeyID + ", SecretAccessKey: [redacted]}"
}

// UploadInput describes a single object upload.
type UploadInput struct {
	Key         string // slashes map to folders
	ACL         string // optional, defaults to DefaultACL
	ContentType string // optional, defaults to DefaultContentType
	Content     []byte
}

func (in UploadInput) withDefaults() UploadInput {
	if in.ACL == "" {
		in.ACL = string(DefaultACL)
	}
	if in.ContentType == "" {
		in.ContentType = DefaultContentType
	}
	return in
}

// SignRequest is the input of Signer.Sign.
type SignRequest struct {
	Method string
	Host   string
	// Path must already be percent-encoded; it is used verbatim as the canonical URI.
	Path        string
	Query       url.Values
	Headers     http.Header
	PayloadHash string
}

// Signature is the output of Signer.Sign.
type Signature struct {
	Authorization   string
	Date            string // X-Amz-Date value
	Host            string
	SignedHeaders   string
	Signature       string
	CredentialScope string
}

// ACL is an S3 canned access control list.
type ACL string

const (
	ACLPrivate                ACL = "private"
	ACLPublicRead             ACL = "public-read"
	ACLPublicReadWrite        ACL = "public-read-write"
	ACLAuthenticatedRead      ACL = "authenticated-read"
	ACLAWSExecRead            ACL = "aws-exec-read"
	ACLBucketOwnerRead        ACL = "bucket-owner-read"
	ACLBucketOwnerFullControl ACL = "bucket-owner-full-control"
)

var cannedACLs = []ACL{
	ACLPrivate,
	ACLPublicRead,
	ACLPublicReadWrite,
	ACLAuthenticatedRead,
	ACLAWSExecRead,
	ACLBucketOwnerRead,
	ACLBucketOwnerFullControl,
}

func (a ACL) IsValid() bool {
	for _, c := range cannedACLs {
		if a == c {
			return true
		}
	}
	return false
}

func ParseACL(s string) (ACL, error) {
	acl := ACL(s)
	if !acl.IsValid() {
		names := make([]string, len(cannedACLs))
		for i, c := range cannedACLs {
			names[i] = string(c)
		}
		return "", fmt.Errorf("invalid acl: %s (valid acls: %s)", s, strings.Join(names, ", "))
	}
	return acl, nil
}
