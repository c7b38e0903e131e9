// Package s3put uploads single objects to S3-compatible stores with AWS
// Signature Version 4 request signing.
//
// An Uploader is bound to one endpoint, bucket and static key pair. Each
// Upload hashes the content, signs a PUT request with the current time and
// sends it exactly once. Only a 200 response counts as success.
//
// # Key Components
//
//   - Uploader: builds, signs and sends single-object PUT requests
//   - Signer: SigV4 canonical request, string-to-sign and signature
//   - Doer: pluggable HTTP transport, satisfied by *http.Client
//   - ConfigError, TransportError, StatusError: the error taxonomy
//
// # Object Keys
//
// Keys are percent-encoded with the RFC 3986 unreserved set, segment by
// segment. Slashes are kept literal, so "photos/2024/cat.jpg" is stored as
// nested folders:
//
//	PUT https://s3.eu-west-2.amazonaws.com/my-bucket/photos/2024/cat.jpg
//
// # Example Usage
//
//	uploader, err := s3put.New(s3put.Config{
//	    Endpoint:        "s3.eu-west-2.amazonaws.com",
//	    AccessKeyID:     "AKIA...",
//	    SecretAccessKey: "...",
//	    Bucket:          "my-bucket",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	err = uploader.Upload(ctx, s3put.UploadInput{
//	    Key:         "folder/name.txt",
//	    ContentType: "text/plain",
//	    Content:     []byte("hello"),
//	})
//
//	var rejected *s3put.StatusError
//	if errors.As(err, &rejected) {
//	    log.Printf("store answered %d", rejected.StatusCode)
//	}
//
// See the s3test package for an in-process fake endpoint that verifies
// signatures, and the config package for file/env/flag configuration.
package s3put
