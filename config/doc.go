// Package config provides configuration loading and validation for s3put.
//
// The package handles YAML configuration files, environment variables, and CLI flags
// with automatic merging and validation using go-playground/validator.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. Configuration file(s) - multiple files merged left-to-right
//  3. Environment variables (S3PUT_ prefix)
//  4. CLI flags that were explicitly set
//
// # Usage
//
//	cfg, err := config.Load([]string{"config.yaml"}, cmd.Flags())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	uploader, err := s3put.New(cfg.Uploader(), cfg.UploaderOptions()...)
//
// # Environment Variables
//
// All config keys map to environment variables with S3PUT_ prefix:
//   - s3.bucket → S3PUT_S3_BUCKET
//   - s3.secret_key → S3PUT_S3_SECRET_KEY
//   - http.timeout → S3PUT_HTTP_TIMEOUT
//
// # Validation
//
// Configuration is validated using struct tags:
//   - Endpoint must be set
//   - ACL must be one of the S3 canned ACLs
//   - Log level must be debug, info, warn, or error
//   - Log format must be text or json
//   - Timeout must not be negative
//
// Bucket and credentials are not required here. They are checked when the
// uploader is built, so that "configure show" works on a partial file.
package config
