package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sagarc03/s3put"
	"github.com/sagarc03/s3put/config"
)

// errStdinKey is returned when uploading stdin without a key.
var errStdinKey = errors.New("a key is required when reading from stdin")

type uploadOptions struct {
	detectContentType bool
	dryRun            bool
}

func newUploadCmd(root *rootOptions) *cobra.Command {
	opts := &uploadOptions{}

	cmd := &cobra.Command{
		Use:   "upload <local-path|-> [key]",
		Short: "Upload one object",
		Long: `Upload a local file (or stdin with "-") as a single object.

The key defaults to the file's base name. A key ending in "/" is treated as
a folder and the base name is appended. Slashes in keys are kept, so
"folder/name.txt" lands at /<bucket>/folder/name.txt.

Examples:
  s3put upload ./report.pdf
  s3put upload ./report.pdf reports/2026/
  s3put upload --acl private --content-type application/json ./data.json config.json
  tar cz ./site | s3put upload - backups/site.tar.gz
  s3put upload --dry-run ./index.html`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(cmd, root, opts, args)
		},
	}

	cmd.Flags().String("acl", "", "canned ACL (default: public-read, env: S3PUT_UPLOAD_ACL)")
	cmd.Flags().StringP("content-type", "t", "", "content type (default: binary/octet-stream, env: S3PUT_UPLOAD_CONTENT_TYPE)")
	cmd.Flags().BoolVar(&opts.detectContentType, "detect-content-type", false, "guess the content type from the file extension")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "print the signed request without sending it")
	return cmd
}

func runUpload(cmd *cobra.Command, root *rootOptions, opts *uploadOptions, args []string) error {
	ctx := cmd.Context()
	cfg, err := config.FromContext(ctx)
	if err != nil {
		return err
	}

	source := args[0]
	var key string
	if len(args) > 1 {
		key = args[1]
	}
	key, err = objectKey(source, key)
	if err != nil {
		return err
	}

	content, err := readSource(cmd.InOrStdin(), source)
	if err != nil {
		return err
	}

	acl, err := s3put.ParseACL(cfg.Upload.ACL)
	if err != nil {
		return err
	}

	contentType := cfg.Upload.ContentType
	if opts.detectContentType && !cmd.Flags().Changed("content-type") {
		contentType = detectContentType(source, contentType)
	}

	id := uuid.NewString()
	logger := slog.Default().With("upload_id", id)

	uploader, err := s3put.New(cfg.Uploader(), append(cfg.UploaderOptions(), s3put.WithLogger(logger))...)
	if err != nil {
		return err
	}

	in := s3put.UploadInput{
		Key:         key,
		ACL:         string(acl),
		ContentType: contentType,
		Content:     content,
	}
	result := UploadResult{
		ID:          id,
		Source:      source,
		Bucket:      uploader.Bucket(),
		Key:         key,
		URL:         uploader.ObjectURL(key),
		Size:        int64(len(content)),
		ContentType: contentType,
		ACL:         string(acl),
	}

	if opts.dryRun {
		req, err := uploader.NewRequest(ctx, in)
		if err != nil {
			return err
		}
		return root.formatter().FormatDryRun(cmd.OutOrStdout(), result, newSignedRequest(req))
	}

	logger.Info("uploading", "source", source, "bucket", result.Bucket, "key", key, "size", result.Size)
	if err := uploader.Upload(ctx, in); err != nil {
		logger.Error("upload failed", "key", key, "err", err)
		return err
	}
	logger.Info("uploaded", "url", result.URL)

	return root.formatter().FormatUpload(cmd.OutOrStdout(), result)
}

// objectKey resolves the destination key for source.
func objectKey(source, key string) (string, error) {
	if source == "-" {
		if key == "" || strings.HasSuffix(key, "/") {
			return "", errStdinKey
		}
		return key, nil
	}

	base := filepath.Base(source)
	switch {
	case key == "":
		return base, nil
	case strings.HasSuffix(key, "/"):
		return key + base, nil
	default:
		return key, nil
	}
}

// readSource reads the whole object into memory. Uploads are single PUTs,
// so the payload hash needs the complete body before the request is signed.
func readSource(stdin io.Reader, source string) ([]byte, error) {
	if source == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}

	info, err := os.Stat(source)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", source, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", source)
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", source, err)
	}
	return data, nil
}

// detectContentType guesses the type from the extension of source,
// returning fallback when nothing is registered.
func detectContentType(source, fallback string) string {
	if source == "-" {
		return fallback
	}
	if t := mime.TypeByExtension(filepath.Ext(source)); t != "" {
		return t
	}
	return fallback
}
