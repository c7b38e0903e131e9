package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sagarc03/s3put/config"
)

var version = "dev"

// rootOptions holds flags that are not part of config.Config.
type rootOptions struct {
	cfgFile    string
	jsonOutput bool
	quiet      bool
}

func (o *rootOptions) formatter() Formatter {
	return NewFormatter(o.jsonOutput, o.quiet)
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "s3put",
		Version: version,
		Short:   "Upload single objects to S3 with SigV4 signed requests",
		Long: `s3put uploads one object per invocation to an S3 compatible
endpoint using a header-signed (AWS Signature Version 4) PUT request.

Settings are read from ~/.s3put/config.yaml (or --config), then S3PUT_*
environment variables, then flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := loadConfig(opts.cfgFile, cmd)
			if err != nil {
				return err
			}
			setupLogging(cmd.ErrOrStderr(), cfg.Log)
			ctx := config.WithContext(cmd.Context(), cfg)
			cmd.SetContext(withConfigPath(ctx, path))
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.cfgFile, "config", "c", "", "config file (default: ~/.s3put/config.yaml)")
	flags.String("endpoint", "", "S3 endpoint host or https URL (default: s3.eu-west-2.amazonaws.com, env: S3PUT_S3_ENDPOINT)")
	flags.StringP("bucket", "b", "", "target bucket (env: S3PUT_S3_BUCKET)")
	flags.String("region", "", "signing region (default: derived from endpoint, env: S3PUT_S3_REGION)")
	flags.StringP("access-key", "a", "", "access key id (env: S3PUT_S3_ACCESS_KEY)")
	flags.StringP("secret-key", "k", "", "secret access key (env: S3PUT_S3_SECRET_KEY)")
	flags.Bool("allow-http", false, "allow plain http:// endpoints (env: S3PUT_S3_ALLOW_HTTP)")
	flags.Duration("timeout", 0, "HTTP timeout, 0 disables it (default: 30s, env: S3PUT_HTTP_TIMEOUT)")
	flags.String("log-level", "", "log level: debug, info, warn, error (default: info, env: S3PUT_LOG_LEVEL)")
	flags.String("log-format", "", "log format: text, json (default: text, env: S3PUT_LOG_FORMAT)")
	flags.BoolVar(&opts.jsonOutput, "json", false, "output as JSON")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "suppress non-essential output")

	cmd.AddCommand(newUploadCmd(opts))
	cmd.AddCommand(newConfigureCmd(opts))
	return cmd
}

// loadConfig picks the config file and loads the layered configuration.
// The default path is only read when it exists; an explicit --config must.
func loadConfig(cfgFile string, cmd *cobra.Command) (*config.Config, string, error) {
	path := cfgFile
	var files []string
	if path != "" {
		files = []string{path}
	} else if p, err := config.DefaultConfigPath(); err == nil {
		path = p
		if _, statErr := os.Stat(p); statErr == nil {
			files = []string{p}
		}
	}

	cfg, err := config.Load(files, cmd.Flags())
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

type configPathKey struct{}

func withConfigPath(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, configPathKey{}, path)
}

func configPathFromContext(ctx context.Context) (string, error) {
	path, ok := ctx.Value(configPathKey{}).(string)
	if !ok || path == "" {
		return "", errors.New("config path not found in context")
	}
	return path, nil
}

// run executes the CLI and returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts := &rootOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args)
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		if ferr := opts.formatter().FormatError(cmd.ErrOrStderr(), err); ferr != nil {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), err)
		}
		return 1
	}
	return 0
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
