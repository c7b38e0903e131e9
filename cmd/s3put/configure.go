package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/sagarc03/s3put"
	"github.com/sagarc03/s3put/config"
)

// aclChoices is the order in which configure offers the canned ACLs.
var aclChoices = []string{
	string(s3put.ACLPublicRead),
	string(s3put.ACLPrivate),
	string(s3put.ACLPublicReadWrite),
	string(s3put.ACLAuthenticatedRead),
	string(s3put.ACLAWSExecRead),
	string(s3put.ACLBucketOwnerRead),
	string(s3put.ACLBucketOwnerFullControl),
}

func newConfigureCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Write the config file interactively",
		Long: `Prompt for endpoint, region, bucket and credentials and write them to
the config file (~/.s3put/config.yaml unless --config is given).

Current values, including ones from flags and environment, are offered as
defaults. The file is created with mode 0600.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigure(cmd, root)
		},
	}

	showSecrets := false
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Long: `Show the configuration after merging the config file, environment and flags.

Secrets are hidden by default; use --show-secrets to reveal them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigureShow(cmd, root, showSecrets)
		},
	}
	showCmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "show secret values")

	cmd.AddCommand(showCmd)
	return cmd
}

func runConfigure(cmd *cobra.Command, root *rootOptions) error {
	ctx := cmd.Context()
	current, err := config.FromContext(ctx)
	if err != nil {
		return err
	}
	path, err := configPathFromContext(ctx)
	if err != nil {
		return err
	}
	cfg := *current
	out := cmd.OutOrStdout()

	endpointPrompt := promptui.Prompt{
		Label:    "Endpoint",
		Default:  cfg.S3.Endpoint,
		Validate: validateEndpoint(cfg.S3.AllowHTTP),
	}
	if cfg.S3.Endpoint, err = endpointPrompt.Run(); err != nil {
		return handlePromptError(out, err)
	}

	endpoint, _ := s3put.NormalizeEndpoint(cfg.S3.Endpoint, cfg.S3.AllowHTTP)
	regionDefault := cfg.S3.Region
	if regionDefault == "" && endpoint != nil {
		regionDefault = s3put.RegionFromHost(endpoint.Host)
	}
	regionPrompt := promptui.Prompt{
		Label:   "Region",
		Default: regionDefault,
	}
	if cfg.S3.Region, err = regionPrompt.Run(); err != nil {
		return handlePromptError(out, err)
	}

	bucketPrompt := promptui.Prompt{
		Label:    "Bucket",
		Default:  cfg.S3.Bucket,
		Validate: required("bucket"),
	}
	if cfg.S3.Bucket, err = bucketPrompt.Run(); err != nil {
		return handlePromptError(out, err)
	}

	accessKeyPrompt := promptui.Prompt{
		Label:    "Access Key",
		Default:  cfg.S3.AccessKey,
		Validate: required("access key"),
	}
	if cfg.S3.AccessKey, err = accessKeyPrompt.Run(); err != nil {
		return handlePromptError(out, err)
	}

	// An empty answer keeps the current secret so it is never echoed as a default.
	secretLabel := "Secret Key"
	if cfg.S3.SecretKey != "" {
		secretLabel = fmt.Sprintf("Secret Key [%s]", config.MaskSecret(cfg.S3.SecretKey))
	}
	secretKeyPrompt := promptui.Prompt{
		Label: secretLabel,
		Mask:  '*',
	}
	secret, err := secretKeyPrompt.Run()
	if err != nil {
		return handlePromptError(out, err)
	}
	if secret != "" {
		cfg.S3.SecretKey = secret
	}

	aclSelect := promptui.Select{
		Label:     "Default ACL",
		Items:     aclChoices,
		CursorPos: aclIndex(cfg.Upload.ACL),
	}
	if _, cfg.Upload.ACL, err = aclSelect.Run(); err != nil {
		return handlePromptError(out, err)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.Save(path); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	if !root.quiet {
		_, _ = fmt.Fprintf(out, "Configuration written to %s\n", path)
	}
	return nil
}

func runConfigureShow(cmd *cobra.Command, root *rootOptions, showSecrets bool) error {
	ctx := cmd.Context()
	cfg, err := config.FromContext(ctx)
	if err != nil {
		return err
	}
	path, _ := configPathFromContext(ctx)

	shown := *cfg
	if !showSecrets {
		shown = cfg.Redacted()
	}
	return root.formatter().FormatConfig(cmd.OutOrStdout(), shown, path)
}

// validateEndpoint returns a promptui validator for endpoint input.
func validateEndpoint(allowHTTP bool) promptui.ValidateFunc {
	return func(input string) error {
		if strings.TrimSpace(input) == "" {
			return errors.New("endpoint is required")
		}
		_, err := s3put.NormalizeEndpoint(input, allowHTTP)
		return err
	}
}

func required(name string) promptui.ValidateFunc {
	return func(input string) error {
		if strings.TrimSpace(input) == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}

func aclIndex(acl string) int {
	for i, c := range aclChoices {
		if c == acl {
			return i
		}
	}
	return 0
}

// handlePromptError handles promptui errors. Interrupt and abort cancel
// the command without an error.
func handlePromptError(out io.Writer, err error) error {
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrAbort) || errors.Is(err, promptui.ErrEOF) {
		_, _ = fmt.Fprintln(out, "Cancelled.")
		return nil
	}
	return err
}
