package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/riaaa16/ai-consultant/internal/config"
	"github.com/riaaa16/ai-consultant/internal/content"
	"github.com/riaaa16/ai-consultant/internal/gitops"
	"github.com/riaaa16/ai-consultant/internal/patch"
	"github.com/riaaa16/ai-consultant/internal/pathguard"
	"github.com/riaaa16/ai-consultant/internal/tokens"
	"github.com/riaaa16/ai-consultant/pkg/logger"
)

var errUsage = errors.New("usage")

type cli struct {
	stdin          io.Reader
	stdout, stderr io.Writer

	cfg        *config.Config
	contentDir string
	schemaDir  string
	logLevel   string
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	c := &cli{stdin: stdin, stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "sitectl",
		Short:         "Apply, inspect and roll back website content",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger.Init(c.logLevel)
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			c.cfg = cfg
			if c.contentDir == "" {
				c.contentDir = cfg.Content.Root
			}
			if c.schemaDir == "" {
				c.schemaDir = cfg.Content.SchemaDir
			}
			return nil
		},
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&c.contentDir, "content-root", "", "content directory (default $CONTENT_ROOT or website/content)")
	root.PersistentFlags().StringVar(&c.schemaDir, "schema-dir", "", "schema directory (default $SCHEMA_DIR or schemas)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", os.Getenv("LOG_LEVEL"), "debug|info|warn|error")

	root.AddCommand(c.applyCmd(), c.rollbackCmd(), c.backupsCmd(), c.showCmd(), c.tokenCmd())
	return root
}

func (c *cli) updater() (*content.Updater, error) {
	return content.New(c.contentDir, c.schemaDir)
}

func (c *cli) publisher() (*gitops.Publisher, error) {
	gc, err := gitops.New(c.cfg.Git.RepoRoot, c.cfg.Git.Timeout, c.cfg.Git.Push)
	if err != nil {
		return nil, err
	}
	return gitops.NewPublisher(gc), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *cli) applyCmd() *cobra.Command {
	var payloadFile string
	var git bool
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply an update payload read from --payload or stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var err error
			if payloadFile == "" || payloadFile == "-" {
				data, err = io.ReadAll(c.stdin)
			} else {
				data, err = os.ReadFile(payloadFile)
			}
			if err != nil {
				return fmt.Errorf("read payload: %w", err)
			}
			v, err := patch.Decode(data)
			if err != nil {
				return fmt.Errorf("%w: payload is not valid JSON: %v", content.ErrPatchValidation, err)
			}
			raw, ok := patch.Unwrap(v).(map[string]any)
			if !ok {
				return fmt.Errorf("%w: payload must be an object", content.ErrPatchValidation)
			}

			u, err := c.updater()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			res, err := u.ApplyUpdate(ctx, raw)
			if err != nil {
				return err
			}
			if err := writeJSON(c.stderr, res); err != nil {
				return err
			}
			if git || c.cfg.Git.AutoPush {
				return c.publish(ctx, res.Path, gitops.UpdateMessage(res.File, string(res.Operation)))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&payloadFile, "payload", "", "payload JSON file (default stdin)")
	cmd.Flags().BoolVar(&git, "git", false, "git add/commit/push after the update")
	return cmd
}

func (c *cli) rollbackCmd() *cobra.Command {
	var file, backup string
	var list, git bool
	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Restore a content file from a backup (latest by default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := c.updater()
			if err != nil {
				return err
			}
			if list {
				backups, err := u.ListBackups(file)
				if err != nil {
					return err
				}
				return writeJSON(c.stderr, map[string]any{"file": file, "backups": backups})
			}
			ctx := cmd.Context()
			res, err := u.Restore(ctx, file, backup)
			if err != nil {
				return err
			}
			if err := writeJSON(c.stderr, res); err != nil {
				return err
			}
			if git {
				return c.publish(ctx, res.Path, gitops.RollbackMessage(res.File))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", pathguard.AllowedFile, "target content file")
	cmd.Flags().StringVar(&backup, "backup", "", "backup filename to restore (default: latest)")
	cmd.Flags().BoolVar(&list, "list", false, "list available backups and exit")
	cmd.Flags().BoolVar(&git, "git", false, "git add/commit/push after restore")
	return cmd
}

func (c *cli) backupsCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "backups",
		Short: "List backups newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := c.updater()
			if err != nil {
				return err
			}
			backups, err := u.ListBackups(file)
			if err != nil {
				return err
			}
			for _, b := range backups {
				fmt.Fprintln(c.stdout, b)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", pathguard.AllowedFile, "target content file")
	return cmd
}

func (c *cli) showCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the live document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := c.updater()
			if err != nil {
				return err
			}
			doc, err := u.Current(file)
			if err != nil {
				return err
			}
			return writeJSON(c.stdout, doc)
		},
	}
	cmd.Flags().StringVar(&file, "file", pathguard.AllowedFile, "target content file")
	return cmd
}

func (c *cli) tokenCmd() *cobra.Command {
	var subject string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token signed with JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if ttl <= 0 {
				ttl = c.cfg.JWT.AccessTokenTTL
			}
			tok, err := tokens.GenerateAccessToken(c.cfg.JWT.Secret, subject, ttl)
			if err != nil {
				return fmt.Errorf("%w: %v", errUsage, err)
			}
			fmt.Fprintln(c.stdout, tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "sub", "sitectl", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default $JWT_ACCESS_TOKEN_TTL minutes)")
	return cmd
}

// publish commits path and reports the git result. A git failure is returned
// so the exit code reflects it; the content write stands either way.
func (c *cli) publish(ctx context.Context, path, message string) error {
	p, err := c.publisher()
	if err != nil {
		return err
	}
	res := p.Publish(ctx, path, message)
	if err := writeJSON(c.stderr, map[string]any{"git": res}); err != nil {
		return err
	}
	if res.Status == "error" {
		return fmt.Errorf("%w: %s", gitops.ErrGit, res.Error)
	}
	return nil
}
