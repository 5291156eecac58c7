package gitops

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/riaaa16/ai-consultant/pkg/logger"
	"github.com/riaaa16/ai-consultant/pkg/metrics"
)

// ErrGit wraps every failed git invocation.
var ErrGit = errors.New("git error")

// Result is what a publish attaches to an update or rollback response.
type Result struct {
	Status string `json:"status"`
	Commit string `json:"commit,omitempty"`
	Pushed bool   `json:"pushed"`
	Error  string `json:"error,omitempty"`
}

// Client runs git in one repository with a per-command timeout.
type Client struct {
	repoRoot string
	timeout  time.Duration
	push     bool
}

// New returns a client for repoRoot. When push is false commits stay local.
func New(repoRoot string, timeout time.Duration, push bool) (*Client, error) {
	abs, err := filepath.Abs(repoRoot)
	if err != nil {
		return nil, fmt.Errorf("%w: repo root %s: %v", ErrGit, repoRoot, err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{repoRoot: abs, timeout: timeout, push: push}, nil
}

func (c *Client) RepoRoot() string { return c.repoRoot }

func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = c.repoRoot

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("%w: git %s: timeout after %v", ErrGit, args[0], c.timeout)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(stdout.String())
		}
		return "", fmt.Errorf("%w: git %s: %v: %s", ErrGit, args[0], err, msg)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// StageCommitPush adds paths, commits them with message and pushes when the
// client is configured to. Paths must be relative to the repository root.
// An empty diff yields status "noop" and no commit.
func (c *Client) StageCommitPush(ctx context.Context, paths []string, message string) (*Result, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no paths to stage", ErrGit)
	}
	if _, err := c.run(ctx, append([]string{"add", "--"}, paths...)...); err != nil {
		return nil, err
	}
	if _, err := c.run(ctx, append([]string{"diff", "--cached", "--quiet", "--"}, paths...)...); err == nil {
		return &Result{Status: "noop"}, nil
	}
	if _, err := c.run(ctx, append([]string{"commit", "-m", message, "--"}, paths...)...); err != nil {
		return nil, err
	}
	sha, err := c.run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return nil, err
	}
	res := &Result{Status: "ok", Commit: sha}
	if !c.push {
		return res, nil
	}
	if _, err := c.run(ctx, "push"); err != nil {
		return nil, err
	}
	res.Pushed = true
	return res, nil
}

// Publisher commits content files after successful writes. Failures are
// reported in the result and never undo the write.
type Publisher struct {
	client *Client
}

func NewPublisher(c *Client) *Publisher { return &Publisher{client: c} }

// Publish stages absPath and commits it with message.
func (p *Publisher) Publish(ctx context.Context, absPath, message string) *Result {
	res, err := p.publish(ctx, absPath, message)
	if err != nil {
		metrics.GitPublishes.WithLabelValues("error").Inc()
		logger.Warnf("git publish %s: %v", filepath.Base(absPath), err)
		return &Result{Status: "error", Error: err.Error()}
	}
	metrics.GitPublishes.WithLabelValues(res.Status).Inc()
	logger.Infof("git publish %s: %s %s", filepath.Base(absPath), res.Status, res.Commit)
	return res
}

func (p *Publisher) publish(ctx context.Context, absPath, message string) (*Result, error) {
	root, err := filepath.EvalSymlinks(p.client.repoRoot)
	if err != nil {
		return nil, fmt.Errorf("%w: repo root: %v", ErrGit, err)
	}
	rel, err := filepath.Rel(root, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("%w: %s is outside repository %s", ErrGit, absPath, root)
	}
	return p.client.StageCommitPush(ctx, []string{filepath.ToSlash(rel)}, message)
}

// UpdateMessage is the commit message for an applied update.
func UpdateMessage(file, operation string) string {
	return fmt.Sprintf("AI update: %s (%s)", file, operation)
}

// RollbackMessage is the commit message for a restore.
func RollbackMessage(file string) string {
	return "AI rollback: " + file
}
