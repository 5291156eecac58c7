package gitops

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func initRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	for _, args := range [][]string{
		{"init", "-q"},
		{"config", "user.email", "test@example.com"},
		{"config", "user.name", "test"},
		{"config", "commit.gpgsign", "false"},
	} {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}
	return dir
}

func gitLog(t *testing.T, dir string) string {
	t.Helper()
	cmd := exec.Command("git", "log", "--format=%s")
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))
	return strings.TrimSpace(string(out))
}

func TestStageCommitWithoutPush(t *testing.T) {
	dir := initRepo(t)
	content := filepath.Join(dir, "website", "content")
	require.NoError(t, os.MkdirAll(content, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(content, "site.json"), []byte("{}\n"), 0o644))

	c, err := New(dir, 10*time.Second, false)
	require.NoError(t, err)
	res, err := c.StageCommitPush(context.Background(), []string{"website/content/site.json"}, UpdateMessage("site.json", "append"))
	require.NoError(t, err)
	require.Equal(t, "ok", res.Status)
	require.NotEmpty(t, res.Commit)
	require.False(t, res.Pushed)
	require.Equal(t, "AI update: site.json (append)", gitLog(t, dir))

	res, err = c.StageCommitPush(context.Background(), []string{"website/content/site.json"}, "again")
	require.NoError(t, err)
	require.Equal(t, "noop", res.Status)
}

func TestPushFailureIsGitError(t *testing.T) {
	dir := initRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "site.json"), []byte("{}\n"), 0o644))

	c, err := New(dir, 10*time.Second, true)
	require.NoError(t, err)
	_, err = c.StageCommitPush(context.Background(), []string{"site.json"}, RollbackMessage("site.json"))
	require.ErrorIs(t, err, ErrGit, "no remote configured")
}

func TestPublisherReportsErrorsInResult(t *testing.T) {
	dir := initRepo(t)
	c, err := New(dir, 10*time.Second, false)
	require.NoError(t, err)
	p := NewPublisher(c)

	res := p.Publish(context.Background(), filepath.Join(t.TempDir(), "site.json"), "msg")
	require.Equal(t, "error", res.Status)
	require.Contains(t, res.Error, "outside repository")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "site.json"), []byte("{}\n"), 0o644))
	res = p.Publish(context.Background(), filepath.Join(dir, "site.json"), RollbackMessage("site.json"))
	require.Equal(t, "ok", res.Status, res.Error)
	require.Equal(t, "AI rollback: site.json", gitLog(t, dir))
}

func TestStageRequiresPaths(t *testing.T) {
	c, err := New(t.TempDir(), 0, false)
	require.NoError(t, err)
	_, err = c.StageCommitPush(context.Background(), nil, "msg")
	require.ErrorIs(t, err, ErrGit)
}
