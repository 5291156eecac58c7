package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/riaaa16/ai-consultant/internal/content"
	"github.com/riaaa16/ai-consultant/internal/gitops"
)

func contentRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	data, err := os.ReadFile(filepath.Join("..", "..", "website", "content", "site.json"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, "site.json"), data, 0o644))
	return root
}

func sitectl(t *testing.T, root, stdin string, args ...string) (int, string, string) {
	t.Helper()
	t.Setenv("AUTO_GIT_PUSH", "")
	var out, errOut bytes.Buffer
	full := append([]string{"--content-root", root, "--schema-dir", filepath.Join("..", "..", "schemas")}, args...)
	code := run(full, strings.NewReader(stdin), &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestApplyRollbackCycle(t *testing.T) {
	root := contentRoot(t)

	code, _, errOut := sitectl(t, root, `{"payload":{"file":"site.json","operation":"append","content":{"section":"services","data":{"services":[{"name":"Workshops"}]}}}}`, "apply")
	require.Equal(t, 0, code, errOut)
	require.Contains(t, errOut, `"status": "ok"`)
	require.Contains(t, errOut, `"operation": "append"`)

	code, out, _ := sitectl(t, root, "", "show")
	require.Equal(t, 0, code)
	require.Contains(t, out, "Workshops")

	code, out, _ = sitectl(t, root, "", "backups")
	require.Equal(t, 0, code)
	lines := strings.Fields(out)
	require.Len(t, lines, 1)
	require.True(t, strings.HasPrefix(lines[0], "site.json."))

	code, _, errOut = sitectl(t, root, "", "rollback", "--list")
	require.Equal(t, 0, code)
	require.Contains(t, errOut, lines[0])

	code, _, errOut = sitectl(t, root, "", "rollback", "--backup", lines[0])
	require.Equal(t, 0, code, errOut)
	require.Contains(t, errOut, "restored_from")

	code, out, _ = sitectl(t, root, "", "show")
	require.Equal(t, 0, code)
	require.NotContains(t, out, "Workshops")
}

func TestApplyFromPayloadFile(t *testing.T) {
	root := contentRoot(t)
	p := filepath.Join(t.TempDir(), "payload.json")
	require.NoError(t, os.WriteFile(p, []byte(`{"file":"site.json","operation":"delete","content":{"section":"contact","data":{"github":null}}}`), 0o644))

	code, _, errOut := sitectl(t, root, "", "apply", "--payload", p)
	require.Equal(t, 0, code, errOut)

	code, out, _ := sitectl(t, root, "", "show")
	require.Equal(t, 0, code)
	require.Contains(t, out, `"github": ""`)
}

func TestContentErrorsExitTwo(t *testing.T) {
	root := contentRoot(t)

	code, _, errOut := sitectl(t, root, `{"file":"site.json","operation":"bogus","content":{}}`, "apply")
	require.Equal(t, 2, code)
	require.True(t, strings.HasPrefix(errOut, "Error: "), errOut)

	code, _, _ = sitectl(t, root, `not json`, "apply")
	require.Equal(t, 2, code)

	code, _, errOut = sitectl(t, root, `{"file":"site.json","operation":"replace","content":{}} trailing`, "apply")
	require.Equal(t, 2, code)
	require.Contains(t, errOut, "not valid JSON")

	code, _, errOut = sitectl(t, root, "", "rollback")
	require.Equal(t, 2, code)
	require.Contains(t, errOut, "no backups found")

	code, _, _ = sitectl(t, root, "", "rollback", "--backup", "../../etc/passwd")
	require.Equal(t, 2, code)

	code, _, _ = sitectl(t, t.TempDir(), "", "show")
	require.Equal(t, 2, code)
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	code, _, _ := sitectl(t, t.TempDir(), "", "token")
	require.Equal(t, 2, code)

	t.Setenv("JWT_SECRET", "cli-test-secret-32-bytes-xxxxxxxxxx")
	code, out, _ := sitectl(t, t.TempDir(), "", "token", "--sub", "editor", "--ttl", "5m")
	require.Equal(t, 0, code)
	require.Len(t, strings.Split(strings.TrimSpace(out), "."), 3)
}

func TestExitCode(t *testing.T) {
	require.Equal(t, 2, exitCode(content.ErrBackupNotFound))
	require.Equal(t, 2, exitCode(gitops.ErrGit))
	require.Equal(t, 1, exitCode(errors.New("disk on fire")))
}
