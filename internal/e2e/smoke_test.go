package e2e

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmokeFlow(t *testing.T) {
	home := t.TempDir()
	binaryPath := buildBinary(t)

	stdout, stderr, err := runOdfops(t, binaryPath, home, "version")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "odfops")

	_, stderr, err = runOdfops(t, binaryPath, home,
		"user", "add",
		"--login", "alice",
		"--password", "s3cret",
		"--full-name", "Alice",
	)
	require.NoError(t, err, "stderr: %s", stderr)

	stdout, stderr, err = runOdfops(t, binaryPath, home, "user", "list")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "alice")

	opsFile := filepath.Join(t.TempDir(), "ops.jsonl")
	require.NoError(t, os.WriteFile(opsFile, []byte(`{"optype":"AddMember","memberid":"alice","timestamp":1,"setProperties":{"fullName":"Alice"}}
{"optype":"AddCursor","memberid":"alice","timestamp":2}
{"optype":"InsertText","memberid":"alice","timestamp":3,"position":0,"text":"smoke"}
`), 0o600))

	stdout, stderr, err = runOdfops(t, binaryPath, home, "replay", "--file", opsFile)
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "Alice (alice)")
	assert.Contains(t, stdout, "smoke")
	assert.Contains(t, stderr, "replayed operations")
}

func buildBinary(t *testing.T) string {
	t.Helper()

	binaryPath := filepath.Join(t.TempDir(), "odfops-e2e")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/odfops")
	cmd.Dir = repoRoot(t)

	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "build odfops binary: %s", string(output))
	return binaryPath
}

func runOdfops(t *testing.T, binaryPath, home string, args ...string) (string, string, error) {
	t.Helper()

	cmd := exec.Command(binaryPath, args...)
	cmd.Env = append(os.Environ(), "HOME="+home)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func repoRoot(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	require.NoError(t, err)
	return filepath.Clean(filepath.Join(wd, "..", ".."))
}
