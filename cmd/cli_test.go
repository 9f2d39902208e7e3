package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/odfops/internal/adapters/transport/httpapi/httpapitest"
	"github.com/bnema/odfops/internal/adapters/transport/wire"
	"github.com/bnema/odfops/internal/domain"
)

const replayFixture = `{"optype":"AddMember","memberid":"bob","timestamp":1,"setProperties":{"fullName":"Bob"}}
{"optype":"AddCursor","memberid":"bob","timestamp":2}

{"optype":"InsertText","memberid":"bob","timestamp":3,"position":0,"text":"hello world"}
{"optype":"MoveCursor","memberid":"bob","timestamp":4,"position":5,"length":0}
`

func TestVersionPrintsBinaryName(t *testing.T) {
	stdout, _, err := executeCLI(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "odfops "))
}

func TestInvalidLogLevelFailsWiring(t *testing.T) {
	t.Setenv("ODFOPS_LOG_LEVEL", "loud")

	_, _, err := executeCLI(t, t.TempDir(), "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse log.level")
}

func TestConfigFileIsRead(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".odfops"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(home, ".odfops", "config.toml"), []byte("[log]\nlevel = \"nope\"\n"), 0o600))

	_, _, err := executeCLI(t, home, "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse log.level")
}

func TestUserAddThenList(t *testing.T) {
	home := t.TempDir()

	stdout, _, err := executeCLI(t, home, "user", "add", "--login", "alice", "--password", "pw", "--full-name", "Alice")
	require.NoError(t, err)
	assert.Contains(t, stdout, "alice")

	stdout, _, err = executeCLI(t, home, "user", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "alice")
	assert.Contains(t, stdout, "Alice")

	stdout, _, err = executeCLI(t, home, "user", "list", "--json")
	require.NoError(t, err)
	var users []userView
	require.NoError(t, json.Unmarshal([]byte(stdout), &users))
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].Login)
	assert.NotEmpty(t, users[0].ID)

	_, err = os.Stat(filepath.Join(home, ".odfops", "users.toml"))
	require.NoError(t, err)
}

func TestUserAddRejectsDuplicateLogin(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLI(t, home, "user", "add", "--login", "alice", "--password", "pw")
	require.NoError(t, err)

	_, _, err = executeCLI(t, home, "user", "add", "--login", "alice", "--password", "other")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user already exists")
}

func TestUserAddRequiresPassword(t *testing.T) {
	_, _, err := executeCLI(t, t.TempDir(), "user", "add", "--login", "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag(s) \"password\" not set")
}

func TestReplayRendersState(t *testing.T) {
	home := t.TempDir()
	file := writeOpsFile(t, replayFixture)

	stdout, _, err := executeCLI(t, home, "replay", "--file", file)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Session ops.jsonl")
	assert.Contains(t, stdout, "Bob (bob)")
	assert.Contains(t, stdout, "hello world")
	assert.Contains(t, stdout, "at 5, length 0, range")
}

func TestReplayJSONOutput(t *testing.T) {
	home := t.TempDir()
	file := writeOpsFile(t, replayFixture)

	stdout, _, err := executeCLI(t, home, "replay", "--file", file, "--json")
	require.NoError(t, err)

	var state wire.StateResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &state))
	assert.Equal(t, int64(4), state.Head)
	assert.NotEmpty(t, state.Digest)
	require.Len(t, state.State.Paragraphs, 1)
	assert.Equal(t, "hello world", state.State.Paragraphs[0].Text)
	require.Len(t, state.State.Cursors, 1)
	assert.Equal(t, 5, state.State.Cursors[0].Position)
}

func TestReplayReadsStdin(t *testing.T) {
	stdout, _, err := executeCLIContext(t, context.Background(), t.TempDir(), strings.NewReader(replayFixture), "replay", "--file", "-", "--json")
	require.NoError(t, err)
	assert.Contains(t, stdout, "hello world")
}

func TestReplayIsDeterministic(t *testing.T) {
	file := writeOpsFile(t, replayFixture)

	first, _, err := executeCLI(t, t.TempDir(), "replay", "--file", file, "--json")
	require.NoError(t, err)
	second, _, err := executeCLI(t, t.TempDir(), "replay", "--file", file, "--json")
	require.NoError(t, err)

	var a, b wire.StateResponse
	require.NoError(t, json.Unmarshal([]byte(first), &a))
	require.NoError(t, json.Unmarshal([]byte(second), &b))
	assert.Equal(t, a.Digest, b.Digest)
}

func TestReplayRejectsBadLines(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "unknown optype",
			content: "{\"optype\":\"AddCursor\",\"memberid\":\"a\",\"timestamp\":1}\n{\"optype\":\"AddAnnotation\",\"memberid\":\"a\",\"timestamp\":2}\n",
			want:    "line 2: unknown operation",
		},
		{
			name:    "not json",
			content: "garbage\n",
			want:    "line 1: malformed operation",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := executeCLI(t, t.TempDir(), "replay", "--file", writeOpsFile(t, tc.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestPushThroughHostThenStatus(t *testing.T) {
	for _, transport := range []string{transportLive, transportPullbox} {
		t.Run(transport, func(t *testing.T) {
			host := httpapitest.New(t, "alice")
			file := writeOpsFile(t, `{"optype":"InsertText","memberid":"anyone","timestamp":1,"position":0,"text":"hello"}
{"optype":"SplitParagraph","memberid":"anyone","timestamp":2,"position":5}
`)

			stdout, _, err := executeCLI(t, t.TempDir(),
				"push",
				"--server", host.Server.URL,
				"--login", "alice",
				"--password", httpapitest.Password,
				"--session", "doc",
				"--transport", transport,
				"--file", file,
				"--json",
			)
			require.NoError(t, err)

			var pushed wire.StateResponse
			require.NoError(t, json.Unmarshal([]byte(stdout), &pushed))
			assert.Equal(t, domain.SessionID("doc"), pushed.SessionID)
			require.Len(t, pushed.State.Paragraphs, 2)
			assert.Equal(t, "hello", pushed.State.Paragraphs[0].Text)
			assert.Empty(t, pushed.State.Members)

			stdout, _, err = executeCLI(t, t.TempDir(),
				"status",
				"--server", host.Server.URL,
				"--login", "alice",
				"--password", httpapitest.Password,
				"--session", "doc",
				"--json",
			)
			require.NoError(t, err)

			var status wire.StateResponse
			require.NoError(t, json.Unmarshal([]byte(stdout), &status))
			assert.Equal(t, pushed.Digest, status.Digest)
			assert.Equal(t, pushed.Head, status.Head)

			stdout, _, err = executeCLI(t, t.TempDir(),
				"status",
				"--server", host.Server.URL,
				"--login", "alice",
				"--password", httpapitest.Password,
			)
			require.NoError(t, err)
			assert.Equal(t, "doc\n", stdout)
		})
	}
}

func TestPushRejectsUnknownTransport(t *testing.T) {
	_, _, err := executeCLI(t, t.TempDir(),
		"push",
		"--login", "alice",
		"--password", "pw",
		"--session", "doc",
		"--transport", "pigeon",
		"--file", writeOpsFile(t, replayFixture),
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, errUnknownTransport)
}

func TestStatusRejectsWrongPassword(t *testing.T) {
	host := httpapitest.New(t, "alice")

	_, _, err := executeCLI(t, t.TempDir(),
		"status",
		"--server", host.Server.URL,
		"--login", "alice",
		"--password", "wrong",
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestStatusReportsUnreachableHost(t *testing.T) {
	_, _, err := executeCLI(t, t.TempDir(),
		"status",
		"--server", "http://127.0.0.1:1",
		"--login", "alice",
		"--password", "pw",
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrHostUnreachable)
}

func TestServeStopsWithContext(t *testing.T) {
	home := t.TempDir()
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	_, stderr, err := executeCLIContext(t, ctx, home, nil, "serve", "--listen", "127.0.0.1:0", "--oplog", "memory")
	require.NoError(t, err)
	assert.Contains(t, stderr, "session host listening")

	_, err = os.Stat(filepath.Join(home, ".odfops", "secrets"))
	require.NoError(t, err)
}

func TestServeWithSQLiteOpLog(t *testing.T) {
	home := t.TempDir()
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	_, _, err := executeCLIContext(t, ctx, home, nil, "serve", "--listen", "127.0.0.1:0")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(home, ".odfops", "oplog.db"))
	require.NoError(t, err)
}

func executeCLI(t *testing.T, home string, args ...string) (string, string, error) {
	t.Helper()
	return executeCLIContext(t, context.Background(), home, nil, args...)
}

func executeCLIContext(t *testing.T, ctx context.Context, home string, stdin io.Reader, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", home)

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	if stdin != nil {
		root.SetIn(stdin)
	}
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func writeOpsFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ops.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestHostCallModelClearsLabelWhenDone(t *testing.T) {
	m := newHostCallModel("Fetching session state...", nil)
	assert.Contains(t, m.View(), "Fetching session state...")

	next, cmd := m.Update(hostCallDoneMsg{err: domain.ErrSessionNotFound})
	require.NotNil(t, cmd)

	done, ok := next.(hostCallModel)
	require.True(t, ok)
	assert.Empty(t, done.View())
	assert.ErrorIs(t, done.err, domain.ErrSessionNotFound)
}

func TestWithSpinnerReturnsCallError(t *testing.T) {
	var out bytes.Buffer
	err := withSpinner(context.Background(), &out, "Pushing operations...", func(context.Context) error {
		return domain.ErrNotSessionMember
	})
	assert.ErrorIs(t, err, domain.ErrNotSessionMember)
}

func TestWithProgressRunsPlainOffTerminal(t *testing.T) {
	tests := []struct {
		name  string
		quiet bool
	}{
		{name: "redirected stream"},
		{name: "quiet mode", quiet: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			config := viper.New()
			config.Set(keyQuiet, tc.quiet)
			cmd := &cobra.Command{}
			cmd.SetErr(&out)
			a := &app{config: config, stderr: &stderrOf{cmd: cmd}}

			calls := 0
			err := a.withProgress(context.Background(), "Pushing operations...", func(context.Context) error {
				calls++
				return domain.ErrNotSessionMember
			})
			assert.ErrorIs(t, err, domain.ErrNotSessionMember)
			assert.Equal(t, 1, calls)
			assert.Empty(t, out.String())
		})
	}
}

func TestStatusQuietFlagIsAccepted(t *testing.T) {
	host := httpapitest.New(t, "alice")

	stdout, stderr, err := executeCLI(t, t.TempDir(),
		"status",
		"--quiet",
		"--server", host.Server.URL,
		"--login", "alice",
		"--password", httpapitest.Password,
	)
	require.NoError(t, err)
	assert.NotContains(t, stderr, "Fetching session state...")
	assert.Empty(t, strings.TrimSpace(stdout))
}
