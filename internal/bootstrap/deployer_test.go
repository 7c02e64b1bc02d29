package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/nodeseed/internal/cloud"
	"github.com/imamik/nodeseed/internal/metrics"
	"github.com/imamik/nodeseed/internal/progress"
)

type fakeShell struct {
	result ExecResult
	err    error

	mu     sync.Mutex
	ran    []string
	closed bool
}

func (s *fakeShell) RunScript(_ context.Context, body string) (ExecResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ran = append(s.ran, body)
	return s.result, s.err
}

func (s *fakeShell) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// fakeConnector refuses the first refusals attempts, then hands out shell.
type fakeConnector struct {
	refusals int
	err      error
	shell    *fakeShell

	mu       sync.Mutex
	attempts int
	creds    []Credential
}

func (c *fakeConnector) Connect(_ context.Context, address string, cred Credential) (Shell, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts++
	c.creds = append(c.creds, cred)
	if c.err != nil {
		return nil, c.err
	}
	if c.attempts <= c.refusals {
		return nil, fmt.Errorf("%w: dial tcp %s:22: connect: connection refused", cloud.ErrConnectionRefused, address)
	}
	return c.shell, nil
}

func fastConfig(attempts int) Config {
	return Config{
		ConnectAttempts: attempts,
		ConnectDelay:    time.Millisecond,
		MaxConnectDelay: 2 * time.Millisecond,
	}
}

func webTarget() Target {
	return Target{
		Name:       "web1",
		Address:    "203.0.113.5",
		Credential: Credential{User: "root", Password: "s3cret"},
	}
}

func TestDeploy_Success(t *testing.T) {
	t.Parallel()
	shell := &fakeShell{result: ExecResult{Output: "minion started\n"}}
	conn := &fakeConnector{shell: shell}
	rec := &progress.Recorder{}
	d := NewDeployer(conn, fastConfig(3), WithObserver(rec), WithMetrics(metrics.NewRecorder()))

	out, err := d.Deploy(context.Background(), webTarget(), "#!/bin/sh\necho hi\n")

	require.NoError(t, err)
	require.NotNil(t, out)
	assert.True(t, out.Succeeded)
	assert.Equal(t, 0, out.ExitCode)
	assert.Equal(t, "minion started\n", out.Output)
	assert.Equal(t, 1, out.Attempts)
	assert.NoError(t, out.Err)
	assert.Equal(t, []string{"#!/bin/sh\necho hi\n"}, shell.ran)
	assert.True(t, shell.closed)
	assert.Equal(t, []progress.EventType{
		progress.EventBootstrapConnecting,
		progress.EventBootstrapRunning,
		progress.EventBootstrapSucceeded,
	}, rec.Types())
}

func TestDeploy_RetriesRefusedConnections(t *testing.T) {
	t.Parallel()
	shell := &fakeShell{}
	conn := &fakeConnector{refusals: 2, shell: shell}
	d := NewDeployer(conn, fastConfig(5))

	out, err := d.Deploy(context.Background(), webTarget(), "true")

	require.NoError(t, err)
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, 3, conn.attempts)
}

func TestDeploy_ConnectionRefusedExhausted(t *testing.T) {
	t.Parallel()
	conn := &fakeConnector{refusals: 100}
	d := NewDeployer(conn, fastConfig(4))

	out, err := d.Deploy(context.Background(), webTarget(), "true")

	require.Error(t, err)
	assert.ErrorIs(t, err, cloud.ErrConnectionRefused)
	assert.Equal(t, "ConnectionRefusedError", cloud.Kind(err))
	assert.False(t, out.Succeeded)
	assert.Equal(t, 4, out.Attempts)
	assert.Equal(t, 4, conn.attempts)
	assert.Equal(t, err, out.Err)
}

func TestDeploy_AuthenticationRejectedNotRetried(t *testing.T) {
	t.Parallel()
	conn := &fakeConnector{err: fmt.Errorf("%w: ssh: unable to authenticate", cloud.ErrAuthenticationRejected)}
	d := NewDeployer(conn, fastConfig(5))

	out, err := d.Deploy(context.Background(), webTarget(), "true")

	assert.ErrorIs(t, err, cloud.ErrAuthenticationRejected)
	assert.NotErrorIs(t, err, cloud.ErrConnectionRefused)
	assert.Equal(t, 1, conn.attempts)
	assert.Equal(t, 1, out.Attempts)
}

func TestDeploy_UnclassifiedConnectErrorNotRetried(t *testing.T) {
	t.Parallel()
	conn := &fakeConnector{err: errors.New("bad private key")}
	d := NewDeployer(conn, fastConfig(5))

	_, err := d.Deploy(context.Background(), webTarget(), "true")

	require.Error(t, err)
	assert.Equal(t, 1, conn.attempts)
}

func TestDeploy_NonZeroExit(t *testing.T) {
	t.Parallel()
	shell := &fakeShell{result: ExecResult{ExitCode: 3, Output: "E: package not found\n"}}
	conn := &fakeConnector{shell: shell}
	rec := &progress.Recorder{}
	d := NewDeployer(conn, fastConfig(3), WithObserver(rec))

	out, err := d.Deploy(context.Background(), webTarget(), "exit 3")

	assert.ErrorIs(t, err, cloud.ErrScriptExecution)
	var execErr *cloud.ScriptExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, 3, execErr.ExitCode)
	assert.Equal(t, "203.0.113.5", execErr.Host)
	assert.Equal(t, "E: package not found\n", execErr.Output)

	assert.False(t, out.Succeeded)
	assert.Equal(t, 3, out.ExitCode)
	assert.True(t, shell.closed)
	assert.Equal(t, progress.EventBootstrapFailed, rec.Types()[len(rec.Types())-1])
}

func TestDeploy_RunError(t *testing.T) {
	t.Parallel()
	cause := errors.New("session closed")
	conn := &fakeConnector{shell: &fakeShell{err: cause}}
	d := NewDeployer(conn, fastConfig(3))

	out, err := d.Deploy(context.Background(), webTarget(), "true")

	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, cloud.ErrScriptExecution)
	assert.Equal(t, -1, out.ExitCode)
}

func TestDeploy_EmptyAddress(t *testing.T) {
	t.Parallel()
	conn := &fakeConnector{shell: &fakeShell{}}
	d := NewDeployer(conn, fastConfig(3))

	target := webTarget()
	target.Address = ""
	out, err := d.Deploy(context.Background(), target, "true")

	assert.ErrorIs(t, err, ErrNoAddress)
	assert.Zero(t, conn.attempts)
	assert.Zero(t, out.Attempts)
}

func TestDeploy_Cancelled(t *testing.T) {
	t.Parallel()
	conn := &fakeConnector{refusals: 100}
	d := NewDeployer(conn, Config{ConnectAttempts: 100, ConnectDelay: time.Hour})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := d.Deploy(ctx, webTarget(), "true")

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, conn.attempts)
}

func TestConfig_Defaults(t *testing.T) {
	t.Parallel()
	c := Config{}.withDefaults()
	assert.Equal(t, defaultConnectAttempts, c.ConnectAttempts)
	assert.Equal(t, defaultConnectDelay, c.ConnectDelay)
	assert.Equal(t, defaultMaxConnectDelay, c.MaxConnectDelay)

	c = Config{ConnectDelay: time.Minute}.withDefaults()
	assert.Equal(t, time.Minute, c.MaxConnectDelay)
}
