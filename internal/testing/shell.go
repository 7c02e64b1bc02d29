package testing

import (
	"context"
	"fmt"
	"sync"

	"github.com/imamik/nodeseed/internal/bootstrap"
	"github.com/imamik/nodeseed/internal/cloud"
)

// ShellScript scripts how the fake shell treats one address.
type ShellScript struct {
	// RefuseFirst refuses that many connection attempts before accepting.
	RefuseFirst int
	// RejectAuth fails every attempt with ErrAuthenticationRejected.
	RejectAuth bool
	ExitCode   int
	Output     string
}

// FakeConnector is a scripted remote shell. The embedded ShellScript is the
// default; Scripts overrides it per address. Configure it before use;
// afterwards it is safe for concurrent use.
type FakeConnector struct {
	ShellScript
	Scripts map[string]ShellScript

	mu       sync.Mutex
	attempts map[string]int
	creds    map[string]bootstrap.Credential
	ran      map[string][]string
}

// NewFakeConnector creates a connector that accepts every connection and
// runs every script with exit code zero.
func NewFakeConnector() *FakeConnector {
	return &FakeConnector{
		ShellScript: ShellScript{Output: "salt-minion installed\n"},
		attempts:    map[string]int{},
		creds:       map[string]bootstrap.Credential{},
		ran:         map[string][]string{},
	}
}

// Connect implements bootstrap.Connector.
func (c *FakeConnector) Connect(ctx context.Context, address string, cred bootstrap.Credential) (bootstrap.Shell, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts[address]++
	c.creds[address] = cred

	script := c.scriptFor(address)
	if script.RejectAuth {
		return nil, fmt.Errorf("%w: ssh: unable to authenticate", cloud.ErrAuthenticationRejected)
	}
	if c.attempts[address] <= script.RefuseFirst {
		return nil, fmt.Errorf("%w: dial tcp %s:22: connect: connection refused", cloud.ErrConnectionRefused, address)
	}
	return &fakeShell{conn: c, address: address, script: script}, nil
}

// Attempts returns the number of connection attempts made to address.
func (c *FakeConnector) Attempts(address string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts[address]
}

// Credential returns the credential of the last attempt on address.
func (c *FakeConnector) Credential(address string) bootstrap.Credential {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.creds[address]
}

// Ran returns the script bodies executed on address.
func (c *FakeConnector) Ran(address string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.ran[address]...)
}

func (c *FakeConnector) scriptFor(address string) ShellScript {
	if s, ok := c.Scripts[address]; ok {
		return s
	}
	return c.ShellScript
}

type fakeShell struct {
	conn    *FakeConnector
	address string
	script  ShellScript
}

func (s *fakeShell) RunScript(ctx context.Context, body string) (bootstrap.ExecResult, error) {
	if err := ctx.Err(); err != nil {
		return bootstrap.ExecResult{ExitCode: -1}, err
	}
	s.conn.mu.Lock()
	s.conn.ran[s.address] = append(s.conn.ran[s.address], body)
	s.conn.mu.Unlock()
	return bootstrap.ExecResult{ExitCode: s.script.ExitCode, Output: s.script.Output}, nil
}

func (s *fakeShell) Close() error {
	return nil
}
