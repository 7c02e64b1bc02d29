package ssh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/imamik/nodeseed/internal/bootstrap"
	"github.com/imamik/nodeseed/internal/cloud"
)

const (
	defaultPort        = 22
	defaultDialTimeout = 10 * time.Second
	defaultRemotePath  = "/tmp/nodeseed-bootstrap.sh"
)

// Config holds SSH connector configuration.
type Config struct {
	// Port is the SSH port. If zero, defaultPort is used.
	Port int

	// DialTimeout bounds the TCP connect plus the SSH handshake.
	// If zero, defaultDialTimeout is used.
	DialTimeout time.Duration

	// RemotePath is where scripts are written before they run.
	// If empty, defaultRemotePath is used.
	RemotePath string

	// HostKeyCallback handles host key verification.
	// If nil, ssh.InsecureIgnoreHostKey() is used: a freshly created node has
	// no host key anyone could have pinned.
	HostKeyCallback ssh.HostKeyCallback
}

// Connector opens SSH shells on provisioned nodes. It implements
// bootstrap.Connector and makes exactly one dial per Connect call; retries
// are left to the caller.
type Connector struct {
	config Config
}

// NewConnector creates a Connector. Zero config fields get defaults.
func NewConnector(cfg Config) *Connector {
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.RemotePath == "" {
		cfg.RemotePath = defaultRemotePath
	}
	if cfg.HostKeyCallback == nil {
		cfg.HostKeyCallback = ssh.InsecureIgnoreHostKey() //nolint:gosec // Default for freshly created nodes
	}
	return &Connector{config: cfg}
}

// Connect dials address and authenticates with cred.
//
// Dial failures and handshakes cut short by a still-booting sshd match
// cloud.ErrConnectionRefused. A refused credential matches
// cloud.ErrAuthenticationRejected.
func (c *Connector) Connect(ctx context.Context, address string, cred bootstrap.Credential) (bootstrap.Shell, error) {
	auth, err := authMethods(cred)
	if err != nil {
		return nil, err
	}

	clientConfig := &ssh.ClientConfig{
		User:            cred.User,
		Auth:            auth,
		HostKeyCallback: c.config.HostKeyCallback,
		Timeout:         c.config.DialTimeout,
	}

	addr := net.JoinHostPort(address, strconv.Itoa(c.config.Port))

	dialCtx, cancel := context.WithTimeout(ctx, c.config.DialTimeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s: %v", cloud.ErrConnectionRefused, addr, err)
	}

	// The handshake has no context support; bound it with a deadline.
	if deadline, ok := dialCtx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, clientConfig)
	if err != nil {
		_ = conn.Close()
		return nil, classifyHandshakeError(addr, cred.User, err)
	}
	_ = conn.SetDeadline(time.Time{})

	return &Shell{
		client:     ssh.NewClient(sshConn, chans, reqs),
		host:       address,
		remotePath: c.config.RemotePath,
	}, nil
}

func authMethods(cred bootstrap.Credential) ([]ssh.AuthMethod, error) {
	if len(cred.PrivateKey) > 0 {
		signer, err := ssh.ParsePrivateKey(cred.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}
	if cred.Password != "" {
		return []ssh.AuthMethod{ssh.Password(cred.Password)}, nil
	}
	return nil, fmt.Errorf("%w for user %q", bootstrap.ErrNoCredential, cred.User)
}

func classifyHandshakeError(addr, user string, err error) error {
	if strings.Contains(err.Error(), "unable to authenticate") {
		return fmt.Errorf("%w: %s@%s: %v", cloud.ErrAuthenticationRejected, user, addr, err)
	}
	return fmt.Errorf("%w: %s: handshake: %v", cloud.ErrConnectionRefused, addr, err)
}

// Shell is an authenticated SSH connection to one node.
type Shell struct {
	client     *ssh.Client
	host       string
	remotePath string
}

// RunScript writes body to the remote path, marks it executable and runs it.
func (s *Shell) RunScript(ctx context.Context, body string) (bootstrap.ExecResult, error) {
	path := shellQuote(s.remotePath)

	upload := fmt.Sprintf("cat > %s && chmod 0700 %s", path, path)
	res, err := s.run(ctx, upload, strings.NewReader(body))
	if err != nil {
		return res, fmt.Errorf("failed to upload script to %s:%s: %w", s.host, s.remotePath, err)
	}
	if res.ExitCode != 0 {
		return res, nil
	}

	return s.run(ctx, path, nil)
}

// run executes command in a new session. A remote non-zero exit is
// reported in the result; only transport failures are errors.
func (s *Shell) run(ctx context.Context, command string, stdin io.Reader) (bootstrap.ExecResult, error) {
	session, err := s.client.NewSession()
	if err != nil {
		return bootstrap.ExecResult{ExitCode: -1}, fmt.Errorf("failed to create SSH session on %s: %w", s.host, err)
	}
	defer func() { _ = session.Close() }()

	if stdin != nil {
		session.Stdin = stdin
	}

	type result struct {
		output []byte
		err    error
	}
	done := make(chan result, 1)
	go func() {
		out, err := session.CombinedOutput(command)
		done <- result{out, err}
	}()

	var r result
	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		_ = session.Close()
		return bootstrap.ExecResult{ExitCode: -1}, ctx.Err()
	case r = <-done:
	}

	res := bootstrap.ExecResult{Output: string(r.output)}
	if r.err == nil {
		return res, nil
	}

	var exitErr *ssh.ExitError
	if errors.As(r.err, &exitErr) {
		res.ExitCode = exitErr.ExitStatus()
		return res, nil
	}
	res.ExitCode = -1
	return res, fmt.Errorf("command failed on %s: %w", s.host, r.err)
}

// Close closes the underlying connection.
func (s *Shell) Close() error {
	return s.client.Close()
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
