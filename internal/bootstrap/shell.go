package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/imamik/nodeseed/internal/cloud"
	"github.com/imamik/nodeseed/internal/util/keygen"
)

// Credential authenticates a remote shell login. Exactly one of Password
// and PrivateKey is normally set; PrivateKey wins when both are.
type Credential struct {
	User       string
	Password   string
	PrivateKey []byte
}

// Method names the authentication method, for logs.
func (c Credential) Method() string {
	switch {
	case len(c.PrivateKey) > 0:
		return "publickey"
	case c.Password != "":
		return "password"
	default:
		return "none"
	}
}

// ExecResult is the result of a finished remote script.
type ExecResult struct {
	ExitCode int
	// Output is stdout and stderr combined.
	Output string
}

// Shell is an open remote shell session.
type Shell interface {
	// RunScript uploads body and executes it. A non-zero exit is reported
	// through ExecResult, not as an error.
	RunScript(ctx context.Context, body string) (ExecResult, error)
	Close() error
}

// Connector opens remote shells.
//
// Connect must return an error matching cloud.ErrConnectionRefused when the
// host is not accepting connections yet, and cloud.ErrAuthenticationRejected
// when the credential was refused.
type Connector interface {
	Connect(ctx context.Context, address string, cred Credential) (Shell, error)
}

// ErrNoCredential is returned when a node offers neither a generated key
// nor a root password.
var ErrNoCredential = errors.New("no credential available for node")

// NodeCredential picks the login for node. A generated key pair takes
// precedence over the provider's root password.
func NodeCredential(user string, node *cloud.NodeRecord, key *keygen.KeyPair) (Credential, error) {
	if user == "" {
		user = "root"
	}
	if key != nil && len(key.PrivateKey) > 0 {
		return Credential{User: user, PrivateKey: key.PrivateKey}, nil
	}
	if pw := node.Password(); pw != "" {
		return Credential{User: user, Password: pw}, nil
	}
	name := ""
	if node != nil {
		name = node.Name
	}
	return Credential{}, fmt.Errorf("%w %q", ErrNoCredential, name)
}
