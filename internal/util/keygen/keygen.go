package keygen

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"golang.org/x/crypto/ssh"
)

// KeyPair holds an SSH key pair in ready-to-use formats.
type KeyPair struct {
	// PrivateKey is the PEM-encoded private key, parseable by ssh.ParsePrivateKey.
	PrivateKey []byte
	// PublicKey is the public key in OpenSSH authorized_keys format.
	PublicKey []byte
	// Fingerprint is the SHA256 fingerprint of the public key.
	Fingerprint string
}

// AuthorizedKey returns the public key without the trailing newline,
// ready to embed in cloud-init user data.
func (k *KeyPair) AuthorizedKey() string {
	n := len(k.PublicKey)
	if n > 0 && k.PublicKey[n-1] == '\n' {
		return string(k.PublicKey[:n-1])
	}
	return string(k.PublicKey)
}

// GenerateRSAKeyPair generates a new RSA key pair with the specified bit size.
func GenerateRSAKeyPair(bits int) (*KeyPair, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA private key: %w", err)
	}
	if err := privateKey.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate RSA private key: %w", err)
	}

	privateKeyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	})

	return newKeyPair(privateKeyPEM, &privateKey.PublicKey)
}

// GenerateED25519KeyPair generates a new Ed25519 key pair. The private key
// is encoded in the OpenSSH private key format.
func GenerateED25519KeyPair(comment string) (*KeyPair, error) {
	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key: %w", err)
	}

	block, err := ssh.MarshalPrivateKey(privateKey, comment)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ed25519 private key: %w", err)
	}

	return newKeyPair(pem.EncodeToMemory(block), publicKey)
}

func newKeyPair(privateKeyPEM []byte, public any) (*KeyPair, error) {
	sshPublicKey, err := ssh.NewPublicKey(public)
	if err != nil {
		return nil, fmt.Errorf("failed to create SSH public key: %w", err)
	}

	return &KeyPair{
		PrivateKey:  privateKeyPEM,
		PublicKey:   ssh.MarshalAuthorizedKey(sshPublicKey),
		Fingerprint: ssh.FingerprintSHA256(sshPublicKey),
	}, nil
}
