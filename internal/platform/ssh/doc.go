// Package ssh runs bootstrap scripts on freshly created nodes over SSH.
//
// A [Connector] makes one connection attempt per call and classifies its
// failure so the bootstrap deployer can tell a host that is still booting
// from one that refused the credential. Password and public key logins are
// both supported since providers hand out a root password by default.
//
// Security: Host key verification is disabled by default. Configure
// HostKeyCallback when the host keys are known in advance.
package ssh
