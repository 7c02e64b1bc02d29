// Package bootstrap pushes a setup script onto a freshly provisioned node
// and runs it over a remote shell.
//
// The shell itself is abstracted by [Connector] and [Shell] so that the
// deployer can be driven by the SSH implementation in platform/ssh or by an
// in-memory fake. Connection attempts are retried while the node's shell
// daemon is still coming up; rejected credentials and script failures are
// reported at once.
//
// Scripts are Go templates with the sprig function set. When no script is
// configured, [DefaultScript] installs a Salt minion.
package bootstrap
