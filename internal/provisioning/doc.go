// Package provisioning creates a node at the provider and waits until it
// reports a usable network address.
//
// [Provisioner.Provision] submits the create request once, then polls the
// node with bounded exponential backoff. It never returns a node without an
// address together with a nil error: when the poll budget or the timeout is
// exhausted it fails with [cloud.AddressTimeoutError]. Once the create
// request has been accepted the node record is returned alongside any error,
// because the instance keeps running at the provider.
package provisioning
