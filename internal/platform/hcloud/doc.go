// Package hcloud implements the compute driver on top of the Hetzner Cloud
// API.
//
// [Driver] turns account credentials into an authenticated [Compute]. The
// API token is the account's API key; an auth endpoint overrides the API
// base URL. The tenant name is attached to every created server as a label
// and used to scope listings.
//
// Servers are created without waiting for the create action: the
// provisioner polls GetNode until an address shows up. Provider error codes
// are mapped onto the error taxonomy in internal/cloud.
package hcloud
