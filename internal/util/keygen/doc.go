// Package keygen generates ephemeral SSH key pairs.
//
// A generated public key is injected into a new node through cloud-init
// user data so the bootstrap step can authenticate with the private half
// instead of the provider-issued root password.
package keygen
