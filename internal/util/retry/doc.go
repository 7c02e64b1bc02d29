// Package retry provides bounded exponential backoff for the two wait loops
// in a provisioning run: polling the provider for a node address and
// dialing a freshly booted host over SSH.
//
// [WithExponentialBackoff] runs an operation a fixed number of times with
// growing delays. Errors wrapped with [Fatal] stop the loop immediately.
package retry
