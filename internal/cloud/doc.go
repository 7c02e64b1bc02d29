// Package cloud defines the provider-facing data model of a provisioning
// run and the error taxonomy shared by every phase.
//
// A [Driver] authenticates [Credentials] and yields a [Compute] API; [Connect]
// wraps that API in a [Handle] which applies the shared rate limiter and
// records call metrics. Real drivers live under internal/platform.
package cloud
