package cloud

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors. Every error returned by a provisioning phase matches
// exactly one of these with errors.Is.
var (
	ErrAuthentication         = errors.New("authentication failed")
	ErrEndpointUnreachable    = errors.New("provider endpoint unreachable")
	ErrImageNotFound          = errors.New("image not found")
	ErrSizeNotFound           = errors.New("size not found")
	ErrAmbiguousSelection     = errors.New("ambiguous catalog selection")
	ErrProvision              = errors.New("node provisioning failed")
	ErrAddressTimeout         = errors.New("timed out waiting for node address")
	ErrConnectionRefused      = errors.New("remote shell connection refused")
	ErrAuthenticationRejected = errors.New("remote shell authentication rejected")
	ErrScriptExecution        = errors.New("bootstrap script failed")
)

// CatalogKind names a catalog.
type CatalogKind string

const (
	CatalogImage CatalogKind = "image"
	CatalogSize  CatalogKind = "size"
)

// NotFoundError reports that no catalog entry matched an identifier.
type NotFoundError struct {
	Kind       CatalogKind
	Query      string
	Candidates []string
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("%s not found: %q", e.Kind, e.Query)
	if len(e.Candidates) > 0 {
		msg += fmt.Sprintf(" (did you mean: %s)", strings.Join(e.Candidates, ", "))
	}
	return msg
}

func (e *NotFoundError) Is(target error) bool {
	switch e.Kind {
	case CatalogImage:
		return target == ErrImageNotFound
	case CatalogSize:
		return target == ErrSizeNotFound
	}
	return false
}

// AmbiguousSelectionError reports that an identifier matched several entries.
type AmbiguousSelectionError struct {
	Kind    CatalogKind
	Query   string
	Matches []string
}

func (e *AmbiguousSelectionError) Error() string {
	return fmt.Sprintf("%s %q is ambiguous, matches IDs: %s", e.Kind, e.Query, strings.Join(e.Matches, ", "))
}

func (e *AmbiguousSelectionError) Is(target error) bool {
	return target == ErrAmbiguousSelection
}

// ProvisionError wraps the provider's rejection of a create request.
type ProvisionError struct {
	Name   string
	Reason string
	Err    error
}

func (e *ProvisionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to provision %s: %s: %v", e.Name, e.Reason, e.Err)
	}
	return fmt.Sprintf("failed to provision %s: %s", e.Name, e.Reason)
}

func (e *ProvisionError) Unwrap() error {
	return e.Err
}

func (e *ProvisionError) Is(target error) bool {
	return target == ErrProvision
}

// AddressTimeoutError reports that a node got no usable address in time.
type AddressTimeoutError struct {
	NodeID string
	Family AddressFamily
	Polls  int
	Waited time.Duration
	Err    error
}

func (e *AddressTimeoutError) Error() string {
	msg := fmt.Sprintf("node %s has no %s address after %d polls (%s)",
		e.NodeID, e.Family, e.Polls, e.Waited.Round(time.Millisecond))
	if e.Err != nil {
		msg += fmt.Sprintf(": last error: %v", e.Err)
	}
	return msg
}

func (e *AddressTimeoutError) Unwrap() error {
	return e.Err
}

func (e *AddressTimeoutError) Is(target error) bool {
	return target == ErrAddressTimeout
}

// ScriptExecutionError reports a bootstrap script exiting non-zero.
type ScriptExecutionError struct {
	Host     string
	ExitCode int
	Output   string
}

func (e *ScriptExecutionError) Error() string {
	return fmt.Sprintf("bootstrap script on %s exited with status %d", e.Host, e.ExitCode)
}

func (e *ScriptExecutionError) Is(target error) bool {
	return target == ErrScriptExecution
}

// Kind returns the name of the taxonomy entry err belongs to, or "" when
// err is nil or unclassified. Phase errors that wrap a lower-level cause
// are checked first so the outermost classification wins.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range []struct {
		sentinel error
		name     string
	}{
		{ErrAddressTimeout, "AddressTimeoutError"},
		{ErrProvision, "ProvisionError"},
		{ErrScriptExecution, "ScriptExecutionError"},
		{ErrAmbiguousSelection, "AmbiguousSelectionError"},
		{ErrImageNotFound, "ImageNotFoundError"},
		{ErrSizeNotFound, "SizeNotFoundError"},
		{ErrConnectionRefused, "ConnectionRefusedError"},
		{ErrAuthenticationRejected, "AuthenticationRejectedError"},
		{ErrAuthentication, "AuthenticationError"},
		{ErrEndpointUnreachable, "EndpointUnreachableError"},
	} {
		if errors.Is(err, k.sentinel) {
			return k.name
		}
	}
	return ""
}
