package hcloud

import (
	"context"
	"errors"
	"fmt"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/nodeseed/internal/cloud"
)

const (
	errorCodeUniqueness    hcloud.ErrorCode = "uniqueness_error"
	errorCodeResourceLimit hcloud.ErrorCode = "resource_limit_exceeded"
	errorCodePlacement     hcloud.ErrorCode = "placement_error"
)

// isHCloudErrorCode checks if the error is an hcloud API error with one of the given codes.
func isHCloudErrorCode(err error, codes ...hcloud.ErrorCode) bool {
	if err == nil {
		return false
	}

	var hcloudErr hcloud.Error
	if errors.As(err, &hcloudErr) {
		for _, code := range codes {
			if hcloudErr.Code == code {
				return true
			}
		}
	}
	return false
}

// IsNotFound checks if an error indicates a resource was not found.
func IsNotFound(err error) bool {
	return isHCloudErrorCode(err, hcloud.ErrorCodeNotFound)
}

// IsRateLimited checks if an error indicates rate limiting.
func IsRateLimited(err error) bool {
	return isHCloudErrorCode(err, hcloud.ErrorCodeRateLimitExceeded)
}

// isCredentialError reports errors caused by a missing, invalid or
// insufficiently scoped token.
func isCredentialError(err error) bool {
	return isHCloudErrorCode(err, hcloud.ErrorCodeUnauthorized, hcloud.ErrorCodeForbidden)
}

// classifyAuthError maps a failed credential check onto the taxonomy.
func classifyAuthError(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case isCredentialError(err):
		return fmt.Errorf("%w: %w", cloud.ErrAuthentication, err)
	default:
		return fmt.Errorf("%w: %w", cloud.ErrEndpointUnreachable, err)
	}
}

// createRejection turns a failed server create into a *cloud.ProvisionError.
func createRejection(name string, err error) error {
	reason := "create request failed"
	var hcloudErr hcloud.Error
	if errors.As(err, &hcloudErr) {
		switch hcloudErr.Code {
		case errorCodeUniqueness:
			reason = "name already in use"
		case errorCodeResourceLimit:
			reason = "resource limit exceeded"
		case hcloud.ErrorCodeInvalidInput, hcloud.ErrorCodeInvalidServerType:
			reason = "invalid input"
		case errorCodePlacement, hcloud.ErrorCodeResourceUnavailable:
			reason = "no capacity for the requested size and location"
		case hcloud.ErrorCodeUnauthorized, hcloud.ErrorCodeForbidden:
			reason = "not permitted"
		default:
			reason = string(hcloudErr.Code)
		}
	}
	return &cloud.ProvisionError{Name: name, Reason: reason, Err: err}
}
