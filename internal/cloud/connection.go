package cloud

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/time/rate"

	"github.com/imamik/nodeseed/internal/metrics"
)

// Handle is an authenticated provider session owned by one workflow run.
// Every call waits on the shared rate limiter first.
type Handle struct {
	compute Compute
	user    string
	tenant  string
	limiter *rate.Limiter
	metrics *metrics.Recorder
	log     logr.Logger
}

// Option configures a Handle.
type Option func(*Handle)

// WithLimiter shares a rate limiter across handles. A nil limiter disables
// rate limiting.
func WithLimiter(l *rate.Limiter) Option {
	return func(h *Handle) {
		h.limiter = l
	}
}

// WithMetrics records API call metrics on m.
func WithMetrics(m *metrics.Recorder) Option {
	return func(h *Handle) {
		h.metrics = m
	}
}

// WithLogger sets the logger used for API call tracing.
func WithLogger(log logr.Logger) Option {
	return func(h *Handle) {
		h.log = log
	}
}

// Connect authenticates creds through driver. It does not retry: a failed
// authentication is surfaced immediately as ErrAuthentication or
// ErrEndpointUnreachable.
func Connect(ctx context.Context, creds Credentials, driver Driver, opts ...Option) (*Handle, error) {
	if driver == nil {
		return nil, fmt.Errorf("driver cannot be nil")
	}
	if creds.APIKey == "" {
		return nil, fmt.Errorf("%w: api key is empty", ErrAuthentication)
	}

	h := &Handle{
		user:   creds.User,
		tenant: creds.TenantName,
		log:    logr.Discard(),
	}
	for _, opt := range opts {
		opt(h)
	}

	var compute Compute
	err := h.call(ctx, "authenticate", func(ctx context.Context) error {
		var authErr error
		compute, authErr = driver.Authenticate(ctx, creds)
		return authErr
	})
	if err != nil {
		if errors.Is(err, ErrAuthentication) || errors.Is(err, ErrEndpointUnreachable) || ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrEndpointUnreachable, err)
	}
	if compute == nil {
		return nil, fmt.Errorf("%w: driver returned no session", ErrAuthentication)
	}

	h.compute = compute
	h.log.V(1).Info("authenticated with provider", "user", creds.User, "tenant", creds.TenantName)
	return h, nil
}

// NewHandle wraps an already authenticated Compute. It is meant for tests
// and for callers that manage authentication themselves.
func NewHandle(compute Compute, opts ...Option) *Handle {
	h := &Handle{compute: compute, log: logr.Discard()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Tenant returns the tenant the handle authenticated for.
func (h *Handle) Tenant() string {
	return h.tenant
}

// ListImages returns the image catalog.
func (h *Handle) ListImages(ctx context.Context) ([]Image, error) {
	var images []Image
	err := h.call(ctx, "list_images", func(ctx context.Context) error {
		var err error
		images, err = h.compute.ListImages(ctx)
		return err
	})
	return images, err
}

// ListSizes returns the size catalog.
func (h *Handle) ListSizes(ctx context.Context) ([]Size, error) {
	var sizes []Size
	err := h.call(ctx, "list_sizes", func(ctx context.Context) error {
		var err error
		sizes, err = h.compute.ListSizes(ctx)
		return err
	})
	return sizes, err
}

// CreateNode submits a create request.
func (h *Handle) CreateNode(ctx context.Context, req CreateNodeRequest) (*NodeRecord, error) {
	var node *NodeRecord
	err := h.call(ctx, "create_node", func(ctx context.Context) error {
		var err error
		node, err = h.compute.CreateNode(ctx, req)
		return err
	})
	return node, err
}

// GetNode fetches the current state of a node.
func (h *Handle) GetNode(ctx context.Context, id string) (*NodeRecord, error) {
	var node *NodeRecord
	err := h.call(ctx, "get_node", func(ctx context.Context) error {
		var err error
		node, err = h.compute.GetNode(ctx, id)
		return err
	})
	return node, err
}

// ListNodes lists all nodes visible to the account.
func (h *Handle) ListNodes(ctx context.Context) ([]*NodeRecord, error) {
	var nodes []*NodeRecord
	err := h.call(ctx, "list_nodes", func(ctx context.Context) error {
		var err error
		nodes, err = h.compute.ListNodes(ctx)
		return err
	})
	return nodes, err
}

// DestroyNode deletes a node by ID.
func (h *Handle) DestroyNode(ctx context.Context, id string) error {
	return h.call(ctx, "destroy_node", func(ctx context.Context) error {
		return h.compute.DestroyNode(ctx, id)
	})
}

func (h *Handle) call(ctx context.Context, operation string, fn func(context.Context) error) error {
	if h.limiter != nil {
		if err := h.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter wait for %s: %w", operation, err)
		}
	}

	start := time.Now()
	err := fn(ctx)
	latency := time.Since(start)

	h.metrics.RecordAPICall(operation, err, latency)
	h.log.V(2).Info("provider call", "operation", operation, "latency", latency, "error", err)
	return err
}
