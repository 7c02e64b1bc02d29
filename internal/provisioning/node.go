package provisioning

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/nodeseed/internal/cloud"
	"github.com/imamik/nodeseed/internal/metrics"
	"github.com/imamik/nodeseed/internal/progress"
	"github.com/imamik/nodeseed/internal/util/retry"
)

const (
	defaultMaxPolls        = 30
	defaultInitialInterval = 2 * time.Second
	defaultMaxInterval     = 30 * time.Second
	defaultTimeout         = 5 * time.Minute
)

var errNoAddress = errors.New("node has no address yet")

// API is the part of a provider handle the provisioner needs.
type API interface {
	CreateNode(ctx context.Context, req cloud.CreateNodeRequest) (*cloud.NodeRecord, error)
	GetNode(ctx context.Context, id string) (*cloud.NodeRecord, error)
}

// WaitConfig bounds the address poll loop.
type WaitConfig struct {
	// MaxPolls is the number of GetNode calls before giving up.
	MaxPolls        int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// Timeout caps the whole wait regardless of MaxPolls.
	Timeout time.Duration
}

func (w WaitConfig) withDefaults() WaitConfig {
	if w.MaxPolls <= 0 {
		w.MaxPolls = defaultMaxPolls
	}
	if w.InitialInterval <= 0 {
		w.InitialInterval = defaultInitialInterval
	}
	if w.MaxInterval <= 0 {
		w.MaxInterval = defaultMaxInterval
	}
	if w.Timeout <= 0 {
		w.Timeout = defaultTimeout
	}
	return w
}

// Spec describes one node to provision.
type Spec struct {
	Request cloud.CreateNodeRequest
	// Family selects which address must appear. Defaults to public.
	Family cloud.AddressFamily
}

// Provisioner creates nodes and waits for their address.
type Provisioner struct {
	wait     WaitConfig
	observer progress.Observer
	metrics  *metrics.Recorder
	log      logr.Logger

	// onSubmitted is called once the provider accepted the create request.
	onSubmitted func(*cloud.NodeRecord)
}

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithObserver sets the progress observer.
func WithObserver(o progress.Observer) Option {
	return func(p *Provisioner) {
		p.observer = o
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Recorder) Option {
	return func(p *Provisioner) {
		p.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(log logr.Logger) Option {
	return func(p *Provisioner) {
		p.log = log
	}
}

// WithSubmittedHook registers fn to run right after the create request was
// accepted, before polling starts.
func WithSubmittedHook(fn func(*cloud.NodeRecord)) Option {
	return func(p *Provisioner) {
		p.onSubmitted = fn
	}
}

// NewProvisioner creates a Provisioner. Zero fields of wait get defaults.
func NewProvisioner(wait WaitConfig, opts ...Option) *Provisioner {
	p := &Provisioner{
		wait: wait.withDefaults(),
		log:  logr.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Provision creates the node and waits for an address of spec.Family.
//
// Before the create request is accepted no node exists and the returned
// record is nil. After that, the latest known record is always returned,
// also together with an error. A nil error guarantees
// node.Address(spec.Family) is non-empty.
func (p *Provisioner) Provision(ctx context.Context, api API, spec Spec) (*cloud.NodeRecord, error) {
	family := spec.Family
	if family == "" {
		family = cloud.AddressPublic
	}
	name := spec.Request.Name

	progress.Emit(p.observer, progress.Event{
		Type:    progress.EventNodeCreating,
		Node:    name,
		Message: fmt.Sprintf("submitting create request (image=%s, size=%s)", spec.Request.Image.Name, spec.Request.Size.Name),
	})

	node, err := api.CreateNode(ctx, spec.Request)
	if err != nil {
		if errors.Is(err, cloud.ErrProvision) {
			return nil, err
		}
		return nil, &cloud.ProvisionError{Name: name, Reason: "create request rejected", Err: err}
	}
	if node == nil || node.ID == "" {
		return nil, &cloud.ProvisionError{Name: name, Reason: "provider returned no node"}
	}

	p.log.Info("node created", "node", name, "id", node.ID, "status", node.Status)
	progress.Emit(p.observer, progress.Event{
		Type:    progress.EventNodeCreated,
		Node:    name,
		Message: "create request accepted",
		Fields:  map[string]string{"id": node.ID},
	})
	if p.onSubmitted != nil {
		p.onSubmitted(node.Clone())
	}

	if addr := node.Address(family); addr != "" {
		p.assigned(name, addr, 0)
		return node, nil
	}

	return p.waitForAddress(ctx, api, node, family)
}

func (p *Provisioner) waitForAddress(ctx context.Context, api API, node *cloud.NodeRecord, family cloud.AddressFamily) (*cloud.NodeRecord, error) {
	waitCtx, cancel := context.WithTimeout(ctx, p.wait.Timeout)
	defer cancel()

	start := time.Now()
	latest := node
	polls := 0
	var lastPollErr error

	err := retry.WithExponentialBackoff(waitCtx, func(attempt int) error {
		polls = attempt
		current, err := api.GetNode(waitCtx, node.ID)
		if err != nil {
			lastPollErr = err
			return err
		}
		if current == nil {
			lastPollErr = fmt.Errorf("node %s disappeared", node.ID)
			return lastPollErr
		}
		latest = mergeRecord(latest, current)
		lastPollErr = nil

		if current.Status == cloud.NodeStatusError {
			return retry.Fatal(&cloud.ProvisionError{Name: node.Name, Reason: "node entered error state"})
		}
		if current.Address(family) == "" {
			return errNoAddress
		}
		return nil
	},
		retry.WithMaxAttempts(p.wait.MaxPolls),
		retry.WithInitialDelay(p.wait.InitialInterval),
		retry.WithMaxDelay(p.wait.MaxInterval),
		retry.WithOnRetry(func(attempt int, delay time.Duration, err error) {
			progress.Emit(p.observer, progress.Event{
				Type:    progress.EventAddressPolling,
				Node:    node.Name,
				Message: err.Error(),
				Fields: map[string]string{
					"poll":   strconv.Itoa(attempt),
					"next":   delay.String(),
					"family": string(family),
				},
			})
		}),
	)

	switch {
	case err == nil:
		p.assigned(node.Name, latest.Address(family), polls)
		return latest, nil

	case errors.Is(err, cloud.ErrProvision):
		return latest, err

	case ctx.Err() != nil:
		return latest, fmt.Errorf("waiting for address of %s: %w", node.Name, ctx.Err())

	default:
		return latest, &cloud.AddressTimeoutError{
			NodeID: node.ID,
			Family: family,
			Polls:  polls,
			Waited: time.Since(start),
			Err:    lastPollErr,
		}
	}
}

func (p *Provisioner) assigned(name, addr string, polls int) {
	p.metrics.RecordAddressPolls(polls)
	p.log.Info("node address assigned", "node", name, "address", addr, "polls", polls)
	progress.Emit(p.observer, progress.Event{
		Type:    progress.EventAddressAssigned,
		Node:    name,
		Message: addr,
		Fields:  map[string]string{"polls": strconv.Itoa(polls)},
	})
}

// mergeRecord takes current as the new truth but keeps extras only the
// create response carried, such as the generated root password.
func mergeRecord(previous, current *cloud.NodeRecord) *cloud.NodeRecord {
	merged := current.Clone()
	if merged.Name == "" {
		merged.Name = previous.Name
	}
	for k, v := range previous.Extra {
		if merged.Extra == nil {
			merged.Extra = make(map[string]string)
		}
		if _, ok := merged.Extra[k]; !ok {
			merged.Extra[k] = v
		}
	}
	return merged
}
