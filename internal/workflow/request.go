package workflow

import (
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/imamik/nodeseed/internal/bootstrap"
	"github.com/imamik/nodeseed/internal/catalog"
	"github.com/imamik/nodeseed/internal/cloud"
	"github.com/imamik/nodeseed/internal/config"
	"github.com/imamik/nodeseed/internal/util/naming"
)

// ErrInvalidRequest is returned for a request rejected before any provider
// call.
var ErrInvalidRequest = errors.New("invalid request")

// Request asks for one VM. It is immutable once submitted.
type Request struct {
	Name     string
	Image    string
	Size     string
	Location string
	Labels   map[string]string
}

// RequestFromVM converts a configured VM.
func RequestFromVM(vm config.VM) Request {
	return Request{
		Name:     vm.Name,
		Image:    vm.Image,
		Size:     vm.Size,
		Location: vm.Location,
		Labels:   maps.Clone(vm.Labels),
	}
}

// RequestsFromConfig returns the requests for the named VMs, or for every
// VM when names is empty.
func RequestsFromConfig(cfg *config.Config, names []string) ([]Request, error) {
	if len(names) == 0 {
		reqs := make([]Request, 0, len(cfg.VMs))
		for _, vm := range cfg.VMs {
			reqs = append(reqs, RequestFromVM(vm))
		}
		return reqs, nil
	}

	reqs := make([]Request, 0, len(names))
	for _, name := range names {
		vm, ok := cfg.FindVM(name)
		if !ok {
			return nil, fmt.Errorf("vm %q is not defined in the configuration", name)
		}
		reqs = append(reqs, RequestFromVM(vm))
	}
	return reqs, nil
}

// Validate checks the request without contacting the provider.
func (r Request) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRequest)
	}
	if !naming.IsHostname(r.Name) {
		return fmt.Errorf("%w: %q is not a valid hostname", ErrInvalidRequest, r.Name)
	}
	if r.Image == "" {
		return fmt.Errorf("%w: image is required for %s", ErrInvalidRequest, r.Name)
	}
	if r.Size == "" {
		return fmt.Errorf("%w: size is required for %s", ErrInvalidRequest, r.Name)
	}
	return nil
}

// Result is the outcome of one run.
type Result struct {
	RunID     string
	Request   Request
	Selection *catalog.Selection
	// Node is set as soon as the provider accepted the create request.
	Node *cloud.NodeRecord
	// Address is the address the bootstrap connected to.
	Address     string
	Outcome     *bootstrap.Outcome
	State       State
	Transitions []Transition
	Err         error
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Created reports whether a node exists at the provider.
func (r *Result) Created() bool {
	return r.Node != nil && r.Node.ID != ""
}

// Succeeded reports whether the node was created and bootstrapped.
func (r *Result) Succeeded() bool {
	return r.State == StateBootstrapSucceeded
}

// Duration returns the wall time of the run.
func (r *Result) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
