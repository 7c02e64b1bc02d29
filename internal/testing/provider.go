package testing

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/imamik/nodeseed/internal/cloud"
)

// NodeScript scripts how the fake provider treats one node.
type NodeScript struct {
	// AssignAfter is the GetNode call on which the address appears. Zero
	// assigns it in the create response; a negative value never assigns.
	AssignAfter int
	Address     string
	// PrivateAddress is assigned together with Address.
	PrivateAddress string
	// CreateErr rejects the create request.
	CreateErr error
	// FailAfter puts the node in error state on the given GetNode call.
	FailAfter int
}

// FakeProvider is an in-memory compute driver. The exported fields are
// defaults for every node; Scripts overrides them per node name. Configure
// it before use; afterwards it is safe for concurrent use.
type FakeProvider struct {
	Images []cloud.Image
	Sizes  []cloud.Size

	AuthErr        error
	AssignAfter    int
	Address        string
	PrivateAddress string
	Password       string
	CreateErr      error
	Scripts        map[string]NodeScript

	mu       sync.Mutex
	nextID   int
	nodes    map[string]*fakeNode
	auths    []cloud.Credentials
	requests []cloud.CreateNodeRequest
}

type fakeNode struct {
	record *cloud.NodeRecord
	script NodeScript
	polls  int
}

// NewFakeProvider creates a provider serving the given catalogs. Nodes get
// the password "s3cret" and the address 203.0.113.5 in the create response.
func NewFakeProvider(images []cloud.Image, sizes []cloud.Size) *FakeProvider {
	return &FakeProvider{
		Images:   images,
		Sizes:    sizes,
		Address:  "203.0.113.5",
		Password: "s3cret",
		nextID:   1000,
		nodes:    map[string]*fakeNode{},
	}
}

// Authenticate implements cloud.Driver.
func (p *FakeProvider) Authenticate(_ context.Context, creds cloud.Credentials) (cloud.Compute, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.auths = append(p.auths, creds)
	if p.AuthErr != nil {
		return nil, p.AuthErr
	}
	return p, nil
}

// ListImages implements cloud.Compute.
func (p *FakeProvider) ListImages(context.Context) ([]cloud.Image, error) {
	return append([]cloud.Image(nil), p.Images...), nil
}

// ListSizes implements cloud.Compute.
func (p *FakeProvider) ListSizes(context.Context) ([]cloud.Size, error) {
	return append([]cloud.Size(nil), p.Sizes...), nil
}

// CreateNode implements cloud.Compute.
func (p *FakeProvider) CreateNode(_ context.Context, req cloud.CreateNodeRequest) (*cloud.NodeRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)

	script := p.scriptFor(req.Name)
	if script.CreateErr != nil {
		return nil, script.CreateErr
	}
	for _, n := range p.nodes {
		if n.record.Name == req.Name {
			return nil, &cloud.ProvisionError{Name: req.Name, Reason: "name already in use"}
		}
	}

	p.nextID++
	record := &cloud.NodeRecord{
		ID:      strconv.Itoa(p.nextID),
		Name:    req.Name,
		Status:  cloud.NodeStatusPending,
		Created: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC),
		Extra: map[string]string{
			cloud.ExtraImage: req.Image.Name,
			cloud.ExtraSize:  req.Size.Name,
		},
	}
	if p.Password != "" {
		record.Extra[cloud.ExtraPassword] = p.Password
	}
	node := &fakeNode{record: record, script: script}
	if script.AssignAfter == 0 {
		node.assign()
	}
	p.nodes[record.ID] = node
	return record.Clone(), nil
}

// GetNode implements cloud.Compute.
func (p *FakeProvider) GetNode(_ context.Context, id string) (*cloud.NodeRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	node, ok := p.nodes[id]
	if !ok {
		return nil, fmt.Errorf("server not found: %s", id)
	}
	node.polls++
	if node.script.FailAfter > 0 && node.polls >= node.script.FailAfter {
		node.record.Status = cloud.NodeStatusError
	} else if node.script.AssignAfter > 0 && node.polls >= node.script.AssignAfter {
		node.assign()
	}

	record := node.record.Clone()
	// The password is only returned by the create call.
	delete(record.Extra, cloud.ExtraPassword)
	return record, nil
}

// ListNodes implements cloud.Compute.
func (p *FakeProvider) ListNodes(context.Context) ([]*cloud.NodeRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*cloud.NodeRecord, 0, len(p.nodes))
	for _, n := range p.nodes {
		out = append(out, n.record.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// DestroyNode implements cloud.Compute.
func (p *FakeProvider) DestroyNode(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.nodes, id)
	return nil
}

// AuthCalls returns the credentials passed to Authenticate.
func (p *FakeProvider) AuthCalls() []cloud.Credentials {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]cloud.Credentials(nil), p.auths...)
}

// CreateRequests returns the create requests received so far.
func (p *FakeProvider) CreateRequests() []cloud.CreateNodeRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]cloud.CreateNodeRequest(nil), p.requests...)
}

// Polls returns how often GetNode was called for the named node.
func (p *FakeProvider) Polls(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, n := range p.nodes {
		if n.record.Name == name {
			return n.polls
		}
	}
	return 0
}

func (p *FakeProvider) scriptFor(name string) NodeScript {
	if s, ok := p.Scripts[name]; ok {
		return s
	}
	return NodeScript{
		AssignAfter:    p.AssignAfter,
		Address:        p.Address,
		PrivateAddress: p.PrivateAddress,
		CreateErr:      p.CreateErr,
	}
}

func (n *fakeNode) assign() {
	n.record.Status = cloud.NodeStatusRunning
	if n.script.Address != "" {
		n.record.PublicIPs = []string{n.script.Address}
	}
	if n.script.PrivateAddress != "" {
		n.record.PrivateIPs = []string{n.script.PrivateAddress}
	}
}
