package cloud

import (
	"context"
	"sort"
	"strings"
	"time"
)

// Credentials identify an account at the provider.
type Credentials struct {
	User         string
	APIKey       string
	AuthEndpoint string
	TenantName   string
}

// Image is a catalog entry for a bootable image.
type Image struct {
	ID           string
	Name         string
	Description  string
	Architecture string
}

// Size is a catalog entry for a machine size.
type Size struct {
	ID           string
	Name         string
	Description  string
	Cores        int
	MemoryGB     float64
	DiskGB       int
	Architecture string
}

// NodeStatus is the provider-reported lifecycle status of a node,
// normalized across drivers.
type NodeStatus string

const (
	NodeStatusPending NodeStatus = "pending"
	NodeStatusRunning NodeStatus = "running"
	NodeStatusStopped NodeStatus = "stopped"
	NodeStatusError   NodeStatus = "error"
	NodeStatusUnknown NodeStatus = "unknown"
)

// AddressFamily selects which node address the bootstrap connects to.
type AddressFamily string

const (
	AddressPublic  AddressFamily = "public"
	AddressPrivate AddressFamily = "private"
)

// Well-known keys of NodeRecord.Extra.
const (
	ExtraPassword   = "password"
	ExtraDatacenter = "datacenter"
	ExtraImage      = "image"
	ExtraSize       = "size"
)

// NodeRecord is the provider's view of a created node. Addresses start
// empty and are filled in as the provider finishes creating the node.
type NodeRecord struct {
	ID         string
	Name       string
	Status     NodeStatus
	PublicIPs  []string
	PrivateIPs []string
	Extra      map[string]string
	Created    time.Time
}

// Address returns the first address of the given family, or "".
func (n *NodeRecord) Address(family AddressFamily) string {
	if n == nil {
		return ""
	}
	ips := n.PublicIPs
	if family == AddressPrivate {
		ips = n.PrivateIPs
	}
	for _, ip := range ips {
		if ip != "" {
			return ip
		}
	}
	return ""
}

// Password returns the provider-generated root password, if any.
func (n *NodeRecord) Password() string {
	if n == nil {
		return ""
	}
	return n.Extra[ExtraPassword]
}

// Attribute is one key/value pair of a node dump.
type Attribute struct {
	Key   string
	Value string
}

// Attributes flattens the record into sorted key/value pairs. Secret extras
// are masked.
func (n *NodeRecord) Attributes() []Attribute {
	if n == nil {
		return nil
	}
	attrs := []Attribute{
		{Key: "id", Value: n.ID},
		{Key: "name", Value: n.Name},
		{Key: "status", Value: string(n.Status)},
		{Key: "public_ips", Value: strings.Join(n.PublicIPs, ",")},
		{Key: "private_ips", Value: strings.Join(n.PrivateIPs, ",")},
	}
	if !n.Created.IsZero() {
		attrs = append(attrs, Attribute{Key: "created", Value: n.Created.UTC().Format(time.RFC3339)})
	}
	for k, v := range n.Extra {
		if k == ExtraPassword && v != "" {
			v = "********"
		}
		attrs = append(attrs, Attribute{Key: "extra." + k, Value: v})
	}
	sort.Slice(attrs, func(i, j int) bool { return attrs[i].Key < attrs[j].Key })
	return attrs
}

// Clone returns a deep copy of the record.
func (n *NodeRecord) Clone() *NodeRecord {
	if n == nil {
		return nil
	}
	c := *n
	c.PublicIPs = append([]string(nil), n.PublicIPs...)
	c.PrivateIPs = append([]string(nil), n.PrivateIPs...)
	if n.Extra != nil {
		c.Extra = make(map[string]string, len(n.Extra))
		for k, v := range n.Extra {
			c.Extra[k] = v
		}
	}
	return &c
}

// CreateNodeRequest is what a driver needs to create a node.
type CreateNodeRequest struct {
	Name     string
	Image    Image
	Size     Size
	Location string
	Labels   map[string]string
	UserData string
}

// Driver authenticates against a provider.
type Driver interface {
	// Authenticate verifies the credentials and returns a live API.
	// It returns ErrAuthentication or ErrEndpointUnreachable on failure.
	Authenticate(ctx context.Context, creds Credentials) (Compute, error)
}

// Compute is an authenticated provider API.
type Compute interface {
	ListImages(ctx context.Context) ([]Image, error)
	ListSizes(ctx context.Context) ([]Size, error)
	// CreateNode submits a create request. Rejections must be returned
	// as a *ProvisionError.
	CreateNode(ctx context.Context, req CreateNodeRequest) (*NodeRecord, error)
	GetNode(ctx context.Context, id string) (*NodeRecord, error)
	ListNodes(ctx context.Context) ([]*NodeRecord, error)
	// DestroyNode deletes the node with the given ID. Deleting a node
	// that does not exist is not an error.
	DestroyNode(ctx context.Context, id string) error
}
