package hcloud

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/nodeseed/internal/cloud"
	"github.com/imamik/nodeseed/internal/util/labels"
)

// Compute is an authenticated Hetzner Cloud session.
type Compute struct {
	client *hcloud.Client
	user   string
	tenant string
}

// ListImages returns all images visible to the project, sorted by ID.
func (c *Compute) ListImages(ctx context.Context) ([]cloud.Image, error) {
	images, err := c.client.Image.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}

	out := make([]cloud.Image, 0, len(images))
	for _, img := range images {
		out = append(out, toImage(img))
	}
	sort.Slice(out, func(i, j int) bool { return lessID(out[i].ID, out[j].ID) })
	return out, nil
}

// ListSizes returns all server types, sorted by ID.
func (c *Compute) ListSizes(ctx context.Context) ([]cloud.Size, error) {
	types, err := c.client.ServerType.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list server types: %w", err)
	}

	out := make([]cloud.Size, 0, len(types))
	for _, st := range types {
		out = append(out, toSize(st))
	}
	sort.Slice(out, func(i, j int) bool { return lessID(out[i].ID, out[j].ID) })
	return out, nil
}

// CreateNode submits a server create request. It does not wait for the
// create action; the returned record usually has no address yet.
func (c *Compute) CreateNode(ctx context.Context, req cloud.CreateNodeRequest) (*cloud.NodeRecord, error) {
	opts := hcloud.ServerCreateOpts{
		Name:       req.Name,
		ServerType: serverTypeRef(req.Size),
		Image:      imageRef(req.Image),
		Labels:     c.serverLabels(req.Labels),
		UserData:   req.UserData,
	}
	if req.Location != "" {
		opts.Location = &hcloud.Location{Name: req.Location}
	}

	result, _, err := c.client.Server.Create(ctx, opts)
	if err != nil {
		return nil, createRejection(req.Name, err)
	}
	if result.Server == nil {
		return nil, &cloud.ProvisionError{Name: req.Name, Reason: "provider returned no server"}
	}

	node := toNodeRecord(result.Server)
	if result.RootPassword != "" {
		node.Extra[cloud.ExtraPassword] = result.RootPassword
	}
	return node, nil
}

// GetNode fetches the current state of a server.
func (c *Compute) GetNode(ctx context.Context, id string) (*cloud.NodeRecord, error) {
	serverID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	server, _, err := c.client.Server.GetByID(ctx, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to get server %s: %w", id, err)
	}
	if server == nil {
		return nil, fmt.Errorf("server not found: %s", id)
	}
	return toNodeRecord(server), nil
}

// ListNodes returns the servers created by nodeseed, scoped to the tenant
// when one is set.
func (c *Compute) ListNodes(ctx context.Context) ([]*cloud.NodeRecord, error) {
	servers, err := c.client.Server.AllWithOpts(ctx, hcloud.ServerListOpts{
		ListOpts: hcloud.ListOpts{LabelSelector: labels.Selector(c.tenant)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list servers: %w", err)
	}

	out := make([]*cloud.NodeRecord, 0, len(servers))
	for _, s := range servers {
		out = append(out, toNodeRecord(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// DestroyNode deletes a server. A server that is already gone is not an error.
func (c *Compute) DestroyNode(ctx context.Context, id string) error {
	serverID, err := parseID(id)
	if err != nil {
		return err
	}

	if _, _, err := c.client.Server.DeleteWithResult(ctx, &hcloud.Server{ID: serverID}); err != nil {
		if IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to delete server %s: %w", id, err)
	}
	return nil
}

// serverLabels keeps run labels set by the caller and adds the account
// labels of the session.
func (c *Compute) serverLabels(extra map[string]string) map[string]string {
	lb := labels.NewLabelBuilder().Merge(extra).WithTenant(c.tenant).WithUser(c.user)
	if run := extra[labels.KeyRun]; run != "" {
		lb.WithRun(run)
	}
	return lb.Build()
}

func parseID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid server id: %s", id)
	}
	return n, nil
}

func lessID(a, b string) bool {
	ai, aErr := strconv.ParseInt(a, 10, 64)
	bi, bErr := strconv.ParseInt(b, 10, 64)
	if aErr == nil && bErr == nil {
		return ai < bi
	}
	return a < b
}

// imageRef refers to an image by ID when the ID is numeric, by name otherwise.
func imageRef(img cloud.Image) *hcloud.Image {
	if id, err := strconv.ParseInt(img.ID, 10, 64); err == nil {
		return &hcloud.Image{ID: id}
	}
	return &hcloud.Image{Name: img.Name}
}

func serverTypeRef(size cloud.Size) *hcloud.ServerType {
	if id, err := strconv.ParseInt(size.ID, 10, 64); err == nil {
		return &hcloud.ServerType{ID: id}
	}
	return &hcloud.ServerType{Name: size.Name}
}

func toImage(img *hcloud.Image) cloud.Image {
	name := img.Name
	if name == "" {
		// Snapshots and backups have no name.
		name = img.Description
	}
	return cloud.Image{
		ID:           strconv.FormatInt(img.ID, 10),
		Name:         name,
		Description:  img.Description,
		Architecture: string(img.Architecture),
	}
}

func toSize(st *hcloud.ServerType) cloud.Size {
	return cloud.Size{
		ID:           strconv.FormatInt(st.ID, 10),
		Name:         st.Name,
		Description:  st.Description,
		Cores:        st.Cores,
		MemoryGB:     float64(st.Memory),
		DiskGB:       st.Disk,
		Architecture: string(st.Architecture),
	}
}

func toNodeStatus(s hcloud.ServerStatus) cloud.NodeStatus {
	switch s {
	case hcloud.ServerStatusInitializing, hcloud.ServerStatusStarting:
		return cloud.NodeStatusPending
	case hcloud.ServerStatusRunning:
		return cloud.NodeStatusRunning
	case hcloud.ServerStatusOff, hcloud.ServerStatusStopping:
		return cloud.NodeStatusStopped
	default:
		return cloud.NodeStatusUnknown
	}
}

func toNodeRecord(s *hcloud.Server) *cloud.NodeRecord {
	node := &cloud.NodeRecord{
		ID:      strconv.FormatInt(s.ID, 10),
		Name:    s.Name,
		Status:  toNodeStatus(s.Status),
		Created: s.Created,
		Extra:   map[string]string{},
	}

	if ip := ipString(s.PublicNet.IPv4.IP); ip != "" {
		node.PublicIPs = append(node.PublicIPs, ip)
	}
	for _, pn := range s.PrivateNet {
		if ip := ipString(pn.IP); ip != "" {
			node.PrivateIPs = append(node.PrivateIPs, ip)
		}
	}

	if s.Datacenter != nil {
		node.Extra[cloud.ExtraDatacenter] = s.Datacenter.Name
	}
	if s.Image != nil {
		node.Extra[cloud.ExtraImage] = s.Image.Name
	}
	if s.ServerType != nil {
		node.Extra[cloud.ExtraSize] = s.ServerType.Name
	}
	if ipv6 := s.PublicNet.IPv6.Network; ipv6 != nil {
		node.Extra["ipv6_network"] = ipv6.String()
	}
	if tenant := s.Labels[labels.KeyTenant]; tenant != "" {
		node.Extra["tenant"] = tenant
	}
	return node
}

func ipString(ip net.IP) string {
	if ip == nil || ip.IsUnspecified() {
		return ""
	}
	return ip.String()
}
