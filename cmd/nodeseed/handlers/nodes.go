package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/imamik/nodeseed/internal/cloud"
)

// List handles the list command.
func List(ctx context.Context, opts *Options) error {
	s, err := connect(ctx, opts)
	if err != nil {
		return err
	}
	defer s.close()

	nodes, err := s.handle.ListNodes(ctx)
	if err != nil {
		return err
	}

	t := newTable("ID", "NAME", "STATUS", "PUBLIC", "PRIVATE", "DATACENTER")
	for _, n := range nodes {
		t.row(n.ID, n.Name, string(n.Status),
			orDash(strings.Join(n.PublicIPs, ",")),
			orDash(strings.Join(n.PrivateIPs, ",")),
			orDash(n.Extra[cloud.ExtraDatacenter]))
	}
	return t.write(opts.out())
}

// Destroy handles the destroy command.
//
// The node is looked up by name among the nodes the provider lists for the
// configured tenant.
func Destroy(ctx context.Context, opts *Options, name string) error {
	s, err := connect(ctx, opts)
	if err != nil {
		return err
	}
	defer s.close()

	nodes, err := s.handle.ListNodes(ctx)
	if err != nil {
		return err
	}

	var target *cloud.NodeRecord
	for _, n := range nodes {
		if n.Name == name {
			target = n
			break
		}
	}
	if target == nil {
		return fmt.Errorf("no node named %q", name)
	}

	s.log.V(1).Info("destroying node", "name", name, "id", target.ID)
	if err := s.handle.DestroyNode(ctx, target.ID); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(opts.out(), "Destroyed node %s (id %s)\n", name, target.ID)
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
