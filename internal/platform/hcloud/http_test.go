package hcloud

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
	"github.com/hetznercloud/hcloud-go/v2/hcloud/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/nodeseed/internal/catalog"
	"github.com/imamik/nodeseed/internal/cloud"
	"github.com/imamik/nodeseed/internal/util/labels"
)

var (
	_ cloud.Driver  = (*Driver)(nil)
	_ cloud.Compute = (*Compute)(nil)
)

// testServer creates an httptest server that can be used to mock Hetzner Cloud API responses.
type testServer struct {
	server *httptest.Server
	mux    *http.ServeMux

	mu       sync.Mutex
	requests []*http.Request
	bodies   map[string][]byte
}

// newTestServer creates a new test server for mocking the Hetzner Cloud API.
// GET /locations always succeeds so that Authenticate passes.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{mux: http.NewServeMux(), bodies: map[string][]byte{}}
	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.mu.Lock()
		ts.requests = append(ts.requests, r.Clone(context.Background()))
		ts.mu.Unlock()
		ts.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.server.Close)

	ts.handleFunc("/locations", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			jsonResponse(w, http.StatusUnauthorized, schema.ErrorResponse{
				Error: schema.Error{Code: string(hcloud.ErrorCodeUnauthorized), Message: "unable to authenticate"},
			})
			return
		}
		jsonResponse(w, http.StatusOK, schema.LocationListResponse{
			Locations: []schema.Location{{ID: 1, Name: "nbg1"}},
		})
	})
	return ts
}

// handleFunc registers a handler for a specific path.
func (ts *testServer) handleFunc(pattern string, handler http.HandlerFunc) {
	ts.mux.HandleFunc(pattern, handler)
}

// recordBody stores the decoded request body under key.
func (ts *testServer) recordBody(key string, r *http.Request) {
	var raw json.RawMessage
	_ = json.NewDecoder(r.Body).Decode(&raw)
	ts.mu.Lock()
	ts.bodies[key] = raw
	ts.mu.Unlock()
}

func (ts *testServer) body(key string) []byte {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.bodies[key]
}

// lastRequest returns the most recent request to path.
func (ts *testServer) lastRequest(path string) *http.Request {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	for i := len(ts.requests) - 1; i >= 0; i-- {
		if ts.requests[i].URL.Path == path {
			return ts.requests[i]
		}
	}
	return nil
}

func (ts *testServer) credentials() cloud.Credentials {
	return cloud.Credentials{
		User:         "fred",
		APIKey:       "test-token",
		AuthEndpoint: ts.server.URL,
		TenantName:   "team-a",
	}
}

func (ts *testServer) compute(t *testing.T) *Compute {
	t.Helper()
	c, err := NewDriver(WithVersion("test")).Authenticate(context.Background(), ts.credentials())
	require.NoError(t, err)
	return c.(*Compute)
}

// jsonResponse writes a JSON response with the given status code and body.
func jsonResponse(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

func TestDriver_Authenticate(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	compute, err := NewDriver().Authenticate(context.Background(), ts.credentials())

	require.NoError(t, err)
	require.NotNil(t, compute)

	req := ts.lastRequest("/locations")
	require.NotNil(t, req)
	assert.Contains(t, req.Header.Get("User-Agent"), "nodeseed/dev")
}

func TestDriver_AuthenticateRejected(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	creds := ts.credentials()
	creds.APIKey = "wrong-token"

	_, err := NewDriver().Authenticate(context.Background(), creds)

	require.Error(t, err)
	assert.ErrorIs(t, err, cloud.ErrAuthentication)
	assert.NotErrorIs(t, err, cloud.ErrEndpointUnreachable)
}

func TestDriver_AuthenticateEmptyKey(t *testing.T) {
	t.Parallel()
	_, err := NewDriver().Authenticate(context.Background(), cloud.Credentials{User: "fred"})
	assert.ErrorIs(t, err, cloud.ErrAuthentication)
}

func TestCompute_ListImages(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ts.handleFunc("/images", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, schema.ImageListResponse{
			Images: []schema.Image{
				{ID: 114690389, Name: hcloud.Ptr("ubuntu-24.04"), Description: "Ubuntu 24.04", Architecture: "x86", Type: "system"},
				{ID: 67794396, Name: hcloud.Ptr("ubuntu-22.04"), Description: "Ubuntu 22.04", Architecture: "x86", Type: "system"},
				{ID: 1, Description: "my snapshot", Architecture: "arm", Type: "snapshot"},
			},
		})
	})

	images, err := ts.compute(t).ListImages(context.Background())

	require.NoError(t, err)
	require.Len(t, images, 3)
	assert.Equal(t, cloud.Image{ID: "1", Name: "my snapshot", Description: "my snapshot", Architecture: "arm"}, images[0])
	assert.Equal(t, "67794396", images[1].ID)
	assert.Equal(t, "ubuntu-22.04", images[1].Name)
	assert.Equal(t, "ubuntu-24.04", images[2].Name)
}

func TestCompute_ListSizes(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ts.handleFunc("/server_types", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, schema.ServerTypeListResponse{
			ServerTypes: []schema.ServerType{
				{ID: 22, Name: "cpx11", Description: "CPX 11", Cores: 2, Memory: 2, Disk: 40, Architecture: "x86"},
				{ID: 9, Name: "cx22", Description: "CX22", Cores: 2, Memory: 4, Disk: 40, Architecture: "x86"},
			},
		})
	})

	sizes, err := ts.compute(t).ListSizes(context.Background())

	require.NoError(t, err)
	require.Len(t, sizes, 2)
	assert.Equal(t, cloud.Size{ID: "9", Name: "cx22", Description: "CX22", Cores: 2, MemoryGB: 4, DiskGB: 40, Architecture: "x86"}, sizes[0])
	assert.Equal(t, "cpx11", sizes[1].Name)
}

func TestCompute_ResolvePerArchitectureImages(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ts.handleFunc("/images", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, schema.ImageListResponse{
			Images: []schema.Image{
				{ID: 67794396, Name: hcloud.Ptr("ubuntu-22.04"), Description: "Ubuntu 22.04", Architecture: "x86", Type: "system"},
				{ID: 103908070, Name: hcloud.Ptr("ubuntu-22.04"), Description: "Ubuntu 22.04", Architecture: "arm", Type: "system"},
			},
		})
	})
	ts.handleFunc("/server_types", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, schema.ServerTypeListResponse{
			ServerTypes: []schema.ServerType{
				{ID: 9, Name: "cx22", Cores: 2, Memory: 4, Disk: 40, Architecture: "x86"},
				{ID: 45, Name: "cax11", Cores: 2, Memory: 4, Disk: 40, Architecture: "arm"},
			},
		})
	})
	resolver := catalog.NewResolver(ts.compute(t))

	sel, err := resolver.Resolve(context.Background(), "ubuntu-22.04", "cx22")
	require.NoError(t, err)
	assert.Equal(t, "67794396", sel.Image.ID)

	sel, err = resolver.Resolve(context.Background(), "ubuntu-22.04", "cax11")
	require.NoError(t, err)
	assert.Equal(t, "103908070", sel.Image.ID)
}

func TestCompute_CreateNode(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ts.handleFunc("/servers", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		ts.recordBody("create", r)
		jsonResponse(w, http.StatusCreated, schema.ServerCreateResponse{
			Server: schema.Server{
				ID:      42,
				Name:    "web1",
				Status:  "initializing",
				Created: time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC),
			},
			Action:       schema.Action{ID: 1, Status: "running", Command: "create_server"},
			RootPassword: hcloud.Ptr("YItygq1v3GYjjMomLaKc"),
		})
	})

	node, err := ts.compute(t).CreateNode(context.Background(), cloud.CreateNodeRequest{
		Name:     "web1",
		Image:    cloud.Image{ID: "67794396", Name: "ubuntu-22.04"},
		Size:     cloud.Size{ID: "cx22", Name: "cx22"},
		Location: "nbg1",
		Labels:   map[string]string{"role": "web"},
		UserData: "#cloud-config\n",
	})

	require.NoError(t, err)
	assert.Equal(t, "42", node.ID)
	assert.Equal(t, cloud.NodeStatusPending, node.Status)
	assert.Empty(t, node.Address(cloud.AddressPublic))
	assert.Equal(t, "YItygq1v3GYjjMomLaKc", node.Password())

	var req struct {
		Name       string            `json:"name"`
		ServerType interface{}       `json:"server_type"`
		Image      interface{}       `json:"image"`
		Location   string            `json:"location"`
		Labels     map[string]string `json:"labels"`
		UserData   string            `json:"user_data"`
	}
	require.NoError(t, json.Unmarshal(ts.body("create"), &req))
	assert.Equal(t, "web1", req.Name)
	assert.Equal(t, "cx22", req.ServerType)
	assert.EqualValues(t, 67794396, req.Image)
	assert.Equal(t, "nbg1", req.Location)
	assert.Equal(t, "#cloud-config\n", req.UserData)
	assert.Equal(t, map[string]string{
		"role":              "web",
		labels.KeyManagedBy: "nodeseed",
		labels.KeyTenant:    "team-a",
		labels.KeyUser:      "fred",
	}, req.Labels)
}

func TestCompute_CreateNodeRejected(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code   string
		reason string
	}{
		{"uniqueness_error", "name already in use"},
		{"resource_limit_exceeded", "resource limit exceeded"},
		{"invalid_input", "invalid input"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			t.Parallel()
			ts := newTestServer(t)
			ts.handleFunc("/servers", func(w http.ResponseWriter, r *http.Request) {
				jsonResponse(w, http.StatusUnprocessableEntity, schema.ErrorResponse{
					Error: schema.Error{Code: tt.code, Message: "rejected"},
				})
			})

			node, err := ts.compute(t).CreateNode(context.Background(), cloud.CreateNodeRequest{
				Name:  "web1",
				Image: cloud.Image{ID: "1"},
				Size:  cloud.Size{ID: "1"},
			})

			assert.Nil(t, node)
			var provErr *cloud.ProvisionError
			require.ErrorAs(t, err, &provErr)
			assert.Equal(t, tt.reason, provErr.Reason)
			assert.Equal(t, "web1", provErr.Name)
		})
	}
}

func TestCompute_GetNode(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ts.handleFunc("/servers/42", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, schema.ServerGetResponse{
			Server: schema.Server{
				ID:     42,
				Name:   "web1",
				Status: "running",
				PublicNet: schema.ServerPublicNet{
					IPv4: schema.ServerPublicNetIPv4{IP: "203.0.113.5"},
				},
				PrivateNet: []schema.ServerPrivateNet{{Network: 7, IP: "10.0.0.2"}},
				ServerType: schema.ServerType{ID: 9, Name: "cx22"},
				Image:      &schema.Image{ID: 67794396, Name: hcloud.Ptr("ubuntu-22.04")},
				Labels:     map[string]string{labels.KeyTenant: "team-a"},
			},
		})
	})

	node, err := ts.compute(t).GetNode(context.Background(), "42")

	require.NoError(t, err)
	assert.Equal(t, cloud.NodeStatusRunning, node.Status)
	assert.Equal(t, "203.0.113.5", node.Address(cloud.AddressPublic))
	assert.Equal(t, "10.0.0.2", node.Address(cloud.AddressPrivate))
	assert.Equal(t, "cx22", node.Extra[cloud.ExtraSize])
	assert.Equal(t, "ubuntu-22.04", node.Extra[cloud.ExtraImage])
	assert.Equal(t, "team-a", node.Extra["tenant"])
}

func TestCompute_GetNodeInvalidID(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	_, err := ts.compute(t).GetNode(context.Background(), "web1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid server id")
}

func TestCompute_ListNodes(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ts.handleFunc("/servers", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, schema.ServerListResponse{
			Servers: []schema.Server{
				{ID: 2, Name: "web2", Status: "off"},
				{ID: 1, Name: "web1", Status: "running"},
			},
		})
	})

	nodes, err := ts.compute(t).ListNodes(context.Background())

	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "web1", nodes[0].Name)
	assert.Equal(t, cloud.NodeStatusStopped, nodes[1].Status)
	req := ts.lastRequest("/servers")
	require.NotNil(t, req)
	assert.Equal(t, "managed-by=nodeseed,nodeseed/tenant=team-a", req.URL.Query().Get("label_selector"))
}

func TestCompute_DestroyNode(t *testing.T) {
	t.Parallel()

	t.Run("deleted", func(t *testing.T) {
		t.Parallel()
		ts := newTestServer(t)
		ts.handleFunc("/servers/42", func(w http.ResponseWriter, r *http.Request) {
			jsonResponse(w, http.StatusOK, schema.ServerDeleteResponse{
				Action: schema.Action{ID: 5, Status: "running", Command: "delete_server"},
			})
		})

		require.NoError(t, ts.compute(t).DestroyNode(context.Background(), "42"))
		req := ts.lastRequest("/servers/42")
		require.NotNil(t, req)
		assert.Equal(t, http.MethodDelete, req.Method)
	})

	t.Run("already gone", func(t *testing.T) {
		t.Parallel()
		ts := newTestServer(t)
		ts.handleFunc("/servers/42", func(w http.ResponseWriter, r *http.Request) {
			jsonResponse(w, http.StatusNotFound, schema.ErrorResponse{
				Error: schema.Error{Code: string(hcloud.ErrorCodeNotFound), Message: "server not found"},
			})
		})

		assert.NoError(t, ts.compute(t).DestroyNode(context.Background(), "42"))
	})

	t.Run("forbidden", func(t *testing.T) {
		t.Parallel()
		ts := newTestServer(t)
		ts.handleFunc("/servers/42", func(w http.ResponseWriter, r *http.Request) {
			jsonResponse(w, http.StatusForbidden, schema.ErrorResponse{
				Error: schema.Error{Code: string(hcloud.ErrorCodeForbidden), Message: "read-only token"},
			})
		})

		err := ts.compute(t).DestroyNode(context.Background(), "42")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to delete server 42")
	})
}
