package provisioning

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/nodeseed/internal/cloud"
	"github.com/imamik/nodeseed/internal/metrics"
	"github.com/imamik/nodeseed/internal/progress"
)

// scriptedAPI assigns an address on the Nth GetNode call.
type scriptedAPI struct {
	mu sync.Mutex

	createErr  error
	created    *cloud.NodeRecord
	assignOn   int // 0 means never
	family     cloud.AddressFamily
	pollErrs   map[int]error
	errorOn    int
	getCalls   int
	createReqs []cloud.CreateNodeRequest
}

func (s *scriptedAPI) CreateNode(_ context.Context, req cloud.CreateNodeRequest) (*cloud.NodeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createReqs = append(s.createReqs, req)
	if s.createErr != nil {
		return nil, s.createErr
	}
	if s.created != nil {
		return s.created.Clone(), nil
	}
	return &cloud.NodeRecord{
		ID:     "42",
		Name:   req.Name,
		Status: cloud.NodeStatusPending,
		Extra:  map[string]string{cloud.ExtraPassword: "s3cret"},
	}, nil
}

func (s *scriptedAPI) GetNode(_ context.Context, id string) (*cloud.NodeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	if err := s.pollErrs[s.getCalls]; err != nil {
		return nil, err
	}
	node := &cloud.NodeRecord{ID: id, Name: "web-1", Status: cloud.NodeStatusPending}
	if s.errorOn > 0 && s.getCalls >= s.errorOn {
		node.Status = cloud.NodeStatusError
		return node, nil
	}
	if s.assignOn > 0 && s.getCalls >= s.assignOn {
		node.Status = cloud.NodeStatusRunning
		if s.family == cloud.AddressPrivate {
			node.PrivateIPs = []string{"10.0.0.5"}
		} else {
			node.PublicIPs = []string{"203.0.113.10"}
		}
	}
	return node, nil
}

func (s *scriptedAPI) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getCalls
}

func fastWait(maxPolls int) WaitConfig {
	return WaitConfig{
		MaxPolls:        maxPolls,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		Timeout:         5 * time.Second,
	}
}

func webSpec() Spec {
	return Spec{Request: cloud.CreateNodeRequest{
		Name:  "web-1",
		Image: cloud.Image{ID: "img-1", Name: "ubuntu-24.04"},
		Size:  cloud.Size{ID: "cx22", Name: "cx22"},
	}}
}

func TestProvision_AddressWithinBudget(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		assignOn int
		maxPolls int
	}{
		{"first poll", 1, 5},
		{"after two polls", 2, 5},
		{"on last poll", 5, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			api := &scriptedAPI{assignOn: tt.assignOn}
			p := NewProvisioner(fastWait(tt.maxPolls), WithMetrics(metrics.NewRecorder()))

			node, err := p.Provision(context.Background(), api, webSpec())

			require.NoError(t, err)
			require.NotNil(t, node)
			assert.Equal(t, "203.0.113.10", node.Address(cloud.AddressPublic))
			assert.Equal(t, tt.assignOn, api.calls())
		})
	}
}

func TestProvision_AddressNeverAssigned(t *testing.T) {
	t.Parallel()
	api := &scriptedAPI{}
	p := NewProvisioner(fastWait(5))

	node, err := p.Provision(context.Background(), api, webSpec())

	require.Error(t, err)
	assert.ErrorIs(t, err, cloud.ErrAddressTimeout)
	assert.Equal(t, "AddressTimeoutError", cloud.Kind(err))

	var timeout *cloud.AddressTimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, "42", timeout.NodeID)
	assert.Equal(t, 5, timeout.Polls)
	assert.Equal(t, cloud.AddressPublic, timeout.Family)

	assert.Equal(t, 5, api.calls())
	require.NotNil(t, node, "the created node must be reported even without an address")
	assert.Equal(t, "42", node.ID)
	assert.Empty(t, node.Address(cloud.AddressPublic))
}

func TestProvision_AddressAfterBudget(t *testing.T) {
	t.Parallel()
	api := &scriptedAPI{assignOn: 4}
	p := NewProvisioner(fastWait(3))

	_, err := p.Provision(context.Background(), api, webSpec())

	assert.ErrorIs(t, err, cloud.ErrAddressTimeout)
	assert.Equal(t, 3, api.calls())
}

func TestProvision_CreateRejected(t *testing.T) {
	t.Parallel()

	t.Run("plain error is wrapped", func(t *testing.T) {
		t.Parallel()
		cause := errors.New("quota exceeded")
		api := &scriptedAPI{createErr: cause}
		p := NewProvisioner(fastWait(5))

		node, err := p.Provision(context.Background(), api, webSpec())

		assert.Nil(t, node)
		assert.ErrorIs(t, err, cloud.ErrProvision)
		assert.ErrorIs(t, err, cause)
		assert.Zero(t, api.calls())
	})

	t.Run("provision error is passed through", func(t *testing.T) {
		t.Parallel()
		rejection := &cloud.ProvisionError{Name: "web-1", Reason: "name already taken"}
		api := &scriptedAPI{createErr: rejection}
		p := NewProvisioner(fastWait(5))

		node, err := p.Provision(context.Background(), api, webSpec())

		assert.Nil(t, node)
		var provErr *cloud.ProvisionError
		require.ErrorAs(t, err, &provErr)
		assert.Same(t, rejection, provErr)
	})

	t.Run("empty node id", func(t *testing.T) {
		t.Parallel()
		api := &scriptedAPI{created: &cloud.NodeRecord{Name: "web-1"}}
		p := NewProvisioner(fastWait(5))

		node, err := p.Provision(context.Background(), api, webSpec())

		assert.Nil(t, node)
		assert.ErrorIs(t, err, cloud.ErrProvision)
	})
}

func TestProvision_NodeEntersErrorState(t *testing.T) {
	t.Parallel()
	api := &scriptedAPI{errorOn: 2}
	p := NewProvisioner(fastWait(10))

	node, err := p.Provision(context.Background(), api, webSpec())

	assert.ErrorIs(t, err, cloud.ErrProvision)
	assert.NotErrorIs(t, err, cloud.ErrAddressTimeout)
	require.NotNil(t, node)
	assert.Equal(t, cloud.NodeStatusError, node.Status)
	assert.Equal(t, 2, api.calls())
}

func TestProvision_TransientPollErrorsTolerated(t *testing.T) {
	t.Parallel()
	api := &scriptedAPI{
		assignOn: 3,
		pollErrs: map[int]error{1: errors.New("502 bad gateway")},
	}
	p := NewProvisioner(fastWait(5))

	node, err := p.Provision(context.Background(), api, webSpec())

	require.NoError(t, err)
	assert.Equal(t, "203.0.113.10", node.Address(cloud.AddressPublic))
}

func TestProvision_TimeoutCarriesLastPollError(t *testing.T) {
	t.Parallel()
	cause := errors.New("connection reset")
	api := &scriptedAPI{pollErrs: map[int]error{1: cause, 2: cause}}
	p := NewProvisioner(fastWait(2))

	_, err := p.Provision(context.Background(), api, webSpec())

	assert.ErrorIs(t, err, cloud.ErrAddressTimeout)
	assert.ErrorIs(t, err, cause)
}

func TestProvision_ImmediateAddress(t *testing.T) {
	t.Parallel()
	api := &scriptedAPI{created: &cloud.NodeRecord{
		ID:        "7",
		Name:      "web-1",
		Status:    cloud.NodeStatusRunning,
		PublicIPs: []string{"198.51.100.1"},
	}}
	rec := &progress.Recorder{}
	p := NewProvisioner(fastWait(5), WithObserver(rec))

	node, err := p.Provision(context.Background(), api, webSpec())

	require.NoError(t, err)
	assert.Equal(t, "198.51.100.1", node.Address(cloud.AddressPublic))
	assert.Zero(t, api.calls())
	assert.Equal(t, []progress.EventType{
		progress.EventNodeCreating,
		progress.EventNodeCreated,
		progress.EventAddressAssigned,
	}, rec.Types())
}

func TestProvision_KeepsPasswordFromCreateResponse(t *testing.T) {
	t.Parallel()
	api := &scriptedAPI{assignOn: 2}
	p := NewProvisioner(fastWait(5))

	node, err := p.Provision(context.Background(), api, webSpec())

	require.NoError(t, err)
	assert.Equal(t, "s3cret", node.Password())
	assert.Equal(t, cloud.NodeStatusRunning, node.Status)
}

func TestProvision_PrivateFamily(t *testing.T) {
	t.Parallel()
	api := &scriptedAPI{assignOn: 1, family: cloud.AddressPrivate}
	p := NewProvisioner(fastWait(5))

	spec := webSpec()
	spec.Family = cloud.AddressPrivate
	node, err := p.Provision(context.Background(), api, spec)

	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", node.Address(cloud.AddressPrivate))
	assert.Empty(t, node.Address(cloud.AddressPublic))
}

func TestProvision_PublicFamilyIgnoresPrivateAddress(t *testing.T) {
	t.Parallel()
	api := &scriptedAPI{assignOn: 1, family: cloud.AddressPrivate}
	p := NewProvisioner(fastWait(3))

	_, err := p.Provision(context.Background(), api, webSpec())

	assert.ErrorIs(t, err, cloud.ErrAddressTimeout)
}

func TestProvision_WaitTimeout(t *testing.T) {
	t.Parallel()
	api := &scriptedAPI{}
	p := NewProvisioner(WaitConfig{
		MaxPolls:        1000,
		InitialInterval: 10 * time.Millisecond,
		MaxInterval:     10 * time.Millisecond,
		Timeout:         50 * time.Millisecond,
	})

	node, err := p.Provision(context.Background(), api, webSpec())

	assert.ErrorIs(t, err, cloud.ErrAddressTimeout)
	assert.NotNil(t, node)
	assert.Less(t, api.calls(), 1000)
}

func TestProvision_ParentCancelled(t *testing.T) {
	t.Parallel()
	api := &scriptedAPI{}
	ctx, cancel := context.WithCancel(context.Background())

	p := NewProvisioner(
		WaitConfig{MaxPolls: 100, InitialInterval: 5 * time.Millisecond, MaxInterval: 5 * time.Millisecond, Timeout: time.Minute},
		WithSubmittedHook(func(*cloud.NodeRecord) { cancel() }),
	)

	node, err := p.Provision(ctx, api, webSpec())

	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, cloud.ErrAddressTimeout)
	require.NotNil(t, node)
	assert.Equal(t, "42", node.ID)
}

func TestProvision_SubmittedHookGetsCopy(t *testing.T) {
	t.Parallel()
	api := &scriptedAPI{assignOn: 1}
	var submitted *cloud.NodeRecord
	p := NewProvisioner(fastWait(5), WithSubmittedHook(func(n *cloud.NodeRecord) {
		submitted = n
	}))

	node, err := p.Provision(context.Background(), api, webSpec())

	require.NoError(t, err)
	require.NotNil(t, submitted)
	assert.Equal(t, "42", submitted.ID)
	assert.Empty(t, submitted.PublicIPs)
	assert.NotSame(t, submitted, node)
}

func TestProvision_EmitsPollingEvents(t *testing.T) {
	t.Parallel()
	api := &scriptedAPI{assignOn: 3}
	rec := &progress.Recorder{}
	p := NewProvisioner(fastWait(5), WithObserver(rec))

	_, err := p.Provision(context.Background(), api, webSpec())

	require.NoError(t, err)
	assert.Equal(t, []progress.EventType{
		progress.EventNodeCreating,
		progress.EventNodeCreated,
		progress.EventAddressPolling,
		progress.EventAddressPolling,
		progress.EventAddressAssigned,
	}, rec.Types())

	events := rec.Events()
	assert.Equal(t, "3", events[len(events)-1].Fields["polls"])
	assert.Equal(t, "203.0.113.10", events[len(events)-1].Message)
}

func TestWaitConfig_Defaults(t *testing.T) {
	t.Parallel()
	w := WaitConfig{}.withDefaults()
	assert.Equal(t, defaultMaxPolls, w.MaxPolls)
	assert.Equal(t, defaultInitialInterval, w.InitialInterval)
	assert.Equal(t, defaultMaxInterval, w.MaxInterval)
	assert.Equal(t, defaultTimeout, w.Timeout)

	w = WaitConfig{MaxPolls: 3}.withDefaults()
	assert.Equal(t, 3, w.MaxPolls)
}
