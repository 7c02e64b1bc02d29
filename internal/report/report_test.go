package report

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/nodeseed/internal/bootstrap"
	"github.com/imamik/nodeseed/internal/catalog"
	"github.com/imamik/nodeseed/internal/cloud"
	testutil "github.com/imamik/nodeseed/internal/testing"
	"github.com/imamik/nodeseed/internal/workflow"
)

var started = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func transitions(states ...workflow.State) []workflow.Transition {
	out := make([]workflow.Transition, len(states))
	var from workflow.State
	for i, s := range states {
		out[i] = workflow.Transition{From: from, To: s, At: started.Add(time.Duration(i) * time.Second)}
		from = s
	}
	return out
}

func node() *cloud.NodeRecord {
	return &cloud.NodeRecord{
		ID:        "1001",
		Name:      "web1",
		Status:    cloud.NodeStatusRunning,
		PublicIPs: []string{"203.0.113.5"},
		Extra: map[string]string{
			cloud.ExtraPassword:   "s3cret",
			cloud.ExtraDatacenter: "nbg1-dc3",
		},
	}
}

func succeeded() *workflow.Result {
	return &workflow.Result{
		RunID:   "run-1",
		Request: workflow.Request{Name: "web1", Image: "ubuntu-12.04", Size: "m1.small", Location: "nbg1"},
		Selection: &catalog.Selection{
			Image: cloud.Image{ID: "1", Name: "ubuntu-12.04"},
			Size:  cloud.Size{ID: "10", Name: "m1.small"},
		},
		Node:    node(),
		Address: "203.0.113.5",
		Outcome: &bootstrap.Outcome{Succeeded: true, ExitCode: 0, Attempts: 2, Duration: 1500 * time.Millisecond, Output: "ok\n"},
		State:   workflow.StateBootstrapSucceeded,
		Transitions: transitions(
			workflow.StateRequested, workflow.StateSubmitted, workflow.StateAddressPending,
			workflow.StateAddressAssigned, workflow.StateBootstrapAttempting, workflow.StateBootstrapSucceeded,
		),
		StartedAt:  started,
		FinishedAt: started.Add(6 * time.Second),
	}
}

func TestBuild_Succeeded(t *testing.T) {
	t.Parallel()

	r := Build(succeeded())

	assert.Equal(t, "run-1", r.RunID)
	assert.Equal(t, "ubuntu-12.04 (1)", r.Image)
	assert.Equal(t, "m1.small (10)", r.Size)
	assert.Equal(t, "BootstrapSucceeded", r.State)
	assert.True(t, r.Exists)
	assert.True(t, r.Succeeded())
	assert.Equal(t, "1001", r.NodeID)
	assert.Equal(t, "203.0.113.5", r.Address)
	require.NotNil(t, r.Bootstrap)
	assert.Equal(t, "1.5s", r.Bootstrap.Duration)
	assert.Empty(t, r.Error)
	assert.Len(t, r.Transitions, 6)

	for _, a := range r.Attributes {
		assert.NotContains(t, a.Value, "s3cret", "secrets are masked")
	}
}

func TestRender_Succeeded(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, Build(succeeded()).Render(&buf))
	out := buf.String()

	assert.Contains(t, out, "Creating Cloud VM web1\n")
	assert.Contains(t, out, "  image: ubuntu-12.04 (1)\n")
	assert.Contains(t, out, "extra.password:")
	assert.Contains(t, out, "********")
	assert.NotContains(t, out, "s3cret")
	assert.Contains(t, out, "public_ips:")
	assert.Contains(t, out, "Bootstrap of web1 on 203.0.113.5 succeeded (2 connection attempts, 1.5s)")
	assert.Contains(t, out, "Instance web1 exists (id 1001)")
	assert.Contains(t, out, "state: BootstrapSucceeded\n")
	assert.Contains(t, out, "12:00:05.000 BootstrapSucceeded")
	assert.NotContains(t, out, "\x1b[", "plain rendering has no escape codes")
}

func TestRender_AttributesSorted(t *testing.T) {
	t.Parallel()

	r := Build(succeeded())
	for i := 1; i < len(r.Attributes); i++ {
		assert.Less(t, r.Attributes[i-1].Key, r.Attributes[i].Key)
	}
}

func TestRender_ScriptFailedKeepsNode(t *testing.T) {
	t.Parallel()

	res := succeeded()
	scriptErr := &cloud.ScriptExecutionError{Host: "203.0.113.5", ExitCode: 2, Output: "E: broken\n"}
	res.Outcome = &bootstrap.Outcome{ExitCode: 2, Attempts: 1, Output: "E: broken\n", Err: scriptErr}
	res.State = workflow.StateBootstrapFailed
	res.Err = scriptErr

	r := Build(res)
	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf))
	out := buf.String()

	assert.Equal(t, "ScriptExecutionError", r.ErrorKind)
	assert.False(t, r.Succeeded())
	assert.Contains(t, out, "Bootstrap of web1 failed: bootstrap script on 203.0.113.5 exited with status 2")
	assert.Contains(t, out, "  E: broken\n")
	assert.Contains(t, out, "Instance web1 exists (id 1001)")
	assert.Contains(t, out, "id:")
}

func TestRender_AddressTimeout(t *testing.T) {
	t.Parallel()

	res := succeeded()
	res.Node.PublicIPs = nil
	res.Address = ""
	res.Outcome = nil
	res.State = workflow.StateAddressTimedOut
	res.Err = &cloud.AddressTimeoutError{NodeID: "1001", Family: cloud.AddressPublic, Polls: 5, Waited: time.Second}

	r := Build(res)
	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf))
	out := buf.String()

	assert.Equal(t, "AddressTimeoutError", r.ErrorKind)
	assert.Nil(t, r.Bootstrap)
	assert.Contains(t, out, "Failed to create web1: node 1001 has no public address after 5 polls")
	assert.Contains(t, out, "Instance web1 exists (id 1001)")
	assert.NotContains(t, out, "Bootstrap of")
}

func TestRender_NothingCreated(t *testing.T) {
	t.Parallel()

	res := &workflow.Result{
		RunID:       "run-2",
		Request:     workflow.Request{Name: "web1", Image: "centos", Size: "m1.small"},
		State:       workflow.StateAborted,
		Err:         &cloud.AmbiguousSelectionError{Kind: cloud.CatalogImage, Query: "centos", Matches: []string{"4", "5"}},
		Transitions: transitions(workflow.StateRequested, workflow.StateAborted),
	}

	r := Build(res)
	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf))
	out := buf.String()

	assert.False(t, r.Exists)
	assert.Empty(t, r.Attributes)
	assert.Equal(t, "AmbiguousSelectionError", r.ErrorKind)
	assert.Contains(t, out, "  image: centos\n")
	assert.Contains(t, out, `image "centos" is ambiguous, matches IDs: 4, 5`)
	assert.Contains(t, out, "No instance was created for web1")
}

func TestBuild_UnclassifiedError(t *testing.T) {
	t.Parallel()

	res := succeeded()
	res.State = workflow.StateAborted
	res.Err = errors.New("boom")

	assert.Empty(t, Build(res).ErrorKind)
}

func TestRenderSummary(t *testing.T) {
	t.Parallel()

	failed := succeeded()
	failed.Request.Name = "db1"
	failed.Address = ""
	failed.State = workflow.StateAddressTimedOut

	var buf bytes.Buffer
	require.NoError(t, RenderSummary(&buf, []*Report{Build(succeeded()), Build(failed)}))
	out := buf.String()

	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "web1  BootstrapSucceeded    203.0.113.5")
	assert.Contains(t, out, "db1   AddressTimedOut       -")
	assert.Contains(t, out, "1 of 2 VMs bootstrapped")
}

func TestReport_EndToEnd(t *testing.T) {
	t.Parallel()

	provider := testutil.NewFakeProvider(testutil.LegacyImages(), testutil.LegacySizes())
	provider.Address = "203.0.113.5"
	provider.AssignAfter = 2
	settings, err := workflow.SettingsFromConfig(testutil.NewConfigBuilder().WithMaxPolls(5).Build())
	require.NoError(t, err)
	runner, err := workflow.NewRunner(provider, testutil.NewFakeConnector(), settings)
	require.NoError(t, err)

	res, err := runner.Run(testutil.TestContext(t), workflow.Request{Name: "web1", Image: "ubuntu-12.04", Size: "m1.small"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Build(res).Render(&buf))
	assert.Contains(t, buf.String(), "203.0.113.5")
	assert.Contains(t, buf.String(), "state: BootstrapSucceeded")
}
