package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/imamik/nodeseed/internal/cloud"
	"github.com/imamik/nodeseed/internal/progress"
	"github.com/imamik/nodeseed/internal/workflow"
)

// Observer receives progress events while a run is in flight.
type Observer = progress.Observer

// Attribute is one key/value pair of the node dump.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Bootstrap summarizes the bootstrap attempt.
type Bootstrap struct {
	Succeeded bool   `json:"succeeded"`
	ExitCode  int    `json:"exitCode"`
	Attempts  int    `json:"attempts"`
	Duration  string `json:"duration"`
	Output    string `json:"output,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Report is the final, printable account of one run.
type Report struct {
	RunID    string `json:"runID"`
	Name     string `json:"name"`
	Image    string `json:"image"`
	Size     string `json:"size"`
	Location string `json:"location,omitempty"`
	State    string `json:"state"`

	// Exists is true when the provider created the node. It stays true
	// whatever happened afterwards.
	Exists     bool        `json:"exists"`
	NodeID     string      `json:"nodeID,omitempty"`
	Address    string      `json:"address,omitempty"`
	Attributes []Attribute `json:"attributes,omitempty"`
	Bootstrap  *Bootstrap  `json:"bootstrap,omitempty"`

	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"errorKind,omitempty"`

	Transitions []workflow.Transition `json:"transitions"`
	StartedAt   time.Time             `json:"startedAt"`
	FinishedAt  time.Time             `json:"finishedAt"`
}

// Build turns a workflow result into a Report. Secrets in the node record
// are masked.
func Build(res *workflow.Result) *Report {
	r := &Report{
		RunID:       res.RunID,
		Name:        res.Request.Name,
		Image:       res.Request.Image,
		Size:        res.Request.Size,
		Location:    res.Request.Location,
		State:       string(res.State),
		Exists:      res.Created(),
		Address:     res.Address,
		Transitions: res.Transitions,
		StartedAt:   res.StartedAt,
		FinishedAt:  res.FinishedAt,
	}
	if res.Selection != nil {
		r.Image = fmt.Sprintf("%s (%s)", res.Selection.Image.Name, res.Selection.Image.ID)
		r.Size = fmt.Sprintf("%s (%s)", res.Selection.Size.Name, res.Selection.Size.ID)
	}
	if res.Node != nil {
		r.NodeID = res.Node.ID
		for _, a := range res.Node.Attributes() {
			r.Attributes = append(r.Attributes, Attribute{Key: a.Key, Value: a.Value})
		}
	}
	if o := res.Outcome; o != nil {
		r.Bootstrap = &Bootstrap{
			Succeeded: o.Succeeded,
			ExitCode:  o.ExitCode,
			Attempts:  o.Attempts,
			Duration:  o.Duration.Round(time.Millisecond).String(),
			Output:    o.Output,
		}
		if o.Err != nil {
			r.Bootstrap.Error = o.Err.Error()
		}
	}
	if res.Err != nil {
		r.Error = res.Err.Error()
		r.ErrorKind = cloud.Kind(res.Err)
	}
	return r
}

// Succeeded reports whether the run ended bootstrapped.
func (r *Report) Succeeded() bool {
	return r.State == string(workflow.StateBootstrapSucceeded)
}

// Render writes the report as plain text.
func (r *Report) Render(w io.Writer) error {
	return r.render(w, plainTheme())
}

func (r *Report) render(w io.Writer, th theme) error {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n", th.title(fmt.Sprintf("Creating Cloud VM %s", r.Name)))
	fmt.Fprintf(&b, "  %s %s\n", th.key("image:"), r.Image)
	fmt.Fprintf(&b, "  %s %s\n", th.key("size:"), r.Size)
	if r.Location != "" {
		fmt.Fprintf(&b, "  %s %s\n", th.key("location:"), r.Location)
	}

	if len(r.Attributes) > 0 {
		fmt.Fprintf(&b, "%s\n", th.section(fmt.Sprintf("Node %s:", r.Name)))
		width := 0
		for _, a := range r.Attributes {
			width = max(width, len(a.Key))
		}
		for _, a := range r.Attributes {
			fmt.Fprintf(&b, "  %s %s\n", th.key(fmt.Sprintf("%-*s", width+1, a.Key+":")), a.Value)
		}
	}

	switch {
	case r.Bootstrap != nil && r.Bootstrap.Succeeded:
		fmt.Fprintf(&b, "%s\n", th.ok(fmt.Sprintf("Bootstrap of %s on %s succeeded (%d connection attempts, %s)",
			r.Name, r.Address, r.Bootstrap.Attempts, r.Bootstrap.Duration)))
	case r.Bootstrap != nil:
		fmt.Fprintf(&b, "%s\n", th.fail(fmt.Sprintf("Bootstrap of %s failed: %s", r.Name, r.Bootstrap.Error)))
		if out := strings.TrimRight(r.Bootstrap.Output, "\n"); out != "" {
			for _, line := range strings.Split(out, "\n") {
				fmt.Fprintf(&b, "  %s\n", th.dim(line))
			}
		}
	case r.Error != "":
		fmt.Fprintf(&b, "%s\n", th.fail(fmt.Sprintf("Failed to create %s: %s", r.Name, r.Error)))
	}

	if r.Exists {
		fmt.Fprintf(&b, "%s\n", th.warn(fmt.Sprintf("Instance %s exists (id %s)", r.Name, r.NodeID)))
	} else {
		fmt.Fprintf(&b, "%s\n", th.dim(fmt.Sprintf("No instance was created for %s", r.Name)))
	}

	fmt.Fprintf(&b, "%s %s\n", th.key("state:"), th.state(r.State, r.Succeeded()))
	for _, t := range r.Transitions {
		fmt.Fprintf(&b, "  %s %s\n", th.dim(t.At.UTC().Format("15:04:05.000")), t.To)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderSummary writes one line per report, for batch runs.
func RenderSummary(w io.Writer, reports []*Report) error {
	return renderSummary(w, reports, plainTheme())
}

func renderSummary(w io.Writer, reports []*Report, th theme) error {
	var b strings.Builder
	nameWidth := len("NAME")
	for _, r := range reports {
		nameWidth = max(nameWidth, len(r.Name))
	}

	failed := 0
	fmt.Fprintf(&b, "%s\n", th.section(fmt.Sprintf("%-*s  %-20s  %s", nameWidth, "NAME", "STATE", "ADDRESS")))
	for _, r := range reports {
		if !r.Succeeded() {
			failed++
		}
		addr := r.Address
		if addr == "" {
			addr = "-"
		}
		fmt.Fprintf(&b, "%-*s  %s  %s\n", nameWidth, r.Name, th.state(fmt.Sprintf("%-20s", r.State), r.Succeeded()), addr)
	}
	fmt.Fprintf(&b, "%d of %d VMs bootstrapped\n", len(reports)-failed, len(reports))

	_, err := io.WriteString(w, b.String())
	return err
}
