package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/imamik/nodeseed/internal/bootstrap"
	"github.com/imamik/nodeseed/internal/catalog"
	"github.com/imamik/nodeseed/internal/cloud"
	"github.com/imamik/nodeseed/internal/metrics"
	"github.com/imamik/nodeseed/internal/progress"
	"github.com/imamik/nodeseed/internal/provisioning"
	"github.com/imamik/nodeseed/internal/util/keygen"
	"github.com/imamik/nodeseed/internal/util/labels"
)

// Runner executes workflow runs. It is safe for concurrent use.
type Runner struct {
	driver    cloud.Driver
	connector bootstrap.Connector
	settings  Settings

	limiter  *rate.Limiter
	metrics  *metrics.Recorder
	observer progress.Observer
	log      logr.Logger
	now      func() time.Time
	newID    func() string
}

// Option configures a Runner.
type Option func(*Runner)

// WithLimiter sets the provider rate limiter shared by all runs.
func WithLimiter(l *rate.Limiter) Option {
	return func(r *Runner) {
		r.limiter = l
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Recorder) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithObserver sets the progress observer. It receives the events of
// every run, tagged with the run ID and node name.
func WithObserver(o progress.Observer) Option {
	return func(r *Runner) {
		r.observer = o
	}
}

// WithLogger sets the logger.
func WithLogger(log logr.Logger) Option {
	return func(r *Runner) {
		r.log = log
	}
}

// NewRunner creates a Runner.
func NewRunner(driver cloud.Driver, connector bootstrap.Connector, settings Settings, opts ...Option) (*Runner, error) {
	if driver == nil {
		return nil, fmt.Errorf("driver cannot be nil")
	}
	if connector == nil {
		return nil, fmt.Errorf("connector cannot be nil")
	}
	if settings.Script == nil {
		script, err := bootstrap.ParseScript("bootstrap", "")
		if err != nil {
			return nil, err
		}
		settings.Script = script
	}
	if settings.Family == "" {
		settings.Family = cloud.AddressPublic
	}
	if settings.KeyBits == 0 {
		settings.KeyBits = defaultKeyBits
	}

	r := &Runner{
		driver:    driver,
		connector: connector,
		settings:  settings,
		log:       logr.Discard(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// run is the state of one invocation of Run.
type run struct {
	*Runner
	res      *Result
	machine  *Machine
	observer progress.Observer
	log      logr.Logger
}

// Run drives req through the workflow. The returned Result is never nil
// and its Err is the returned error.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	res := &Result{
		RunID:     r.newID(),
		Request:   req,
		StartedAt: r.now(),
	}
	w := &run{
		Runner:   r,
		res:      res,
		machine:  NewMachine(r.now),
		observer: progress.WithFields(r.observer, res.RunID, req.Name, nil),
		log:      r.log.WithValues("run", res.RunID, "node", req.Name),
	}
	w.machine.onChange = func(t Transition) {
		w.log.V(1).Info("workflow state changed", "from", t.From, "to", t.To)
		progress.Emit(w.observer, progress.Event{
			Type:      progress.EventStateChanged,
			Message:   string(t.To),
			Timestamp: t.At,
			Fields:    map[string]string{"from": string(t.From)},
		})
	}

	res.Err = w.execute(ctx)

	res.State = w.machine.State()
	res.Transitions = w.machine.History()
	res.FinishedAt = r.now()
	r.metrics.RecordWorkflow(string(res.State), res.Duration())
	if res.Err != nil {
		w.log.Info("workflow failed", "state", res.State, "error", res.Err.Error())
	} else {
		w.log.Info("workflow succeeded", "address", res.Address, "duration", res.Duration())
	}
	return res, res.Err
}

func (w *run) execute(ctx context.Context) error {
	req := w.res.Request
	if err := req.Validate(); err != nil {
		return w.fail(ctx, StateAborted, err)
	}

	handle, err := cloud.Connect(ctx, w.settings.Credentials, w.driver,
		cloud.WithLimiter(w.limiter),
		cloud.WithMetrics(w.metrics),
		cloud.WithLogger(w.log),
	)
	if err != nil {
		return w.fail(ctx, StateAborted, err)
	}

	sel, err := catalog.NewResolver(handle).Resolve(ctx, req.Image, req.Size)
	if err != nil {
		return w.fail(ctx, StateAborted, err)
	}
	w.res.Selection = sel

	var key *keygen.KeyPair
	var userData string
	if w.settings.GenerateKey {
		key, err = keygen.GenerateRSAKeyPair(w.settings.KeyBits)
		if err != nil {
			return w.fail(ctx, StateAborted, err)
		}
		userData, err = bootstrap.AuthorizedKeyUserData(key.AuthorizedKey())
		if err != nil {
			return w.fail(ctx, StateAborted, err)
		}
	}

	// The create request leaves this process here; from now on nothing is
	// rolled back.
	w.advance(StateSubmitted)
	prov := provisioning.NewProvisioner(w.settings.Wait,
		provisioning.WithObserver(w.observer),
		provisioning.WithMetrics(w.metrics),
		provisioning.WithLogger(w.log),
		provisioning.WithSubmittedHook(func(node *cloud.NodeRecord) {
			w.res.Node = node
			w.advance(StateAddressPending)
		}),
	)
	node, err := prov.Provision(ctx, handle, provisioning.Spec{
		Request: cloud.CreateNodeRequest{
			Name:     req.Name,
			Image:    sel.Image,
			Size:     sel.Size,
			Location: req.Location,
			Labels:   labels.NewLabelBuilder().Merge(req.Labels).WithRun(w.res.RunID).Build(),
			UserData: userData,
		},
		Family: w.settings.Family,
	})
	if node != nil {
		w.res.Node = node
	}
	if err != nil {
		if errors.Is(err, cloud.ErrAddressTimeout) {
			return w.fail(ctx, StateAddressTimedOut, err)
		}
		return w.fail(ctx, StateProvisionFailed, err)
	}

	w.res.Address = node.Address(w.settings.Family)
	w.advance(StateAddressAssigned)
	return w.bootstrap(ctx, node, key)
}

func (w *run) bootstrap(ctx context.Context, node *cloud.NodeRecord, key *keygen.KeyPair) error {
	w.advance(StateBootstrapAttempting)

	cred, err := bootstrap.NodeCredential(w.settings.LoginUser, node, key)
	if err != nil {
		w.res.Outcome = &bootstrap.Outcome{ExitCode: -1, Err: err}
		return w.fail(ctx, StateBootstrapFailed, err)
	}

	body, err := w.settings.Script.Render(bootstrap.ScriptData{
		Name:    node.Name,
		Address: w.res.Address,
		Node:    node,
		Vars:    w.settings.Vars,
	})
	if err != nil {
		w.res.Outcome = &bootstrap.Outcome{ExitCode: -1, Err: err}
		return w.fail(ctx, StateBootstrapFailed, err)
	}

	deployer := bootstrap.NewDeployer(w.connector, w.settings.Bootstrap,
		bootstrap.WithObserver(w.observer),
		bootstrap.WithMetrics(w.metrics),
		bootstrap.WithLogger(w.log),
	)
	outcome, err := deployer.Deploy(ctx, bootstrap.Target{
		Name:       node.Name,
		Address:    w.res.Address,
		Credential: cred,
	}, body)
	w.res.Outcome = outcome
	if err != nil {
		return w.fail(ctx, StateBootstrapFailed, err)
	}

	w.advance(StateBootstrapSucceeded)
	return nil
}

// fail moves to state, or to Cancelled when ctx is done, and returns err.
func (w *run) fail(ctx context.Context, state State, err error) error {
	if ctx.Err() != nil {
		state = StateCancelled
	}
	w.advance(state)
	return err
}

func (w *run) advance(next State) {
	if err := w.machine.To(next); err != nil {
		w.log.Error(err, "workflow state not advanced")
	}
}
