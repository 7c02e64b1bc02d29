package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/nodeseed/internal/cloud"
	"github.com/imamik/nodeseed/internal/metrics"
	"github.com/imamik/nodeseed/internal/progress"
	"github.com/imamik/nodeseed/internal/util/retry"
)

const (
	defaultConnectAttempts = 10
	defaultConnectDelay    = 5 * time.Second
	defaultMaxConnectDelay = 30 * time.Second
)

// ErrNoAddress is returned when Deploy is called for a target without an
// address. It indicates a caller bug: nodes without an address never reach
// the bootstrap phase.
var ErrNoAddress = errors.New("bootstrap target has no address")

// Config bounds the connection retry loop.
type Config struct {
	// ConnectAttempts is the total number of connection attempts.
	ConnectAttempts int
	ConnectDelay    time.Duration
	MaxConnectDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.ConnectAttempts <= 0 {
		c.ConnectAttempts = defaultConnectAttempts
	}
	if c.ConnectDelay <= 0 {
		c.ConnectDelay = defaultConnectDelay
	}
	if c.MaxConnectDelay <= 0 {
		c.MaxConnectDelay = defaultMaxConnectDelay
	}
	if c.MaxConnectDelay < c.ConnectDelay {
		c.MaxConnectDelay = c.ConnectDelay
	}
	return c
}

// Target is the node a script is deployed to.
type Target struct {
	Name       string
	Address    string
	Credential Credential
}

// Outcome is the terminal result of one bootstrap attempt.
type Outcome struct {
	Succeeded bool
	ExitCode  int
	Output    string
	// Attempts is the number of connection attempts made.
	Attempts int
	Duration time.Duration
	Err      error
}

// Deployer connects to nodes and runs bootstrap scripts on them.
type Deployer struct {
	connector Connector
	config    Config
	observer  progress.Observer
	metrics   *metrics.Recorder
	log       logr.Logger
}

// Option configures a Deployer.
type Option func(*Deployer)

// WithObserver sets the progress observer.
func WithObserver(o progress.Observer) Option {
	return func(d *Deployer) {
		d.observer = o
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Recorder) Option {
	return func(d *Deployer) {
		d.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(log logr.Logger) Option {
	return func(d *Deployer) {
		d.log = log
	}
}

// NewDeployer creates a Deployer using connector for remote shells.
func NewDeployer(connector Connector, cfg Config, opts ...Option) *Deployer {
	d := &Deployer{
		connector: connector,
		config:    cfg.withDefaults(),
		log:       logr.Discard(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Deploy connects to target and runs script. The returned Outcome is never
// nil; the error is the same as Outcome.Err.
//
// Connection attempts failing with cloud.ErrConnectionRefused are retried
// until the attempt budget is spent. Any other connection error, including
// cloud.ErrAuthenticationRejected, stops at once. A non-zero exit yields a
// *cloud.ScriptExecutionError.
func (d *Deployer) Deploy(ctx context.Context, target Target, script string) (*Outcome, error) {
	start := time.Now()
	out := &Outcome{ExitCode: -1}
	finish := func(err error) (*Outcome, error) {
		out.Err = err
		out.Duration = time.Since(start)
		out.Succeeded = err == nil
		d.metrics.RecordBootstrapAttempts(out.Attempts, out.Succeeded)
		if err != nil {
			d.log.Info("bootstrap failed", "node", target.Name, "address", target.Address, "error", err.Error())
			progress.Emit(d.observer, progress.Event{
				Type:    progress.EventBootstrapFailed,
				Node:    target.Name,
				Message: err.Error(),
			})
		} else {
			d.log.Info("bootstrap succeeded", "node", target.Name, "address", target.Address, "duration", out.Duration)
			progress.Emit(d.observer, progress.Event{
				Type:    progress.EventBootstrapSucceeded,
				Node:    target.Name,
				Message: "bootstrap script exited 0",
				Fields:  map[string]string{"address": target.Address},
			})
		}
		return out, err
	}

	if target.Address == "" {
		return finish(fmt.Errorf("%w: %s", ErrNoAddress, target.Name))
	}

	shell, err := d.connect(ctx, target, out)
	if err != nil {
		return finish(err)
	}
	defer func() { _ = shell.Close() }()

	progress.Emit(d.observer, progress.Event{
		Type:    progress.EventBootstrapRunning,
		Node:    target.Name,
		Message: "running bootstrap script",
		Fields:  map[string]string{"address": target.Address},
	})

	res, err := shell.RunScript(ctx, script)
	if err != nil {
		return finish(fmt.Errorf("failed to run bootstrap script on %s: %w", target.Address, err))
	}
	out.ExitCode = res.ExitCode
	out.Output = res.Output
	if res.ExitCode != 0 {
		return finish(&cloud.ScriptExecutionError{
			Host:     target.Address,
			ExitCode: res.ExitCode,
			Output:   res.Output,
		})
	}
	return finish(nil)
}

func (d *Deployer) connect(ctx context.Context, target Target, out *Outcome) (Shell, error) {
	var shell Shell
	err := retry.WithExponentialBackoff(ctx, func(attempt int) error {
		out.Attempts = attempt
		progress.Emit(d.observer, progress.Event{
			Type:    progress.EventBootstrapConnecting,
			Node:    target.Name,
			Message: fmt.Sprintf("connecting to %s as %s", target.Address, target.Credential.User),
			Fields: map[string]string{
				"attempt": strconv.Itoa(attempt),
				"auth":    target.Credential.Method(),
			},
		})

		s, err := d.connector.Connect(ctx, target.Address, target.Credential)
		if err != nil {
			if errors.Is(err, cloud.ErrConnectionRefused) {
				return err
			}
			return retry.Fatal(err)
		}
		shell = s
		return nil
	},
		retry.WithMaxAttempts(d.config.ConnectAttempts),
		retry.WithInitialDelay(d.config.ConnectDelay),
		retry.WithMaxDelay(d.config.MaxConnectDelay),
		retry.WithOnRetry(func(attempt int, delay time.Duration, err error) {
			d.log.V(1).Info("shell not reachable yet", "node", target.Name, "attempt", attempt, "next", delay, "error", err.Error())
			progress.Emit(d.observer, progress.Event{
				Type:    progress.EventBootstrapRetry,
				Node:    target.Name,
				Message: err.Error(),
				Fields: map[string]string{
					"attempt": strconv.Itoa(attempt),
					"next":    delay.String(),
				},
			})
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s after %d attempts: %w", target.Address, out.Attempts, err)
	}
	return shell, nil
}
