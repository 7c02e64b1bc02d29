// Package handlers implements the nodeseed CLI commands.
//
// Collaborators that talk to the outside world (provider driver, SSH
// connector, object store, logger) are created through package-level
// factory variables so tests can replace them.
package handlers

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/imamik/nodeseed/internal/bootstrap"
	"github.com/imamik/nodeseed/internal/cloud"
	"github.com/imamik/nodeseed/internal/config"
	"github.com/imamik/nodeseed/internal/metrics"
	"github.com/imamik/nodeseed/internal/platform/hcloud"
	"github.com/imamik/nodeseed/internal/platform/s3"
	"github.com/imamik/nodeseed/internal/platform/ssh"
	"github.com/imamik/nodeseed/internal/report"
	"github.com/imamik/nodeseed/internal/workflow"
)

// Options are the global CLI flags.
type Options struct {
	ConfigPath  string
	Verbose     bool
	MetricsFile string

	// Out receives progress and reports. Defaults to stdout.
	Out io.Writer
}

func (o *Options) out() io.Writer {
	if o.Out == nil {
		return os.Stdout
	}
	return o.Out
}

var appVersion = "dev"

// SetVersion sets the version reported to the provider API.
func SetVersion(v string) {
	appVersion = v
}

// Factory function variables - can be replaced in tests for dependency injection.
var (
	loadConfig = config.Load

	newDriver = func() cloud.Driver {
		return hcloud.NewDriver(hcloud.WithVersion(appVersion))
	}

	newConnector = func(cfg *config.Config) bootstrap.Connector {
		return ssh.NewConnector(ssh.Config{
			Port:        cfg.Bootstrap.Port,
			DialTimeout: cfg.Bootstrap.DialTimeout,
			RemotePath:  cfg.Bootstrap.RemotePath,
		})
	}

	newObjectStore = func(ctx context.Context, a *config.Archive) (report.ObjectStore, error) {
		client, err := s3.NewClient(ctx, s3.Config{
			Endpoint:     a.Endpoint,
			Region:       a.Region,
			AccessKey:    a.AccessKey,
			SecretKey:    a.SecretKey,
			UsePathStyle: a.UsePathStyle,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	newLogger = buildLogger
)

// buildLogger returns a zap-backed logger writing to stderr, and a function
// flushing it. Verbose enables logr V(1) and V(2) messages; otherwise only
// errors are logged.
func buildLogger(verbose bool) (logr.Logger, func(), error) {
	zc := zap.NewDevelopmentConfig()
	zc.DisableStacktrace = true
	zc.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zapcore.Level(-2))
	}

	zl, err := zc.Build()
	if err != nil {
		return logr.Discard(), func() {}, fmt.Errorf("failed to create logger: %w", err)
	}
	return zapr.NewLogger(zl), func() { _ = zl.Sync() }, nil
}

// session is the state shared by the inspection commands.
type session struct {
	opts    *Options
	cfg     *config.Config
	handle  *cloud.Handle
	metrics *metrics.Recorder
	log     logr.Logger
	flush   func()
}

// close writes the metrics file, if requested, and flushes the logger.
func (s *session) close() {
	defer s.flush()
	if s.opts.MetricsFile == "" {
		return
	}
	if err := s.metrics.WriteTextfile(s.opts.MetricsFile); err != nil {
		s.log.Error(err, "failed to write metrics")
	}
}

// connect loads the configuration and opens an authenticated provider
// handle. The caller must call close.
func connect(ctx context.Context, opts *Options) (*session, error) {
	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	log, flush, err := newLogger(opts.Verbose)
	if err != nil {
		return nil, err
	}

	rec := metrics.NewRecorder()
	handle, err := cloud.Connect(ctx, workflow.CredentialsFromConfig(cfg.Provider), newDriver(),
		cloud.WithLimiter(workflow.NewLimiter(cfg.Provider)),
		cloud.WithMetrics(rec),
		cloud.WithLogger(log),
	)
	if err != nil {
		flush()
		return nil, err
	}

	return &session{opts: opts, cfg: cfg, handle: handle, metrics: rec, log: log, flush: flush}, nil
}
