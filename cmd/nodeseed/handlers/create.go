package handlers

import (
	"context"
	"fmt"

	"github.com/imamik/nodeseed/internal/metrics"
	"github.com/imamik/nodeseed/internal/progress"
	"github.com/imamik/nodeseed/internal/report"
	"github.com/imamik/nodeseed/internal/workflow"
)

// Create handles the create command.
//
// It provisions and bootstraps the named VMs (all configured VMs when names
// is empty), publishes one report per VM and a batch summary, and returns an
// error when any VM did not reach BootstrapSucceeded.
func Create(ctx context.Context, opts *Options, names []string) error {
	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}

	reqs, err := workflow.RequestsFromConfig(cfg, names)
	if err != nil {
		return err
	}
	if len(reqs) == 0 {
		return fmt.Errorf("no VMs defined in %s", opts.ConfigPath)
	}

	settings, err := workflow.SettingsFromConfig(cfg)
	if err != nil {
		return err
	}

	log, flush, err := newLogger(opts.Verbose)
	if err != nil {
		return err
	}
	defer flush()

	out := opts.out()
	writer := report.NewWriterSink(out)
	sinks := []report.Sink{writer, report.NewLogSink(log)}
	observers := []progress.Observer{report.NewPrinter(out, opts.Verbose)}

	if cfg.SockDir != "" {
		journal, err := report.NewJournal(cfg.SockDir, log)
		if err != nil {
			return err
		}
		defer func() {
			if err := journal.Close(); err != nil {
				log.Error(err, "failed to close journal")
			}
		}()
		sinks = append(sinks, journal)
		observers = append(observers, journal)
	}

	if cfg.Archive != nil {
		store, err := newObjectStore(ctx, cfg.Archive)
		if err != nil {
			return fmt.Errorf("failed to create report archive client: %w", err)
		}
		sinks = append(sinks, report.NewArchiveSink(store, cfg.Archive.Bucket, cfg.Archive.Prefix))
	}

	rec := metrics.NewRecorder()
	runner, err := workflow.NewRunner(newDriver(), newConnector(cfg), settings,
		workflow.WithLimiter(workflow.NewLimiter(cfg.Provider)),
		workflow.WithMetrics(rec),
		workflow.WithObserver(progress.Multi(observers...)),
		workflow.WithLogger(log),
	)
	if err != nil {
		return err
	}

	log.V(1).Info("starting batch", "vms", len(reqs), "concurrency", cfg.Concurrency)
	results, runErr := runner.RunBatch(ctx, reqs, cfg.Concurrency)

	// Reports still go out after an interrupt: a created node must not go
	// unreported.
	pubCtx := context.WithoutCancel(ctx)
	reports := make([]*report.Report, len(results))
	failed := 0
	for i, res := range results {
		reports[i] = report.Build(res)
		if !reports[i].Succeeded() {
			failed++
		}
		if err := report.Publish(pubCtx, reports[i], sinks...); err != nil {
			log.Error(err, "failed to publish report", "node", res.Request.Name)
		}
	}
	if err := writer.Summary(reports); err != nil {
		log.Error(err, "failed to write summary")
	}

	if opts.MetricsFile != "" {
		if err := rec.WriteTextfile(opts.MetricsFile); err != nil {
			log.Error(err, "failed to write metrics")
		}
	}

	if runErr != nil {
		return fmt.Errorf("%d of %d VMs failed: %w", failed, len(results), runErr)
	}
	return nil
}
