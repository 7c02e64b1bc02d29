package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/go-logr/logr"
)

// Sink receives finished reports.
type Sink interface {
	Publish(ctx context.Context, r *Report) error
}

// Publish sends r to every sink and joins their errors. A failing sink
// does not keep the others from receiving the report.
func Publish(ctx context.Context, r *Report, sinks ...Sink) error {
	var errs []error
	for _, s := range sinks {
		if s == nil {
			continue
		}
		if err := s.Publish(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WriterSink renders reports to a writer. Reports of concurrent runs are
// written whole, one at a time.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
	th theme
}

// NewWriterSink renders to w, styled when w is a terminal.
func NewWriterSink(w io.Writer) *WriterSink {
	return NewWriterSinkStyled(w, IsTerminal(w))
}

// NewWriterSinkStyled renders to w, styled or plain as requested.
func NewWriterSinkStyled(w io.Writer, styled bool) *WriterSink {
	th := plainTheme()
	if styled {
		th = styledTheme(w)
	}
	return &WriterSink{w: w, th: th}
}

// Publish implements Sink.
func (s *WriterSink) Publish(_ context.Context, r *Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := r.render(s.w, s.th); err != nil {
		return fmt.Errorf("failed to write report for %s: %w", r.Name, err)
	}
	return nil
}

// Summary writes the batch summary in the sink's style.
func (s *WriterSink) Summary(reports []*Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return renderSummary(s.w, reports, s.th)
}

// LogSink writes each report as one structured log entry.
type LogSink struct {
	log logr.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(log logr.Logger) *LogSink {
	return &LogSink{log: log}
}

// Publish implements Sink.
func (s *LogSink) Publish(_ context.Context, r *Report) error {
	kv := []any{
		"run", r.RunID,
		"node", r.Name,
		"state", r.State,
		"exists", r.Exists,
		"address", r.Address,
		"duration", r.FinishedAt.Sub(r.StartedAt),
	}
	if r.Bootstrap != nil {
		kv = append(kv, "exitCode", r.Bootstrap.ExitCode, "attempts", r.Bootstrap.Attempts)
	}
	if r.Error != "" {
		kv = append(kv, "error", r.Error, "errorKind", r.ErrorKind)
	}
	s.log.Info("provisioning report", kv...)
	return nil
}
