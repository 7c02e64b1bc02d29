package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/nodeseed/internal/progress"
	"github.com/imamik/nodeseed/internal/util/naming"
)

// JournalEntry is one line of a journal file.
type JournalEntry struct {
	Kind    string            `json:"kind"`
	Time    time.Time         `json:"time"`
	RunID   string            `json:"runID,omitempty"`
	Node    string            `json:"node"`
	Type    string            `json:"type,omitempty"`
	Message string            `json:"message,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
	Report  *Report           `json:"report,omitempty"`
}

// Journal appends progress events and final reports to one JSON-lines
// file per node under a directory. It is both an Observer and a Sink.
type Journal struct {
	dir string
	log logr.Logger

	mu    sync.Mutex
	files map[string]*os.File
}

// NewJournal creates the journal directory if needed.
func NewJournal(dir string, log logr.Logger) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}
	return &Journal{dir: dir, log: log, files: map[string]*os.File{}}, nil
}

// Event implements progress.Observer. Write failures are logged; progress
// reporting never fails a run.
func (j *Journal) Event(e progress.Event) {
	if e.Node == "" {
		return
	}
	err := j.append(JournalEntry{
		Kind:    "event",
		Time:    e.Timestamp,
		RunID:   e.RunID,
		Node:    e.Node,
		Type:    string(e.Type),
		Message: e.Message,
		Fields:  e.Fields,
	})
	if err != nil {
		j.log.Error(err, "journal write failed", "node", e.Node)
	}
}

// Publish implements Sink.
func (j *Journal) Publish(_ context.Context, r *Report) error {
	return j.append(JournalEntry{
		Kind:   "report",
		Time:   r.FinishedAt,
		RunID:  r.RunID,
		Node:   r.Name,
		Report: r,
	})
}

// Close closes every open journal file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	var errs []error
	for node, f := range j.files {
		errs = append(errs, f.Close())
		delete(j.files, node)
	}
	return errors.Join(errs...)
}

func (j *Journal) append(entry JournalEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode journal entry: %w", err)
	}
	line = append(line, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()
	f, err := j.file(entry.Node)
	if err != nil {
		return err
	}
	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("failed to write journal for %s: %w", entry.Node, err)
	}
	return nil
}

func (j *Journal) file(node string) (*os.File, error) {
	if f, ok := j.files[node]; ok {
		return f, nil
	}
	// #nosec G304
	f, err := os.OpenFile(naming.JournalFile(j.dir, node), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal for %s: %w", node, err)
	}
	j.files[node] = f
	return f, nil
}
