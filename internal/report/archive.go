package report

import (
	"context"
	"fmt"
	"sync"

	"sigs.k8s.io/yaml"

	"github.com/imamik/nodeseed/internal/util/naming"
)

// ObjectStore is the part of an S3 client the archive needs.
type ObjectStore interface {
	EnsureBucket(ctx context.Context, bucket string) error
	PutObject(ctx context.Context, bucket, key, contentType string, data []byte) error
}

// ArchiveSink uploads every report as a YAML object to
// {prefix}/{name}/{runID}.yaml.
type ArchiveSink struct {
	store  ObjectStore
	bucket string
	prefix string

	mu      sync.Mutex
	ensured bool
}

// NewArchiveSink creates an ArchiveSink.
func NewArchiveSink(store ObjectStore, bucket, prefix string) *ArchiveSink {
	return &ArchiveSink{store: store, bucket: bucket, prefix: prefix}
}

// Publish implements Sink. The bucket is created on first use.
func (s *ArchiveSink) Publish(ctx context.Context, r *Report) error {
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}

	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal report for %s: %w", r.Name, err)
	}

	key := naming.ReportKey(s.prefix, r.Name, r.RunID)
	if err := s.store.PutObject(ctx, s.bucket, key, "application/yaml", data); err != nil {
		return fmt.Errorf("failed to archive report for %s: %w", r.Name, err)
	}
	return nil
}

func (s *ArchiveSink) ensureBucket(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ensured {
		return nil
	}
	if err := s.store.EnsureBucket(ctx, s.bucket); err != nil {
		return fmt.Errorf("failed to prepare report bucket %s: %w", s.bucket, err)
	}
	s.ensured = true
	return nil
}
