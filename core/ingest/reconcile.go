package ingest

import (
	"context"
	"fmt"
	"time"

	"tunevault/logger"
	"tunevault/metrics"
	"tunevault/storage"
)

// RefSource lists every artifact ref that a record points at.
type RefSource interface {
	ArtifactRefs(ctx context.Context) (map[string]struct{}, error)
}

// Orphan is an artifact with no referencing record.
type Orphan struct {
	Key          string
	Size         int64
	LastModified time.Time
	Deleted      bool
}

// SweepReport summarizes one reconciliation pass.
type SweepReport struct {
	Scanned int
	// Young counts unreferenced artifacts still inside the grace period.
	Young   int
	Orphans []Orphan
	Failed  int
	DryRun  bool
}

// Reconciler deletes artifacts left behind by interrupted ingestions and
// failed cleanups. Running it repeatedly is safe.
type Reconciler struct {
	refs      RefSource
	artifacts storage.ArtifactStore
	grace     time.Duration
	now       func() time.Time
}

// NewReconciler creates a reconciler. Unreferenced artifacts younger than
// grace are left alone so in-flight ingestions are never touched.
func NewReconciler(refs RefSource, artifacts storage.ArtifactStore, grace time.Duration) *Reconciler {
	return &Reconciler{refs: refs, artifacts: artifacts, grace: grace, now: time.Now}
}

// Sweep lists artifacts before loading refs, so an artifact whose record
// is created mid-sweep is either referenced or still young.
func (r *Reconciler) Sweep(ctx context.Context, dryRun bool) (*SweepReport, error) {
	var objects []storage.ObjectInfo
	for _, prefix := range []string{AudioPrefix, CoverPrefix} {
		objs, err := r.artifacts.List(ctx, prefix)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		objects = append(objects, objs...)
	}

	refs, err := r.refs.ArtifactRefs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load artifact refs: %w", err)
	}

	report := &SweepReport{Scanned: len(objects), DryRun: dryRun}
	cutoff := r.now().Add(-r.grace)
	for _, obj := range objects {
		if _, ok := refs[obj.Key]; ok {
			continue
		}
		if obj.LastModified.After(cutoff) {
			report.Young++
			continue
		}
		orphan := Orphan{Key: obj.Key, Size: obj.Size, LastModified: obj.LastModified}
		if !dryRun {
			if _, err := r.artifacts.Delete(ctx, obj.Key); err != nil {
				report.Failed++
				metrics.Cleanup("orphan", err)
				logger.Warn("orphan delete failed", logger.String("key", obj.Key), logger.ErrorField(err))
			} else {
				orphan.Deleted = true
				metrics.Cleanup("orphan", nil)
			}
		}
		report.Orphans = append(report.Orphans, orphan)
	}

	logger.Info("reconcile sweep finished",
		logger.Int("scanned", report.Scanned),
		logger.Int("orphans", len(report.Orphans)),
		logger.Int("young", report.Young),
		logger.Int("failed", report.Failed),
		logger.Bool("dryRun", dryRun))
	return report, nil
}
