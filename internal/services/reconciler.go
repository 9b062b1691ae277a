package services

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mvasquez-dev/photoloom-backend/internal/platform/logger"
	"github.com/mvasquez-dev/photoloom-backend/internal/repos"
)

// Reconciler diffs the sync cursor against the entity version log and submits
// intelligence jobs for everything that changed. One logical instance runs at
// a time; a racing second instance only costs duplicate compute, because
// every downstream write is an idempotent keyed upsert.
type Reconciler interface {
	// RunOnce performs a single reconciliation pass and reports how many
	// entities had jobs submitted.
	RunOnce(ctx context.Context) (int, error)
	// Start runs passes on the configured interval until ctx is done.
	Start(ctx context.Context)
	// Trigger requests an immediate pass; no-op when one is already queued.
	Trigger(reason string)
}

type ReconcilerConfig struct {
	Interval    time.Duration
	Parallelism int
}

type reconciler struct {
	log        *logger.Logger
	cfg        ReconcilerConfig
	cursor     repos.SyncCursorRepo
	versions   repos.EntityVersionRepo
	submission SubmissionService

	mu   sync.Mutex
	wake chan string
}

func NewReconciler(
	baseLog *logger.Logger,
	cfg ReconcilerConfig,
	cursor repos.SyncCursorRepo,
	versions repos.EntityVersionRepo,
	submission SubmissionService,
) Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 4
	}
	return &reconciler{
		log:        baseLog.With("service", "Reconciler"),
		cfg:        cfg,
		cursor:     cursor,
		versions:   versions,
		submission: submission,
		wake:       make(chan string, 1),
	}
}

func (r *reconciler) RunOnce(ctx context.Context) (int, error) {
	// Serialize passes within this process; overlapping passes would only
	// duplicate submissions.
	r.mu.Lock()
	defer r.mu.Unlock()

	cursor, err := r.cursor.Get(ctx, nil)
	if err != nil {
		return 0, err
	}

	changed, err := r.versions.GetVersionsInRange(ctx, nil, cursor.LastTxID, nil)
	if err != nil {
		return 0, err
	}
	if len(changed) == 0 {
		return 0, nil
	}

	var maxTxID int64
	for _, version := range changed {
		if version.TxID > maxTxID {
			maxTxID = version.TxID
		}
	}

	// Submission failures are logged per entity and never block the batch;
	// the cursor advances once every entity in the range has been attempted.
	submitted := 0
	var submittedMu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Parallelism)
	for _, version := range changed {
		version := version
		if version.Deleted {
			r.log.Debug("skipping deleted entity", "entity_id", version.EntityID, "tx_id", version.TxID)
			continue
		}
		g.Go(func() error {
			rec, err := r.submission.SubmitForEntity(gctx, version.EntityID)
			if err != nil {
				r.log.Warn("submission failed during reconciliation",
					"entity_id", version.EntityID,
					"tx_id", version.TxID,
					"error", err,
				)
				return nil
			}
			if rec != nil {
				submittedMu.Lock()
				submitted++
				submittedMu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if _, err := r.cursor.Advance(ctx, nil, maxTxID); err != nil {
		return submitted, err
	}

	r.log.Info("reconciliation pass finished",
		"entities_changed", len(changed),
		"entities_submitted", submitted,
		"cursor", maxTxID,
	)
	return submitted, nil
}

func (r *reconciler) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(r.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			case reason := <-r.wake:
				r.log.Debug("reconciliation triggered", "reason", reason)
			}
			if _, err := r.RunOnce(ctx); err != nil {
				r.log.Error("reconciliation pass failed", "error", err)
			}
		}
	}()
}

func (r *reconciler) Trigger(reason string) {
	select {
	case r.wake <- reason:
	default:
	}
}
