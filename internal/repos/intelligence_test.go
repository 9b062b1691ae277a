package repos

import (
	"context"
	"errors"
	"testing"

	errs "github.com/mvasquez-dev/photoloom-backend/internal/pkg/errors"
	"github.com/mvasquez-dev/photoloom-backend/internal/platform/logger"
	"github.com/mvasquez-dev/photoloom-backend/internal/types"
)

func strptr(s string) *string { return &s }

func TestIntelligenceUpsertMergesJobIDs(t *testing.T) {
	gdb := newTestDB(t)
	seedEntity(t, gdb, 42, 1)
	repo := NewIntelligenceRepo(gdb, logger.NewNop(), testPolicy())
	ctx := context.Background()

	first, err := repo.Upsert(ctx, nil, &types.IntelligenceRecord{
		EntityID:       42,
		DetectionJobID: strptr("job-det"),
	})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if first.ProcessingStatus != types.ProcessingStatusPending {
		t.Fatalf("fresh record status want=pending got=%q", first.ProcessingStatus)
	}

	// A later upsert carrying only the clip job must not blank detection.
	second, err := repo.Upsert(ctx, nil, &types.IntelligenceRecord{
		EntityID:         42,
		ClipJobID:        strptr("job-clip"),
		ProcessingStatus: types.ProcessingStatusProcessing,
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.DetectionJobID == nil || *second.DetectionJobID != "job-det" {
		t.Fatalf("detection job id lost on merge: got=%v", second.DetectionJobID)
	}
	if second.ClipJobID == nil || *second.ClipJobID != "job-clip" {
		t.Fatalf("clip job id want=job-clip got=%v", second.ClipJobID)
	}
	if second.ProcessingStatus != types.ProcessingStatusProcessing {
		t.Fatalf("status want=processing got=%q", second.ProcessingStatus)
	}
	if n := countRows(t, gdb, &types.IntelligenceRecord{}); n != 1 {
		t.Fatalf("record rows want=1 got=%d", n)
	}
}

func TestIntelligenceWritesToleratesMissingEntity(t *testing.T) {
	gdb := newTestDB(t)
	repo := NewIntelligenceRepo(gdb, logger.NewNop(), testPolicy())
	ctx := context.Background()

	_, err := repo.Upsert(ctx, nil, &types.IntelligenceRecord{EntityID: 99})
	var stale *errs.StaleReferenceError
	if !errors.As(err, &stale) {
		t.Fatalf("want StaleReferenceError got=%v", err)
	}

	rec, err := repo.TryUpsert(ctx, nil, &types.IntelligenceRecord{EntityID: 99})
	if err != nil {
		t.Fatalf("tolerant upsert must not error: %v", err)
	}
	if rec != nil {
		t.Fatalf("tolerant upsert want=nil got=%+v", rec)
	}

	if err := repo.UpdateStatus(ctx, nil, 99, types.ProcessingStatusFailed); !errors.As(err, &stale) {
		t.Fatalf("want StaleReferenceError got=%v", err)
	}
	if err := repo.TryUpdateStatus(ctx, nil, 99, types.ProcessingStatusFailed); err != nil {
		t.Fatalf("tolerant status update must not error: %v", err)
	}
	if n := countRows(t, gdb, &types.IntelligenceRecord{}); n != 0 {
		t.Fatalf("record rows want=0 got=%d", n)
	}
}

func TestIntelligenceGetNotFound(t *testing.T) {
	gdb := newTestDB(t)
	repo := NewIntelligenceRepo(gdb, logger.NewNop(), testPolicy())

	if _, err := repo.GetByEntityID(context.Background(), nil, 5); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("want ErrNotFound got=%v", err)
	}
}
