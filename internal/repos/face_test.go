package repos

import (
	"context"
	"errors"
	"testing"

	errs "github.com/mvasquez-dev/photoloom-backend/internal/pkg/errors"
	"github.com/mvasquez-dev/photoloom-backend/internal/platform/logger"
	"github.com/mvasquez-dev/photoloom-backend/internal/types"
)

func TestFaceUpsertIdempotent(t *testing.T) {
	gdb := newTestDB(t)
	seedEntity(t, gdb, 42, 1)
	repo := NewFaceRepo(gdb, logger.NewNop(), testPolicy())
	ctx := context.Background()

	faceID := types.FaceID(42, 0)
	first, err := repo.Upsert(ctx, nil, &types.Face{
		ID:         faceID,
		EntityID:   42,
		X1:         10, Y1: 20, X2: 110, Y2: 120,
		Confidence: 0.91,
		CropPath:   "crops/420000.jpg",
	})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if first.ID != 420000 {
		t.Fatalf("face id want=420000 got=%d", first.ID)
	}

	// Re-delivered detection payload with a slightly different box lands on
	// the same row.
	second, err := repo.Upsert(ctx, nil, &types.Face{
		ID:         faceID,
		EntityID:   42,
		X1:         11, Y1: 20, X2: 110, Y2: 120,
		Confidence: 0.93,
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.Confidence != 0.93 {
		t.Fatalf("confidence want=0.93 got=%v", second.Confidence)
	}
	if second.CropPath != "crops/420000.jpg" {
		t.Fatalf("crop path cleared on merge: got=%q", second.CropPath)
	}
	if n := countRows(t, gdb, &types.Face{}); n != 1 {
		t.Fatalf("face rows want=1 got=%d", n)
	}
}

func TestFaceUpsertKeepsPersonLink(t *testing.T) {
	gdb := newTestDB(t)
	seedEntity(t, gdb, 42, 1)
	repo := NewFaceRepo(gdb, logger.NewNop(), testPolicy())
	persons := NewPersonRepo(gdb, logger.NewNop(), testPolicy())
	ctx := context.Background()

	faceID := types.FaceID(42, 0)
	if _, err := repo.Upsert(ctx, nil, &types.Face{ID: faceID, EntityID: 42, Confidence: 0.9}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	person, err := persons.Create(ctx, nil, &types.Person{})
	if err != nil {
		t.Fatalf("create person: %v", err)
	}
	if err := repo.LinkPerson(ctx, nil, faceID, person.ID); err != nil {
		t.Fatalf("link: %v", err)
	}

	// Detection re-delivery carries no person id and must not unlink.
	merged, err := repo.Upsert(ctx, nil, &types.Face{ID: faceID, EntityID: 42, Confidence: 0.9})
	if err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	if merged.PersonID == nil || *merged.PersonID != person.ID {
		t.Fatalf("person link lost on merge: got=%v", merged.PersonID)
	}
}

func TestFaceUpsertStaleEntity(t *testing.T) {
	gdb := newTestDB(t)
	repo := NewFaceRepo(gdb, logger.NewNop(), testPolicy())
	ctx := context.Background()

	_, err := repo.Upsert(ctx, nil, &types.Face{ID: types.FaceID(99, 0), EntityID: 99})
	var stale *errs.StaleReferenceError
	if !errors.As(err, &stale) {
		t.Fatalf("want StaleReferenceError got=%v", err)
	}

	face, err := repo.TryUpsert(ctx, nil, &types.Face{ID: types.FaceID(99, 0), EntityID: 99})
	if err != nil {
		t.Fatalf("tolerant upsert must not error: %v", err)
	}
	if face != nil {
		t.Fatalf("tolerant upsert want=nil got=%+v", face)
	}
	if n := countRows(t, gdb, &types.Face{}); n != 0 {
		t.Fatalf("face rows want=0 got=%d", n)
	}
}

func TestFaceLinkPersonMissingFace(t *testing.T) {
	gdb := newTestDB(t)
	repo := NewFaceRepo(gdb, logger.NewNop(), testPolicy())
	ctx := context.Background()

	err := repo.LinkPerson(ctx, nil, 123456, 1)
	var stale *errs.StaleReferenceError
	if !errors.As(err, &stale) {
		t.Fatalf("want StaleReferenceError got=%v", err)
	}
	if err := repo.TryLinkPerson(ctx, nil, 123456, 1); err != nil {
		t.Fatalf("tolerant link must not error: %v", err)
	}
}

func TestFaceDeleteCascadesMatches(t *testing.T) {
	gdb := newTestDB(t)
	seedEntity(t, gdb, 1, 1)
	seedEntity(t, gdb, 2, 2)
	faces := NewFaceRepo(gdb, logger.NewNop(), testPolicy())
	matches := NewFaceMatchRepo(gdb, logger.NewNop(), testPolicy())
	ctx := context.Background()

	a := types.FaceID(1, 0)
	b := types.FaceID(2, 0)
	for _, f := range []*types.Face{
		{ID: a, EntityID: 1},
		{ID: b, EntityID: 2},
	} {
		if _, err := faces.Upsert(ctx, nil, f); err != nil {
			t.Fatalf("upsert %d: %v", f.ID, err)
		}
	}
	if _, err := matches.CreateBatch(ctx, nil, []*types.FaceMatch{
		{FaceID: a, MatchedFaceID: b, Score: 0.8},
		{FaceID: b, MatchedFaceID: a, Score: 0.8},
	}); err != nil {
		t.Fatalf("create matches: %v", err)
	}

	if err := faces.Delete(ctx, nil, a); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n := countRows(t, gdb, &types.FaceMatch{}); n != 0 {
		t.Fatalf("match edges want=0 got=%d", n)
	}
	if n := countRows(t, gdb, &types.Face{}); n != 1 {
		t.Fatalf("face rows want=1 got=%d", n)
	}
}
