package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/datatypes"

	errs "github.com/mvasquez-dev/photoloom-backend/internal/pkg/errors"
	"github.com/mvasquez-dev/photoloom-backend/internal/platform/compute"
	"github.com/mvasquez-dev/photoloom-backend/internal/platform/logger"
	"github.com/mvasquez-dev/photoloom-backend/internal/platform/qdrant"
	"github.com/mvasquez-dev/photoloom-backend/internal/repos"
	"github.com/mvasquez-dev/photoloom-backend/internal/types"
)

// CallbackRouter folds asynchronous job completions back into the store.
// Completions arrive out of order and at least once; every handler is
// idempotent and uses tolerant writes, because the owning entity may have
// been deleted while the job was in flight. A stale callback is a logged
// no-op, never an error.
type CallbackRouter interface {
	HandleCompletion(ctx context.Context, completion compute.Completion) error
}

type completionHandler func(ctx context.Context, job *types.JobRecord, completion compute.Completion) error

type callbackRouter struct {
	log        *logger.Logger
	submission SubmissionService
	matcher    FaceMatcher
	stores     VectorStores
	intel      repos.IntelligenceRepo
	jobs       repos.JobRecordRepo
	faces      repos.FaceRepo

	handlers map[types.TaskType]completionHandler
}

func NewCallbackRouter(
	baseLog *logger.Logger,
	submission SubmissionService,
	matcher FaceMatcher,
	stores VectorStores,
	intel repos.IntelligenceRepo,
	jobs repos.JobRecordRepo,
	faces repos.FaceRepo,
) CallbackRouter {
	r := &callbackRouter{
		log:        baseLog.With("service", "CallbackRouter"),
		submission: submission,
		matcher:    matcher,
		stores:     stores,
		intel:      intel,
		jobs:       jobs,
		faces:      faces,
	}
	// The closed task-to-handler table. New task types are added here and
	// nowhere else.
	r.handlers = map[types.TaskType]completionHandler{
		types.TaskFaceDetection:   r.handleDetection,
		types.TaskClipEmbedding:   r.handleImageEmbedding,
		types.TaskSiglipEmbedding: r.handleImageEmbedding,
		types.TaskFaceEmbedding:   r.handleFaceEmbedding,
	}
	return r
}

func (r *callbackRouter) HandleCompletion(ctx context.Context, completion compute.Completion) error {
	job, err := r.jobs.GetByExternalID(ctx, nil, completion.JobID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			// Job rows cascade with entity deletion; an unknown job id means
			// the entity is gone or the callback is for someone else's job.
			r.log.Debug("callback for unknown job", "external_job_id", completion.JobID, "task_type", completion.TaskType)
			return nil
		}
		return err
	}
	if job.Terminal() {
		r.log.Debug("duplicate callback ignored for terminal job",
			"external_job_id", completion.JobID,
			"status", job.Status,
		)
		return nil
	}

	if completion.Status == compute.CompletionFailed {
		return r.recordFailure(ctx, job, completion.Error)
	}

	handler, ok := r.handlers[job.TaskType]
	if !ok {
		return fmt.Errorf("no handler for task type %q", job.TaskType)
	}
	if err := handler(ctx, job, completion); err != nil {
		// Handler failures (vector store down, malformed payload) demote to
		// job-level failures; the pipeline itself keeps running.
		r.log.Error("completion handling failed",
			"external_job_id", completion.JobID,
			"task_type", job.TaskType,
			"entity_id", job.EntityID,
			"error", err,
		)
		return r.recordFailure(ctx, job, err.Error())
	}

	if _, err := r.jobs.TryMarkTerminal(ctx, nil, completion.JobID, types.JobStatusSucceeded, ""); err != nil {
		return err
	}
	return r.maybeComplete(ctx, job.EntityID)
}

func (r *callbackRouter) recordFailure(ctx context.Context, job *types.JobRecord, message string) error {
	if _, err := r.jobs.TryMarkTerminal(ctx, nil, job.ExternalJobID, types.JobStatusFailed, message); err != nil {
		return err
	}
	if job.TaskType.TopLevel() {
		// One top-level failure fails the whole entity, even when the other
		// two jobs succeeded.
		if err := r.intel.TryUpdateStatus(ctx, nil, job.EntityID, types.ProcessingStatusFailed); err != nil {
			return err
		}
	}
	r.log.Info("job failed",
		"external_job_id", job.ExternalJobID,
		"task_type", job.TaskType,
		"entity_id", job.EntityID,
		"error", message,
	)
	if !job.TaskType.TopLevel() {
		// A failed face embedding may still be the last outstanding job.
		return r.maybeComplete(ctx, job.EntityID)
	}
	return nil
}

func (r *callbackRouter) handleDetection(ctx context.Context, job *types.JobRecord, completion compute.Completion) error {
	var result compute.DetectionResult
	if err := json.Unmarshal(completion.Result, &result); err != nil {
		return fmt.Errorf("decode detection result: %w", err)
	}
	if len(result.Faces) >= types.FaceIDStride {
		return fmt.Errorf("detection reported %d faces, above the id stride", len(result.Faces))
	}

	for i, detected := range result.Faces {
		var landmarks datatypes.JSON
		if len(detected.Landmarks) > 0 {
			raw, err := json.Marshal(detected.Landmarks)
			if err != nil {
				return fmt.Errorf("encode landmarks: %w", err)
			}
			landmarks = datatypes.JSON(raw)
		}
		face, err := r.faces.TryUpsert(ctx, nil, &types.Face{
			ID:         types.FaceID(job.EntityID, i),
			EntityID:   job.EntityID,
			X1:         detected.X1,
			Y1:         detected.Y1,
			X2:         detected.X2,
			Y2:         detected.Y2,
			Confidence: detected.Confidence,
			Landmarks:  landmarks,
			CropPath:   detected.CropPath,
		})
		if err != nil {
			return err
		}
		if face == nil {
			// Entity deleted mid-callback; nothing left to embed.
			return nil
		}
		if _, err := r.submission.SubmitFaceEmbedding(ctx, face); err != nil {
			r.log.Warn("face embedding submission failed", "face_id", face.ID, "error", err)
		}
	}
	return nil
}

func (r *callbackRouter) handleImageEmbedding(ctx context.Context, job *types.JobRecord, completion compute.Completion) error {
	vector, err := decodeEmbedding(completion)
	if err != nil {
		return err
	}
	store, err := r.stores.ForTask(job.TaskType)
	if err != nil {
		return err
	}
	return store.Upsert(ctx, []qdrant.Vector{{
		ID:       entityKey(job.EntityID),
		Values:   vector,
		Metadata: map[string]any{"entity_id": job.EntityID},
	}})
}

func (r *callbackRouter) handleFaceEmbedding(ctx context.Context, job *types.JobRecord, completion compute.Completion) error {
	if job.FaceID == nil {
		return fmt.Errorf("face embedding job %s has no face id", job.ExternalJobID)
	}
	vector, err := decodeEmbedding(completion)
	if err != nil {
		return err
	}
	return r.matcher.MatchFace(ctx, *job.FaceID, vector)
}

// maybeComplete flips the record to completed once every job for the entity
// is terminal and all three top-level jobs succeeded. Face-embedding
// failures do not fail the entity.
func (r *callbackRouter) maybeComplete(ctx context.Context, entityID int64) error {
	rec, err := r.intel.GetByEntityID(ctx, nil, entityID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil
		}
		return err
	}
	if rec.ProcessingStatus == types.ProcessingStatusFailed ||
		rec.ProcessingStatus == types.ProcessingStatusCompleted {
		return nil
	}
	if rec.DetectionJobID == nil || rec.ClipJobID == nil || rec.SiglipJobID == nil {
		return nil
	}

	jobs, err := r.jobs.ListByEntityID(ctx, nil, entityID)
	if err != nil {
		return err
	}
	topLevelSucceeded := 0
	for _, job := range jobs {
		if !job.Terminal() {
			return nil
		}
		if job.TaskType.TopLevel() && job.Status == types.JobStatusSucceeded {
			topLevelSucceeded++
		}
	}
	if topLevelSucceeded < 3 {
		return nil
	}

	if err := r.intel.TryUpdateStatus(ctx, nil, entityID, types.ProcessingStatusCompleted); err != nil {
		return err
	}
	r.log.Info("entity processing completed", "entity_id", entityID)
	return nil
}

func decodeEmbedding(completion compute.Completion) ([]float32, error) {
	var result compute.EmbeddingResult
	if err := json.Unmarshal(completion.Result, &result); err != nil {
		return nil, fmt.Errorf("decode embedding result: %w", err)
	}
	if len(result.Vector) == 0 {
		return nil, fmt.Errorf("embedding result has empty vector")
	}
	return result.Vector, nil
}
