package services

import (
	"context"
	"errors"
	"strconv"

	errs "github.com/mvasquez-dev/photoloom-backend/internal/pkg/errors"
	"github.com/mvasquez-dev/photoloom-backend/internal/platform/compute"
	"github.com/mvasquez-dev/photoloom-backend/internal/platform/localmedia"
	"github.com/mvasquez-dev/photoloom-backend/internal/platform/logger"
	"github.com/mvasquez-dev/photoloom-backend/internal/repos"
	"github.com/mvasquez-dev/photoloom-backend/internal/types"
)

// SubmissionService fans the three top-level jobs out per entity and the
// per-face embedding jobs out of detection results. A rejected submission
// leaves that job id null and never blocks the siblings.
type SubmissionService interface {
	SubmitForEntity(ctx context.Context, entityID int64) (*types.IntelligenceRecord, error)
	SubmitFaceEmbedding(ctx context.Context, face *types.Face) (string, error)
}

type submissionService struct {
	log      *logger.Logger
	compute  compute.Client
	resolver localmedia.Resolver
	entities repos.EntityRepo
	intel    repos.IntelligenceRepo
	jobs     repos.JobRecordRepo
}

func NewSubmissionService(
	baseLog *logger.Logger,
	computeClient compute.Client,
	resolver localmedia.Resolver,
	entities repos.EntityRepo,
	intel repos.IntelligenceRepo,
	jobs repos.JobRecordRepo,
) SubmissionService {
	return &submissionService{
		log:      baseLog.With("service", "SubmissionService"),
		compute:  computeClient,
		resolver: resolver,
		entities: entities,
		intel:    intel,
		jobs:     jobs,
	}
}

func (s *submissionService) SubmitForEntity(ctx context.Context, entityID int64) (*types.IntelligenceRecord, error) {
	entity, err := s.entities.GetByID(ctx, nil, entityID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			s.log.Debug("entity gone before submission", "entity_id", entityID)
			return nil, nil
		}
		return nil, err
	}

	inputPath, err := s.resolver.EntityPath(entity)
	if err != nil {
		return nil, err
	}

	rec := &types.IntelligenceRecord{
		EntityID:         entityID,
		ProcessingStatus: types.ProcessingStatusProcessing,
	}
	for _, taskType := range []types.TaskType{
		types.TaskFaceDetection,
		types.TaskClipEmbedding,
		types.TaskSiglipEmbedding,
	} {
		jobID := s.submitOne(ctx, taskType, entityID, nil, inputPath)
		if jobID == nil {
			continue
		}
		switch taskType {
		case types.TaskFaceDetection:
			rec.DetectionJobID = jobID
		case types.TaskClipEmbedding:
			rec.ClipJobID = jobID
		case types.TaskSiglipEmbedding:
			rec.SiglipJobID = jobID
		}
	}

	out, err := s.intel.TryUpsert(ctx, nil, rec)
	if err != nil {
		return nil, err
	}
	if out == nil {
		s.log.Debug("entity deleted during submission", "entity_id", entityID)
	}
	return out, nil
}

func (s *submissionService) SubmitFaceEmbedding(ctx context.Context, face *types.Face) (string, error) {
	inputPath, err := s.resolver.FacePath(face)
	if err != nil {
		return "", err
	}
	jobID := s.submitOne(ctx, types.TaskFaceEmbedding, face.EntityID, &face.ID, inputPath)
	if jobID == nil {
		return "", nil
	}
	return *jobID, nil
}

// submitOne submits a single job and records it. Failures are captured into
// the log and an absent job id, per the partial-submission policy.
func (s *submissionService) submitOne(ctx context.Context, taskType types.TaskType, entityID int64, faceID *int64, inputPath string) *string {
	externalJobID, err := s.compute.Submit(ctx, taskType, inputPath)
	if err != nil {
		subErr := &errs.SubmissionError{TaskType: string(taskType), EntityID: entityID, Cause: err}
		s.log.Warn("job submission failed", "task_type", taskType, "entity_id", entityID, "error", subErr)
		return nil
	}

	created, err := s.jobs.TryCreate(ctx, nil, &types.JobRecord{
		EntityID:      entityID,
		FaceID:        faceID,
		ExternalJobID: externalJobID,
		TaskType:      taskType,
		Status:        types.JobStatusPending,
	})
	if err != nil {
		s.log.Error("job record write failed", "task_type", taskType, "entity_id", entityID, "error", err)
		return nil
	}
	if created == nil {
		// Entity deleted between submit and record; the callback will be a
		// no-op when it lands.
		s.log.Debug("entity deleted before job record write",
			"task_type", taskType,
			"entity_id", entityID,
			"external_job_id", externalJobID,
		)
		return nil
	}

	s.log.Debug("job submitted",
		"task_type", taskType,
		"entity_id", entityID,
		"external_job_id", externalJobID,
		"input_path", inputPath,
	)
	return &externalJobID
}

func entityKey(entityID int64) string {
	return strconv.FormatInt(entityID, 10)
}

func faceKey(faceID int64) string {
	return strconv.FormatInt(faceID, 10)
}
