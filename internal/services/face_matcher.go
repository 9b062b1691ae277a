package services

import (
	"context"
	"errors"
	"strconv"

	errs "github.com/mvasquez-dev/photoloom-backend/internal/pkg/errors"
	"github.com/mvasquez-dev/photoloom-backend/internal/platform/logger"
	"github.com/mvasquez-dev/photoloom-backend/internal/platform/qdrant"
	"github.com/mvasquez-dev/photoloom-backend/internal/repos"
	"github.com/mvasquez-dev/photoloom-backend/internal/types"
)

// FaceMatcher links a freshly embedded face to a known person, or mints a new
// person when nothing clears the threshold. The face's own vector is indexed
// only after the search, so a face can never match itself.
type FaceMatcher interface {
	MatchFace(ctx context.Context, faceID int64, vector []float32) error
}

type MatcherConfig struct {
	TopK           int
	ScoreThreshold float64
}

type faceMatcher struct {
	log     *logger.Logger
	cfg     MatcherConfig
	store   qdrant.VectorStore
	faces   repos.FaceRepo
	persons repos.PersonRepo
	matches repos.FaceMatchRepo
}

func NewFaceMatcher(
	baseLog *logger.Logger,
	cfg MatcherConfig,
	store qdrant.VectorStore,
	faces repos.FaceRepo,
	persons repos.PersonRepo,
	matches repos.FaceMatchRepo,
) FaceMatcher {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	return &faceMatcher{
		log:     baseLog.With("service", "FaceMatcher"),
		cfg:     cfg,
		store:   store,
		faces:   faces,
		persons: persons,
		matches: matches,
	}
}

func (m *faceMatcher) MatchFace(ctx context.Context, faceID int64, vector []float32) error {
	face, err := m.faces.GetByID(ctx, nil, faceID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			// Entity (and face) deleted while the embedding job ran.
			m.log.Debug("face gone before matching", "face_id", faceID)
			return nil
		}
		return err
	}

	results, err := m.store.Search(ctx, vector, m.cfg.TopK, m.cfg.ScoreThreshold, []string{faceKey(faceID)})
	if err != nil {
		return err
	}

	candidates, edges := m.loadCandidates(ctx, faceID, results)
	if len(edges) > 0 {
		if _, err := m.matches.CreateBatch(ctx, nil, edges); err != nil {
			return err
		}
	}

	personID, err := m.choosePerson(ctx, candidates)
	if err != nil {
		return err
	}
	if err := m.faces.TryLinkPerson(ctx, nil, faceID, personID); err != nil {
		return err
	}

	// Index last: the search above must never see the face's own vector.
	if err := m.store.Upsert(ctx, []qdrant.Vector{{
		ID:       faceKey(faceID),
		Values:   vector,
		Metadata: map[string]any{"face_id": faceID, "entity_id": face.EntityID},
	}}); err != nil {
		return err
	}

	m.log.Debug("face matched",
		"face_id", faceID,
		"person_id", personID,
		"candidates", len(candidates),
	)
	return nil
}

type candidate struct {
	face  *types.Face
	score float64
}

// loadCandidates resolves search hits to live face rows. Hits whose rows are
// gone (their entity was deleted after indexing) are skipped; the audit edge
// would dangle otherwise.
func (m *faceMatcher) loadCandidates(ctx context.Context, faceID int64, results []qdrant.Match) ([]candidate, []*types.FaceMatch) {
	ids := make([]int64, 0, len(results))
	scores := make(map[int64]float64, len(results))
	for _, match := range results {
		id, err := strconv.ParseInt(match.ID, 10, 64)
		if err != nil {
			m.log.Warn("non-numeric face key in vector store", "key", match.ID)
			continue
		}
		ids = append(ids, id)
		scores[id] = match.Score
	}

	rows, err := m.faces.GetByIDs(ctx, nil, ids)
	if err != nil {
		m.log.Warn("candidate face load failed", "error", err)
		return nil, nil
	}
	byID := make(map[int64]*types.Face, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}

	candidates := make([]candidate, 0, len(ids))
	edges := make([]*types.FaceMatch, 0, len(ids))
	for _, id := range ids {
		row, ok := byID[id]
		if !ok {
			continue
		}
		candidates = append(candidates, candidate{face: row, score: scores[id]})
		edges = append(edges, &types.FaceMatch{
			FaceID:        faceID,
			MatchedFaceID: id,
			Score:         scores[id],
		})
	}
	return candidates, edges
}

// choosePerson picks the person of the highest-scoring linked candidate,
// breaking score ties on the lowest person id. No linked candidate above
// threshold means a new person.
func (m *faceMatcher) choosePerson(ctx context.Context, candidates []candidate) (int64, error) {
	var (
		bestScore  float64
		bestPerson *int64
	)
	for _, c := range candidates {
		if c.face.PersonID == nil {
			continue
		}
		switch {
		case bestPerson == nil,
			c.score > bestScore,
			c.score == bestScore && *c.face.PersonID < *bestPerson:
			id := *c.face.PersonID
			bestScore = c.score
			bestPerson = &id
		}
	}
	if bestPerson != nil {
		return *bestPerson, nil
	}

	person, err := m.persons.Create(ctx, nil, &types.Person{})
	if err != nil {
		return 0, err
	}
	return person.ID, nil
}
