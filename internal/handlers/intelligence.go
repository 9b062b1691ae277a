package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	errs "github.com/mvasquez-dev/photoloom-backend/internal/pkg/errors"
	"github.com/mvasquez-dev/photoloom-backend/internal/repos"
	"github.com/mvasquez-dev/photoloom-backend/internal/services"
	"github.com/mvasquez-dev/photoloom-backend/internal/types"
)

// IntelligenceHandler exposes the read contracts: processing progress per
// entity, similarity pass-through, and person galleries.
type IntelligenceHandler struct {
	intel  repos.IntelligenceRepo
	jobs   repos.JobRecordRepo
	faces  repos.FaceRepo
	stores services.VectorStores
}

func NewIntelligenceHandler(
	intel repos.IntelligenceRepo,
	jobs repos.JobRecordRepo,
	faces repos.FaceRepo,
	stores services.VectorStores,
) *IntelligenceHandler {
	return &IntelligenceHandler{intel: intel, jobs: jobs, faces: faces, stores: stores}
}

// GET /api/entities/:id/intelligence
func (h *IntelligenceHandler) GetEntityIntelligence(c *gin.Context) {
	entityID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_entity_id", err)
		return
	}

	rec, err := h.intel.GetByEntityID(c.Request.Context(), nil, entityID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			RespondError(c, http.StatusNotFound, "intelligence_not_found", err)
			return
		}
		RespondError(c, http.StatusInternalServerError, "intelligence_read_failed", err)
		return
	}
	jobs, err := h.jobs.ListByEntityID(c.Request.Context(), nil, entityID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "jobs_read_failed", err)
		return
	}

	RespondOK(c, gin.H{"intelligence": rec, "jobs": jobs})
}

type similaritySearchRequest struct {
	TaskType   types.TaskType `json:"task_type"`
	Vector     []float32      `json:"vector"`
	TopK       int            `json:"top_k"`
	Threshold  float64        `json:"threshold"`
	ExcludeIDs []string       `json:"exclude_ids"`
}

// POST /api/similarity/search
func (h *IntelligenceHandler) SearchSimilar(c *gin.Context) {
	var req similaritySearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_search_request", err)
		return
	}
	if len(req.Vector) == 0 {
		RespondError(c, http.StatusBadRequest, "missing_query_vector", nil)
		return
	}
	if req.TopK <= 0 {
		req.TopK = 10
	}

	store, err := h.stores.ForTask(req.TaskType)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "unknown_collection", err)
		return
	}
	matches, err := store.Search(c.Request.Context(), req.Vector, req.TopK, req.Threshold, req.ExcludeIDs)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "similarity_search_failed", err)
		return
	}
	RespondOK(c, gin.H{"matches": matches})
}

// GET /api/persons/:id/faces
func (h *IntelligenceHandler) GetPersonFaces(c *gin.Context) {
	personID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_person_id", err)
		return
	}
	faces, err := h.faces.ListByPersonID(c.Request.Context(), nil, personID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "faces_read_failed", err)
		return
	}
	RespondOK(c, gin.H{"faces": faces})
}
