package services

import (
	"fmt"

	"github.com/mvasquez-dev/photoloom-backend/internal/platform/qdrant"
	"github.com/mvasquez-dev/photoloom-backend/internal/types"
)

// VectorStores groups the three modality collections. Dimensions differ per
// collection, so they never share a store.
type VectorStores struct {
	Faces  qdrant.VectorStore
	Clip   qdrant.VectorStore
	Siglip qdrant.VectorStore
}

// ForTask returns the collection a task's vectors belong in.
func (v VectorStores) ForTask(taskType types.TaskType) (qdrant.VectorStore, error) {
	switch taskType {
	case types.TaskFaceEmbedding:
		return v.Faces, nil
	case types.TaskClipEmbedding:
		return v.Clip, nil
	case types.TaskSiglipEmbedding:
		return v.Siglip, nil
	default:
		return nil, fmt.Errorf("task %q has no vector collection", taskType)
	}
}
