package compute

import (
	"encoding/json"

	"github.com/mvasquez-dev/photoloom-backend/internal/types"
)

const (
	CompletionSucceeded = "succeeded"
	CompletionFailed    = "failed"
)

// Completion is the payload the compute backend delivers once per finished
// job. Delivery is at-least-once and unordered; every downstream handler has
// to be idempotent.
type Completion struct {
	JobID    string          `json:"job_id"`
	TaskType types.TaskType  `json:"task_type"`
	Status   string          `json:"status"`
	Error    string          `json:"error,omitempty"`
	Result   json.RawMessage `json:"result,omitempty"`
}

// DetectedFace is one face in a detection result, indexed in payload order.
type DetectedFace struct {
	X1         float64        `json:"x1"`
	Y1         float64        `json:"y1"`
	X2         float64        `json:"x2"`
	Y2         float64        `json:"y2"`
	Confidence float64        `json:"confidence"`
	Landmarks  map[string]any `json:"landmarks,omitempty"`
	CropPath   string         `json:"crop_path,omitempty"`
}

type DetectionResult struct {
	Faces []DetectedFace `json:"faces"`
}

type EmbeddingResult struct {
	Vector []float32 `json:"vector"`
}
