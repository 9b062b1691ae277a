package types

// TaskType is the closed set of compute tasks this pipeline submits. The
// callback router dispatches on it; adding a task type is a reviewable change
// to that table.
type TaskType string

const (
	TaskFaceDetection   TaskType = "face_detection"
	TaskClipEmbedding   TaskType = "clip_embedding"
	TaskSiglipEmbedding TaskType = "siglip_embedding"
	TaskFaceEmbedding   TaskType = "face_embedding"
)

// TopLevel reports whether the task is one of the three jobs submitted
// directly per entity. Face-embedding jobs are spawned per detected face and
// are not top-level.
func (t TaskType) TopLevel() bool {
	switch t {
	case TaskFaceDetection, TaskClipEmbedding, TaskSiglipEmbedding:
		return true
	default:
		return false
	}
}

// Valid reports whether t is a known task type.
func (t TaskType) Valid() bool {
	return t.TopLevel() || t == TaskFaceEmbedding
}
