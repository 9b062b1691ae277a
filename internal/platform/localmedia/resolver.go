package localmedia

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mvasquez-dev/photoloom-backend/internal/types"
)

// Resolver maps stored relative paths onto the media root the store service
// writes into. The compute backend mounts the same root, so the absolute
// paths it receives are valid on its side too.
type Resolver interface {
	EntityPath(entity *types.Entity) (string, error)
	FacePath(face *types.Face) (string, error)
}

type resolver struct {
	root string
}

func NewResolver(root string) (Resolver, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("media root required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve media root: %w", err)
	}
	return &resolver{root: abs}, nil
}

func (r *resolver) EntityPath(entity *types.Entity) (string, error) {
	if entity == nil {
		return "", fmt.Errorf("entity required")
	}
	return r.join(entity.FilePath)
}

func (r *resolver) FacePath(face *types.Face) (string, error) {
	if face == nil {
		return "", fmt.Errorf("face required")
	}
	if strings.TrimSpace(face.CropPath) == "" {
		return "", fmt.Errorf("face %d has no crop path", face.ID)
	}
	return r.join(face.CropPath)
}

func (r *resolver) join(rel string) (string, error) {
	rel = strings.TrimSpace(rel)
	if rel == "" {
		return "", fmt.Errorf("empty media path")
	}
	if filepath.IsAbs(rel) {
		return filepath.Clean(rel), nil
	}
	joined := filepath.Join(r.root, rel)
	// Reject traversal out of the root.
	if !strings.HasPrefix(joined, r.root+string(filepath.Separator)) && joined != r.root {
		return "", fmt.Errorf("media path %q escapes media root", rel)
	}
	return joined, nil
}
