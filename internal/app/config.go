package app

import (
	"strings"
	"time"

	"github.com/mvasquez-dev/photoloom-backend/internal/platform/envutil"
	"github.com/mvasquez-dev/photoloom-backend/internal/platform/qdrant"
	"github.com/mvasquez-dev/photoloom-backend/internal/repos"
	"github.com/mvasquez-dev/photoloom-backend/internal/services"
)

// Config carries everything main needs that is not owned by a single
// package's own env handling (the database reads DB_* itself).
type Config struct {
	Port         string
	AllowOrigins []string

	MediaRoot string

	ComputeBaseURL     string
	ComputeCallbackURL string
	ComputeMaxRetries  int

	FaceStore   qdrant.Config
	ClipStore   qdrant.Config
	SiglipStore qdrant.Config

	Retry      repos.RetryPolicy
	Reconciler services.ReconcilerConfig
	Matcher    services.MatcherConfig

	RedisAddr    string
	RedisChannel string
}

func LoadConfig() Config {
	qdrantURL := envutil.String("QDRANT_URL", "http://localhost:6333")

	retry := repos.DefaultRetryPolicy()
	retry.MaxAttempts = envutil.Int("DB_RETRY_MAX_ATTEMPTS", retry.MaxAttempts)

	return Config{
		Port:         envutil.String("PORT", "8080"),
		AllowOrigins: splitOrigins(envutil.String("CORS_ALLOW_ORIGINS", "")),

		MediaRoot: envutil.String("MEDIA_ROOT", "/var/lib/photoloom/media"),

		ComputeBaseURL:     envutil.String("COMPUTE_BASE_URL", "http://localhost:9090"),
		ComputeCallbackURL: envutil.String("COMPUTE_CALLBACK_URL", "http://localhost:8080/internal/intelligence/callbacks"),
		ComputeMaxRetries:  envutil.Int("COMPUTE_MAX_RETRIES", 3),

		FaceStore: qdrant.Config{
			URL:        qdrantURL,
			Collection: envutil.String("FACE_COLLECTION", "faces"),
			VectorDim:  envutil.Int("FACE_VECTOR_DIM", 512),
		},
		ClipStore: qdrant.Config{
			URL:        qdrantURL,
			Collection: envutil.String("CLIP_COLLECTION", "clip_entities"),
			VectorDim:  envutil.Int("CLIP_VECTOR_DIM", 512),
		},
		SiglipStore: qdrant.Config{
			URL:        qdrantURL,
			Collection: envutil.String("SIGLIP_COLLECTION", "siglip_entities"),
			VectorDim:  envutil.Int("SIGLIP_VECTOR_DIM", 768),
		},

		Retry: retry,
		Reconciler: services.ReconcilerConfig{
			Interval:    envutil.Duration("RECONCILE_INTERVAL", 30*time.Second),
			Parallelism: envutil.Int("RECONCILE_PARALLELISM", 4),
		},
		Matcher: services.MatcherConfig{
			TopK:           envutil.Int("MATCH_TOP_K", 5),
			ScoreThreshold: envutil.Float("MATCH_SCORE_THRESHOLD", 0.6),
		},

		RedisAddr:    envutil.String("REDIS_ADDR", ""),
		RedisChannel: envutil.String("REDIS_TRIGGER_CHANNEL", "intelligence:reconcile"),
	}
}

func splitOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
