package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mvasquez-dev/photoloom-backend/internal/platform/logger"
)

const (
	payloadVectorIDKey = "_pl_vector_id"
	maxErrorBodyBytes  = 1024
)

var pointIDNamespaceUUID = uuid.MustParse("7c9e2f41-6b8d-4a02-9c35-1de4b0a6f9d2")

// Vector is one keyed embedding plus optional metadata carried in the point
// payload.
type Vector struct {
	ID       string
	Values   []float32
	Metadata map[string]any
}

// Match is one similarity-search hit.
type Match struct {
	ID    string
	Score float64
}

// VectorStore is the contract the pipeline needs from the vector database:
// idempotent upsert by key and top-k similarity search with a score floor.
type VectorStore interface {
	Upsert(ctx context.Context, vectors []Vector) error
	// Search returns up to topK matches scoring at or above scoreThreshold,
	// ordered by descending score with ascending-id tie-break, skipping any
	// id in excludeIDs.
	Search(ctx context.Context, query []float32, topK int, scoreThreshold float64, excludeIDs []string) ([]Match, error)
}

type vectorStore struct {
	log     *logger.Logger
	cfg     Config
	baseURL string
	http    *http.Client
}

type qdrantEnvelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
	Time   float64         `json:"time"`
}

type qdrantSearchResultItem struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
}

// NewVectorStore connects to one collection, creating it with the configured
// dimensionality when it does not exist yet.
func NewVectorStore(log *logger.Logger, cfg Config) (VectorStore, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Distance) == "" {
		cfg.Distance = "Cosine"
	}

	s := &vectorStore{
		log:     log.With("service", "QdrantVectorStore", "collection", cfg.Collection),
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	if err := s.ensureCollection(context.Background()); err != nil {
		return nil, err
	}

	log.Info("Qdrant vector store ready",
		"url", s.baseURL,
		"collection", cfg.Collection,
		"vector_dim", cfg.VectorDim,
		"distance", cfg.Distance,
	)
	return s, nil
}

func (s *vectorStore) Upsert(ctx context.Context, vectors []Vector) error {
	if s == nil {
		return nil
	}
	const op = "upsert"
	if len(vectors) == 0 {
		return nil
	}

	points := make([]map[string]any, 0, len(vectors))
	for _, v := range vectors {
		vectorID := strings.TrimSpace(v.ID)
		if vectorID == "" {
			return opErr(op, OperationErrorValidation, "vector id is required", nil)
		}
		if len(v.Values) != s.cfg.VectorDim {
			return opErr(
				op,
				OperationErrorValidation,
				fmt.Sprintf(
					"vector %q dimension mismatch: expected=%d got=%d",
					vectorID, s.cfg.VectorDim, len(v.Values),
				),
				nil,
			)
		}
		payload := clonePayload(v.Metadata)
		payload[payloadVectorIDKey] = vectorID
		points = append(points, map[string]any{
			"id":      s.pointID(vectorID),
			"vector":  v.Values,
			"payload": payload,
		})
	}

	req := map[string]any{"points": points}
	return s.doJSON(ctx, op, http.MethodPut, s.collectionPath("/points?wait=true"), req, nil)
}

func (s *vectorStore) Search(ctx context.Context, query []float32, topK int, scoreThreshold float64, excludeIDs []string) ([]Match, error) {
	if s == nil {
		return nil, fmt.Errorf("vector store unavailable")
	}
	const op = "search"
	if len(query) == 0 {
		return nil, opErr(op, OperationErrorValidation, "query vector required", nil)
	}
	if len(query) != s.cfg.VectorDim {
		return nil, opErr(
			op,
			OperationErrorValidation,
			fmt.Sprintf("query vector dimension mismatch: expected=%d got=%d", s.cfg.VectorDim, len(query)),
			nil,
		)
	}
	if topK <= 0 {
		topK = 10
	}

	req := map[string]any{
		"vector":       query,
		"limit":        topK,
		"with_payload": true,
		"with_vector":  false,
	}
	if scoreThreshold > 0 {
		req["score_threshold"] = scoreThreshold
	}
	if len(excludeIDs) > 0 {
		mustNot := make([]map[string]any, 0, len(excludeIDs))
		for _, id := range excludeIDs {
			trimmed := strings.TrimSpace(id)
			if trimmed == "" {
				continue
			}
			mustNot = append(mustNot, map[string]any{
				"key":   payloadVectorIDKey,
				"match": map[string]any{"value": trimmed},
			})
		}
		if len(mustNot) > 0 {
			req["filter"] = map[string]any{"must_not": mustNot}
		}
	}

	var rawResults []qdrantSearchResultItem
	if err := s.doJSON(
		ctx,
		op,
		http.MethodPost,
		s.collectionPath("/points/search"),
		req,
		&rawResults,
	); err != nil {
		return nil, err
	}

	out := make([]Match, 0, len(rawResults))
	for _, item := range rawResults {
		id := extractVectorID(item)
		if id == "" {
			continue
		}
		out = append(out, Match{ID: id, Score: item.Score})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].ID < out[j].ID
		}
		return out[i].Score > out[j].Score
	})
	return out, nil
}

func (s *vectorStore) ensureCollection(ctx context.Context) error {
	const op = "ensure_collection"

	var info struct {
		Config struct {
			Params struct {
				Vectors struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	}
	err := s.doJSON(ctx, op, http.MethodGet, s.collectionPath(""), nil, &info)
	if err == nil {
		size := info.Config.Params.Vectors.Size
		if size != 0 && size != s.cfg.VectorDim {
			return &OperationError{
				Code:      OperationErrorValidation,
				Operation: op,
				Message: fmt.Sprintf(
					"collection %q vector size mismatch: expected=%d actual=%d",
					s.cfg.Collection, s.cfg.VectorDim, size,
				),
			}
		}
		return nil
	}

	var opFailed *OperationError
	if !errors.As(err, &opFailed) || opFailed.StatusCode != http.StatusNotFound {
		return err
	}

	create := map[string]any{
		"vectors": map[string]any{
			"size":     s.cfg.VectorDim,
			"distance": s.cfg.Distance,
		},
	}
	return s.doJSON(ctx, op, http.MethodPut, s.collectionPath(""), create, nil)
}

// pointID maps a caller key to a stable Qdrant point uuid, scoped by
// collection so the same entity key never collides across modalities.
func (s *vectorStore) pointID(vectorID string) string {
	return uuid.NewSHA1(pointIDNamespaceUUID, []byte(s.cfg.Collection+"/"+vectorID)).String()
}

func (s *vectorStore) collectionPath(suffix string) string {
	return "/collections/" + s.cfg.Collection + suffix
}

func (s *vectorStore) doJSON(ctx context.Context, op, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return opErr(op, OperationErrorEncodeFailed, "encode request failed", err)
		}
		body = &buf
	}

	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, "qdrant request failed", err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 10*maxErrorBodyBytes))
	if readErr != nil {
		return opErr(op, OperationErrorDecodeFailed, "read response failed", readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("qdrant http status=%d body=%q", resp.StatusCode, truncateBody(raw)),
		}
	}

	var envelope qdrantEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant envelope failed", err)
	}

	if out == nil {
		return nil
	}
	if len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant result failed", err)
	}
	return nil
}

func classifyHTTPCallError(op, message string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	return opErr(op, OperationErrorTransportFailed, message, err)
}

func extractVectorID(item qdrantSearchResultItem) string {
	if item.Payload != nil {
		if v, ok := item.Payload[payloadVectorIDKey].(string); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func clonePayload(in map[string]any) map[string]any {
	out := make(map[string]any, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}

func truncateBody(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}
