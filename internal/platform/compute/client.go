package compute

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/mvasquez-dev/photoloom-backend/internal/platform/logger"
	"github.com/mvasquez-dev/photoloom-backend/internal/types"
)

// Client submits asynchronous jobs to the external compute backend. The
// backend runs the models and pushes a Completion to the callback webhook
// when a job finishes; this client only ever sees the job id.
type Client interface {
	Submit(ctx context.Context, taskType types.TaskType, inputPath string) (string, error)
}

type Config struct {
	BaseURL     string
	CallbackURL string
	MaxRetries  int
}

type client struct {
	log        *logger.Logger
	cfg        Config
	httpClient *http.Client
}

func NewClient(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("missing compute base URL")
	}
	cfg.BaseURL = baseURL
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &client{
		log: log.With("service", "ComputeClient"),
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

type submitRequest struct {
	TaskType    types.TaskType `json:"task_type"`
	InputPath   string         `json:"input_path"`
	CallbackURL string         `json:"callback_url,omitempty"`
}

type submitResponse struct {
	JobID string `json:"job_id"`
}

func (c *client) Submit(ctx context.Context, taskType types.TaskType, inputPath string) (string, error) {
	if !taskType.Valid() {
		return "", fmt.Errorf("unknown task type %q", taskType)
	}
	if strings.TrimSpace(inputPath) == "" {
		return "", fmt.Errorf("input path required")
	}

	body, err := json.Marshal(submitRequest{
		TaskType:    taskType,
		InputPath:   inputPath,
		CallbackURL: c.cfg.CallbackURL,
	})
	if err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(jitterSleep(time.Duration(attempt) * 500 * time.Millisecond)):
			}
		}
		jobID, err := c.submitOnce(ctx, body)
		if err == nil {
			return jobID, nil
		}
		lastErr = err
		if !isRetryableErr(err) || ctx.Err() != nil {
			break
		}
		c.log.Debug("compute submit retrying", "task_type", taskType, "attempt", attempt+1, "error", err)
	}
	return "", lastErr
}

func (c *client) submitOnce(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/jobs", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &httpError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var parsed submitResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode submit response: %w", err)
	}
	if strings.TrimSpace(parsed.JobID) == "" {
		return "", fmt.Errorf("compute backend returned empty job id")
	}
	return parsed.JobID, nil
}

type httpError struct {
	StatusCode int
	Body       string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("compute http %d: %s", e.StatusCode, e.Body)
}

func isRetryableHTTP(code int) bool {
	if code == http.StatusRequestTimeout || code == http.StatusTooManyRequests {
		return true
	}
	return code >= 500 && code <= 599
}

func isRetryableErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var httpErr *httpError
	if errors.As(err, &httpErr) {
		return isRetryableHTTP(httpErr.StatusCode)
	}
	return false
}

func jitterSleep(base time.Duration) time.Duration {
	// +/- 20%
	if base <= 0 {
		return 0
	}
	delta := base.Seconds() * 0.2
	low := base.Seconds() - delta
	high := base.Seconds() + delta
	if low < 0 {
		low = 0
	}
	return time.Duration((low + rand.Float64()*(high-low)) * float64(time.Second))
}
