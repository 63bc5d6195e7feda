// Package analysis talks to the external AI/NLP collaborator. The core never
// blocks on it: clustering is triggered fire-and-forget, and results come
// back later through the reconciliation endpoint.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/qboard/qboard/internal/question"
)

// Client is an HTTP client for the analysis service. Only de-identified
// question views ever cross this boundary.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates an analysis service client.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type clusteringRequest struct {
	CourseID  string                     `json:"course_id"`
	Questions []question.PendingQuestion `json:"questions"`
}

// TriggerClustering posts a de-identified pending batch to the analysis
// service. It returns once the batch is accepted; the clustering result
// arrives asynchronously.
func (c *Client) TriggerClustering(ctx context.Context, courseID string, pending []question.PendingQuestion) error {
	if len(pending) == 0 {
		return nil
	}

	body, err := json.Marshal(clusteringRequest{CourseID: courseID, Questions: pending})
	if err != nil {
		return fmt.Errorf("marshal clustering request: %w", err)
	}

	if err := c.post(ctx, "/v1/clustering", body); err != nil {
		return err
	}
	slog.Info("clustering triggered", "course_id", courseID, "questions", len(pending))
	return nil
}

type draftRequest struct {
	QuestionID   string `json:"question_id"`
	QuestionText string `json:"question_text"`
}

// RequestDraft asks the analysis service to (re)generate a response draft for
// one question. Like clustering, the draft itself arrives asynchronously.
func (c *Client) RequestDraft(ctx context.Context, questionID, text string) error {
	body, err := json.Marshal(draftRequest{QuestionID: questionID, QuestionText: text})
	if err != nil {
		return fmt.Errorf("marshal draft request: %w", err)
	}
	return c.post(ctx, "/v1/drafts", body)
}

// HealthCheck probes the analysis service.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("analysis service error (status %d): %s", resp.StatusCode, string(respBody))
	}
	return nil
}
