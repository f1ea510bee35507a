// Package catalog talks to the remote item catalog that stores published
// groups and questions and owns the subject taxonomies.
package catalog

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/igzam/itemgest/internal/model"
)

// GroupType is the catalog's type code for instruction groups.
const GroupType = 2

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// StatusError is a non-retryable rejection from the catalog.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("catalog status %d: %s", e.StatusCode, truncate(e.Message, 200))
}

// GroupRequest is the body for POST /api/v1/groups.
type GroupRequest struct {
	Instruction string `json:"instruction"`
	GroupType   int    `json:"groupType"`
	SubjectID   string `json:"subjectId"`
	Topic       string `json:"topic,omitempty"`
	TopicID     string `json:"topicId,omitempty"`
	SubTopic    string `json:"subTopic,omitempty"`
	SubTopicID  string `json:"subTopicId,omitempty"`
}

// NewGroupRequest builds a group for instruction using the taxonomy fields
// of the first item.
func NewGroupRequest(instruction string, first model.Question) GroupRequest {
	return GroupRequest{
		Instruction: instruction,
		GroupType:   GroupType,
		SubjectID:   first.SubjectID,
		Topic:       first.Topic,
		TopicID:     first.TopicID,
		SubTopic:    first.SubTopic,
		SubTopicID:  first.SubTopicID,
	}
}

// QuestionRequest is the body for POST /api/v1/questions.
type QuestionRequest struct {
	model.Question
	Batch string `json:"batch"`
	Group string `json:"group,omitempty"`
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type record struct {
	MongoID string `json:"_id"`
	ID      string `json:"id"`
}

func (r record) identifier() string {
	if r.MongoID != "" {
		return r.MongoID
	}
	return r.ID
}

// Client is a JSON-over-HTTP client for the catalog API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	stats      *Stats
}

// NewClient returns a client for baseURL. insecureTLS disables certificate
// verification for catalogs behind self-signed certificates.
func NewClient(baseURL, token string, insecureTLS bool, stats *Stats) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if insecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		stats: stats,
	}
}

// Stats returns the client's latency stats.
func (c *Client) Stats() *Stats {
	return c.stats
}

// CreateGroup creates an instruction group and returns its id.
func (c *Client) CreateGroup(ctx context.Context, req GroupRequest) (string, error) {
	data, err := c.do(ctx, "create_group", http.MethodPost, "/api/v1/groups", req, "")
	if err != nil {
		return "", err
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return "", fmt.Errorf("decode group: %w", err)
	}
	id := rec.identifier()
	if id == "" {
		return "", errors.New("create group: response carries no id")
	}
	return id, nil
}

// CreateQuestion posts one item. idempotencyKey is sent as the
// Idempotency-Key header and must be reused across retries of the same item.
func (c *Client) CreateQuestion(ctx context.Context, idempotencyKey string, payload any) (json.RawMessage, error) {
	return c.do(ctx, "create_question", http.MethodPost, "/api/v1/questions", payload, idempotencyKey)
}

// Subjects lists the catalog's subjects with their taxonomies.
func (c *Client) Subjects(ctx context.Context) ([]model.SubjectSpec, error) {
	data, err := c.do(ctx, "list_subjects", http.MethodGet, "/api/v1/subjects?limit=50", nil, "")
	if err != nil {
		return nil, err
	}
	var specs []model.SubjectSpec
	if err := json.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("decode subjects: %w", err)
	}
	return specs, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, payload any, idempotencyKey string) (_ json.RawMessage, err error) {
	start := time.Now()
	defer func() { c.stats.Record(op, time.Since(start), err) }()

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", op, err)
		}
		body = bytes.NewReader(b)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}
	if idempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, &RetryableError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", op, err)
	}
	if !env.Success {
		return nil, fmt.Errorf("%s rejected: %s", op, env.Message)
	}
	return env.Data, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
