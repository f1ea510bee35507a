package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/igzam/itemgest/internal/catalog"
	"github.com/igzam/itemgest/internal/model"
)

// Catalog is the subset of the catalog client the publisher needs.
type Catalog interface {
	CreateGroup(ctx context.Context, req catalog.GroupRequest) (string, error)
	CreateQuestion(ctx context.Context, idempotencyKey string, payload any) (json.RawMessage, error)
}

// PublishFailure names one item that could not be published.
type PublishFailure struct {
	Order int    `json:"order"`
	Error string `json:"error"`
}

// PublishResult summarizes one batch publication.
type PublishResult struct {
	Groups    int              `json:"groups"`
	Published int              `json:"published"`
	Failures  []PublishFailure `json:"failures,omitempty"`
}

// Publisher sends arranged units to the catalog one call at a time. Items
// of a grouped unit need the group id from the preceding call, so nothing
// runs concurrently. A failed item is recorded and publication continues.
type Publisher struct {
	catalog    Catalog
	log        *slog.Logger
	maxRetries int
	backoff    func(attempt int) time.Duration
}

func NewPublisher(c Catalog, log *slog.Logger, maxRetries int) *Publisher {
	if maxRetries <= 0 {
		maxRetries = MaxRetries
	}
	return &Publisher{
		catalog:    c,
		log:        log,
		maxRetries: maxRetries,
		backoff:    Backoff,
	}
}

// Publish creates every unit of a batch in order.
func (p *Publisher) Publish(ctx context.Context, batch string, units []model.Unit) PublishResult {
	var res PublishResult
	log := p.log.With("batch", batch)

	for _, u := range units {
		if len(u.Items) == 0 {
			continue
		}

		groupID := ""
		if u.Grouped {
			req := catalog.NewGroupRequest(u.Instruction, u.Items[0])
			err := p.retry(ctx, log, "create group", func() error {
				id, err := p.catalog.CreateGroup(ctx, req)
				groupID = id
				return err
			})
			if err != nil {
				log.Error("group creation failed", "order", u.Items[0].Order, "error", err)
				for _, q := range u.Items {
					res.Failures = append(res.Failures, PublishFailure{
						Order: q.Order,
						Error: fmt.Sprintf("create group: %s", err),
					})
				}
				continue
			}
			res.Groups++
		}

		for _, q := range u.Items {
			payload := catalog.QuestionRequest{Question: q, Batch: batch, Group: groupID}
			key := uuid.NewString()
			err := p.retry(ctx, log.With("order", q.Order), "create question", func() error {
				_, err := p.catalog.CreateQuestion(ctx, key, payload)
				return err
			})
			if err != nil {
				log.Error("question publish failed", "order", q.Order, "error", err)
				res.Failures = append(res.Failures, PublishFailure{Order: q.Order, Error: err.Error()})
				continue
			}
			res.Published++
		}
	}

	log.Info("publish complete", "groups", res.Groups, "published", res.Published, "failed", len(res.Failures))
	return res
}

// retry runs call until it succeeds, fails with a non-retryable error, or
// runs out of attempts.
func (p *Publisher) retry(ctx context.Context, log *slog.Logger, op string, call func() error) error {
	var lastErr error
	for attempt := range p.maxRetries {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = call()
		if lastErr == nil || !IsRetryable(lastErr) {
			return lastErr
		}
		if attempt == p.maxRetries-1 {
			break
		}
		log.Warn("retryable catalog error", "op", op, "attempt", attempt, "error", lastErr)
		select {
		case <-time.After(p.backoff(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
