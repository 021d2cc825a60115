package auditlog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bdpipeline/internal/models"
)

const eventsPath = "/v1/events"

// Event is one opportunity activity as the audit service stores it.
type Event struct {
	Source        string          `json:"source"`
	Type          string          `json:"event_type"`
	ActivityID    uint64          `json:"activity_id"`
	OpportunityID uint64          `json:"opportunity_id"`
	ActorID       uint64          `json:"actor_id"`
	Description   string          `json:"description"`
	OldValue      json.RawMessage `json:"old_value,omitempty"`
	NewValue      json.RawMessage `json:"new_value,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// Client posts activity events with the API key as bearer token. Transport
// errors, 429 and 5xx replies are retried up to MaxAttempts, doubling Backoff
// between tries. Timeout bounds each attempt.
type Client struct {
	Endpoint string
	APIKey   string
	Source   string

	Timeout     time.Duration
	MaxAttempts int
	Backoff     time.Duration

	HTTP *http.Client
}

func (c *Client) EventFor(item models.ActivityLog) Event {
	ev := Event{
		Source:        c.Source,
		Type:          "opportunity." + string(item.Kind),
		ActivityID:    item.ID,
		OpportunityID: item.OpportunityID,
		ActorID:       item.UserID,
		Description:   item.Description,
		OccurredAt:    item.CreatedAt.UTC(),
	}
	if len(item.OldValue) > 0 {
		ev.OldValue = json.RawMessage(item.OldValue)
	}
	if len(item.NewValue) > 0 {
		ev.NewValue = json.RawMessage(item.NewValue)
	}
	return ev
}

// RejectedError is a non-2xx reply from the audit service.
type RejectedError struct {
	Status int
	Body   string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("audit event rejected: http %d: %s", e.Status, e.Body)
}

func (e *RejectedError) retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// Send delivers one activity record.
func (c *Client) Send(ctx context.Context, item models.ActivityLog) error {
	body, err := json.Marshal(c.EventFor(item))
	if err != nil {
		return err
	}
	attempts := c.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	wait := c.Backoff

	for attempt := 1; ; attempt++ {
		err = c.post(ctx, item.ID, body)
		if err == nil {
			return nil
		}
		if rej, ok := err.(*RejectedError); ok && !rej.retryable() {
			return err
		}
		if attempt >= attempts || ctx.Err() != nil {
			return fmt.Errorf("audit event %d after %d attempts: %w", item.ID, attempt, err)
		}
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("audit event %d: %w", item.ID, ctx.Err())
			case <-timer.C:
			}
			wait *= 2
		}
	}
}

func (c *Client) post(ctx context.Context, activityID uint64, body []byte) error {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	// Retries of the same activity carry the same key.
	req.Header.Set("Idempotency-Key", "activity-"+strconv.FormatUint(activityID, 10))

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	return &RejectedError{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}
