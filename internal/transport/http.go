// Package transport implements the sync engine's network collaborator as an
// HTTP client of the registry ingestion API.
package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/obi-nwosu/fieldsync/internal/domain"
	"github.com/obi-nwosu/fieldsync/internal/sync"
)

// Client talks to the ingestion API. It implements sync.Transport. Per-call
// deadlines come from the caller's context; the resty timeout is a backstop.
type Client struct {
	http *resty.Client
}

// New builds a Client for the API at baseURL. userID is sent on every
// request so the server attributes submissions to the authenticated account.
func New(baseURL, userID string, timeout time.Duration) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-User-ID", userID)
	return &Client{http: c}
}

// submitRequest mirrors the ingestion API's submission body.
type submitRequest struct {
	ID                string            `json:"id"`
	FormID            string            `json:"form_id"`
	FormVersion       string            `json:"form_version"`
	Responses         domain.AnswerSet  `json:"responses"`
	SubmittedAt       time.Time         `json:"submitted_at"`
	GPS               *domain.GeoPoint  `json:"gps,omitempty"`
	CompletionSeconds *int              `json:"completion_time_seconds,omitempty"`
}

// Submit delivers one queued submission and returns the server ack.
func (c *Client) Submit(ctx context.Context, sub *domain.QueuedSubmission) (*sync.SubmitAck, error) {
	body := submitRequest{
		ID:                sub.ID,
		FormID:            sub.FormID,
		FormVersion:       sub.Payload.FormVersion,
		Responses:         sub.Payload.Answers,
		SubmittedAt:       sub.Payload.SubmittedAt,
		GPS:               sub.Payload.GPS,
		CompletionSeconds: sub.Payload.CompletionSeconds,
	}

	var ack sync.SubmitAck
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&ack).
		Post("/api/v1/submissions")
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("submit %s: server returned %d: %s", sub.ID, resp.StatusCode(), resp.String())
	}
	if ack.ID == "" {
		ack.ID = sub.ID
	}
	return &ack, nil
}

// statusRequest is the batch outcome lookup body.
type statusRequest struct {
	IDs []string `json:"ids"`
}

// StatusOf looks up the server-side processing outcome of the given ids.
func (c *Client) StatusOf(ctx context.Context, ids []string) (map[string]sync.Outcome, error) {
	if len(ids) == 0 {
		return map[string]sync.Outcome{}, nil
	}

	out := map[string]sync.Outcome{}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(statusRequest{IDs: ids}).
		SetResult(&out).
		Post("/api/v1/submissions/status")
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("status lookup: server returned %d: %s", resp.StatusCode(), resp.String())
	}
	return out, nil
}
