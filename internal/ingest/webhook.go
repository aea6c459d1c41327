// Package ingest – fraud webhook notifier.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/obi-nwosu/fieldsync/internal/domain"
)

// WebhookNotifier delivers fraud triggers to a downstream HTTP endpoint.
// It implements FraudNotifier; a non-2xx response counts as failed delivery
// so the outbox row stays queued.
type WebhookNotifier struct {
	http *resty.Client
}

// NewWebhookNotifier builds a notifier posting to url.
func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	c := resty.New().
		SetBaseURL(url).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	return &WebhookNotifier{http: c}
}

// fraudPayload is the wire form of a fraud trigger.
type fraudPayload struct {
	SubmissionID string  `json:"submission_id"`
	RespondentID string  `json:"respondent_id"`
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
}

// Notify posts one fraud trigger.
func (n *WebhookNotifier) Notify(ctx context.Context, e *domain.FraudEvent) error {
	resp, err := n.http.R().
		SetContext(ctx).
		SetBody(fraudPayload{
			SubmissionID: e.SubmissionID,
			RespondentID: e.RespondentID,
			Lat:          e.Lat,
			Lng:          e.Lng,
		}).
		Post("")
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("fraud webhook: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}
