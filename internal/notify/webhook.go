package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/verdantlab/grove/pkg/grove"
)

const defaultTimeout = 3 * time.Second

// WebhookSink delivers operator-assignment events as JSON POSTs. Delivery is
// best effort; the service swallows whatever this returns.
type WebhookSink struct {
	client   *http.Client
	endpoint string
}

// NewWebhookSink builds a sink posting to endpoint with the given timeout.
func NewWebhookSink(endpoint string, timeout time.Duration) *WebhookSink {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &WebhookSink{
		client:   &http.Client{Timeout: timeout},
		endpoint: endpoint,
	}
}

type operatorAssignedEvent struct {
	EventID       string     `json:"event_id"`
	EventType     string     `json:"event_type"`
	OperatorID    string     `json:"operator_id"`
	Lot           lotPayload `json:"lot"`
	EmittedAtUnix int64      `json:"emitted_at_unix_utc"`
}

type lotPayload struct {
	Name      string `json:"name"`
	Code      string `json:"code"`
	Capacity  int64  `json:"capacity"`
	Occupancy int64  `json:"occupancy"`
}

// NotifyOperatorAssigned posts the assignment event to the configured endpoint.
func (sink *WebhookSink) NotifyOperatorAssigned(ctx context.Context, operatorID grove.OperatorID, summary grove.LotSummary) error {
	event := operatorAssignedEvent{
		EventID:    uuid.NewString(),
		EventType:  "operator_assigned",
		OperatorID: operatorID.String(),
		Lot: lotPayload{
			Name:      summary.Name,
			Code:      summary.Code,
			Capacity:  summary.Capacity,
			Occupancy: summary.Occupancy,
		},
		EmittedAtUnix: time.Now().UTC().Unix(),
	}
	encoded, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, sink.endpoint, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	response, err := sink.client.Do(request)
	if err != nil {
		return fmt.Errorf("post event: %w", err)
	}
	defer func() { _ = response.Body.Close() }()
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("post event: unexpected status %d", response.StatusCode)
	}
	return nil
}
