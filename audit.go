package clobengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// AuditClient notifies the backend persistence service about executed
// orders. Notifications are best-effort: failures are logged for operators
// and never surfaced to the trader or retried.
type AuditClient struct {
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

// NewAuditClient creates an audit client. An empty endpoint disables
// notification entirely.
func NewAuditClient(endpoint string, timeout time.Duration, logger *zap.Logger) *AuditClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// Notify posts executed-order summaries to the audit backend. The error is
// consumed here; callers fire and forget.
func (a *AuditClient) Notify(ctx context.Context, orders []ExecutedOrder) {
	if a.endpoint == "" || len(orders) == 0 {
		return
	}

	if err := a.post(ctx, orders); err != nil {
		a.logger.Warn("audit sync failed", zap.Int("orders", len(orders)), zap.Error(err))
	}
}

func (a *AuditClient) post(ctx context.Context, orders []ExecutedOrder) error {
	raw, err := json.Marshal(map[string]interface{}{"orders": orders})
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("create audit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("audit request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("audit endpoint returned HTTP %d", resp.StatusCode)
	}
	return nil
}
