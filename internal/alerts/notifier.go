package alerts

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"luxtrack/internal/models"
)

// WebhookNotifier POSTs alert records to the notification collaborator.
// The alert is already durable when Notify runs; delivery failures are
// logged and never propagated back into evaluation.
type WebhookNotifier struct {
	client *resty.Client
	url    string
	logger *zap.Logger
}

func NewWebhookNotifier(url string, logger *zap.Logger) *WebhookNotifier {
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &WebhookNotifier{client: client, url: url, logger: logger}
}

func (n *WebhookNotifier) Notify(ctx context.Context, a *models.Alert) {
	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(a).
		Post(n.url)
	if err != nil {
		n.logger.Warn("Alert notification failed",
			zap.String("alert_id", a.AlertID),
			zap.Error(err),
		)
		return
	}
	if resp.IsError() {
		n.logger.Warn("Alert notification rejected",
			zap.String("alert_id", a.AlertID),
			zap.Int("status", resp.StatusCode()),
		)
	}
}
