package alerts

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"luxtrack/internal/models"
)

func TestWebhookNotifier_PostsAlert(t *testing.T) {
	var got models.Alert
	var contentType string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, zap.NewNop())
	n.Notify(context.Background(), &models.Alert{
		AlertID:     "a1b2c3",
		TriggeredAt: time.Date(2026, 8, 31, 20, 0, 0, 0, time.UTC),
		RoomID:      "room-101",
		Type:        models.AlertLightStuckOn,
		Severity:    models.SeverityCritical,
		Status:      models.AlertStatusOpen,
	})

	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, "a1b2c3", got.AlertID)
	assert.Equal(t, models.AlertLightStuckOn, got.Type)
}

func TestWebhookNotifier_FailureDoesNotPanic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, zap.NewNop())
	// Delivery failures are logged, never propagated.
	n.Notify(context.Background(), &models.Alert{AlertID: "a1b2c3", RoomID: "room-101"})
}
