package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"

	"github.com/sakif/videohub/internal/model"
)

const (
	previewChars   = 1000
	webhookTimeout = 30 * time.Second
	webhookRetries = 3
)

// documentPreview is the body posted after a successful extraction.
type documentPreview struct {
	DocumentID     string    `json:"document_id"`
	Title          string    `json:"title"`
	Preview        string    `json:"preview"`
	CharacterCount int       `json:"character_count"`
	ProcessedAt    time.Time `json:"processed_at"`
}

// Webhook posts extraction previews to an external endpoint. Transient
// failures (network errors, 5xx, 429) are retried with exponential
// backoff; anything else is given up on at once.
type Webhook struct {
	url     string
	token   string
	client  *http.Client
	backoff func() backoff.BackOff
	logger  *slog.Logger
}

// NewWebhook returns nil when url is empty, which disables notification.
func NewWebhook(url, token string, logger *slog.Logger) *Webhook {
	if url == "" {
		return nil
	}
	return &Webhook{
		url:    url,
		token:  token,
		client: &http.Client{Timeout: webhookTimeout},
		backoff: func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), webhookRetries)
		},
		logger: logger,
	}
}

// Notify posts the preview for doc. Errors are returned for logging only.
func (w *Webhook) Notify(ctx context.Context, doc *model.PDFDocument, text string, at time.Time) error {
	if w == nil {
		return nil
	}

	runes := []rune(text)
	preview := runes
	if len(preview) > previewChars {
		preview = preview[:previewChars]
	}
	body, err := json.Marshal(documentPreview{
		DocumentID:     doc.ID,
		Title:          doc.Title,
		Preview:        string(preview),
		CharacterCount: len(runes),
		ProcessedAt:    at.UTC(),
	})
	if err != nil {
		return fmt.Errorf("webhook: encoding preview: %w", err)
	}

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("webhook: building request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		if w.token != "" {
			req.Header.Set("Authorization", "Bearer "+w.token)
		}

		resp, err := w.client.Do(req)
		if err != nil {
			return fmt.Errorf("webhook: posting preview: %w", err)
		}
		resp.Body.Close()

		switch {
		case resp.StatusCode < 300:
			return nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("webhook: endpoint returned %d", resp.StatusCode)
		default:
			return backoff.Permanent(fmt.Errorf("webhook: endpoint returned %d", resp.StatusCode))
		}
	}

	if err := backoff.Retry(op, backoff.WithContext(w.backoff(), ctx)); err != nil {
		return err
	}

	w.logger.Info("document webhook delivered",
		slog.String("documentID", doc.ID),
		slog.Int("characters", len(runes)),
	)
	return nil
}
