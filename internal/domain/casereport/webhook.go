package casereport

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// WebhookListener delivers submitted report forms to an external reporting
// endpoint as an HMAC-SHA256-signed JSON POST. With no URL configured it is
// a no-op, so it can always be wired in.
type WebhookListener struct {
	url    string
	secret string
	client *http.Client
	logger zerolog.Logger
}

func NewWebhookListener(url, secret string, logger zerolog.Logger) *WebhookListener {
	return &WebhookListener{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: 15 * time.Second},
		logger: logger,
	}
}

func (l *WebhookListener) AfterSubmit(ctx context.Context, form *CaseReportForm) error {
	if l.url == "" {
		return nil
	}

	payload, err := json.Marshal(form)
	if err != nil {
		return fmt.Errorf("marshal report form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if l.secret != "" {
		mac := hmac.New(sha256.New, []byte(l.secret))
		mac.Write(payload)
		req.Header.Set("X-Signature-256", "sha256="+hex.EncodeToString(mac.Sum(nil)))
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver report form: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("report endpoint returned status %d", resp.StatusCode)
	}
	l.logger.Info().
		Str("report_uuid", form.ReportUUID).
		Int("status", resp.StatusCode).
		Msg("submitted report form delivered")
	return nil
}
