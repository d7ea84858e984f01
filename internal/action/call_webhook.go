package action

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"basicsos.app/automation/common/logger"
)

const (
	defaultWebhookBodyLimit = 64 << 10
	webhookOutputLimit      = 2000
)

type callWebhook struct {
	guard        *URLGuard
	client       *http.Client
	maxBodyBytes int64
}

func (h *callWebhook) run(ctx context.Context, cfg CallWebhookConfig, actx RunContext) (Result, error) {
	target, err := h.guard.Check(ctx, cfg.URL)
	if err != nil {
		return Failure(err.Error()), nil
	}

	method := cfg.method()
	var body io.Reader
	if method != http.MethodGet {
		payload := cfg.Body
		if len(payload) == 0 {
			payload = actx.TriggerPayload
		}
		if len(payload) == 0 {
			payload = json.RawMessage(`{}`)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return Failure(fmt.Sprintf("Invalid webhook request: %v", err)), nil
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", "basicsos-automation/1.0")
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		slog.WarnContext(ctx, "webhook request failed", "error", err, "host", target.Host)
		return Failure(fmt.Sprintf("Webhook request failed: %v", err)), nil
	}
	defer resp.Body.Close()

	limit := h.maxBodyBytes
	if limit <= 0 {
		limit = defaultWebhookBodyLimit
	}
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return Failure(fmt.Sprintf("Reading webhook response: %v", err)), nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Failure(fmt.Sprintf("Webhook returned HTTP %d", resp.StatusCode)), nil
	}

	return Success(map[string]any{
		"status": resp.StatusCode,
		"body":   logger.Truncate(string(respBody), webhookOutputLimit),
	}), nil
}
