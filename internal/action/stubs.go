package action

import (
	"context"
	"log/slog"
)

// sendEmail and postSlack accept their configs but deliver nothing until a
// provider is wired in.

func sendEmail(ctx context.Context, cfg SendEmailConfig, actx RunContext) (Result, error) {
	slog.InfoContext(ctx, "send_email skipped, no email provider configured", "subject", cfg.Subject)
	return Success(map[string]any{
		"skipped": true,
		"note":    "Email delivery is not configured; no message was sent",
	}), nil
}

func postSlack(ctx context.Context, cfg PostSlackConfig, actx RunContext) (Result, error) {
	slog.InfoContext(ctx, "post_slack skipped, no Slack integration configured", "channel", cfg.Channel)
	return Success(map[string]any{
		"skipped": true,
		"note":    "Slack integration is not configured; no message was posted",
	}), nil
}
