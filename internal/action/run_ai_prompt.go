package action

import (
	"context"
	"fmt"

	"basicsos.app/automation/common/llm"
)

type runAIPrompt struct {
	completer llm.Completer
}

func (h *runAIPrompt) run(ctx context.Context, cfg RunAIPromptConfig, actx RunContext) (Result, error) {
	if h.completer == nil {
		return Failure("AI completion is not configured"), nil
	}

	var messages []llm.Message
	if cfg.SystemPrompt != "" {
		messages = append(messages, llm.Message{
			Role:    llm.RoleSystem,
			Content: Interpolate(cfg.SystemPrompt, actx.Data),
		})
	}
	messages = append(messages, llm.Message{
		Role:    llm.RoleUser,
		Content: Interpolate(cfg.Prompt, actx.Data),
	})

	completion, err := h.completer.Complete(ctx, messages, llm.Telemetry{
		TenantID:  actx.TenantID,
		UserID:    actx.TriggerUserID,
		Feature:   "automation.run_ai_prompt",
		RunID:     actx.RunID,
		MaxTokens: cfg.MaxTokens,
	})
	if err != nil {
		return Failure(fmt.Sprintf("AI completion failed: %v", err)), nil
	}

	return Success(map[string]any{
		"content":      completion.Content,
		"finishReason": completion.FinishReason,
		"model":        h.completer.Model(),
	}), nil
}
