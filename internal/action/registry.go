package action

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"basicsos.app/automation/common/llm"
	"basicsos.app/automation/common/logger"
	"basicsos.app/automation/internal/store"
	"go.opentelemetry.io/otel/attribute"
)

// Deps are the collaborators of the built-in handlers.
type Deps struct {
	Tasks     store.TaskStore
	Users     store.UserStore
	CRM       store.CRMStore
	Completer llm.Completer // nil disables run_ai_prompt
	Guard     *URLGuard
	// HTTPClient must refuse blocked addresses; see NewWebhookClient.
	HTTPClient   *http.Client
	MaxBodyBytes int64
}

const defaultWebhookTimeout = 10 * time.Second

// Registry maps every catalog type to its handler.
type Registry struct {
	handlers map[Type]Handler
}

func NewRegistry(d Deps) *Registry {
	if d.Guard == nil {
		d.Guard = NewURLGuard(nil)
	}
	if d.HTTPClient == nil {
		d.HTTPClient = NewWebhookClient(d.Guard, defaultWebhookTimeout)
	}

	r := &Registry{handlers: make(map[Type]Handler, len(Types()))}
	for _, t := range Types() {
		r.handlers[t] = newHandler(t, d)
	}
	return r
}

func newHandler(t Type, d Deps) Handler {
	switch t {
	case TypeCreateTask:
		h := &createTask{tasks: d.Tasks, users: d.Users}
		return typed(t, h.run)
	case TypeCallWebhook:
		h := &callWebhook{guard: d.Guard, client: d.HTTPClient, maxBodyBytes: d.MaxBodyBytes}
		return typed(t, h.run)
	case TypeRunAIPrompt:
		h := &runAIPrompt{completer: d.Completer}
		return typed(t, h.run)
	case TypeUpdateCRM:
		h := &updateCRM{crm: d.CRM}
		return typed(t, h.run)
	case TypeSendEmail:
		return typed(t, sendEmail)
	case TypePostSlack:
		return typed(t, postSlack)
	}
	return nil
}

// Has reports whether actionType has a bound handler.
func (r *Registry) Has(actionType string) bool {
	return r.handlers[Type(actionType)] != nil
}

// Execute runs one action. It never returns an error or panics: unknown
// types, handler errors and handler panics all become failed results.
func (r *Registry) Execute(ctx context.Context, actionType string, config json.RawMessage, actx RunContext) (result Result) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ActionType: logger.Ptr(actionType),
	})

	sc := logger.StartSpan(ctx, "action.execute")
	defer sc.End()
	ctx = sc.Context()
	sc.SetAttributes(attribute.String("action.type", actionType))

	defer func() {
		if rec := recover(); rec != nil {
			slog.ErrorContext(ctx, "action handler panicked",
				"panic", fmt.Sprint(rec),
				"stack", string(debug.Stack()))
			result = Failure(fmt.Sprintf("Action panicked: %v", rec))
		}
		if result.Failed() {
			sc.RecordError(fmt.Errorf("%s", result.Error))
		}
	}()

	h := r.handlers[Type(actionType)]
	if h == nil {
		return Failure(fmt.Sprintf("Unknown action type: %s", actionType))
	}

	res, err := h.Execute(ctx, config, actx)
	if err != nil {
		slog.ErrorContext(ctx, "action handler failed", "error", err)
		return Failure(err.Error())
	}
	return res
}
