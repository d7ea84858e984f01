package action

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"basicsos.app/automation/internal/model"
	"basicsos.app/automation/internal/store"
)

type CreateTaskConfig struct {
	Title       string             `json:"title" jsonschema:"minLength=1,description=Task title"`
	Description string             `json:"description,omitempty"`
	AssigneeID  *model.ID          `json:"assigneeId,omitempty" jsonschema:"description=User to assign the task to"`
	Priority    model.TaskPriority `json:"priority,omitempty" jsonschema:"enum=low,enum=medium,enum=high,enum=urgent,default=medium"`
	DueDate     string             `json:"dueDate,omitempty" jsonschema:"description=RFC3339 timestamp or YYYY-MM-DD date"`
}

func (c CreateTaskConfig) Validate() error {
	if strings.TrimSpace(c.Title) == "" {
		return errors.New("title is required")
	}
	if c.Priority != "" && !c.Priority.Valid() {
		return fmt.Errorf("priority %q is not one of low, medium, high, urgent", c.Priority)
	}
	if _, err := c.dueDate(); err != nil {
		return err
	}
	return nil
}

func (c CreateTaskConfig) priority() model.TaskPriority {
	if c.Priority == "" {
		return model.TaskPriorityMedium
	}
	return c.Priority
}

func (c CreateTaskConfig) dueDate() (*time.Time, error) {
	if c.DueDate == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, c.DueDate); err == nil {
		return &t, nil
	}
	if t, err := time.Parse(time.DateOnly, c.DueDate); err == nil {
		return &t, nil
	}
	return nil, fmt.Errorf("dueDate %q must be RFC3339 or YYYY-MM-DD", c.DueDate)
}

type CallWebhookConfig struct {
	URL     string            `json:"url" jsonschema:"format=uri,description=HTTPS endpoint"`
	Method  string            `json:"method,omitempty" jsonschema:"enum=GET,enum=POST,enum=PUT,enum=PATCH,enum=DELETE,default=POST"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    json.RawMessage   `json:"body,omitempty" jsonschema:"description=JSON body; defaults to the trigger payload"`
}

var webhookMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

func (c CallWebhookConfig) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return errors.New("url is required")
	}
	if c.Method != "" && !webhookMethods[strings.ToUpper(c.Method)] {
		return fmt.Errorf("method %q is not supported", c.Method)
	}
	return nil
}

func (c CallWebhookConfig) method() string {
	if c.Method == "" {
		return http.MethodPost
	}
	return strings.ToUpper(c.Method)
}

type RunAIPromptConfig struct {
	Prompt       string `json:"prompt" jsonschema:"minLength=1,description=User prompt; {{path}} placeholders read the trigger payload"`
	SystemPrompt string `json:"systemPrompt,omitempty"`
	MaxTokens    int    `json:"maxTokens,omitempty" jsonschema:"minimum=1,maximum=16384"`
}

func (c RunAIPromptConfig) Validate() error {
	if strings.TrimSpace(c.Prompt) == "" {
		return errors.New("prompt is required")
	}
	if c.MaxTokens < 0 {
		return errors.New("maxTokens must be positive")
	}
	return nil
}

type UpdateCRMConfig struct {
	Entity model.CRMEntity `json:"entity" jsonschema:"enum=contact,enum=deal"`
	ID     model.ID        `json:"id"`
	Fields map[string]any  `json:"fields"`
}

func (c UpdateCRMConfig) Validate() error {
	if c.Entity != model.CRMEntityContact && c.Entity != model.CRMEntityDeal {
		return fmt.Errorf("entity %q must be contact or deal", c.Entity)
	}
	if c.ID <= 0 {
		return errors.New("id is required")
	}
	if len(c.Fields) == 0 {
		return errors.New("fields must not be empty")
	}
	allowed := make(map[string]bool)
	for _, f := range store.CRMFields(c.Entity) {
		allowed[f] = true
	}
	for name := range c.Fields {
		if !allowed[name] {
			return fmt.Errorf("field %q cannot be updated on %s", name, c.Entity)
		}
	}
	return nil
}

type SendEmailConfig struct {
	To      string `json:"to,omitempty" jsonschema:"format=email"`
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body,omitempty"`
}

// Validate accepts any shape; nothing is delivered yet.
func (c SendEmailConfig) Validate() error {
	return nil
}

type PostSlackConfig struct {
	Channel string `json:"channel,omitempty"`
	Text    string `json:"text,omitempty"`
}

func (c PostSlackConfig) Validate() error {
	return nil
}
