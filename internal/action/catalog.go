package action

import (
	"reflect"

	"github.com/invopop/jsonschema"

	"basicsos.app/automation/internal/model"
)

// Descriptor documents one action kind for automation editors.
type Descriptor struct {
	Type        Type               `json:"type"`
	Description string             `json:"description"`
	Config      *jsonschema.Schema `json:"config"`
}

var descriptions = map[Type]string{
	TypeCreateTask:  "Create a task in the tenant, created by the triggering user or the tenant's first user",
	TypeCallWebhook: "Send an HTTPS request to a public endpoint",
	TypeRunAIPrompt: "Run an AI completion on a prompt built from the trigger payload",
	TypeUpdateCRM:   "Update allow-listed fields of a contact or deal",
	TypeSendEmail:   "Send an email (not delivered until a provider is configured)",
	TypePostSlack:   "Post a Slack message (not delivered until an integration is configured)",
}

func configFor(t Type) any {
	switch t {
	case TypeCreateTask:
		return CreateTaskConfig{}
	case TypeCallWebhook:
		return CallWebhookConfig{}
	case TypeRunAIPrompt:
		return RunAIPromptConfig{}
	case TypeUpdateCRM:
		return UpdateCRMConfig{}
	case TypeSendEmail:
		return SendEmailConfig{}
	case TypePostSlack:
		return PostSlackConfig{}
	}
	return nil
}

var idType = reflect.TypeOf(model.ID(0))

// Catalog describes every action type with the JSON Schema of its config.
func Catalog() []Descriptor {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t == idType {
				return &jsonschema.Schema{OneOf: []*jsonschema.Schema{
					{Type: "string", Pattern: "^[0-9]+$"},
					{Type: "integer"},
				}}
			}
			return nil
		},
	}

	out := make([]Descriptor, 0, len(Types()))
	for _, t := range Types() {
		schema := reflector.Reflect(configFor(t))
		schema.Version = ""
		out = append(out, Descriptor{
			Type:        t,
			Description: descriptions[t],
			Config:      schema,
		})
	}
	return out
}
