package httpapi

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	courier "github.com/inboxkit/courier"
	"github.com/inboxkit/courier/driver"
)

const actionSchemaURL = "courier://schemas/action.json"

const actionSchema = `{
	"type": "object",
	"required": ["type", "threadIds"],
	"properties": {
		"type": {"enum": ["MOVE", "STAR", "READ", "LABEL", "IMPORTANT"]},
		"threadIds": {
			"type": "array",
			"minItems": 1,
			"items": {"type": "string", "minLength": 1}
		},
		"destination": {"type": "string", "minLength": 1},
		"starred": {"type": "boolean"},
		"read": {"type": "boolean"},
		"important": {"type": "boolean"},
		"labelId": {"type": "string", "minLength": 1},
		"add": {"type": "boolean"}
	},
	"allOf": [
		{"if": {"properties": {"type": {"const": "MOVE"}}}, "then": {"required": ["destination"]}},
		{"if": {"properties": {"type": {"const": "STAR"}}}, "then": {"required": ["starred"]}},
		{"if": {"properties": {"type": {"const": "READ"}}}, "then": {"required": ["read"]}},
		{"if": {"properties": {"type": {"const": "LABEL"}}}, "then": {"required": ["labelId", "add"]}},
		{"if": {"properties": {"type": {"const": "IMPORTANT"}}}, "then": {"required": ["important"]}}
	]
}`

// actionRequest is the body of POST /mail/actions.
type actionRequest struct {
	Type        courier.ActionType `json:"type"`
	ThreadIDs   []driver.ThreadID  `json:"threadIds"`
	Destination driver.LabelID     `json:"destination,omitempty"`
	Starred     bool               `json:"starred,omitempty"`
	Read        bool               `json:"read,omitempty"`
	Important   bool               `json:"important,omitempty"`
	LabelID     driver.LabelID     `json:"labelId,omitempty"`
	Add         bool               `json:"add,omitempty"`
}

func (req actionRequest) params() (courier.Params, error) {
	switch req.Type {
	case courier.Move:
		return courier.MoveParams{Destination: req.Destination}, nil

	case courier.Star:
		return courier.StarParams{Starred: req.Starred}, nil

	case courier.Read:
		return courier.ReadParams{Read: req.Read}, nil

	case courier.Label:
		return courier.LabelParams{LabelID: req.LabelID, Add: req.Add}, nil

	case courier.Important:
		return courier.ImportantParams{Important: req.Important}, nil

	default:
		return nil, fmt.Errorf("%w: unknown action type %q", courier.ErrInvalidParams, req.Type)
	}
}

func compileActionSchema() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(actionSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to parse action schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()

	if err := compiler.AddResource(actionSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("failed to add action schema: %w", err)
	}

	return compiler.Compile(actionSchemaURL)
}

// validateAction checks the raw body against the action schema.
func validateAction(schema *jsonschema.Schema, body []byte) error {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", courier.ErrInvalidParams, err)
	}

	if err := schema.Validate(inst); err != nil {
		return fmt.Errorf("%w: %v", courier.ErrInvalidParams, err)
	}

	return nil
}
