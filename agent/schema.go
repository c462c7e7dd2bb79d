package agent

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"github.com/luxtick/luxtick_backend/utils"
)

var argsValidator = newArgsValidator()

func newArgsValidator() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	return v
}

// DecodeArgs unmarshals raw tool-call arguments into the tool's typed
// input struct and validates required fields. Failures come back as a
// field → problem map the model can act on.
func DecodeArgs[T any](raw string) (*T, map[string]string, error) {
	var args T
	if raw == "" {
		raw = "{}"
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, map[string]string{"_arguments": "not valid JSON"}, err
	}
	if err := argsValidator.Struct(&args); err != nil {
		if _, ok := err.(validator.ValidationErrors); ok {
			return nil, utils.ProcessValidationErrors(err), err
		}
		// Struct without validatable fields or non-struct input.
		if _, ok := err.(*validator.InvalidValidationError); ok {
			return &args, nil, nil
		}
		return nil, map[string]string{"_arguments": err.Error()}, err
	}
	return &args, nil, nil
}

// objectSchema builds the JSON schema for a tool's parameters.
func objectSchema(properties map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

func intProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "integer", "description": description}
}

func boolProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "boolean", "description": description}
}

func enumProp(description string, values ...string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description, "enum": values}
}

func arrayProp(description string, items map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{"type": "array", "description": description, "items": items}
}
