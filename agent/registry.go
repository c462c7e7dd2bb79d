package agent

import "context"

// Tool-level error codes carried back to the model as structured
// results. A failed tool call never aborts the round it belongs to.
const (
	ToolErrorNotFound         = "TOOL_NOT_FOUND"
	ToolErrorInvalidArguments = "INVALID_ARGUMENTS"
	ToolErrorExecutionFailed  = "TOOL_EXECUTION_FAILED"
)

// ToolError is machine-readable failure detail for one tool call.
// Fields carries per-field diagnostics for argument problems.
type ToolError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// ToolCallResult is what every tool call round-trips to the model.
type ToolCallResult struct {
	OK     bool        `json:"ok"`
	Result interface{} `json:"result,omitempty"`
	Error  *ToolError  `json:"error,omitempty"`
}

// ToolHandler executes one tool call with raw JSON arguments. Argument
// problems come back as field diagnostics; err is an execution failure.
type ToolHandler func(ctx context.Context, userId int, rawArgs string) (interface{}, map[string]string, error)

// Tool pairs a model-facing definition with its handler.
type Tool struct {
	Definition ToolDefinition
	Handler    ToolHandler
}

// Registry is the static tool catalog. Registration order is the order
// definitions are advertised to the model.
type Registry struct {
	tools map[string]Tool
	order []string
}

func NewRegistry() *Registry {
	return &Registry{tools: map[string]Tool{}}
}

func (r *Registry) Register(tool Tool) {
	name := tool.Definition.Name
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = tool
}

func (r *Registry) Get(name string) (Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

func (r *Registry) Definitions() []ToolDefinition {
	defs := make([]ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition)
	}
	return defs
}
