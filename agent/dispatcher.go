package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/luxtick/luxtick_backend/config"
	"github.com/luxtick/luxtick_backend/utils"
)

// Dispatcher runs the bounded tool-calling loop: model call, execute
// the requested tools, feed results back, repeat until the model
// answers in plain text or the round budget runs out.
type Dispatcher struct {
	Client    LLMClient
	Registry  *Registry
	MaxRounds int
}

func NewDispatcher(client LLMClient, registry *Registry) *Dispatcher {
	return &Dispatcher{
		Client:    client,
		Registry:  registry,
		MaxRounds: config.GetMaxToolRounds(),
	}
}

// Respond drives the loop for one user turn. When the budget is
// exhausted it makes a final no-tools call and returns that best-effort
// answer alongside the budget error, so the caller can still reply.
func (d *Dispatcher) Respond(ctx context.Context, userId int, messages []Message) (string, error) {
	logger := config.GetLogger()
	tools := d.Registry.Definitions()

	for round := 0; round < d.MaxRounds; round++ {
		resp, err := d.complete(ctx, CompletionRequest{Messages: messages, Tools: tools})
		if err != nil {
			config.LogError(logger, "agent", "Respond", "model call", round, err)
			return "", err
		}

		if len(resp.ToolCalls) == 0 {
			return resp.Content, nil
		}

		messages = append(messages, Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, result := range d.executeAll(ctx, userId, resp.ToolCalls) {
			messages = append(messages, result)
		}
	}

	// Budget exhausted: one last call without tools so the model has to
	// answer with what it has gathered so far.
	resp, err := d.complete(ctx, CompletionRequest{Messages: messages})
	if err != nil {
		config.LogError(logger, "agent", "Respond", "final call", d.MaxRounds, err)
		return "", err
	}
	return resp.Content, utils.ErrorTurnBudgetExceeded
}

// complete calls the model, retrying once on a transient failure.
func (d *Dispatcher) complete(ctx context.Context, request CompletionRequest) (*CompletionResponse, error) {
	resp, err := d.Client.Complete(ctx, request)
	if err == nil {
		return resp, nil
	}
	if !IsTransientModelError(err) {
		return nil, err
	}
	resp, err = d.Client.Complete(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrorModelUnavailable, err)
	}
	return resp, nil
}

// executeAll runs every tool call of one round concurrently and returns
// a tool message per call, in the order the model requested them.
func (d *Dispatcher) executeAll(ctx context.Context, userId int, calls []ToolCallEntry) []Message {
	results := make([]Message, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call ToolCallEntry) {
			defer wg.Done()
			results[i] = Message{
				Role:       "tool",
				Content:    encodeResult(d.execute(ctx, userId, call)),
				ToolCallId: call.ID,
			}
		}(i, call)
	}
	wg.Wait()
	return results
}

// execute runs one tool call. Every failure mode becomes a structured
// result; a panicking handler must not take the round down with it.
func (d *Dispatcher) execute(ctx context.Context, userId int, call ToolCallEntry) (result ToolCallResult) {
	logger := config.GetLogger()

	defer func() {
		if r := recover(); r != nil {
			config.LogError(logger, "agent", "execute", "tool panic", call.Function.Name, fmt.Errorf("%v", r))
			result = ToolCallResult{OK: false, Error: &ToolError{
				Code:    ToolErrorExecutionFailed,
				Message: fmt.Sprintf("tool %s failed", call.Function.Name),
			}}
		}
	}()

	tool, ok := d.Registry.Get(call.Function.Name)
	if !ok {
		return ToolCallResult{OK: false, Error: &ToolError{
			Code:    ToolErrorNotFound,
			Message: fmt.Sprintf("no tool named %s", call.Function.Name),
		}}
	}

	payload, diags, err := tool.Handler(ctx, userId, call.Function.Arguments)
	if diags != nil {
		return ToolCallResult{OK: false, Error: &ToolError{
			Code:    ToolErrorInvalidArguments,
			Message: "arguments did not validate",
			Fields:  diags,
		}}
	}
	if err != nil {
		config.LogError(logger, "agent", "execute", call.Function.Name, call.Function.Arguments, err)
		return ToolCallResult{OK: false, Error: &ToolError{
			Code:    ToolErrorExecutionFailed,
			Message: err.Error(),
		}}
	}
	return ToolCallResult{OK: true, Result: payload}
}

func encodeResult(result ToolCallResult) string {
	encoded, err := utils.MarshalToJSON(result)
	if err != nil {
		return `{"ok":false,"error":{"code":"TOOL_EXECUTION_FAILED","message":"result not serializable"}}`
	}
	return encoded
}
