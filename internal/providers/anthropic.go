package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/coreagent/core/internal/schema"
)

// AnthropicProvider talks to the Messages API through the official SDK.
type AnthropicProvider struct {
	client       anthropic.Client
	defaultModel string
}

func NewAnthropicProvider(apiKey, apiBase, defaultModel string, extraHeaders map[string]string) *AnthropicProvider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if apiBase != "" {
		opts = append(opts, option.WithBaseURL(apiBase))
	}
	for k, v := range extraHeaders {
		opts = append(opts, option.WithHeader(k, v))
	}
	return &AnthropicProvider{
		client:       anthropic.NewClient(opts...),
		defaultModel: defaultModel,
	}
}

func (p *AnthropicProvider) DefaultModel() string { return p.defaultModel }

func (p *AnthropicProvider) Chat(
	ctx context.Context,
	messages []schema.Message,
	tools []map[string]any,
	opts schema.ChatOptions,
) (schema.LLMResponse, error) {
	model := opts.Model
	if model == "" {
		model = p.defaultModel
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	enc := &anthropicEncoder{}
	for _, m := range messages {
		m.Accept(enc)
	}
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(stripPrefix(model, "anthropic")),
		MaxTokens:   int64(maxTokens),
		Messages:    enc.messages(),
		Tools:       anthropicTools(tools),
		Temperature: anthropic.Float(opts.Temperature),
	}
	if system := strings.TrimSpace(enc.system.String()); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return schema.LLMResponse{}, fmt.Errorf("anthropic messages: %w", err)
	}
	return fromAnthropicMessage(msg), nil
}

// anthropicEncoder converts messages to Messages API params. Tool results
// become tool_result blocks in a user turn, and consecutive results share one
// turn.
type anthropicEncoder struct {
	system strings.Builder
	out    []anthropic.MessageParam
	// pending collects tool_result blocks until the next non-tool message.
	pending []anthropic.ContentBlockParamUnion
}

func (e *anthropicEncoder) flush() {
	if len(e.pending) > 0 {
		e.out = append(e.out, anthropic.NewUserMessage(e.pending...))
		e.pending = nil
	}
}

func (e *anthropicEncoder) messages() []anthropic.MessageParam {
	e.flush()
	if len(e.out) == 0 {
		e.out = append(e.out, anthropic.NewUserMessage(anthropic.NewTextBlock("Continue.")))
	}
	return e.out
}

func (e *anthropicEncoder) VisitInstruction(m schema.InstructionMessage) {
	if e.system.Len() > 0 {
		e.system.WriteString("\n\n")
	}
	e.system.WriteString(m.Text)
}

func (e *anthropicEncoder) VisitUser(m schema.UserMessage) {
	e.flush()
	text := schema.ContentText(m.Content)
	if text == "" {
		text = " "
	}
	e.out = append(e.out, anthropic.NewUserMessage(anthropic.NewTextBlock(text)))
}

func (e *anthropicEncoder) VisitAssistant(m schema.AssistantMessage) {
	e.flush()
	var blocks []anthropic.ContentBlockParamUnion
	if t := m.Text(); t != "" {
		blocks = append(blocks, anthropic.NewTextBlock(t))
	}
	for _, tc := range m.ToolCalls {
		args := tc.Arguments
		if args == nil {
			args = map[string]any{}
		}
		blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, args, tc.Name))
	}
	if len(blocks) == 0 {
		blocks = append(blocks, anthropic.NewTextBlock(" "))
	}
	e.out = append(e.out, anthropic.NewAssistantMessage(blocks...))
}

func (e *anthropicEncoder) VisitToolResult(m schema.ToolResult) {
	text := schema.ContentText(m.Content)
	e.pending = append(e.pending, anthropic.NewToolResultBlock(m.ToolCallID, text, strings.HasPrefix(text, "Error")))
}

// anthropicTools converts OpenAI function definitions to Anthropic tools.
func anthropicTools(defs []map[string]any) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, d := range defs {
		fn, _ := d["function"].(map[string]any)
		if fn == nil {
			continue
		}
		name, _ := fn["name"].(string)
		desc, _ := fn["description"].(string)

		var params map[string]any
		switch v := fn["parameters"].(type) {
		case map[string]any:
			params = v
		case json.RawMessage:
			_ = json.Unmarshal(v, &params)
		}
		var required []string
		if rs, ok := params["required"].([]any); ok {
			for _, r := range rs {
				if s, ok := r.(string); ok {
					required = append(required, s)
				}
			}
		} else if rs, ok := params["required"].([]string); ok {
			required = rs
		}

		out = append(out, anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
			Name:        name,
			Description: anthropic.String(desc),
			InputSchema: anthropic.ToolInputSchemaParam{Properties: params["properties"], Required: required},
		}})
	}
	return out
}

func fromAnthropicMessage(msg *anthropic.Message) schema.LLMResponse {
	var (
		text  strings.Builder
		calls []schema.ToolCallRequest
	)
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(b.Text)
		case anthropic.ToolUseBlock:
			args := map[string]any{}
			if len(b.Input) > 0 {
				_ = json.Unmarshal(b.Input, &args)
			}
			calls = append(calls, schema.ToolCallRequest{ID: b.ID, Name: b.Name, Arguments: args})
		}
	}

	var content *string
	if s := text.String(); s != "" {
		content = &s
	}
	finish := "stop"
	switch r := string(msg.StopReason); r {
	case "tool_use":
		finish = "tool_calls"
	case "", "end_turn":
	default:
		finish = r
	}
	in, out := int(msg.Usage.InputTokens), int(msg.Usage.OutputTokens)
	return schema.LLMResponse{
		Content:      content,
		ToolCalls:    calls,
		FinishReason: finish,
		Usage: map[string]int{
			"prompt_tokens":     in,
			"completion_tokens": out,
			"total_tokens":      in + out,
		},
	}
}
