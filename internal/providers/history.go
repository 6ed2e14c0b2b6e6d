package providers

import (
	"encoding/json"

	"github.com/Davincible/chatkit-go/internal/chat"
)

// History conversion between the canonical message model and each provider's
// wire schema. Wire messages are ephemeral: built fresh from canonical
// history on every request and discarded after the call.

// ---------- Gemini (internal RPC) wire schema ----------

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text             string                  `json:"text,omitempty"`
	FunctionCall     *geminiFunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *geminiFunctionResponse `json:"functionResponse,omitempty"`
}

type geminiFunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

type geminiFunctionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// toGeminiContents converts canonical history (plus an optional pending
// prompt) into Gemini contents. System messages are dropped (unsupported
// role), zero-part messages are skipped, and incomplete runs of consecutive
// model turns are curated away so a broken tool-call sequence is never
// replayed to the model as valid context.
func toGeminiContents(history []chat.Message, prompt string) []geminiContent {
	contents := make([]geminiContent, 0, len(history)+1)
	for _, msg := range history {
		if msg.Role == chat.RoleSystem {
			continue
		}
		contents = append(contents, geminiContent{
			Role:  geminiRole(msg.Role),
			Parts: geminiParts(msg),
		})
	}

	contents = curateGeminiContents(contents)

	if prompt != "" {
		contents = append(contents, geminiContent{
			Role:  "user",
			Parts: []geminiPart{{Text: prompt}},
		})
	}
	return contents
}

func geminiRole(role chat.Role) string {
	if role == chat.RoleAssistant {
		return "model"
	}
	return "user"
}

func geminiParts(msg chat.Message) []geminiPart {
	var parts []geminiPart
	if msg.Content != "" {
		parts = append(parts, geminiPart{Text: msg.Content})
	}
	for _, call := range msg.ToolCalls {
		parts = append(parts, geminiPart{FunctionCall: &geminiFunctionCall{
			Name: sanitizeToolName(call.Name),
			Args: call.Arguments,
		}})
	}
	if msg.Role == chat.RoleTool {
		for _, rec := range msg.Records {
			response := map[string]any{"output": rec.Output}
			if rec.IsError {
				response = map[string]any{"error": rec.Output}
			}
			parts = append(parts, geminiPart{FunctionResponse: &geminiFunctionResponse{
				Name:     sanitizeToolName(rec.ToolName),
				Response: response,
			}})
		}
	}
	return parts
}

// curateGeminiContents keeps a contiguous run of model turns only if every
// turn in the run has at least one part, then drops any remaining empty
// contributions entirely.
func curateGeminiContents(contents []geminiContent) []geminiContent {
	curated := make([]geminiContent, 0, len(contents))
	i := 0
	for i < len(contents) {
		if contents[i].Role != "model" {
			if len(contents[i].Parts) > 0 {
				curated = append(curated, contents[i])
			}
			i++
			continue
		}

		j := i
		runValid := true
		for j < len(contents) && contents[j].Role == "model" {
			if len(contents[j].Parts) == 0 {
				runValid = false
			}
			j++
		}
		if runValid {
			curated = append(curated, contents[i:j]...)
		}
		i = j
	}
	return curated
}

// fromGeminiContents is the inverse conversion, used for one-shot response
// assembly: text parts are joined, function calls collected in encounter
// order, and function responses become execution records.
func fromGeminiContents(contents []geminiContent) []chat.Message {
	messages := make([]chat.Message, 0, len(contents))
	for _, c := range contents {
		msg := chat.Message{Role: chat.RoleUser}
		if c.Role == "model" {
			msg.Role = chat.RoleAssistant
		}
		for _, p := range c.Parts {
			switch {
			case p.Text != "":
				msg.Content += p.Text
			case p.FunctionCall != nil:
				msg.ToolCalls = append(msg.ToolCalls, chat.ToolCall{
					Name:      p.FunctionCall.Name,
					Arguments: p.FunctionCall.Args,
				})
			case p.FunctionResponse != nil:
				msg.Role = chat.RoleTool
				rec := chat.ExecutionRecord{ToolName: p.FunctionResponse.Name}
				if out, ok := p.FunctionResponse.Response["output"].(string); ok {
					rec.Output = out
				} else if errText, ok := p.FunctionResponse.Response["error"].(string); ok {
					rec.Output = errText
					rec.IsError = true
				}
				msg.Records = append(msg.Records, rec)
			}
		}
		messages = append(messages, msg)
	}
	return messages
}

// ---------- OpenAI-style gateway wire schema ----------

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
	Name       string           `json:"name,omitempty"`
}

type openAIToolCall struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Function openAIFunction `json:"function"`
}

type openAIFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// toOpenAIMessages converts canonical history into OpenAI chat messages.
// Tool messages explode into one wire message per execution record, linked
// via tool_call_id; assistant tool-call arguments become JSON strings.
func toOpenAIMessages(history []chat.Message, prompt string) []openAIMessage {
	messages := make([]openAIMessage, 0, len(history)+1)
	for _, msg := range history {
		switch msg.Role {
		case chat.RoleTool:
			for _, rec := range msg.Records {
				messages = append(messages, openAIMessage{
					Role:       "tool",
					Content:    rec.Output,
					ToolCallID: recordCallID(rec),
					Name:       rec.ToolName,
				})
			}
		case chat.RoleAssistant:
			wireMsg := openAIMessage{Role: "assistant", Content: msg.Content}
			for _, call := range msg.ToolCalls {
				wireMsg.ToolCalls = append(wireMsg.ToolCalls, openAIToolCall{
					ID:   callID(call),
					Type: "function",
					Function: openAIFunction{
						Name:      call.Name,
						Arguments: marshalArguments(call.Arguments),
					},
				})
			}
			if wireMsg.Content == "" && len(wireMsg.ToolCalls) == 0 {
				continue
			}
			messages = append(messages, wireMsg)
		default:
			if msg.Content == "" {
				continue
			}
			messages = append(messages, openAIMessage{Role: string(msg.Role), Content: msg.Content})
		}
	}

	if prompt != "" {
		messages = append(messages, openAIMessage{Role: "user", Content: prompt})
	}
	return messages
}

// ---------- Local inference (Ollama) wire schema ----------

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
}

type ollamaToolCall struct {
	Function ollamaFunctionCall `json:"function"`
}

type ollamaFunctionCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// toOllamaMessages converts canonical history for the local inference
// server. Arguments stay structured on this wire; they are never
// pre-serialized strings.
func toOllamaMessages(history []chat.Message, prompt string) []ollamaMessage {
	messages := make([]ollamaMessage, 0, len(history)+1)
	for _, msg := range history {
		switch msg.Role {
		case chat.RoleTool:
			for _, rec := range msg.Records {
				messages = append(messages, ollamaMessage{Role: "tool", Content: rec.Output})
			}
		case chat.RoleAssistant:
			wireMsg := ollamaMessage{Role: "assistant", Content: msg.Content}
			for _, call := range msg.ToolCalls {
				wireMsg.ToolCalls = append(wireMsg.ToolCalls, ollamaToolCall{
					Function: ollamaFunctionCall{Name: call.Name, Arguments: call.Arguments},
				})
			}
			if wireMsg.Content == "" && len(wireMsg.ToolCalls) == 0 {
				continue
			}
			messages = append(messages, wireMsg)
		default:
			if msg.Content == "" {
				continue
			}
			messages = append(messages, ollamaMessage{Role: string(msg.Role), Content: msg.Content})
		}
	}

	if prompt != "" {
		messages = append(messages, ollamaMessage{Role: "user", Content: prompt})
	}
	return messages
}

// stripToolArtifacts removes all tool-result messages and assistant
// tool-call messages from history. Used for the local no-tools retry: a
// model that never saw tool declarations must not see orphaned tool
// artifacts either.
func stripToolArtifacts(history []chat.Message) []chat.Message {
	filtered := make([]chat.Message, 0, len(history))
	for _, msg := range history {
		if msg.HasToolArtifacts() {
			continue
		}
		filtered = append(filtered, msg)
	}
	return filtered
}

// ---------- shared helpers ----------

// callID returns the call's wire id, synthesizing one from the tool name
// when the provider did not assign one.
func callID(call chat.ToolCall) string {
	if call.ID != "" {
		return call.ID
	}
	return "call_" + call.Name
}

func recordCallID(rec chat.ExecutionRecord) string {
	if rec.ToolCallID != "" {
		return rec.ToolCallID
	}
	return "call_" + rec.ToolName
}

func marshalArguments(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(data)
}
