package providers

import (
	"strings"

	"github.com/Davincible/chatkit-go/internal/tools"
)

// Tool adapters map host tool definitions onto each provider's function
// schema dialect.

// ---------- Gemini ----------

type geminiTool struct {
	FunctionDeclarations []geminiFunctionDeclaration `json:"functionDeclarations"`
}

type geminiFunctionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// geminiToolDecls converts host tool definitions to Gemini function
// declarations: names sanitized, schema reshaped to the uppercase dialect.
func geminiToolDecls(defs []tools.Definition) []geminiTool {
	if len(defs) == 0 {
		return nil
	}
	decls := make([]geminiFunctionDeclaration, 0, len(defs))
	for _, def := range defs {
		decls = append(decls, geminiFunctionDeclaration{
			Name:        sanitizeToolName(def.Name),
			Description: def.Description,
			Parameters:  normalizeGeminiSchema(def.InputSchema),
		})
	}
	return []geminiTool{{FunctionDeclarations: decls}}
}

// sanitizeToolName keeps only [a-zA-Z0-9_-], replacing everything else with
// an underscore. Gemini rejects declarations with other characters.
func sanitizeToolName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// normalizeGeminiSchema rewrites a JSON-schema-like object into Gemini's
// dialect: `type` values upper-cased, `$schema`/`title` keys stripped, and
// an object with properties but no type assigned `type: OBJECT`. The input
// is never mutated.
func normalizeGeminiSchema(schema map[string]any) map[string]any {
	if schema == nil {
		return nil
	}

	out := make(map[string]any, len(schema))
	for key, value := range schema {
		switch key {
		case "$schema", "title":
			continue
		case "type":
			if s, ok := value.(string); ok {
				out[key] = strings.ToUpper(s)
				continue
			}
			out[key] = value
		case "properties":
			if props, ok := value.(map[string]any); ok {
				normalized := make(map[string]any, len(props))
				for name, sub := range props {
					if subSchema, ok := sub.(map[string]any); ok {
						normalized[name] = normalizeGeminiSchema(subSchema)
					} else {
						normalized[name] = sub
					}
				}
				out[key] = normalized
				continue
			}
			out[key] = value
		case "items":
			if subSchema, ok := value.(map[string]any); ok {
				out[key] = normalizeGeminiSchema(subSchema)
				continue
			}
			out[key] = value
		default:
			out[key] = value
		}
	}

	if _, hasType := out["type"]; !hasType {
		if _, hasProps := out["properties"]; hasProps {
			out["type"] = "OBJECT"
		}
	}
	return out
}

// ---------- OpenAI-style gateway ----------

type openAIToolDecl struct {
	Type     string             `json:"type"`
	Function openAIFunctionDecl `json:"function"`
}

type openAIFunctionDecl struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// openAIToolDecls passes schemas through untouched; only the envelope shape
// changes. Arguments round-trip as JSON strings on this wire.
func openAIToolDecls(defs []tools.Definition) []openAIToolDecl {
	if len(defs) == 0 {
		return nil
	}
	decls := make([]openAIToolDecl, 0, len(defs))
	for _, def := range defs {
		decls = append(decls, openAIToolDecl{
			Type: "function",
			Function: openAIFunctionDecl{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.InputSchema,
			},
		})
	}
	return decls
}

// ---------- Local inference (Ollama) ----------

// ollamaToolDecls shares the OpenAI envelope; the difference is on the
// argument side (structured values, handled by the history converter) and
// the 400 no-tools retry contract implemented by the client.
func ollamaToolDecls(defs []tools.Definition) []openAIToolDecl {
	return openAIToolDecls(defs)
}
