package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
)

const builtinServer = "builtin"

// handlerFunc runs one builtin tool against already-decoded arguments.
type handlerFunc func(ctx context.Context, args map[string]any) (string, error)

type builtinTool struct {
	def     Definition
	handler handlerFunc
}

// Builtin is a small in-process Runtime with a fixed tool set. It exists so
// the CLI can demonstrate the tool loop without an external runtime, and so
// tests have a real Runtime to exercise.
type Builtin struct {
	tools map[string]builtinTool
	order []string
}

// NewBuiltin constructs the builtin runtime with its default tools.
func NewBuiltin() *Builtin {
	b := &Builtin{tools: map[string]builtinTool{}}
	b.register(Definition{
		Server:      builtinServer,
		Name:        "current_time",
		Description: "Returns the current date and time, optionally in a named IANA timezone.",
		InputSchema: schemaFor(&currentTimeArgs{}),
	}, currentTime)
	b.register(Definition{
		Server:      builtinServer,
		Name:        "calculator",
		Description: "Evaluates a basic arithmetic expression with two operands.",
		InputSchema: schemaFor(&calculatorArgs{}),
	}, calculate)
	return b
}

func (b *Builtin) register(def Definition, handler handlerFunc) {
	b.tools[def.Name] = builtinTool{def: def, handler: handler}
	b.order = append(b.order, def.Name)
}

// All implements Runtime.
func (b *Builtin) All() []Definition {
	defs := make([]Definition, 0, len(b.order))
	for _, name := range b.order {
		defs = append(defs, b.tools[name].def)
	}
	return defs
}

// Call implements Runtime.
func (b *Builtin) Call(ctx context.Context, name string, args map[string]any) (string, error) {
	t, ok := b.tools[name]
	if !ok {
		return "", &ErrUnknownTool{Name: name}
	}
	return t.handler(ctx, args)
}

type currentTimeArgs struct {
	Timezone string `json:"timezone,omitempty" jsonschema:"description=IANA timezone name such as Europe/Amsterdam"`
}

func currentTime(_ context.Context, args map[string]any) (string, error) {
	loc := time.Local
	if tz, _ := args["timezone"].(string); tz != "" {
		parsed, err := time.LoadLocation(tz)
		if err != nil {
			return "", fmt.Errorf("unknown timezone %q: %w", tz, err)
		}
		loc = parsed
	}
	return time.Now().In(loc).Format(time.RFC1123), nil
}

type calculatorArgs struct {
	A        float64 `json:"a" jsonschema:"description=Left operand"`
	B        float64 `json:"b" jsonschema:"description=Right operand"`
	Operator string  `json:"operator" jsonschema:"description=One of + - * /"`
}

func calculate(_ context.Context, args map[string]any) (string, error) {
	a, err := toFloat(args["a"])
	if err != nil {
		return "", fmt.Errorf("operand a: %w", err)
	}
	b, err := toFloat(args["b"])
	if err != nil {
		return "", fmt.Errorf("operand b: %w", err)
	}
	op, _ := args["operator"].(string)

	var result float64
	switch op {
	case "+":
		result = a + b
	case "-":
		result = a - b
	case "*":
		result = a * b
	case "/":
		if b == 0 {
			return "", fmt.Errorf("division by zero")
		}
		result = a / b
	default:
		return "", fmt.Errorf("unsupported operator %q", op)
	}
	return strconv.FormatFloat(result, 'g', -1, 64), nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(n), 64)
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}

// schemaFor derives a JSON schema object for a tool's argument struct.
// The reflector inlines definitions so the result is a single self-contained
// object the provider adapters can reshape.
func schemaFor(v any) map[string]any {
	reflector := jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	schema := reflector.Reflect(v)

	data, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{"type": "object"}
	}
	return out
}
