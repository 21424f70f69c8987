package dietplan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// SchemaName identifies the weekly plan schema when a provider wants a name.
const SchemaName = "weekly_diet_plan"

// Schema returns the closed JSON schema of a WeeklyMealPlan. Every object
// lists all of its keys as required and forbids additional properties.
// A fresh map is returned on each call so callers may adapt it.
func Schema() map[string]any {
	days := make(map[string]any, len(DayKeys))
	for _, day := range DayKeys {
		daily := dailySchema()
		daily["description"] = fmt.Sprintf("Daily diet plan for day %s.", day)
		days[day] = daily
	}
	return map[string]any{
		"type":                 "object",
		"description":          "A collection of daily diet plans, keyed by day number.",
		"properties":           days,
		"required":             stringsToAny(DayKeys),
		"additionalProperties": false,
	}
}

func dailySchema() map[string]any {
	slots := make(map[string]any, len(MealSlots))
	required := make([]any, 0, len(MealSlots))
	for _, slot := range MealSlots {
		label := strings.ReplaceAll(string(slot), "-", " ")
		slots[string(slot)] = map[string]any{
			"type": "object",
			"properties": map[string]any{
				"diet": map[string]any{
					"type":        "string",
					"description": fmt.Sprintf("The recommended diet for %s.", label),
				},
				"note": map[string]any{
					"type":        "string",
					"description": fmt.Sprintf("Any additional notes for %s diet.", label),
				},
			},
			"required":             []any{"diet", "note"},
			"additionalProperties": false,
		}
		required = append(required, string(slot))
	}
	return map[string]any{
		"type":                 "object",
		"description":          "Structure for a single day's meal plan.",
		"properties":           slots,
		"required":             required,
		"additionalProperties": false,
	}
}

func stringsToAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

var (
	compiledOnce   sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

func validator() (*jsonschema.Schema, error) {
	compiledOnce.Do(func() {
		raw, err := json.Marshal(Schema())
		if err != nil {
			compileErr = fmt.Errorf("failed to serialize plan schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("weekly_diet_plan.json", bytes.NewReader(raw)); err != nil {
			compileErr = fmt.Errorf("failed to load plan schema: %w", err)
			return
		}
		compiledSchema, compileErr = compiler.Compile("weekly_diet_plan.json")
	})
	return compiledSchema, compileErr
}

// Validate checks a decoded JSON document against the closed plan schema.
func Validate(doc any) error {
	schema, err := validator()
	if err != nil {
		return err
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("plan does not match schema: %w", err)
	}
	return nil
}

// Parse decodes model output into a WeeklyMealPlan. The text must be a
// single JSON object matching the schema; a markdown code fence around it
// is tolerated. No partially-populated plan is ever returned.
func Parse(content string) (*WeeklyMealPlan, error) {
	raw := stripCodeFences(strings.TrimSpace(content))
	if raw == "" {
		return nil, fmt.Errorf("empty plan document")
	}

	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("failed to parse plan JSON: %w", err)
	}
	if err := Validate(doc); err != nil {
		return nil, err
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()
	var plan WeeklyMealPlan
	if err := dec.Decode(&plan); err != nil {
		return nil, fmt.Errorf("failed to decode plan: %w", err)
	}
	return &plan, nil
}

// HasDayKeys reports whether content is a JSON object carrying at least one
// day key, valid plan or not.
func HasDayKeys(content string) bool {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(stripCodeFences(strings.TrimSpace(content))), &doc); err != nil {
		return false
	}
	for _, day := range DayKeys {
		if _, ok := doc[day]; ok {
			return true
		}
	}
	return false
}

func stripCodeFences(content string) string {
	if !strings.HasPrefix(content, "```") {
		return content
	}
	body := strings.TrimPrefix(content, "```")
	if i := strings.IndexByte(body, '\n'); i >= 0 {
		// Drop the info string ("json") on the opening line.
		body = body[i+1:]
	} else {
		body = strings.TrimPrefix(body, "json")
	}
	body = strings.TrimSuffix(strings.TrimSpace(body), "```")
	return strings.TrimSpace(body)
}
