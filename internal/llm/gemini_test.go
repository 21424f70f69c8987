package llm

import (
	"testing"

	"diet-coach/internal/dietplan"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToGenaiSchema(t *testing.T) {
	s := toGenaiSchema(dietplan.Schema())

	assert.Equal(t, genai.TypeObject, s.Type)
	require.Len(t, s.Properties, len(dietplan.DayKeys))
	assert.Equal(t, dietplan.DayKeys, s.Required)

	day := s.Properties["1"]
	require.NotNil(t, day)
	assert.Equal(t, genai.TypeObject, day.Type)
	assert.Len(t, day.Properties, len(dietplan.MealSlots))
	slots := make([]string, len(dietplan.MealSlots))
	for i, slot := range dietplan.MealSlots {
		slots[i] = string(slot)
	}
	assert.Equal(t, slots, day.Required)

	meal := day.Properties[string(dietplan.SlotBreakfast)]
	require.NotNil(t, meal)
	assert.Equal(t, genai.TypeObject, meal.Type)
	assert.Equal(t, genai.TypeString, meal.Properties["diet"].Type)
	assert.Equal(t, genai.TypeString, meal.Properties["note"].Type)
	assert.ElementsMatch(t, []string{"diet", "note"}, meal.Required)
}

func TestToGenaiSchemaArrays(t *testing.T) {
	s := toGenaiSchema(map[string]any{
		"type":        "array",
		"description": "pages",
		"items":       map[string]any{"type": "integer"},
	})
	assert.Equal(t, genai.TypeArray, s.Type)
	assert.Equal(t, "pages", s.Description)
	require.NotNil(t, s.Items)
	assert.Equal(t, genai.TypeInteger, s.Items.Type)
}

func TestResponseText(t *testing.T) {
	assert.Empty(t, responseText(nil))
	assert.Empty(t, responseText(&genai.GenerateContentResponse{}))

	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{
				genai.Text(`{"1":`),
				genai.Blob{MIMEType: "image/png", Data: []byte("x")},
				genai.Text(`{}}`),
			}},
		}},
	}
	assert.Equal(t, `{"1":{}}`, responseText(resp))
}

func TestGeminiUsage(t *testing.T) {
	assert.Equal(t, "gemini-2.0-flash", geminiUsage("gemini-2.0-flash", nil).Model)
	assert.Zero(t, geminiUsage("gemini-2.0-flash", nil).TotalTokens)

	usage := geminiUsage("gemini-2.0-flash", &genai.UsageMetadata{
		PromptTokenCount:     900,
		CandidatesTokenCount: 250,
		TotalTokenCount:      1150,
	})
	assert.Equal(t, 900, usage.PromptTokens)
	assert.Equal(t, 250, usage.CompletionTokens)
	assert.Equal(t, 1150, usage.TotalTokens)
}

func TestGeminiRequest(t *testing.T) {
	req := ImageRequest{
		Prompt: "read the plan",
		Images: []ImagePart{
			{MIMEType: "image/jpeg", Data: []byte("page-1")},
			{MIMEType: "image/png", Data: []byte("page-2")},
		},
		SchemaName: dietplan.SchemaName,
		Schema:     dietplan.Schema(),
	}

	model := &genai.GenerativeModel{}
	configureModel(model, req)
	assert.Equal(t, "application/json", model.ResponseMIMEType)
	require.NotNil(t, model.Temperature)
	assert.Zero(t, *model.Temperature)
	require.NotNil(t, model.ResponseSchema)
	assert.Len(t, model.ResponseSchema.Properties, len(dietplan.DayKeys))

	assert.Equal(t, []genai.Part{
		genai.Text("read the plan"),
		genai.Blob{MIMEType: "image/jpeg", Data: []byte("page-1")},
		genai.Blob{MIMEType: "image/png", Data: []byte("page-2")},
	}, requestParts(req))

	unconstrained := &genai.GenerativeModel{}
	configureModel(unconstrained, ImageRequest{Prompt: "p"})
	assert.Nil(t, unconstrained.ResponseSchema)
}
