package agent

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raailabs/raai/internal/logging"
)

func TestCoachPromptCarriesContextPassages(t *testing.T) {
	model := &mockModel{response: "What feels heaviest right now?"}
	a := &InsightAgent{Model: model, Log: logging.Nop()}

	resp := a.Coach(context.Background(), "long day at work",
		[]string{"sleep hygiene basics", "box breathing drill", "third passage"},
		"self_awareness", nil)

	require.Len(t, model.prompts, 1)
	assert.Contains(t, model.prompts[0], "sleep hygiene basics")
	assert.Contains(t, model.prompts[0], "box breathing drill")
	assert.NotContains(t, model.prompts[0], "third passage")
	assert.Equal(t, "What feels heaviest right now?", resp.Text)
}

func TestCoachPromptWithoutPassages(t *testing.T) {
	model := &mockModel{response: "How did that land for you?"}
	a := &InsightAgent{Model: model, Log: logging.Nop()}

	a.Coach(context.Background(), "quiet evening", nil, "empathy", nil)

	require.Len(t, model.prompts, 1)
	assert.Contains(t, model.prompts[0], "context_passages: none")
}

func TestCoachSummaryTruncatesOnRuneBoundary(t *testing.T) {
	model := &mockModel{response: "What stood out today?"}
	a := &InsightAgent{Model: model, Log: logging.Nop()}

	a.Coach(context.Background(), strings.Repeat("já", 250), nil, "motivation", nil)

	require.Len(t, model.prompts, 1)
	assert.True(t, utf8.ValidString(model.prompts[0]))
	assert.Equal(t, 100, strings.Count(model.prompts[0], "já"))
}

func TestPassageContextTruncatesOnRuneBoundary(t *testing.T) {
	out := passageContext([]string{strings.Repeat("ö", 500)})

	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, 400, utf8.RuneCountInString(out))
}
