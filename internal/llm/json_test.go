package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type label struct {
	Label string `json:"label"`
}

func TestParseJSONClean(t *testing.T) {
	out, err := ParseJSON[label](`{"label": "SAFE"}`)
	require.NoError(t, err)
	assert.Equal(t, "SAFE", out.Label)
}

func TestParseJSONSalvage(t *testing.T) {
	raw := "Sure! Here is the result:\n```json\n{\"label\": \"ESCALATE\"}\n```\nLet me know."
	out, err := ParseJSON[label](raw)
	require.NoError(t, err)
	assert.Equal(t, "ESCALATE", out.Label)
}

func TestParseJSONNoObject(t *testing.T) {
	_, err := ParseJSON[label]("I could not produce a label.")
	assert.Error(t, err)
}

func TestParseJSONMalformed(t *testing.T) {
	_, err := ParseJSON[label](`{"label": SAFE}`)
	assert.Error(t, err)
}
