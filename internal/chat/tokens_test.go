package chat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))

	short := EstimateTokens("hello world")
	assert.Greater(t, short, 0)

	long := EstimateTokens(strings.Repeat("hello world ", 100))
	assert.Greater(t, long, short)
}

func TestEstimateHistoryTokens(t *testing.T) {
	history := []Message{
		NewUserMessage("what is the weather"),
		{Role: RoleAssistant, Content: "it is sunny"},
	}

	total := EstimateHistoryTokens(history)
	assert.Equal(t, EstimateTokens("what is the weather")+EstimateTokens("it is sunny"), total)
}
