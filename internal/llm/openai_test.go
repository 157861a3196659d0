package llm

import (
	"testing"

	openai "github.com/meguminnnnnnnnn/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatRequest(t *testing.T) {
	req := Request{Model: "gpt-4o-mini", Temperature: 0.3, MaxTokens: 120}
	out := chatRequest(req, "rendered prompt", false)

	assert.Equal(t, "gpt-4o-mini", out.Model)
	assert.Equal(t, 120, out.MaxTokens)
	assert.False(t, out.Stream)
	require.NotNil(t, out.Temperature)
	assert.InDelta(t, 0.3, float64(*out.Temperature), 1e-6)
	require.Len(t, out.Messages, 1)
	assert.Equal(t, openai.ChatMessageRoleUser, out.Messages[0].Role)
	assert.Equal(t, "rendered prompt", out.Messages[0].Content)
}

func TestChatRequestZeroTemperatureOmitted(t *testing.T) {
	out := chatRequest(Request{Model: "m"}, "p", true)

	assert.Nil(t, out.Temperature)
	assert.True(t, out.Stream)
}

func TestMessageTextMultiContent(t *testing.T) {
	msg := openai.ChatCompletionMessage{
		MultiContent: []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: "first "},
			{Type: openai.ChatMessagePartTypeImageURL},
			{Type: openai.ChatMessagePartTypeText, Text: "second"},
		},
	}
	assert.Equal(t, "first second", messageText(msg))

	plain := openai.ChatCompletionMessage{Content: "plain"}
	assert.Equal(t, "plain", messageText(plain))
}
