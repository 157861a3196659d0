package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/meguminnnnnnnnn/go-openai"
)

// OpenAI is a Client backed by an OpenAI-compatible chat completion API.
// Setting a custom base URL points it at any compatible provider.
type OpenAI struct {
	client *openai.Client
}

// NewOpenAI creates a new OpenAI-compatible client.
func NewOpenAI(apiKey, baseURL string) *OpenAI {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAI{client: openai.NewClientWithConfig(config)}
}

// Complete renders the request template and returns the model's full answer.
func (o *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	prompt, err := req.Template.Render(req.Vars)
	if err != nil {
		return "", err
	}

	resp, err := o.client.CreateChatCompletion(ctx, chatRequest(req, prompt, false))
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return messageText(resp.Choices[0].Message), nil
}

// CompleteStream renders the request template and streams the model's answer
// as text deltas.
func (o *OpenAI) CompleteStream(ctx context.Context, req Request) (<-chan string, error) {
	prompt, err := req.Template.Render(req.Vars)
	if err != nil {
		return nil, err
	}

	stream, err := o.client.CreateChatCompletionStream(ctx, chatRequest(req, prompt, true))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion stream: %w", err)
	}

	deltas := make(chan string)
	go func() {
		defer close(deltas)
		defer stream.Close()
		for {
			resp, err := stream.Recv()
			if err != nil {
				// io.EOF is the normal end of stream; any other error just
				// ends the stream early and the partial output stands.
				return
			}
			for _, choice := range resp.Choices {
				if choice.Delta.Content == "" {
					continue
				}
				select {
				case deltas <- choice.Delta.Content:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return deltas, nil
}

// chatRequest builds the wire request for a rendered prompt. Temperature is a
// pointer field in the API; zero means "leave it to the provider".
func chatRequest(req Request, prompt string, stream bool) openai.ChatCompletionRequest {
	out := openai.ChatCompletionRequest{
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
		Stream:    stream,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if req.Temperature != 0 {
		out.Temperature = &req.Temperature
	}
	return out
}

// messageText flattens a chat message to plain text, concatenating
// multi-part content when a provider returns it.
func messageText(msg openai.ChatCompletionMessage) string {
	if msg.Content != "" {
		return msg.Content
	}
	var sb strings.Builder
	for _, part := range msg.MultiContent {
		if part.Type == openai.ChatMessagePartTypeText {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

var _ Client = (*OpenAI)(nil)
