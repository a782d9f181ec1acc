package mentor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAI sends the persona as the system message and the query as the user
// message. The key is attached per request, so one client serves every
// screen session.
type OpenAI struct {
	client     openai.Client
	model      string
	generation GenerationConfig
}

func NewOpenAI(httpClient *http.Client, baseURL, model string) *OpenAI {
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(baseURL, "/")+"/"))
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAI{
		client:     openai.NewClient(opts...),
		model:      model,
		generation: DefaultGeneration,
	}
}

func (o *OpenAI) Complete(ctx context.Context, r Request, key string) (string, error) {
	if key == "" {
		return "", errors.New("openai: api key missing")
	}

	var msgs []openai.ChatCompletionMessageParamUnion
	if r.Persona != "" {
		msgs = append(msgs, openai.SystemMessage(r.Persona))
	}
	msgs = append(msgs, openai.UserMessage(r.Query))

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages:            msgs,
		Model:               openai.ChatModel(o.model),
		Temperature:         openai.Float(o.generation.Temperature),
		TopP:                openai.Float(o.generation.TopP),
		MaxCompletionTokens: openai.Int(int64(o.generation.MaxOutputTokens)),
	}, option.WithAPIKey(key))
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("empty message content")
	}
	return content, nil
}
