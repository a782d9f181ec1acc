package mentor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"
)

const (
	DefaultGeminiEndpoint = "https://generativelanguage.googleapis.com/"
	DefaultGeminiModel    = "gemini-2.0-flash"
)

type GenerationConfig struct {
	Temperature     float64
	TopK            int
	TopP            float64
	MaxOutputTokens int
}

// DefaultGeneration keeps answers short and moderately varied.
var DefaultGeneration = GenerationConfig{
	Temperature:     0.7,
	TopK:            40,
	TopP:            0.95,
	MaxOutputTokens: 1024,
}

var DefaultSafety = []*genai.SafetySetting{
	{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
	{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
	{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
	{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
}

// StatusError is a non-2xx reply from a backend.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Code, e.Body)
}

// Gemini calls generateContent with the persona and the query concatenated
// into one text part. One SDK client is kept for the current key.
type Gemini struct {
	HTTPClient *http.Client
	Endpoint   string
	Model      string
	Generation GenerationConfig
	Safety     []*genai.SafetySetting

	mu     sync.Mutex
	key    string
	client *genai.Client
}

func NewGemini(client *http.Client, endpoint, model string) *Gemini {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if endpoint == "" {
		endpoint = DefaultGeminiEndpoint
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	return &Gemini{
		HTTPClient: client,
		Endpoint:   strings.TrimRight(endpoint, "/") + "/",
		Model:      model,
		Generation: DefaultGeneration,
		Safety:     DefaultSafety,
	}
}

func (g *Gemini) clientFor(ctx context.Context, key string) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client != nil && g.key == key {
		return g.client, nil
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      key,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  g.HTTPClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: g.Endpoint},
	})
	if err != nil {
		return nil, err
	}
	g.key, g.client = key, c
	return c, nil
}

func (g *Gemini) config() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(g.Generation.Temperature)),
		TopK:            genai.Ptr(float32(g.Generation.TopK)),
		TopP:            genai.Ptr(float32(g.Generation.TopP)),
		MaxOutputTokens: int32(g.Generation.MaxOutputTokens),
		SafetySettings:  g.Safety,
	}
}

func (g *Gemini) Complete(ctx context.Context, r Request, key string) (string, error) {
	if key == "" {
		return "", errors.New("gemini: api key missing")
	}

	client, err := g.clientFor(ctx, key)
	if err != nil {
		return "", fmt.Errorf("gemini: client: %w", err)
	}

	resp, err := client.Models.GenerateContent(ctx, g.Model, genai.Text(r.Prompt()), g.config())
	if err != nil {
		return "", fmt.Errorf("gemini: %w", classify(err))
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		finish := "none"
		if len(resp.Candidates) > 0 {
			finish = string(resp.Candidates[0].FinishReason)
		}
		return "", fmt.Errorf("gemini: empty candidate (finish=%s)", finish)
	}
	return text, nil
}

// classify turns the SDK's API error into a StatusError and leaves
// transport errors as they are.
func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &StatusError{Code: apiErr.Code, Body: apiErr.Message}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return &StatusError{Code: apiErrPtr.Code, Body: apiErrPtr.Message}
	}
	return err
}
