package provider

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"google.golang.org/genai"
)

const (
	geminiDefaultModel  = "gemini-1.5-flash"
	geminiMaxRetries    = 3
	geminiBaseDelay     = 1 * time.Second
	geminiMaxDelay      = 16 * time.Second
	geminiClientTimeout = 30 * time.Second
)

func init() {
	RegisterFactory("gemini", func(config map[string]any) (Provider, error) {
		apiKey := ""
		if key, ok := config["api_key"].(string); ok {
			apiKey = key
		}
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY not set")
		}
		name := "gemini"
		if n, ok := config["name"].(string); ok && n != "" {
			name = n
		}
		return NewGeminiProvider(name, apiKey)
	})
}

// GeminiProvider implements Provider on the Google Gen AI SDK. Several
// instances with distinct API keys can coexist in the rotation pool; the
// instance name distinguishes them for usage accounting.
type GeminiProvider struct {
	name   string
	client *genai.Client
}

// NewGeminiProvider creates a Gemini API provider with the given key.
func NewGeminiProvider(name, apiKey string) (*GeminiProvider, error) {
	ctx, cancel := context.WithTimeout(context.Background(), geminiClientTimeout)
	defer cancel()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiProvider{name: name, client: client}, nil
}

// Name returns the instance name used for usage accounting.
func (p *GeminiProvider) Name() string { return p.name }

// CreateCompletion generates a response, retrying transient failures with
// exponential backoff.
func (p *GeminiProvider) CreateCompletion(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = geminiDefaultModel
	}

	config := &genai.GenerateContentConfig{}
	config.Temperature = genai.Ptr(float32(req.Temperature))
	if req.MaxTokens > 0 && req.MaxTokens <= math.MaxInt32 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.JSONOnly {
		config.ResponseMIMEType = "application/json"
	}

	contents, system := buildGeminiContents(req.Messages)
	if system != nil {
		config.SystemInstruction = system
	}

	var resp *genai.GenerateContentResponse
	var err error
	for attempt := 0; attempt < geminiMaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoffDelay(attempt)):
			}
		}
		resp, err = p.client.Models.GenerateContent(ctx, model, contents, config)
		if err == nil {
			break
		}
		if !retryableGenAIError(err) {
			return nil, fmt.Errorf("gemini completion: %w", err)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("gemini completion after %d attempts: %w", geminiMaxRetries, err)
	}

	out := &CompletionResponse{Content: strings.TrimSpace(resp.Text()), FinishReason: "stop"}
	if len(resp.Candidates) > 0 {
		out.FinishReason = string(resp.Candidates[0].FinishReason)
	}
	if resp.UsageMetadata != nil {
		out.Usage = Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return out, nil
}

// buildGeminiContents maps chat messages to genai contents, splitting off the
// system instruction which the SDK configures separately.
func buildGeminiContents(messages []Message) ([]*genai.Content, *genai.Content) {
	var system *genai.Content
	var contents []*genai.Content
	for _, m := range messages {
		switch m.Role {
		case "system":
			system = genai.NewContentFromText(m.Content, genai.RoleUser)
		case "assistant":
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return contents, system
}

func backoffDelay(attempt int) time.Duration {
	d := geminiBaseDelay * time.Duration(1<<uint(attempt-1))
	if d > geminiMaxDelay {
		d = geminiMaxDelay
	}
	return d
}

func retryableGenAIError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "500") ||
		strings.Contains(msg, "503") ||
		strings.Contains(msg, "deadline exceeded") ||
		strings.Contains(msg, "connection reset")
}
