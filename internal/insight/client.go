package insight

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

const (
	httpTimeout = 10 * time.Second

	// DefaultBaseURL is the Gemini API root.
	DefaultBaseURL = "https://generativelanguage.googleapis.com/"
	// DefaultAPIVersion is the API version the client talks to.
	DefaultAPIVersion = "v1beta"
	// DefaultModel is the model used when none is configured.
	DefaultModel = "gemini-3-flash-preview"
)

var (
	// ErrNoCandidates is returned when the provider answered without any content.
	ErrNoCandidates = errors.New("gemini returned no candidates")
	// ErrMissingAPIKey is returned when no credential was configured.
	ErrMissingAPIKey = errors.New("gemini API key not configured")
)

// Generation is the text and citations of the first candidate.
type Generation struct {
	Text   string
	Chunks []*genai.GroundingChunk
}

// Client calls Gemini generateContent through the GenAI SDK.
type Client struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// NewClient constructs a Client against the production endpoint.
func NewClient(apiKey, model string) *Client {
	return NewClientWithURL(DefaultBaseURL, apiKey, model)
}

// NewClientWithURL constructs a Client pointing at a custom base URL (for tests).
func NewClientWithURL(baseURL, apiKey, model string) *Client {
	if model == "" {
		model = DefaultModel
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: httpTimeout},
	}
}

// Generate sends prompt with live web search enabled and the given response schema.
func (c *Client) Generate(ctx context.Context, prompt string, s *genai.Schema) (*Generation, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     c.apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: c.client,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    c.baseURL,
			APIVersion: DefaultAPIVersion,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	resp, err := gc.Models.GenerateContent(ctx, c.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Tools:            []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
		ResponseMIMEType: "application/json",
		ResponseSchema:   s,
	})
	if err != nil {
		return nil, fmt.Errorf("generateContent %s: %w", c.model, err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return nil, ErrNoCandidates
	}

	first := resp.Candidates[0]
	var text strings.Builder
	if first.Content != nil {
		for _, p := range first.Content.Parts {
			if p != nil {
				text.WriteString(p.Text)
			}
		}
	}

	gen := &Generation{Text: text.String()}
	if first.GroundingMetadata != nil {
		gen.Chunks = first.GroundingMetadata.GroundingChunks
	}
	return gen, nil
}
