package redact

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	"metaredact/internal/config"
	"metaredact/internal/metadata"
)

// VertexClassifier asks a Gemini model on Vertex AI to redact the record.
type VertexClassifier struct {
	model      *genai.GenerativeModel
	baseClient *genai.Client
	marker     string
}

// NewVertexClassifier creates the client and configures the model for
// deterministic JSON output.
func NewVertexClassifier(ctx context.Context, cfg config.VertexConfig, marker string) (*VertexClassifier, error) {
	if cfg.ProjectID == "" || cfg.Region == "" {
		return nil, fmt.Errorf("NewVertexClassifier: projectID and region cannot be empty")
	}
	if marker == "" {
		marker = DefaultMarker
	}

	baseClient, err := genai.NewClient(ctx, cfg.ProjectID, cfg.Region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	model := baseClient.GenerativeModel(cfg.Model)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt)},
	}
	model.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.0),
	}

	return &VertexClassifier{model: model, baseClient: baseClient, marker: marker}, nil
}

func (c *VertexClassifier) Classify(ctx context.Context, fields metadata.Mapping) (map[string]any, error) {
	prompt, err := buildPrompt(c.marker, fields)
	if err != nil {
		return nil, err
	}

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("failed to generate redaction from gemini: %w", err)
	}
	return decodeResponse(responseText(resp))
}

func (c *VertexClassifier) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return b.String()
}
