package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/option"
)

// GeminiConfig defines configuration options for the Gemini generator.
type GeminiConfig struct {
	APIKey    string
	Model     string
	MaxTokens int
	Logger    zerolog.Logger
}

// GeminiGenerator implements Generator against the Google Gemini API. Gemini
// accepts binary parts natively, so images are sent as blobs rather than
// base64 text.
type GeminiGenerator struct {
	client *genai.Client
	cfg    GeminiConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewGeminiGenerator builds a generator and establishes the API client.
func NewGeminiGenerator(ctx context.Context, cfg GeminiConfig) (*GeminiGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2048
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &GeminiGenerator{
		client: client,
		cfg:    cfg,
		tracer: otel.Tracer("github.com/feedforward/feedforward-api/pkg/ai/gemini"),
		logger: logger.With().Str("component", "gemini_generator").Logger(),
	}, nil
}

// Close releases the underlying API client.
func (g *GeminiGenerator) Close() error {
	return g.client.Close()
}

// GenerateCompletion sends the prompt and parts to Gemini and parses the
// response against the feedback contract.
func (g *GeminiGenerator) GenerateCompletion(parent context.Context, prompt string, parts []Part) (Completion, error) {
	ctx, span := g.tracer.Start(parent, "gemini.generate_completion", trace.WithAttributes(
		attribute.String("model", g.cfg.Model),
		attribute.Int("parts", len(parts)),
	))
	defer span.End()

	model := g.client.GenerativeModel(g.cfg.Model)
	maxTokens := int32(g.cfg.MaxTokens)
	temperature := float32(0)
	model.GenerationConfig = genai.GenerationConfig{
		Temperature:      &temperature,
		MaxOutputTokens:  &maxTokens,
		ResponseMIMEType: "application/json",
	}

	request := []genai.Part{genai.Text(prompt)}
	for _, part := range parts {
		switch {
		case part.Kind == PartImage && len(part.Data) > 0:
			request = append(request, genai.Blob{MIMEType: part.MIME, Data: part.Data})
		case part.Text != "":
			request = append(request, genai.Text(part.Text))
		}
	}

	start := time.Now()
	resp, err := model.GenerateContent(ctx, request...)
	aiDuration.WithLabelValues(g.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		aiFailures.WithLabelValues(g.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Completion{}, &ProviderError{Provider: "gemini", Err: err}
	}

	content := firstText(resp)
	if content == "" {
		err := fmt.Errorf("empty response")
		aiFailures.WithLabelValues(g.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Completion{}, &ProviderError{Provider: "gemini", Err: err}
	}

	completion, err := parseCompletion(content)
	if err != nil {
		aiFailures.WithLabelValues(g.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Completion{}, err
	}

	completion.ModelName = g.cfg.Model
	if resp.UsageMetadata != nil {
		completion.TokenCount = int(resp.UsageMetadata.TotalTokenCount)
		completion.Raw["usage"] = resp.UsageMetadata
	}

	g.logger.Debug().Int("total_tokens", completion.TokenCount).Msg("completion parsed")
	return completion, nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok && string(text) != "" {
				return string(text)
			}
		}
	}

	return ""
}
