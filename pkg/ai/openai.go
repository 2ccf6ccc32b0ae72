package ai

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	aiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "feedforward",
		Subsystem: "ai",
		Name:      "completion_duration_seconds",
		Help:      "Duration of AI completion requests",
	}, []string{"model"})

	aiFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "feedforward",
		Subsystem: "ai",
		Name:      "completion_failures_total",
		Help:      "Number of AI completion failures",
	}, []string{"model"})
)

// OpenAIConfig defines configuration options for the OpenAI generator.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIGenerator implements Generator against the OpenAI chat completion API.
type OpenAIGenerator struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIGenerator builds a new generator using the provided configuration.
func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2048
	}

	tracer := otel.Tracer("github.com/feedforward/feedforward-api/pkg/ai/openai")
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	client := openai.NewClientWithConfig(config)

	return &OpenAIGenerator{
		client: client,
		cfg:    cfg,
		tracer: tracer,
		logger: logger.With().Str("component", "openai_generator").Logger(),
	}, nil
}

// GenerateCompletion sends the prompt and parts to OpenAI and parses the
// response against the feedback contract.
func (g *OpenAIGenerator) GenerateCompletion(parent context.Context, prompt string, parts []Part) (Completion, error) {
	ctx, span := g.tracer.Start(parent, "openai.generate_completion", trace.WithAttributes(
		attribute.String("model", g.cfg.Model),
		attribute.Int("parts", len(parts)),
	))
	defer span.End()

	request := openai.ChatCompletionRequest{
		Model:       g.cfg.Model,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
		Messages:    buildMessages(prompt, parts),
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, request)
	aiDuration.WithLabelValues(g.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		aiFailures.WithLabelValues(g.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Completion{}, &ProviderError{Provider: "openai", Err: err}
	}

	if len(resp.Choices) == 0 {
		err := fmt.Errorf("no choices returned")
		aiFailures.WithLabelValues(g.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Completion{}, &ProviderError{Provider: "openai", Err: err}
	}

	completion, err := parseCompletion(resp.Choices[0].Message.Content)
	if err != nil {
		aiFailures.WithLabelValues(g.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Completion{}, err
	}

	completion.ModelName = g.cfg.Model
	completion.TokenCount = resp.Usage.TotalTokens
	completion.Raw["usage"] = resp.Usage

	g.logger.Debug().Int("total_tokens", resp.Usage.TotalTokens).Msg("completion parsed")
	return completion, nil
}

// buildMessages assembles the chat payload. Images travel as base64 data URIs
// inside a multi-content user message; textual parts are appended to the prompt.
func buildMessages(prompt string, parts []Part) []openai.ChatCompletionMessage {
	systemMessage := openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleSystem,
		Content: "You are an expert AI Teaching Assistant. " +
			"You respond with a single valid JSON object and nothing else.",
	}

	var images []Part
	textBuilder := strings.Builder{}
	textBuilder.WriteString(prompt)

	for _, part := range parts {
		switch {
		case part.Kind == PartImage && len(part.Data) > 0:
			images = append(images, part)
		case part.Text != "":
			textBuilder.WriteString("\n\n")
			textBuilder.WriteString(part.Text)
		}
	}

	if len(images) == 0 {
		return []openai.ChatCompletionMessage{
			systemMessage,
			{Role: openai.ChatMessageRoleUser, Content: textBuilder.String()},
		}
	}

	multi := []openai.ChatMessagePart{
		{Type: openai.ChatMessagePartTypeText, Text: textBuilder.String()},
	}
	for _, img := range images {
		multi = append(multi, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL: DataURI(img.Data, img.MIME),
			},
		})
	}

	return []openai.ChatCompletionMessage{
		systemMessage,
		{Role: openai.ChatMessageRoleUser, MultiContent: multi},
	}
}

// DataURI encodes binary content as a base64 data URI.
func DataURI(data []byte, mimeType string) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}
