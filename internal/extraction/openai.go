package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
	"github.com/rs/zerolog"

	"horse.fit/outage-watch/internal/posts"
)

const defaultModel = "gpt-4o-mini"

// Extractor turns one post into raw structured JSON for Decode.
type Extractor interface {
	Extract(ctx context.Context, post posts.Post) (json.RawMessage, error)
}

type OpenAIOptions struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxImages int
}

type OpenAIExtractor struct {
	client    openai.Client
	model     string
	maxImages int
	logger    zerolog.Logger
}

func NewOpenAIExtractor(opts OpenAIOptions, logger zerolog.Logger) *OpenAIExtractor {
	requestOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
	if baseURL := strings.TrimSpace(opts.BaseURL); baseURL != "" {
		requestOpts = append(requestOpts, option.WithBaseURL(baseURL))
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}
	maxImages := opts.MaxImages
	if maxImages < 0 {
		maxImages = 0
	}

	return &OpenAIExtractor{
		client:    openai.NewClient(requestOpts...),
		model:     model,
		maxImages: maxImages,
		logger:    logger,
	}
}

func (e *OpenAIExtractor) Extract(ctx context.Context, post posts.Post) (json.RawMessage, error) {
	if e == nil {
		return nil, fmt.Errorf("extractor is not initialized")
	}

	text := strings.TrimSpace(post.Text)
	images := post.ImageLinks
	if len(images) > e.maxImages {
		images = images[:e.maxImages]
	}
	if text == "" && len(images) == 0 {
		return json.RawMessage(`{"is_power_interruption_related":false}`), nil
	}

	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(images)+1)
	parts = append(parts, openai.TextContentPart(buildUserPrompt(text, DetectLanguage(text))))
	for _, link := range images {
		parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: link,
		}))
	}

	response, err := e.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(e.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(parts),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
		Temperature: openai.Float(0),
		MaxTokens:   openai.Int(2000),
	})
	if err != nil {
		return nil, fmt.Errorf("openai request failed: %w", err)
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("no response from openai")
	}

	content := stripCodeFence(response.Choices[0].Message.Content)
	if content == "" {
		return nil, fmt.Errorf("empty response from openai")
	}

	e.logger.Debug().
		Str("model", e.model).
		Int("images", len(images)).
		Int("response_bytes", len(content)).
		Msg("extraction completed")

	return json.RawMessage(content), nil
}

const systemPrompt = `You extract scheduled power interruption announcements from electric cooperative Facebook posts.
Posts may mix English and Tagalog; translate every value to English.
The input is the post text and any attached images (notices are often only in the images).
Respond with one JSON object and nothing else, using these keys:
  is_power_interruption_related (boolean),
  is_update (boolean, true when the post revises an earlier schedule),
  reason (string),
  date (string, YYYY-MM-DD),
  start_time (string, HHMMH 24-hour, e.g. 0800H),
  end_time (string, HHMMH 24-hour),
  affected_line (string),
  affected_areas (array of {"name": string, "barangays": [string]}),
  affected_customers (array of string),
  specific_activities (array of string),
  notices (array with at most one {"control_no": string, "date_issued": "YYYY-MM-DD",
    "personnel": [{"name": string, "position": string}],
    "affected_customers": [string], "specific_activities": [string]}, or null).
If the post is not about a scheduled power interruption respond with {"is_power_interruption_related": false}.`

func buildUserPrompt(text, language string) string {
	var sb strings.Builder
	if language != "" {
		sb.WriteString("Detected post language: ")
		sb.WriteString(language)
		sb.WriteString("\n\n")
	}
	if text == "" {
		sb.WriteString("The post has no text; read the attached images.")
		return sb.String()
	}
	sb.WriteString("Post text:\n")
	sb.WriteString(text)
	return sb.String()
}

func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}
