package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"

	domain "github.com/bryanwahyu/sonifier/internal/domain/sonify"
	"github.com/bryanwahyu/sonifier/internal/infra/ai/prompt"
)

const (
	captionMaxTokens = 64
	moodMaxTokens    = 512
	maxImageBytes    = 20 << 20
)

// Client implements the caption and mood ports on top of any OpenAI-compatible
// vision chat endpoint (OpenAI, Ollama, vLLM).
type Client struct {
	*openai.Client
	CaptionModel string
	MoodModel    string
	Vocabulary   []string
}

// NewClient creates a client. An empty baseURL uses api.openai.com.
func NewClient(apiKey, baseURL, captionModel, moodModel string, vocabulary []string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if len(vocabulary) == 0 {
		vocabulary = domain.DefaultMoodTags
	}
	return &Client{
		Client:       openai.NewClientWithConfig(cfg),
		CaptionModel: captionModel,
		MoodModel:    moodModel,
		Vocabulary:   vocabulary,
	}
}

// Caption implements domain.Captioner.
func (c *Client) Caption(ctx context.Context, imagePath string) (string, error) {
	dataURL, err := imageDataURL(imagePath)
	if err != nil {
		return "", err
	}
	model := c.CaptionModel
	if model == "" {
		model = openai.GPT4oMini
	}

	req := openai.ChatCompletionRequest{
		Model:       model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.CaptionSystemPrompt},
			visionMessage(prompt.CaptionUserPrompt, dataURL),
		},
	}
	setMaxTokens(&req, captionMaxTokens)

	content, err := c.complete(ctx, req)
	if err != nil {
		return "", err
	}
	caption := prompt.CleanCaption(content)
	if caption == "" {
		return "", errors.New("empty caption")
	}
	return caption, nil
}

// Moods implements domain.MoodClassifier.
func (c *Client) Moods(ctx context.Context, imagePath string, topK int) (string, []domain.MoodScore, error) {
	dataURL, err := imageDataURL(imagePath)
	if err != nil {
		return "", nil, err
	}
	model := c.MoodModel
	if model == "" {
		model = openai.GPT4oMini
	}

	req := openai.ChatCompletionRequest{
		Model: model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.MoodSystemPrompt(c.Vocabulary)},
			visionMessage(prompt.MoodUserPrompt, dataURL),
		},
	}
	setMaxTokens(&req, moodMaxTokens)

	content, err := c.complete(ctx, req)
	if err != nil {
		return "", nil, err
	}
	raw, err := prompt.ParseMoodScores(content)
	if err != nil {
		return "", nil, err
	}
	scores := domain.RankMoods(prompt.Normalize(raw), c.Vocabulary, topK)
	if len(scores) == 0 {
		return "", nil, fmt.Errorf("no mood from vocabulary in response: %w", prompt.ErrNoScores)
	}
	return scores[0].Label, scores, nil
}

func (c *Client) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		if isQuotaError(err) {
			return "", fmt.Errorf("%w: %v", domain.ErrResourceExhausted, err)
		}
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func visionMessage(text, dataURL string) openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: text},
			{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
				URL:    dataURL,
				Detail: openai.ImageURLDetailLow,
			}},
		},
	}
}

// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
func setMaxTokens(req *openai.ChatCompletionRequest, n int) {
	m := req.Model
	if strings.HasPrefix(m, "o1") || strings.HasPrefix(m, "o3") || strings.HasPrefix(m, "o4") || strings.HasPrefix(m, "gpt-5") {
		req.MaxCompletionTokens = n
		req.Temperature = 0
	} else {
		req.MaxTokens = n
	}
}

func isQuotaError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return false
}

// imageDataURL inlines the image so the model server does not need to reach
// our storage.
func imageDataURL(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if len(data) > maxImageBytes {
		return "", fmt.Errorf("image %s is larger than %d bytes", path, maxImageBytes)
	}
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("%s is not an image (%s)", path, contentType)
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
