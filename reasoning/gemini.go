package reasoning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiConfig holds configuration for the Gemini client
type GeminiConfig struct {
	APIKey          string
	BaseURL         string
	Model           string
	Timeout         time.Duration
	Temperature     float32
	MaxOutputTokens int32
}

// GeminiClient generates turns and predictions through Google's Gemini API
type GeminiClient struct {
	client *genai.Client
	cfg    GeminiConfig
	logger *zap.SugaredLogger
}

// NewGeminiClient creates a new Gemini backed client
func NewGeminiClient(ctx context.Context, cfg GeminiConfig, logger *zap.SugaredLogger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("Gemini API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultGeminiModel
	}
	if cfg.MaxOutputTokens == 0 {
		cfg.MaxOutputTokens = 2048
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	if cfg.Timeout > 0 {
		cc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiClient{client: client, cfg: cfg, logger: logger}, nil
}

// Generate implements Generator
func (g *GeminiClient) Generate(ctx context.Context, req Request) (string, error) {
	temperature := g.cfg.Temperature
	config := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: g.cfg.MaxOutputTokens,
	}
	if strings.TrimSpace(req.SystemFraming) != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemFraming, genai.RoleUser)
	}
	return g.generate(ctx, RenderPrompt(req), config)
}

// GenerateStructured implements StructuredGenerator using Gemini's response schema
func (g *GeminiClient) GenerateStructured(ctx context.Context, prompt string, schema *Schema) (json.RawMessage, error) {
	if schema == nil {
		return nil, errors.New("schema is required")
	}
	temperature := float32(0.2)
	config := &genai.GenerateContentConfig{
		Temperature:      &temperature,
		MaxOutputTokens:  g.cfg.MaxOutputTokens,
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema.GenAI(),
	}
	out, err := g.generate(ctx, prompt, config)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(out), nil
}

func (g *GeminiClient) generate(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (string, error) {
	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.cfg.Model, genai.Text(prompt), config)
	g.logger.Debugw("gemini generate finished",
		"model", g.cfg.Model,
		"duration", time.Since(start),
		"error", err)
	if err != nil {
		return "", classifyGenAIError(ctx, err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// classifyGenAIError maps SDK errors onto the package sentinels
func classifyGenAIError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	code := 0
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr):
		code = apiErrPtr.Code
	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return classifyStatus(code, err)
}

func classifyStatus(code int, err error) error {
	switch {
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	case code >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	default:
		return fmt.Errorf("GenAI request failed: %w", err)
	}
}
