package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/quickserve/dispatch-api/internal/config"
	"github.com/quickserve/dispatch-api/internal/domain"
	"github.com/quickserve/dispatch-api/internal/platform/logger"
	"github.com/quickserve/dispatch-api/internal/service"
	"google.golang.org/genai"
)

// ErrEmptyResponse is returned when the model answers with no text.
var ErrEmptyResponse = errors.New("gemini returned no content")

// contentGenerator is the part of genai.Models the analyzer calls.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Analyzer infers the service a photo calls for with a Gemini model.
type Analyzer struct {
	models  contentGenerator
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

var _ service.ImageAnalyzer = (*Analyzer)(nil)

// NewAnalyzer creates an Analyzer from cfg. An empty model falls back to
// config.DefaultAIModel.
func NewAnalyzer(ctx context.Context, cfg config.AIConfig, log *slog.Logger) (*Analyzer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return newAnalyzer(client.Models, cfg, log), nil
}

func newAnalyzer(models contentGenerator, cfg config.AIConfig, log *slog.Logger) *Analyzer {
	model := cfg.Model
	if model == "" {
		model = config.DefaultAIModel
	}
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = config.DefaultAITimeoutSeconds
	}
	if log == nil {
		log = slog.Default()
	}
	return &Analyzer{
		models:  models,
		model:   model,
		timeout: time.Duration(timeout) * time.Second,
		logger:  log.With(slog.String("component", "gemini_analyzer")),
	}
}

// answer is the JSON shape the prompt asks for.
type answer struct {
	Service     string `json:"service"`
	Description string `json:"description"`
}

// AnalyzeImage implements service.ImageAnalyzer.
func (a *Analyzer) AnalyzeImage(ctx context.Context, img service.Document, services []string) (*service.ImageSuggestion, error) {
	log := logger.FromContextOrDefault(ctx, a.logger)

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{Text: prompt(services)},
			{InlineData: &genai.Blob{MIMEType: img.ContentType, Data: img.Data}},
		},
	}}

	start := time.Now()
	resp, err := a.models.GenerateContent(ctx, a.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		log.Warn("gemini request failed",
			slog.String("model", a.model),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: gemini request failed: %w", domain.ErrUpstream, err)
	}

	text := responseText(resp)
	if text == "" {
		log.Warn("gemini returned no content", slog.String("model", a.model))
		return nil, fmt.Errorf("%w: %w", domain.ErrUpstream, ErrEmptyResponse)
	}

	var got answer
	if err := json.Unmarshal([]byte(stripFences(text)), &got); err != nil {
		log.Warn("gemini answer is not valid JSON", slog.Int("length", len(text)))
		return nil, fmt.Errorf("%w: decoding gemini answer: %v", domain.ErrUpstream, err)
	}

	log.Debug("image analyzed",
		slog.String("service", got.Service),
		slog.Duration("elapsed", time.Since(start)))
	return &service.ImageSuggestion{
		Service:     strings.TrimSpace(got.Service),
		Description: strings.TrimSpace(got.Description),
	}, nil
}

func prompt(services []string) string {
	var b strings.Builder
	b.WriteString("Identify the home service needed from the image.\n")
	if len(services) > 0 {
		b.WriteString("Choose ONE from:\n")
		b.WriteString(strings.Join(services, ", "))
		b.WriteString(".\n")
	}
	b.WriteString("\nReturn ONLY valid JSON:\n")
	b.WriteString(`{"service": "...", "description": "..."}`)
	return b.String()
}

// responseText joins the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(b.String())
}

// stripFences removes a markdown code fence around a JSON answer.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
