package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/phrazzld/patentgate/internal/config"
	"github.com/phrazzld/patentgate/internal/resource"
	"google.golang.org/genai"
)

const captchaPrompt = "This image is a website captcha. Reply with only the characters shown " +
	"in the image, without spaces or explanation."

// answerPattern keeps the alphanumeric characters a captcha can contain.
var answerPattern = regexp.MustCompile(`[A-Za-z0-9]+`)

// contentGenerator is the subset of genai.Models used by the solver.
type contentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		cfg *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// CaptchaSolver asks a multimodal Gemini model to read a captcha.
type CaptchaSolver struct {
	models contentGenerator
	model  string
	logger *slog.Logger
}

var _ resource.Solver = (*CaptchaSolver)(nil)

// NewCaptchaSolver creates a solver from configuration.
func NewCaptchaSolver(ctx context.Context, cfg config.SolverConfig, logger *slog.Logger) (*CaptchaSolver, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", ErrInvalidConfig, err)
	}

	return newCaptchaSolver(client.Models, cfg.ModelName, logger), nil
}

func newCaptchaSolver(models contentGenerator, model string, logger *slog.Logger) *CaptchaSolver {
	return &CaptchaSolver{
		models: models,
		model:  model,
		logger: logger.With(slog.String("component", "gemini_solver")),
	}
}

// Suggest returns the model's reading of the captcha image.
func (s *CaptchaSolver) Suggest(ctx context.Context, image []byte, mimeType string) (string, error) {
	if len(image) == 0 {
		return "", ErrEmptyImage
	}
	if mimeType == "" {
		mimeType = "image/png"
	}

	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{Text: captchaPrompt},
			{InlineData: &genai.Blob{MIMEType: mimeType, Data: image}},
		},
	}}

	resp, err := s.models.GenerateContent(ctx, s.model, contents, &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
	})
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}

	answer := extractAnswer(resp)
	if answer == "" {
		return "", ErrNoSuggestion
	}
	s.logger.DebugContext(ctx, "captcha suggestion produced",
		slog.String("model", s.model),
		slog.Int("length", len(answer)))
	return answer, nil
}

// extractAnswer joins the text parts of the first candidate and keeps the
// first alphanumeric run.
func extractAnswer(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	return answerPattern.FindString(sb.String())
}
