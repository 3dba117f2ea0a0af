package invoker

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"bedrockbot/internal/domain"
)

const (
	imageModelID      = "stability.stable-image-ultra-v1:1"
	imageMode         = "text-to-image"
	imageAspectRatio  = "16:9"
	imageOutputFormat = "png"

	imageFilenameLayout = "2006-01-02T15:04:05"
	imageComment        = "Generated image from Stable Image Ultra"
)

// StableImageUltra invokes the image model and uploads the decoded result
// with a timestamp-derived filename.
type StableImageUltra struct {
	backend domain.ModelBackend
	logger  *slog.Logger
	now     func() time.Time // replaced in tests
}

func NewStableImageUltra(backend domain.ModelBackend, logger *slog.Logger) *StableImageUltra {
	return &StableImageUltra{backend: backend, logger: logger, now: time.Now}
}

func (s *StableImageUltra) Model() domain.ModelID { return domain.ModelStableImageUltra }

type imageRequest struct {
	Prompt       string `json:"prompt"`
	Mode         string `json:"mode"`
	AspectRatio  string `json:"aspect_ratio"`
	OutputFormat string `json:"output_format"`
}

type imageResponse struct {
	Images []string `json:"images"`
}

func (s *StableImageUltra) Invoke(ctx context.Context, channelID, inputText string, sink domain.Notifier) error {
	if err := s.invoke(ctx, channelID, inputText, sink); err != nil {
		reportFailure(ctx, sink, s.logger, s.Model(), channelID, err)
		return err
	}
	return nil
}

func (s *StableImageUltra) invoke(ctx context.Context, channelID, inputText string, sink domain.Notifier) error {
	if err := validateArgs(channelID, inputText); err != nil {
		return err
	}

	generatedAt := s.now()

	body, err := json.Marshal(imageRequest{
		Prompt:       inputText,
		Mode:         imageMode,
		AspectRatio:  imageAspectRatio,
		OutputFormat: imageOutputFormat,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	raw, err := s.backend.InvokeModel(ctx, imageModelID, body)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBackendInvocation, err)
	}

	var resp imageResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return fmt.Errorf("%w: decode response: %v", domain.ErrBackendInvocation, err)
	}
	if len(resp.Images) == 0 {
		return fmt.Errorf("%w: response has no images", domain.ErrBackendInvocation)
	}

	imageData, err := base64.StdEncoding.DecodeString(resp.Images[0])
	if err != nil {
		return fmt.Errorf("%w: decode image: %v", domain.ErrBackendInvocation, err)
	}

	filename := generatedAt.Format(imageFilenameLayout) + "." + imageOutputFormat
	title := "Input text: " + inputText
	return sink.PostFile(ctx, channelID, imageData, filename, title, imageComment)
}
