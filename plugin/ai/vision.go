package ai

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/hrygo/snapnote/internal/errors"
)

// VisionService runs one multimodal inference over an image and returns the raw model text.
type VisionService interface {
	// Extract sends the image with the interpretation instruction and schema.
	// It never retries.
	Extract(ctx context.Context, image []byte, mediaType string) (string, error)
}

// NewVisionService creates a VisionService for the configured provider.
// A missing credential is reported by Extract, so a misconfigured worker still fails per job.
func NewVisionService(cfg *VisionConfig) (VisionService, error) {
	var svc VisionService
	switch cfg.Provider {
	case "anthropic":
		svc = newAnthropicVision(cfg, http.DefaultClient)
	case "openai":
		svc = newOpenAIVision(cfg)
	default:
		return nil, fmt.Errorf("unsupported vision provider: %s", cfg.Provider)
	}

	if cfg.RequestsPerSecond > 0 {
		svc = WithRateLimit(svc, rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1))
	}
	return svc, nil
}

type rateLimitedVision struct {
	next    VisionService
	limiter *rate.Limiter
}

// WithRateLimit makes every Extract wait for the limiter first.
func WithRateLimit(next VisionService, limiter *rate.Limiter) VisionService {
	return &rateLimitedVision{next: next, limiter: limiter}
}

func (v *rateLimitedVision) Extract(ctx context.Context, image []byte, mediaType string) (string, error) {
	if err := v.limiter.Wait(ctx); err != nil {
		return "", errors.InferenceUnavailable("rate limiter wait aborted", err)
	}
	return v.next.Extract(ctx, image, mediaType)
}
