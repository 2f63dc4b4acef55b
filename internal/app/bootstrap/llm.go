package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/wolfman30/pharmacy-ai-platform/internal/config"
	"github.com/wolfman30/pharmacy-ai-platform/internal/conversation"
	"github.com/wolfman30/pharmacy-ai-platform/pkg/logging"
)

const (
	ProviderBedrock = "bedrock"
	ProviderGemini  = "gemini"
)

// ErrNoLLMProvider is returned when neither Bedrock nor Gemini is configured.
var ErrNoLLMProvider = errors.New("bootstrap: no language model provider configured")

// AWSConfigLoader loads the shared AWS SDK configuration.
type AWSConfigLoader func(ctx context.Context, cfg *appconfig.Config) (aws.Config, error)

// LLMChain is the provider chain shared by the intent resolver and the
// response composer: the configured provider first, the other as fallback,
// each behind its own circuit breaker.
type LLMChain struct {
	Client   conversation.LLMClient
	Model    string
	Breakers map[string]*conversation.BreakerLLMClient
	closers  []func() error
}

// Close releases provider clients.
func (c *LLMChain) Close() error {
	var errs []error
	for _, fn := range c.closers {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BuildLLMChain wires the providers that have credentials.
func BuildLLMChain(ctx context.Context, cfg *appconfig.Config, loadAWS AWSConfigLoader, logger *logging.Logger) (*LLMChain, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	chain := &LLMChain{Breakers: make(map[string]*conversation.BreakerLLMClient)}
	providers := make(map[string]conversation.LLMClient)

	if model := strings.TrimSpace(cfg.BedrockModelID); model != "" && loadAWS != nil {
		awsCfg, err := loadAWS(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: load aws config: %w", err)
		}
		b := conversation.NewBreakerLLMClient(ProviderBedrock,
			conversation.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg), model))
		providers[ProviderBedrock] = b
		chain.Breakers[ProviderBedrock] = b
		chain.Model = model
	}

	if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		gemini, err := conversation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			logger.Warn("gemini client unavailable", "error", err)
		} else {
			b := conversation.NewBreakerLLMClient(ProviderGemini, gemini)
			providers[ProviderGemini] = b
			chain.Breakers[ProviderGemini] = b
			chain.closers = append(chain.closers, gemini.Close)
		}
	}

	primaryName, fallbackName := ProviderBedrock, ProviderGemini
	if cfg.LLMProvider == ProviderGemini {
		primaryName, fallbackName = ProviderGemini, ProviderBedrock
	}
	primary, fallback := providers[primaryName], providers[fallbackName]
	if primary == nil {
		primary, fallback, primaryName, fallbackName = fallback, nil, fallbackName, ""
	}
	if primary == nil {
		return nil, ErrNoLLMProvider
	}

	chain.Client = conversation.NewFallbackLLMClient(primary, fallback, logger)
	if fallback == nil {
		fallbackName = "none"
	}
	logger.Info("language model chain ready", "primary", primaryName, "fallback", fallbackName)
	return chain, nil
}
