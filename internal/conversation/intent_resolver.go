package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/wolfman30/pharmacy-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/pharmacy-ai-platform/pkg/logging"
)

const (
	classifierHistoryTurns = 3
	classifierMaxTokens    = 300
)

// Classifier maps a customer message to an intent. Implementations never
// fail; they degrade to FallbackClassification.
type Classifier interface {
	Classify(ctx context.Context, message string, history []Turn) ClassificationResult
}

// LLMIntentResolver classifies with a single language model call.
type LLMIntentResolver struct {
	client  LLMClient
	model   string
	metrics *metrics.ConversationMetrics
	logger  *logging.Logger
}

// NewLLMIntentResolver creates a resolver. model may be empty to use the client default.
func NewLLMIntentResolver(client LLMClient, model string, m *metrics.ConversationMetrics, logger *logging.Logger) *LLMIntentResolver {
	if logger == nil {
		logger = logging.Default()
	}
	return &LLMIntentResolver{client: client, model: model, metrics: m, logger: logger}
}

func (r *LLMIntentResolver) Classify(ctx context.Context, message string, history []Turn) ClassificationResult {
	if strings.TrimSpace(message) == "" {
		r.metrics.ObserveClassifierFallback("empty_message")
		return FallbackClassification()
	}

	start := time.Now()
	resp, err := r.client.Complete(ctx, LLMRequest{
		Model:       r.model,
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: buildIntentPrompt(message, lastTurns(history, classifierHistoryTurns))}},
		MaxTokens:   classifierMaxTokens,
		Temperature: 0,
	})
	r.metrics.ObserveLLMLatency("classify", err == nil, time.Since(start).Seconds())
	if err != nil {
		r.logger.Warn("intent classification failed", "error", err)
		r.metrics.ObserveClassifierFallback("llm_error")
		return FallbackClassification()
	}

	result, err := parseClassification(resp.Text)
	if err != nil {
		r.logger.Warn("intent classification unparseable", "error", err)
		r.metrics.ObserveClassifierFallback("parse_error")
		return FallbackClassification()
	}
	return result
}

var errNoJSON = errors.New("conversation: no JSON object in classifier output")

// parseClassification extracts the JSON object from model output and normalizes
// it: unknown intents fall back wholesale, confidence is clamped to [0,1] and
// unknown sentiment/urgency become neutral/low.
func parseClassification(text string) (ClassificationResult, error) {
	content := strings.TrimSpace(text)
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return ClassificationResult{}, errNoJSON
	}

	var raw struct {
		Intent     string   `json:"intent"`
		Confidence *float64 `json:"confidence"`
		Entities   struct {
			Products   stringList `json:"products"`
			Symptoms   stringList `json:"symptoms"`
			Categories stringList `json:"categories"`
		} `json:"entities"`
		Sentiment string `json:"sentiment"`
		Urgency   string `json:"urgency"`
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return ClassificationResult{}, err
	}

	intent := strings.ToLower(strings.TrimSpace(raw.Intent))
	if !IsKnownIntent(intent) {
		return ClassificationResult{}, errors.New("conversation: unknown intent " + raw.Intent)
	}

	out := ClassificationResult{
		Intent:     intent,
		Confidence: 0.5,
		Entities: Entities{
			Products:   raw.Entities.Products,
			Symptoms:   raw.Entities.Symptoms,
			Categories: raw.Entities.Categories,
		}.normalized(),
		Sentiment:  SentimentNeutral,
		Urgency:    UrgencyLow,
	}
	if raw.Confidence != nil {
		out.Confidence = clamp01(*raw.Confidence)
	}
	switch s := strings.ToLower(strings.TrimSpace(raw.Sentiment)); s {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		out.Sentiment = s
	}
	switch u := strings.ToLower(strings.TrimSpace(raw.Urgency)); u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh:
		out.Urgency = u
	}
	return out, nil
}

// stringList accepts either a JSON list of strings or a bare string. Any other
// shape decodes to an empty list.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var many []string
	if err := json.Unmarshal(data, &many); err == nil {
		*l = many
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*l = stringList{one}
		return nil
	}
	*l = nil
	return nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
