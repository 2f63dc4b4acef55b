package conversation

import (
	"context"
	"strings"

	"github.com/wolfman30/pharmacy-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/pharmacy-ai-platform/pkg/logging"
)

// ApologyMessage is returned to the customer whenever a reply cannot be generated.
const ApologyMessage = "I apologize, but I'm having trouble processing your request right now. Please try again or contact our pharmacy directly."

// Agent runs one conversation turn: load context, classify, compose, persist.
type Agent struct {
	store      *ContextStore
	classifier Classifier
	composer   *Composer
	metrics    *metrics.ConversationMetrics
	logger     *logging.Logger
}

// NewAgent wires the conversation pipeline. metrics may be nil.
func NewAgent(store *ContextStore, classifier Classifier, composer *Composer, m *metrics.ConversationMetrics, logger *logging.Logger) *Agent {
	if logger == nil {
		logger = logging.Default()
	}
	return &Agent{store: store, classifier: classifier, composer: composer, metrics: m, logger: logger}
}

// ProcessMessage answers a message from an already-resolved customer. It never
// returns an error: reply failures become ApologyMessage with Error set, and
// in that case neither the context nor the analytics log is written.
func (a *Agent) ProcessMessage(ctx context.Context, customerID, message, channel string) Result {
	message = strings.TrimSpace(message)
	state := a.store.GetContext(ctx, customerID)
	cls := a.classifier.Classify(ctx, message, state.Turns)

	reply, err := a.composer.Compose(ctx, customerID, message, cls, state.Turns)
	if err != nil {
		a.logger.Error("reply generation failed", "customer_id", customerID, "channel", channel, "intent", cls.Intent, "error", err)
		a.metrics.ObserveTurn(cls.Intent, channel, "apology")
		return Result{
			Response:   ApologyMessage,
			Intent:     cls.Intent,
			Confidence: cls.Confidence,
			Actions:    []Action{},
			Error:      err.Error(),
		}
	}

	// The reply is already decided; persistence problems are logged, not surfaced.
	if _, err := a.store.AppendTurn(ctx, customerID, message, reply.Text, cls.Intent); err != nil {
		a.logger.Error("context save failed", "customer_id", customerID, "error", err)
	}
	if err := a.store.LogTurn(ctx, customerID, message, reply.Text, cls.Intent, channel); err != nil {
		a.logger.Error("conversation log failed", "customer_id", customerID, "error", err)
	}

	a.metrics.ObserveTurn(cls.Intent, channel, "ok")
	a.logger.Info("message processed",
		"customer_id", customerID,
		"channel", channel,
		"intent", cls.Intent,
		"confidence", cls.Confidence,
		"actions", len(reply.Actions),
		"output_tokens", reply.Usage.OutputTokens,
	)
	return Result{
		Response:   reply.Text,
		Intent:     cls.Intent,
		Confidence: cls.Confidence,
		Actions:    reply.Actions,
		Usage:      reply.Usage,
	}
}

// Context returns the stored context for a customer.
func (a *Agent) Context(ctx context.Context, customerID string) *Context {
	return a.store.GetContext(ctx, customerID)
}

// ResetContext drops the cached context for a customer.
func (a *Agent) ResetContext(ctx context.Context, customerID string) error {
	return a.store.Invalidate(ctx, customerID)
}
