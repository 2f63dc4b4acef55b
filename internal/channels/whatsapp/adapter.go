package whatsapp

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/wolfman30/pharmacy-ai-platform/internal/channels"
	"github.com/wolfman30/pharmacy-ai-platform/internal/conversation"
	"github.com/wolfman30/pharmacy-ai-platform/internal/customers"
	"github.com/wolfman30/pharmacy-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/pharmacy-ai-platform/pkg/logging"
)

// Twilio caps a WhatsApp body at 1600 characters.
const maxBodyLength = 1600

const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// Config configures the adapter. WebhookURL is the public URL Twilio posts
// to; it is part of the signed payload.
type Config struct {
	AuthToken  string
	WebhookURL string
}

// Adapter turns Twilio WhatsApp webhooks into agent turns and replies through
// the Messages API with reply actions rendered as a numbered list.
type Adapter struct {
	sender     Sender
	agent      channels.Agent
	identities channels.IdentityResolver
	cfg        Config
	metrics    *metrics.ChannelMetrics
	logger     *logging.Logger

	mu      sync.Mutex
	options map[string][]channels.Item // last numbered list sent to each number
}

// NewAdapter wires the WhatsApp channel. metrics may be nil.
func NewAdapter(sender Sender, agent channels.Agent, identities channels.IdentityResolver, cfg Config, m *metrics.ChannelMetrics, logger *logging.Logger) *Adapter {
	if logger == nil {
		logger = logging.Default()
	}
	return &Adapter{
		sender:     sender,
		agent:      agent,
		identities: identities,
		cfg:        cfg,
		metrics:    m,
		logger:     logger.WithComponent("whatsapp"),
		options:    make(map[string][]channels.Item),
	}
}

// InboundMessage is the part of a Twilio webhook the adapter reads.
type InboundMessage struct {
	MessageSID  string
	From        string
	ProfileName string
	Body        string
}

// HandleWebhook handles POST /webhooks/whatsapp.
func (a *Adapter) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		a.metrics.ObserveWebhookLatency(customers.ChannelWhatsApp, time.Since(start).Seconds())
	}()

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := r.ParseForm(); err != nil {
		a.metrics.ObserveInbound(customers.ChannelWhatsApp, "invalid")
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if !ValidateSignature(r, a.cfg.AuthToken, a.cfg.WebhookURL) {
		a.metrics.ObserveInbound(customers.ChannelWhatsApp, "unauthorized")
		a.logger.Warn("invalid twilio signature", "remote_ip", r.RemoteAddr)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	msg := InboundMessage{
		MessageSID:  r.PostFormValue("MessageSid"),
		From:        Number(r.PostFormValue("From")),
		ProfileName: r.PostFormValue("ProfileName"),
		Body:        r.PostFormValue("Body"),
	}

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(emptyTwiML))

	a.HandleMessage(r.Context(), msg)
}

// HandleMessage processes a single inbound message.
func (a *Adapter) HandleMessage(ctx context.Context, msg InboundMessage) {
	text := strings.TrimSpace(msg.Body)
	if msg.From == "" || text == "" {
		a.metrics.ObserveInbound(customers.ChannelWhatsApp, "ignored")
		return
	}
	a.metrics.ObserveInbound(customers.ChannelWhatsApp, "accepted")

	customer, err := a.identities.ResolveChannelIdentity(ctx, customers.Identity{
		Channel:     customers.ChannelWhatsApp,
		ExternalID:  msg.From,
		DisplayName: msg.ProfileName,
		Phone:       msg.From,
	})
	if err != nil {
		a.logger.Error("customer resolution failed", "message_sid", msg.MessageSID, "error", err)
		a.send(ctx, msg.From, conversation.ApologyMessage)
		return
	}

	if strings.EqualFold(text, "reset") {
		if err := a.agent.ResetContext(ctx, customer.ID); err != nil {
			a.logger.Error("context reset failed", "customer_id", customer.ID, "error", err)
		}
		a.send(ctx, msg.From, "Okay, let's start over. How can I help?")
		return
	}

	text = a.resolveSelection(msg.From, text)
	res := a.agent.ProcessMessage(ctx, customer.ID, text, customers.ChannelWhatsApp)
	a.rememberOptions(msg.From, channels.Items(res.Actions))
	a.send(ctx, msg.From, FormatReply(res))
}

// resolveSelection replaces a bare list number with the query of the option
// it refers to.
func (a *Adapter) resolveSelection(from, text string) string {
	n, err := strconv.Atoi(text)
	if err != nil {
		return text
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	opts := a.options[from]
	if n < 1 || n > len(opts) {
		return text
	}
	return opts[n-1].Query
}

func (a *Adapter) rememberOptions(from string, items []channels.Item) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(items) == 0 {
		delete(a.options, from)
		return
	}
	a.options[from] = items
}

func (a *Adapter) send(ctx context.Context, to, body string) {
	sid, err := a.sender.Send(ctx, to, body)
	if err != nil {
		a.metrics.ObserveOutbound(customers.ChannelWhatsApp, "error")
		a.logger.Error("whatsapp send failed", "error", err)
		return
	}
	a.metrics.ObserveOutbound(customers.ChannelWhatsApp, "sent")
	a.logger.Debug("whatsapp reply sent", "message_sid", sid)
}

// FormatReply appends reply actions to the text as a numbered list and keeps
// the body within Twilio's length limit. Replying with a number picks that option.
func FormatReply(res conversation.Result) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(res.Response))
	if items := channels.Items(res.Actions); len(items) > 0 {
		b.WriteString("\n")
		for i, item := range items {
			fmt.Fprintf(&b, "\n%d. %s", i+1, item.Label)
		}
	}
	return channels.Truncate(b.String(), maxBodyLength)
}
