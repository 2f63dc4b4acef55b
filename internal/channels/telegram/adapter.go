package telegram

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/pharmacy-ai-platform/internal/channels"
	"github.com/wolfman30/pharmacy-ai-platform/internal/conversation"
	"github.com/wolfman30/pharmacy-ai-platform/internal/customers"
	"github.com/wolfman30/pharmacy-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/pharmacy-ai-platform/pkg/logging"
)

// SecretHeader carries the secret_token registered with setWebhook.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// Sender delivers bot messages. *Client satisfies it.
type Sender interface {
	SendMessage(ctx context.Context, req SendMessageRequest) error
	AnswerCallbackQuery(ctx context.Context, id string) error
}

// Config configures the adapter.
type Config struct {
	WebhookSecret string
	PharmacyName  string
}

// Adapter turns Telegram updates into agent turns and sends the replies back
// with the reply actions rendered as inline keyboard buttons.
type Adapter struct {
	sender     Sender
	agent      channels.Agent
	identities channels.IdentityResolver
	cfg        Config
	metrics    *metrics.ChannelMetrics
	logger     *logging.Logger
}

// NewAdapter wires the Telegram channel. metrics may be nil.
func NewAdapter(sender Sender, agent channels.Agent, identities channels.IdentityResolver, cfg Config, m *metrics.ChannelMetrics, logger *logging.Logger) *Adapter {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.PharmacyName == "" {
		cfg.PharmacyName = "our pharmacy"
	}
	return &Adapter{
		sender:     sender,
		agent:      agent,
		identities: identities,
		cfg:        cfg,
		metrics:    m,
		logger:     logger.WithComponent("telegram"),
	}
}

// HandleWebhook handles POST /webhooks/telegram.
func (a *Adapter) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		a.metrics.ObserveWebhookLatency(customers.ChannelTelegram, time.Since(start).Seconds())
	}()

	if !a.authorized(r) {
		a.metrics.ObserveInbound(customers.ChannelTelegram, "unauthorized")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var upd Update
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&upd); err != nil {
		a.metrics.ObserveInbound(customers.ChannelTelegram, "invalid")
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	// Telegram redelivers on non-2xx; later failures are answered in-chat.
	w.WriteHeader(http.StatusOK)
	a.HandleUpdate(r.Context(), upd)
}

func (a *Adapter) authorized(r *http.Request) bool {
	if a.cfg.WebhookSecret == "" {
		return false
	}
	got := r.Header.Get(SecretHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(a.cfg.WebhookSecret)) == 1
}

// HandleUpdate processes a single update.
func (a *Adapter) HandleUpdate(ctx context.Context, upd Update) {
	var (
		from   *User
		chatID int64
		text   string
	)
	switch {
	case upd.CallbackQuery != nil:
		cq := upd.CallbackQuery
		if err := a.sender.AnswerCallbackQuery(ctx, cq.ID); err != nil {
			a.logger.Warn("answer callback failed", "callback_id", cq.ID, "error", err)
		}
		from, text, chatID = &cq.From, cq.Data, cq.From.ID
		if cq.Message != nil {
			chatID = cq.Message.Chat.ID
		}
	case upd.Message != nil:
		from, text, chatID = upd.Message.From, upd.Message.Text, upd.Message.Chat.ID
	}

	text = strings.TrimSpace(text)
	if from == nil || from.IsBot || text == "" {
		a.metrics.ObserveInbound(customers.ChannelTelegram, "ignored")
		return
	}
	a.metrics.ObserveInbound(customers.ChannelTelegram, "accepted")

	switch command(text) {
	case "/start", "/help":
		a.send(ctx, SendMessageRequest{ChatID: chatID, Text: a.greeting(from)})
		return
	}

	customer, err := a.identities.ResolveChannelIdentity(ctx, customers.Identity{
		Channel:     customers.ChannelTelegram,
		ExternalID:  strconv.FormatInt(from.ID, 10),
		DisplayName: from.DisplayName(),
	})
	if err != nil {
		a.logger.Error("customer resolution failed", "telegram_user_id", from.ID, "error", err)
		a.send(ctx, SendMessageRequest{ChatID: chatID, Text: conversation.ApologyMessage})
		return
	}

	if command(text) == "/reset" {
		if err := a.agent.ResetContext(ctx, customer.ID); err != nil {
			a.logger.Error("context reset failed", "customer_id", customer.ID, "error", err)
		}
		a.send(ctx, SendMessageRequest{ChatID: chatID, Text: "Okay, let's start over. How can I help?"})
		return
	}

	res := a.agent.ProcessMessage(ctx, customer.ID, text, customers.ChannelTelegram)
	a.send(ctx, SendMessageRequest{
		ChatID:      chatID,
		Text:        channels.Truncate(res.Response, maxMessageLength),
		ReplyMarkup: Keyboard(res.Actions),
	})
}

func (a *Adapter) greeting(from *User) string {
	name := strings.TrimSpace(from.FirstName)
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf("Hi %s! Welcome to %s. I can help you find products for your symptoms, refill prescriptions, check on orders and find promotions you qualify for. What can I do for you today?", name, a.cfg.PharmacyName)
}

func (a *Adapter) send(ctx context.Context, req SendMessageRequest) {
	if err := a.sender.SendMessage(ctx, req); err != nil {
		a.metrics.ObserveOutbound(customers.ChannelTelegram, "error")
		a.logger.Error("telegram send failed", "chat_id", req.ChatID, "error", err)
		return
	}
	a.metrics.ObserveOutbound(customers.ChannelTelegram, "sent")
}

// command returns the bot command in text, without any @botname suffix.
func command(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	cmd, _, _ := strings.Cut(text, " ")
	cmd, _, _ = strings.Cut(cmd, "@")
	return strings.ToLower(cmd)
}

// Keyboard renders reply actions as one button per row. Pressing a button
// sends its query back as the next message.
func Keyboard(actions []conversation.Action) *InlineKeyboardMarkup {
	items := channels.Items(actions)
	if len(items) == 0 {
		return nil
	}
	rows := make([][]InlineKeyboardButton, 0, len(items))
	for _, item := range items {
		rows = append(rows, []InlineKeyboardButton{{
			Text:         item.Label,
			CallbackData: channels.Truncate(item.Query, maxCallbackDataLen),
		}})
	}
	return &InlineKeyboardMarkup{InlineKeyboard: rows}
}
