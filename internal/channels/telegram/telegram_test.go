package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/pharmacy-ai-platform/internal/conversation"
	"github.com/wolfman30/pharmacy-ai-platform/internal/customers"
	"github.com/wolfman30/pharmacy-ai-platform/internal/products"
	"github.com/wolfman30/pharmacy-ai-platform/pkg/logging"
)

type fakeSender struct {
	sent     []SendMessageRequest
	answered []string
	err      error
}

func (f *fakeSender) SendMessage(_ context.Context, req SendMessageRequest) error {
	f.sent = append(f.sent, req)
	return f.err
}

func (f *fakeSender) AnswerCallbackQuery(_ context.Context, id string) error {
	f.answered = append(f.answered, id)
	return nil
}

type fakeAgent struct {
	result   conversation.Result
	messages []string
	resets   []string
	customer string
	channel  string
}

func (f *fakeAgent) ProcessMessage(_ context.Context, customerID, message, channel string) conversation.Result {
	f.customer, f.channel = customerID, channel
	f.messages = append(f.messages, message)
	return f.result
}

func (f *fakeAgent) ResetContext(_ context.Context, customerID string) error {
	f.resets = append(f.resets, customerID)
	return nil
}

type fakeIdentities struct {
	got customers.Identity
	err error
}

func (f *fakeIdentities) ResolveChannelIdentity(_ context.Context, id customers.Identity) (*customers.Customer, error) {
	f.got = id
	if f.err != nil {
		return nil, f.err
	}
	return &customers.Customer{ID: customers.SyntheticID(id.Channel, id.ExternalID)}, nil
}

func newTestAdapter() (*Adapter, *fakeSender, *fakeAgent, *fakeIdentities) {
	sender := &fakeSender{}
	agent := &fakeAgent{result: conversation.Result{
		Response: "Ibuprofen 200mg is in stock.",
		Intent:   conversation.IntentProductSearch,
		Actions: []conversation.Action{{Type: conversation.ActionProductList, Data: []products.Product{
			{ID: "P1", Name: "Ibuprofen 200mg", Price: decimal.RequireFromString("8.99"), StockQuantity: 4},
		}}},
	}}
	ids := &fakeIdentities{}
	a := NewAdapter(sender, agent, ids, Config{WebhookSecret: "s3cret", PharmacyName: "Corner Pharmacy"}, nil, logging.Discard())
	return a, sender, agent, ids
}

func postUpdate(t *testing.T, a *Adapter, secret, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/telegram", strings.NewReader(body))
	if secret != "" {
		req.Header.Set(SecretHeader, secret)
	}
	rec := httptest.NewRecorder()
	a.HandleWebhook(rec, req)
	return rec
}

func TestHandleWebhook_RejectsBadSecret(t *testing.T) {
	a, sender, agent, _ := newTestAdapter()
	rec := postUpdate(t, a, "wrong", `{"update_id":1}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, sender.sent)
	assert.Empty(t, agent.messages)

	rec = postUpdate(t, a, "", `{"update_id":1}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleWebhook_RejectsMalformedBody(t *testing.T) {
	a, _, _, _ := newTestAdapter()
	rec := postUpdate(t, a, "s3cret", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleWebhook_MessageRoundTrip(t *testing.T) {
	a, sender, agent, ids := newTestAdapter()
	rec := postUpdate(t, a, "s3cret", `{"update_id":7,"message":{"message_id":1,"from":{"id":42,"first_name":"Ana","last_name":"Diaz"},"chat":{"id":4242,"type":"private"},"text":"I have a headache"}}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, customers.ChannelTelegram, ids.got.Channel)
	assert.Equal(t, "42", ids.got.ExternalID)
	assert.Equal(t, "Ana Diaz", ids.got.DisplayName)
	assert.Equal(t, "TG_42", agent.customer)
	assert.Equal(t, customers.ChannelTelegram, agent.channel)
	assert.Equal(t, []string{"I have a headache"}, agent.messages)

	require.Len(t, sender.sent, 1)
	out := sender.sent[0]
	assert.Equal(t, int64(4242), out.ChatID)
	assert.Equal(t, "Ibuprofen 200mg is in stock.", out.Text)
	require.NotNil(t, out.ReplyMarkup)
	require.Len(t, out.ReplyMarkup.InlineKeyboard, 1)
	assert.Equal(t, "Ibuprofen 200mg - $8.99", out.ReplyMarkup.InlineKeyboard[0][0].Text)
	assert.Equal(t, "Tell me more about Ibuprofen 200mg", out.ReplyMarkup.InlineKeyboard[0][0].CallbackData)
}

func TestHandleUpdate_CallbackQueryFeedsQueryBack(t *testing.T) {
	a, sender, agent, _ := newTestAdapter()
	a.HandleUpdate(context.Background(), Update{CallbackQuery: &CallbackQuery{
		ID:      "cb-1",
		From:    User{ID: 42, FirstName: "Ana"},
		Message: &Message{Chat: Chat{ID: 99}},
		Data:    "Tell me more about Ibuprofen 200mg",
	}})

	assert.Equal(t, []string{"cb-1"}, sender.answered)
	assert.Equal(t, []string{"Tell me more about Ibuprofen 200mg"}, agent.messages)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, int64(99), sender.sent[0].ChatID)
}

func TestHandleUpdate_StartGreetsWithoutAgent(t *testing.T) {
	a, sender, agent, _ := newTestAdapter()
	a.HandleUpdate(context.Background(), Update{Message: &Message{
		From: &User{ID: 42, FirstName: "Ana"},
		Chat: Chat{ID: 1},
		Text: "/start@CornerPharmacyBot",
	}})

	assert.Empty(t, agent.messages)
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Text, "Hi Ana! Welcome to Corner Pharmacy.")
	assert.Nil(t, sender.sent[0].ReplyMarkup)
}

func TestHandleUpdate_ResetClearsContext(t *testing.T) {
	a, sender, agent, _ := newTestAdapter()
	a.HandleUpdate(context.Background(), Update{Message: &Message{
		From: &User{ID: 42, FirstName: "Ana"},
		Chat: Chat{ID: 1},
		Text: "/reset",
	}})
	assert.Equal(t, []string{"TG_42"}, agent.resets)
	assert.Empty(t, agent.messages)
	assert.Len(t, sender.sent, 1)
}

func TestHandleUpdate_IgnoresBotsAndEmptyText(t *testing.T) {
	a, sender, agent, _ := newTestAdapter()
	a.HandleUpdate(context.Background(), Update{Message: &Message{From: &User{ID: 1, IsBot: true}, Text: "hi"}})
	a.HandleUpdate(context.Background(), Update{Message: &Message{From: &User{ID: 2}, Text: "   "}})
	a.HandleUpdate(context.Background(), Update{UpdateID: 3})
	assert.Empty(t, agent.messages)
	assert.Empty(t, sender.sent)
}

func TestHandleUpdate_IdentityFailureApologizes(t *testing.T) {
	a, sender, agent, ids := newTestAdapter()
	ids.err = errors.New("db down")
	a.HandleUpdate(context.Background(), Update{Message: &Message{From: &User{ID: 42}, Chat: Chat{ID: 1}, Text: "hello"}})
	assert.Empty(t, agent.messages)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, conversation.ApologyMessage, sender.sent[0].Text)
}

func TestKeyboardNilWithoutItems(t *testing.T) {
	assert.Nil(t, Keyboard(nil))
	assert.Nil(t, Keyboard([]conversation.Action{{Type: conversation.ActionError, Data: map[string]string{}}}))
}

func TestClient_SendMessage(t *testing.T) {
	var gotPath string
	var gotBody SendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		_, _ = w.Write([]byte(`{"ok":true,"result":{}}`))
	}))
	defer srv.Close()

	c := NewClient("TOKEN")
	c.SetAPIBase(srv.URL)
	err := c.SendMessage(context.Background(), SendMessageRequest{ChatID: 5, Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "/botTOKEN/sendMessage", gotPath)
	assert.Equal(t, int64(5), gotBody.ChatID)
}

func TestClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	c := NewClient("TOKEN")
	c.SetAPIBase(srv.URL)
	err := c.AnswerCallbackQuery(context.Background(), "cb")
	assert.ErrorContains(t, err, "chat not found")
}
