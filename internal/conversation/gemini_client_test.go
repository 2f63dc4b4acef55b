package conversation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

type geminiRequestBody struct {
	Contents []struct {
		Role  string `json:"role"`
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"contents"`
	SystemInstruction struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"systemInstruction"`
}

func newGeminiTestClient(t *testing.T, handler http.HandlerFunc) *GeminiLLMClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewGeminiLLMClient(context.Background(), "test-key", "gemini-test", option.WithEndpoint(srv.URL))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestGeminiLLMClient_Complete(t *testing.T) {
	var (
		path string
		body geminiRequestBody
	)
	client := newGeminiTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"candidates": [{
				"content": {"role": "model", "parts": [{"text": " Ibuprofen is in stock. "}]},
				"finishReason": "STOP"
			}],
			"usageMetadata": {"promptTokenCount": 12, "candidatesTokenCount": 5, "totalTokenCount": 17}
		}`))
	})

	resp, err := client.Complete(context.Background(), LLMRequest{
		Model:  "anthropic.claude-ignored",
		System: []string{"You are a pharmacy assistant."},
		Messages: []ChatMessage{
			{Role: ChatRoleUser, Content: "Hi"},
			{Role: ChatRoleAssistant, Content: "Hello! How can I help?"},
			{Role: ChatRoleUser, Content: "Do you have ibuprofen?"},
		},
		MaxTokens:   100,
		Temperature: 0.2,
	})
	require.NoError(t, err)

	assert.Equal(t, "/v1beta/models/gemini-test:generateContent", path)
	require.Len(t, body.Contents, 3)
	assert.Equal(t, "user", body.Contents[0].Role)
	assert.Equal(t, "model", body.Contents[1].Role)
	assert.Equal(t, "Do you have ibuprofen?", body.Contents[2].Parts[0].Text)
	require.Len(t, body.SystemInstruction.Parts, 1)
	assert.Equal(t, "You are a pharmacy assistant.", body.SystemInstruction.Parts[0].Text)

	assert.Equal(t, "Ibuprofen is in stock.", resp.Text)
	assert.Equal(t, "FinishReasonStop", resp.StopReason)
	assert.Equal(t, TokenUsage{InputTokens: 12, OutputTokens: 5, TotalTokens: 17}, resp.Usage)
}

func TestGeminiLLMClient_EmptyCandidates(t *testing.T) {
	client := newGeminiTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates": []}`))
	})

	_, err := client.Complete(context.Background(), LLMRequest{
		Messages: []ChatMessage{{Role: ChatRoleUser, Content: "hello"}},
	})
	assert.Error(t, err)
}

func TestGeminiLLMClient_RequiresKeyAndMessage(t *testing.T) {
	_, err := NewGeminiLLMClient(context.Background(), " ", "")
	assert.Error(t, err)

	client := newGeminiTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	_, err = client.Complete(context.Background(), LLMRequest{System: []string{"only system"}})
	assert.Error(t, err)
}

func TestSplitForGemini(t *testing.T) {
	history, last, system := splitForGemini(LLMRequest{
		System: []string{"base"},
		Messages: []ChatMessage{
			{Role: ChatRoleSystem, Content: "extra"},
			{Role: ChatRoleUser, Content: "first"},
			{Role: ChatRoleAssistant, Content: "  "},
			{Role: ChatRoleAssistant, Content: "reply"},
			{Role: ChatRoleUser, Content: " latest "},
		},
	})
	assert.Equal(t, "base\n\nextra", system)
	assert.Equal(t, "latest", last)
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "model", history[1].Role)
}
