package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/wolfman30/pharmacy-ai-platform/cmd/mainconfig"
	"github.com/wolfman30/pharmacy-ai-platform/internal/app/bootstrap"
	appconfig "github.com/wolfman30/pharmacy-ai-platform/internal/config"
	"github.com/wolfman30/pharmacy-ai-platform/internal/conversation"
	"github.com/wolfman30/pharmacy-ai-platform/pkg/logging"
)

var sampleMessages = []string{
	"Do you have ibuprofen 200mg in stock?",
	"I have a headache and a runny nose, what can I take?",
	"Are there any discounts for seniors this month?",
	"When can I refill my blood pressure prescription?",
	"What did I buy last time?",
	"Hi there!",
}

// llmtest runs the intent classifier and a plain completion against the
// configured provider chain. Pass messages as arguments to classify them
// instead of the built-in samples.
func main() {
	appconfig.LoadDotEnv()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	chain, err := bootstrap.BuildLLMChain(ctx, cfg, mainconfig.LoadAWSConfig, logger)
	if err != nil {
		log.Fatalf("build llm chain: %v", err)
	}
	defer func() { _ = chain.Close() }()

	messages := sampleMessages
	if len(os.Args) > 1 {
		messages = os.Args[1:]
	}

	fmt.Println("== completion ==")
	start := time.Now()
	resp, err := chain.Client.Complete(ctx, conversation.LLMRequest{
		Model:       chain.Model,
		System:      []string{"You are a friendly pharmacy assistant. Keep responses brief."},
		Messages:    []conversation.ChatMessage{{Role: conversation.ChatRoleUser, Content: "What are your opening hours?"}},
		MaxTokens:   int32(cfg.LLMMaxTokens),
		Temperature: float32(cfg.LLMTemperature),
	})
	if err != nil {
		fmt.Printf("error: %v\n", err)
	} else {
		fmt.Printf("(%v, %d tokens) %s\n", time.Since(start).Round(time.Millisecond), resp.Usage.TotalTokens, resp.Text)
	}

	fmt.Println("\n== classification ==")
	resolver := conversation.NewLLMIntentResolver(chain.Client, chain.Model, nil, logger)
	for _, msg := range messages {
		start := time.Now()
		result := resolver.Classify(ctx, msg, nil)
		out, _ := json.Marshal(result)
		fmt.Printf("%-55q %6v %s\n", msg, time.Since(start).Round(time.Millisecond), out)
	}

	for name, b := range chain.Breakers {
		fmt.Printf("breaker %s: %s\n", name, b.State())
	}
}
