package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	openai "github.com/sashabaranov/go-openai"

	"github.com/salonware/booking-assistant/internal/conversation"
)

// Manual smoke test for the configured LLM providers. Run it against a
// real .env before pointing the conversation worker at production keys.
func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	req := conversation.LLMRequest{
		System: []string{
			"Eres la recepcionista virtual de un salón de peluquería. Responde breve y amable.",
		},
		Messages: []conversation.ChatMessage{
			{Role: conversation.ChatRoleUser, Content: "Hola, ¿hacéis balayage?"},
			{Role: conversation.ChatRoleAssistant, Content: "¡Hola! Sí, hacemos balayage. ¿Quieres que busquemos un hueco?"},
			{Role: conversation.ChatRoleUser, Content: "Sí, ¿qué tenéis el viernes por la tarde?"},
		},
		MaxTokens:   200,
		Temperature: 0.7,
	}

	divider := strings.Repeat("=", 60)
	fmt.Println(divider)
	fmt.Println("LLM Provider Test")
	fmt.Println(divider)

	if apiKey := os.Getenv("OPENROUTER_API_KEY"); apiKey == "" {
		fmt.Println("\n[1] Skipping OpenRouter test (OPENROUTER_API_KEY not set)")
	} else {
		fmt.Println("\n[1] Testing OpenRouter...")
		clientCfg := openai.DefaultConfig(apiKey)
		clientCfg.BaseURL = "https://openrouter.ai/api/v1"
		if base := os.Getenv("OPENROUTER_BASE_URL"); base != "" {
			clientCfg.BaseURL = base
		}
		client := conversation.NewOpenRouterClient(
			openai.NewClientWithConfig(clientCfg), os.Getenv("LLM_MODEL"), nil, nil)
		complete(ctx, "OpenRouter", client, req)
	}

	if geminiKey := os.Getenv("GEMINI_API_KEY"); geminiKey == "" {
		fmt.Println("\n[2] Skipping Gemini test (GEMINI_API_KEY not set)")
	} else {
		fmt.Println("\n[2] Testing Gemini...")
		client, err := conversation.NewGeminiClient(ctx, geminiKey, os.Getenv("GEMINI_MODEL"))
		if err != nil {
			fmt.Printf("    ❌ Failed to create Gemini client: %v\n", err)
		} else {
			complete(ctx, "Gemini", client, req)
			client.Close()
		}
	}

	fmt.Println("\n" + divider)
	fmt.Println("If both providers responded, the fallback chain is healthy:")
	fmt.Println("OpenRouter answers first and Gemini picks up the full history")
	fmt.Println("whenever OpenRouter fails or its breaker is open.")
}

func complete(ctx context.Context, name string, client conversation.LLMClient, req conversation.LLMRequest) {
	start := time.Now()
	resp, err := client.Complete(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		fmt.Printf("    ❌ %s error: %v\n", name, err)
		return
	}
	fmt.Printf("    ✅ %s response (%v):\n", name, elapsed.Round(time.Millisecond))
	fmt.Printf("    %s\n", resp.Text)
	fmt.Printf("    Tokens: in=%d, out=%d\n", resp.Usage.InputTokens, resp.Usage.OutputTokens)
}
