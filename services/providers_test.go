package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compforge/config"
)

func testTurns() []Turn {
	return []Turn{
		{Role: RoleSystem, Content: "You generate components."},
		{Role: RoleUser, Content: "build a button"},
		{Role: RoleAssistant, Content: "done"},
		{Role: RoleUser, Content: "make it red"},
	}
}

func chatCompletionBody(content string, tokens int) string {
	return fmt.Sprintf(`{"choices":[{"index":0,"message":{"role":"assistant","content":%q},"finish_reason":"stop"}],"usage":{"prompt_tokens":1,"completion_tokens":2,"total_tokens":%d}}`, content, tokens)
}

func TestDispatcherRoutesGPTToOpenAI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		assert.Len(t, req.Messages, 4)
		assert.Equal(t, float64(1), req.TopP)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, chatCompletionBody("here you go", 42))
	}))
	defer server.Close()

	d := NewDispatcher(&config.Config{OpenAIAPIKey: "sk-test", OpenAIBaseURL: server.URL})

	result, err := d.Call(context.Background(), testTurns(), CompletionSettings{
		Model: "gpt-4o-mini", Temperature: 0.7, MaxTokens: 2000,
	})
	require.NoError(t, err)
	assert.Equal(t, "here you go", result.Text)
	assert.Equal(t, 42, result.TokensUsed)
}

func TestDispatcherFlattensTurnsForGemini(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key-test", r.URL.Query().Get("key"))

		var req geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		require.Len(t, req.Contents[0].Parts, 1)

		prompt := req.Contents[0].Parts[0].Text
		assert.Equal(t,
			"User: You generate components.\nUser: build a button\nAssistant: done\nUser: make it red",
			prompt)
		assert.Equal(t, 0.7, req.GenerationConfig.Temperature)
		assert.Equal(t, 2000, req.GenerationConfig.MaxOutputTokens)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"gemini says hi"}]}}]}`)
	}))
	defer server.Close()

	d := NewDispatcher(&config.Config{GeminiAPIKey: "key-test", GeminiBaseURL: server.URL})

	result, err := d.Call(context.Background(), testTurns(), CompletionSettings{
		Model: "gemini-2.0-flash", Temperature: 0.7, MaxTokens: 2000,
	})
	require.NoError(t, err)
	assert.Equal(t, "gemini says hi", result.Text)
	// This provider path reports no usage.
	assert.Equal(t, 0, result.TokensUsed)
}

func TestDispatcherFallsBackToOpenRouter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "http://localhost:3000", r.Header.Get("HTTP-Referer"))
		assert.NotEmpty(t, r.Header.Get("X-Title"))

		var req chatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "anthropic/claude-3-sonnet", req.Model)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, chatCompletionBody("routed", 7))
	}))
	defer server.Close()

	d := NewDispatcher(&config.Config{
		OpenRouterAPIKey:  "or-test",
		OpenRouterBaseURL: server.URL,
		FrontendURL:       "http://localhost:3000",
	})

	result, err := d.Call(context.Background(), testTurns(), CompletionSettings{
		Model: "anthropic/claude-3-sonnet", Temperature: 0.5, MaxTokens: 1000,
	})
	require.NoError(t, err)
	assert.Equal(t, "routed", result.Text)
	assert.Equal(t, 7, result.TokensUsed)
}

func TestDispatcherGPTWithoutOpenAIUsesAggregator(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, chatCompletionBody("aggregated", 3))
	}))
	defer server.Close()

	d := NewDispatcher(&config.Config{OpenRouterAPIKey: "or-test", OpenRouterBaseURL: server.URL})

	assert.Equal(t, ProviderOpenRouter, d.Resolve("gpt-4o-mini"))

	result, err := d.Call(context.Background(), testTurns(), CompletionSettings{Model: "gpt-4o-mini"})
	require.NoError(t, err)
	assert.Equal(t, "aggregated", result.Text)
}

func TestDispatcherNoProviderAvailable(t *testing.T) {
	d := NewDispatcher(&config.Config{})

	assert.Equal(t, ProviderNone, d.Resolve("gpt-4o-mini"))

	_, err := d.Call(context.Background(), testTurns(), CompletionSettings{Model: "gpt-4o-mini"})
	assert.ErrorIs(t, err, ErrNoProvider)
}

func TestDispatcherWrapsProviderFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, `{"error":{"message":"upstream exploded"}}`)
	}))
	defer server.Close()

	d := NewDispatcher(&config.Config{OpenAIAPIKey: "sk-test", OpenAIBaseURL: server.URL})

	_, err := d.Call(context.Background(), testTurns(), CompletionSettings{Model: "gpt-4"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderCall)
	assert.Contains(t, err.Error(), "status 502")
}

func TestDispatcherRejectsEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[],"usage":{"total_tokens":0}}`)
	}))
	defer server.Close()

	d := NewDispatcher(&config.Config{OpenAIAPIKey: "sk-test", OpenAIBaseURL: server.URL})

	_, err := d.Call(context.Background(), testTurns(), CompletionSettings{Model: "gpt-4"})
	assert.ErrorIs(t, err, ErrProviderCall)
}

func TestResolveOrder(t *testing.T) {
	d := NewDispatcher(&config.Config{
		GeminiAPIKey:     "g",
		OpenAIAPIKey:     "o",
		OpenRouterAPIKey: "r",
	})

	assert.Equal(t, ProviderGemini, d.Resolve("gemini-2.0-flash"))
	assert.Equal(t, ProviderOpenAI, d.Resolve("gpt-4"))
	assert.Equal(t, ProviderOpenRouter, d.Resolve("meta-llama/llama-3-8b-instruct"))
}
