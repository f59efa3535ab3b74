package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"compforge/config"
)

// ProviderKind identifies which backend serves a model id. The id-pattern to
// kind mapping is fixed at dispatcher construction, not re-matched per call.
type ProviderKind int

const (
	ProviderNone ProviderKind = iota
	ProviderGemini
	ProviderOpenAI
	ProviderOpenRouter
)

func (k ProviderKind) String() string {
	switch k {
	case ProviderGemini:
		return "gemini"
	case ProviderOpenAI:
		return "openai"
	case ProviderOpenRouter:
		return "openrouter"
	default:
		return "none"
	}
}

type CompletionSettings struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// CompletionResult is the normalized outcome of any provider call.
// TokensUsed is 0 when the provider does not report usage.
type CompletionResult struct {
	Text       string
	TokensUsed int
}

type ModelInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Provider string `json:"provider"`
}

const (
	jsonContentType = "application/json"
	geminiPrefix    = "gemini"
	openAIPrefix    = "gpt-"
)

// providerRoute maps a model-id prefix to a provider kind. Routes are
// evaluated in order; first match wins.
type providerRoute struct {
	prefix string
	kind   ProviderKind
}

// Dispatcher routes completion requests to whichever backend serves the
// requested model and normalizes the differing response shapes.
type Dispatcher struct {
	routes     []providerRoute
	fallback   ProviderKind
	openai     *chatCompletionClient
	openrouter *chatCompletionClient
	gemini     *geminiClient
}

// NewDispatcher builds clients for every configured provider and resolves
// the routing table once. Unconfigured providers simply have no route.
func NewDispatcher(cfg *config.Config) *Dispatcher {
	d := &Dispatcher{fallback: ProviderNone}

	if cfg.GeminiAPIKey != "" {
		d.gemini = newGeminiClient(cfg.GeminiBaseURL, cfg.GeminiAPIKey)
		d.routes = append(d.routes, providerRoute{prefix: geminiPrefix, kind: ProviderGemini})
	}
	if cfg.OpenAIAPIKey != "" {
		d.openai = newChatCompletionClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, nil)
		d.routes = append(d.routes, providerRoute{prefix: openAIPrefix, kind: ProviderOpenAI})
	}
	if cfg.OpenRouterAPIKey != "" {
		d.openrouter = newChatCompletionClient(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, map[string]string{
			"HTTP-Referer": cfg.FrontendURL,
			"X-Title":      "Component Generator Platform",
		})
		d.fallback = ProviderOpenRouter
	}

	return d
}

// Resolve maps a model id to the provider kind that will serve it.
func (d *Dispatcher) Resolve(model string) ProviderKind {
	for _, r := range d.routes {
		if strings.HasPrefix(model, r.prefix) {
			return r.kind
		}
	}
	return d.fallback
}

// Call sends the turns to the resolved provider. Any transport or provider
// error comes back as a single ErrProviderCall with the cause preserved;
// there are no retries at this layer.
func (d *Dispatcher) Call(ctx context.Context, turns []Turn, settings CompletionSettings) (*CompletionResult, error) {
	switch d.Resolve(settings.Model) {
	case ProviderGemini:
		return d.gemini.complete(ctx, turns, settings)
	case ProviderOpenAI:
		return d.openai.complete(ctx, turns, settings)
	case ProviderOpenRouter:
		return d.openrouter.complete(ctx, turns, settings)
	default:
		return nil, ErrNoProvider
	}
}

// AvailableModels lists the model ids reachable through the configured
// providers.
func (d *Dispatcher) AvailableModels() []ModelInfo {
	models := []ModelInfo{}
	if d.gemini != nil {
		models = append(models,
			ModelInfo{ID: "gemini-2.0-flash", Name: "Gemini 2.0 Flash", Provider: "gemini"},
		)
	}
	if d.openai != nil {
		models = append(models,
			ModelInfo{ID: "gpt-4o-mini", Name: "GPT-4o Mini", Provider: "openai"},
			ModelInfo{ID: "gpt-4", Name: "GPT-4", Provider: "openai"},
			ModelInfo{ID: "gpt-3.5-turbo", Name: "GPT-3.5 Turbo", Provider: "openai"},
		)
	}
	if d.openrouter != nil {
		models = append(models,
			ModelInfo{ID: "anthropic/claude-3-sonnet", Name: "Claude 3 Sonnet", Provider: "openrouter"},
			ModelInfo{ID: "meta-llama/llama-3-8b-instruct", Name: "Llama 3 8B", Provider: "openrouter"},
			ModelInfo{ID: "google/gemini-2.0-flash-exp", Name: "Gemini 2.0 Flash", Provider: "openrouter"},
		)
	}
	return models
}

// chatCompletionClient speaks the OpenAI-compatible chat completion wire
// format, used natively by both the primary provider and the aggregator.
type chatCompletionClient struct {
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	extraHeaders map[string]string
}

func newChatCompletionClient(baseURL, apiKey string, extraHeaders map[string]string) *chatCompletionClient {
	return &chatCompletionClient{
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		apiKey:       apiKey,
		extraHeaders: extraHeaders,
	}
}

type chatCompletionRequest struct {
	Model            string  `json:"model"`
	Messages         []Turn  `json:"messages"`
	Temperature      float64 `json:"temperature"`
	MaxTokens        int     `json:"max_tokens"`
	TopP             float64 `json:"top_p"`
	FrequencyPenalty float64 `json:"frequency_penalty"`
	PresencePenalty  float64 `json:"presence_penalty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (c *chatCompletionClient) complete(ctx context.Context, turns []Turn, settings CompletionSettings) (*CompletionResult, error) {
	body := chatCompletionRequest{
		Model:       settings.Model,
		Messages:    turns,
		Temperature: settings.Temperature,
		MaxTokens:   settings.MaxTokens,
		TopP:        1,
	}

	var resp chatCompletionResponse
	if err := c.postJSON(ctx, c.baseURL+"/chat/completions", body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderCall, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: response contained no choices", ErrProviderCall)
	}

	return &CompletionResult{
		Text:       resp.Choices[0].Message.Content,
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}

func (c *chatCompletionClient) postJSON(ctx context.Context, url string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", jsonContentType)
	req.Header.Set("Accept", jsonContentType)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	for k, v := range c.extraHeaders {
		req.Header.Set(k, v)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(raw)))
	}
	return json.Unmarshal(raw, out)
}

// geminiClient speaks the single-prompt generateContent format. It has no
// native multi-turn structure, so the conversation is flattened into one
// "Role: content" transcript. The response carries no OpenAI-shaped usage
// block, so token usage reads as 0 for this path (known limitation).
type geminiClient struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
}

func newGeminiClient(endpoint, apiKey string) *geminiClient {
	return &geminiClient{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		endpoint:   endpoint,
		apiKey:     apiKey,
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// flattenTurns joins all turns into one newline-separated transcript with
// "User:"/"Assistant:" labels; system turns count as user input.
func flattenTurns(turns []Turn) string {
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		label := "User"
		if t.Role == RoleAssistant {
			label = "Assistant"
		}
		lines = append(lines, label+": "+t.Content)
	}
	return strings.Join(lines, "\n")
}

func (c *geminiClient) complete(ctx context.Context, turns []Turn, settings CompletionSettings) (*CompletionResult, error) {
	maxTokens := settings.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2048
	}
	body := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: flattenTurns(turns)}}}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     settings.Temperature,
			MaxOutputTokens: maxTokens,
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderCall, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"?key="+c.apiKey, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderCall, err)
	}
	req.Header.Set("Content-Type", jsonContentType)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderCall, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderCall, err)
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrProviderCall, res.StatusCode, strings.TrimSpace(string(raw)))
	}

	var resp geminiResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderCall, err)
	}

	text := ""
	if len(resp.Candidates) > 0 && len(resp.Candidates[0].Content.Parts) > 0 {
		text = resp.Candidates[0].Content.Parts[0].Text
	}
	return &CompletionResult{Text: text, TokensUsed: resp.Usage.TotalTokens}, nil
}
