package ai

import (
	"net/http"
	"strings"
)

const defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

type openrouterConfig struct {
	APIKey      string `json:"api_key"`
	BaseURL     string `json:"base_url"`
	HTTPReferer string `json:"http_referer"`
	XTitle      string `json:"x_title"`
}

// OpenRouter is generation only; pair it with another embedder.
func createOpenRouterFactory(args interface{}) (IProvider, error) {
	cfg := &openrouterConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultOpenRouterBaseURL
	}
	headers := map[string]string{}
	if v := strings.TrimSpace(cfg.HTTPReferer); v != "" {
		headers["HTTP-Referer"] = v
	}
	if v := strings.TrimSpace(cfg.XTitle); v != "" {
		headers["X-Title"] = v
	}
	return &openAIProvider{
		name:     "openrouter",
		apiKey:   strings.TrimSpace(cfg.APIKey),
		baseURL:  baseURL,
		client:   http.DefaultClient,
		headers:  headers,
		sendTopK: true,
		noEmbed:  true,
	}, nil
}

func init() {
	Register("openrouter", createOpenRouterFactory)
}
