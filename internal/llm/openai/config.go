package openai

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
)

// Config for the OpenAI-backed field analyzer.
type Config struct {
	APIKey           string        // if empty, falls back to env OPENAI_API_KEY
	BaseURL          string        // default https://api.openai.com/v1
	Model            string        // must accept image input, e.g. "gpt-4o"
	Temperature      float32       // 0..2
	MaxTokens        int           // completion cap
	Timeout          time.Duration // per request
	HTMLExcerptChars int           // markup sent alongside the screenshot
	StructuredOutput bool          // ask for json_schema output instead of free text
}

// chatCompleter is the slice of the go-openai client we use.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error)
}

type Client struct {
	cfg    Config
	api    chatCompleter
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	cfg = withDefaults(cfg)
	oc := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return newClient(cfg, goopenai.NewClientWithConfig(oc), logger)
}

func newClient(cfg Config, api chatCompleter, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: withDefaults(cfg), api: api, logger: logger}
}

func withDefaults(cfg Config) Config {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Model == "" {
		cfg.Model = goopenai.GPT4o
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.HTMLExcerptChars <= 0 {
		cfg.HTMLExcerptChars = 5000
	}
	return cfg
}
