package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goopenai "github.com/sashabaranov/go-openai"

	"github.com/joseph-ayodele/directory-submitter/internal/common"
	"github.com/joseph-ayodele/directory-submitter/internal/entity"
	"github.com/joseph-ayodele/directory-submitter/internal/llm"
)

// Analyze implements llm.FieldAnalyzer with a single vision chat completion.
// There is no retry; any failure fails the directory attempt.
func (c *Client) Analyze(ctx context.Context, req llm.AnalyzeRequest) (entity.FieldMapping, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	excerpt := llm.ExcerptHTML(req.HTML, c.cfg.HTMLExcerptChars)
	c.logger.Info("llm.analyze.start",
		"req_id", rid,
		"job_id", common.JobIDFromContext(ctx),
		"directory", req.DirectoryName,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"screenshot_bytes", len(req.Screenshot),
		"html_len", len(req.HTML),
		"excerpt_len", len(excerpt),
		"structured", c.cfg.StructuredOutput,
	)

	ccReq := goopenai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
		Messages: []goopenai.ChatCompletionMessage{
			{
				Role: goopenai.ChatMessageRoleUser,
				MultiContent: []goopenai.ChatMessagePart{
					{
						Type: goopenai.ChatMessagePartTypeText,
						Text: llm.BuildAnalyzePrompt(req.DirectoryName, excerpt),
					},
					{
						Type: goopenai.ChatMessagePartTypeImageURL,
						ImageURL: &goopenai.ChatMessageImageURL{
							URL:    llm.ImageDataURL(req.Screenshot),
							Detail: goopenai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
	}
	if c.cfg.StructuredOutput {
		schema, err := json.Marshal(llm.BuildSelectorsSchema())
		if err != nil {
			return nil, nil, fmt.Errorf("marshal schema: %w", err)
		}
		ccReq.ResponseFormat = &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &goopenai.ChatCompletionResponseFormatJSONSchema{
				Name:   "field_selectors",
				Schema: json.RawMessage(schema),
				Strict: false,
			},
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, ccReq)
	if err != nil {
		c.logger.Error("llm.analyze.api_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, nil, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		c.logger.Error("llm.analyze.no_choices",
			"req_id", rid,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, nil, fmt.Errorf("no choices in openai response: %w", common.ErrAnalysisFailed)
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return nil, nil, fmt.Errorf("empty openai response: %w", common.ErrAnalysisFailed)
	}

	mapping, raw, err := llm.ParseSelectors(content, c.logger)
	if err != nil {
		c.logger.Error("llm.analyze.parse_failed",
			"req_id", rid, "error", err, "content", content,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, raw, err
	}

	c.logger.Info("llm.analyze.ok",
		"req_id", rid,
		"directory", req.DirectoryName,
		"fields", mapping.Len(),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return mapping, raw, nil
}
