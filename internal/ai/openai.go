package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/david/govmatch/internal/logger"
)

const webResultTool = "report_web_result"

const searchSystemPrompt = "You find open government contracting and grant opportunities for small businesses. " +
	"Report every concrete solicitation you find with the " + webResultTool + " tool. " +
	"Only report listings that are currently accepting responses. Never invent dates, amounts or links."

// OpenAICapability answers prompts with the OpenAI chat completions API.
type OpenAICapability struct {
	client *openai.Client
	config Config
	log    *logger.Logger
}

func NewOpenAICapability(cfg Config, log *logger.Logger) (*OpenAICapability, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2000
	}
	if log == nil {
		log = logger.Nop()
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return &OpenAICapability{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
		log:    log,
	}, nil
}

func (p *OpenAICapability) Invoke(ctx context.Context, prompt string, toolsEnabled bool) (*CapabilityResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.timeout())
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: p.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: searchSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   p.config.MaxTokens,
		Temperature: 0.2,
	}
	if toolsEnabled {
		req.Tools = []openai.Tool{webResultToolDef()}
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}

	result := &CapabilityResult{}
	for _, choice := range resp.Choices {
		msg := choice.Message
		if text := strings.TrimSpace(msg.Content); text != "" {
			result.TextBlocks = append(result.TextBlocks, text)
		}
		for _, call := range msg.ToolCalls {
			if call.Function.Name != webResultTool {
				continue
			}
			item, ok := parseWebItem(call.Function.Arguments)
			if !ok {
				p.log.Debug("Ignoring malformed tool call", "tool", call.Function.Name, "id", call.ID)
				continue
			}
			result.StructuredItems = append(result.StructuredItems, item)
		}
	}
	return result, nil
}

// parseWebItem never fails loudly: models occasionally emit truncated arguments.
func parseWebItem(args string) (WebItem, bool) {
	var item WebItem
	if err := json.Unmarshal([]byte(args), &item); err != nil {
		return WebItem{}, false
	}
	item.Title = strings.TrimSpace(item.Title)
	item.URL = strings.TrimSpace(item.URL)
	if item.Title == "" {
		return WebItem{}, false
	}
	return item, true
}

func webResultToolDef() openai.Tool {
	str := func(desc string) jsonschema.Definition {
		return jsonschema.Definition{Type: jsonschema.String, Description: desc}
	}
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        webResultTool,
			Description: "Report one government contracting or grant opportunity found on the web.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"title":           str("Title of the solicitation as published"),
					"url":             str("Link to the listing"),
					"snippet":         str("One or two sentences describing the work"),
					"due_date":        str("Response deadline, YYYY-MM-DD, only if published"),
					"estimated_value": str("Estimated value exactly as published"),
					"agency":          str("Issuing agency"),
				},
				Required: []string{"title", "url"},
			},
		},
	}
}
