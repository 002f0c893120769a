// Package aisdk holds the wire types shared by the completion client, the
// stream parser and the conversation engine.
package aisdk

import (
	"time"

	jsonschema "github.com/swaggest/jsonschema-go"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single message sent to the completion endpoint.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	// Name is optional and only forwarded when set.
	Name string `json:"name,omitempty"`
	// Metadata for message tracking, never sent upstream.
	CreatedAt time.Time `json:"-"`
}

// Image is an image fragment attached to an assistant message. URL is either
// a remote reference or a data URL.
type Image struct {
	Type string `json:"type"`
	URL  string `json:"url"`
	Alt  string `json:"alt,omitempty"`
}

// ImageTypeURL is the only image type the engine produces.
const ImageTypeURL = "image_url"

// Delta is an incremental fragment of an in-progress assistant message.
// Every field is appended to the target message, never replaced.
type Delta struct {
	Content   string  `json:"content,omitempty"`
	Reasoning string  `json:"reasoning,omitempty"`
	Images    []Image `json:"images,omitempty"`
}

// IsEmpty reports whether the delta carries nothing to apply.
func (d Delta) IsEmpty() bool {
	return d.Content == "" && d.Reasoning == "" && len(d.Images) == 0
}

// TransformMiddleOut asks the provider to drop the middle of an over-long
// prompt instead of rejecting it.
const TransformMiddleOut = "middle-out"

// ChatCompletionRequest represents a request to the chat completions endpoint.
type ChatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []*Message      `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	MaxTokens      *int            `json:"max_tokens,omitempty"`
	TopP           *float64        `json:"top_p,omitempty"`
	Stream         bool            `json:"stream,omitempty"`
	Stop           []string        `json:"stop,omitempty"`
	Transforms     []string        `json:"transforms,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
	User           string          `json:"user,omitempty"`
}

// ResponseFormat specifies the format of the response.
type ResponseFormat struct {
	Type       string      `json:"type"` // "text", "json_object" or "json_schema"
	JSONSchema *JSONSchema `json:"json_schema,omitempty"`
}

// JSONSchema is the payload of a "json_schema" response format.
type JSONSchema struct {
	Name   string             `json:"name"`
	Strict bool               `json:"strict,omitempty"`
	Schema *jsonschema.Schema `json:"schema"`
}

// ChatCompletionResponse represents a response from the chat completions endpoint.
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// FirstContent returns the content of the first choice, or "".
func (r *ChatCompletionResponse) FirstContent() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// Choice represents a single completion choice.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage represents token usage information.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ModelInfo contains information about a model as listed by the registry.
type ModelInfo struct {
	ID                  string        `json:"id"`
	CanonicalSlug       string        `json:"canonical_slug,omitempty"`
	Name                string        `json:"name"`
	Created             int64         `json:"created,omitempty"`
	Description         string        `json:"description"`
	ContextLength       int           `json:"context_length"`
	Architecture        *Architecture `json:"architecture,omitempty"`
	Pricing             *Pricing      `json:"pricing,omitempty"`
	TopProvider         *TopProvider  `json:"top_provider,omitempty"`
	SupportedParameters []string      `json:"supported_parameters,omitempty"`
}

// Pricing contains model pricing information.
type Pricing struct {
	Prompt            string `json:"prompt"`
	Completion        string `json:"completion"`
	Request           string `json:"request,omitempty"`
	Image             string `json:"image,omitempty"`
	WebSearch         string `json:"web_search,omitempty"`
	InternalReasoning string `json:"internal_reasoning,omitempty"`
}

// Architecture contains model architecture information.
type Architecture struct {
	InputModalities  []string `json:"input_modalities,omitempty"`
	OutputModalities []string `json:"output_modalities,omitempty"`
	Tokenizer        string   `json:"tokenizer,omitempty"`
}

// TopProvider contains provider-specific limits.
type TopProvider struct {
	ContextLength       int  `json:"context_length,omitempty"`
	MaxCompletionTokens int  `json:"max_completion_tokens,omitempty"`
	IsModerated         bool `json:"is_moderated,omitempty"`
}
