package aisdk

import (
	"context"
	"io"
)

// Completer runs a single non-streaming completion. Used for the small
// classification and planning calls.
type Completer interface {
	CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error)
}

// StreamCompleter opens a streaming completion and returns the raw
// server-sent-event body. The caller closes it.
type StreamCompleter interface {
	CreateChatCompletionStream(ctx context.Context, req *ChatCompletionRequest) (io.ReadCloser, error)
}

// ModelRegistry looks up model metadata.
type ModelRegistry interface {
	GetModel(ctx context.Context, modelID string) (*ModelInfo, error)
	ListModels(ctx context.Context) ([]*ModelInfo, error)
}

// Provider is everything the engine needs from the completion service.
type Provider interface {
	Completer
	StreamCompleter
	ModelRegistry
}
