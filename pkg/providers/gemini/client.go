// Package gemini implements the voice, text, and image transports against
// the Gemini API via the google.golang.org/genai SDK.
package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Config selects the models used per channel. Zero fields get defaults.
type Config struct {
	APIKey string

	LiveModel  string // bidirectional voice
	ChatModel  string // streaming text
	ImageModel string // generation
	EditModel  string // image editing (mixed text/image output)
}

const (
	defaultLiveModel  = "gemini-2.5-flash-native-audio-preview-09-2025"
	defaultChatModel  = "gemini-2.5-flash"
	defaultImageModel = "imagen-4.0-generate-001"
	defaultEditModel  = "gemini-2.5-flash-image"
)

// Client carries one genai client shared by the three transports.
type Client struct {
	genai *genai.Client
	cfg   Config
}

// New connects to the Gemini API.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: api key is required")
	}
	if cfg.LiveModel == "" {
		cfg.LiveModel = defaultLiveModel
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = defaultChatModel
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = defaultImageModel
	}
	if cfg.EditModel == "" {
		cfg.EditModel = defaultEditModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Client{genai: client, cfg: cfg}, nil
}

// systemContent wraps an instruction string for the SDK.
func systemContent(instruction string) *genai.Content {
	return &genai.Content{Parts: []*genai.Part{{Text: instruction}}}
}

// searchTool is the fixed tool capability supplied at connect time for
// both conversational channels.
func searchTool() []*genai.Tool {
	return []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
}
