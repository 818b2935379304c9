package gemini

import (
	"context"

	"google.golang.org/genai"

	"github.com/guilhermexp/notesbraingem/pkg/core/types"
	"github.com/guilhermexp/notesbraingem/pkg/transport"
)

// Text returns the streaming text transport.
func (c *Client) Text() transport.TextTransport {
	return &textTransport{client: c}
}

type textTransport struct {
	client *Client
}

func (t *textTransport) Open(ctx context.Context, instruction string, seedHistory []types.ChatMessage) (transport.TextSession, error) {
	chat, err := t.client.genai.Chats.Create(ctx, t.client.cfg.ChatModel, &genai.GenerateContentConfig{
		SystemInstruction: systemContent(instruction),
		Tools:             searchTool(),
	}, historyContents(seedHistory))
	if err != nil {
		return nil, err
	}
	return &textSession{chat: chat}, nil
}

func historyContents(history []types.ChatMessage) []*genai.Content {
	out := make([]*genai.Content, 0, len(history))
	for _, msg := range history {
		role := genai.RoleUser
		if msg.Role == types.RoleAssistant {
			role = genai.RoleModel
		}
		out = append(out, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: msg.Text}},
		})
	}
	return out
}

type textSession struct {
	chat *genai.Chat
}

func (s *textSession) SendStreaming(ctx context.Context, message string) (<-chan transport.TextChunk, <-chan error) {
	chunks := make(chan transport.TextChunk)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		for resp, err := range s.chat.SendMessageStream(ctx, genai.Part{Text: message}) {
			if err != nil {
				errs <- err
				return
			}
			chunk := responseChunk(resp)
			if chunk.TextFragment == "" && chunk.Sources == nil {
				continue
			}
			select {
			case chunks <- chunk:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}()

	return chunks, errs
}

func responseChunk(resp *genai.GenerateContentResponse) transport.TextChunk {
	var chunk transport.TextChunk
	if resp == nil || len(resp.Candidates) == 0 {
		return chunk
	}
	cand := resp.Candidates[0]
	if cand.Content != nil {
		for _, part := range cand.Content.Parts {
			chunk.TextFragment += part.Text
		}
	}
	if cand.GroundingMetadata != nil {
		for _, gc := range cand.GroundingMetadata.GroundingChunks {
			if gc.Web != nil {
				chunk.Sources = append(chunk.Sources, types.Source{Title: gc.Web.Title, URI: gc.Web.URI})
			}
		}
	}
	return chunk
}

// Close is a no-op: chat sessions hold no remote resources, the history
// lives client-side and dies with the struct.
func (s *textSession) Close() error { return nil }
