package types

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one turn of the text conversation. The assistant message
// of the in-flight turn is patched in place as streamed fragments and image
// results arrive; it is the unit of update the UI observes.
type ChatMessage struct {
	Role            Role     `json:"role"`
	Text            string   `json:"text"`
	ImageURLs       []string `json:"image_urls,omitempty"`
	IsLoadingImages bool     `json:"is_loading_images,omitempty"`
	ImageCount      int      `json:"image_count,omitempty"`
	Sources         []Source `json:"sources,omitempty"`

	// Text is composed from two independently patched parts: the
	// streamed turn text and annotations appended by image jobs. Kept
	// separate so a stream fragment arriving after a job annotation
	// cannot erase it.
	streamText  string
	annotations string
	textFinal   bool
}

// Source is a grounding citation attached to an assistant turn by the
// text transport's search tool.
type Source struct {
	Title string `json:"title,omitempty"`
	URI   string `json:"uri,omitempty"`
}

// MessagePatch is a partial update applied to one chat message through the
// orchestrator's single mutation entry point. Nil fields are left as-is.
// SetStreamText replaces only the streamed part and leaves job annotations
// alone; AppendText appends an annotation; SetText is a final replacement
// of the whole text after which stream fragments are ignored.
type MessagePatch struct {
	AppendText      *string
	SetText         *string
	SetStreamText   *string
	ImageURLs       []string
	IsLoadingImages *bool
	ImageCount      *int
	Sources         []Source
}

// Apply merges the patch into msg.
func (p MessagePatch) Apply(msg *ChatMessage) {
	patched := false
	if p.SetStreamText != nil && !msg.textFinal {
		msg.streamText = *p.SetStreamText
		patched = true
	}
	if p.AppendText != nil {
		msg.annotations += *p.AppendText
		patched = true
	}
	if p.SetText != nil {
		msg.streamText = *p.SetText
		msg.annotations = ""
		msg.textFinal = true
		patched = true
	}
	if patched {
		msg.Text = msg.streamText + msg.annotations
	}
	if p.ImageURLs != nil {
		msg.ImageURLs = p.ImageURLs
	}
	if p.IsLoadingImages != nil {
		msg.IsLoadingImages = *p.IsLoadingImages
	}
	if p.ImageCount != nil {
		msg.ImageCount = *p.ImageCount
	}
	if p.Sources != nil {
		msg.Sources = append(msg.Sources, p.Sources...)
	}
}

// String pointer helper for building patches.
func StringPtr(s string) *string { return &s }

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool { return &b }

// IntPtr returns a pointer to n.
func IntPtr(n int) *int { return &n }
