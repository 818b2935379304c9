// Package transport declares the interfaces of the external collaborators
// the orchestration core consumes: the dual AI connections, the image
// models, and the content-analysis engine. Implementations live in
// pkg/providers; tests use in-package fakes.
package transport

import (
	"context"

	"github.com/guilhermexp/notesbraingem/pkg/core/types"
)

// AnalyzeMode selects how the content-analysis engine should treat its
// input.
type AnalyzeMode string

const (
	ModeAuto     AnalyzeMode = "auto"
	ModeSearch   AnalyzeMode = "search"
	ModeDocument AnalyzeMode = "document"
)

// AnalysisEngine turns a source or topic into an Analysis record. It is
// asynchronous and may fail with a descriptive error; the orchestrator
// only stores what it returns.
type AnalysisEngine interface {
	Analyze(ctx context.Context, sourceOrTopic string, file []byte, mode AnalyzeMode) (types.Analysis, error)
}

// VoiceEvent is one event emitted by an open voice connection.
type VoiceEvent struct {
	Kind  VoiceEventKind
	Audio []byte // audio-chunk events
	Err   error  // error events
}

type VoiceEventKind string

const (
	VoiceOpened      VoiceEventKind = "opened"
	VoiceAudioChunk  VoiceEventKind = "audio_chunk"
	VoiceInterrupted VoiceEventKind = "interrupted"
	VoiceErrored     VoiceEventKind = "errored"
	VoiceClosed      VoiceEventKind = "closed"
)

// VoiceConnection is a low-latency bidirectional voice stream.
type VoiceConnection interface {
	SendAudioFrame(frame []byte) error
	Events() <-chan VoiceEvent
	Close() error
}

// VoiceTransport opens voice connections against the AI provider. The
// instruction and the search tool are fixed at connect time; changing the
// instruction means closing and reopening.
type VoiceTransport interface {
	Open(ctx context.Context, instruction string) (VoiceConnection, error)
}

// TextChunk is one element of a streamed text response.
type TextChunk struct {
	TextFragment string
	Sources      []types.Source
}

// TextSession is a streaming chat connection with fixed instruction and
// seed history.
type TextSession interface {
	// SendStreaming sends one user message and returns a channel of
	// response chunks. The channel closes when the turn completes; a
	// mid-stream failure is delivered on errs and both channels close.
	SendStreaming(ctx context.Context, message string) (<-chan TextChunk, <-chan error)
	Close() error
}

// TextTransport opens text chat sessions.
type TextTransport interface {
	Open(ctx context.Context, instruction string, seedHistory []types.ChatMessage) (TextSession, error)
}

// EditResult is the mixed text/image response of an image edit.
type EditResult struct {
	Text  string
	Image []byte
}

// ImageTransport is the out-of-band image model pair.
type ImageTransport interface {
	Generate(ctx context.Context, prompt string, count int) ([][]byte, error)
	Edit(ctx context.Context, image []byte, prompt string) (EditResult, error)
}
