package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/guilhermexp/notesbraingem/pkg/core/types"
	"github.com/guilhermexp/notesbraingem/pkg/transport"
)

// fakeEngine produces deterministic analyses: a1, a2, ... titled after
// their source.
type fakeEngine struct {
	mu   sync.Mutex
	next int
	typ  types.SourceType
	err  error
}

func (e *fakeEngine) Analyze(_ context.Context, sourceOrTopic string, _ []byte, _ transport.AnalyzeMode) (types.Analysis, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return types.Analysis{}, e.err
	}
	e.next++
	typ := e.typ
	if typ == "" {
		typ = types.SourceWebpage
	}
	return types.Analysis{
		ID:        fmt.Sprintf("a%d", e.next),
		Title:     sourceOrTopic,
		Source:    sourceOrTopic,
		Summary:   "summary of " + sourceOrTopic,
		Type:      typ,
		CreatedAt: time.Now(),
	}, nil
}

type fakeVoiceTransport struct {
	mu       sync.Mutex
	opens    []string
	conns    []*fakeVoiceConn
	failOpen error
}

func (t *fakeVoiceTransport) Open(_ context.Context, instruction string) (transport.VoiceConnection, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failOpen != nil {
		return nil, t.failOpen
	}
	t.opens = append(t.opens, instruction)
	c := &fakeVoiceConn{events: make(chan transport.VoiceEvent, 8)}
	t.conns = append(t.conns, c)
	return c, nil
}

func (t *fakeVoiceTransport) openCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.opens)
}

func (t *fakeVoiceTransport) lastInstruction() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.opens) == 0 {
		return ""
	}
	return t.opens[len(t.opens)-1]
}

func (t *fakeVoiceTransport) lastConn() *fakeVoiceConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.conns) == 0 {
		return nil
	}
	return t.conns[len(t.conns)-1]
}

type fakeVoiceConn struct {
	mu     sync.Mutex
	events chan transport.VoiceEvent
	frames [][]byte
	closed bool
}

func (c *fakeVoiceConn) SendAudioFrame(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, append([]byte(nil), frame...))
	return nil
}

func (c *fakeVoiceConn) Events() <-chan transport.VoiceEvent { return c.events }

func (c *fakeVoiceConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.events)
	}
	return nil
}

func (c *fakeVoiceConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeVoiceConn) frameCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func (c *fakeVoiceConn) emit(ev transport.VoiceEvent) { c.events <- ev }

// scriptedTurn is one pre-scripted streamed response. started closes when
// the turn begins; a non-nil hold blocks the stream until released;
// chunkGates[i], when present, blocks delivery of chunk i.
type scriptedTurn struct {
	chunks     []transport.TextChunk
	chunkGates []chan struct{}
	err        error
	started    chan struct{}
	hold       chan struct{}
}

type textOpen struct {
	instruction string
	history     []types.ChatMessage
}

// fakeTextTransport hands out sessions that consume a shared script, one
// turn per SendStreaming call.
type fakeTextTransport struct {
	mu       sync.Mutex
	opens    []textOpen
	script   []*scriptedTurn
	sent     []string
	failOpen error
}

func (t *fakeTextTransport) Open(_ context.Context, instruction string, history []types.ChatMessage) (transport.TextSession, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failOpen != nil {
		return nil, t.failOpen
	}
	t.opens = append(t.opens, textOpen{instruction: instruction, history: append([]types.ChatMessage(nil), history...)})
	return &fakeTextSession{t: t}, nil
}

func (t *fakeTextTransport) openCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.opens)
}

func (t *fakeTextTransport) lastOpen() textOpen {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.opens) == 0 {
		return textOpen{}
	}
	return t.opens[len(t.opens)-1]
}

func (t *fakeTextTransport) pushTurn(turn *scriptedTurn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.script = append(t.script, turn)
}

type fakeTextSession struct {
	t *fakeTextTransport
}

func (s *fakeTextSession) SendStreaming(_ context.Context, message string) (<-chan transport.TextChunk, <-chan error) {
	s.t.mu.Lock()
	s.t.sent = append(s.t.sent, message)
	var turn *scriptedTurn
	if len(s.t.script) > 0 {
		turn = s.t.script[0]
		s.t.script = s.t.script[1:]
	}
	s.t.mu.Unlock()

	chunks := make(chan transport.TextChunk)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)
		if turn == nil {
			return
		}
		if turn.started != nil {
			close(turn.started)
		}
		if turn.hold != nil {
			<-turn.hold
		}
		for i, c := range turn.chunks {
			if i < len(turn.chunkGates) && turn.chunkGates[i] != nil {
				<-turn.chunkGates[i]
			}
			chunks <- c
		}
		if turn.err != nil {
			errs <- turn.err
		}
	}()
	return chunks, errs
}

func (s *fakeTextSession) Close() error { return nil }

type genCall struct {
	prompt string
	count  int
}

type editCall struct {
	prompt string
	source []byte
}

type fakeImageTransport struct {
	mu         sync.Mutex
	genCalls   []genCall
	editCalls  []editCall
	genErr     error
	editErr    error
	editResult transport.EditResult
}

func (t *fakeImageTransport) Generate(_ context.Context, prompt string, count int) ([][]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.genCalls = append(t.genCalls, genCall{prompt: prompt, count: count})
	if t.genErr != nil {
		return nil, t.genErr
	}
	images := make([][]byte, count)
	for i := range images {
		images[i] = []byte(fmt.Sprintf("png:%s:%d", prompt, i))
	}
	return images, nil
}

func (t *fakeImageTransport) Edit(_ context.Context, image []byte, prompt string) (transport.EditResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.editCalls = append(t.editCalls, editCall{prompt: prompt, source: append([]byte(nil), image...)})
	if t.editErr != nil {
		return transport.EditResult{}, t.editErr
	}
	if t.editResult.Image != nil || t.editResult.Text != "" {
		return t.editResult, nil
	}
	return transport.EditResult{Text: "Done.", Image: []byte("png:edited")}, nil
}

func (t *fakeImageTransport) editCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.editCalls)
}

// waitFor polls snapshots until cond holds. Image jobs complete on their
// own goroutines, so tests that observe their results go through here.
func waitFor(t *testing.T, o *Orchestrator, desc string, cond func(types.Snapshot) bool) types.Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap := o.Snapshot()
		if cond(snap) {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", desc)
	return types.Snapshot{}
}

type testRig struct {
	o      *Orchestrator
	engine *fakeEngine
	voice  *fakeVoiceTransport
	text   *fakeTextTransport
	images *fakeImageTransport
}

func newTestRig(t *testing.T, cfg Config) *testRig {
	t.Helper()
	rig := &testRig{
		engine: &fakeEngine{},
		voice:  &fakeVoiceTransport{},
		text:   &fakeTextTransport{},
		images: &fakeImageTransport{},
	}
	cfg.Engine = rig.engine
	cfg.Voice = rig.voice
	cfg.Text = rig.text
	cfg.Images = rig.images
	rig.o = New(cfg)
	t.Cleanup(rig.o.Close)
	return rig
}

// openBoth brings both connections up so rebuild assertions can count
// reopens.
func (r *testRig) openBoth(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	if err := r.o.StartRecording(ctx); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	r.text.pushTurn(&scriptedTurn{})
	if err := r.o.SendTextMessage(ctx, "hello"); err != nil {
		t.Fatalf("SendTextMessage: %v", err)
	}
}
