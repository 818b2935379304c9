// Package session implements the session orchestration core: the single
// stateful controller that owns the canonical application state, keeps the
// voice and text AI connections consistent with the accumulated knowledge
// context, parses streamed responses for inline image directives, and runs
// the resulting image jobs without blocking the primary stream.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/guilhermexp/notesbraingem/pkg/core"
	"github.com/guilhermexp/notesbraingem/pkg/core/types"
	"github.com/guilhermexp/notesbraingem/pkg/directive"
	"github.com/guilhermexp/notesbraingem/pkg/store"
	"github.com/guilhermexp/notesbraingem/pkg/transport"
)

// Config wires the orchestrator's external collaborators. Engine, Voice,
// Text and Images are required; Store may be nil when persistence is not
// configured. OnVoiceEvent receives live voice-connection events (audio
// chunks, interruptions) on the pump goroutine.
type Config struct {
	Engine       transport.AnalysisEngine
	Voice        transport.VoiceTransport
	Text         transport.TextTransport
	Images       transport.ImageTransport
	Store        store.Store
	OnVoiceEvent func(transport.VoiceEvent)

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Orchestrator is the top-level controller. All mutations flow through
// dispatch: the mutation is applied atomically, the new snapshot is
// published to subscribers, and only then are side-effect commands
// executed. Rebuild commands complete synchronously before the triggering
// intent returns, so no turn is ever served against a stale instruction.
type Orchestrator struct {
	mu sync.Mutex
	st *state

	voice  *voiceManager
	text   *textManager
	runner *imageRunner

	engine transport.AnalysisEngine
	store  store.Store
	now    func() time.Time

	subsMu  sync.Mutex
	subs    map[int]func(types.Snapshot)
	nextSub int
}

// New creates an orchestrator with an empty knowledge store and both
// connections closed.
func New(cfg Config) *Orchestrator {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	o := &Orchestrator{
		st:     newState(now),
		engine: cfg.Engine,
		store:  cfg.Store,
		now:    now,
		subs:   make(map[int]func(types.Snapshot)),
	}
	o.voice = newVoiceManager(cfg.Voice, o.handleVoiceEvent(cfg.OnVoiceEvent))
	o.text = newTextManager(cfg.Text)
	o.runner = &imageRunner{images: cfg.Images, o: o}
	return o
}

// Subscribe registers a listener fired on every state mutation with the
// new snapshot. The returned function unsubscribes.
func (o *Orchestrator) Subscribe(fn func(types.Snapshot)) func() {
	o.subsMu.Lock()
	id := o.nextSub
	o.nextSub++
	o.subs[id] = fn
	o.subsMu.Unlock()
	return func() {
		o.subsMu.Lock()
		delete(o.subs, id)
		o.subsMu.Unlock()
	}
}

// Snapshot returns a copy of the current state.
func (o *Orchestrator) Snapshot() types.Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.st.snapshot()
}

// dispatch applies one atomic mutation, publishes the snapshot, then
// executes the commands the mutation produced. Rebuilds run synchronously;
// image jobs are fire-and-forget.
func (o *Orchestrator) dispatch(ctx context.Context, mutate func(st *state) []command) {
	o.mu.Lock()
	o.st.dropExpiredStatus()
	cmds := mutate(o.st)
	for _, c := range cmds {
		// Teardown must never race microphone capture.
		if _, ok := c.(rebuildVoiceCmd); ok {
			o.st.recording = false
		}
	}
	snap := o.st.snapshot()
	o.mu.Unlock()

	o.publish(snap)
	o.execute(ctx, cmds)
}

func (o *Orchestrator) publish(snap types.Snapshot) {
	o.subsMu.Lock()
	fns := make([]func(types.Snapshot), 0, len(o.subs))
	for _, fn := range o.subs {
		fns = append(fns, fn)
	}
	o.subsMu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}

func (o *Orchestrator) execute(ctx context.Context, cmds []command) {
	for _, c := range cmds {
		switch cmd := c.(type) {
		case rebuildVoiceCmd:
			o.rebuildVoice(ctx)
		case rebuildTextCmd:
			o.rebuildText(ctx)
		case imageJobCmd:
			go o.runner.run(cmd)
		}
	}
}

// rebuildVoice tears down and reopens the voice connection with the
// current instruction. A connection that was never opened stays closed:
// the next explicit start opens it with the current instruction anyway,
// so no stale-instruction turn is possible either way.
func (o *Orchestrator) rebuildVoice(ctx context.Context) {
	if !o.voice.isOpen() {
		return
	}
	instruction := o.currentInstruction()
	if err := o.voice.rebuild(ctx, instruction); err != nil {
		o.reportError(ctx, "voice", err)
	}
}

func (o *Orchestrator) rebuildText(ctx context.Context) {
	if !o.text.isOpen() {
		return
	}
	instruction, history := o.currentInstructionAndChat()
	if err := o.text.rebuild(ctx, instruction, history); err != nil {
		o.reportError(ctx, "text", err)
	}
}

func (o *Orchestrator) currentInstruction() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.st.instruction
}

func (o *Orchestrator) currentInstructionAndChat() (string, []types.ChatMessage) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.st.instruction, append([]types.ChatMessage(nil), o.st.chat...)
}

// reportError converts a failure into an observable state update: a
// status banner plus a timeline entry. Nothing is silently swallowed.
func (o *Orchestrator) reportError(ctx context.Context, scope string, err error) {
	o.dispatch(ctx, func(st *state) []command {
		st.setStatus(fmt.Sprintf("%s: %v", scope, err), true)
		st.appendTimeline("error", fmt.Sprintf("%s: %v", scope, err))
		return nil
	})
}

func (o *Orchestrator) handleVoiceEvent(sink func(transport.VoiceEvent)) func(transport.VoiceEvent) {
	return func(ev transport.VoiceEvent) {
		switch ev.Kind {
		case transport.VoiceErrored:
			o.reportError(context.Background(), "voice stream", ev.Err)
		case transport.VoiceClosed:
			o.dispatch(context.Background(), func(st *state) []command {
				if st.recording {
					st.recording = false
					st.setStatus("voice connection closed", true)
					st.appendTimeline("voice", "connection closed")
				}
				return nil
			})
		}
		if sink != nil {
			sink(ev)
		}
	}
}

// AnalyzeContent runs the external content-analysis engine for a source
// or topic, stores the resulting analysis, and selects it. Long: progress
// is reported through the processing field.
func (o *Orchestrator) AnalyzeContent(ctx context.Context, sourceOrTopic string, file []byte, mode transport.AnalyzeMode) error {
	if o.engine == nil {
		return core.NewPreconditionError("analysis engine is not configured")
	}

	o.dispatch(ctx, func(st *state) []command {
		st.processing = types.Processing{Active: true, Step: "analyzing content", Progress: 10}
		return nil
	})

	analysis, err := o.engine.Analyze(ctx, sourceOrTopic, file, mode)
	if err != nil {
		o.dispatch(ctx, func(st *state) []command {
			st.processing = types.Processing{}
			st.setStatus(fmt.Sprintf("analysis failed: %v", err), true)
			st.appendTimeline("error", fmt.Sprintf("analysis of %q failed: %v", sourceOrTopic, err))
			return nil
		})
		return err
	}

	if analysis.ID == "" {
		analysis.ID = types.NewAnalysisID()
	}

	o.dispatch(ctx, func(st *state) []command {
		st.processing = types.Processing{Active: true, Step: "rebuilding context", Progress: 80}
		st.analyses = append(st.analyses, analysis)
		st.selectedID = analysis.ID
		st.clearChat()
		st.recompute()
		st.appendTimeline("analysis", fmt.Sprintf("added %q (%s)", analysis.Title, analysis.Type))
		return []command{rebuildVoiceCmd{}, rebuildTextCmd{}}
	})

	if mode == transport.ModeSearch && o.store != nil {
		if err := store.AppendSearchHistory(ctx, o.store, types.SearchHistoryEntry{Query: sourceOrTopic, At: o.now()}); err != nil {
			o.reportError(ctx, "search history", err)
		}
	}

	o.dispatch(ctx, func(st *state) []command {
		st.processing = types.Processing{}
		return nil
	})
	return nil
}

// RemoveAnalysis deletes a record. Removing the selected record forces
// reselection to the first remaining record, or none; the chat is scoped
// to one context at a time, so a selection change clears it.
func (o *Orchestrator) RemoveAnalysis(ctx context.Context, id string) error {
	var missing bool
	o.dispatch(ctx, func(st *state) []command {
		idx, ok := st.findAnalysis(id)
		if !ok {
			missing = true
			return nil
		}
		removed := st.analyses[idx]
		st.analyses = append(st.analyses[:idx], st.analyses[idx+1:]...)
		selectionChanged := st.selectedID == id
		st.reselectAfterRemoval()
		if selectionChanged {
			st.clearChat()
		}
		st.appendTimeline("analysis", fmt.Sprintf("removed %q", removed.Title))
		if st.recompute() {
			return []command{rebuildVoiceCmd{}, rebuildTextCmd{}}
		}
		return nil
	})
	if missing {
		return core.NewInvalidRequestError("unknown analysis id")
	}
	return nil
}

// UpdateAnalysisSummary applies a summary edit from the rich-text
// surface. Chat survives a summary edit; only the instruction is stale,
// so only the connections rebuild.
func (o *Orchestrator) UpdateAnalysisSummary(ctx context.Context, id, summary string) error {
	var missing bool
	o.dispatch(ctx, func(st *state) []command {
		idx, ok := st.findAnalysis(id)
		if !ok {
			missing = true
			return nil
		}
		st.analyses[idx].Summary = summary
		if st.recompute() {
			return []command{rebuildVoiceCmd{}, rebuildTextCmd{}}
		}
		return nil
	})
	if missing {
		return core.NewInvalidRequestError("unknown analysis id")
	}
	return nil
}

// InsertImageIntoAnalysis appends an image reference to an analysis
// summary.
func (o *Orchestrator) InsertImageIntoAnalysis(ctx context.Context, id, imageRef string) error {
	var missing bool
	o.dispatch(ctx, func(st *state) []command {
		idx, ok := st.findAnalysis(id)
		if !ok {
			missing = true
			return nil
		}
		st.analyses[idx].Summary += "\n\n" + imageRef
		if st.recompute() {
			return []command{rebuildVoiceCmd{}, rebuildTextCmd{}}
		}
		return nil
	})
	if missing {
		return core.NewInvalidRequestError("unknown analysis id")
	}
	return nil
}

// SetSelectedAnalysisID switches the active context. Empty id means no
// active context.
func (o *Orchestrator) SetSelectedAnalysisID(ctx context.Context, id string) error {
	var invalid bool
	o.dispatch(ctx, func(st *state) []command {
		if id != "" {
			if _, ok := st.findAnalysis(id); !ok {
				invalid = true
				return nil
			}
		}
		if st.selectedID == id {
			return nil
		}
		st.selectedID = id
		st.clearChat()
		st.recompute()
		st.appendTimeline("context", "selection changed")
		return []command{rebuildVoiceCmd{}, rebuildTextCmd{}}
	})
	if invalid {
		return core.NewInvalidRequestError("unknown analysis id")
	}
	return nil
}

// SetPersona switches the active persona.
func (o *Orchestrator) SetPersona(ctx context.Context, persona types.Persona) error {
	o.dispatch(ctx, func(st *state) []command {
		if st.persona == persona {
			return nil
		}
		st.persona = persona
		st.clearChat()
		st.recompute()
		st.appendTimeline("context", fmt.Sprintf("persona set to %s", personaLabel(persona)))
		return []command{rebuildVoiceCmd{}, rebuildTextCmd{}}
	})
	return nil
}

func personaLabel(p types.Persona) string {
	if p == "" {
		return "none"
	}
	return string(p)
}

// StartRecording opens the voice connection if needed and begins
// accepting audio frames.
func (o *Orchestrator) StartRecording(ctx context.Context) error {
	instruction := o.currentInstruction()
	if err := o.voice.ensureOpen(ctx, instruction); err != nil {
		o.reportError(ctx, "voice", err)
		return err
	}
	o.dispatch(ctx, func(st *state) []command {
		st.recording = true
		st.appendTimeline("voice", "recording started")
		return nil
	})
	return nil
}

// StopRecording halts audio capture immediately. It does not tear down
// the connection and cancels no pending network calls.
func (o *Orchestrator) StopRecording(ctx context.Context) {
	o.dispatch(ctx, func(st *state) []command {
		if !st.recording {
			return nil
		}
		st.recording = false
		st.appendTimeline("voice", "recording stopped")
		return nil
	})
}

// SendAudioFrame forwards one captured audio frame to the live
// connection. Frames sent while not recording are dropped.
func (o *Orchestrator) SendAudioFrame(frame []byte) error {
	o.mu.Lock()
	recording := o.st.recording
	o.mu.Unlock()
	if !recording {
		return nil
	}
	return o.voice.sendFrame(frame)
}

// SendTextMessage runs one streamed text turn. At most one text turn is
// in flight at a time; the streamed response is scanned for inline image
// directives, which fork image jobs without blocking the stream.
func (o *Orchestrator) SendTextMessage(ctx context.Context, text string) error {
	var seed []types.ChatMessage
	var busy bool
	o.dispatch(ctx, func(st *state) []command {
		if st.textTurnInFlight {
			busy = true
			return nil
		}
		st.textTurnInFlight = true
		seed = append([]types.ChatMessage(nil), st.chat...)
		return nil
	})
	if busy {
		return core.NewPreconditionError("a text turn is already in flight")
	}

	instruction := o.currentInstruction()
	sess, err := o.text.acquire(ctx, instruction, seed)
	if err != nil {
		o.dispatch(ctx, func(st *state) []command {
			st.textTurnInFlight = false
			st.setStatus(err.Error(), true)
			st.appendTimeline("error", err.Error())
			return nil
		})
		return err
	}

	var msgIndex int
	o.dispatch(ctx, func(st *state) []command {
		st.chat = append(st.chat,
			types.ChatMessage{Role: types.RoleUser, Text: text},
			types.ChatMessage{Role: types.RoleAssistant},
		)
		msgIndex = len(st.chat) - 1
		return nil
	})

	chunks, errs := sess.SendStreaming(ctx, text)
	scanner := &directive.Scanner{}

	for chunk := range chunks {
		res := scanner.Feed(chunk.TextFragment)
		d := res.Directive
		sources := chunk.Sources
		o.dispatch(ctx, func(st *state) []command {
			st.patchMessage(msgIndex, types.MessagePatch{SetStreamText: types.StringPtr(res.Text), Sources: sources})
			if d == nil {
				return nil
			}
			cmd := imageJobCmd{prompt: d.Prompt, msgIndex: msgIndex}
			if d.Kind == directive.KindGenerate {
				cmd.generate = true
				cmd.count = d.Count
			}
			st.appendTimeline("image", fmt.Sprintf("%s directive dispatched", d.Kind))
			return []command{cmd}
		})
	}

	streamErr := <-errs
	o.dispatch(ctx, func(st *state) []command {
		st.textTurnInFlight = false
		if streamErr != nil {
			st.setStatus(core.NewStreamError("text", streamErr).Error(), true)
			st.appendTimeline("error", fmt.Sprintf("text stream: %v", streamErr))
		}
		return nil
	})
	if streamErr != nil {
		return core.NewStreamError("text", streamErr)
	}
	return nil
}

// ResetSession closes both connections and returns to the empty state.
func (o *Orchestrator) ResetSession(ctx context.Context) {
	o.voice.close()
	o.text.close()
	o.dispatch(ctx, func(st *state) []command {
		*st = *newState(st.now)
		st.appendTimeline("session", "session reset")
		return nil
	})
}

// Close releases both connections without mutating state. Used at daemon
// shutdown.
func (o *Orchestrator) Close() {
	o.voice.close()
	o.text.close()
}

// SaveSession persists the knowledge store and context under a name.
func (o *Orchestrator) SaveSession(ctx context.Context, name string) error {
	if o.store == nil {
		return core.NewPreconditionError("persistence is not configured")
	}
	o.mu.Lock()
	saved := types.SavedSession{
		Name:       name,
		Analyses:   append([]types.Analysis(nil), o.st.analyses...),
		SelectedID: o.st.selectedID,
		Persona:    o.st.persona,
		Timeline:   append([]types.TimelineEntry(nil), o.st.timeline...),
		SavedAt:    o.st.now(),
	}
	o.mu.Unlock()

	if err := store.SaveSession(ctx, o.store, saved); err != nil {
		o.reportError(ctx, "save session", err)
		return err
	}
	o.dispatch(ctx, func(st *state) []command {
		st.setStatus(fmt.Sprintf("session %q saved", name), false)
		st.appendTimeline("session", fmt.Sprintf("saved as %q", name))
		return nil
	})
	return nil
}

// LoadSession restores a saved session: the ordered knowledge store comes
// back identical, the first analysis is reselected, chat is cleared, and
// both connections rebuild exactly once.
func (o *Orchestrator) LoadSession(ctx context.Context, name string) error {
	if o.store == nil {
		return core.NewPreconditionError("persistence is not configured")
	}
	saved, ok, err := store.LoadSession(ctx, o.store, name)
	if err != nil {
		o.reportError(ctx, "load session", err)
		return err
	}
	if !ok {
		return core.NewInvalidRequestError(fmt.Sprintf("no saved session %q", name))
	}

	o.dispatch(ctx, func(st *state) []command {
		st.analyses = saved.Analyses
		st.persona = saved.Persona
		st.selectedID = ""
		if len(st.analyses) > 0 {
			st.selectedID = st.analyses[0].ID
		}
		st.clearChat()
		st.lastImages = nil
		st.timeline = saved.Timeline
		st.recompute()
		st.appendTimeline("session", fmt.Sprintf("loaded %q", name))
		return []command{rebuildVoiceCmd{}, rebuildTextCmd{}}
	})
	return nil
}

// DeleteSession removes a saved session.
func (o *Orchestrator) DeleteSession(ctx context.Context, name string) error {
	if o.store == nil {
		return core.NewPreconditionError("persistence is not configured")
	}
	if err := store.DeleteSession(ctx, o.store, name); err != nil {
		o.reportError(ctx, "delete session", err)
		return err
	}
	return nil
}

// ListSessions returns the names of all saved sessions.
func (o *Orchestrator) ListSessions(ctx context.Context) ([]string, error) {
	if o.store == nil {
		return nil, core.NewPreconditionError("persistence is not configured")
	}
	return store.ListSessions(ctx, o.store)
}

// SearchHistory returns the recorded search topics, most recent last.
func (o *Orchestrator) SearchHistory(ctx context.Context) ([]types.SearchHistoryEntry, error) {
	if o.store == nil {
		return nil, core.NewPreconditionError("persistence is not configured")
	}
	return store.LoadSearchHistory(ctx, o.store)
}

// ClearSearchHistory deletes all recorded search topics.
func (o *Orchestrator) ClearSearchHistory(ctx context.Context) error {
	if o.store == nil {
		return core.NewPreconditionError("persistence is not configured")
	}
	return store.ClearSearchHistory(ctx, o.store)
}
