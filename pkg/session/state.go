package session

import (
	"time"

	"github.com/guilhermexp/notesbraingem/pkg/compose"
	"github.com/guilhermexp/notesbraingem/pkg/core/types"
)

// statusWindow is how long a transient status banner stays relevant.
// The orchestrator drops an expired status on the next mutation.
const statusWindow = 4 * time.Second

// state is the canonical session state. It is owned exclusively by the
// Orchestrator and only ever mutated inside dispatch; everything that
// leaves the orchestrator is a Snapshot copy.
type state struct {
	analyses         []types.Analysis
	selectedID       string
	persona          types.Persona
	instruction      string
	chat             []types.ChatMessage
	recording        bool
	textTurnInFlight bool
	lastImages       [][]byte
	timeline         []types.TimelineEntry
	processing       types.Processing
	status           *types.Status

	now func() time.Time
}

func newState(now func() time.Time) *state {
	if now == nil {
		now = time.Now
	}
	st := &state{now: now}
	st.recompute()
	return st
}

// activeAnalyses is the subset of the store the instruction is composed
// from. No selection means no active context; with a single record the
// selected analysis gets its type-specific template; with several, the
// cumulative knowledge of the whole store is carried in the instruction.
func (st *state) activeAnalyses() []types.Analysis {
	if st.selectedID == "" {
		return nil
	}
	if len(st.analyses) >= 2 {
		return st.analyses
	}
	for _, a := range st.analyses {
		if a.ID == st.selectedID {
			return []types.Analysis{a}
		}
	}
	return nil
}

// recompute re-derives the system instruction and reports whether it
// changed. Callers never write instruction directly.
func (st *state) recompute() bool {
	next := compose.Compose(st.activeAnalyses(), st.persona)
	if next == st.instruction {
		return false
	}
	st.instruction = next
	return true
}

func (st *state) findAnalysis(id string) (int, bool) {
	for i, a := range st.analyses {
		if a.ID == id {
			return i, true
		}
	}
	return -1, false
}

// reselectAfterRemoval enforces the invariant that a non-empty selection
// references a present record: first remaining record, or none.
func (st *state) reselectAfterRemoval() {
	if st.selectedID == "" {
		return
	}
	if _, ok := st.findAnalysis(st.selectedID); ok {
		return
	}
	if len(st.analyses) > 0 {
		st.selectedID = st.analyses[0].ID
		return
	}
	st.selectedID = ""
}

func (st *state) clearChat() {
	st.chat = nil
}

func (st *state) appendTimeline(kind, message string) {
	st.timeline = append(st.timeline, types.TimelineEntry{At: st.now(), Kind: kind, Message: message})
}

func (st *state) setStatus(text string, isError bool) {
	st.status = &types.Status{Text: text, IsError: isError, ExpiresAt: st.now().Add(statusWindow)}
}

func (st *state) dropExpiredStatus() {
	if st.status != nil && st.now().After(st.status.ExpiresAt) {
		st.status = nil
	}
}

// patchMessage applies a partial update to the chat message at index.
// Out-of-range indexes are ignored; the message may have been cleared by a
// context switch while an image job was in flight.
func (st *state) patchMessage(index int, patch types.MessagePatch) {
	if index < 0 || index >= len(st.chat) {
		return
	}
	patch.Apply(&st.chat[index])
}

// snapshot copies the state for publication. Slices are copied so
// subscribers can never reach back into the canonical state.
func (st *state) snapshot() types.Snapshot {
	snap := types.Snapshot{
		Analyses:         append([]types.Analysis(nil), st.analyses...),
		SelectedID:       st.selectedID,
		Persona:          st.persona,
		Instruction:      st.instruction,
		Chat:             append([]types.ChatMessage(nil), st.chat...),
		Recording:        st.recording,
		TextTurnInFlight: st.textTurnInFlight,
		HasLastImages:    len(st.lastImages) > 0,
		Timeline:         append([]types.TimelineEntry(nil), st.timeline...),
		Processing:       st.processing,
	}
	if st.status != nil {
		status := *st.status
		snap.Status = &status
	}
	return snap
}

// command is a side effect produced by a state transition. Transitions
// stay pure mutations; the orchestrator executes commands after the
// mutation is applied and the new snapshot has been published.
type command interface{ isCommand() }

type rebuildVoiceCmd struct{}
type rebuildTextCmd struct{}

type imageJobCmd struct {
	generate bool
	prompt   string
	count    int
	msgIndex int
}

func (rebuildVoiceCmd) isCommand() {}
func (rebuildTextCmd) isCommand()  {}
func (imageJobCmd) isCommand()     {}
