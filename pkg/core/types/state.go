package types

import "time"

// TimelineEntry is one line of the append-only session event log.
type TimelineEntry struct {
	At      time.Time `json:"at"`
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
}

// Processing reports progress of a long-running external operation, such
// as content analysis.
type Processing struct {
	Active   bool   `json:"active"`
	Step     string `json:"step,omitempty"`
	Progress int    `json:"progress"` // 0-100
}

// Status is a transient user-visible banner. It auto-expires: the
// orchestrator drops it on the first mutation after ExpiresAt.
type Status struct {
	Text      string    `json:"text"`
	IsError   bool      `json:"is_error"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Snapshot is an immutable copy of the session state published to
// subscribers on every mutation. Volatile connection handles are not part
// of it.
type Snapshot struct {
	Analyses         []Analysis      `json:"analyses"`
	SelectedID       string          `json:"selected_id,omitempty"` // empty means no active context
	Persona          Persona         `json:"persona,omitempty"`
	Instruction      string          `json:"instruction"`
	Chat             []ChatMessage   `json:"chat"`
	Recording        bool            `json:"recording"`
	TextTurnInFlight bool            `json:"text_turn_in_flight"`
	HasLastImages    bool            `json:"has_last_images"`
	Timeline         []TimelineEntry `json:"timeline"`
	Processing       Processing      `json:"processing"`
	Status           *Status         `json:"status,omitempty"`
}

// SavedSession is the persisted form of a session: the knowledge store and
// the context around it, without chat history or volatile handles.
type SavedSession struct {
	Name       string          `json:"name"`
	Analyses   []Analysis      `json:"analyses"`
	SelectedID string          `json:"selected_id,omitempty"`
	Persona    Persona         `json:"persona,omitempty"`
	Timeline   []TimelineEntry `json:"timeline,omitempty"`
	SavedAt    time.Time       `json:"saved_at"`
}

// SearchHistoryEntry records one past search/analysis topic.
type SearchHistoryEntry struct {
	Query string    `json:"query"`
	At    time.Time `json:"at"`
}
