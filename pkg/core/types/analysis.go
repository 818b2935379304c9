package types

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// SourceType classifies where an analysis came from.
type SourceType string

const (
	SourceVideo       SourceType = "video"
	SourceRepository  SourceType = "repository"
	SourceSpreadsheet SourceType = "spreadsheet"
	SourceDocument    SourceType = "document"
	SourceSearch      SourceType = "search"
	SourceWebpage     SourceType = "webpage"
	SourceClip        SourceType = "clip"
	SourceWorkflow    SourceType = "workflow"
)

// Persona selects the assistant's working style.
type Persona string

const (
	PersonaGeneralist  Persona = "generalist"
	PersonaDataAnalyst Persona = "dataAnalyst"
)

// Analysis is one ingested knowledge source and its generated summary.
// Analyses are appended to the knowledge store in arrival order and that
// order is both display and composition order.
type Analysis struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Source         string     `json:"source"` // origin identifier: URL, filename, or topic
	Summary        string     `json:"summary"`
	Type           SourceType `json:"type"`
	Persona        Persona    `json:"persona,omitempty"`
	PreviewPayload string     `json:"preview_payload,omitempty"` // encoded blob, opaque to the core
	Tags           []string   `json:"tags,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// NewAnalysisID returns a fresh ULID. ULIDs sort by creation time, which
// keeps id order consistent with store order.
func NewAnalysisID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}
