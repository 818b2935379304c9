// Package compose synthesizes the derived system instruction from the
// current knowledge-store selection and persona. Compose is pure and
// total: identical inputs produce identical output and no input makes it
// fail. Unparsable nested payloads degrade to placeholder text.
package compose

import (
	"fmt"
	"strings"

	"github.com/guilhermexp/notesbraingem/pkg/core/types"
)

// Compose builds the system instruction for the given analyses (in store
// order) and persona. Zero analyses selects the context-free instruction,
// one analysis selects a type-specific template, two or more produce a
// composite knowledge block. The tool-grammar trailer is always appended.
func Compose(analyses []types.Analysis, persona types.Persona) string {
	var b strings.Builder

	if preamble := personaPreamble(persona); preamble != "" {
		b.WriteString(preamble)
		b.WriteString("\n\n")
	}

	switch len(analyses) {
	case 0:
		b.WriteString(genericInstruction)
	case 1:
		b.WriteString(singleInstruction(analyses[0], persona))
	default:
		b.WriteString(compositeInstruction(analyses))
	}

	b.WriteString("\n\n")
	b.WriteString(toolGrammar)
	return b.String()
}

func personaPreamble(persona types.Persona) string {
	switch persona {
	case types.PersonaDataAnalyst:
		return personaDataAnalystPreamble
	default:
		return ""
	}
}

func singleInstruction(a types.Analysis, persona types.Persona) string {
	summary := a.Summary
	if a.Type == types.SourceWorkflow {
		summary = decodeWorkflowSummary(a.Summary)
	}

	switch {
	case persona == types.PersonaDataAnalyst:
		return fmt.Sprintf(dataAnalystTemplate, a.Title, summary)
	case a.Type == types.SourceRepository:
		return fmt.Sprintf(repositoryTemplate, a.Title, summary)
	case a.Type == types.SourceVideo || a.Type == types.SourceClip:
		return fmt.Sprintf(videoTemplate, a.Title, summary)
	case a.Type == types.SourceWorkflow:
		return fmt.Sprintf(workflowTemplate, a.Title, summary)
	default:
		return fmt.Sprintf(defaultTemplate, a.Title, summary)
	}
}

func compositeInstruction(analyses []types.Analysis) string {
	var b strings.Builder
	b.WriteString(compositeHeader)
	for i, a := range analyses {
		summary := a.Summary
		if a.Type == types.SourceWorkflow {
			summary = decodeWorkflowSummary(a.Summary)
		}
		fmt.Fprintf(&b, "\n--- KNOWLEDGE SOURCE %d ---\nTitle: %s\nType: %s\nContent:\n%s\n", i+1, a.Title, a.Type, summary)
	}
	b.WriteString(compositeFooter)
	return b.String()
}
