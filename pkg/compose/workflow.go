package compose

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

// workflowEnvelope is the nested payload a workflow analysis stores in its
// summary field. Either Summary or SummaryBase64 carries the prose; the
// raw workflow definition rides alongside.
type workflowEnvelope struct {
	Summary       string          `json:"summary"`
	SummaryBase64 string          `json:"summary_base64"`
	WorkflowJSON  json.RawMessage `json:"workflow_json"`
}

const workflowDecodeFallback = "(workflow summary could not be decoded; the stored payload is malformed)"

// decodeWorkflowSummary unpacks a workflow summary envelope. It never
// fails: any malformed payload degrades to an explanatory placeholder so
// Compose stays total.
func decodeWorkflowSummary(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return workflowDecodeFallback
	}
	if !strings.HasPrefix(trimmed, "{") {
		// Plain prose summary, no envelope.
		return raw
	}

	var env workflowEnvelope
	if err := json.Unmarshal([]byte(trimmed), &env); err != nil {
		return workflowDecodeFallback
	}

	summary := env.Summary
	if summary == "" && env.SummaryBase64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(env.SummaryBase64)
		if err != nil {
			return workflowDecodeFallback
		}
		summary = string(decoded)
	}
	if summary == "" {
		return workflowDecodeFallback
	}

	if len(env.WorkflowJSON) > 0 {
		return summary + "\n\nWorkflow definition (JSON):\n" + string(env.WorkflowJSON)
	}
	return summary
}
