// Package protocol defines the JSON frames exchanged on the /v1/session
// WebSocket. Client frames map one-to-one onto orchestrator intents;
// server frames carry state snapshots, listings, and errors. Voice audio
// travels as raw binary WebSocket frames in both directions.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/guilhermexp/notesbraingem/pkg/core/types"
)

type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badRequest(message, param string) *DecodeError {
	return &DecodeError{Code: "bad_request", Message: message, Param: param}
}

// Client frames.

type ClientAnalyze struct {
	Type          string `json:"type"`
	SourceOrTopic string `json:"source_or_topic"`
	Mode          string `json:"mode,omitempty"` // auto|search|document
	FileB64       string `json:"file_b64,omitempty"`
}

type ClientRemoveAnalysis struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type ClientUpdateSummary struct {
	Type    string `json:"type"`
	ID      string `json:"id"`
	Summary string `json:"summary"`
}

type ClientInsertImage struct {
	Type     string `json:"type"`
	ID       string `json:"id"`
	ImageRef string `json:"image_ref"`
}

type ClientSelectAnalysis struct {
	Type string `json:"type"`
	ID   string `json:"id"` // empty clears the selection
}

type ClientSetPersona struct {
	Type    string `json:"type"`
	Persona string `json:"persona"`
}

type ClientStartRecording struct {
	Type string `json:"type"`
}

type ClientStopRecording struct {
	Type string `json:"type"`
}

type ClientAudioFrame struct {
	Type    string `json:"type"`
	DataB64 string `json:"data_b64"`
}

type ClientTextMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type ClientReset struct {
	Type string `json:"type"`
}

type ClientSessionOp struct {
	Type string `json:"type"` // save_session|load_session|delete_session
	Name string `json:"name"`
}

type ClientListSessions struct {
	Type string `json:"type"`
}

type ClientSearchHistory struct {
	Type string `json:"type"`
}

type ClientClearSearchHistory struct {
	Type string `json:"type"`
}

// DecodeClientMessage parses one inbound text frame. The returned value
// is one of the Client* types above.
func DecodeClientMessage(data []byte) (any, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, badRequest("invalid json frame", "")
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return nil, badRequest("missing type", "type")
	}

	switch typ {
	case "analyze":
		var msg ClientAnalyze
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid analyze frame", "")
		}
		if strings.TrimSpace(msg.SourceOrTopic) == "" {
			return nil, badRequest("analyze.source_or_topic is required", "source_or_topic")
		}
		switch msg.Mode {
		case "", "auto", "search", "document":
		default:
			return nil, badRequest("analyze.mode must be one of auto|search|document", "mode")
		}
		return msg, nil
	case "remove_analysis":
		var msg ClientRemoveAnalysis
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid remove_analysis frame", "")
		}
		if strings.TrimSpace(msg.ID) == "" {
			return nil, badRequest("remove_analysis.id is required", "id")
		}
		return msg, nil
	case "update_summary":
		var msg ClientUpdateSummary
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid update_summary frame", "")
		}
		if strings.TrimSpace(msg.ID) == "" {
			return nil, badRequest("update_summary.id is required", "id")
		}
		return msg, nil
	case "insert_image":
		var msg ClientInsertImage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid insert_image frame", "")
		}
		if strings.TrimSpace(msg.ID) == "" {
			return nil, badRequest("insert_image.id is required", "id")
		}
		if strings.TrimSpace(msg.ImageRef) == "" {
			return nil, badRequest("insert_image.image_ref is required", "image_ref")
		}
		return msg, nil
	case "select_analysis":
		var msg ClientSelectAnalysis
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid select_analysis frame", "")
		}
		return msg, nil
	case "set_persona":
		var msg ClientSetPersona
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid set_persona frame", "")
		}
		switch types.Persona(msg.Persona) {
		case "", types.PersonaGeneralist, types.PersonaDataAnalyst:
		default:
			return nil, badRequest("set_persona.persona is not recognized", "persona")
		}
		return msg, nil
	case "start_recording":
		return ClientStartRecording{Type: typ}, nil
	case "stop_recording":
		return ClientStopRecording{Type: typ}, nil
	case "audio_frame":
		var msg ClientAudioFrame
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid audio_frame", "")
		}
		if strings.TrimSpace(msg.DataB64) == "" {
			return nil, badRequest("audio_frame.data_b64 is required", "data_b64")
		}
		return msg, nil
	case "text_message":
		var msg ClientTextMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid text_message frame", "")
		}
		if strings.TrimSpace(msg.Text) == "" {
			return nil, badRequest("text_message.text is required", "text")
		}
		return msg, nil
	case "reset":
		return ClientReset{Type: typ}, nil
	case "save_session", "load_session", "delete_session":
		var msg ClientSessionOp
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid "+typ+" frame", "")
		}
		if strings.TrimSpace(msg.Name) == "" {
			return nil, badRequest(typ+".name is required", "name")
		}
		return msg, nil
	case "list_sessions":
		return ClientListSessions{Type: typ}, nil
	case "search_history":
		return ClientSearchHistory{Type: typ}, nil
	case "clear_search_history":
		return ClientClearSearchHistory{Type: typ}, nil
	default:
		return nil, badRequest("unknown frame type", "type")
	}
}

// Server frames.

type ServerState struct {
	Type  string         `json:"type"` // "state"
	State types.Snapshot `json:"state"`
}

type ServerInterrupted struct {
	Type string `json:"type"` // "voice_interrupted"
}

type ServerError struct {
	Type    string `json:"type"` // "error"
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ServerSessions struct {
	Type  string   `json:"type"` // "sessions"
	Names []string `json:"names"`
}

type ServerSearchHistory struct {
	Type    string                     `json:"type"` // "search_history"
	Entries []types.SearchHistoryEntry `json:"entries"`
}
