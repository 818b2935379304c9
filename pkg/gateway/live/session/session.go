// Package session bridges one /v1/session WebSocket connection onto an
// orchestrator: inbound frames become intents, outbound frames carry
// state snapshots and live voice audio.
package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/guilhermexp/notesbraingem/pkg/core"
	"github.com/guilhermexp/notesbraingem/pkg/core/types"
	"github.com/guilhermexp/notesbraingem/pkg/gateway/live/protocol"
	"github.com/guilhermexp/notesbraingem/pkg/transport"
)

const (
	outboundPriorityQueueSize = 32
	outboundNormalQueueSize   = 64
)

// Orchestrator is the intent surface the bridge drives. The concrete
// implementation lives in pkg/session.
type Orchestrator interface {
	Subscribe(fn func(types.Snapshot)) func()
	Snapshot() types.Snapshot

	AnalyzeContent(ctx context.Context, sourceOrTopic string, file []byte, mode transport.AnalyzeMode) error
	RemoveAnalysis(ctx context.Context, id string) error
	UpdateAnalysisSummary(ctx context.Context, id, summary string) error
	InsertImageIntoAnalysis(ctx context.Context, id, imageRef string) error
	SetSelectedAnalysisID(ctx context.Context, id string) error
	SetPersona(ctx context.Context, persona types.Persona) error

	StartRecording(ctx context.Context) error
	StopRecording(ctx context.Context)
	SendAudioFrame(frame []byte) error
	SendTextMessage(ctx context.Context, text string) error

	ResetSession(ctx context.Context)
	Close()

	SaveSession(ctx context.Context, name string) error
	LoadSession(ctx context.Context, name string) error
	DeleteSession(ctx context.Context, name string) error
	ListSessions(ctx context.Context) ([]string, error)
	SearchHistory(ctx context.Context) ([]types.SearchHistoryEntry, error)
	ClearSearchHistory(ctx context.Context) error
}

type Config struct {
	MaxJSONMessageBytes int64
	MaxAudioFrameBytes  int
	MaxUploadBytes      int64
	PingInterval        time.Duration
	WriteTimeout        time.Duration
	ReadTimeout         time.Duration
}

type Deps struct {
	Config Config
	Logger *slog.Logger

	// NewOrchestrator builds the connection's orchestrator with its voice
	// event sink already bound. Each connection owns exactly one.
	NewOrchestrator func(onVoiceEvent func(transport.VoiceEvent)) Orchestrator
}

// LiveSession is one connected client.
type LiveSession struct {
	cfg    Config
	logger *slog.Logger
	deps   Deps

	orc Orchestrator

	outboundPriority chan outboundFrame
	outboundNormal   chan outboundFrame
	closed           atomic.Bool
}

func New(deps Deps) *LiveSession {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &LiveSession{
		cfg:              deps.Config,
		logger:           logger,
		deps:             deps,
		outboundPriority: make(chan outboundFrame, outboundPriorityQueueSize),
		outboundNormal:   make(chan outboundFrame, outboundNormalQueueSize),
	}
}

// Run services the connection until the client disconnects or ctx is
// canceled. It owns the websocket and the orchestrator lifecycle.
func (s *LiveSession) Run(ctx context.Context, ws *websocket.Conn) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.orc = s.deps.NewOrchestrator(s.onVoiceEvent)
	defer s.orc.Close()

	unsub := s.orc.Subscribe(func(snap types.Snapshot) {
		s.sendState(snap)
	})
	defer unsub()

	writerDone := make(chan error, 1)
	go func() {
		w := &connWriter{
			ws:           ws,
			ctx:          ctx,
			audio:        s.outboundPriority,
			state:        s.outboundNormal,
			pingInterval: s.cfg.PingInterval,
			writeTimeout: s.cfg.WriteTimeout,
		}
		writerDone <- w.Run()
	}()

	if s.cfg.MaxJSONMessageBytes > 0 {
		ws.SetReadLimit(s.cfg.MaxJSONMessageBytes)
	}
	ws.SetPongHandler(func(string) error {
		return s.refreshReadDeadline(ws)
	})

	// First frame the client sees is the current state.
	s.sendState(s.orc.Snapshot())

	readErr := s.readLoop(ctx, ws)
	s.closed.Store(true)
	cancel()
	<-writerDone

	if readErr != nil && !websocket.IsCloseError(readErr, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return readErr
	}
	return nil
}

func (s *LiveSession) refreshReadDeadline(ws *websocket.Conn) error {
	if s.cfg.ReadTimeout <= 0 {
		return nil
	}
	return ws.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
}

func (s *LiveSession) readLoop(ctx context.Context, ws *websocket.Conn) error {
	for {
		if err := s.refreshReadDeadline(ws); err != nil {
			return err
		}
		messageType, data, err := ws.ReadMessage()
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}

		// Raw binary frames are the low-overhead audio path.
		if messageType == websocket.BinaryMessage {
			s.handleAudio(data)
			continue
		}

		msg, err := protocol.DecodeClientMessage(data)
		if err != nil {
			s.sendDecodeError(err)
			continue
		}
		s.handleMessage(ctx, msg)
	}
}

func (s *LiveSession) handleMessage(ctx context.Context, msg any) {
	switch m := msg.(type) {
	case protocol.ClientAnalyze:
		var file []byte
		if m.FileB64 != "" {
			decoded, err := base64.StdEncoding.DecodeString(m.FileB64)
			if err != nil {
				s.sendError("bad_request", "analyze.file_b64 is not valid base64")
				return
			}
			if s.cfg.MaxUploadBytes > 0 && int64(len(decoded)) > s.cfg.MaxUploadBytes {
				s.sendError("too_large", "uploaded file exceeds the configured limit")
				return
			}
			file = decoded
		}
		mode := transport.AnalyzeMode(m.Mode)
		if mode == "" {
			mode = transport.ModeAuto
		}
		// Analysis is slow; keep the read loop serving audio meanwhile.
		go s.runIntent("analyze", func() error {
			return s.orc.AnalyzeContent(ctx, m.SourceOrTopic, file, mode)
		})
	case protocol.ClientRemoveAnalysis:
		s.runIntent("remove_analysis", func() error { return s.orc.RemoveAnalysis(ctx, m.ID) })
	case protocol.ClientUpdateSummary:
		s.runIntent("update_summary", func() error { return s.orc.UpdateAnalysisSummary(ctx, m.ID, m.Summary) })
	case protocol.ClientInsertImage:
		s.runIntent("insert_image", func() error { return s.orc.InsertImageIntoAnalysis(ctx, m.ID, m.ImageRef) })
	case protocol.ClientSelectAnalysis:
		s.runIntent("select_analysis", func() error { return s.orc.SetSelectedAnalysisID(ctx, m.ID) })
	case protocol.ClientSetPersona:
		s.runIntent("set_persona", func() error { return s.orc.SetPersona(ctx, types.Persona(m.Persona)) })
	case protocol.ClientStartRecording:
		s.runIntent("start_recording", func() error { return s.orc.StartRecording(ctx) })
	case protocol.ClientStopRecording:
		s.orc.StopRecording(ctx)
	case protocol.ClientAudioFrame:
		decoded, err := base64.StdEncoding.DecodeString(m.DataB64)
		if err != nil {
			s.sendError("bad_request", "audio_frame.data_b64 is not valid base64")
			return
		}
		s.handleAudio(decoded)
	case protocol.ClientTextMessage:
		go s.runIntent("text_message", func() error { return s.orc.SendTextMessage(ctx, m.Text) })
	case protocol.ClientReset:
		s.orc.ResetSession(ctx)
	case protocol.ClientSessionOp:
		switch m.Type {
		case "save_session":
			go s.runIntent("save_session", func() error { return s.orc.SaveSession(ctx, m.Name) })
		case "load_session":
			go s.runIntent("load_session", func() error { return s.orc.LoadSession(ctx, m.Name) })
		case "delete_session":
			go s.runIntent("delete_session", func() error { return s.orc.DeleteSession(ctx, m.Name) })
		}
	case protocol.ClientListSessions:
		go func() {
			names, err := s.orc.ListSessions(ctx)
			if err != nil {
				s.sendIntentError("list_sessions", err)
				return
			}
			s.sendJSON(protocol.ServerSessions{Type: "sessions", Names: names}, false)
		}()
	case protocol.ClientSearchHistory:
		go func() {
			entries, err := s.orc.SearchHistory(ctx)
			if err != nil {
				s.sendIntentError("search_history", err)
				return
			}
			s.sendJSON(protocol.ServerSearchHistory{Type: "search_history", Entries: entries}, false)
		}()
	case protocol.ClientClearSearchHistory:
		s.runIntent("clear_search_history", func() error { return s.orc.ClearSearchHistory(ctx) })
	}
}

func (s *LiveSession) runIntent(name string, fn func() error) {
	if err := fn(); err != nil {
		s.sendIntentError(name, err)
	}
}

func (s *LiveSession) handleAudio(frame []byte) {
	if s.cfg.MaxAudioFrameBytes > 0 && len(frame) > s.cfg.MaxAudioFrameBytes {
		s.sendError("too_large", "audio frame exceeds the configured limit")
		return
	}
	if err := s.orc.SendAudioFrame(frame); err != nil {
		s.sendIntentError("audio_frame", err)
	}
}

func (s *LiveSession) onVoiceEvent(ev transport.VoiceEvent) {
	switch ev.Kind {
	case transport.VoiceAudioChunk:
		// Voice audio goes out as raw binary frames, mirroring the
		// inbound mic path.
		s.sendAudio(ev.Audio)
	case transport.VoiceInterrupted:
		s.sendJSON(protocol.ServerInterrupted{Type: "voice_interrupted"}, true)
	}
}

func (s *LiveSession) sendAudio(chunk []byte) {
	if s.closed.Load() || len(chunk) == 0 {
		return
	}
	select {
	case s.outboundPriority <- outboundFrame{payload: chunk, binary: true}:
	default:
		s.logger.Warn("outbound queue full, dropping audio chunk")
	}
}

func (s *LiveSession) sendState(snap types.Snapshot) {
	s.sendJSON(protocol.ServerState{Type: "state", State: snap}, false)
}

func (s *LiveSession) sendDecodeError(err error) {
	code := "bad_request"
	if de, ok := err.(*protocol.DecodeError); ok && de.Code != "" {
		code = de.Code
	}
	s.sendError(code, err.Error())
}

func (s *LiveSession) sendIntentError(name string, err error) {
	code := "internal"
	var ce *core.Error
	if errors.As(err, &ce) {
		code = string(ce.Type)
	}
	s.logger.Warn("intent failed", "intent", name, "error", err)
	s.sendError(code, err.Error())
}

func (s *LiveSession) sendError(code, message string) {
	s.sendJSON(protocol.ServerError{Type: "error", Code: code, Message: message}, true)
}

func (s *LiveSession) sendJSON(v any, priority bool) {
	if s.closed.Load() {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("marshal outbound frame", "error", err)
		return
	}
	frame := outboundFrame{payload: payload}
	queue := s.outboundNormal
	if priority {
		queue = s.outboundPriority
	}
	select {
	case queue <- frame:
	default:
		// A slow client sheds frames rather than stalling the producer;
		// every state frame is a full snapshot so the next one catches
		// the client up.
		s.logger.Warn("outbound queue full, dropping frame", "priority", priority)
	}
}
