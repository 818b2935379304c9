package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/guilhermexp/notesbraingem/pkg/core/types"
	"github.com/guilhermexp/notesbraingem/pkg/gateway/live/protocol"
	"github.com/guilhermexp/notesbraingem/pkg/transport"
)

type fakeOrc struct {
	mu    sync.Mutex
	calls []string
	audio [][]byte
}

func (o *fakeOrc) record(call string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, call)
}

func (o *fakeOrc) recorded() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.calls...)
}

func (o *fakeOrc) Subscribe(func(types.Snapshot)) func() { return func() {} }
func (o *fakeOrc) Snapshot() types.Snapshot              { return types.Snapshot{} }

func (o *fakeOrc) AnalyzeContent(_ context.Context, src string, file []byte, mode transport.AnalyzeMode) error {
	o.record("analyze:" + src + ":" + string(mode))
	return nil
}
func (o *fakeOrc) RemoveAnalysis(_ context.Context, id string) error {
	o.record("remove:" + id)
	return nil
}
func (o *fakeOrc) UpdateAnalysisSummary(_ context.Context, id, summary string) error {
	o.record("update:" + id)
	return nil
}
func (o *fakeOrc) InsertImageIntoAnalysis(_ context.Context, id, ref string) error {
	o.record("insert:" + id)
	return nil
}
func (o *fakeOrc) SetSelectedAnalysisID(_ context.Context, id string) error {
	o.record("select:" + id)
	return nil
}
func (o *fakeOrc) SetPersona(_ context.Context, p types.Persona) error {
	o.record("persona:" + string(p))
	return nil
}
func (o *fakeOrc) StartRecording(context.Context) error { o.record("start"); return nil }
func (o *fakeOrc) StopRecording(context.Context)        { o.record("stop") }
func (o *fakeOrc) SendAudioFrame(frame []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.audio = append(o.audio, frame)
	return nil
}
func (o *fakeOrc) SendTextMessage(_ context.Context, text string) error {
	o.record("text:" + text)
	return nil
}
func (o *fakeOrc) ResetSession(context.Context) { o.record("reset") }
func (o *fakeOrc) Close()                       {}
func (o *fakeOrc) SaveSession(_ context.Context, name string) error {
	o.record("save:" + name)
	return nil
}
func (o *fakeOrc) LoadSession(_ context.Context, name string) error {
	o.record("load:" + name)
	return nil
}
func (o *fakeOrc) DeleteSession(_ context.Context, name string) error {
	o.record("delete:" + name)
	return nil
}
func (o *fakeOrc) ListSessions(context.Context) ([]string, error) {
	return []string{"alpha", "beta"}, nil
}
func (o *fakeOrc) SearchHistory(context.Context) ([]types.SearchHistoryEntry, error) {
	return nil, nil
}
func (o *fakeOrc) ClearSearchHistory(context.Context) error { o.record("clear_history"); return nil }

func newBridge(orc Orchestrator) *LiveSession {
	s := New(Deps{
		Config:          Config{MaxAudioFrameBytes: 16, MaxUploadBytes: 1024},
		NewOrchestrator: func(func(transport.VoiceEvent)) Orchestrator { return orc },
	})
	s.orc = s.deps.NewOrchestrator(s.onVoiceEvent)
	return s
}

func dispatch(t *testing.T, s *LiveSession, raw string) {
	t.Helper()
	msg, err := protocol.DecodeClientMessage([]byte(raw))
	if err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	s.handleMessage(context.Background(), msg)
}

func waitCall(t *testing.T, orc *fakeOrc, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, c := range orc.recorded() {
			if c == want {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("call %q never made; got %v", want, orc.recorded())
}

func TestHandleMessageRoutesIntents(t *testing.T) {
	orc := &fakeOrc{}
	s := newBridge(orc)

	dispatch(t, s, `{"type":"remove_analysis","id":"a1"}`)
	dispatch(t, s, `{"type":"select_analysis","id":"a2"}`)
	dispatch(t, s, `{"type":"set_persona","persona":"dataAnalyst"}`)
	dispatch(t, s, `{"type":"start_recording"}`)
	dispatch(t, s, `{"type":"stop_recording"}`)
	dispatch(t, s, `{"type":"reset"}`)
	dispatch(t, s, `{"type":"clear_search_history"}`)

	want := []string{"remove:a1", "select:a2", "persona:dataAnalyst", "start", "stop", "reset", "clear_history"}
	got := orc.recorded()
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("calls[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestHandleMessageAsyncIntents(t *testing.T) {
	orc := &fakeOrc{}
	s := newBridge(orc)

	dispatch(t, s, `{"type":"analyze","source_or_topic":"https://example.com","mode":"search"}`)
	waitCall(t, orc, "analyze:https://example.com:search")

	dispatch(t, s, `{"type":"text_message","text":"hello"}`)
	waitCall(t, orc, "text:hello")

	dispatch(t, s, `{"type":"load_session","name":"work"}`)
	waitCall(t, orc, "load:work")
}

func TestHandleAudioFrame(t *testing.T) {
	orc := &fakeOrc{}
	s := newBridge(orc)

	payload := base64.StdEncoding.EncodeToString([]byte{1, 2, 3})
	dispatch(t, s, `{"type":"audio_frame","data_b64":"`+payload+`"}`)

	orc.mu.Lock()
	frames := len(orc.audio)
	orc.mu.Unlock()
	if frames != 1 {
		t.Fatalf("audio frames = %d, want 1", frames)
	}
}

func TestHandleAudioFrameTooLarge(t *testing.T) {
	orc := &fakeOrc{}
	s := newBridge(orc)

	s.handleAudio(make([]byte, 17))
	orc.mu.Lock()
	frames := len(orc.audio)
	orc.mu.Unlock()
	if frames != 0 {
		t.Fatal("oversized frame forwarded")
	}

	select {
	case frame := <-s.outboundPriority:
		var se protocol.ServerError
		if err := json.Unmarshal(frame.payload, &se); err != nil || se.Type != "error" || se.Code != "too_large" {
			t.Fatalf("error frame = %s", frame.payload)
		}
	default:
		t.Fatal("no error frame queued")
	}
}

func TestVoiceEventsBecomeFrames(t *testing.T) {
	orc := &fakeOrc{}
	s := newBridge(orc)

	s.onVoiceEvent(transport.VoiceEvent{Kind: transport.VoiceAudioChunk, Audio: []byte{7, 8}})
	s.onVoiceEvent(transport.VoiceEvent{Kind: transport.VoiceInterrupted})

	frame := <-s.outboundPriority
	if !frame.binary {
		t.Fatalf("audio frame not binary: %s", frame.payload)
	}
	if len(frame.payload) != 2 || frame.payload[0] != 7 {
		t.Fatalf("audio payload = %v", frame.payload)
	}

	frame = <-s.outboundPriority
	if frame.binary {
		t.Fatal("interrupt frame sent as binary")
	}
	var interrupted protocol.ServerInterrupted
	if err := json.Unmarshal(frame.payload, &interrupted); err != nil || interrupted.Type != "voice_interrupted" {
		t.Fatalf("second frame = %s", frame.payload)
	}
}

func TestListSessionsReply(t *testing.T) {
	orc := &fakeOrc{}
	s := newBridge(orc)

	dispatch(t, s, `{"type":"list_sessions"}`)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case frame := <-s.outboundNormal:
			var reply protocol.ServerSessions
			if err := json.Unmarshal(frame.payload, &reply); err == nil && reply.Type == "sessions" {
				if len(reply.Names) != 2 || reply.Names[0] != "alpha" {
					t.Fatalf("names = %v", reply.Names)
				}
				return
			}
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
	t.Fatal("sessions reply never arrived")
}
