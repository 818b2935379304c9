package gemini

import (
	"context"

	"google.golang.org/genai"

	"github.com/guilhermexp/notesbraingem/pkg/transport"
)

// liveEventBuffer sizes the event channel; audio chunks arrive in bursts.
const liveEventBuffer = 64

// Voice returns the voice transport backed by the Gemini Live API.
func (c *Client) Voice() transport.VoiceTransport {
	return &voiceTransport{client: c}
}

type voiceTransport struct {
	client *Client
}

func (t *voiceTransport) Open(ctx context.Context, instruction string) (transport.VoiceConnection, error) {
	session, err := t.client.genai.Live.Connect(ctx, t.client.cfg.LiveModel, &genai.LiveConnectConfig{
		SystemInstruction:  systemContent(instruction),
		Tools:              searchTool(),
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
	})
	if err != nil {
		return nil, err
	}

	conn := &voiceConn{
		session: session,
		events:  make(chan transport.VoiceEvent, liveEventBuffer),
		done:    make(chan struct{}),
	}
	go conn.receiveLoop()
	return conn, nil
}

type voiceConn struct {
	session *genai.Session
	events  chan transport.VoiceEvent
	done    chan struct{}
}

func (c *voiceConn) SendAudioFrame(frame []byte) error {
	return c.session.SendRealtimeInput(genai.LiveRealtimeInput{
		Media: &genai.Blob{Data: frame, MIMEType: "audio/pcm;rate=16000"},
	})
}

func (c *voiceConn) Events() <-chan transport.VoiceEvent {
	return c.events
}

func (c *voiceConn) Close() error {
	select {
	case <-c.done:
		return nil
	default:
	}
	close(c.done)
	return c.session.Close()
}

// receiveLoop translates Live API server messages into transport events.
// It emits closed and exits when the session ends, from either side.
func (c *voiceConn) receiveLoop() {
	defer close(c.events)
	c.emit(transport.VoiceEvent{Kind: transport.VoiceOpened})

	for {
		msg, err := c.session.Receive()
		if err != nil {
			select {
			case <-c.done:
				// Local close; not an error.
			default:
				c.emit(transport.VoiceEvent{Kind: transport.VoiceErrored, Err: err})
			}
			c.emit(transport.VoiceEvent{Kind: transport.VoiceClosed})
			return
		}
		if msg == nil || msg.ServerContent == nil {
			continue
		}
		if msg.ServerContent.Interrupted {
			c.emit(transport.VoiceEvent{Kind: transport.VoiceInterrupted})
		}
		if turn := msg.ServerContent.ModelTurn; turn != nil {
			for _, part := range turn.Parts {
				if part.InlineData != nil && len(part.InlineData.Data) > 0 {
					c.emit(transport.VoiceEvent{Kind: transport.VoiceAudioChunk, Audio: part.InlineData.Data})
				}
			}
		}
	}
}

func (c *voiceConn) emit(ev transport.VoiceEvent) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}
