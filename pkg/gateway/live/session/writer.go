package session

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

type wsWriter interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

type outboundFrame struct {
	payload []byte
	binary  bool
}

// connWriter serializes all WebSocket writes. The audio lane (voice
// chunks, interruptions, errors) always wins over the state lane
// (snapshots, listings), so a burst of large snapshots cannot delay
// audio playback.
type connWriter struct {
	ws    wsWriter
	ctx   context.Context
	audio <-chan outboundFrame
	state <-chan outboundFrame

	pingInterval time.Duration
	writeTimeout time.Duration
}

func (w *connWriter) Run() error {
	if w == nil || w.ws == nil {
		return nil
	}
	if w.pingInterval <= 0 {
		w.pingInterval = 20 * time.Second
	}
	if w.writeTimeout <= 0 {
		w.writeTimeout = 5 * time.Second
	}

	ping := time.NewTicker(w.pingInterval)
	defer ping.Stop()

	// A state frame pulled off its channel but not yet written. Held
	// back whenever the audio lane has something ready.
	var heldState *outboundFrame

	for {
		if w.ctx != nil && w.ctx.Err() != nil {
			w.closeNormally()
			return nil
		}

		if wrote, err := w.flushAudio(); err != nil {
			return err
		} else if wrote {
			continue
		}

		if heldState != nil {
			frame := *heldState
			heldState = nil
			if err := w.write(frame); err != nil {
				return err
			}
			continue
		}

		if w.audio == nil && w.state == nil {
			return nil
		}

		select {
		case <-ping.C:
			if err := w.sendPing(); err != nil {
				return err
			}
		case frame, ok := <-w.audio:
			if !ok {
				w.audio = nil
				continue
			}
			if err := w.write(frame); err != nil {
				return err
			}
		case frame, ok := <-w.state:
			if !ok {
				w.state = nil
				continue
			}
			heldState = &frame
		}
	}
}

// flushAudio writes at most one queued audio frame, reporting whether
// it did. Called before every state write so audio keeps preempting.
func (w *connWriter) flushAudio() (bool, error) {
	select {
	case frame, ok := <-w.audio:
		if !ok {
			w.audio = nil
			return true, nil
		}
		return true, w.write(frame)
	default:
		return false, nil
	}
}

func (w *connWriter) write(frame outboundFrame) error {
	if len(frame.payload) == 0 {
		return nil
	}
	if err := w.ws.SetWriteDeadline(time.Now().Add(w.writeTimeout)); err != nil {
		return err
	}
	kind := websocket.TextMessage
	if frame.binary {
		kind = websocket.BinaryMessage
	}
	return w.ws.WriteMessage(kind, frame.payload)
}

func (w *connWriter) sendPing() error {
	deadline := time.Now().Add(w.writeTimeout)
	return w.ws.WriteControl(websocket.PingMessage, []byte("ping"), deadline)
}

func (w *connWriter) closeNormally() {
	deadline := time.Now().Add(w.writeTimeout)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = w.ws.WriteControl(websocket.CloseMessage, msg, deadline)
	_ = w.ws.Close()
}
