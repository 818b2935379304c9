package session

import (
	"context"
	"sync"

	"github.com/guilhermexp/notesbraingem/pkg/core"
	"github.com/guilhermexp/notesbraingem/pkg/core/types"
	"github.com/guilhermexp/notesbraingem/pkg/transport"
)

// connState is the lifecycle of one AI connection. Both channels run the
// same machine independently: Closed -> Opening -> Open -> Closed, with
// Opening falling back to Closed on error.
type connState string

const (
	connClosed  connState = "closed"
	connOpening connState = "opening"
	connOpen    connState = "open"
)

// voiceManager owns the at-most-one live voice connection.
type voiceManager struct {
	mu        sync.Mutex
	transport transport.VoiceTransport
	state     connState
	conn      transport.VoiceConnection
	gen       int // increments per open; stale event pumps detect replacement

	onEvent func(transport.VoiceEvent)
}

func newVoiceManager(t transport.VoiceTransport, onEvent func(transport.VoiceEvent)) *voiceManager {
	return &voiceManager{transport: t, state: connClosed, onEvent: onEvent}
}

// ensureOpen opens the connection if it is closed. A failed open leaves
// the connection fully closed; retry happens on the next explicit action.
func (m *voiceManager) ensureOpen(ctx context.Context, instruction string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ensureOpenLocked(ctx, instruction)
}

func (m *voiceManager) ensureOpenLocked(ctx context.Context, instruction string) error {
	if m.state == connOpen {
		return nil
	}
	m.state = connOpening
	conn, err := m.transport.Open(ctx, instruction)
	if err != nil {
		m.state = connClosed
		m.conn = nil
		return core.NewTransportOpenError("voice", err)
	}
	m.state = connOpen
	m.conn = conn
	m.gen++
	go m.pump(conn, m.gen)
	return nil
}

// rebuild closes any open connection and reopens with the current
// instruction. It completes fully before returning, so no turn is ever
// served against a stale instruction.
func (m *voiceManager) rebuild(ctx context.Context, instruction string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeLocked()
	return m.ensureOpenLocked(ctx, instruction)
}

// close is idempotent.
func (m *voiceManager) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeLocked()
}

func (m *voiceManager) closeLocked() {
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.state = connClosed
}

func (m *voiceManager) isOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == connOpen
}

// sendFrame forwards one audio frame to the open connection.
func (m *voiceManager) sendFrame(frame []byte) error {
	m.mu.Lock()
	conn := m.conn
	open := m.state == connOpen
	m.mu.Unlock()
	if !open || conn == nil {
		return core.NewPreconditionError("voice connection is not open")
	}
	return conn.SendAudioFrame(frame)
}

// pump forwards connection events until the channel closes. Events from a
// replaced connection are dropped. A terminal event, or the channel
// closing underneath us, drops the dead handle so the next explicit
// action reopens instead of talking to a corpse.
func (m *voiceManager) pump(conn transport.VoiceConnection, gen int) {
	for ev := range conn.Events() {
		m.mu.Lock()
		current := m.gen == gen && m.conn == conn
		m.mu.Unlock()
		if !current {
			return
		}
		if m.onEvent != nil {
			m.onEvent(ev)
		}
		if ev.Kind == transport.VoiceErrored || ev.Kind == transport.VoiceClosed {
			m.dropIfCurrent(conn, gen)
			return
		}
	}
	m.dropIfCurrent(conn, gen)
}

// dropIfCurrent closes and forgets conn unless it has already been
// replaced by a newer open.
func (m *voiceManager) dropIfCurrent(conn transport.VoiceConnection, gen int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen || m.conn != conn {
		return
	}
	_ = m.conn.Close()
	m.conn = nil
	m.state = connClosed
}

// textManager owns the at-most-one text chat session.
type textManager struct {
	mu        sync.Mutex
	transport transport.TextTransport
	state     connState
	sess      transport.TextSession
}

func newTextManager(t transport.TextTransport) *textManager {
	return &textManager{transport: t, state: connClosed}
}

func (m *textManager) ensureOpenLocked(ctx context.Context, instruction string, history []types.ChatMessage) error {
	if m.state == connOpen {
		return nil
	}
	m.state = connOpening
	sess, err := m.transport.Open(ctx, instruction, seedHistory(history))
	if err != nil {
		m.state = connClosed
		m.sess = nil
		return core.NewTransportOpenError("text", err)
	}
	m.state = connOpen
	m.sess = sess
	return nil
}

func (m *textManager) rebuild(ctx context.Context, instruction string, history []types.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeLocked()
	return m.ensureOpenLocked(ctx, instruction, history)
}

func (m *textManager) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeLocked()
}

func (m *textManager) closeLocked() {
	if m.sess != nil {
		_ = m.sess.Close()
		m.sess = nil
	}
	m.state = connClosed
}

func (m *textManager) isOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == connOpen
}

// acquire opens the session if needed and returns the live handle in one
// step. Holding the lock across both keeps a concurrent close from
// slipping between the open check and the caller's send.
func (m *textManager) acquire(ctx context.Context, instruction string, history []types.ChatMessage) (transport.TextSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureOpenLocked(ctx, instruction, history); err != nil {
		return nil, err
	}
	return m.sess, nil
}

// seedHistory filters prior chat for session replay: messages carrying
// image payloads are excluded because the provider session cannot replay
// them as plain turns.
func seedHistory(history []types.ChatMessage) []types.ChatMessage {
	out := make([]types.ChatMessage, 0, len(history))
	for _, msg := range history {
		if len(msg.ImageURLs) > 0 || msg.IsLoadingImages {
			continue
		}
		out = append(out, msg)
	}
	return out
}
