package api

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"consultor-integral/internal/recommend"
	"consultor-integral/internal/wizard"
)

// Session event types pushed over the websocket.
const (
	EventSnapshot            = "snapshot"
	EventStep                = "step"
	EventCalculationStarted  = "calculation_started"
	EventCalculationFinished = "calculation_finished"
	EventCalculationFailed   = "calculation_failed"
	EventReferenceSelected   = "reference_selected"
	EventConsumptionUpdated  = "consumption_updated"
	EventRestarted           = "restarted"
)

// SessionEvent describes websocket payloads emitted while a consultant works through a session.
type SessionEvent struct {
	Type        string                      `json:"type"`
	SessionID   string                      `json:"session_id"`
	Phase       wizard.Phase                `json:"phase"`
	Step        int                         `json:"step"`
	StepID      string                      `json:"step_id"`
	Product     string                      `json:"product,omitempty"`
	Reference   string                      `json:"reference,omitempty"`
	Consumption recommend.ConsumptionResult `json:"consumption,omitempty"`
	DurationMs  int64                       `json:"duration_ms,omitempty"`
	Message     string                      `json:"message,omitempty"`
	Timestamp   time.Time                   `json:"timestamp"`
}

// wsClient wraps a websocket connection with write locking.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// SessionNotifier keeps track of websocket clients per session and broadcasts session events.
type SessionNotifier struct {
	mu         sync.Mutex
	clients    map[string]map[*wsClient]struct{}
	lastStatus map[string]*SessionEvent
}

// NewSessionNotifier constructs a notifier instance.
func NewSessionNotifier() *SessionNotifier {
	return &SessionNotifier{
		clients:    make(map[string]map[*wsClient]struct{}),
		lastStatus: make(map[string]*SessionEvent),
	}
}

// Register attaches a websocket connection to a session and replays its last event.
func (n *SessionNotifier) Register(sessionID string, conn *websocket.Conn) *wsClient {
	client := &wsClient{conn: conn}
	n.mu.Lock()
	if n.clients[sessionID] == nil {
		n.clients[sessionID] = make(map[*wsClient]struct{})
	}
	n.clients[sessionID][client] = struct{}{}
	status := n.lastStatus[sessionID]
	n.mu.Unlock()

	if status != nil {
		_ = client.writeJSON(*status)
	}
	return client
}

// Unregister removes the websocket client from the session and closes the socket.
func (n *SessionNotifier) Unregister(sessionID string, client *wsClient) {
	if client == nil {
		return
	}
	n.mu.Lock()
	if set := n.clients[sessionID]; set != nil {
		delete(set, client)
		if len(set) == 0 {
			delete(n.clients, sessionID)
		}
	}
	n.mu.Unlock()
	_ = client.conn.Close()
}

// Broadcast sends the event to every client of its session.
func (n *SessionNotifier) Broadcast(event SessionEvent) {
	event.Timestamp = time.Now().UTC()

	n.mu.Lock()
	snapshot := event
	n.lastStatus[event.SessionID] = &snapshot

	for client := range n.clients[event.SessionID] {
		if err := client.writeJSON(event); err != nil {
			delete(n.clients[event.SessionID], client)
			_ = client.conn.Close()
		}
	}
	n.mu.Unlock()
}

// Forget drops the cached status of a session.
func (n *SessionNotifier) Forget(sessionID string) {
	n.mu.Lock()
	delete(n.lastStatus, sessionID)
	n.mu.Unlock()
}

func (n *SessionNotifier) clientCount(sessionID string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.clients[sessionID])
}

// LastStatus returns the most recent event of a session.
func (n *SessionNotifier) LastStatus(sessionID string) *SessionEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	status := n.lastStatus[sessionID]
	if status == nil {
		return nil
	}
	copy := *status
	return &copy
}

func (c *wsClient) writeJSON(payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(payload)
}
