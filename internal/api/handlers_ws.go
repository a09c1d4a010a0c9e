package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dgallion1/docmark/internal/highlight"
	"github.com/dgallion1/docmark/internal/overlay"
	"github.com/dgallion1/docmark/internal/sessions"
	"github.com/gorilla/websocket"
)

const wsWriteWait = 10 * time.Second


// wsRequest is the incoming message format. Key fields are flattened so a
// browser can forward its KeyboardEvent as-is.
type wsRequest struct {
	Type string `json:"type"` // "keydown", "input" or "state"
	overlay.Key
	Value string `json:"value"`
}

// wsMessage is the outgoing message format.
type wsMessage struct {
	Type   string         `json:"type"` // "overlay", "scan", "focus", "blur", "state" or "error"
	Action overlay.Action `json:"action,omitempty"`
	Open   *bool          `json:"open,omitempty"`
	Value  *string        `json:"value,omitempty"`
	Query  *string        `json:"query,omitempty"`
	Total  *int           `json:"total,omitempty"`
	Index  *int           `json:"index,omitempty"`
	Cursor *int           `json:"cursor,omitempty"`
	Text   string         `json:"text,omitempty"`
	State  *sessions.Info `json:"state,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// wsClient is one websocket watching a session. It observes the session
// and serializes writes, since events arrive from timer goroutines too.
type wsClient struct {
	mu   sync.Mutex
	conn *websocket.Conn
	log  *slog.Logger
}

func (c *wsClient) send(msg wsMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := c.conn.WriteJSON(msg); err != nil {
		c.log.Debug("websocket write", "error", err)
	}
}

func (c *wsClient) sendError(msg string) {
	c.send(wsMessage{Type: "error", Error: msg})
}

func (c *wsClient) Scanned(query string, total int) {
	c.send(wsMessage{Type: "scan", Query: &query, Total: &total})
}

func (c *wsClient) Focused(m highlight.Match, cursor, total int) {
	c.send(wsMessage{Type: "focus", Index: &m.Index, Cursor: &cursor, Total: &total, Text: m.Text()})
}

func (c *wsClient) Blurred(m highlight.Match) {
	c.send(wsMessage{Type: "blur", Index: &m.Index})
}

// handleSessionWS drives a session's search box from browser key events
// and streams the resulting scans, focus changes and blurs back.
func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.sessionFromRequest(w, r)
	if !ok {
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade", "error", err)
		return
	}
	defer conn.Close()

	log := s.log.With("session_id", entry.ID)
	client := &wsClient{conn: conn, log: log}
	remove := entry.Events.Add(client)
	defer remove()
	log.Info("websocket connected", "watchers", entry.Events.Len())

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("websocket read", "error", err)
			}
			return
		}
		entry.Touch()

		var req wsRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			client.sendError("invalid message format")
			continue
		}

		switch req.Type {
		case "keydown":
			if req.Key.Key == "" {
				client.sendError("key is required")
				continue
			}
			if action := entry.Controller.KeyDown(req.Key); action != overlay.ActionNone {
				client.sendOverlay(action, entry.Controller.State())
			}
		case "input":
			entry.Controller.Input(req.Value)
		case "state":
			info := entry.Info(0)
			client.send(wsMessage{Type: "state", State: &info})
		default:
			client.sendError("unknown message type: " + req.Type)
		}
	}
}

func (c *wsClient) sendOverlay(action overlay.Action, st overlay.State) {
	c.send(wsMessage{Type: "overlay", Action: action, Open: &st.Open, Value: &st.Value})
}

// checkOrigin admits non-browser clients, pages served from this host and
// the configured CORS origins. An origin entry may hold one "*" wildcard.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	origin = strings.ToLower(origin)
	for _, allowed := range s.cfg.CORSOrigins {
		allowed = strings.ToLower(strings.TrimSpace(allowed))
		if allowed == "*" || allowed == origin {
			return true
		}
		prefix, suffix, ok := strings.Cut(allowed, "*")
		if ok && len(origin) >= len(prefix)+len(suffix) &&
			strings.HasPrefix(origin, prefix) && strings.HasSuffix(origin, suffix) {
			return true
		}
	}
	return false
}
