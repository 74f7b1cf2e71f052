package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type wsClient struct {
	conn          *websocket.Conn
	participantID string
	mu            sync.Mutex
}

func (c *wsClient) send(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

type wsHub struct {
	mu     sync.Mutex
	groups map[string]map[*wsClient]struct{}
}

func newWSHub() *wsHub {
	return &wsHub{groups: make(map[string]map[*wsClient]struct{})}
}

func (h *wsHub) Add(sessionID string, client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group := h.groups[sessionID]
	if group == nil {
		group = make(map[*wsClient]struct{})
		h.groups[sessionID] = group
	}
	group[client] = struct{}{}
}

func (h *wsHub) Remove(sessionID string, client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group := h.groups[sessionID]
	if group == nil {
		return
	}
	delete(group, client)
	if len(group) == 0 {
		delete(h.groups, sessionID)
	}
	_ = client.conn.Close()
}

func (h *wsHub) Clients(sessionID string) []*wsClient {
	h.mu.Lock()
	defer h.mu.Unlock()
	group := h.groups[sessionID]
	clients := make([]*wsClient, 0, len(group))
	for client := range group {
		clients = append(clients, client)
	}
	return clients
}

// SessionChanged implements game.Notifier: every connected client gets a
// fresh snapshot rendered for its own participant, so role secrecy holds
// on the push path too.
func (s *Server) SessionChanged(sessionID string) {
	clients := s.ws.Clients(sessionID)
	if len(clients) == 0 {
		return
	}
	ctx := context.Background()
	session, err := s.store.SessionByID(ctx, sessionID)
	if err != nil {
		return
	}
	participants, err := s.store.Participants(ctx, sessionID)
	if err != nil {
		return
	}
	for _, client := range clients {
		payload := map[string]any{
			"type":    "session_update",
			"session": snapshot(session, participants, client.participantID),
		}
		if err := client.send(payload); err != nil {
			s.ws.Remove(sessionID, client)
		}
	}
}

func (s *Server) handleWebsocket(c *gin.Context) {
	var uri sessionURI
	if !bindURI(c, &uri) {
		return
	}
	if _, err := s.store.SessionByID(c.Request.Context(), uri.ID); err != nil {
		s.respondError(c, err)
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade failed session_id=%s error=%v", uri.ID, err)
		return
	}
	client := &wsClient{
		conn:          conn,
		participantID: c.Query("participant_id"),
	}
	s.ws.Add(uri.ID, client)

	// Push the current state right away, then hold the connection open
	// until the client goes away. Inbound messages are ignored; all game
	// input arrives over the REST API.
	s.SessionChanged(uri.ID)
	go func() {
		defer s.ws.Remove(uri.ID, client)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
