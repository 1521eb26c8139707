package httpapi

import (
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/Maaady/RidePulse/internal/bus"
	"github.com/Maaady/RidePulse/internal/models"
)

var upgrader = websocket.Upgrader{}

// wsSession serializes writes to one websocket connection; bus handlers
// for different topics fire concurrently.
type wsSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *wsSession) send(env bus.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(env)
}

// handleWS bridges the realtime bus to a websocket client: every envelope
// on location_update and trip_status is forwarded as JSON. The
// subscriptions are released when the client goes away.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	clientID := mux.Vars(r)["client_id"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client
		s.logger.Warn("ws upgrade failed", "client_id", clientID, "error", err)
		return
	}
	sess := &wsSession{conn: conn}
	forward := func(env bus.Envelope) {
		if err := sess.send(env); err != nil {
			s.logger.Debug("ws send failed", "client_id", clientID, "error", err)
		}
	}
	unsubLoc := s.engine.Bus().Subscribe(models.TopicLocationUpdate, forward)
	unsubTrip := s.engine.Bus().Subscribe(models.TopicTripStatus, forward)

	s.logger.Info("ws client connected", "client_id", clientID)
	go func() {
		defer func() {
			unsubLoc()
			unsubTrip()
			conn.Close()
			s.logger.Info("ws client disconnected", "client_id", clientID)
		}()
		for {
			// clients only listen; reads just detect the close
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
