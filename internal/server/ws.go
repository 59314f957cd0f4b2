package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/njmorgan/loom/internal/bus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The API binds to localhost by default; origin checks are the
	// deployment proxy's job.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	wsSendBuffer   = 64
	wsWriteTimeout = 10 * time.Second
)

// handleEvents streams bus events to the client as JSON text frames.
// ?replay=1 sends the retained history before live events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeError(w, http.StatusNotFound, "event stream disabled")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	send := make(chan bus.Event, wsSendBuffer)
	subID := s.events.Subscribe("", func(e bus.Event) {
		// Slow clients lose events rather than stalling the bus.
		select {
		case send <- e:
		default:
		}
	})
	defer s.events.Unsubscribe(subID)

	if r.URL.Query().Get("replay") == "1" {
		for _, e := range s.events.History() {
			if err := writeEvent(conn, e); err != nil {
				return
			}
		}
	}

	// Reads only serve to notice the peer going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case e := <-send:
			if err := writeEvent(conn, e); err != nil {
				return
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, e bus.Event) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(e)
}
