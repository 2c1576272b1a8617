package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"bluecut/internal/events"
)

const (
	eventsBuffer     = 32
	eventsPingPeriod = 30 * time.Second
	eventsWriteWait  = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// JobEvents streams the caller's job events over a websocket.
func (a *App) JobEvents(w http.ResponseWriter, r *http.Request) {
	if a.Events == nil {
		a.error(w, http.StatusNotFound, "NOT_FOUND", "Not found")
		return
	}
	userID := a.currentUserID(r)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.Logger.Debug().Err(err).Msg("events: upgrade failed")
		return
	}
	defer conn.Close()

	ch, cancel := a.Events.Subscribe(eventsBuffer, events.ForUser(userID))
	defer cancel()
	log := a.Logger.With().Str("user_id", userID).Logger()
	log.Debug().Int("subscribers", a.Events.Subscribers()).Msg("events: client connected")

	// The client never sends anything useful; reading surfaces the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(eventsPingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-closed:
			log.Debug().Msg("events: client disconnected")
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(eventsWriteWait))
			if err := conn.WriteJSON(e); err != nil {
				log.Debug().Err(err).Msg("events: write failed")
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(eventsWriteWait)); err != nil {
				return
			}
		}
	}
}
