package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"execution-core/internal/events"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsFrame struct {
	Topic   string `json:"topic"`
	Payload any    `json:"payload"`
}

// websocket streams order updates and degradation changes to the client.
func (s *Server) websocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}
	defer conn.Close()

	if s.Bus == nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"bus not ready"}`))
		return
	}

	orderStream, unsubOrders := s.Bus.Subscribe(events.EventOrderUpdate, 100)
	defer unsubOrders()
	degradeStream, unsubDegrade := s.Bus.Subscribe(events.EventDegradationChange, 100)
	defer unsubDegrade()

	for {
		var frame wsFrame
		select {
		case msg, ok := <-orderStream:
			if !ok {
				return
			}
			frame = wsFrame{Topic: string(events.EventOrderUpdate), Payload: msg}
		case msg, ok := <-degradeStream:
			if !ok {
				return
			}
			frame = wsFrame{Topic: string(events.EventDegradationChange), Payload: msg}
		}
		if err := conn.WriteJSON(frame); err != nil {
			log.Printf("ws write error: %v", err)
			return
		}
	}
}
