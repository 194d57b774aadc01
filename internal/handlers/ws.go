package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/JosteinSandKjellsen/hero-app-sub000/internal/ws"
)

type WSHandler struct {
	hub *ws.Hub
}

func NewWSHandler(hub *ws.Hub) *WSHandler {
	return &WSHandler{hub: hub}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleCarousel subscribes a display screen to accepted-hero events.
func (h *WSHandler) HandleCarousel(c *gin.Context) {
	h.subscribe(c, ws.TopicCarousel)
}

// HandleStats subscribes a dashboard to live stat updates.
func (h *WSHandler) HandleStats(c *gin.Context) {
	h.subscribe(c, ws.TopicStats)
}

func (h *WSHandler) subscribe(c *gin.Context, topic string) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "websocket upgrade failed"})
		return
	}

	h.hub.AddConnection(topic, conn)

	// Reads are discarded; the hub only pushes. A read error means the
	// client went away.
	go func() {
		defer h.hub.RemoveConnection(topic, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
