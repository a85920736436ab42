package handlers

import (
	"log"
	"net/http"

	"github.com/FelipeVergaraChico/ping-presenca/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	hub *ws.Hub
}

func NewWSHandler(hub *ws.Hub) *WSHandler {
	return &WSHandler{hub: hub}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleWebSocket godoc
// @Summary      WebSocket feed for session updates
// @Description  Pushes state, expiry and generation frames on every code lifecycle transition
// @Tags         websocket
// @Param        public_id path string true "Session public ID"
// @Router       /ws/session/{public_id} [get]
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	publicID := c.Param("public_id")
	if publicID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid session id"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}

	h.hub.Subscribe(publicID, conn)
	defer h.hub.Unsubscribe(publicID, conn)

	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			break
		}
	}
}
