package realtime

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/emilythestrangee/stackit/backend/internal/auth"
	"github.com/emilythestrangee/stackit/backend/internal/logging"
)

type TokenParser interface {
	Parse(raw string) (auth.Identity, error)
}

// NewUpgrader accepts connections from the given origins; "*" allows any.
func NewUpgrader(origins []string) websocket.Upgrader {
	allowAll := slices.Contains(origins, "*")
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return allowAll || origin == "" || slices.Contains(origins, origin)
		},
	}
}

// ServeWS authenticates the handshake once, then hands the connection to the hub.
// The token comes from ?token= (browsers cannot set headers on WebSocket
// requests) or from a Bearer Authorization header.
func ServeWS(hub *Hub, tokens TokenParser, upgrader websocket.Upgrader) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.Query("token")
		if raw == "" {
			raw = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}

		id, err := tokens.Parse(raw)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logging.Ctx(c.Request.Context()).Warn().Err(err).Msg("websocket upgrade failed")
			return
		}
		NewClient(hub, conn, id.UserID).Start()
	}
}
