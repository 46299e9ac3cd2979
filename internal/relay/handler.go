package relay

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/auth"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/metrics"
)

// ServeWS upgrades authenticated requests to relay connections. The access
// token comes from the token query parameter or a bearer header, since
// browsers cannot set headers on a websocket handshake.
func (h *Hub) ServeWS(issuer *auth.Issuer, allowedOrigin string) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowedOrigin == "" || allowedOrigin == "*" || origin == allowedOrigin
		},
	}
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			authz := c.GetHeader("Authorization")
			if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				token = strings.TrimSpace(authz[len("bearer "):])
			}
		}
		claims, err := issuer.Parse(token, auth.UseAccess)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			h.logger.Debug("relay: upgrade failed", "error", err)
			return
		}

		client := newClient(h, conn, claims.Actor(), sendBuffer)
		metrics.RelayConnections.Inc()
		h.logger.Info("relay: connected", "user_id", claims.Subject)

		// The request context ends when this handler returns.
		ctx := context.WithoutCancel(c.Request.Context())
		go client.writePump()
		go func() {
			defer metrics.RelayConnections.Dec()
			client.readPump(ctx)
			h.logger.Info("relay: disconnected", "user_id", client.actor.ID)
		}()
	}
}
