package handler

import (
	"github.com/Ambrosio03/TFG/internal/realtime"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// PedidosWS upgrades to a websocket that receives every order event.
func PedidosWS(hub *realtime.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := hub.Serve(c.Writer, c.Request); err != nil {
			log.Warn().Err(err).Msg("websocket upgrade failed")
		}
	}
}
