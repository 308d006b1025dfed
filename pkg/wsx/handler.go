package wsx

import (
	"context"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

const localsUserKey = "ws_user"

// UpgradeMiddleware authenticates the handshake before the protocol upgrade.
// The token comes from the "token" query parameter or the Authorization
// header; browser clients can only use the former.
func (g *Gateway) UpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		token := c.Query("token")
		if token == "" {
			token = c.Get("Authorization")
		}
		userID, err := g.Authenticate(token)
		if err != nil {
			return err
		}

		c.Locals(localsUserKey, userID)
		return c.Next()
	}
}

// Handler serves an authenticated socket: joins the room, replays parked
// events and blocks on the read loop until the client goes away.
func (g *Gateway) Handler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, _ := conn.Locals(localsUserKey).(string)
		if userID == "" {
			_ = conn.Close()
			return
		}

		ctx := context.Background()
		g.Attach(ctx, userID, conn)
		defer g.Detach(userID, conn)

		// Inbound frames are ignored; the loop exists to notice the close.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
}
