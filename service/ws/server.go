package ws

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/DoraeChat/DoraeChat-BE-sub000/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// HandleWS upgrades the request and runs the connection until the client
// goes away. All per-connection state lives in the manager; the handler
// goroutine doubles as the read pump.
func HandleWS(mgr *Manager, router *Router) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ws, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
		if err != nil {
			logger.Warnf("[ws] upgrade: %v", err)
			return
		}

		c := NewClient(uuid.NewString(), ws)
		mgr.Register(c)
		go c.writePump()
		logger.Infof("[ws] connected conn=%s remote=%s", c.ConnID, ws.RemoteAddr())

		ws.SetReadLimit(maxFrameSize)
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(pongWait))
		})

		reqCtx := ctx.Request.Context()
		for {
			mt, raw, err := ws.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.Debugf("[ws] read conn=%s: %v", c.ConnID, err)
				}
				break
			}
			if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
				continue
			}
			router.Dispatch(reqCtx, c, raw)
		}

		mgr.OnDisconnect(reqCtx, c.ConnID)
		logger.Infof("[ws] disconnected conn=%s user=%s", c.ConnID, c.UserID)
	}
}
