package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"lighter-mcp/internal/orders"
)

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsWriteWait  = 10 * time.Second
)

// handleWebSocket serves GET /mcp/ws. The session context is fixed at
// upgrade time; every text frame afterwards is one JSON-RPC request.
func (s *Server) handleWebSocket(c *gin.Context) {
	header := c.Request.Header.Clone()
	// Browsers cannot set headers on a websocket handshake.
	if header.Get("Authorization") == "" {
		if token := c.Query("access_token"); token != "" {
			header.Set("Authorization", "Bearer "+token)
		}
	}
	sessionID := header.Get(HeaderSession)
	if sessionID == "" {
		sessionID = c.Query("session_id")
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	respHeader := http.Header{}
	respHeader.Set(HeaderSession, sessionID)
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, respHeader)
	if err != nil {
		requestLog(c, s.log).WithError(err).Warn("websocket upgrade failed")
		return
	}

	log := requestLog(c, s.log).WithField("session_id", sessionID)
	log.Info("websocket session opened")
	s.serveConn(c.Request.Context(), conn, s.caller(header, sessionID), log)
	log.Info("websocket session closed")
}

func (s *Server) serveConn(parent context.Context, conn *websocket.Conn, caller orders.Caller, log *logrus.Entry) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	defer conn.Close()

	conn.SetReadLimit(maxBodyBytes)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	// Replies are written from this goroutine only; the ping loop uses
	// WriteControl, which gorilla allows concurrently.
	go func() {
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
					log.WithError(err).Debug("websocket ping failed")
					cancel()
					return
				}
			}
		}
	}()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Warn("websocket read error")
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))

		var resp *rpcResponse
		var req rpcRequest
		if err := json.Unmarshal(data, &req); err != nil {
			resp = errorResponse(nil, codeParseError, "Parse error")
		} else {
			resp = s.dispatch(ctx, caller, &req)
		}
		if resp == nil {
			continue
		}

		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(resp); err != nil {
			log.WithError(err).Warn("websocket write failed")
			return
		}
	}
}
