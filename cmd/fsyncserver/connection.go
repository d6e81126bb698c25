package main

import (
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/fsync/server/internal/protocol"
	"github.com/fsync/server/internal/room"
)

// wsConnection adapts a *websocket.Conn to room.Connection, grounded on
// the teacher's ClientConnection: a buffered send channel drained by a
// dedicated writer goroutine, so a slow peer never blocks the room's
// broadcast.
type wsConnection struct {
	ws       *websocket.Conn
	sendChan chan []byte
	done     chan struct{}
}

const connSendBuffer = 256

func newWSConnection(ws *websocket.Conn) *wsConnection {
	return &wsConnection{ws: ws, sendChan: make(chan []byte, connSendBuffer), done: make(chan struct{})}
}

func (c *wsConnection) Send(data []byte) error {
	select {
	case c.sendChan <- data:
		return nil
	case <-c.done:
		return fmt.Errorf("connection closed")
	default:
		return nil // drop under backpressure, matching the teacher's Send
	}
}

func (c *wsConnection) Close() error {
	select {
	case <-c.done:
		return nil
	default:
		close(c.done)
	}
	return c.ws.Close()
}

func (c *wsConnection) RemoteAddr() string { return c.ws.RemoteAddr().String() }

func (c *wsConnection) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	defer c.Close()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.sendChan:
			c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.ws.WriteMessage(websocket.BinaryMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// connHandler drives one accepted WebSocket's lifecycle: the auth
// handshake, then dispatch of input/leave/reconnect envelopes to the
// joined room. One handler per connection, grounded on
// cmd/gameserver/main.go's ClientConnection/handleMessage split.
type connHandler struct {
	srv  *server
	conn *wsConnection
	log  *logrus.Entry

	sess *room.Session
	r    *room.Room

	validator *protocol.InputValidator
}

func newConnHandler(s *server, ws *websocket.Conn) *connHandler {
	conn := newWSConnection(ws)
	return &connHandler{
		srv:       s,
		conn:      conn,
		log:       s.log.WithField("remote", ws.RemoteAddr().String()),
		validator: s.validator(),
	}
}

func (c *connHandler) run() {
	go c.conn.writePump()
	defer c.cleanup()

	c.conn.ws.SetReadLimit(int64(protocol.MaxInputSize) * 2)

	if !c.authenticate() {
		return
	}

	c.conn.ws.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.ws.SetPongHandler(func(string) error {
		c.conn.ws.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		_, raw, err := c.conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.WithError(err).Debug("read error")
			}
			return
		}
		if c.sess != nil && !c.sess.AllowMessage() {
			continue // over the per-connection message-rate budget; drop silently
		}
		c.dispatch(raw)
	}
}

// authenticate enforces the spec's 5s auth handshake: the first
// message must be a valid auth envelope naming a ≤64-char playerId and
// roomId, or the connection is closed with the matching code.
func (c *connHandler) authenticate() bool {
	c.conn.ws.SetReadDeadline(time.Now().Add(authTimeout))

	_, raw, err := c.conn.ws.ReadMessage()
	if err != nil {
		c.closeWithCode(protocol.CloseAuthTimeout, "auth timeout")
		return false
	}

	env, err := protocol.DecodeEnvelope(raw)
	if err != nil || env.Type != protocol.TypeAuth {
		c.closeWithCode(protocol.CloseAuthFailed, "first message must be auth")
		return false
	}

	var auth protocol.AuthPayload
	if err := protocol.DecodePayload(env, &auth); err != nil {
		c.closeWithCode(protocol.CloseAuthFailed, "malformed auth payload")
		return false
	}
	if len(auth.PlayerID) == 0 || len(auth.PlayerID) > maxPlayerIDLen || len(auth.RoomID) == 0 || len(auth.RoomID) > maxRoomIDLen {
		c.closeWithCode(protocol.CloseAuthFailed, "invalid playerId/roomId")
		return false
	}

	r := c.srv.matchmaker.GetOrCreateRoom(auth.RoomID)
	if r == nil {
		c.closeWithCode(protocol.CloseAuthFailed, "server at room capacity")
		return false
	}

	sess, success, err := r.Join(auth.PlayerID, c.conn)
	if err != nil {
		c.closeWithCode(protocol.CloseRoomFull, "room is full")
		return false
	}

	c.r = r
	c.sess = sess
	c.log = c.log.WithField("player", auth.PlayerID).WithField("room", auth.RoomID)

	if err := sess.Send(protocol.TypeJoinSuccess, success); err != nil {
		c.log.WithError(err).Warn("joinSuccess send failed")
	}
	c.log.Info("player authenticated")
	return true
}

func (c *connHandler) dispatch(raw []byte) {
	env, err := protocol.DecodeEnvelope(raw)
	if err != nil {
		return
	}

	switch env.Type {
	case protocol.TypeInput:
		c.handleInput(env)
	case protocol.TypeLeave:
		c.cleanup()
	case protocol.TypeReconnect:
		c.handleReconnect(env)
	}
}

func (c *connHandler) handleInput(env protocol.Envelope) {
	var payload protocol.InputPayload
	if err := protocol.DecodePayload(env, &payload); err != nil {
		return
	}
	if !c.validator.ValidateSize(payload.InputData) {
		return
	}

	input, err := protocol.Decode(payload.InputData)
	if err != nil {
		return
	}
	if !c.validator.Validate(c.sess.PlayerIndex, input, c.r.CurrentFrameID()) {
		if c.srv.metrics != nil {
			c.srv.metrics.InputsRejected.WithLabelValues("anticheat").Inc()
		}
		return
	}

	c.r.HandleInput(c.sess.PlayerIndex, payload.FrameID, payload.InputData)
}

func (c *connHandler) handleReconnect(env protocol.Envelope) {
	var payload protocol.ReconnectPayload
	if err := protocol.DecodePayload(env, &payload); err != nil {
		return
	}
	c.r.Reconnect(c.sess, payload.LastFrame)
}

func (c *connHandler) closeWithCode(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	c.conn.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(5*time.Second))
	c.conn.Close()
}

func (c *connHandler) cleanup() {
	if c.sess != nil && c.r != nil {
		c.r.Leave(c.sess.PlayerIndex)
		c.validator.Forget(c.sess.PlayerIndex)
		c.sess = nil
	}
	c.conn.Close()
}
