// Package client implements the peer-side connection: dialing the
// server, speaking the msgpack envelope protocol, and driving a local
// ClientPredictor/InterpolationRenderer pair from the frame stream it
// receives. Grounded on the teacher's ClientConnection
// (cmd/gameserver/main.go) — same readPump/writePump split over
// buffered channels — generalized from an accepted connection to a
// dialed one.
package client

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/fsync/server/internal/fixedpoint"
	"github.com/fsync/server/internal/frame"
	"github.com/fsync/server/internal/predictor"
	"github.com/fsync/server/internal/protocol"
	"github.com/fsync/server/internal/sim"
)

// sendBufferSize bounds outgoing backpressure the same way the
// teacher's ClientConnection.sendChan does.
const sendBufferSize = 256

// pingInterval/pongWait mirror the teacher's keepalive cadence.
const (
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
)

// Session owns one client's connection to the lockstep server: the
// WebSocket transport, the local predictor, and the render-facing
// interpolator. Callers drive it via Dial, then read frames off
// Frames() or call Predictor()/Renderer() for local gameplay.
type Session struct {
	conn *websocket.Conn
	log  *logrus.Entry

	playerID string
	roomID   string
	PlayerID uint16 // numeric index, assigned by the server on joinSuccess

	sendChan chan []byte
	done     chan struct{}

	gameState *sim.GameState
	predictor *predictor.ClientPredictor
	renderer  *predictor.InterpolationRenderer
	frames    chan *frame.Frame
	otherIDs  []uint16

	// bufferSize implements the spec's client-side latency-hiding
	// window: a frame is only handed to the predictor once bufferSize
	// later frames have arrived behind it, absorbing network jitter at
	// the cost of bufferSize/tickRate seconds of added input lag.
	bufferSize  int
	frameBuffer []*frame.Frame
}

// Dial connects to the server at addr (e.g. "localhost:8080"), and
// authenticates as playerID joining roomID. Blocks until joinSuccess
// arrives or the connection fails. The server's joinSuccess carries the
// authoritative SessionConfig (spec §6/§9): Dial configures
// internal/fixedpoint's global precision and builds this peer's
// GameState/predictor from it, rather than trusting a caller-supplied
// config that might disagree with the server's.
func Dial(addr, playerID, roomID string, log *logrus.Logger) (*Session, protocol.JoinSuccessPayload, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/ws"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), http.Header{})
	if err != nil {
		return nil, protocol.JoinSuccessPayload{}, fmt.Errorf("client: dial %s: %w", addr, err)
	}

	s := &Session{
		conn:     conn,
		log:      log.WithField("player", playerID),
		playerID: playerID,
		roomID:   roomID,
		sendChan: make(chan []byte, sendBufferSize),
		done:     make(chan struct{}),
		frames:   make(chan *frame.Frame, frame.MaxReadyQueue),
	}

	go s.writePump()

	authBytes, err := protocol.EncodeEnvelope(protocol.TypeAuth, protocol.AuthPayload{PlayerID: playerID, RoomID: roomID})
	if err != nil {
		conn.Close()
		return nil, protocol.JoinSuccessPayload{}, err
	}
	if err := s.Send(authBytes); err != nil {
		conn.Close()
		return nil, protocol.JoinSuccessPayload{}, err
	}

	_, raw, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return nil, protocol.JoinSuccessPayload{}, fmt.Errorf("client: awaiting joinSuccess: %w", err)
	}
	env, err := protocol.DecodeEnvelope(raw)
	if err != nil {
		conn.Close()
		return nil, protocol.JoinSuccessPayload{}, err
	}
	if env.Type != protocol.TypeJoinSuccess {
		conn.Close()
		return nil, protocol.JoinSuccessPayload{}, fmt.Errorf("client: expected joinSuccess, got %q", env.Type)
	}
	var joined protocol.JoinSuccessPayload
	if err := protocol.DecodePayload(env, &joined); err != nil {
		conn.Close()
		return nil, protocol.JoinSuccessPayload{}, err
	}

	fixedpoint.Configure(joined.Config.FractionBits)
	engineCfg := engineConfigFromSessionConfig(joined.Config)
	moveSpeed := fixedpoint.FromRaw(joined.Config.PlayerSpeed)

	s.gameState = sim.NewGameStateWithConfig(engineCfg)
	s.bufferSize = joined.Config.BufferSize
	s.PlayerID = joined.PlayerID
	s.otherIDs = otherPlayers(joined.Players, joined.PlayerID)
	s.predictor = predictor.NewClientPredictor(s.gameState, joined.PlayerID, moveSpeed)
	s.renderer = predictor.NewInterpolationRenderer(s.gameState)

	go s.readPump()

	return s, joined, nil
}

// engineConfigFromSessionConfig reconstructs the physics/entity
// constants the server is authoritative for from the wire-safe raw
// fixedpoint values in a joinSuccess payload.
func engineConfigFromSessionConfig(cfg protocol.SessionConfig) sim.EngineConfig {
	return sim.EngineConfig{
		Gravity:      fixedpoint.FromRaw(cfg.Gravity),
		Friction:     fixedpoint.FromRaw(cfg.Friction),
		MaxVelocity:  fixedpoint.FromRaw(cfg.MaxVelocity),
		WorldWidth:   fixedpoint.FromRaw(cfg.WorldWidth),
		WorldHeight:  fixedpoint.FromRaw(cfg.WorldHeight),
		CellSize:     fixedpoint.FromRaw(cfg.CellSize),
		MoveSpeed:    fixedpoint.FromRaw(cfg.PlayerSpeed),
		EntityWidth:  fixedpoint.FromRaw(cfg.EntityWidth),
		EntityHeight: fixedpoint.FromRaw(cfg.EntityHeight),
		AttackRange:  fixedpoint.FromRaw(cfg.AttackRange),
		AttackDamage: cfg.AttackDamage,
		DefaultHP:    cfg.DefaultHP,
	}
}

func otherPlayers(all []uint16, self uint16) []uint16 {
	others := make([]uint16, 0, len(all))
	for _, id := range all {
		if id != self {
			others = append(others, id)
		}
	}
	return others
}

// Predictor returns the session's client-side predictor.
func (s *Session) Predictor() *predictor.ClientPredictor { return s.predictor }

// Renderer returns the session's interpolation renderer.
func (s *Session) Renderer() *predictor.InterpolationRenderer { return s.renderer }

// Frames returns the channel of confirmed/force-committed frames
// received from the server, in order.
func (s *Session) Frames() <-chan *frame.Frame { return s.frames }

// SendInput encodes and sends one frame's local input.
func (s *Session) SendInput(frameID uint32, inputData []byte) error {
	data, err := protocol.EncodeEnvelope(protocol.TypeInput, protocol.InputPayload{FrameID: frameID, InputData: inputData})
	if err != nil {
		return err
	}
	return s.Send(data)
}

// Reconnect requests every frame committed after lastFrame.
func (s *Session) Reconnect(lastFrame uint32) error {
	data, err := protocol.EncodeEnvelope(protocol.TypeReconnect, protocol.ReconnectPayload{LastFrame: lastFrame})
	if err != nil {
		return err
	}
	return s.Send(data)
}

// Leave tells the server this session is intentionally leaving, then
// closes the connection.
func (s *Session) Leave() error {
	data, err := protocol.EncodeEnvelope(protocol.TypeLeave, protocol.LeavePayload{})
	if err != nil {
		return err
	}
	if sendErr := s.Send(data); sendErr != nil {
		return sendErr
	}
	return s.Close()
}

// Send queues a raw envelope for transmission. Non-blocking: drops the
// message if the send buffer is full, matching the teacher's
// ClientConnection.Send.
func (s *Session) Send(data []byte) error {
	select {
	case s.sendChan <- data:
		return nil
	case <-s.done:
		return fmt.Errorf("client: connection closed")
	default:
		return nil
	}
}

// Close shuts down the session. Safe to call multiple times.
func (s *Session) Close() error {
	select {
	case <-s.done:
		return nil
	default:
		close(s.done)
	}
	return s.conn.Close()
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer s.conn.Close()

	for {
		select {
		case <-s.done:
			return
		case msg := <-s.sendChan:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Session) readPump() {
	defer s.Close()
	defer close(s.frames)

	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-s.done:
			return
		default:
		}

		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.log.WithError(err).Warn("read error")
			}
			return
		}
		s.dispatch(raw)
	}
}

func (s *Session) dispatch(raw []byte) {
	env, err := protocol.DecodeEnvelope(raw)
	if err != nil {
		s.log.WithError(err).Warn("malformed envelope")
		return
	}

	switch env.Type {
	case protocol.TypeGameFrame:
		var payload protocol.GameFramePayload
		if err := protocol.DecodePayload(env, &payload); err != nil {
			return
		}
		s.deliverFrame(&frame.Frame{FrameID: payload.FrameID, Inputs: payload.Inputs, Confirmed: payload.Confirmed})

	case protocol.TypeSyncFrames:
		var payload protocol.SyncFramesPayload
		if err := protocol.DecodePayload(env, &payload); err != nil {
			return
		}
		for i := range payload.Frames {
			gf := payload.Frames[i]
			s.deliverFrame(&frame.Frame{FrameID: gf.FrameID, Inputs: gf.Inputs, Confirmed: gf.Confirmed})
		}

	case protocol.TypePlayerJoined, protocol.TypePlayerLeft, protocol.TypeGameStart:
		// Roster/lifecycle events — the caller observes these via the
		// frame stream's player set rather than a dedicated channel.

	case protocol.TypeError:
		var payload protocol.ErrorPayload
		if err := protocol.DecodePayload(env, &payload); err == nil {
			s.log.WithField("code", payload.Code).Warn(payload.Message)
		}
	}
}

func (s *Session) deliverFrame(f *frame.Frame) {
	select {
	case s.frames <- f:
	case <-s.done:
	}
}
