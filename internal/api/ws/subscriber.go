package ws

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/optiqlab/scopecore/internal/device"
	"github.com/optiqlab/scopecore/internal/stream"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum control message size allowed from peer
	maxMessageSize = 4096

	// Time allowed for the authentication message
	authWait = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: restrict origins once the GUI host is known
		return true
	},
}

// TokenValidator authenticates the first message on a stream socket.
type TokenValidator interface {
	ValidateToken(token string) (string, error)
}

// Subscriber is one remote client's stream connection to a single
// frame-producing device: a registration in the device's client
// registry plus the read/write pumps moving buffered frames onto the
// wire at the client's own pace.
type Subscriber struct {
	dev    *device.DataDevice
	conn   *websocket.Conn
	reg    *stream.Registration
	logger *zap.Logger
}

// ServeStream upgrades the request, authenticates the client and
// registers it for the device's frame stream.
func ServeStream(dev *device.DataDevice, validator TokenValidator, w http.ResponseWriter, r *http.Request, logger *zap.Logger) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("WebSocket upgrade error",
			zap.Error(err),
			zap.String("remote_addr", r.RemoteAddr))
		return
	}

	if validator != nil {
		if !authenticate(conn, validator, logger) {
			conn.Close()
			return
		}
	}

	reg, err := dev.Subscribe(conn.RemoteAddr().String())
	if err != nil {
		conn.WriteJSON(NewMessage(MessageTypeError, err.Error()))
		conn.Close()
		return
	}

	sub := &Subscriber{
		dev:    dev,
		conn:   conn,
		reg:    reg,
		logger: logger,
	}

	conn.WriteJSON(NewMessage(MessageTypeSubscribed, SubscribedData{
		Device:         dev.Name,
		SubscriptionID: reg.ID.String(),
		BufferCapacity: reg.Buffer.Capacity(),
	}))

	go sub.writePump()
	go sub.readPump()
}

func authenticate(conn *websocket.Conn, validator TokenValidator, logger *zap.Logger) bool {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(authWait))

	var msg struct {
		Type  MessageType `json:"type"`
		Token string      `json:"token"`
	}
	if err := conn.ReadJSON(&msg); err != nil || msg.Type != MessageTypeAuth || msg.Token == "" {
		conn.WriteJSON(NewMessage(MessageTypeAuthFailed, "first message must be authentication"))
		return false
	}

	principal, err := validator.ValidateToken(msg.Token)
	if err != nil {
		logger.Warn("Stream authentication failed",
			zap.String("remote_addr", conn.RemoteAddr().String()))
		conn.WriteJSON(NewMessage(MessageTypeAuthFailed, "invalid or expired token"))
		return false
	}

	conn.SetReadDeadline(time.Time{})
	conn.WriteJSON(NewMessage(MessageTypeAuthOK, principal))
	return true
}

// readPump consumes control messages until the peer goes away. An
// unsubscribe message ends the subscription cleanly; a read error is a
// transport failure.
func (s *Subscriber) readPump() {
	defer s.conn.Close()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg Message
		if err := s.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure) {
				s.logger.Warn("Stream read error",
					zap.Error(err),
					zap.String("remote_addr", s.conn.RemoteAddr().String()))
			}
			s.dev.HandleTransportFailure(s.conn.RemoteAddr().String())
			return
		}

		if msg.Type == MessageTypeUnsubscribe {
			s.dev.Unsubscribe(s.reg.ID)
			s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "unsubscribed"),
				time.Now().Add(writeWait))
			return
		}
	}
}

// writePump drains the registration's frame buffer toward the
// transport. It suspends on transport backpressure without ever
// touching the producer; a write failure unsubscribes this client
// only.
func (s *Subscriber) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case <-s.reg.Buffer.Ready():
			for {
				frame, ok := s.reg.Buffer.TryPop()
				if !ok {
					break
				}
				if !s.writeFrame(frame) {
					return
				}
			}
			if s.reg.Buffer.Closed() {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.dev.HandleTransportFailure(s.conn.RemoteAddr().String())
				return
			}
		}
	}
}

func (s *Subscriber) writeFrame(frame *stream.Frame) bool {
	payload, err := EncodeFrame(frame)
	if err != nil {
		s.logger.Error("Failed to encode frame",
			zap.String("device", frame.Device),
			zap.Uint64("seq", frame.Seq),
			zap.Error(err))
		return true
	}

	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
		s.dev.HandleTransportFailure(s.conn.RemoteAddr().String())
		return false
	}
	return true
}
