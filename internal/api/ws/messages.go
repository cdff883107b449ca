package ws

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/optiqlab/scopecore/internal/stream"
)

// MessageType defines the type of a JSON control message on the
// stream socket. Frames themselves travel as binary messages.
type MessageType string

const (
	MessageTypeAuth        MessageType = "auth"
	MessageTypeAuthOK      MessageType = "auth_ok"
	MessageTypeAuthFailed  MessageType = "auth_failed"
	MessageTypeSubscribed  MessageType = "subscribed"
	MessageTypeUnsubscribe MessageType = "unsubscribe"
	MessageTypeError       MessageType = "error"
)

// Message is a JSON control message.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      any         `json:"data,omitempty"`
}

func NewMessage(msgType MessageType, data any) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// SubscribedData acknowledges a new subscription.
type SubscribedData struct {
	Device         string `json:"device"`
	SubscriptionID string `json:"subscription_id"`
	BufferCapacity int    `json:"buffer_capacity"`
}

// FrameHeader is the JSON header preceding the payload bytes in a
// binary frame message.
type FrameHeader struct {
	Device    string         `json:"device"`
	Seq       uint64         `json:"seq"`
	Timestamp time.Time      `json:"timestamp"`
	Width     int            `json:"width"`
	Height    int            `json:"height"`
	Format    string         `json:"format"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// EncodeFrame packs a frame into one binary websocket message:
// a 4-byte big-endian header length, the JSON header, then the raw
// payload.
func EncodeFrame(f *stream.Frame) ([]byte, error) {
	header, err := json.Marshal(FrameHeader{
		Device:    f.Device,
		Seq:       f.Seq,
		Timestamp: f.Timestamp,
		Width:     f.Width,
		Height:    f.Height,
		Format:    f.Format,
		Meta:      f.Meta,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal frame header: %w", err)
	}

	buf := make([]byte, 4+len(header)+len(f.Data))
	binary.BigEndian.PutUint32(buf[:4], uint32(len(header)))
	copy(buf[4:], header)
	copy(buf[4+len(header):], f.Data)
	return buf, nil
}

// DecodeFrame unpacks a binary frame message. Used by tests and
// client tooling.
func DecodeFrame(msg []byte) (*FrameHeader, []byte, error) {
	if len(msg) < 4 {
		return nil, nil, fmt.Errorf("frame message too short")
	}
	headerLen := binary.BigEndian.Uint32(msg[:4])
	if uint32(len(msg)-4) < headerLen {
		return nil, nil, fmt.Errorf("frame header length %d exceeds message", headerLen)
	}

	var header FrameHeader
	if err := json.Unmarshal(msg[4:4+headerLen], &header); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal frame header: %w", err)
	}
	return &header, msg[4+headerLen:], nil
}
