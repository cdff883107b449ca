package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/optiqlab/scopecore/internal/device"
	"github.com/optiqlab/scopecore/internal/driver"
	"github.com/optiqlab/scopecore/internal/trigger"
	"github.com/optiqlab/scopecore/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func floatPtr(v float64) *float64 { return &v }

type stubValidator struct{}

func (stubValidator) ValidateToken(token string) (string, error) {
	if token == "good-token" {
		return "operator", nil
	}
	return "", errors.New("invalid token")
}

func streamProfile() *types.InstrumentProfileDefinition {
	return &types.InstrumentProfileDefinition{
		Profile: types.ProfileInfo{ID: "stream-cam", Vendor: "t", Model: "m", Version: "1"},
		Kind:    types.KindCamera,
		Triggering: &types.TriggeringConfig{
			Combinations: []types.TriggerCombination{
				{Mode: "once", Type: "software"},
				{Mode: "continuous", Type: "software"},
			},
			BufferCapacity: 16,
			FramePeriodMs:  5,
		},
		Properties: []types.PropertyDefinition{
			{
				Name: "exposure_ms", DataType: types.DataTypeFloat64,
				Min: floatPtr(0.01), Max: floatPtr(100),
				Access: types.AccessTypeReadWrite, LiveAdjustable: true, Default: 10.0,
			},
			{Name: "width", DataType: types.DataTypeInt, Access: types.AccessTypeReadOnly, Default: 8},
			{Name: "height", DataType: types.DataTypeInt, Access: types.AccessTypeReadOnly, Default: 8},
		},
	}
}

func newStreamFixture(t *testing.T) (*device.DataDevice, string) {
	t.Helper()
	logger := zap.NewNop()

	cam, err := driver.NewSimCamera(streamProfile(), logger)
	require.NoError(t, err)
	dd := device.NewDataDevice("cam0", streamProfile(), cam, nil, logger)
	t.Cleanup(func() { _ = dd.Shutdown() })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeStream(dd, stubValidator{}, w, r, logger)
	}))
	t.Cleanup(srv.Close)

	return dd, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialStream(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readControl(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	msgType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, msgType)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

// subscribe performs the auth handshake and returns after the
// subscription ack.
func subscribe(t *testing.T, conn *websocket.Conn) SubscribedData {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "auth", "token": "good-token"}))
	require.Equal(t, MessageTypeAuthOK, readControl(t, conn).Type)

	ack := readControl(t, conn)
	require.Equal(t, MessageTypeSubscribed, ack.Type)

	raw, err := json.Marshal(ack.Data)
	require.NoError(t, err)
	var data SubscribedData
	require.NoError(t, json.Unmarshal(raw, &data))
	return data
}

func TestStreamRejectsBadToken(t *testing.T) {
	_, url := newStreamFixture(t)
	conn := dialStream(t, url)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "auth", "token": "stolen"}))
	assert.Equal(t, MessageTypeAuthFailed, readControl(t, conn).Type)
}

func TestStreamRequiresAuthFirst(t *testing.T) {
	_, url := newStreamFixture(t)
	conn := dialStream(t, url)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "unsubscribe"}))
	assert.Equal(t, MessageTypeAuthFailed, readControl(t, conn).Type)
}

func TestStreamDeliversFrames(t *testing.T) {
	dd, url := newStreamFixture(t)
	conn := dialStream(t, url)

	ack := subscribe(t, conn)
	assert.Equal(t, "cam0", ack.Device)
	assert.Equal(t, 16, ack.BufferCapacity)
	assert.Equal(t, 1, dd.SubscriberCount())

	require.NoError(t, dd.Arm(trigger.ModeContinuous, trigger.TypeSoftware))
	require.NoError(t, dd.Trigger())
	defer dd.Stop()

	var lastSeq uint64
	for i := 0; i < 3; i++ {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		msgType, data, err := conn.ReadMessage()
		require.NoError(t, err)
		require.Equal(t, websocket.BinaryMessage, msgType)

		header, payload, err := DecodeFrame(data)
		require.NoError(t, err)
		assert.Equal(t, "cam0", header.Device)
		assert.Greater(t, header.Seq, lastSeq)
		assert.Equal(t, "mono8", header.Format)
		assert.Len(t, payload, header.Width*header.Height)
		lastSeq = header.Seq
	}
}

func TestStreamUnsubscribeEndsSubscription(t *testing.T) {
	dd, url := newStreamFixture(t)
	conn := dialStream(t, url)

	subscribe(t, conn)
	require.Equal(t, 1, dd.SubscriberCount())

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "unsubscribe"}))

	require.Eventually(t, func() bool { return dd.SubscriberCount() == 0 },
		5*time.Second, 5*time.Millisecond)
}

func TestStreamAbruptCloseIsTransportFailure(t *testing.T) {
	dd, url := newStreamFixture(t)
	conn := dialStream(t, url)

	subscribe(t, conn)
	require.Equal(t, 1, dd.SubscriberCount())

	conn.Close()

	require.Eventually(t, func() bool { return dd.SubscriberCount() == 0 },
		5*time.Second, 5*time.Millisecond)
}

func TestSecondConnectionGetsOwnSubscription(t *testing.T) {
	dd, url := newStreamFixture(t)

	connA := dialStream(t, url)
	ackA := subscribe(t, connA)
	connB := dialStream(t, url)
	ackB := subscribe(t, connB)

	assert.NotEqual(t, ackA.SubscriptionID, ackB.SubscriptionID)
	assert.Equal(t, 2, dd.SubscriberCount())
}
