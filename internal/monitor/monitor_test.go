package monitor_test

import (
	"encoding/base64"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/underglow/internal/color"
	"github.com/example/underglow/internal/monitor"
	"github.com/example/underglow/internal/underglow"
)

type wsMsg struct {
	Type    string             `json:"type"`
	FrameID uint64             `json:"frameId"`
	Pixels  int                `json:"pixels"`
	RGB     string             `json:"rgb"`
	State   underglow.Snapshot `json:"state"`
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMsg(t *testing.T, conn *websocket.Conn) wsMsg {
	t.Helper()
	var msg wsMsg
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestClientGreetedWithState(t *testing.T) {
	snap := underglow.Snapshot{On: true, Effect: "swirl", Speed: 2}
	m := monitor.New(func() underglow.Snapshot { return snap }, zerolog.Nop())
	srv := httptest.NewServer(m)
	defer srv.Close()

	conn := dial(t, srv)
	msg := readMsg(t, conn)
	assert.Equal(t, "state", msg.Type)
	assert.Equal(t, snap, msg.State)
}

func TestWriteBroadcastsFrame(t *testing.T) {
	m := monitor.New(func() underglow.Snapshot { return underglow.Snapshot{} }, zerolog.Nop())
	srv := httptest.NewServer(m)
	defer srv.Close()

	conn := dial(t, srv)
	readMsg(t, conn) // greeting

	frame := []color.RGB{{R: 1, G: 2, B: 3}, {R: 4, G: 5, B: 6}}
	require.NoError(t, m.Write(frame))

	msg := readMsg(t, conn)
	assert.Equal(t, "frame", msg.Type)
	assert.Equal(t, 2, msg.Pixels)

	raw, err := base64.StdEncoding.DecodeString(msg.RGB)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, raw)
}

func TestWriteThrottled(t *testing.T) {
	m := monitor.New(func() underglow.Snapshot { return underglow.Snapshot{} }, zerolog.Nop())
	srv := httptest.NewServer(m)
	defer srv.Close()

	conn := dial(t, srv)
	readMsg(t, conn) // greeting

	frame := []color.RGB{{R: 9}}
	for i := 0; i < 20; i++ {
		require.NoError(t, m.Write(frame))
	}

	// only the first write in the burst goes out
	msg := readMsg(t, conn)
	assert.Equal(t, uint64(1), msg.FrameID)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	var extra wsMsg
	assert.Error(t, conn.ReadJSON(&extra), "throttled frames must not reach the client")
}

func TestWriteWithoutClientsIsFree(t *testing.T) {
	m := monitor.New(func() underglow.Snapshot { return underglow.Snapshot{} }, zerolog.Nop())
	assert.NoError(t, m.Write([]color.RGB{{R: 1}}))
}

func TestBroadcastState(t *testing.T) {
	on := underglow.Snapshot{On: true, Effect: "battery"}
	m := monitor.New(func() underglow.Snapshot { return on }, zerolog.Nop())
	srv := httptest.NewServer(m)
	defer srv.Close()

	conn := dial(t, srv)
	readMsg(t, conn) // greeting

	m.BroadcastState()
	msg := readMsg(t, conn)
	assert.Equal(t, "state", msg.Type)
	assert.Equal(t, "battery", msg.State.Effect)
}
