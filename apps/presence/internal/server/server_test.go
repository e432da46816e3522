package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"PairServer/apps/presence/internal/handler"
	"PairServer/apps/presence/internal/manager"
	"PairServer/apps/presence/internal/svc"
	"PairServer/config"
	"PairServer/consts"
	"PairServer/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var presenceServerLoggerOnce sync.Once

func initPresenceServerTestLogger() {
	presenceServerLoggerOnce.Do(func() {
		logger.ReplaceGlobal(zap.NewNop())
	})
}

type wsFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// newPresenceTestServer 启动一个完整的 presence HTTP 服务（Redis 降级为 nil）。
func newPresenceTestServer(t *testing.T) (*httptest.Server, *manager.ConnectionManager) {
	t.Helper()
	initPresenceServerTestLogger()

	connManager := manager.NewConnectionManager()
	presenceSvc := svc.NewPresenceService(nil)
	wsHandler := handler.NewWSHandler(connManager, presenceSvc, config.DefaultPresenceConfig())

	srv := httptest.NewServer(newEngine(wsHandler))
	t.Cleanup(srv.Close)
	return srv, connManager
}

func dialWS(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) wsFrame {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame wsFrame
	require.NoError(t, json.Unmarshal(raw, &frame))
	return frame
}

func readErrorCode(t *testing.T, conn *websocket.Conn) int {
	t.Helper()

	frame := readFrame(t, conn)
	require.Equal(t, "error", frame.Type)

	var data struct {
		Code int `json:"code"`
	}
	require.NoError(t, json.Unmarshal(frame.Data, &data))
	return data.Code
}

func TestServerHealthAndMetrics(t *testing.T) {
	srv, _ := newPresenceTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"status":"ok"`)

	metricsResp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	_ = metricsResp.Body.Close()
	assert.Equal(t, http.StatusOK, metricsResp.StatusCode)
}

func TestServerWSRejectsBadHandshake(t *testing.T) {
	srv, _ := newPresenceTestServer(t)
	wsBase := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	tests := []struct {
		name  string
		query string
	}{
		{name: "missing_user_id", query: ""},
		{name: "user_id_too_long", query: "?user_id=" + strings.Repeat("a", 65)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, resp, err := websocket.DefaultDialer.Dial(wsBase+tt.query, nil)
			require.ErrorIs(t, err, websocket.ErrBadHandshake)
			require.Nil(t, conn)
			require.NotNil(t, resp)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

			var body struct {
				Code int `json:"code"`
			}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, consts.CodeParamError, body.Code)
		})
	}
}

func TestServerWSConnectAndHeartbeat(t *testing.T) {
	srv, connManager := newPresenceTestServer(t)

	conn := dialWS(t, srv, "?user_id=u1")

	// 1. 欢迎帧：下发心跳间隔
	welcome := readFrame(t, conn)
	assert.Equal(t, "connected", welcome.Type)

	var welcomeData struct {
		HeartbeatIntervalMs int64 `json:"heartbeat_interval_ms"`
		ServerTimeMs        int64 `json:"server_time_ms"`
	}
	require.NoError(t, json.Unmarshal(welcome.Data, &welcomeData))
	assert.Equal(t, config.DefaultPresenceConfig().HeartbeatInterval.Milliseconds(), welcomeData.HeartbeatIntervalMs)
	assert.Greater(t, welcomeData.ServerTimeMs, int64(0))

	assert.Equal(t, 1, connManager.Count())

	// 2. 心跳应答
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"heartbeat"}`)))
	ack := readFrame(t, conn)
	assert.Equal(t, "heartbeat_ack", ack.Type)

	// 3. 非法 JSON 返回 error 帧
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{bad`)))
	assert.Equal(t, 10001, readErrorCode(t, conn))

	// 4. 未知消息类型返回 error 帧
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"unknown"}`)))
	assert.Equal(t, 10002, readErrorCode(t, conn))
}

func TestServerWSDuplicateUserReplaced(t *testing.T) {
	srv, connManager := newPresenceTestServer(t)

	first := dialWS(t, srv, "?user_id=u1")
	require.Equal(t, "connected", readFrame(t, first).Type)

	second := dialWS(t, srv, "?user_id=u1")
	require.Equal(t, "connected", readFrame(t, second).Type)

	// 旧连接被服务端关闭
	_ = first.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := first.ReadMessage()
	assert.Error(t, err)

	assert.Equal(t, 1, connManager.Count())

	// 新连接仍然可用
	require.NoError(t, second.WriteMessage(websocket.TextMessage, []byte(`{"type":"heartbeat"}`)))
	assert.Equal(t, "heartbeat_ack", readFrame(t, second).Type)
}
