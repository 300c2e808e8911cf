package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audittool/utils"
)

func dialEvents(t *testing.T, server *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &msg))
	return msg
}

func TestHandleEvents_RejectsMissingToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	rec := httptest.NewRecorder()

	HandleEvents(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleEvents_RejectsInvalidToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/events?token=garbage", nil)
	rec := httptest.NewRecorder()

	HandleEvents(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleEvents_WelcomeThenBroadcast(t *testing.T) {
	InitEventHub()

	token, err := utils.GenerateJWT("65f000000000000000000001", "Asha Rao", "asha.rao@onextel.com", "auditor")
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(HandleEvents))
	defer server.Close()

	conn := dialEvents(t, server, token)
	defer conn.Close()

	welcome := readEvent(t, conn)
	assert.Equal(t, "welcome", welcome["type"])
	assert.Equal(t, "auditor", welcome["role"])

	BroadcastRecordEvent("created", "auditplan", "abc123", "Asha Rao", map[string]string{"auditId": "AUD-1"})

	event := readEvent(t, conn)
	assert.Equal(t, "created", event["type"])
	assert.Equal(t, "auditplan", event["entity"])
	assert.Equal(t, "abc123", event["entityId"])
	assert.Equal(t, "Asha Rao", event["userName"])
}
