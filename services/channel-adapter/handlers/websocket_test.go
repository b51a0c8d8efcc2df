package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/logger"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/models"
)

func setup(t *testing.T, opts Options) (*redis.Client, *httptest.Server) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	srv := httptest.NewServer(NewWSHandler(rdb, opts, prometheus.NewRegistry(), logger.Nop()))
	t.Cleanup(srv.Close)
	return rdb, srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readResponse(t *testing.T, conn *websocket.Conn) models.WSResponse {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var resp models.WSResponse
	require.NoError(t, conn.ReadJSON(&resp))
	return resp
}

func TestMessagesArePublishedUnderIdentity(t *testing.T) {
	rdb, srv := setup(t, Options{DefaultLanguage: "en"})
	conn := dial(t, srv, "identity=%2B91%2098765%2043210&language=hi")

	connected := readResponse(t, conn)
	assert.Equal(t, "connected", connected.Type)
	assert.Equal(t, "9876543210", connected.SessionID)

	require.NoError(t, conn.WriteJSON(models.WSIncoming{Text: "  yojana  batao "}))

	var entries []redis.XMessage
	assert.Eventually(t, func() bool {
		var err error
		entries, err = rdb.XRange(context.Background(), streamKey, "-", "+").Result()
		return err == nil && len(entries) == 1
	}, 2*time.Second, 20*time.Millisecond)
	require.Len(t, entries, 1)

	var env models.MessageEnvelope
	require.NoError(t, json.Unmarshal([]byte(entries[0].Values["envelope"].(string)), &env))
	assert.Equal(t, "9876543210", env.UserID)
	assert.Equal(t, "yojana batao", env.Content.Text)
	assert.Equal(t, "hi", env.Metadata.Language)
	assert.Equal(t, "web", env.Channel)
}

func TestResponsesAreForwarded(t *testing.T) {
	rdb, srv := setup(t, Options{})
	conn := dial(t, srv, "identity=9876543210")
	readResponse(t, conn)

	payload, err := json.Marshal(models.WSResponse{Type: "message", Text: "Namaste", SessionID: "9876543210"})
	require.NoError(t, err)
	require.NoError(t, rdb.Publish(context.Background(), responsePrefix+"9876543210", string(payload)).Err())

	resp := readResponse(t, conn)
	assert.Equal(t, "message", resp.Type)
	assert.Equal(t, "Namaste", resp.Text)
}

func TestInvalidMessageGetsError(t *testing.T) {
	_, srv := setup(t, Options{})
	conn := dial(t, srv, "")
	connected := readResponse(t, conn)
	assert.NotEmpty(t, connected.SessionID)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	resp := readResponse(t, conn)
	assert.Equal(t, "error", resp.Type)
}

func TestBurstBeyondLimitIsRejected(t *testing.T) {
	rdb, srv := setup(t, Options{MessagesPerSecond: 0.001, MessageBurst: 2})
	conn := dial(t, srv, "identity=9876543210")
	readResponse(t, conn)

	for _, text := range []string{"one", "two", "three"} {
		require.NoError(t, conn.WriteJSON(models.WSIncoming{Text: text}))
	}
	resp := readResponse(t, conn)
	assert.Equal(t, "error", resp.Type)
	assert.Contains(t, resp.Text, "too quickly")

	n, err := rdb.XLen(context.Background(), streamKey).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestDisallowedOriginRejected(t *testing.T) {
	_, srv := setup(t, Options{AllowedOrigins: []string{"https://app.example"}})
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := map[string][]string{"Origin": {"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	assert.Error(t, err)
	if resp != nil {
		assert.Equal(t, 403, resp.StatusCode)
	}
}
