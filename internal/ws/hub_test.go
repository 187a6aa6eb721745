package ws

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/joshua-takyi/staylink/internal/helpers"
	"github.com/joshua-takyi/staylink/internal/models"
	"github.com/joshua-takyi/staylink/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSendToUserCountsConnections(t *testing.T) {
	hub := NewHub(testLogger())
	user := uuid.New()

	assert.Equal(t, 0, hub.SendToUser(user, map[string]string{"type": "ping"}))

	a := NewClient(user, 1)
	b := NewClient(user, 1)
	hub.Register(a)
	hub.Register(b)
	hub.Register(NewClient(uuid.New(), 1))

	assert.Equal(t, 2, hub.SendToUser(user, map[string]string{"type": "ping"}))
	assert.Equal(t, 0, hub.SendToUser(user, map[string]string{"type": "ping"}), "full buffers drop the message")

	a.Close()
	a.Close()
	assert.Equal(t, 2, hub.ClientCount())
	assert.True(t, hub.Connected(user))

	b.Close()
	assert.False(t, hub.Connected(user))
	assert.Equal(t, 0, hub.SendToUser(user, map[string]string{"type": "ping"}))
}

func TestFollowForwardsStoreChanges(t *testing.T) {
	hub := NewHub(testLogger())
	registry := store.NewRegistry(time.Minute)
	hub.Follow(registry)

	user := uuid.New()
	client := NewClient(user, 8)
	hub.Register(client)

	sess := registry.Get(user)
	sess.Bookings.SetLoading(true)
	sess.Bookings.Append(models.Booking{ID: uuid.New()})

	require.Len(t, client.Send, 1, "loading changes are not forwarded")
	var msg struct {
		Type  string `json:"type"`
		Store string `json:"store"`
		Kind  string `json:"kind"`
	}
	require.NoError(t, json.Unmarshal(<-client.Send, &msg))
	assert.Equal(t, MessageStoreChanged, msg.Type)
	assert.Equal(t, store.BookingsStore, msg.Store)
	assert.Equal(t, store.ChangeAppend, msg.Kind)
}

func TestServeSessionDeliversMessages(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub(testLogger())
	user := uuid.New()

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		c.Set(helpers.ContextUserKey, &helpers.EnhancedClaims{UserID: user.String(), Role: models.RoleGuest})
		c.Set(helpers.ContextAccessTokenKey, "token")
	}, ServeSession(hub, NewUpgrader(nil), testLogger()))

	srv := httptest.NewServer(r)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Connected(user) }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, hub.SendToUser(user, map[string]string{"type": "payment.widget.close"}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"payment.widget.close"}`, string(data))
}

func TestServeSessionRequiresPrincipal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", ServeSession(NewHub(testLogger()), NewUpgrader(nil), testLogger()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/ws", nil))
	assert.Equal(t, 401, w.Code)
}

func TestUpgraderOrigins(t *testing.T) {
	up := NewUpgrader([]string{"https://staylink.app"})

	req := httptest.NewRequest("GET", "/ws", nil)
	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, up.CheckOrigin(req))

	req.Header.Set("Origin", "https://staylink.app")
	assert.True(t, up.CheckOrigin(req))
}
