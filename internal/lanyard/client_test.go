package lanyard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/profilecard/internal/domain"
)

const testUserID = "123456789012345678"

type relay struct {
	t          *testing.T
	interval   int
	events     []string
	initialize chan initializeData
	heartbeats chan struct{}
	closeAfter bool
}

func newRelay(t *testing.T) *relay {
	return &relay{
		t:          t,
		interval:   20,
		initialize: make(chan initializeData, 1),
		heartbeats: make(chan struct{}, 16),
	}
}

func (r *relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	hello, _ := json.Marshal(helloData{HeartbeatInterval: r.interval})
	if err := conn.WriteJSON(frame{Op: OpHello, D: hello}); err != nil {
		return
	}

	var init struct {
		Op int            `json:"op"`
		D  initializeData `json:"d"`
	}
	if err := conn.ReadJSON(&init); err != nil || init.Op != OpInitialize {
		return
	}
	r.initialize <- init.D

	for i, event := range r.events {
		if err := conn.WriteJSON(frame{Op: OpEvent, Seq: i + 1, T: EventPresenceUpdate, D: json.RawMessage(event)}); err != nil {
			return
		}
	}
	if r.closeAfter {
		return
	}

	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			return
		}
		if f.Op == OpHeartbeat {
			select {
			case r.heartbeats <- struct{}{}:
			default:
			}
		}
	}
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

const presenceJSON = `{
	"discord_user": {"id": "123456789012345678", "username": "nyx"},
	"discord_status": "dnd",
	"listening_to_spotify": false,
	"activities": [
		{"id": "custom", "name": "Custom Status", "type": 4, "state": "coding"},
		{"id": "abc", "name": "Visual Studio Code", "type": 0, "application_id": "383226320970055681",
		 "timestamps": {"start": 1700000000000},
		 "assets": {"large_image": "mp:external/x/https/example.com/a.png"}}
	]
}`

func TestClient_SetupAndSubscribe(t *testing.T) {
	r := newRelay(t)
	r.events = []string{presenceJSON}
	srv := httptest.NewServer(r)
	defer srv.Close()

	c := NewClient(testUserID, WithSocketURL(wsURL(srv)))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, c.SetupConnection(ctx))

	select {
	case init := <-r.initialize:
		assert.Equal(t, testUserID, init.SubscribeToID)
	case <-time.After(2 * time.Second):
		t.Fatal("relay never received initialize")
	}

	snapshots, errs := c.Subscribe(ctx)

	select {
	case snap := <-snapshots:
		assert.Equal(t, OpEvent, snap.Op)
		assert.Equal(t, EventPresenceUpdate, snap.T)
		require.NotNil(t, snap.D)
		assert.Equal(t, discordgo.StatusDoNotDisturb, snap.D.DiscordStatus)
		require.Len(t, snap.Activities(), 2)
		assert.True(t, snap.Activities()[0].IsCustomStatus())
		start, ok := snap.Activities()[1].Timestamps.StartTime()
		assert.True(t, ok)
		assert.Equal(t, int64(1700000000000), start.UnixMilli())
		assert.Equal(t, "mp:external/x/https/example.com/a.png", snap.Activities()[1].Assets.LargeImageID)
	case err := <-errs:
		t.Fatalf("unexpected stream error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot received")
	}

	select {
	case <-r.heartbeats:
	case <-time.After(2 * time.Second):
		t.Fatal("no heartbeat sent")
	}

	require.NoError(t, c.Close())

	select {
	case _, ok := <-snapshots:
		assert.False(t, ok, "snapshot channel should close after Close")
	case <-time.After(2 * time.Second):
		t.Fatal("snapshot channel not closed")
	}
	assert.Empty(t, errs, "closing is not a stream error")
}

func TestClient_StreamErrorReported(t *testing.T) {
	r := newRelay(t)
	r.events = []string{`null`}
	r.closeAfter = true
	srv := httptest.NewServer(r)
	defer srv.Close()

	c := NewClient(testUserID, WithSocketURL(wsURL(srv)))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.SetupConnection(ctx))

	snapshots, errs := c.Subscribe(ctx)

	snap := <-snapshots
	assert.Nil(t, snap.D)
	assert.Empty(t, snap.Activities())

	select {
	case err := <-errs:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a stream error after the relay hung up")
	}
	_ = c.Close()
}

func TestClient_SubscribeWithoutSetup(t *testing.T) {
	c := NewClient(testUserID)

	snapshots, errs := c.Subscribe(context.Background())

	_, ok := <-snapshots
	assert.False(t, ok)
	assert.ErrorIs(t, <-errs, domain.ErrNotConnected)
}

func TestClient_SetupRejectsMissingHello(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		conn, err := (&websocket.Upgrader{}).Upgrade(w, req, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteJSON(frame{Op: OpEvent, T: EventInitState})
	}))
	defer srv.Close()

	c := NewClient(testUserID, WithSocketURL(wsURL(srv)))
	err := c.SetupConnection(context.Background())
	assert.ErrorContains(t, err, "expected hello")
}

func TestClient_FetchPresence(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			assert.Equal(t, "/v1/users/"+testUserID, req.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"success":true,"data":` + presenceJSON + `}`))
		}))
		defer srv.Close()

		c := NewClient(testUserID, WithAPIURL(srv.URL+"/v1/users/"))
		data, err := c.FetchPresence(context.Background())
		require.NoError(t, err)
		assert.Len(t, data.Activities, 2)
		assert.Equal(t, "nyx", data.DiscordUser.Username)
	})

	t.Run("not monitored", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"success":false,"error":{"code":"user_not_monitored","message":"User is not being monitored by Lanyard"}}`))
		}))
		defer srv.Close()

		c := NewClient(testUserID, WithAPIURL(srv.URL))
		_, err := c.FetchPresence(context.Background())
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.ErrorContains(t, err, "user_not_monitored")
	})
}
