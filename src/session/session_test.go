package session

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"activ-subscriber/src/interfaces"
	"activ-subscriber/src/logger"
	"activ-subscriber/src/models"
	"activ-subscriber/src/storage"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// fake gateway bridge
// -----------------------------------------------------------------------------

type fakeGateway struct {
	server      *httptest.Server
	rejectLogin  bool
	silent       bool
	noDictionary bool

	mu       sync.Mutex
	conn     *websocket.Conn
	received []models.MFrame
}

func newFakeGateway(t *testing.T) *fakeGateway {
	t.Helper()
	g := &fakeGateway{}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	g.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		g.mu.Lock()
		g.conn = conn
		g.mu.Unlock()

		for {
			var frame models.MFrame
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			g.mu.Lock()
			g.received = append(g.received, frame)
			silent := g.silent
			g.mu.Unlock()

			if !silent {
				g.answer(frame)
			}
		}
	}))
	t.Cleanup(g.server.Close)
	return g
}

func (g *fakeGateway) endpoint() string {
	return "ws" + strings.TrimPrefix(g.server.URL, "http")
}

func (g *fakeGateway) push(frame *models.MFrame) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conn != nil {
		_ = g.conn.WriteJSON(frame)
	}
}

// drop closes the current connection without a close handshake
func (g *fakeGateway) drop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conn != nil {
		_ = g.conn.Close()
		g.conn = nil
	}
}

func (g *fakeGateway) setRejectLogin(reject bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rejectLogin = reject
}

func (g *fakeGateway) answer(req models.MFrame) {
	g.mu.Lock()
	rejectLogin := g.rejectLogin
	noDictionary := g.noDictionary
	g.mu.Unlock()

	switch req.Type {
	case models.FrameLogin:
		if rejectLogin {
			g.push(&models.MFrame{Type: models.FrameLoginReject, Message: "bad credentials"})
			return
		}
		g.push(&models.MFrame{Type: models.FrameLoginAck})

	case models.FrameDictionaryRequest:
		if noDictionary {
			return
		}
		g.push(&models.MFrame{Type: models.FrameDictionary, Dictionary: map[models.MFieldID]string{22: "Last"}})

	case models.FrameSubscribe:
		g.push(&models.MFrame{
			Type:   models.FrameSubscriptionStatus,
			Handle: req.Handle,
			SubscriptionStatus: &models.MSubscriptionStatusMessage{
				Request: models.RequestSubscribe,
				State:   models.SubscriptionStateSuccess,
			},
		})
		g.push(&models.MFrame{
			Type:    models.FrameRefresh,
			Handle:  req.Handle,
			Refresh: &models.MRefreshMessage{Symbol: req.Symbol, UpdateID: 1, Fields: models.MFieldMap{22: 415.25}},
		})
		g.push(&models.MFrame{
			Type:   models.FrameUpdate,
			Handle: req.Handle,
			Update: &models.MUpdateMessage{Symbol: req.Symbol, UpdateID: 2, Fields: models.MFieldMap{22: 415.5}},
		})
	}
}

func (g *fakeGateway) framesOfType(frameType models.MFrameType) []models.MFrame {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []models.MFrame
	for _, f := range g.received {
		if f.Type == frameType {
			out = append(out, f)
		}
	}
	return out
}

// -----------------------------------------------------------------------------
// recording handlers
// -----------------------------------------------------------------------------

type recordingSessionHandler struct {
	mu           sync.Mutex
	connected    int
	disconnected int
	errs         []error
	logs         []string
}

func (h *recordingSessionHandler) OnConnected(interfaces.ISession) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connected++
}

func (h *recordingSessionHandler) OnDisconnected(interfaces.ISession) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnected++
}

func (h *recordingSessionHandler) OnError(_ interfaces.ISession, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs = append(h.errs, err)
}

func (h *recordingSessionHandler) OnLog(_ interfaces.ISession, logType string, message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.logs = append(h.logs, logType+":"+message)
}

func (h *recordingSessionHandler) counts() (int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connected, h.disconnected
}

func (h *recordingSessionHandler) snapshot() ([]error, []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]error(nil), h.errs...), append([]string(nil), h.logs...)
}

type recordingSubscriptionHandler struct {
	mu        sync.Mutex
	refreshes []*models.MRefreshMessage
	updates   []*models.MUpdateMessage
	statuses  []*models.MSubscriptionStatusMessage
	topics    []*models.MTopicStatusMessage
	handles   []int64
	lastName  string
}

func (h *recordingSubscriptionHandler) OnRefresh(msg *models.MRefreshMessage, ctx *models.MSubscriptionContext) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.refreshes = append(h.refreshes, msg)
	h.handles = append(h.handles, ctx.Handle)
	h.lastName, _ = ctx.Metadata.FieldName(22)
}

func (h *recordingSubscriptionHandler) OnUpdate(msg *models.MUpdateMessage, ctx *models.MSubscriptionContext) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updates = append(h.updates, msg)
	h.handles = append(h.handles, ctx.Handle)
}

func (h *recordingSubscriptionHandler) OnSubscriptionStatus(msg *models.MSubscriptionStatusMessage, ctx *models.MSubscriptionContext) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.statuses = append(h.statuses, msg)
}

func (h *recordingSubscriptionHandler) OnTopicStatus(msg *models.MTopicStatusMessage, ctx *models.MSubscriptionContext) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.topics = append(h.topics, msg)
}

func (h *recordingSubscriptionHandler) received() (int, int, int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.refreshes), len(h.updates), len(h.statuses), len(h.topics)
}

// -----------------------------------------------------------------------------

func testLogger() *logger.Logger {
	return logger.NewWriterLogger(io.Discard, "test", logger.LevelDebug)
}

func testParams() models.MSessionParameters {
	return models.MSessionParameters{
		models.FIDEnableCtrlHandler:        true,
		models.FIDEnableDictionaryDownload: true,
		models.FIDHost:                     "gateway.test",
		models.FIDUserID:                   "alice",
		models.FIDPassword:                 "secret",
	}
}

func newWebSocketSession(t *testing.T, g *fakeGateway, h interfaces.ISessionHandler) *Session {
	t.Helper()
	return newWebSocketSessionWithConfig(t, g, h, &models.MSessionConfig{Transport: "websocket"})
}

func newWebSocketSessionWithConfig(t *testing.T, g *fakeGateway, h interfaces.ISessionHandler, config *models.MSessionConfig) *Session {
	t.Helper()
	s, err := NewSession(config, g.endpoint(), testParams(), h, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Disconnect() })
	return s
}

// -----------------------------------------------------------------------------

func TestSessionConnectSubscribeDispatch(t *testing.T) {
	g := newFakeGateway(t)
	h := &recordingSessionHandler{}
	s := newWebSocketSession(t, g, h)

	require.NoError(t, s.Connect(context.Background(), 2*time.Second))
	assert.True(t, s.IsConnected())
	assert.NotEmpty(t, s.GetID())

	name, ok := s.Metadata().FieldName(22)
	assert.True(t, ok)
	assert.Equal(t, "Last", name)

	logins := g.framesOfType(models.FrameLogin)
	require.Len(t, logins, 1)
	assert.Equal(t, "gateway.test", logins[0].Parameters["host"])
	assert.Equal(t, "alice", logins[0].Parameters["user_id"])

	sub := &recordingSubscriptionHandler{}
	handle, err := s.Subscribe("MSFT.Q", sub, models.MSubscribeOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), handle)

	require.Eventually(t, func() bool {
		refreshes, updates, statuses, _ := sub.received()
		return refreshes == 1 && updates == 1 && statuses == 1
	}, 2*time.Second, 10*time.Millisecond)

	sub.mu.Lock()
	assert.Equal(t, []int64{1, 1}, sub.handles)
	assert.Equal(t, "Last", sub.lastName)
	assert.Equal(t, "MSFT.Q", sub.refreshes[0].Symbol)
	sub.mu.Unlock()

	subscribes := g.framesOfType(models.FrameSubscribe)
	require.Len(t, subscribes, 1)
	assert.Equal(t, models.SymbologyNative, subscribes[0].SymbologyID)
	assert.Equal(t, models.DataSourceActiv, subscribes[0].DataSourceID)

	status := s.GetStatus()
	assert.True(t, status.Connected)
	assert.Equal(t, "websocket", status.TransportType)
	assert.Equal(t, []string{"MSFT.Q"}, status.Symbols)
	assert.Equal(t, "gateway.test", status.Host)

	require.NoError(t, s.Disconnect())
	require.NoError(t, s.Disconnect())
	assert.False(t, s.IsConnected())

	connected, disconnected := h.counts()
	assert.Equal(t, 1, connected)
	assert.Equal(t, 1, disconnected)

	require.Eventually(t, func() bool {
		return len(g.framesOfType(models.FrameLogout)) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSessionLoginRejected(t *testing.T) {
	g := newFakeGateway(t)
	g.rejectLogin = true
	h := &recordingSessionHandler{}
	s := newWebSocketSession(t, g, h)

	err := s.Connect(context.Background(), 2*time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLoginRejected)
	assert.Contains(t, err.Error(), "bad credentials")
	assert.False(t, s.IsConnected())

	var sessErr *SessionError
	require.ErrorAs(t, err, &sessErr)
	assert.Equal(t, "connect", sessErr.Op)

	connected, _ := h.counts()
	assert.Equal(t, 0, connected)
}

func TestSessionLoginTimeout(t *testing.T) {
	g := newFakeGateway(t)
	g.silent = true
	s := newWebSocketSession(t, g, &recordingSessionHandler{})

	start := time.Now()
	err := s.Connect(context.Background(), 200*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLoginTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestSessionWithoutDictionaryDownload(t *testing.T) {
	g := newFakeGateway(t)
	params := testParams()
	params[models.FIDEnableDictionaryDownload] = false

	s, err := NewSession(&models.MSessionConfig{Transport: "websocket"}, g.endpoint(), params, &recordingSessionHandler{}, testLogger())
	require.NoError(t, err)
	defer s.Disconnect()

	require.NoError(t, s.Connect(context.Background(), 2*time.Second))
	assert.Empty(t, g.framesOfType(models.FrameDictionaryRequest))

	_, ok := s.Metadata().FieldName(22)
	assert.False(t, ok)
}

func TestSessionSubscribeRequiresConnection(t *testing.T) {
	g := newFakeGateway(t)
	s := newWebSocketSession(t, g, &recordingSessionHandler{})

	_, err := s.Subscribe("MSFT.Q", &recordingSubscriptionHandler{}, models.MSubscribeOptions{})
	assert.ErrorIs(t, err, ErrNotConnected)

	require.NoError(t, s.Connect(context.Background(), 2*time.Second))
	_, err = s.Subscribe("", &recordingSubscriptionHandler{}, models.MSubscribeOptions{})
	assert.Error(t, err)
	_, err = s.Subscribe("MSFT.Q", nil, models.MSubscribeOptions{})
	assert.Error(t, err)
}

func TestSessionConnectAfterDisconnect(t *testing.T) {
	g := newFakeGateway(t)
	s := newWebSocketSession(t, g, &recordingSessionHandler{})

	require.NoError(t, s.Disconnect())
	assert.ErrorIs(t, s.Connect(context.Background(), time.Second), ErrClosed)
}

func TestSessionRunReturnsOnDisconnect(t *testing.T) {
	g := newFakeGateway(t)
	s := newWebSocketSession(t, g, &recordingSessionHandler{})
	require.NoError(t, s.Connect(context.Background(), 2*time.Second))

	returned := make(chan error, 1)
	go func() { returned <- s.Run(context.Background()) }()

	require.NoError(t, s.Disconnect())
	select {
	case err := <-returned:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Disconnect")
	}
}

func TestSessionRunReturnsOnCancel(t *testing.T) {
	g := newFakeGateway(t)
	s := newWebSocketSession(t, g, &recordingSessionHandler{})
	require.NoError(t, s.Connect(context.Background(), 2*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.NoError(t, s.Run(ctx))
	assert.True(t, s.IsConnected())
}

func TestSessionRunBeforeConnect(t *testing.T) {
	g := newFakeGateway(t)
	s := newWebSocketSession(t, g, &recordingSessionHandler{})

	assert.ErrorIs(t, s.Run(context.Background()), ErrNotConnected)
}

func TestSessionForwardsGatewayLogsAndErrors(t *testing.T) {
	g := newFakeGateway(t)
	h := &recordingSessionHandler{}
	s := newWebSocketSession(t, g, h)
	require.NoError(t, s.Connect(context.Background(), 2*time.Second))

	g.push(&models.MFrame{Type: models.FrameLog, LogType: "info", Message: "dictionary loaded"})
	g.push(&models.MFrame{Type: models.FrameError, Message: "permission denied"})
	g.push(&models.MFrame{Type: models.FrameRefresh, Handle: 99})

	require.Eventually(t, func() bool {
		errs, logs := h.snapshot()
		return len(logs) == 1 && len(errs) == 2
	}, 2*time.Second, 10*time.Millisecond)

	errs, logs := h.snapshot()
	assert.Equal(t, "info:dictionary loaded", logs[0])
	assert.Contains(t, errs[0].Error(), "permission denied")
	assert.Contains(t, errs[1].Error(), "without payload")
}

func TestSessionResubscribesAfterReconnect(t *testing.T) {
	g := newFakeGateway(t)
	s := newWebSocketSession(t, g, &recordingSessionHandler{})
	require.NoError(t, s.Connect(context.Background(), 2*time.Second))

	_, err := s.Subscribe("MSFT.Q", &recordingSubscriptionHandler{}, models.MSubscribeOptions{})
	require.NoError(t, err)
	_, err = s.Subscribe("CSIQ.Q", &recordingSubscriptionHandler{}, models.MSubscribeOptions{})
	require.NoError(t, err)

	s.OnReconnected()

	require.Eventually(t, func() bool {
		return len(g.framesOfType(models.FrameLogin)) == 2 && len(g.framesOfType(models.FrameSubscribe)) == 4
	}, 2*time.Second, 10*time.Millisecond)

	subscribes := g.framesOfType(models.FrameSubscribe)
	assert.Equal(t, "MSFT.Q", subscribes[2].Symbol)
	assert.Equal(t, int64(1), subscribes[2].Handle)
	assert.Equal(t, "CSIQ.Q", subscribes[3].Symbol)
}

func TestSessionResubscribesAfterConnectionDrop(t *testing.T) {
	g := newFakeGateway(t)
	h := &recordingSessionHandler{}
	s := newWebSocketSessionWithConfig(t, g, h, &models.MSessionConfig{Transport: "websocket", ReconnectAttempts: 2})
	require.NoError(t, s.Connect(context.Background(), 2*time.Second))

	sub := &recordingSubscriptionHandler{}
	_, err := s.Subscribe("MSFT.Q", sub, models.MSubscribeOptions{})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		refreshes, _, _, _ := sub.received()
		return refreshes == 1
	}, 2*time.Second, 10*time.Millisecond)

	g.drop()

	require.Eventually(t, func() bool {
		return len(g.framesOfType(models.FrameLogin)) == 2 && len(g.framesOfType(models.FrameSubscribe)) == 2
	}, 5*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool {
		refreshes, _, _, _ := sub.received()
		return refreshes == 2
	}, 2*time.Second, 10*time.Millisecond)

	subscribes := g.framesOfType(models.FrameSubscribe)
	assert.Equal(t, subscribes[0].Handle, subscribes[1].Handle)
	assert.True(t, s.IsConnected())

	_, disconnected := h.counts()
	assert.Equal(t, 0, disconnected)
}

func TestSessionRejectedReloginClosesSession(t *testing.T) {
	g := newFakeGateway(t)
	h := &recordingSessionHandler{}
	s := newWebSocketSession(t, g, h)
	require.NoError(t, s.Connect(context.Background(), 2*time.Second))
	_, err := s.Subscribe("MSFT.Q", &recordingSubscriptionHandler{}, models.MSubscribeOptions{})
	require.NoError(t, err)

	g.setRejectLogin(true)
	s.OnReconnected()

	require.Eventually(t, func() bool { return !s.IsConnected() }, 2*time.Second, 10*time.Millisecond)

	// sends racing the teardown may add transport errors
	errs, _ := h.snapshot()
	var rejected []error
	for _, err := range errs {
		if errors.Is(err, ErrLoginRejected) {
			rejected = append(rejected, err)
		}
	}
	require.Len(t, rejected, 1)
	var sessErr *SessionError
	require.ErrorAs(t, rejected[0], &sessErr)
	assert.Equal(t, "login", sessErr.Op)

	require.NoError(t, s.Disconnect())
	_, disconnected := h.counts()
	assert.Equal(t, 1, disconnected)
	assert.NoError(t, s.Run(context.Background()))
}

func TestSessionConnectIgnoresStaleDictionary(t *testing.T) {
	g := newFakeGateway(t)
	g.mu.Lock()
	g.noDictionary = true
	g.mu.Unlock()
	h := &recordingSessionHandler{}
	s := newWebSocketSession(t, g, h)

	// left over from an earlier attempt
	s.dictCh <- struct{}{}

	err := s.Connect(context.Background(), 300*time.Millisecond)
	require.Error(t, err)
	assert.False(t, s.IsConnected())
	connected, _ := h.counts()
	assert.Equal(t, 0, connected)
}

func TestSessionClosedByTransport(t *testing.T) {
	g := newFakeGateway(t)
	h := &recordingSessionHandler{}
	s := newWebSocketSession(t, g, h)
	require.NoError(t, s.Connect(context.Background(), 2*time.Second))

	s.OnClosed()
	s.OnClosed()
	require.NoError(t, s.Disconnect())

	_, disconnected := h.counts()
	assert.Equal(t, 1, disconnected)
	assert.False(t, s.IsConnected())
	assert.NoError(t, s.Run(context.Background()))
}

func TestNewSessionValidation(t *testing.T) {
	_, err := NewSession(&models.MSessionConfig{Transport: "carrier-pigeon"}, "x", testParams(), &recordingSessionHandler{}, testLogger())
	assert.Error(t, err)

	_, err = NewSession(&models.MSessionConfig{Transport: "websocket"}, "", testParams(), &recordingSessionHandler{}, testLogger())
	assert.Error(t, err)

	_, err = NewSession(&models.MSessionConfig{Transport: "websocket"}, "ws://x", testParams(), nil, testLogger())
	assert.Error(t, err)

	_, err = NewSession(nil, "ws://x", testParams(), &recordingSessionHandler{}, testLogger())
	assert.Error(t, err)
}

// -----------------------------------------------------------------------------

func TestSessionReplaysRecording(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recording.db")
	rec := storage.NewSQLiteRecorder(path, testLogger())
	require.NoError(t, rec.Initialize())
	require.NoError(t, rec.Record(&models.MFrame{
		Type:       models.FrameDictionary,
		Symbol:     storage.DictionaryTopic,
		Dictionary: map[models.MFieldID]string{22: "Last"},
	}))
	rec.OnRefresh(&models.MRefreshMessage{Symbol: "MSFT.Q", UpdateID: 1, Fields: models.MFieldMap{22: 415.25}})
	rec.OnUpdate(&models.MUpdateMessage{Symbol: "MSFT.Q", UpdateID: 2})
	rec.OnUpdate(&models.MUpdateMessage{Symbol: "MSFT.Q", UpdateID: 3})
	require.NoError(t, rec.Close())

	config := &models.MSessionConfig{Transport: "replay", ReplayPath: path, ReplayInterval: time.Millisecond}
	h := &recordingSessionHandler{}
	s, err := NewSession(config, "", testParams(), h, testLogger())
	require.NoError(t, err)
	defer s.Disconnect()

	require.NoError(t, s.Connect(context.Background(), 2*time.Second))
	name, ok := s.Metadata().FieldName(22)
	require.True(t, ok)
	assert.Equal(t, "Last", name)

	sub := &recordingSubscriptionHandler{}
	handle, err := s.Subscribe("MSFT.Q", sub, models.MSubscribeOptions{})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		refreshes, updates, statuses, topics := sub.received()
		return refreshes == 1 && updates == 2 && statuses == 1 && topics == 1
	}, 2*time.Second, 10*time.Millisecond)

	sub.mu.Lock()
	for _, got := range sub.handles {
		assert.Equal(t, handle, got)
	}
	assert.Equal(t, uint64(3), sub.updates[1].UpdateID)
	assert.Equal(t, models.SubscriptionStateSuccess, sub.statuses[0].State)
	sub.mu.Unlock()

	assert.Equal(t, "replay", s.GetStatus().TransportType)
}

func TestSessionReplayWithoutFrames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")
	h := &recordingSessionHandler{}
	s, err := NewSession(&models.MSessionConfig{Transport: "replay", ReplayPath: path}, "", testParams(), h, testLogger())
	require.NoError(t, err)
	defer s.Disconnect()

	require.NoError(t, s.Connect(context.Background(), 2*time.Second))
	_, err = s.Subscribe("NOPE", &recordingSubscriptionHandler{}, models.MSubscribeOptions{})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, logs := h.snapshot()
		return len(logs) == 1
	}, 2*time.Second, 10*time.Millisecond)

	_, logs := h.snapshot()
	assert.Equal(t, "warning:no recorded frames for NOPE", logs[0])
}
