package handlers

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"activ-subscriber/src/logger"
	"activ-subscriber/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	refreshes []*models.MRefreshMessage
	updates   []*models.MUpdateMessage
}

func (s *recordingSink) OnRefresh(msg *models.MRefreshMessage) { s.refreshes = append(s.refreshes, msg) }
func (s *recordingSink) OnUpdate(msg *models.MUpdateMessage)   { s.updates = append(s.updates, msg) }

type panickingSink struct{}

func (panickingSink) OnRefresh(*models.MRefreshMessage) { panic("sink exploded") }
func (panickingSink) OnUpdate(*models.MUpdateMessage)   { panic("sink exploded") }

func newTestLogger() (*logger.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return logger.NewWriterLogger(buf, "test", logger.LevelDebug), buf
}

func testContext() *models.MSubscriptionContext {
	return &models.MSubscriptionContext{
		Handle: 7,
		Metadata: &models.MMetadata{FieldNames: map[models.MFieldID]string{
			22: "Last",
		}},
	}
}

func testRefresh() *models.MRefreshMessage {
	return &models.MRefreshMessage{
		Symbol:                 "MSFT.Q",
		DataSourceID:           models.DataSourceActiv,
		SymbologyID:            models.SymbologyNative,
		TopicSubscriptionState: models.TopicStateRefreshed,
		TopicType:              "equity",
		UpdateID:               42,
		PermissionID:           3,
		Fields:                 models.MFieldMap{22: 415.25, 9: "Q", 30: float64(1200)},
	}
}

func testUpdate() *models.MUpdateMessage {
	return &models.MUpdateMessage{
		Symbol:       "MSFT.Q",
		DataSourceID: models.DataSourceActiv,
		SymbologyID:  models.SymbologyNative,
		UpdateType:   "trade",
		UpdateID:     43,
		EventType:    "trade",
		Fields:       models.MFieldMap{22: 415.5},
	}
}

// -----------------------------------------------------------------------------

func TestSubscriptionHandlerOnRefresh(t *testing.T) {
	log, buf := newTestLogger()
	sink := &recordingSink{}
	h := NewSubscriptionHandler(log, sink)

	h.OnRefresh(testRefresh(), testContext())

	out := buf.String()
	assert.Contains(t, out, "**** Refresh on subscription 7 ****")
	assert.Contains(t, out, "Symbol")
	assert.Contains(t, out, "MSFT.Q")
	assert.Contains(t, out, "Field 22 (Last)")
	assert.Contains(t, out, "415.25")
	assert.Contains(t, out, "1200")
	assert.NotContains(t, out, "ERROR")

	// fields are logged in id order
	assert.Less(t, strings.Index(out, "Field 9 "), strings.Index(out, "Field 22 "))
	assert.Less(t, strings.Index(out, "Field 22 "), strings.Index(out, "Field 30 "))

	require.Len(t, sink.refreshes, 1)
	assert.Equal(t, "MSFT.Q", sink.refreshes[0].Symbol)
}

func TestSubscriptionHandlerOnUpdate(t *testing.T) {
	log, buf := newTestLogger()
	sink := &recordingSink{}
	h := NewSubscriptionHandler(log, sink)

	h.OnUpdate(testUpdate(), testContext())

	out := buf.String()
	assert.Contains(t, out, "**** Update on subscription 7 ****")
	assert.Contains(t, out, "Update type")
	assert.Contains(t, out, "Event type")
	require.Len(t, sink.updates, 1)
}

func TestSubscriptionHandlerStatusCallbacks(t *testing.T) {
	log, buf := newTestLogger()
	h := NewSubscriptionHandler(log)

	h.OnSubscriptionStatus(&models.MSubscriptionStatusMessage{
		DataSourceID: models.DataSourceActiv,
		SymbologyID:  models.SymbologyNative,
		Request:      models.RequestSubscribe,
		State:        models.SubscriptionStateSuccess,
	}, testContext())
	h.OnTopicStatus(&models.MTopicStatusMessage{
		Symbol:                 "MSFT.Q",
		TopicSubscriptionState: models.TopicStateStale,
	}, testContext())

	out := buf.String()
	assert.Contains(t, out, "**** Status on subscription 7 ****")
	assert.Contains(t, out, "success")
	assert.Contains(t, out, "**** Topic status on subscription 7 ****")
	assert.Contains(t, out, "stale")
}

func TestSubscriptionHandlerMissingFields(t *testing.T) {
	log, buf := newTestLogger()
	h := NewSubscriptionHandler(log)

	msg := testRefresh()
	msg.Fields = nil

	assert.NotPanics(t, func() { h.OnRefresh(msg, testContext()) })
	assert.NotContains(t, buf.String(), "Field ")
	assert.NotContains(t, buf.String(), "ERROR")
}

func TestSubscriptionHandlerNilInputs(t *testing.T) {
	log, buf := newTestLogger()
	h := NewSubscriptionHandler(log)

	assert.NotPanics(t, func() {
		h.OnRefresh(nil, nil)
		h.OnUpdate(nil, nil)
		h.OnSubscriptionStatus(nil, nil)
		h.OnTopicStatus(nil, nil)
		h.OnRefresh(testRefresh(), nil)
	})
	assert.Contains(t, buf.String(), "**** Refresh on subscription 0 ****")
}

func TestSubscriptionHandlerRecoversFromPanic(t *testing.T) {
	log, buf := newTestLogger()
	h := NewSubscriptionHandler(log, panickingSink{})

	assert.NotPanics(t, func() {
		h.OnRefresh(testRefresh(), testContext())
		h.OnUpdate(testUpdate(), testContext())
	})

	out := buf.String()
	assert.Contains(t, out, "Error in OnRefresh: sink exploded")
	assert.Contains(t, out, "Error in OnUpdate: sink exploded")
	// the stack trace follows the error line
	assert.Contains(t, out, "goroutine")
}

// -----------------------------------------------------------------------------

func TestSessionHandler(t *testing.T) {
	log, buf := newTestLogger()
	var states []bool
	h := NewSessionHandler(log, func(connected bool) { states = append(states, connected) })

	h.OnConnected(nil)
	h.OnLog(nil, "info", "dictionary loaded")
	h.OnError(nil, errors.New("boom"))
	h.OnDisconnected(nil)

	out := buf.String()
	assert.Contains(t, out, "Session connected")
	assert.Contains(t, out, "Session log: dictionary loaded")
	assert.Contains(t, out, "Session error: boom")
	assert.Contains(t, out, "Session disconnected")
	assert.Equal(t, []bool{true, false}, states)
}

func TestSessionHandlerRecoversFromHookPanic(t *testing.T) {
	log, buf := newTestLogger()
	h := NewSessionHandler(log, func(bool) { panic("hook exploded") })

	assert.NotPanics(t, func() { h.OnConnected(nil) })
	assert.Contains(t, buf.String(), "Error in OnConnected: hook exploded")
}

// -----------------------------------------------------------------------------

func TestPrintSubscriptionHandler(t *testing.T) {
	log, _ := newTestLogger()
	out := &bytes.Buffer{}
	h := NewPrintSubscriptionHandler(out, log)

	h.OnRefresh(testRefresh(), testContext())
	h.OnUpdate(testUpdate(), testContext())
	h.OnTopicStatus(&models.MTopicStatusMessage{Symbol: "CSIQ.Q"}, testContext())
	h.OnSubscriptionStatus(&models.MSubscriptionStatusMessage{Request: models.RequestSubscribe}, testContext())

	text := out.String()
	assert.Contains(t, text, "REFRESH received for MSFT.Q\n")
	assert.Contains(t, text, "UPDATE received for MSFT.Q\n")
	assert.Contains(t, text, "TOPIC STATUS received for CSIQ.Q\n")
	assert.Contains(t, text, "SUBSCRIPTION STATUS received for subscribe\n")
	assert.Contains(t, text, "Field 22 (Last)")
}

func TestPrintSessionHandler(t *testing.T) {
	log, _ := newTestLogger()
	out := &bytes.Buffer{}
	h := NewPrintSessionHandler(out, log)

	h.OnConnected(nil)
	h.OnError(nil, errors.New("timeout"))
	h.OnDisconnected(nil)

	assert.Equal(t, "Session connected\nSession error: timeout\nSession disconnected\n", out.String())
}

// -----------------------------------------------------------------------------

func TestDottedAlignsValues(t *testing.T) {
	a := dotted("Symbol", "X")
	b := dotted("Topic subscription state", "Y")

	assert.Equal(t, len(a)-1, strings.Index(a, "X"))
	assert.Equal(t, strings.Index(a, "X"), strings.Index(b, "Y"))
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "<empty>", formatValue(nil))
	assert.Equal(t, "1200", formatValue(float64(1200)))
	assert.Equal(t, "415.25", formatValue(415.25))
	assert.Equal(t, "Q", formatValue("Q"))
	assert.Equal(t, "true", formatValue(true))
}

func TestMessageToStringNil(t *testing.T) {
	assert.Empty(t, RefreshMessageToString(nil, nil))
	assert.Empty(t, UpdateMessageToString(nil, nil))
	assert.Empty(t, TopicStatusMessageToString(nil))
	assert.Empty(t, SubscriptionStatusMessageToString(nil))
}
