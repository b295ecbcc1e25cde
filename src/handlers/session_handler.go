package handlers

import (
	"activ-subscriber/src/interfaces"
	"activ-subscriber/src/logger"
)

// -----------------------------------------------------------------------------

// SessionHandler logs session lifecycle events. OnStateChange, when set, is
// told about every connect and disconnect (the health service listens there).
type SessionHandler struct {
	Name          string
	Logger        *logger.Logger
	OnStateChange func(connected bool)
}

// -----------------------------------------------------------------------------

// NewSessionHandler creates a logging session handler
func NewSessionHandler(logger *logger.Logger, onStateChange func(connected bool)) *SessionHandler {
	return &SessionHandler{
		Name:          "SessionHandler",
		Logger:        logger,
		OnStateChange: onStateChange,
	}
}

// -----------------------------------------------------------------------------

// OnConnected handles connection events
func (h *SessionHandler) OnConnected(session interfaces.ISession) {
	defer recoverCallback(h.Logger, "OnConnected")

	h.Logger.Info("Session connected")
	h.notify(true)
}

// -----------------------------------------------------------------------------

// OnDisconnected handles disconnection events
func (h *SessionHandler) OnDisconnected(session interfaces.ISession) {
	defer recoverCallback(h.Logger, "OnDisconnected")

	h.Logger.Info("Session disconnected")
	h.notify(false)
}

// -----------------------------------------------------------------------------

// OnError handles error events
func (h *SessionHandler) OnError(session interfaces.ISession, err error) {
	defer recoverCallback(h.Logger, "OnError")

	h.Logger.Error("Session error: %v", err)
}

// -----------------------------------------------------------------------------

// OnLog handles log messages forwarded by the gateway
func (h *SessionHandler) OnLog(session interfaces.ISession, logType string, message string) {
	defer recoverCallback(h.Logger, "OnLog")

	h.Logger.Info("Session log: %s", message)
	if logType != "" {
		h.Logger.Debug("%s : gateway log type %s", h.Name, logType)
	}
}

// -----------------------------------------------------------------------------

func (h *SessionHandler) notify(connected bool) {
	if h.OnStateChange != nil {
		h.OnStateChange(connected)
	}
}
