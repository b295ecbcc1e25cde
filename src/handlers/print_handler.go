package handlers

import (
	"fmt"
	"io"

	"activ-subscriber/src/interfaces"
	"activ-subscriber/src/logger"
	"activ-subscriber/src/models"
)

// -----------------------------------------------------------------------------

// PrintSubscriptionHandler writes messages to Out as bare text blocks,
// without log prefixes. Failures still go to Logger.
type PrintSubscriptionHandler struct {
	Out    io.Writer
	Logger *logger.Logger
}

// NewPrintSubscriptionHandler creates a printing subscription handler
func NewPrintSubscriptionHandler(out io.Writer, logger *logger.Logger) *PrintSubscriptionHandler {
	return &PrintSubscriptionHandler{Out: out, Logger: logger}
}

// -----------------------------------------------------------------------------

func (h *PrintSubscriptionHandler) OnRefresh(msg *models.MRefreshMessage, ctx *models.MSubscriptionContext) {
	defer recoverCallback(h.Logger, "OnRefresh")
	if msg == nil {
		return
	}
	fmt.Fprintf(h.Out, "REFRESH received for %s\n", msg.Symbol)
	fmt.Fprintln(h.Out, RefreshMessageToString(msg, metadataOf(ctx)))
}

func (h *PrintSubscriptionHandler) OnUpdate(msg *models.MUpdateMessage, ctx *models.MSubscriptionContext) {
	defer recoverCallback(h.Logger, "OnUpdate")
	if msg == nil {
		return
	}
	fmt.Fprintf(h.Out, "UPDATE received for %s\n", msg.Symbol)
	fmt.Fprintln(h.Out, UpdateMessageToString(msg, metadataOf(ctx)))
}

func (h *PrintSubscriptionHandler) OnTopicStatus(msg *models.MTopicStatusMessage, ctx *models.MSubscriptionContext) {
	defer recoverCallback(h.Logger, "OnTopicStatus")
	if msg == nil {
		return
	}
	fmt.Fprintf(h.Out, "TOPIC STATUS received for %s\n", msg.Symbol)
	fmt.Fprintln(h.Out, TopicStatusMessageToString(msg))
}

func (h *PrintSubscriptionHandler) OnSubscriptionStatus(msg *models.MSubscriptionStatusMessage, ctx *models.MSubscriptionContext) {
	defer recoverCallback(h.Logger, "OnSubscriptionStatus")
	if msg == nil {
		return
	}
	fmt.Fprintf(h.Out, "SUBSCRIPTION STATUS received for %s\n", msg.Request)
	fmt.Fprintln(h.Out, SubscriptionStatusMessageToString(msg))
}

// -----------------------------------------------------------------------------

// PrintSessionHandler writes session events to Out
type PrintSessionHandler struct {
	Out    io.Writer
	Logger *logger.Logger
}

// NewPrintSessionHandler creates a printing session handler
func NewPrintSessionHandler(out io.Writer, logger *logger.Logger) *PrintSessionHandler {
	return &PrintSessionHandler{Out: out, Logger: logger}
}

// -----------------------------------------------------------------------------

func (h *PrintSessionHandler) OnConnected(session interfaces.ISession) {
	defer recoverCallback(h.Logger, "OnConnected")
	fmt.Fprintln(h.Out, "Session connected")
}

func (h *PrintSessionHandler) OnDisconnected(session interfaces.ISession) {
	defer recoverCallback(h.Logger, "OnDisconnected")
	fmt.Fprintln(h.Out, "Session disconnected")
}

func (h *PrintSessionHandler) OnError(session interfaces.ISession, err error) {
	defer recoverCallback(h.Logger, "OnError")
	fmt.Fprintf(h.Out, "Session error: %v\n", err)
}

func (h *PrintSessionHandler) OnLog(session interfaces.ISession, logType string, message string) {
	defer recoverCallback(h.Logger, "OnLog")
	fmt.Fprintf(h.Out, "Session log [%s]: %s\n", logType, message)
}
