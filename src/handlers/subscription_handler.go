package handlers

import (
	"activ-subscriber/src/interfaces"
	"activ-subscriber/src/logger"
	"activ-subscriber/src/models"
)

// -----------------------------------------------------------------------------

// SubscriptionHandler logs every message of a subscription, one line per
// attribute, and forwards refreshes and updates to the configured sinks.
type SubscriptionHandler struct {
	Name   string
	Logger *logger.Logger
	Sinks  []interfaces.IMessageSink
}

// -----------------------------------------------------------------------------

// NewSubscriptionHandler creates a logging subscription handler
func NewSubscriptionHandler(logger *logger.Logger, sinks ...interfaces.IMessageSink) *SubscriptionHandler {
	return &SubscriptionHandler{
		Name:   "SubscriptionHandler",
		Logger: logger,
		Sinks:  sinks,
	}
}

// -----------------------------------------------------------------------------

// OnRefresh handles refresh messages
func (h *SubscriptionHandler) OnRefresh(msg *models.MRefreshMessage, ctx *models.MSubscriptionContext) {
	defer recoverCallback(h.Logger, "OnRefresh")

	if msg == nil {
		h.Logger.Warning("%s : refresh without message on subscription %d", h.Name, handleOf(ctx))
		return
	}

	h.Logger.Info("**** Refresh on subscription %d ****", handleOf(ctx))
	for _, line := range refreshLines(msg, metadataOf(ctx)) {
		h.Logger.Info("%s", line)
	}

	for _, sink := range h.Sinks {
		sink.OnRefresh(msg)
	}
}

// -----------------------------------------------------------------------------

// OnUpdate handles update messages
func (h *SubscriptionHandler) OnUpdate(msg *models.MUpdateMessage, ctx *models.MSubscriptionContext) {
	defer recoverCallback(h.Logger, "OnUpdate")

	if msg == nil {
		h.Logger.Warning("%s : update without message on subscription %d", h.Name, handleOf(ctx))
		return
	}

	h.Logger.Info("**** Update on subscription %d ****", handleOf(ctx))
	for _, line := range updateLines(msg, metadataOf(ctx)) {
		h.Logger.Info("%s", line)
	}

	for _, sink := range h.Sinks {
		sink.OnUpdate(msg)
	}
}

// -----------------------------------------------------------------------------

// OnSubscriptionStatus handles subscription status messages
func (h *SubscriptionHandler) OnSubscriptionStatus(msg *models.MSubscriptionStatusMessage, ctx *models.MSubscriptionContext) {
	defer recoverCallback(h.Logger, "OnSubscriptionStatus")

	if msg == nil {
		h.Logger.Warning("%s : status without message on subscription %d", h.Name, handleOf(ctx))
		return
	}

	h.Logger.Info("**** Status on subscription %d ****", handleOf(ctx))
	for _, line := range subscriptionStatusLines(msg) {
		h.Logger.Info("%s", line)
	}
}

// -----------------------------------------------------------------------------

// OnTopicStatus handles topic status messages
func (h *SubscriptionHandler) OnTopicStatus(msg *models.MTopicStatusMessage, ctx *models.MSubscriptionContext) {
	defer recoverCallback(h.Logger, "OnTopicStatus")

	if msg == nil {
		h.Logger.Warning("%s : topic status without message on subscription %d", h.Name, handleOf(ctx))
		return
	}

	h.Logger.Info("**** Topic status on subscription %d ****", handleOf(ctx))
	for _, line := range topicStatusLines(msg) {
		h.Logger.Info("%s", line)
	}
}

// -----------------------------------------------------------------------------
// helpers shared by all handlers
// -----------------------------------------------------------------------------

// recoverCallback is deferred by every callback: a panic is logged with its
// stack and swallowed so the session keeps dispatching.
func recoverCallback(l *logger.Logger, callback string) {
	if r := recover(); r != nil {
		l.ErrorWithStack("Error in %s: %v", callback, r)
	}
}

func handleOf(ctx *models.MSubscriptionContext) int64 {
	if ctx == nil {
		return 0
	}
	return ctx.Handle
}

func metadataOf(ctx *models.MSubscriptionContext) *models.MMetadata {
	if ctx == nil {
		return nil
	}
	return ctx.Metadata
}
