package interfaces

import "activ-subscriber/src/models"

// -----------------------------------------------------------------------------

// ISessionHandler receives session lifecycle events.
// Implementations must not panic out of a callback.
type ISessionHandler interface {
	// OnConnected is called once the gateway acknowledged the login
	OnConnected(session ISession)

	// OnDisconnected is called once when the session is released or lost
	OnDisconnected(session ISession)

	// OnError reports an asynchronous session or transport failure
	OnError(session ISession, err error)

	// OnLog forwards a log line emitted by the gateway
	OnLog(session ISession, logType string, message string)
}

// -----------------------------------------------------------------------------

// ISubscriptionHandler receives the messages of one subscription.
// Messages and context are only valid for the duration of the call.
type ISubscriptionHandler interface {
	// OnRefresh delivers the initial snapshot of the topic
	OnRefresh(msg *models.MRefreshMessage, ctx *models.MSubscriptionContext)

	// OnUpdate delivers an incremental change of the topic
	OnUpdate(msg *models.MUpdateMessage, ctx *models.MSubscriptionContext)

	// OnSubscriptionStatus reports the state of the subscription request
	OnSubscriptionStatus(msg *models.MSubscriptionStatusMessage, ctx *models.MSubscriptionContext)

	// OnTopicStatus reports the state of the topic itself
	OnTopicStatus(msg *models.MTopicStatusMessage, ctx *models.MSubscriptionContext)
}
