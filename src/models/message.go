package models

// -----------------------------------------------------------------------------

// MFieldID identifies a field inside a refresh or update payload
type MFieldID uint16

// MFieldMap maps field ids to their decoded values (string, float64, bool or nil)
type MFieldMap map[MFieldID]interface{}

// -----------------------------------------------------------------------------

// DataSourceID identifies the feed a topic belongs to
type DataSourceID string

const (
	DataSourceActiv DataSourceID = "activ"
)

// -----------------------------------------------------------------------------

// SymbologyID identifies how a symbol is resolved by the gateway
type SymbologyID string

const (
	SymbologyNative SymbologyID = "native"
)

// -----------------------------------------------------------------------------

// Topic, update and subscription states are opaque gateway strings;
// the constants below are the values the gateway is known to send.
const (
	TopicStatePending   = "pending"
	TopicStateRefreshed = "refreshed"
	TopicStateStale     = "stale"

	SubscriptionStateSuccess = "success"
	SubscriptionStateFailure = "failure"
	SubscriptionStateClosed  = "closed"

	RequestSubscribe = "subscribe"
)

// -----------------------------------------------------------------------------

// MRefreshMessage is the initial snapshot for a subscribed topic.
// Fields may be nil when the gateway sends a refresh without payload.
type MRefreshMessage struct {
	Symbol                 string       `json:"symbol"`
	DataSourceID           DataSourceID `json:"data_source_id"`
	SymbologyID            SymbologyID  `json:"symbology_id"`
	TopicSubscriptionState string       `json:"topic_subscription_state,omitempty"`
	TopicType              string       `json:"topic_type,omitempty"`
	UpdateID               uint64       `json:"update_id"`
	PermissionID           uint32       `json:"permission_id"`
	Fields                 MFieldMap    `json:"fields,omitempty"`
}

// -----------------------------------------------------------------------------

// MUpdateMessage is an incremental change for a subscribed topic
type MUpdateMessage struct {
	Symbol                 string       `json:"symbol"`
	DataSourceID           DataSourceID `json:"data_source_id"`
	SymbologyID            SymbologyID  `json:"symbology_id"`
	UpdateType             string       `json:"update_type,omitempty"`
	TopicSubscriptionState string       `json:"topic_subscription_state,omitempty"`
	TopicType              string       `json:"topic_type,omitempty"`
	UpdateID               uint64       `json:"update_id"`
	EventType              string       `json:"event_type,omitempty"`
	PermissionID           uint32       `json:"permission_id"`
	Fields                 MFieldMap    `json:"fields,omitempty"`
}

// -----------------------------------------------------------------------------

// MSubscriptionStatusMessage reports the lifecycle of a subscription request
type MSubscriptionStatusMessage struct {
	DataSourceID DataSourceID `json:"data_source_id"`
	SymbologyID  SymbologyID  `json:"symbology_id"`
	Request      string       `json:"request"`
	State        string       `json:"state"`
}

// -----------------------------------------------------------------------------

// MTopicStatusMessage reports the lifecycle of a single topic
type MTopicStatusMessage struct {
	Symbol                 string       `json:"symbol"`
	DataSourceID           DataSourceID `json:"data_source_id"`
	SymbologyID            SymbologyID  `json:"symbology_id"`
	TopicSubscriptionState string       `json:"topic_subscription_state,omitempty"`
	TopicType              string       `json:"topic_type,omitempty"`
}

// -----------------------------------------------------------------------------

// MSubscriptionContext accompanies every subscription callback.
// It is only valid for the duration of the callback.
type MSubscriptionContext struct {
	Handle   int64
	Metadata *MMetadata
}

// -----------------------------------------------------------------------------

// MMetadata holds the field dictionary downloaded at login
type MMetadata struct {
	FieldNames map[MFieldID]string
}

// FieldName returns the dictionary name of a field, if known
func (m *MMetadata) FieldName(id MFieldID) (string, bool) {
	if m == nil || m.FieldNames == nil {
		return "", false
	}
	name, ok := m.FieldNames[id]
	return name, ok
}

// -----------------------------------------------------------------------------

// MSubscribeOptions qualifies the symbol of a subscription request
type MSubscribeOptions struct {
	SymbologyID  SymbologyID
	DataSourceID DataSourceID
}
