package models

// -----------------------------------------------------------------------------

// MFrameType tags a frame exchanged with the gateway bridge
type MFrameType string

const (
	// client -> gateway
	FrameLogin             MFrameType = "login"
	FrameLogout            MFrameType = "logout"
	FrameDictionaryRequest MFrameType = "dictionary_request"
	FrameSubscribe         MFrameType = "subscribe"

	// gateway -> client
	FrameLoginAck           MFrameType = "login_ack"
	FrameLoginReject        MFrameType = "login_reject"
	FrameDictionary         MFrameType = "dictionary"
	FrameRefresh            MFrameType = "refresh"
	FrameUpdate             MFrameType = "update"
	FrameSubscriptionStatus MFrameType = "subscription_status"
	FrameTopicStatus        MFrameType = "topic_status"
	FrameLog                MFrameType = "log"
	FrameError              MFrameType = "error"
)

// -----------------------------------------------------------------------------

// MFrame is the JSON envelope the bridge exposes the session contract with.
// Only the members relevant to Type are set.
type MFrame struct {
	Type   MFrameType `json:"type"`
	Handle int64      `json:"handle,omitempty"`

	// login
	Parameters map[string]interface{} `json:"parameters,omitempty"`

	// subscribe
	Symbol       string       `json:"symbol,omitempty"`
	SymbologyID  SymbologyID  `json:"symbology_id,omitempty"`
	DataSourceID DataSourceID `json:"data_source_id,omitempty"`

	// log, error, login_reject
	LogType string `json:"log_type,omitempty"`
	Message string `json:"message,omitempty"`

	// dictionary
	Dictionary map[MFieldID]string `json:"dictionary,omitempty"`

	Refresh            *MRefreshMessage            `json:"refresh,omitempty"`
	Update             *MUpdateMessage             `json:"update,omitempty"`
	SubscriptionStatus *MSubscriptionStatusMessage `json:"subscription_status,omitempty"`
	TopicStatus        *MTopicStatusMessage        `json:"topic_status,omitempty"`
}
