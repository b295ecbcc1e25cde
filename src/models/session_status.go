package models

// -----------------------------------------------------------------------------

// MSessionStatus represents the runtime status and technical metadata of a session.
// It aggregates information from the session and its connection client.
type MSessionStatus struct {
	SessionID     string   // unique id of this session instance
	Connected     bool     // login acknowledged and transport running
	Host          string   // gateway host from the session parameters
	TransportType string   // e.g. "websocket", "replay" (from IConnectionClient.GetType())
	Endpoint      string   // transport endpoint, credentials masked
	Symbols       []string // symbols with an active subscription
}
