package models

// -----------------------------------------------------------------------------

// MParameterKey names an entry of the session parameter mapping
type MParameterKey string

const (
	FIDEnableCtrlHandler        MParameterKey = "enable_ctrl_handler"
	FIDEnableDictionaryDownload MParameterKey = "enable_dictionary_download"
	FIDHost                     MParameterKey = "host"
	FIDUserID                   MParameterKey = "user_id"
	FIDPassword                 MParameterKey = "password"
)

// -----------------------------------------------------------------------------

// MSessionParameters is consumed once, at session creation
type MSessionParameters map[MParameterKey]interface{}

// String returns a string parameter or "" when absent
func (p MSessionParameters) String(key MParameterKey) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}

// Bool returns a boolean parameter or false when absent
func (p MSessionParameters) Bool(key MParameterKey) bool {
	if v, ok := p[key].(bool); ok {
		return v
	}
	return false
}

// Wire converts the mapping to the login frame representation
func (p MSessionParameters) Wire() map[string]interface{} {
	out := make(map[string]interface{}, len(p))
	for k, v := range p {
		out[string(k)] = v
	}
	return out
}
