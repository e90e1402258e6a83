package types

type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

// StatusResponse is the combined agent, conversation and capability server
// state shown in the page header.
type StatusResponse struct {
	Message   string   `json:"message"`
	Agent     bool     `json:"agent"`
	Provider  string   `json:"provider,omitempty"`
	SessionID string   `json:"session_id,omitempty"`
	Server    string   `json:"server"`
	PID       int      `json:"pid,omitempty"`
	Tools     []string `json:"tools"`
	LastError string   `json:"last_error,omitempty"`
}

// ActionResponse carries the status line of a start, stop or reset action.
type ActionResponse struct {
	Status string         `json:"status"`
	State  StatusResponse `json:"state"`
}

type SendMessageRequest struct {
	Text string `json:"text"`
}

type SendMessageResponse struct {
	Reply     string `json:"reply"`
	HTML      string `json:"html"`
	SessionID string `json:"session_id,omitempty"`
}

type Exchange struct {
	User      string `json:"user"`
	Assistant string `json:"assistant"`
	HTML      string `json:"html"`
	At        string `json:"at"`
}

type HistoryResponse struct {
	SessionID string     `json:"session_id,omitempty"`
	Exchanges []Exchange `json:"exchanges"`
}

// DeviceStatusResponse is the device status resource as served by the
// capability server, raw and highlighted.
type DeviceStatusResponse struct {
	JSON string `json:"json"`
	HTML string `json:"html"`
}

type PromptResponse struct {
	Name string `json:"name"`
	Text string `json:"text"`
}
