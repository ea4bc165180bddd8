package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	SessionID       string    `json:"session_id"`
	ItemPalette     DigestRef `json:"item_palette"`
}

type DigestRef struct {
	Digest string `json:"digest"`
	Count  int    `json:"count"`
}

type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AckFor          string `json:"ack_for"`
	Accepted        bool   `json:"accepted"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
	ServerTick      uint64 `json:"server_tick,omitempty"`
	TaskID          string `json:"task_id,omitempty"`
}

// STORAGE_EXTRACT (client -> server)
type ExtractReqMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	ReqID           string   `json:"req_id"`
	Access          [3]int   `json:"access"`
	Tool            string   `json:"tool,omitempty"`
	Items           []string `json:"items,omitempty"`
	Max             int      `json:"max,omitempty"`
}

// STORAGE_RESULT (server -> client)
type ExtractResultMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	ReqID           string      `json:"req_id"`
	Items           []ItemCount `json:"items"`
	Code            string      `json:"code,omitempty"`
	Message         string      `json:"message,omitempty"`
}

type ItemCount struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}
