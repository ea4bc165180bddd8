package protocol

// GATHER (operator -> agent): "collect Count units of Target".
// Radius 0 means the configured default search radius.
type GatherMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id,omitempty"`
	AgentID         string `json:"agent_id,omitempty"`
	Target          string `json:"target"`
	Count           int    `json:"count"`
	Radius          int    `json:"radius,omitempty"`
}
