package models

import "encoding/json"

const StatusCompleted = "completed"

// AgentResponse is the envelope returned for one query.
type AgentResponse struct {
	Type       Category           `json:"type"`
	Response   string             `json:"response"`
	Properties []AnalyzedProperty `json:"properties"`
	Status     string             `json:"status"`
	Query      string             `json:"query,omitempty"`
}

// MarshalJSON omits properties from conversation replies and renders an empty
// search result as [].
func (r AgentResponse) MarshalJSON() ([]byte, error) {
	if r.Type == CategoryConversation {
		return json.Marshal(struct {
			Type     Category `json:"type"`
			Response string   `json:"response"`
			Status   string   `json:"status"`
		}{r.Type, r.Response, r.Status})
	}

	type wire AgentResponse
	if r.Properties == nil {
		r.Properties = []AnalyzedProperty{}
	}
	return json.Marshal(wire(r))
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type AgentRequest struct {
	Query string `json:"query"`
}
