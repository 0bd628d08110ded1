package models

// Event names multiplexed over a chat stream. A response body carries a
// sequence of these events using line-oriented `event:`/`data:` framing.
const (
	EventStatus       = "status"
	EventRequirements = "requirements"
	EventToken        = "token"
	EventDone         = "done"
	EventError        = "error"
)

// ComplianceResult pairs a requirement extracted from internal documents with
// the regulation passages it was checked against.
type ComplianceResult struct {
	Requirement    string `json:"requirement"`
	ComplianceInfo string `json:"compliance_info"`
}

// StatusEvent is the payload of a "status" event. The counts reflect the
// partial analysis state at the time the status was emitted.
type StatusEvent struct {
	Message                string `json:"message"`
	RequirementsCount      int    `json:"requirements_count"`
	ComplianceResultsCount int    `json:"compliance_results_count"`
}

// RequirementsEvent is the payload of a "requirements" event. It replaces any
// previously received requirements wholesale.
type RequirementsEvent struct {
	Requirements      []string           `json:"requirements"`
	ComplianceResults []ComplianceResult `json:"compliance_results"`
}

// TokenEvent is the payload of a "token" event: one fragment of the streamed
// answer.
type TokenEvent struct {
	Token string `json:"token"`
}

// DoneEvent is the payload of a "done" event.
type DoneEvent struct {
	Complete bool `json:"complete"`
}

// ErrorEvent is the payload of an "error" event.
type ErrorEvent struct {
	Error string `json:"error"`
}
