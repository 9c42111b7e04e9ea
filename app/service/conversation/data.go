package conversation

import "pairtalk/app/service/store"

type TurnInput struct {
	SessionID string
	Partner   string
	// Text is the user's message, or the start sentinel to ask for an opener.
	Text string
}

type TurnResult struct {
	Reply      string
	Summary    string
	HasSummary bool

	// Framing is set on the second partner's first turn and must be stored by the caller.
	Framing    string
	NewFraming bool
}

type PartnerState string

const (
	StateNotStarted PartnerState = "not_started"
	StateInProgress PartnerState = "in_progress"
	StateSummarized PartnerState = "summarized"
)

type PartnerStatus struct {
	Name  string       `json:"name"`
	State PartnerState `json:"state"`
}

type SessionStatus struct {
	SessionID string          `json:"session_id"`
	Partners  []PartnerStatus `json:"partners"`
	BothDone  bool            `json:"both_done"`
	Solution  string          `json:"solution,omitempty"`
}

type TurnOutcome struct {
	Reply     *store.Message `json:"reply"`
	Summary   *store.Summary `json:"summary,omitempty"`
	Finalized bool           `json:"finalized"`
}
