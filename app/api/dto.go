package api

import (
	"time"

	"pairtalk/app/service/notify"
	"pairtalk/app/service/store"
)

type createSessionRequest struct {
	Names string `json:"names" validate:"required"`
}

type sessionResponse struct {
	ID        string    `json:"id"`
	Names     string    `json:"names"`
	Partners  []string  `json:"partners"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

type sendTurnRequest struct {
	Partner string `json:"partner" validate:"required"`
	Text    string `json:"text" validate:"required"`
}

type turnResponse struct {
	Reply     *store.Message `json:"reply"`
	Summary   *store.Summary `json:"summary,omitempty"`
	Finalized bool           `json:"finalized"`
}

type threadResponse struct {
	Partner  string           `json:"partner"`
	Messages []*store.Message `json:"messages"`
}

type summaryResponse struct {
	Found   bool           `json:"found"`
	Summary *store.Summary `json:"summary,omitempty"`
}

type eventResponse struct {
	Event *notify.Event `json:"event"`
}

func toSessionResponse(session *store.Session, names string) sessionResponse {
	return sessionResponse{
		ID:        session.ID,
		Names:     names,
		Partners:  session.Partners[:],
		Type:      session.Type,
		CreatedAt: session.CreatedAt,
	}
}
