package handler

import (
	"encoding/json"
	"net/http"

	"github.com/dukerupert/partyplanner/internal/planner"
)

// ClientCounter reports connected live-update clients.
type ClientCounter interface {
	ClientCount() int
}

type healthResponse struct {
	Status  string `json:"status"`
	Parties int    `json:"parties"`
	Guests  int    `json:"guests"`
	RSVPs   int    `json:"rsvps"`
	Renders uint64 `json:"renders"`
	Clients int    `json:"clients"`
	Error   string `json:"error,omitempty"`
}

// Health reports the planner's view of the remote API. It answers 200 even
// when the last call failed; the error is in the body.
func Health(p *planner.Planner, clients ClientCounter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := p.Snapshot()
		resp := healthResponse{
			Status:  "ok",
			Parties: len(st.Parties),
			Guests:  len(st.Guests),
			RSVPs:   len(st.RSVPs),
			Renders: p.Renders(),
			Error:   st.Err,
		}
		if clients != nil {
			resp.Clients = clients.ClientCount()
		}
		if st.Err != "" {
			resp.Status = "degraded"
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
