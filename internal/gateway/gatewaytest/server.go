// Package gatewaytest provides an in-memory stand-in for the remote party API.
package gatewaytest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	"github.com/dukerupert/partyplanner/internal/gateway"
	"github.com/dukerupert/partyplanner/internal/model"
)

// Cohort is the path segment the fake serves under.
const Cohort = "test-cohort"

// Server is a fake remote API rooted at URL + "/api/" + Cohort.
type Server struct {
	*httptest.Server

	mu      sync.Mutex
	parties []model.Party
	guests  []model.Guest
	rsvps   []model.RSVP
	nextID  int64
	failing map[string]int
	created []model.NewParty
}

// NewServer starts a fake seeded with the given records. Call Close when done.
func NewServer(parties []model.Party, guests []model.Guest, rsvps []model.RSVP) *Server {
	s := &Server{
		parties: parties,
		guests:  guests,
		rsvps:   rsvps,
		failing: make(map[string]int),
	}
	for _, p := range parties {
		if p.ID > s.nextID {
			s.nextID = p.ID
		}
	}

	mux := http.NewServeMux()
	root := "/api/" + Cohort
	mux.HandleFunc("GET "+root+"/events", s.listEvents)
	mux.HandleFunc("GET "+root+"/events/{id}", s.getEvent)
	mux.HandleFunc("POST "+root+"/events", s.createEvent)
	mux.HandleFunc("DELETE "+root+"/events/{id}", s.deleteEvent)
	mux.HandleFunc("GET "+root+"/guests", s.listGuests)
	mux.HandleFunc("GET "+root+"/rsvps", s.listRsvps)

	s.Server = httptest.NewServer(s.failures(mux))
	return s
}

// Client returns a gateway client pointed at the fake.
func (s *Server) Client() *gateway.Client {
	return gateway.NewClient(gateway.Config{BaseURL: s.URL + "/api", Cohort: Cohort})
}

// FailWith makes every request matching "METHOD /path" (relative to the
// cohort root, e.g. "GET /events") answer with status. Zero clears it.
func (s *Server) FailWith(route string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.failing, route)
		return
	}
	s.failing[route] = status
}

// Parties returns the fake's current party list.
func (s *Server) Parties() []model.Party {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Party(nil), s.parties...)
}

// Created returns every create payload the fake accepted.
func (s *Server) Created() []model.NewParty {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.NewParty(nil), s.created...)
}

func (s *Server) failures(next http.Handler) http.Handler {
	prefix := len("/api/" + Cohort)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.Method + " " + r.URL.Path[min(prefix, len(r.URL.Path)):]
		s.mu.Lock()
		status, ok := s.failing[route]
		s.mu.Unlock()
		if ok {
			writeEnvelope(w, status, map[string]any{"success": false, "error": http.StatusText(status)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeEnvelope(w, http.StatusOK, map[string]any{"success": true, "data": s.parties})
}

func (s *Server) getEvent(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.parties {
		if p.ID == id {
			writeEnvelope(w, http.StatusOK, map[string]any{"success": true, "data": p})
			return
		}
	}
	writeEnvelope(w, http.StatusNotFound, map[string]any{"success": false, "error": map[string]string{"message": "Event not found"}})
}

func (s *Server) createEvent(w http.ResponseWriter, r *http.Request) {
	var np model.NewParty
	if err := json.NewDecoder(r.Body).Decode(&np); err != nil {
		writeEnvelope(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid JSON"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	p := model.Party{ID: s.nextID, Name: np.Name, Description: np.Description, Date: np.Date, Location: np.Location}
	s.parties = append(s.parties, p)
	s.created = append(s.created, np)
	writeEnvelope(w, http.StatusCreated, map[string]any{"success": true, "data": p})
}

func (s *Server) deleteEvent(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := make([]model.Party, 0, len(s.parties))
	for _, p := range s.parties {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	s.parties = kept
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listGuests(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeEnvelope(w, http.StatusOK, map[string]any{"success": true, "data": s.guests})
}

func (s *Server) listRsvps(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeEnvelope(w, http.StatusOK, map[string]any{"success": true, "data": s.rsvps})
}

func writeEnvelope(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
