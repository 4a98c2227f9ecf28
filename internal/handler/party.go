package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/dukerupert/partyplanner/internal/model"
	"github.com/dukerupert/partyplanner/internal/planner"
	"github.com/dukerupert/partyplanner/internal/view"
)

// PartyHandler turns browser interactions into planner operations. Gateway
// failures never surface as HTTP errors; they show up in the rendered app.
type PartyHandler struct {
	planner *planner.Planner
	logger  *slog.Logger
}

func NewPartyHandler(p *planner.Planner, logger *slog.Logger) *PartyHandler {
	return &PartyHandler{planner: p, logger: logger}
}

// Page serves the full document.
func (h *PartyHandler) Page(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	page, err := h.planner.Page()
	if err != nil {
		h.logger.Error("render page", "error", err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	writeHTML(w, page)
}

// AppPartial serves just the #app contents.
func (h *PartyHandler) AppPartial(w http.ResponseWriter, r *http.Request) {
	h.renderApp(w)
}

// Show selects a party from a plain link and redirects back to its details.
func (h *PartyHandler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	h.planner.SelectParty(r.Context(), id)
	http.Redirect(w, r, "/#selected", http.StatusSeeOther)
}

func (h *PartyHandler) Select(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	h.planner.SelectParty(detach(r), id)
	h.respond(w, r)
}

func (h *PartyHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form data", http.StatusBadRequest)
		return
	}

	np, err := partyFromForm(r)
	if err != nil {
		h.planner.Fail("create party", err)
		h.respond(w, r)
		return
	}

	h.planner.CreateParty(r.Context(), np)
	h.respond(w, r)
}

func (h *PartyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	h.planner.DeleteParty(r.Context(), id)
	h.respond(w, r)
}

// Refresh reloads everything the way startup does.
func (h *PartyHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.planner.Init(detach(r))
	h.respond(w, r)
}

// detach keeps planner work running after the requesting browser hangs up.
// The resulting state is shared by every browser, not just this one.
func detach(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func partyFromForm(r *http.Request) (model.NewParty, error) {
	np := model.NewParty{
		Name:        strings.TrimSpace(r.FormValue("name")),
		Description: strings.TrimSpace(r.FormValue("description")),
		Location:    strings.TrimSpace(r.FormValue("location")),
	}
	date := strings.TrimSpace(r.FormValue("date"))

	var missing []string
	for _, f := range []struct{ name, value string }{
		{"name", np.Name},
		{"description", np.Description},
		{"date", date},
		{"location", np.Location},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return model.NewParty{}, errors.New(strings.Join(missing, ", ") + " required")
	}

	iso, err := view.ISODate(date)
	if err != nil {
		return model.NewParty{}, err
	}
	np.Date = iso
	return np, nil
}

// respond answers an HTMX request with the fresh fragment and any other
// request with a redirect to the page.
func (h *PartyHandler) respond(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("HX-Request") == "true" {
		h.renderApp(w)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *PartyHandler) renderApp(w http.ResponseWriter) {
	app, err := h.planner.App()
	if err != nil {
		h.logger.Error("render app", "error", err)
		writeHTML(w, []byte(`<div class="alert alert-error">Template error</div>`))
		return
	}
	writeHTML(w, app)
}

func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func writeHTML(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(body)
}
