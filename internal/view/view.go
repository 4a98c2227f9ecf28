// Package view projects planner state into HTML. Nothing here mutates state;
// the same state always renders to the same bytes.
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/dukerupert/partyplanner/internal/model"
	"github.com/dukerupert/partyplanner/internal/state"
)

//go:embed templates/*.html
var templateFS embed.FS

// Builder renders the planner's templates.
type Builder struct {
	templates *template.Template
}

// New parses the embedded templates.
func New() (*Builder, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"shortDate": shortDate,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Builder{templates: tmpl}, nil
}

// Must is like New but panics on a template parse error.
func Must() *Builder {
	b, err := New()
	if err != nil {
		panic(err)
	}
	return b
}

type partyItem struct {
	model.Party
	Selected bool
}

type appData struct {
	Parties  []partyItem
	Selected *model.Party
	Guests   []model.Guest
	Err      string
}

func project(st state.State) appData {
	data := appData{
		Parties:  make([]partyItem, 0, len(st.Parties)),
		Selected: st.Selected,
		Err:      st.Err,
	}
	for _, p := range st.Parties {
		data.Parties = append(data.Parties, partyItem{Party: p, Selected: st.IsSelected(p.ID)})
	}
	if st.Selected != nil {
		data.Guests = GuestsAtParty(st.Guests, st.RSVPs, st.Selected.ID)
	}
	return data
}

// App renders the contents of the #app container: heading, party list,
// detail panel and creation form.
func (b *Builder) App(st state.State) ([]byte, error) {
	return b.execute("app", project(st))
}

// Page renders a full HTML document around App.
func (b *Builder) Page(st state.State) ([]byte, error) {
	app, err := b.App(st)
	if err != nil {
		return nil, err
	}
	return b.execute("page", map[string]any{"App": template.HTML(app)})
}

func (b *Builder) execute(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := b.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// GuestsAtParty returns, in guest list order, every guest joined to partyID
// by at least one RSVP.
func GuestsAtParty(guests []model.Guest, rsvps []model.RSVP, partyID int64) []model.Guest {
	attending := make(map[int64]bool)
	for _, r := range rsvps {
		if r.EventID == partyID {
			attending[r.GuestID] = true
		}
	}
	out := []model.Guest{}
	for _, g := range guests {
		if attending[g.ID] {
			out = append(out, g)
		}
	}
	return out
}

// ISODate converts a date input value (YYYY-MM-DD) into the timestamp text a
// browser's Date.toISOString produces for it: midnight UTC with milliseconds.
func ISODate(value string) (string, error) {
	d, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", value, err)
	}
	return d.UTC().Format("2006-01-02T15:04:05.000Z"), nil
}

// shortDate is the calendar-day prefix of an ISO timestamp: its first ten
// characters, never split inside a multibyte rune.
func shortDate(iso string) string {
	n := 0
	for i := range iso {
		if n == 10 {
			return iso[:i]
		}
		n++
	}
	return iso
}
