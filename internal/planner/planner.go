// Package planner owns the planner state. It calls the remote API, applies
// results, and re-renders the whole app after every change.
package planner

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dukerupert/partyplanner/internal/model"
	"github.com/dukerupert/partyplanner/internal/state"
	"github.com/dukerupert/partyplanner/internal/view"
)

// Gateway is the remote party API.
type Gateway interface {
	FetchAllParties(ctx context.Context) ([]model.Party, error)
	FetchParty(ctx context.Context, id int64) (*model.Party, error)
	FetchAllRsvps(ctx context.Context) ([]model.RSVP, error)
	FetchAllGuests(ctx context.Context) ([]model.Guest, error)
	CreateParty(ctx context.Context, p model.NewParty) (model.Party, error)
	DeleteParty(ctx context.Context, id int64) error
}

// Publisher receives every render. seq increases by one per render.
type Publisher interface {
	Publish(seq uint64, fragment []byte)
}

type Planner struct {
	gw     Gateway
	view   *view.Builder
	pub    Publisher
	logger *slog.Logger

	mu      sync.Mutex
	st      state.State
	seq     sequencer
	renders uint64
}

// New creates a planner with empty state. pub may be nil.
func New(gw Gateway, vb *view.Builder, pub Publisher, logger *slog.Logger) *Planner {
	return &Planner{
		gw:     gw,
		view:   vb,
		pub:    pub,
		logger: logger,
	}
}

// Init loads events, then RSVPs, then guests, and renders once more at the
// end. Each step runs even if an earlier one failed.
func (p *Planner) Init(ctx context.Context) {
	p.FetchAllParties(ctx)
	p.FetchAllRsvps(ctx)
	p.FetchAllGuests(ctx)

	p.mu.Lock()
	p.renderLocked()
	p.mu.Unlock()
}

func (p *Planner) FetchAllParties(ctx context.Context) {
	n := p.issue(slotParties)
	parties, err := p.gw.FetchAllParties(ctx)
	p.apply(slotParties, n, "fetch parties", err, func(st *state.State) {
		st.Parties = parties
	})
}

// SelectParty fetches one party and makes it the selection. A party the
// server answers with no data clears the selection.
func (p *Planner) SelectParty(ctx context.Context, id int64) {
	n := p.issue(slotSelection)
	party, err := p.gw.FetchParty(ctx, id)
	p.apply(slotSelection, n, "fetch party", err, func(st *state.State) {
		st.Selected = party
	})
}

func (p *Planner) FetchAllRsvps(ctx context.Context) {
	n := p.issue(slotRsvps)
	rsvps, err := p.gw.FetchAllRsvps(ctx)
	p.apply(slotRsvps, n, "fetch rsvps", err, func(st *state.State) {
		st.RSVPs = rsvps
	})
}

func (p *Planner) FetchAllGuests(ctx context.Context) {
	n := p.issue(slotGuests)
	guests, err := p.gw.FetchAllGuests(ctx)
	p.apply(slotGuests, n, "fetch guests", err, func(st *state.State) {
		st.Guests = guests
	})
}

// CreateParty posts the party and then reloads the party list. State is
// never updated from the create response itself.
//
// The write and its refetch outlive cancellation of ctx: once the POST may
// have reached the server, every browser needs the reloaded list.
func (p *Planner) CreateParty(ctx context.Context, np model.NewParty) {
	ctx = context.WithoutCancel(ctx)
	created, err := p.gw.CreateParty(ctx, np)
	if err != nil {
		p.Fail("create party", err)
		return
	}
	p.logger.Info("party created", "id", created.ID, "name", np.Name)
	p.FetchAllParties(ctx)
}

// DeleteParty deletes the party, clears the selection and reloads the list.
// Like CreateParty it ignores cancellation of ctx.
//
// Clearing the selection counts as a selection issued when the delete was
// requested: selects issued before it are discarded, later ones still win.
func (p *Planner) DeleteParty(ctx context.Context, id int64) {
	ctx = context.WithoutCancel(ctx)
	n := p.issue(slotSelection)
	if err := p.gw.DeleteParty(ctx, id); err != nil {
		p.Fail("delete party", err)
		return
	}
	p.logger.Info("party deleted", "id", id)

	p.mu.Lock()
	if p.seq.accept(slotSelection, n) {
		p.st.Selected = nil
	}
	p.mu.Unlock()

	p.FetchAllParties(ctx)
}

// Fail records err as the current error and re-renders. Nothing else in
// the state changes.
func (p *Planner) Fail(op string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failLocked(op, err)
}

func (p *Planner) failLocked(op string, err error) {
	p.logger.Error(op+" failed", "error", err)
	p.st.Err = op + ": " + err.Error()
	p.renderLocked()
}

// Snapshot returns a copy of the current state.
func (p *Planner) Snapshot() state.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.st.Clone()
}

// App renders the app fragment from the current state.
func (p *Planner) App() ([]byte, error) {
	return p.view.App(p.Snapshot())
}

// Page renders the full document from the current state.
func (p *Planner) Page() ([]byte, error) {
	return p.view.Page(p.Snapshot())
}

// Renders reports how many renders have been published.
func (p *Planner) Renders() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.renders
}

func (p *Planner) issue(sl slot) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seq.issue(sl)
}

func (p *Planner) apply(sl slot, n uint64, op string, err error, mutate func(*state.State)) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.seq.stale(sl, n) {
		p.logger.Debug("discarding stale result", "op", op, "slot", sl.String(), "seq", n, "error", err)
		return
	}
	if err != nil {
		p.failLocked(op, err)
		return
	}
	p.seq.accept(sl, n)
	mutate(&p.st)
	p.st.Err = ""
	p.renderLocked()
}

// renderLocked rebuilds the whole fragment and publishes it. Callers hold
// p.mu, so renders never overlap.
func (p *Planner) renderLocked() {
	fragment, err := p.view.App(p.st)
	if err != nil {
		p.logger.Error("render failed", "error", err)
		return
	}
	p.renders++
	if p.pub != nil {
		p.pub.Publish(p.renders, fragment)
	}
}
