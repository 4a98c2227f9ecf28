package planner

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/partyplanner/internal/model"
	"github.com/dukerupert/partyplanner/internal/view"
)

// fakeGateway serves an in-memory party collection. Setting an *Err field
// makes that operation fail; gate, when set, blocks FetchParty for the ids
// it holds until the channel is closed, and deleteGate does the same for
// DeleteParty. afterWrite runs once a create or delete has been stored.
type fakeGateway struct {
	mu      sync.Mutex
	parties []model.Party
	rsvps   []model.RSVP
	guests  []model.Guest
	nextID  int64
	calls   []string

	fetchAllErr error
	fetchErr    error
	createErr   error
	deleteErr   error
	rsvpErr     error
	nullParty   bool
	gate        map[int64]chan struct{}
	deleteGate  chan struct{}
	afterWrite  func()
}

func (f *fakeGateway) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeGateway) FetchAllParties(ctx context.Context) ([]model.Party, error) {
	f.record("events")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchAllErr != nil {
		return nil, f.fetchAllErr
	}
	return append([]model.Party(nil), f.parties...), nil
}

func (f *fakeGateway) FetchParty(ctx context.Context, id int64) (*model.Party, error) {
	f.record("event")
	f.mu.Lock()
	gate := f.gate[id]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if f.nullParty {
		return nil, nil
	}
	for _, p := range f.parties {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeGateway) FetchAllRsvps(ctx context.Context) ([]model.RSVP, error) {
	f.record("rsvps")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rsvpErr != nil {
		return nil, f.rsvpErr
	}
	return f.rsvps, nil
}

func (f *fakeGateway) FetchAllGuests(ctx context.Context) ([]model.Guest, error) {
	f.record("guests")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.guests, nil
}

func (f *fakeGateway) CreateParty(ctx context.Context, np model.NewParty) (model.Party, error) {
	f.record("create")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return model.Party{}, f.createErr
	}
	f.nextID++
	p := model.Party{ID: f.nextID, Name: np.Name, Description: np.Description, Date: np.Date, Location: np.Location}
	f.parties = append(f.parties, p)
	if f.afterWrite != nil {
		f.afterWrite()
	}
	if err := ctx.Err(); err != nil {
		return model.Party{}, err
	}
	return p, nil
}

func (f *fakeGateway) DeleteParty(ctx context.Context, id int64) error {
	f.record("delete")
	if f.deleteGate != nil {
		<-f.deleteGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	kept := f.parties[:0]
	for _, p := range f.parties {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	f.parties = kept
	if f.afterWrite != nil {
		f.afterWrite()
	}
	return ctx.Err()
}

type recordingPublisher struct {
	mu   sync.Mutex
	seqs []uint64
	last string
}

func (r *recordingPublisher) Publish(seq uint64, fragment []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seqs = append(r.seqs, seq)
	r.last = string(fragment)
}

func newTestPlanner(t *testing.T, gw *fakeGateway) (*Planner, *recordingPublisher) {
	t.Helper()
	pub := &recordingPublisher{}
	return New(gw, view.Must(), pub, slog.Default()), pub
}

func seeded() *fakeGateway {
	return &fakeGateway{
		parties: []model.Party{
			{ID: 2, Name: "B", Date: "2025-02-02T00:00:00.000Z"},
			{ID: 1, Name: "A", Date: "2025-01-01T00:00:00.000Z"},
		},
		rsvps:  []model.RSVP{{ID: 1, GuestID: 9, EventID: 1}},
		guests: []model.Guest{{ID: 9, Name: "Sam"}, {ID: 10, Name: "Lee"}},
		nextID: 2,
	}
}

func TestInitLoadsInOrder(t *testing.T) {
	gw := seeded()
	p, pub := newTestPlanner(t, gw)

	p.Init(context.Background())

	assert.Equal(t, []string{"events", "rsvps", "guests"}, gw.calls)
	st := p.Snapshot()
	assert.Len(t, st.Parties, 2)
	assert.Len(t, st.RSVPs, 1)
	assert.Len(t, st.Guests, 2)
	assert.Nil(t, st.Selected)
	// one render per fetch plus the closing render
	assert.Equal(t, []uint64{1, 2, 3, 4}, pub.seqs)
}

func TestInitContinuesAfterFailure(t *testing.T) {
	gw := seeded()
	gw.rsvpErr = errors.New("boom")
	p, _ := newTestPlanner(t, gw)

	p.Init(context.Background())

	assert.Equal(t, []string{"events", "rsvps", "guests"}, gw.calls)
	st := p.Snapshot()
	assert.Len(t, st.Guests, 2)
	// the guests fetch succeeded after the failure and cleared it
	assert.Empty(t, st.Err)
}

func TestFetchAllPartiesVerbatim(t *testing.T) {
	gw := seeded()
	p, _ := newTestPlanner(t, gw)

	p.FetchAllParties(context.Background())

	if diff := cmp.Diff(gw.parties, p.Snapshot().Parties); diff != "" {
		t.Errorf("parties mismatch (-server +state):\n%s", diff)
	}
}

func TestSelectPartyScenario(t *testing.T) {
	gw := seeded()
	p, pub := newTestPlanner(t, gw)
	p.Init(context.Background())

	p.SelectParty(context.Background(), 1)

	st := p.Snapshot()
	require.NotNil(t, st.Selected)
	assert.Equal(t, "A", st.Selected.Name)
	assert.Contains(t, pub.last, "<h3>A #1</h3>")
	assert.Contains(t, pub.last, "<li>Sam</li>")
	assert.NotContains(t, pub.last, "<li>Lee</li>")
}

func TestSelectReplacesPreviousSelection(t *testing.T) {
	gw := seeded()
	p, _ := newTestPlanner(t, gw)
	p.FetchAllParties(context.Background())

	p.SelectParty(context.Background(), 1)
	p.SelectParty(context.Background(), 2)

	require.NotNil(t, p.Snapshot().Selected)
	assert.Equal(t, int64(2), p.Snapshot().Selected.ID)
}

func TestCreatePartyRefetches(t *testing.T) {
	gw := seeded()
	p, _ := newTestPlanner(t, gw)
	p.FetchAllParties(context.Background())

	np := model.NewParty{Name: "Picnic", Description: "Bring food", Date: "2025-12-31T00:00:00.000Z", Location: "Park"}
	p.CreateParty(context.Background(), np)

	assert.Equal(t, []string{"events", "create", "events"}, gw.calls)
	st := p.Snapshot()
	require.Len(t, st.Parties, 3)
	got := st.Parties[2]
	assert.Equal(t, int64(3), got.ID)
	assert.Equal(t, np, model.NewParty{Name: got.Name, Description: got.Description, Date: got.Date, Location: got.Location})
}

func TestCreatePartyFailureLeavesState(t *testing.T) {
	gw := seeded()
	gw.createErr = errors.New("status 400")
	p, pub := newTestPlanner(t, gw)
	p.FetchAllParties(context.Background())
	before := p.Snapshot()

	p.CreateParty(context.Background(), model.NewParty{Name: "X"})

	after := p.Snapshot()
	assert.Equal(t, before.Parties, after.Parties)
	assert.Equal(t, "create party: status 400", after.Err)
	assert.Contains(t, pub.last, `role="alert"`)
	assert.Equal(t, []string{"events", "create"}, gw.calls)
}

func TestCreateThenRefetchFailureKeepsStaleList(t *testing.T) {
	gw := seeded()
	p, _ := newTestPlanner(t, gw)
	p.FetchAllParties(context.Background())

	gw.mu.Lock()
	gw.fetchAllErr = errors.New("offline")
	gw.mu.Unlock()
	p.CreateParty(context.Background(), model.NewParty{Name: "Late"})

	st := p.Snapshot()
	assert.Len(t, st.Parties, 2)
	assert.Equal(t, "fetch parties: offline", st.Err)
}

func TestDeletePartyClearsSelection(t *testing.T) {
	gw := seeded()
	p, pub := newTestPlanner(t, gw)
	p.FetchAllParties(context.Background())
	p.SelectParty(context.Background(), 1)

	p.DeleteParty(context.Background(), 1)

	st := p.Snapshot()
	assert.Nil(t, st.Selected)
	assert.False(t, st.HasParty(1))
	assert.Contains(t, pub.last, "Please select a party to learn more.")
}

func TestDeletePartyFailureKeepsSelection(t *testing.T) {
	gw := seeded()
	p, _ := newTestPlanner(t, gw)
	p.FetchAllParties(context.Background())
	p.SelectParty(context.Background(), 1)

	gw.mu.Lock()
	gw.deleteErr = errors.New("status 500")
	gw.mu.Unlock()
	p.DeleteParty(context.Background(), 1)

	st := p.Snapshot()
	require.NotNil(t, st.Selected)
	assert.True(t, st.HasParty(1))
	assert.True(t, strings.HasPrefix(st.Err, "delete party:"))
}

func TestCreatePartySurvivesCallerCancel(t *testing.T) {
	gw := seeded()
	p, _ := newTestPlanner(t, gw)
	p.FetchAllParties(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	gw.afterWrite = cancel
	p.CreateParty(ctx, model.NewParty{Name: "Picnic", Description: "d", Date: "2025-12-31T00:00:00.000Z", Location: "Park"})

	st := p.Snapshot()
	assert.Empty(t, st.Err)
	assert.True(t, st.HasParty(3), "refetch should run after the caller went away")
	assert.Equal(t, []string{"events", "create", "events"}, gw.calls)
}

func TestDeletePartySurvivesCallerCancel(t *testing.T) {
	gw := seeded()
	p, _ := newTestPlanner(t, gw)
	p.FetchAllParties(context.Background())
	p.SelectParty(context.Background(), 1)

	ctx, cancel := context.WithCancel(context.Background())
	gw.afterWrite = cancel
	p.DeleteParty(ctx, 1)

	st := p.Snapshot()
	assert.Empty(t, st.Err)
	assert.Nil(t, st.Selected)
	assert.False(t, st.HasParty(1))
}

func TestSelectPartyNullDataShowsPlaceholder(t *testing.T) {
	gw := seeded()
	p, pub := newTestPlanner(t, gw)
	p.FetchAllParties(context.Background())
	p.SelectParty(context.Background(), 1)
	require.NotNil(t, p.Snapshot().Selected)

	gw.mu.Lock()
	gw.nullParty = true
	gw.mu.Unlock()
	p.SelectParty(context.Background(), 2)

	st := p.Snapshot()
	assert.Nil(t, st.Selected)
	assert.Empty(t, st.Err)
	assert.Contains(t, pub.last, "Please select a party to learn more.")
	assert.NotContains(t, pub.last, "#0")
}

func TestSelectDuringDeleteWins(t *testing.T) {
	gw := seeded()
	release := make(chan struct{})
	gw.deleteGate = release
	p, _ := newTestPlanner(t, gw)
	p.FetchAllParties(context.Background())
	p.SelectParty(context.Background(), 1)

	done := make(chan struct{})
	go func() {
		p.DeleteParty(context.Background(), 1)
		close(done)
	}()
	waitForCalls(t, gw, "delete", 1)

	p.SelectParty(context.Background(), 2)
	close(release)
	<-done

	st := p.Snapshot()
	require.NotNil(t, st.Selected, "select issued after the delete must survive it")
	assert.Equal(t, int64(2), st.Selected.ID)
	assert.False(t, st.HasParty(1))
}

func TestStaleSelectionIsDiscarded(t *testing.T) {
	gw := seeded()
	release := make(chan struct{})
	gw.gate = map[int64]chan struct{}{1: release}
	p, _ := newTestPlanner(t, gw)
	p.FetchAllParties(context.Background())

	done := make(chan struct{})
	go func() {
		p.SelectParty(context.Background(), 1)
		close(done)
	}()

	// Wait until the slow select has been issued before the fast one.
	waitForCalls(t, gw, "event", 1)
	p.SelectParty(context.Background(), 2)
	close(release)
	<-done

	st := p.Snapshot()
	require.NotNil(t, st.Selected)
	assert.Equal(t, int64(2), st.Selected.ID, "older response must not overwrite the newer selection")
}

func TestDeleteSupersedesInFlightSelect(t *testing.T) {
	gw := seeded()
	release := make(chan struct{})
	gw.gate = map[int64]chan struct{}{2: release}
	p, _ := newTestPlanner(t, gw)
	p.FetchAllParties(context.Background())

	done := make(chan struct{})
	go func() {
		p.SelectParty(context.Background(), 2)
		close(done)
	}()
	waitForCalls(t, gw, "event", 1)

	p.DeleteParty(context.Background(), 1)
	close(release)
	<-done

	assert.Nil(t, p.Snapshot().Selected)
}

func TestSuccessClearsError(t *testing.T) {
	gw := seeded()
	gw.fetchErr = errors.New("boom")
	p, _ := newTestPlanner(t, gw)

	p.SelectParty(context.Background(), 1)
	assert.Equal(t, "fetch party: boom", p.Snapshot().Err)

	p.FetchAllGuests(context.Background())
	assert.Empty(t, p.Snapshot().Err)
}

func TestRenderIsPureFunctionOfState(t *testing.T) {
	gw := seeded()
	p, pub := newTestPlanner(t, gw)
	p.Init(context.Background())
	p.SelectParty(context.Background(), 1)

	first, err := p.App()
	require.NoError(t, err)
	second, err := p.App()
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
	assert.Equal(t, pub.last, string(first))
	assert.Equal(t, uint64(len(pub.seqs)), p.Renders())
}

func TestPageEmbedsApp(t *testing.T) {
	p, _ := newTestPlanner(t, seeded())
	p.FetchAllParties(context.Background())

	page, err := p.Page()
	require.NoError(t, err)
	assert.Contains(t, string(page), "<!DOCTYPE html>")
	assert.Contains(t, string(page), "Upcoming Parties")
}

func TestNilPublisher(t *testing.T) {
	p := New(seeded(), view.Must(), nil, slog.Default())
	p.Init(context.Background())
	assert.Equal(t, uint64(4), p.Renders())
}

func waitForCalls(t *testing.T, gw *fakeGateway, call string, n int) {
	t.Helper()
	for i := 0; i < 1000; i++ {
		gw.mu.Lock()
		count := 0
		for _, c := range gw.calls {
			if c == call {
				count++
			}
		}
		gw.mu.Unlock()
		if count >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d %q calls", n, call)
}
