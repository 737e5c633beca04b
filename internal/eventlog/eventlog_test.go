package eventlog

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nerrad567/feedback-core/internal/infrastructure/database"
	"github.com/nerrad567/feedback-core/internal/output/controller"
	"github.com/nerrad567/feedback-core/migrations"
)

func openRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	db, err := database.Open(database.Config{Path: database.MemoryPath})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup
	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func TestCreateAndList(t *testing.T) {
	repo := openRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	events := []Event{
		{RunID: "run-a", Controller: "strip", Kind: KindConnected, CreatedAt: base},
		{RunID: "run-a", Controller: "strip", Kind: KindUpdateFailed, Message: "timeout", CreatedAt: base.Add(time.Second)},
		{RunID: "run-a", Controller: "dmx", Kind: KindDisabled, Details: map[string]any{"op": "send"}, CreatedAt: base.Add(2 * time.Second)},
		{RunID: "run-b", Controller: "strip", Kind: KindConnected, CreatedAt: base.Add(1500 * time.Millisecond)},
	}
	for i := range events {
		if err := repo.Create(ctx, &events[i]); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if events[i].ID == "" {
			t.Fatal("Create() should assign an id")
		}
	}

	all, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if all.Total != 4 || len(all.Events) != 4 || all.Limit != defaultLimit {
		t.Fatalf("List() total=%d len=%d limit=%d", all.Total, len(all.Events), all.Limit)
	}
	wantOrder := []string{"dmx", "strip", "strip", "strip"}
	for i, ev := range all.Events {
		if ev.Controller != wantOrder[i] {
			t.Errorf("event %d controller = %q, want %q (newest first)", i, ev.Controller, wantOrder[i])
		}
	}
	if all.Events[1].RunID != "run-b" {
		t.Errorf("sub-second ordering lost: %+v", all.Events[1])
	}
	if all.Events[0].Details["op"] != "send" {
		t.Errorf("details = %v", all.Events[0].Details)
	}
	if !all.Events[0].CreatedAt.Equal(base.Add(2 * time.Second)) {
		t.Errorf("created_at = %v", all.Events[0].CreatedAt)
	}

	strip, err := repo.List(ctx, Filter{Controller: "strip", RunID: "run-a"})
	if err != nil {
		t.Fatalf("List(filter) error = %v", err)
	}
	if strip.Total != 2 {
		t.Errorf("filtered total = %d, want 2", strip.Total)
	}

	failed, err := repo.List(ctx, Filter{Kind: KindUpdateFailed})
	if err != nil {
		t.Fatalf("List(kind) error = %v", err)
	}
	if failed.Total != 1 || failed.Events[0].Message != "timeout" {
		t.Errorf("kind filter = %+v", failed)
	}

	page, err := repo.List(ctx, Filter{Limit: 1000, Offset: 3})
	if err != nil {
		t.Fatalf("List(page) error = %v", err)
	}
	if page.Limit != maxLimit || len(page.Events) != 1 {
		t.Errorf("page limit=%d len=%d", page.Limit, len(page.Events))
	}
}

func TestListEmpty(t *testing.T) {
	res, err := openRepo(t).List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Events == nil || len(res.Events) != 0 {
		t.Errorf("Events = %#v, want empty non-nil slice", res.Events)
	}
}

func TestPrune(t *testing.T) {
	repo := openRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i, age := range []time.Duration{48 * time.Hour, 25 * time.Hour, time.Hour} {
		ev := &Event{RunID: "r", Controller: fmt.Sprintf("c%d", i), Kind: KindConnected, CreatedAt: now.Add(-age)}
		if err := repo.Create(ctx, ev); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	n, err := repo.Prune(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Prune() = %d, want 2", n)
	}
}

type memRepo struct {
	events chan Event
}

func (m *memRepo) Create(_ context.Context, ev *Event) error {
	m.events <- *ev
	return nil
}

func (m *memRepo) List(context.Context, Filter) (*ListResult, error) { return &ListResult{}, nil }

func TestRecorder(t *testing.T) {
	repo := &memRepo{events: make(chan Event, 8)}
	rec := NewRecorder(repo)

	var hooked []Event
	rec.SetOnEvent(func(ev Event) { hooked = append(hooked, ev) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rec.Run(ctx)
		close(done)
	}()

	rec.Record("strip", KindConnected, "", nil)
	rec.RecordError("dmx", KindUpdateFailed,
		controller.NewError(controller.KindTransient, "dmx", "send", fmt.Errorf("artnet: %w", controller.ErrDisabled)))
	rec.RecordError("pinone", KindUpdateFailed,
		controller.NewError(controller.KindIPC, "pinone", "proxy write", errors.New("broken pipe")))
	rec.RecordError("none", KindUpdateFailed, nil)

	got := make([]Event, 0, 3)
	for range 3 {
		select {
		case ev := <-repo.events:
			got = append(got, ev)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for event write")
		}
	}
	cancel()
	<-done

	if got[0].Kind != KindConnected || got[0].RunID != rec.RunID() || got[0].ID == "" {
		t.Errorf("event 0 = %+v", got[0])
	}
	if got[1].Kind != KindDisabled {
		t.Errorf("event 1 kind = %q, want disabled", got[1].Kind)
	}
	if got[2].Kind != KindUpdateFailed || got[2].Details["error_kind"] != "ipc" || got[2].Details["op"] != "proxy write" {
		t.Errorf("event 2 = %+v", got[2])
	}
	if len(hooked) != 3 {
		t.Errorf("hook saw %d events, want 3", len(hooked))
	}
	if s := rec.Stats(); s.Written != 3 || s.Dropped != 0 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestRecorderDropsWhenFull(t *testing.T) {
	rec := NewRecorder(&memRepo{events: make(chan Event, queueSize+1)})
	for range queueSize + 5 {
		rec.Record("strip", KindUpdateFailed, "x", nil)
	}
	if s := rec.Stats(); s.Dropped != 5 || s.Queued != queueSize {
		t.Errorf("Stats() = %+v, want 5 dropped", s)
	}
}

func TestRecorderWithoutRepository(t *testing.T) {
	rec := NewRecorder(nil)
	var n int
	rec.SetOnEvent(func(Event) { n++ })
	rec.Record("strip", KindConnected, "", nil)
	if n != 1 || rec.Stats().Queued != 0 {
		t.Errorf("hook calls = %d, queued = %d", n, rec.Stats().Queued)
	}
}

func TestRecorderDrainsOnCancel(t *testing.T) {
	repo := &memRepo{events: make(chan Event, 4)}
	rec := NewRecorder(repo)
	rec.Record("a", KindConnected, "", nil)
	rec.Record("b", KindDisconnected, "", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec.Run(ctx)

	if len(repo.events) != 2 {
		t.Errorf("written = %d, want 2 drained", len(repo.events))
	}
}

func TestRecorderSQLite(t *testing.T) {
	repo := openRepo(t)
	rec := NewRecorder(repo)
	rec.Record("strip", KindConnectFailed, "no reply", map[string]any{"port": "/dev/ttyUSB0"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec.Run(ctx)

	res, err := repo.List(context.Background(), Filter{RunID: rec.RunID()})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Total != 1 || res.Events[0].Details["port"] != "/dev/ttyUSB0" {
		t.Errorf("List() = %+v", res)
	}
}
