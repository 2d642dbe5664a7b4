package hashhistory

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/vango-dev/hashhistory/pkg/browser"
	"github.com/vango-dev/hashhistory/pkg/location"
	"github.com/vango-dev/hashhistory/pkg/pathcoder"
	"github.com/vango-dev/hashhistory/pkg/statestore"
)

func TestPush_WithoutStateAPI(t *testing.T) {
	f := newFixture(t, browser.NewMemory(browser.WithoutStateAPI()),
		WithPathCoder(pathcoder.Identity), WithQueryKey("h"))
	ctx := context.Background()

	state := map[string]any{"x": 1}
	if err := f.p.Push(ctx, location.Location{Pathname: "/a", State: state, Key: "k1"}); err != nil {
		t.Fatalf("Push() error: %v", err)
	}

	if got := f.win.Href(); got != "http://localhost/#/a?h=k1" {
		t.Fatalf("Href() = %q, want %q", got, "http://localhost/#/a?h=k1")
	}
	if !reflect.DeepEqual(f.storage.states["k1"], state) {
		t.Fatalf("stored state = %v, want %v", f.storage.states["k1"], state)
	}

	loc, err := f.p.CurrentLocation(ctx)
	if err != nil {
		t.Fatalf("CurrentLocation() error: %v", err)
	}
	if loc.Pathname != "/a" || loc.Search != "" || loc.Key != "k1" {
		t.Fatalf("CurrentLocation() = %+v", loc)
	}
	if !reflect.DeepEqual(loc.State, state) {
		t.Fatalf("State = %v, want %v", loc.State, state)
	}
}

func TestPush_KeylessStateWithoutStateAPI(t *testing.T) {
	f := newFixture(t, browser.NewMemory(browser.WithoutStateAPI()),
		WithPathCoder(pathcoder.Identity), WithQueryKey("h"))
	ctx := context.Background()

	state := map[string]any{"x": 1}
	if err := f.p.Push(ctx, location.Location{Pathname: "/a", State: state}); err != nil {
		t.Fatalf("Push() error: %v", err)
	}

	if _, ok := f.storage.states[""]; ok {
		t.Fatal("state saved under an empty key")
	}
	if len(f.storage.states) != 1 {
		t.Fatalf("stored %d states, want 1", len(f.storage.states))
	}

	loc, err := f.p.CurrentLocation(ctx)
	if err != nil {
		t.Fatalf("CurrentLocation() error: %v", err)
	}
	if loc.Pathname != "/a" || loc.Search != "" || loc.Hash != "" {
		t.Fatalf("CurrentLocation() = %+v, want /a with no search", loc)
	}
	if loc.Key == "" || !strings.HasSuffix(f.win.Href(), "#/a?h="+loc.Key) {
		t.Fatalf("Href() = %q, key = %q", f.win.Href(), loc.Key)
	}
	if !reflect.DeepEqual(loc.State, state) {
		t.Fatalf("State = %v, want %v", loc.State, state)
	}
}

func TestPush_WithStateAPI(t *testing.T) {
	f := newFixture(t, browser.NewMemory(),
		WithPathCoder(pathcoder.Identity), WithQueryKey("h"))
	ctx := context.Background()

	state := map[string]any{"x": 1}
	if err := f.p.Push(ctx, location.Location{Pathname: "/a", State: state, Key: "k1"}); err != nil {
		t.Fatalf("Push() error: %v", err)
	}

	if got := f.win.Href(); got != "http://localhost/#/a" {
		t.Fatalf("Href() = %q, want %q", got, "http://localhost/#/a")
	}
	if !reflect.DeepEqual(f.win.HistoryState(), state) {
		t.Fatalf("HistoryState() = %v, want %v", f.win.HistoryState(), state)
	}
	if f.storage.saves != 0 {
		t.Fatalf("storage saves = %d, want 0", f.storage.saves)
	}
	if s := f.win.Stats(); s.PushState != 1 || s.SetHash != 0 {
		t.Fatalf("Stats() = %+v", s)
	}

	loc, err := f.p.CurrentLocation(ctx)
	if err != nil {
		t.Fatalf("CurrentLocation() error: %v", err)
	}
	if loc.Pathname != "/a" || !reflect.DeepEqual(loc.State, state) {
		t.Fatalf("CurrentLocation() = %+v", loc)
	}
}

func TestPush_ThenCurrentLocationRoundTrip(t *testing.T) {
	windows := map[string]func() *browser.Memory{
		"state API": func() *browser.Memory { return browser.NewMemory() },
		"hash only": func() *browser.Memory { return browser.NewMemory(browser.WithoutStateAPI()) },
	}
	coders := []string{"slash", "noslash", "hashbang", "uri", "canonical"}

	for wname, mk := range windows {
		for _, cname := range coders {
			t.Run(wname+"/"+cname, func(t *testing.T) {
				coder, _ := pathcoder.Lookup(cname)
				f := newFixture(t, mk(), WithPathCoder(coder))
				ctx := context.Background()

				want := location.New("/users/42?tab=posts#bio", map[string]any{"scroll": 10})
				if err := f.p.Push(ctx, want); err != nil {
					t.Fatalf("Push() error: %v", err)
				}
				got, err := f.p.CurrentLocation(ctx)
				if err != nil {
					t.Fatalf("CurrentLocation() error: %v", err)
				}
				if got.Pathname != want.Pathname || got.Search != want.Search || got.Hash != want.Hash {
					t.Fatalf("CurrentLocation() = %+v, want path of %+v", got, want)
				}
				if !reflect.DeepEqual(got.State, want.State) {
					t.Fatalf("State = %v, want %v", got.State, want.State)
				}
			})
		}
	}
}

func TestPush_SamePathTwice(t *testing.T) {
	for _, opts := range [][]browser.MemoryOption{nil, {browser.WithoutStateAPI()}} {
		f := newFixture(t, browser.NewMemory(opts...))
		ctx := context.Background()

		loc := location.Location{Pathname: "/a"}
		if err := f.p.Push(ctx, loc); err != nil {
			t.Fatalf("Push() error: %v", err)
		}
		if err := f.p.Push(ctx, loc); err != nil {
			t.Fatalf("second Push() error: %v", err)
		}

		if w := f.win.Stats().Writes(); w != 1 {
			t.Errorf("writes = %d, want 1", w)
		}
		if !strings.Contains(f.logs.String(), "You cannot PUSH the same path using hash history") {
			t.Errorf("no warning logged, logs:\n%s", f.logs.String())
		}
	}
}

func TestReplace_SamePathIsSilent(t *testing.T) {
	f := newFixture(t, browser.NewMemory(browser.WithURL("http://localhost/#/a"), browser.WithoutStateAPI()))

	if err := f.p.Replace(context.Background(), location.Location{Pathname: "/a"}); err != nil {
		t.Fatalf("Replace() error: %v", err)
	}
	if w := f.win.Stats().Writes(); w != 0 {
		t.Fatalf("writes = %d, want 0", w)
	}
	if strings.Contains(f.logs.String(), "level=WARN") {
		t.Fatalf("Replace logged a warning:\n%s", f.logs.String())
	}
}

func TestReplace_Writes(t *testing.T) {
	t.Run("state API", func(t *testing.T) {
		f := newFixture(t, browser.NewMemory(browser.WithURL("http://localhost/#/a")))
		if err := f.p.Replace(context.Background(), location.Location{Pathname: "/b", State: "s"}); err != nil {
			t.Fatalf("Replace() error: %v", err)
		}
		if f.win.Href() != "http://localhost/#/b" || f.win.HistoryState() != "s" || f.win.Len() != 1 {
			t.Fatalf("href=%q state=%v len=%d", f.win.Href(), f.win.HistoryState(), f.win.Len())
		}
	})

	t.Run("hash only", func(t *testing.T) {
		f := newFixture(t, browser.NewMemory(browser.WithURL("http://localhost/app?x=1#/a"), browser.WithoutStateAPI()))
		if err := f.p.Replace(context.Background(), location.Location{Pathname: "/b", State: "s", Key: "k9"}); err != nil {
			t.Fatalf("Replace() error: %v", err)
		}
		if got := f.win.Href(); got != "http://localhost/app?x=1#/b?_k=k9" {
			t.Fatalf("Href() = %q", got)
		}
		if f.win.Stats().Replace != 1 || f.win.Len() != 1 {
			t.Fatalf("Stats() = %+v len=%d", f.win.Stats(), f.win.Len())
		}
		if f.storage.states["k9"] != "s" {
			t.Fatalf("stored state = %v", f.storage.states["k9"])
		}
	})

	t.Run("no fragment yet", func(t *testing.T) {
		f := newFixture(t, browser.NewMemory(browser.WithURL("http://localhost/app"), browser.WithoutStateAPI()))
		if err := f.p.Replace(context.Background(), location.Location{Pathname: "/b"}); err != nil {
			t.Fatalf("Replace() error: %v", err)
		}
		if got := f.win.Href(); got != "http://localhost/app#/b" {
			t.Fatalf("Href() = %q", got)
		}
	})
}

func TestUpdate_NilStateNeverPersisted(t *testing.T) {
	f := newFixture(t, browser.NewMemory(browser.WithoutStateAPI()))
	if err := f.p.Push(context.Background(), location.Location{Pathname: "/a", Key: "k1"}); err != nil {
		t.Fatalf("Push() error: %v", err)
	}
	if f.win.Href() != "http://localhost/#/a" {
		t.Fatalf("Href() = %q, key appended without state", f.win.Href())
	}
	if f.storage.saves != 0 {
		t.Fatalf("saves = %d, want 0", f.storage.saves)
	}
}

func TestUpdate_SetsTrackerBeforeWrite(t *testing.T) {
	f := newFixture(t, browser.NewMemory())
	loc := location.Location{Pathname: "/a", Key: "k1"}
	if err := f.p.Push(context.Background(), loc); err != nil {
		t.Fatalf("Push() error: %v", err)
	}
	last, ok := f.p.Tracker().Last()
	if !ok || !location.Equal(last, loc) {
		t.Fatalf("Tracker().Last() = %+v, %v", last, ok)
	}
}

func TestUpdate_StorageErrorAbortsWrite(t *testing.T) {
	f := newFixture(t, browser.NewMemory(browser.WithoutStateAPI()))
	f.storage.err = errStorage

	err := f.p.Push(context.Background(), location.Location{Pathname: "/a", State: 1, Key: "k1"})
	if !errors.Is(err, errStorage) {
		t.Fatalf("Push() error = %v, want %v", err, errStorage)
	}
	if f.win.Stats().Writes() != 0 {
		t.Fatal("fragment written despite storage failure")
	}
	if _, ok := f.p.Tracker().Last(); ok {
		t.Fatal("tracker updated despite storage failure")
	}
}

func TestPush_JSONStorageRoundTrip(t *testing.T) {
	win := browser.NewMemory(browser.WithoutStateAPI())
	storage := statestore.NewStorage(statestore.NewMemoryStore(statestore.WithCleanupInterval(0)))
	f := newFixture(t, win, WithStorage(storage), WithPathCoder(pathcoder.Identity), WithQueryKey("h"))
	ctx := context.Background()

	if err := f.p.Push(ctx, location.Location{Pathname: "/a", State: map[string]any{"x": 1}, Key: "k1"}); err != nil {
		t.Fatalf("Push() error: %v", err)
	}
	loc, err := f.p.CurrentLocation(ctx)
	if err != nil {
		t.Fatalf("CurrentLocation() error: %v", err)
	}
	want := map[string]any{"x": float64(1)}
	if !reflect.DeepEqual(loc.State, want) {
		t.Fatalf("State = %#v, want %#v", loc.State, want)
	}
}
