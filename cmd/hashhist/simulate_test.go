package main

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vango-dev/hashhistory/internal/config"
	"github.com/vango-dev/hashhistory/internal/errors"
	"github.com/vango-dev/hashhistory/pkg/browser"
	"github.com/vango-dev/hashhistory/pkg/hashhistory"
	"github.com/vango-dev/hashhistory/pkg/location"
	"github.com/vango-dev/hashhistory/pkg/pathcoder"
	"github.com/vango-dev/hashhistory/pkg/statestore"
)

func newTestEnv(t *testing.T) *runtimeEnv {
	t.Helper()
	store := statestore.NewMemoryStore(statestore.WithCleanupInterval(0))
	t.Cleanup(func() { store.Close() })
	return &runtimeEnv{
		cfg:     config.New(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		coder:   pathcoder.Slash,
		storage: statestore.NewStorage(store),
	}
}

func mustParse(t *testing.T, script string) []step {
	t.Helper()
	steps, err := parseScript(strings.NewReader(script), "<test>")
	if err != nil {
		t.Fatalf("parseScript() error: %v", err)
	}
	return steps
}

func TestSimulate_BackRestoresPersistedState(t *testing.T) {
	env := newTestEnv(t)
	mem := browser.NewMemory(browser.WithURL("http://localhost/#/start"), browser.WithoutStateAPI())
	var out bytes.Buffer
	sim := newSimulator(mem, &out, env.protocolOptions()...)

	err := sim.run(context.Background(), mustParse(t, "push /a {\"n\":1}\npush /b\nback\n"))
	if err != nil {
		t.Fatalf("run() error: %v", err)
	}

	// The keyed push of /a is not echoed; the keyless push of /b is.
	if len(sim.delivered) != 2 {
		t.Fatalf("delivered %d locations, want 2: %+v", len(sim.delivered), sim.delivered)
	}
	if sim.delivered[0].Pathname != "/b" || sim.delivered[0].State != nil {
		t.Errorf("delivered[0] = %+v, want keyless /b", sim.delivered[0])
	}
	got := sim.delivered[1]
	if got.Pathname != "/a" || got.Action != location.Pop || got.Key == "" {
		t.Errorf("delivered = %+v", got)
	}
	if state, ok := got.State.(map[string]any); !ok || state["n"] != float64(1) {
		t.Errorf("State = %#v, want map with n=1", got.State)
	}
	if !strings.Contains(out.String(), "(hash)") {
		t.Errorf("output does not name the hash strategy:\n%s", out.String())
	}
}

func TestSimulate_StateAPI(t *testing.T) {
	env := newTestEnv(t)
	mem := browser.NewMemory(browser.WithURL("http://localhost/#/start"))
	var out bytes.Buffer
	sim := newSimulator(mem, &out, env.protocolOptions()...)

	if err := sim.run(context.Background(), mustParse(t, "push /a {\"n\":1}\nlocation\n")); err != nil {
		t.Fatalf("run() error: %v", err)
	}

	if stats := mem.Stats(); stats.PushState != 1 || stats.SetHash != 0 {
		t.Errorf("Stats() = %+v, want one pushState", stats)
	}
	if !strings.HasSuffix(mem.Href(), "#/a") {
		t.Errorf("Href() = %q, want fragment #/a", mem.Href())
	}
	if !strings.Contains(out.String(), "(pushState)") {
		t.Errorf("output does not name the pushState strategy:\n%s", out.String())
	}
	if !strings.Contains(out.String(), `state={"n":1}`) {
		t.Errorf("location line missing state:\n%s", out.String())
	}
}

func TestSimulate_ManualHashEditIsCorrected(t *testing.T) {
	env := newTestEnv(t)
	mem := browser.NewMemory(browser.WithURL("http://localhost/#/start"), browser.WithoutStateAPI())
	sim := newSimulator(mem, io.Discard, env.protocolOptions()...)

	if err := sim.run(context.Background(), mustParse(t, "hash b\n")); err != nil {
		t.Fatalf("run() error: %v", err)
	}

	if !strings.HasSuffix(mem.Href(), "#/b") {
		t.Errorf("Href() = %q, want fragment #/b", mem.Href())
	}
	if len(sim.delivered) != 1 || sim.delivered[0].Pathname != "/b" {
		t.Errorf("delivered = %+v, want only /b", sim.delivered)
	}
}

func TestSimulate_ManualFlush(t *testing.T) {
	env := newTestEnv(t)
	mem := browser.NewMemory(browser.WithURL("http://localhost/#/start"), browser.WithoutStateAPI())
	sim := newSimulator(mem, io.Discard, env.protocolOptions()...)
	sim.autoFlush = false

	if err := sim.run(context.Background(), mustParse(t, "hash /x\nhash /y\n")); err != nil {
		t.Fatalf("run() error: %v", err)
	}
	if len(sim.delivered) != 0 {
		t.Errorf("delivered %d locations before flush, want 0", len(sim.delivered))
	}
	if mem.Pending() == 0 {
		t.Error("expected queued hashchange events")
	}
}

type failingStorage struct{}

func (failingStorage) SaveState(ctx context.Context, key string, state any) error {
	return stderrors.New("bucket unreachable")
}

func (failingStorage) ReadState(ctx context.Context, key string) (any, error) {
	return nil, stderrors.New("bucket unreachable")
}

func TestSimulate_StorageFailure(t *testing.T) {
	env := newTestEnv(t)
	mem := browser.NewMemory(browser.WithURL("http://localhost/#/start"), browser.WithoutStateAPI())
	opts := append(env.protocolOptions(), hashhistory.WithStorage(failingStorage{}))
	sim := newSimulator(mem, io.Discard, opts...)

	err := sim.run(context.Background(), mustParse(t, "push /a {\"n\":1}\n"))
	if !stderrors.Is(err, errors.New("E201")) {
		t.Fatalf("run() error = %v, want E201", err)
	}
	if !strings.HasSuffix(mem.Href(), "#/start") {
		t.Errorf("Href() = %q, fragment should be unchanged", mem.Href())
	}
}

func TestRunResolve(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if err := env.storage.SaveState(ctx, "k1", map[string]any{"scroll": 120}); err != nil {
		t.Fatalf("SaveState() error: %v", err)
	}

	mem := browser.NewMemory(browser.WithURL("http://localhost/#/users?tab=posts&_k=k1"), browser.WithoutStateAPI())
	var out bytes.Buffer
	if err := runResolve(ctx, env, mem, &out); err != nil {
		t.Fatalf("runResolve() error: %v", err)
	}

	for _, want := range []string{
		`"pathname": "/users"`,
		`"search": "?tab=posts"`,
		`"key": "k1"`,
		`"scroll": 120`,
		`"action": "POP"`,
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %s:\n%s", want, out.String())
		}
	}
}

func TestMemoryOptions(t *testing.T) {
	cfg := config.New()
	opts, err := memoryOptions(cfg, "http://localhost/#/a", `{"n":2}`)
	if err != nil {
		t.Fatalf("memoryOptions() error: %v", err)
	}
	mem := browser.NewMemory(opts...)
	if !mem.SupportsHistoryState() {
		t.Error("state API should be available in auto mode")
	}
	if state, ok := mem.HistoryState().(map[string]any); !ok || state["n"] != float64(2) {
		t.Errorf("HistoryState() = %#v", mem.HistoryState())
	}

	cfg.StateAPI = config.StateAPIOff
	opts, err = memoryOptions(cfg, "http://localhost/", "")
	if err != nil {
		t.Fatalf("memoryOptions() error: %v", err)
	}
	if browser.NewMemory(opts...).SupportsHistoryState() {
		t.Error("state API should be disabled when stateApi is off")
	}

	if _, err := memoryOptions(cfg, "http://localhost/", "{"); !stderrors.Is(err, errors.New("E501")) {
		t.Errorf("memoryOptions() error = %v, want E501", err)
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "project")

	path, err := writeDefaultConfig(dir, "toml", false)
	if err != nil {
		t.Fatalf("writeDefaultConfig() error: %v", err)
	}
	if filepath.Base(path) != "hashhistory.toml" {
		t.Errorf("path = %q", path)
	}

	cfg, err := config.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if cfg.QueryKey != config.DefaultQueryKey || cfg.Server.Addr != config.DefaultAddr {
		t.Errorf("loaded config = %+v", cfg)
	}

	if _, err := writeDefaultConfig(dir, "toml", false); !stderrors.Is(err, errors.New("E501")) {
		t.Errorf("second write error = %v, want E501", err)
	}
	if _, err := writeDefaultConfig(dir, "toml", true); err != nil {
		t.Errorf("forced write error: %v", err)
	}
	if _, err := writeDefaultConfig(dir, "ini", false); !stderrors.Is(err, errors.New("E501")) {
		t.Errorf("unknown format error = %v, want E501", err)
	}
}

func TestBuildCoder(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.HashType = "hashbang"
	if err := env.buildCoder(); err != nil {
		t.Fatalf("buildCoder() error: %v", err)
	}
	if got := env.coder.EncodePath("/a"); got != "!/a" {
		t.Errorf("EncodePath(/a) = %q, want %q", got, "!/a")
	}

	dir := t.TempDir()
	script := filepath.Join(dir, "coder.lua")
	if err := os.WriteFile(script, []byte("function encode(p) return p end\n"), 0644); err != nil {
		t.Fatal(err)
	}
	env.cfg.CoderScript = script
	if err := env.buildCoder(); !stderrors.Is(err, errors.New("E302")) {
		t.Errorf("incomplete script error = %v, want E302", err)
	}

	env.cfg.CoderScript = filepath.Join(dir, "missing.lua")
	if err := env.buildCoder(); !stderrors.Is(err, errors.New("E300")) {
		t.Errorf("missing script error = %v, want E300", err)
	}
}
