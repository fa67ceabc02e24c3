package chat

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/rcliao/tai/internal/llm"
	"github.com/rcliao/tai/internal/memory"
	"github.com/rcliao/tai/internal/model"
	"github.com/rcliao/tai/internal/patch"
	"github.com/rcliao/tai/internal/router"
	"github.com/rcliao/tai/internal/store"
)

func TestMain(m *testing.M) {
	// genai's opencensus dependency starts a stats worker at init.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

var testNow = time.Date(2025, 3, 4, 15, 4, 5, 0, time.UTC)

// memKV is an in-memory data system.
type memKV struct {
	mu   sync.Mutex
	data map[string]json.RawMessage
}

func newMemKV() *memKV { return &memKV{data: map[string]json.RawMessage{}} }

func (k *memKV) Keys(_ context.Context, ns string) ([]string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	var keys []string
	for full := range k.data {
		if rest, ok := strings.CutPrefix(full, ns+"/"); ok {
			keys = append(keys, rest)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (k *memKV) LoadData(_ context.Context, key, ns string, _ bool) (json.RawMessage, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	v, ok := k.data[ns+"/"+key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return v, nil
}

func (k *memKV) SaveData(_ context.Context, key string, value any, ns string, _ bool) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.data[ns+"/"+key] = raw
	return nil
}

func (k *memKV) entries(t *testing.T, key string) []model.Entry {
	t.Helper()
	raw, err := k.LoadData(context.Background(), key, memory.Namespace, false)
	require.NoError(t, err)
	got, err := memory.ParseEntries(raw)
	require.NoError(t, err)
	return got
}

// fakeApplier records modifications.
type fakeApplier struct {
	code     string
	modified []string
	err      error
}

func (a *fakeApplier) GetCode(context.Context, string) (string, error) { return a.code, nil }

func (a *fakeApplier) Modify(_ context.Context, _, code string) error {
	if a.err != nil {
		return a.err
	}
	a.code = code
	a.modified = append(a.modified, code)
	return nil
}

// scripted answers prompts in order and records them.
type scripted struct {
	replies []string
	prompts []string
}

func (s *scripted) Generate(_ context.Context, p string) (string, error) {
	s.prompts = append(s.prompts, p)
	if len(s.replies) == 0 {
		return "", errors.New("unexpected call")
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r, nil
}

type fixture struct {
	kv        *memKV
	mem       *memory.Manager
	dictator  *scripted
	architect *scripted
	historian *scripted
	applier   *fakeApplier
	pipeline  *Pipeline
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		kv:        newMemKV(),
		dictator:  &scripted{},
		architect: &scripted{},
		historian: &scripted{},
		applier:   &fakeApplier{code: patch.SeedCode},
	}
	f.mem = memory.NewManager(f.kv, memory.WithClock(func() time.Time { return testNow }))
	p, err := NewPipeline(Config{
		Models:  Models{Dictator: f.dictator, Architect: f.architect, Historian: f.historian},
		Memory:  f.mem,
		Applier: f.applier,
	})
	require.NoError(t, err)
	f.pipeline = p
	return f
}

func TestTurnPlainReply(t *testing.T) {
	f := newFixture(t)
	f.dictator.replies = []string{"Hi!", "Hello there, friend."}

	state, err := LoadState(context.Background(), f.mem)
	require.NoError(t, err)

	next, turn, err := f.pipeline.Turn(context.Background(), state, "hello")
	require.NoError(t, err)

	assert.Equal(t, "Hello there, friend.", turn.Response.Visible)
	assert.False(t, turn.Response.Evolve)
	assert.False(t, turn.CodeApplied)
	assert.False(t, turn.MemoryUpdated)
	assert.NotEmpty(t, turn.ID)
	assert.Empty(t, f.architect.prompts)
	assert.Empty(t, f.historian.prompts)
	assert.Empty(t, f.applier.modified)

	want := append(state.Restricted, model.Entry{Timestamp: "2025-03-04 15:04:05", User: "hello", Tai: "Hello there, friend."})
	if diff := cmp.Diff(want, next.Restricted); diff != "" {
		t.Errorf("restricted (-want +got):\n%s", diff)
	}
	assert.Len(t, state.Restricted, 1, "input state must not be mutated")

	require.Len(t, f.dictator.prompts, 2)
	assert.Contains(t, f.dictator.prompts[0], "No past interactions found.")
	assert.Contains(t, f.dictator.prompts[1], "```markdown\nHi!\n```")
}

func TestTurnEvolution(t *testing.T) {
	f := newFixture(t)
	newCode := "package main\n\nfunc Joke() string { return \"pun\" }\n"
	f.dictator.replies = []string{router.EvolutionMarker + " Upgrading my joke engine.", "Done upgrading."}
	f.architect.replies = []string{"```go\n" + newCode + "```", newCode}

	_, turn, err := f.pipeline.Turn(context.Background(), State{Day: testNow}, "upgrade yourself to tell jokes")
	require.NoError(t, err)

	assert.True(t, turn.Response.Evolve)
	assert.True(t, turn.CodeApplied)
	assert.Equal(t, strings.TrimSpace(newCode), turn.Response.CodePatch)
	assert.Equal(t, []string{strings.TrimSpace(newCode)}, f.applier.modified)
	assert.Contains(t, f.dictator.prompts[1], "```markdown\nUpgrading my joke engine.\n```")
	assert.Contains(t, f.dictator.prompts[1], "func Joke()")
}

func TestTurnEvolutionRejectedCode(t *testing.T) {
	f := newFixture(t)
	f.applier.err = patch.ErrInvalidCode
	f.dictator.replies = []string{router.EvolutionMarker + " ok", "Tried."}
	f.architect.replies = []string{"package main\nbroken(", "package main\nbroken("}

	_, turn, err := f.pipeline.Turn(context.Background(), State{Day: testNow}, "upgrade yourself")
	require.NoError(t, err)
	assert.False(t, turn.CodeApplied)
	assert.Contains(t, f.dictator.prompts[1], "```go\nN/A\n```")
}

func TestTurnMemoryUpdate(t *testing.T) {
	f := newFixture(t)
	f.dictator.replies = []string{"Noted.", "Got it! <GlobalMemory>likes tea</GlobalMemory> <Forget>coffee</Forget>"}
	f.historian.replies = []string{`[{"timestamp":"2025-03-04 15:04:05","Memory":"User likes tea"}]`}

	next, turn, err := f.pipeline.Turn(context.Background(), State{Day: testNow}, "remember I like tea")
	require.NoError(t, err)

	assert.Equal(t, "Got it!", turn.Response.Visible)
	assert.True(t, turn.MemoryUpdated)
	assert.Len(t, f.historian.prompts, 1, "one update per turn regardless of tag count")
	assert.Equal(t, []model.Entry{{Timestamp: "2025-03-04 15:04:05", Memory: "User likes tea"}}, next.Global)
	assert.Contains(t, next.Restricted[0].Tai, "<GlobalMemory>", "restricted keeps the raw reply")
}

func TestTurnMemoryUpdateDiscarded(t *testing.T) {
	f := newFixture(t)
	prev := []model.Entry{{Timestamp: "T1", Memory: "A"}}
	f.dictator.replies = []string{"ok", "<Forget>A</Forget>"}
	f.historian.replies = []string{"sorry, no"}

	next, turn, err := f.pipeline.Turn(context.Background(), State{Global: prev, Day: testNow}, "forget A")
	require.NoError(t, err)
	assert.False(t, turn.MemoryUpdated)
	assert.Equal(t, prev, next.Global)
	assert.Equal(t, "", turn.Response.Visible)
}

func TestTurnEmptyFollowUp(t *testing.T) {
	f := newFixture(t)
	dictator := llm.Func(func(_ context.Context, p string) (string, error) {
		if strings.HasPrefix(p, "# Hello, Tai!") {
			return "", llm.ErrEmptyResponse
		}
		return "candidate", nil
	})
	p, err := NewPipeline(Config{Models: Models{Dictator: dictator, Historian: f.historian}, Memory: f.mem})
	require.NoError(t, err)

	next, _, err := p.Turn(context.Background(), State{Day: testNow}, "hm")
	require.NoError(t, err)
	assert.Equal(t, NoResponse, next.Restricted[0].Tai)
}

func TestTurnModelError(t *testing.T) {
	f := newFixture(t)
	state := State{Day: testNow}
	next, _, err := f.pipeline.Turn(context.Background(), state, "hello")
	assert.Error(t, err)
	assert.Empty(t, next.Restricted)
}

func TestNewPipelineRequiresModels(t *testing.T) {
	_, err := NewPipeline(Config{})
	assert.Error(t, err)
}

func TestPersister(t *testing.T) {
	f := newFixture(t)
	p := NewPersister(f.mem, nil)

	state := State{
		Global:     []model.Entry{{Timestamp: "T1", Memory: "A"}, {Timestamp: "T2", Memory: "B"}},
		Restricted: []model.Entry{{Timestamp: "2025-03-04 15:00:00", User: "u", Tai: "t"}},
		Day:        testNow,
	}
	p.Save(context.Background(), state)
	p.Save(context.Background(), state)
	p.Wait()

	assert.Equal(t, state.Global, f.kv.entries(t, memory.GlobalKey))
	want := []model.Entry{memory.SeedEntry, state.Restricted[0]}
	if diff := cmp.Diff(want, f.kv.entries(t, "restricted_memory_2025-03-04")); diff != "" {
		t.Errorf("restricted (-want +got):\n%s", diff)
	}
}

func TestPersisterZeroDay(t *testing.T) {
	f := newFixture(t)
	p := NewPersister(f.mem, nil)
	require.NoError(t, p.SaveNow(context.Background(), State{Restricted: []model.Entry{{Timestamp: "X"}}}))

	keys, err := f.kv.Keys(context.Background(), memory.Namespace)
	require.NoError(t, err)
	assert.Contains(t, keys, "restricted_memory_2025-03-04")
}

func TestForgetRemovesFromStore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.kv.SaveData(ctx, memory.GlobalKey, []model.Entry{
		{Timestamp: "T1", Memory: "secret"},
		{Timestamp: "T2", Memory: "keep"},
	}, memory.Namespace, false))

	state, err := LoadState(ctx, f.mem)
	require.NoError(t, err)
	require.Len(t, state.Global, 2)

	f.dictator.replies = []string{"ok", "Done. <Forget>secret</Forget>"}
	f.historian.replies = []string{`[{"timestamp":"T2","Memory":"keep"}]`}
	next, turn, err := f.pipeline.Turn(ctx, state, "forget the secret")
	require.NoError(t, err)
	require.True(t, turn.MemoryUpdated)
	assert.True(t, next.GlobalRewritten)

	p := NewPersister(f.mem, nil)
	require.NoError(t, p.SaveNow(ctx, next))

	want := []model.Entry{{Timestamp: "T2", Memory: "keep"}}
	if diff := cmp.Diff(want, f.kv.entries(t, memory.GlobalKey)); diff != "" {
		t.Errorf("stored global (-want +got):\n%s", diff)
	}
	reloaded, err := LoadState(ctx, f.mem)
	require.NoError(t, err)
	assert.Equal(t, want, reloaded.Global)
}

func TestTurnRollsOverDay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	yesterday := testNow.AddDate(0, 0, -1)
	state := State{
		Restricted: []model.Entry{{Timestamp: "2025-03-03 23:59:00", User: "late", Tai: "night"}},
		Day:        yesterday,
	}
	f.dictator.replies = []string{"Morning!", "Good morning."}

	next, _, err := f.pipeline.Turn(ctx, state, "hi")
	require.NoError(t, err)
	assert.Equal(t, testNow, next.Day)
	want := []model.Entry{memory.SeedEntry, {Timestamp: "2025-03-04 15:04:05", User: "hi", Tai: "Good morning."}}
	if diff := cmp.Diff(want, next.Restricted); diff != "" {
		t.Errorf("restricted (-want +got):\n%s", diff)
	}
	assert.NotContains(t, f.dictator.prompts[0], "User: late")

	require.NoError(t, NewPersister(f.mem, nil).SaveNow(ctx, next))
	assert.Equal(t, want, f.kv.entries(t, "restricted_memory_2025-03-04"))
	keys, err := f.kv.Keys(ctx, memory.Namespace)
	require.NoError(t, err)
	assert.NotContains(t, keys, "restricted_memory_2025-03-03")
}

// newRegionPipeline wires a pipeline to a real region store over sqlite.
func newRegionPipeline(t *testing.T, f *fixture) *patch.Regions {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "regions.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	regions := patch.NewRegions(store.NewKV(s, nil), nil, nil)

	p, err := NewPipeline(Config{
		Models:  Models{Dictator: f.dictator, Architect: f.architect, Historian: f.historian},
		Memory:  f.mem,
		Applier: regions,
	})
	require.NoError(t, err)
	f.pipeline = p
	return regions
}

func TestTurnEvolutionWritesRegion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	regions := newRegionPipeline(t, f)

	newCode := "package main\n\nimport \"fmt\"\n\nfunc Joke() { fmt.Println(\"pun\") }\n"
	f.dictator.replies = []string{router.EvolutionMarker + " On it.", "Upgraded."}
	f.architect.replies = []string{"```go\n" + newCode + "```", newCode}

	_, turn, err := f.pipeline.Turn(ctx, State{Day: testNow}, "upgrade yourself to tell jokes")
	require.NoError(t, err)
	assert.True(t, turn.CodeApplied)

	code, err := regions.GetCode(ctx, patch.DefaultRegion)
	require.NoError(t, err)
	assert.Equal(t, strings.TrimSpace(newCode), code)

	out, err := regions.Run(ctx, patch.DefaultRegion, "Joke()")
	require.NoError(t, err)
	assert.Equal(t, "pun\n", out)
}

func TestTurnEvolutionKeepsRegionOnBadCode(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	regions := newRegionPipeline(t, f)

	bad := "package main\n\nimport \"os/exec\"\n\nvar _ = exec.Command\n"
	f.dictator.replies = []string{router.EvolutionMarker + " On it.", "Tried."}
	f.architect.replies = []string{bad, bad}

	_, turn, err := f.pipeline.Turn(ctx, State{Day: testNow}, "upgrade yourself to run commands")
	require.NoError(t, err)
	assert.False(t, turn.CodeApplied)

	code, err := regions.GetCode(ctx, patch.DefaultRegion)
	require.NoError(t, err)
	assert.Equal(t, patch.SeedCode, code)
}
