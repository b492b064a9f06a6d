package manager

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"kairos/internal/catalog"
	"kairos/internal/config"
	"kairos/internal/engine"
	"kairos/internal/engine/enginetest"
	"kairos/internal/events"
	"kairos/internal/hardware"
)

const gib = int64(1) << 30

type fixedHardware hardware.Profile

func (h fixedHardware) Detect() hardware.Profile { return hardware.Profile(h) }

func cudaProfile(vram int64) fixedHardware {
	return fixedHardware{GPUName: "NVIDIA GeForce RTX 4060", GPUMemoryBytes: vram, HasCUDA: true, Selected: hardware.BackendCUDA}
}

// newCatalog writes a small file for every downloaded name and declares the
// given size for every entry.
func newCatalog(t *testing.T, size int64, downloaded []string, missing ...string) *catalog.Catalog {
	t.Helper()
	dir := t.TempDir()
	var entries []config.ModelEntry
	for _, n := range downloaded {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("gguf"), 0o644); err != nil {
			t.Fatal(err)
		}
		entries = append(entries, config.ModelEntry{Name: n, SizeBytes: size, DownloadURL: "http://x/" + n})
	}
	for _, n := range missing {
		entries = append(entries, config.ModelEntry{Name: n, SizeBytes: size, DownloadURL: "http://x/" + n})
	}
	c := catalog.New(catalog.Options{ModelsDir: dir, Entries: entries})
	if err := c.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	return c
}

type harness struct {
	m   *Manager
	eng *enginetest.Fake
	cat *catalog.Catalog
	pub *events.Memory
}

func newHarness(t *testing.T, hw Hardware, eng *enginetest.Fake, cat *catalog.Catalog) harness {
	t.Helper()
	pub := events.NewMemory()
	m := NewWithConfig(Config{Engine: eng, Catalog: cat, Hardware: hw, Publisher: pub})
	return harness{m: m, eng: eng, cat: cat, pub: pub}
}

func layersOf(loads []engine.LoadParams) []int {
	out := make([]int, len(loads))
	for i, l := range loads {
		out[i] = l.GPULayers
	}
	return out
}

func activeCount(c *catalog.Catalog) int {
	n := 0
	for _, d := range c.List() {
		if d.Active {
			n++
		}
	}
	return n
}

func TestSetActiveModel_FirstAttemptSucceeds(t *testing.T) {
	h := newHarness(t, cudaProfile(8*gib), &enginetest.Fake{}, newCatalog(t, 4*gib, []string{"a.gguf"}))
	var progress []float64
	if err := h.m.SetActiveModel(context.Background(), "a.gguf", func(p float64) { progress = append(progress, p) }); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := layersOf(h.eng.Loads()); !slices.Equal(got, []int{32}) {
		t.Fatalf("loads=%v", got)
	}
	for _, l := range h.eng.Loads() {
		if l.ContextSize != 4096 {
			t.Fatalf("context size=%d", l.ContextSize)
		}
	}
	snap := h.m.Snapshot()
	if snap.State != StateLoaded || snap.Model != "a.gguf" || snap.GPULayers != 32 || snap.Backend != hardware.BackendCUDA {
		t.Fatalf("snapshot=%+v", snap)
	}
	if !slices.Equal(progress, []float64{5, 10, 20, 30, 90, 100}) {
		t.Fatalf("progress=%v", progress)
	}
	if d, _ := h.cat.Get("a.gguf"); !d.Active {
		t.Fatalf("descriptor not active")
	}
	if names := h.pub.Names(); !slices.Equal(names, []string{events.ModelLoading, events.ModelLoaded}) {
		t.Fatalf("events=%v", names)
	}
}

func TestSetActiveModel_WalksLadder(t *testing.T) {
	eng := &enginetest.Fake{FailLoad: func(layers int) error {
		if layers > 8 {
			return errors.New("CUDA out of memory")
		}
		return nil
	}}
	h := newHarness(t, cudaProfile(8*gib), eng, newCatalog(t, 4*gib, []string{"a.gguf"}))
	var progress []float64
	if err := h.m.SetActiveModel(context.Background(), "a.gguf", func(p float64) { progress = append(progress, p) }); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := layersOf(eng.Loads()); !slices.Equal(got, []int{32, 16, 8}) {
		t.Fatalf("loads=%v", got)
	}
	if h.m.Snapshot().GPULayers != 8 {
		t.Fatalf("layers used=%d", h.m.Snapshot().GPULayers)
	}
	if !slices.IsSorted(progress) || progress[len(progress)-1] != 100 {
		t.Fatalf("progress=%v", progress)
	}
	failed := 0
	for _, n := range h.pub.Names() {
		if n == events.LoadAttemptFailed {
			failed++
		}
	}
	if failed != 2 {
		t.Fatalf("attempt failures published=%d", failed)
	}
}

func TestSetActiveModel_AllAttemptsFail(t *testing.T) {
	boom := errors.New("failed to load model: bad magic")
	eng := &enginetest.Fake{FailLoad: func(int) error { return boom }}
	h := newHarness(t, cudaProfile(8*gib), eng, newCatalog(t, 4*gib, []string{"a.gguf"}))

	var progress []float64
	err := h.m.SetActiveModel(context.Background(), "a.gguf", func(p float64) { progress = append(progress, p) })
	if !IsLoadFailed(err) || !errors.Is(err, boom) {
		t.Fatalf("expected load error wrapping native error, got %v", err)
	}
	var le *LoadError
	errors.As(err, &le)
	if len(le.Attempts) != 4 || le.Attempts[3].Layers != 0 {
		t.Fatalf("attempts=%+v", le.Attempts)
	}
	snap := h.m.Snapshot()
	if snap.State != StateUnloaded || snap.Model != "" || snap.LastError != boom.Error() {
		t.Fatalf("snapshot=%+v", snap)
	}
	if d, _ := h.cat.Get("a.gguf"); d.LoadError != boom.Error() || d.Active {
		t.Fatalf("descriptor=%+v", d)
	}
	if eng.Open() != 0 {
		t.Fatalf("dangling handles: %d", eng.Open())
	}
	if !slices.IsSorted(progress) || progress[len(progress)-1] == 100 {
		t.Fatalf("progress=%v", progress)
	}
	if _, err := h.m.Acquire(); !errors.Is(err, ErrNoModelLoaded) {
		t.Fatalf("acquire after failure: %v", err)
	}
	names := h.pub.Names()
	if names[len(names)-1] != events.ModelLoadFailed {
		t.Fatalf("events=%v", names)
	}
}

func TestSetActiveModel_SkipsRepeatedRungs(t *testing.T) {
	// 1.5 GiB model on a 1.6 GiB card plans [1, 1, 1, 0].
	eng := &enginetest.Fake{FailLoad: func(int) error { return errors.New("oom") }}
	hw := cudaProfile(gib + gib*6/10)
	h := newHarness(t, hw, eng, newCatalog(t, gib+gib/2, []string{"a.gguf"}))
	_ = h.m.SetActiveModel(context.Background(), "a.gguf", nil)
	if got := layersOf(eng.Loads()); !slices.Equal(got, []int{1, 0}) {
		t.Fatalf("loads=%v", got)
	}
}

func TestSetActiveModel_DependencyUnavailableStops(t *testing.T) {
	eng := &enginetest.Fake{FailLoad: func(int) error { return engine.ErrDependencyUnavailable("no llama") }}
	h := newHarness(t, cudaProfile(8*gib), eng, newCatalog(t, 4*gib, []string{"a.gguf"}))
	err := h.m.SetActiveModel(context.Background(), "a.gguf", nil)
	if !engine.IsDependencyUnavailable(err) {
		t.Fatalf("expected dependency unavailable, got %v", err)
	}
	if len(eng.Loads()) != 1 {
		t.Fatalf("loads=%d want 1", len(eng.Loads()))
	}
}

func TestSetActiveModel_CPUBackend(t *testing.T) {
	hw := fixedHardware{Selected: hardware.BackendCPU}
	h := newHarness(t, hw, &enginetest.Fake{}, newCatalog(t, 4*gib, []string{"a.gguf"}))
	if err := h.m.SetActiveModel(context.Background(), "a.gguf", nil); err != nil {
		t.Fatal(err)
	}
	if got := layersOf(h.eng.Loads()); !slices.Equal(got, []int{0}) {
		t.Fatalf("loads=%v", got)
	}
	if h.m.Snapshot().Backend != hardware.BackendCPU {
		t.Fatalf("backend=%s", h.m.Snapshot().Backend)
	}
}

func TestSetActiveModel_CPUFallbackReportsCPUBackend(t *testing.T) {
	eng := &enginetest.Fake{FailLoad: func(layers int) error {
		if layers > 0 {
			return errors.New("oom")
		}
		return nil
	}}
	h := newHarness(t, cudaProfile(8*gib), eng, newCatalog(t, 4*gib, []string{"a.gguf"}))
	if err := h.m.SetActiveModel(context.Background(), "a.gguf", nil); err != nil {
		t.Fatal(err)
	}
	if snap := h.m.Snapshot(); snap.GPULayers != 0 || snap.Backend != hardware.BackendCPU {
		t.Fatalf("snapshot=%+v", snap)
	}
}

func TestSetActiveModel_ContextFailureReleasesWeights(t *testing.T) {
	eng := &enginetest.Fake{FailContext: errors.New("kv cache alloc failed")}
	h := newHarness(t, cudaProfile(8*gib), eng, newCatalog(t, 4*gib, []string{"a.gguf"}))
	if err := h.m.SetActiveModel(context.Background(), "a.gguf", nil); !IsLoadFailed(err) {
		t.Fatalf("expected load failure, got %v", err)
	}
	if eng.Open() != 0 || eng.Closed() != 4 {
		t.Fatalf("open=%d closed=%d", eng.Open(), eng.Closed())
	}
}

func TestSetActiveModel_NotDownloaded(t *testing.T) {
	eng := &enginetest.Fake{}
	h := newHarness(t, cudaProfile(8*gib), eng, newCatalog(t, 4*gib, nil, "gone.gguf"))
	err := h.m.SetActiveModel(context.Background(), "gone.gguf", nil)
	if !catalog.IsNotDownloaded(err) {
		t.Fatalf("expected not downloaded, got %v", err)
	}
	if len(eng.Loads()) != 0 {
		t.Fatalf("engine called for a missing file")
	}
	if err := h.m.SetActiveModel(context.Background(), "unknown", nil); !catalog.IsModelNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSetActiveModel_SwitchKeepsOneSession(t *testing.T) {
	eng := &enginetest.Fake{}
	h := newHarness(t, cudaProfile(8*gib), eng, newCatalog(t, 4*gib, []string{"a.gguf", "b.gguf"}))
	ctx := context.Background()
	if err := h.m.SetActiveModel(ctx, "a.gguf", nil); err != nil {
		t.Fatal(err)
	}
	if err := h.m.SetActiveModel(ctx, "b.gguf", nil); err != nil {
		t.Fatal(err)
	}
	if eng.Open() != 1 || eng.Closed() != 1 {
		t.Fatalf("open=%d closed=%d", eng.Open(), eng.Closed())
	}
	if activeCount(h.cat) != 1 || h.m.ActiveModel() != "b.gguf" {
		t.Fatalf("active=%d model=%s", activeCount(h.cat), h.m.ActiveModel())
	}
	if !slices.Contains(h.pub.Names(), events.ModelUnloaded) {
		t.Fatalf("missing unload event: %v", h.pub.Names())
	}

	// a failed switch leaves nothing loaded
	eng.FailLoad = func(int) error { return errors.New("oom") }
	_ = h.m.SetActiveModel(ctx, "a.gguf", nil)
	if eng.Open() != 0 || activeCount(h.cat) != 0 {
		t.Fatalf("open=%d active=%d", eng.Open(), activeCount(h.cat))
	}
}

func TestUnload(t *testing.T) {
	eng := &enginetest.Fake{}
	h := newHarness(t, cudaProfile(8*gib), eng, newCatalog(t, 4*gib, []string{"a.gguf"}))
	if err := h.m.Unload(); err != nil {
		t.Fatalf("unload with nothing loaded: %v", err)
	}
	if len(h.pub.Names()) != 0 {
		t.Fatalf("no-op unload published %v", h.pub.Names())
	}
	if err := h.m.SetActiveModel(context.Background(), "a.gguf", nil); err != nil {
		t.Fatal(err)
	}
	if err := h.m.Unload(); err != nil {
		t.Fatal(err)
	}
	if eng.Open() != 0 || h.m.Ready() || activeCount(h.cat) != 0 {
		t.Fatalf("session not released")
	}
}

func TestUnload_WaitsForLease(t *testing.T) {
	eng := &enginetest.Fake{}
	h := newHarness(t, cudaProfile(8*gib), eng, newCatalog(t, 4*gib, []string{"a.gguf"}))
	if err := h.m.SetActiveModel(context.Background(), "a.gguf", nil); err != nil {
		t.Fatal(err)
	}
	lease, err := h.m.Acquire()
	if err != nil {
		t.Fatal(err)
	}
	if lease.Model != "a.gguf" || lease.Layers != 32 || lease.Context == nil {
		t.Fatalf("lease=%+v", lease)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	done := make(chan struct{})
	go func() {
		defer wg.Done()
		_ = h.m.Unload()
		close(done)
	}()
	select {
	case <-done:
		t.Fatalf("unload did not wait for the lease")
	case <-time.After(50 * time.Millisecond):
	}
	if eng.Open() != 1 {
		t.Fatalf("weights freed while leased")
	}
	lease.Release()
	lease.Release()
	wg.Wait()
	if eng.Open() != 0 {
		t.Fatalf("weights not freed after release")
	}
}

func TestReload(t *testing.T) {
	eng := &enginetest.Fake{}
	h := newHarness(t, cudaProfile(8*gib), eng, newCatalog(t, 4*gib, []string{"a.gguf"}))
	if err := h.m.Reload(context.Background(), nil); !errors.Is(err, ErrNoModelLoaded) {
		t.Fatalf("expected ErrNoModelLoaded, got %v", err)
	}
	if err := h.m.SetActiveModel(context.Background(), "a.gguf", nil); err != nil {
		t.Fatal(err)
	}
	if err := h.m.Reload(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if len(eng.Loads()) != 2 || eng.Open() != 1 || h.m.ActiveModel() != "a.gguf" {
		t.Fatalf("loads=%d open=%d active=%s", len(eng.Loads()), eng.Open(), h.m.ActiveModel())
	}
}

func TestLoadError_Message(t *testing.T) {
	le := &LoadError{Model: "m"}
	if le.Message() != DefaultLoadErrorMessage {
		t.Fatalf("message=%q", le.Message())
	}
	le.Attempts = []Attempt{{Layers: 8, Err: errors.New("oom")}}
	if le.Message() != "oom" || le.Error() != "load m failed after 1 attempt(s): oom" {
		t.Fatalf("error=%q", le.Error())
	}
}
