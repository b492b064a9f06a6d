package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"kairos/internal/catalog"
	"kairos/internal/chat"
	"kairos/internal/config"
	"kairos/internal/engine/enginetest"
	"kairos/internal/hardware"
	"kairos/internal/manager"
)

func cpuDetectors() hardware.Detectors {
	return hardware.Detectors{
		Memory:   func() (int64, int64, error) { return 16 << 30, 8 << 30, nil },
		GPUs:     func() ([]hardware.GPU, error) { return nil, nil },
		DirectML: func() (bool, error) { return false, nil },
		NPU:      func() (bool, error) { return false, nil },
		CPU:      func() (string, int) { return "Test CPU", 4 },
	}
}

func newTestService(t *testing.T, eng *enginetest.Fake) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.gguf"), []byte("weights"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := config.Config{
		ModelsDir: dir,
		Database:  ":memory:",
		Models: []config.ModelEntry{
			{Name: "a.gguf", DownloadURL: "http://127.0.0.1:1/a.gguf"},
			{Name: "b.gguf", DownloadURL: "http://127.0.0.1:1/b.gguf"},
		},
	}
	svc, err := New(context.Background(), Options{Config: cfg, Engine: eng, Hardware: hardware.Options{Detectors: cpuDetectors()}})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })
	return svc, dir
}

func userMsg(s string) []chat.Message {
	return []chat.Message{{Role: chat.RoleUser, Content: s}}
}

func TestService_LoadGenerateStatus(t *testing.T) {
	svc, _ := newTestService(t, &enginetest.Fake{Tokens: []string{"Hello", " there"}})
	if svc.Hardware().Selected != hardware.BackendCPU {
		t.Fatalf("selected=%s", svc.Hardware().Selected)
	}
	if err := svc.Load(context.Background(), "a.gguf", nil); err != nil {
		t.Fatalf("load: %v", err)
	}
	out, st, err := svc.Generate(context.Background(), userMsg("hi"))
	if err != nil || out != "Hello there" || st.GeneratedTokens != 2 {
		t.Fatalf("out=%q stats=%+v err=%v", out, st, err)
	}
	status := svc.Status()
	if status.State != string(manager.StateLoaded) || status.ActiveModel != "a.gguf" || status.Backend != "cpu" {
		t.Fatalf("status=%+v", status)
	}
	if len(status.Models) != 2 || !status.Models[0].Active || status.Models[1].Downloaded {
		t.Fatalf("models=%+v", status.Models)
	}
	if status.LastStats == nil || status.LastStats.GeneratedTokens != 2 {
		t.Fatalf("last stats=%+v", status.LastStats)
	}
	if !strings.Contains(status.Hardware.Message, "RAM:") {
		t.Fatalf("hardware=%+v", status.Hardware)
	}
}

func TestService_GenerateWithoutModel(t *testing.T) {
	svc, _ := newTestService(t, &enginetest.Fake{})
	out, _, err := svc.Generate(context.Background(), userMsg("hi"))
	if !errors.Is(err, manager.ErrNoModelLoaded) || out != chat.NoModelMessage {
		t.Fatalf("out=%q err=%v", out, err)
	}
}

func TestService_DeleteActiveUnloads(t *testing.T) {
	eng := &enginetest.Fake{}
	svc, dir := newTestService(t, eng)
	if err := svc.Load(context.Background(), "a.gguf", nil); err != nil {
		t.Fatal(err)
	}
	if err := svc.Delete("a.gguf"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if svc.Ready() || eng.Open() != 0 {
		t.Fatalf("ready=%v open=%d", svc.Ready(), eng.Open())
	}
	if _, err := os.Stat(filepath.Join(dir, "a.gguf")); !os.IsNotExist(err) {
		t.Fatalf("file still present: %v", err)
	}
	if d, _ := svc.Catalog().Get("a.gguf"); d.Downloaded || d.State != catalog.StateNotStarted {
		t.Fatalf("descriptor=%+v", d)
	}
}

func TestService_CustomModelLifecycle(t *testing.T) {
	svc, _ := newTestService(t, &enginetest.Fake{})
	local := filepath.Join(t.TempDir(), "mine.gguf")
	if err := os.WriteFile(local, []byte("weights"), 0o644); err != nil {
		t.Fatal(err)
	}
	d, err := svc.AddCustom(context.Background(), catalog.CustomModel{FilePath: local})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := svc.Load(context.Background(), d.Name, nil); err != nil {
		t.Fatalf("load custom: %v", err)
	}
	if err := svc.RemoveCustom(context.Background(), d.Name); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if svc.Ready() {
		t.Fatal("removed model still loaded")
	}
	if _, err := os.Stat(local); err != nil {
		t.Fatalf("local weights must be kept: %v", err)
	}
}

func TestService_ShutdownUnloads(t *testing.T) {
	eng := &enginetest.Fake{}
	svc, _ := newTestService(t, eng)
	if err := svc.Load(context.Background(), "a.gguf", nil); err != nil {
		t.Fatal(err)
	}
	if err := svc.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if eng.Open() != 0 {
		t.Fatalf("open handles=%d", eng.Open())
	}
}

func TestService_SelectBackendAuto(t *testing.T) {
	svc, _ := newTestService(t, &enginetest.Fake{})
	p := svc.SelectBackend(hardware.BackendAuto)
	if p.Selected != p.Recommended {
		t.Fatalf("auto must resolve to recommended: %+v", p)
	}
	if svc.RefreshHardware().Selected != p.Selected {
		t.Fatal("refresh lost the selected backend")
	}
}

func TestGate_SerializesAndTimesOut(t *testing.T) {
	g := newGate(1, 20*time.Millisecond)
	release, err := g.begin(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if g.inflight() != 1 || g.waiting() != 0 {
		t.Fatalf("inflight=%d waiting=%d", g.inflight(), g.waiting())
	}
	if _, err := g.begin(context.Background()); !IsTooBusy(err) {
		t.Fatalf("expected too busy, got %v", err)
	}
	release()
	r2, err := g.begin(context.Background())
	if err != nil {
		t.Fatalf("after release: %v", err)
	}
	r2()
}

func TestGate_WaitsForSlot(t *testing.T) {
	g := newGate(2, time.Second)
	release, err := g.begin(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan error, 1)
	go func() {
		r, err := g.begin(context.Background())
		if err == nil {
			r()
		}
		done <- err
	}()
	deadline := time.Now().Add(time.Second)
	for g.waiting() != 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	release()
	if err := <-done; err != nil {
		t.Fatalf("queued generation: %v", err)
	}
}

func TestGate_Canceled(t *testing.T) {
	g := newGate(1, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := g.begin(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v", err)
	}
	if IsTooBusy(context.Canceled) {
		t.Fatal("cancellation is not backpressure")
	}
}

func TestService_ThreadsDefaultToPhysicalCores(t *testing.T) {
	eng := &enginetest.Fake{Tokens: []string{"ok"}}
	svc, _ := newTestService(t, eng)
	if svc.Config().Threads != 4 {
		t.Fatalf("threads=%d", svc.Config().Threads)
	}
	if err := svc.Load(context.Background(), "a.gguf", nil); err != nil {
		t.Fatalf("load: %v", err)
	}
	loads := eng.Loads()
	if len(loads) == 0 || loads[0].Threads != 4 {
		t.Fatalf("loads=%+v", loads)
	}
}

func TestService_ExplicitThreadsKept(t *testing.T) {
	cfg := config.Config{ModelsDir: t.TempDir(), Database: ":memory:", Threads: 2}
	svc, err := New(context.Background(), Options{Config: cfg, Engine: &enginetest.Fake{}, Hardware: hardware.Options{Detectors: cpuDetectors()}})
	if err != nil {
		t.Fatal(err)
	}
	defer svc.Shutdown(context.Background())
	if svc.Config().Threads != 2 {
		t.Fatalf("threads=%d", svc.Config().Threads)
	}
}
