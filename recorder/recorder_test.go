package recorder

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DustinWehr/LinWhisper/audio"
	"github.com/DustinWehr/LinWhisper/history"
	"github.com/DustinWehr/LinWhisper/modes"
	"github.com/DustinWehr/LinWhisper/settings"
)

type sttCall struct {
	Samples  int
	Provider string
	Model    string
	Language string
}

type fakeSTT struct {
	text  string
	err   error
	delay time.Duration

	mu    sync.Mutex
	calls []sttCall
}

func (f *fakeSTT) Transcribe(ctx context.Context, samples []float32, provider, model, language string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, sttCall{Samples: len(samples), Provider: provider, Model: model, Language: language})
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func (f *fakeSTT) Calls() []sttCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sttCall(nil), f.calls...)
}

type llmCall struct {
	Provider string
	Model    string
	Prompt   string
}

type fakeLLM struct {
	text string
	err  error

	mu    sync.Mutex
	calls []llmCall
}

func (f *fakeLLM) Complete(ctx context.Context, provider, model, prompt string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, llmCall{Provider: provider, Model: model, Prompt: prompt})
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func (f *fakeLLM) Calls() []llmCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llmCall(nil), f.calls...)
}

func sineSamples(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/float64(audio.SampleRate)))
	}
	return out
}

type testRig struct {
	orch    *Orchestrator
	stt     *fakeSTT
	llm     *fakeLLM
	history *history.Store
	store   *settings.Store
	ctx     audio.Context
}

func newTestRig(t *testing.T, samples []float32) *testRig {
	t.Helper()
	return newTestRigCtx(t, audio.NewFakeContext(samples))
}

func newTestRigCtx(t *testing.T, actx audio.Context) *testRig {
	t.Helper()
	dir := t.TempDir()

	reg, err := modes.NewRegistry(filepath.Join(dir, "modes"))
	if err != nil {
		t.Fatalf("mode registry: %v", err)
	}
	store, err := settings.NewStore(filepath.Join(dir, "settings.json"))
	if err != nil {
		t.Fatalf("settings store: %v", err)
	}
	hist, err := history.Open(filepath.Join(dir, "history.db"))
	if err != nil {
		t.Fatalf("history store: %v", err)
	}
	t.Cleanup(func() { hist.Close() })

	sttFake := &fakeSTT{text: "hello world"}
	llmFake := &fakeLLM{text: "Hello, world."}

	orch, err := New(Config{
		Audio:           actx,
		STT:             sttFake,
		LLM:             llmFake,
		Modes:           reg,
		Settings:        store,
		History:         hist,
		AudioDir:        filepath.Join(dir, "recordings"),
		ProviderTimeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	t.Cleanup(orch.Close)

	return &testRig{orch: orch, stt: sttFake, llm: llmFake, history: hist, store: store, ctx: actx}
}

func TestRecordingCycleNoAI(t *testing.T) {
	samples := sineSamples(audio.SampleRate) // one second
	rig := newTestRig(t, samples)

	if got := rig.orch.Status(); got != StatusReady {
		t.Fatalf("initial status = %s", got)
	}
	if err := rig.orch.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := rig.orch.Status(); got != StatusRecording {
		t.Fatalf("status after start = %s", got)
	}

	item, err := rig.orch.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if rig.orch.Status() != StatusReady {
		t.Errorf("status after stop = %s", rig.orch.Status())
	}
	if item.TranscriptRaw != "hello world" || item.OutputFinal != "hello world" {
		t.Errorf("transcript=%q output=%q, want passthrough", item.TranscriptRaw, item.OutputFinal)
	}
	if item.ModeKey != modes.DefaultModeKey {
		t.Errorf("mode key = %q", item.ModeKey)
	}
	if item.STTProvider != "whispercpp" || item.STTModel != "base.en" {
		t.Errorf("stt selection = %s/%s", item.STTProvider, item.STTModel)
	}
	if item.LLMProvider != "" {
		t.Errorf("LLM provider set on non-AI mode: %q", item.LLMProvider)
	}
	if item.DurationMS != 1000 {
		t.Errorf("duration = %d, want 1000", item.DurationMS)
	}
	if item.AudioPath == "" {
		t.Fatal("no retained audio path")
	}
	if _, err := os.Stat(item.AudioPath); err != nil {
		t.Errorf("retained audio missing: %v", err)
	}
	if len(rig.llm.Calls()) != 0 {
		t.Errorf("LLM called on non-AI mode: %+v", rig.llm.Calls())
	}

	stored, err := rig.history.Get(item.ID)
	if err != nil {
		t.Fatalf("history get: %v", err)
	}
	if stored.OutputFinal != "hello world" {
		t.Errorf("stored output = %q", stored.OutputFinal)
	}
	if n, _ := rig.history.Count(); n != 1 {
		t.Errorf("history count = %d, want 1", n)
	}
}

func TestRecordingCycleWithAI(t *testing.T) {
	rig := newTestRig(t, sineSamples(8000))
	if err := rig.orch.SetActiveMode("clean_text"); err != nil {
		t.Fatalf("SetActiveMode: %v", err)
	}

	events, cancel := rig.orch.Events().Subscribe()
	defer cancel()

	if err := rig.orch.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	item, err := rig.orch.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if item.OutputFinal != "Hello, world." {
		t.Errorf("output = %q, want LLM result", item.OutputFinal)
	}
	if item.TranscriptRaw != "hello world" {
		t.Errorf("raw transcript = %q", item.TranscriptRaw)
	}
	if item.LLMProvider != "ollama" || item.LLMModel != "llama3.2" {
		t.Errorf("llm selection = %s/%s", item.LLMProvider, item.LLMModel)
	}

	calls := rig.llm.Calls()
	if len(calls) != 1 {
		t.Fatalf("llm calls = %d, want 1", len(calls))
	}
	if !strings.Contains(calls[0].Prompt, "hello world") {
		t.Errorf("prompt %q does not contain transcript", calls[0].Prompt)
	}
	if strings.Contains(calls[0].Prompt, "{{transcript}}") {
		t.Errorf("placeholder left in prompt: %q", calls[0].Prompt)
	}

	cancel()
	var sawActive, sawInactive bool
	for ev := range events {
		if ev.Kind == EventProcessing {
			if ev.Active {
				sawActive = true
			} else if sawActive {
				sawInactive = true
			}
		}
	}
	if !sawActive || !sawInactive {
		t.Errorf("processing bracket events: active=%v inactive=%v", sawActive, sawInactive)
	}
}

func TestStartWhileRecording(t *testing.T) {
	rig := newTestRig(t, sineSamples(1000))
	if err := rig.orch.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := rig.orch.Start(); !errors.Is(err, ErrAlreadyRecording) {
		t.Errorf("second Start err = %v, want ErrAlreadyRecording", err)
	}
	if _, err := rig.orch.TranscribeFile("whatever.wav"); !errors.Is(err, ErrAlreadyRecording) {
		t.Errorf("TranscribeFile err = %v, want ErrAlreadyRecording", err)
	}
	if _, err := rig.orch.Reprocess("id", modes.DefaultModeKey, false); !errors.Is(err, ErrAlreadyRecording) {
		t.Errorf("Reprocess err = %v, want ErrAlreadyRecording", err)
	}
}

func TestStopWhileIdle(t *testing.T) {
	rig := newTestRig(t, nil)
	if _, err := rig.orch.Stop(); !errors.Is(err, ErrNotRecording) {
		t.Errorf("Stop err = %v, want ErrNotRecording", err)
	}
}

func TestSTTFailureStillWritesHistory(t *testing.T) {
	rig := newTestRig(t, sineSamples(4000))
	rig.stt.err = errors.New("model not downloaded")

	if err := rig.orch.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	item, err := rig.orch.Stop()
	if err == nil {
		t.Fatal("Stop succeeded despite STT failure")
	}
	if rig.orch.Status() != StatusError {
		t.Errorf("status = %s, want error", rig.orch.Status())
	}
	if item == nil {
		t.Fatal("no history item returned")
	}
	if item.Error == "" || !strings.Contains(item.Error, "model not downloaded") {
		t.Errorf("item error = %q", item.Error)
	}
	if item.OutputFinal != "" {
		t.Errorf("output = %q, want empty", item.OutputFinal)
	}
	if n, _ := rig.history.Count(); n != 1 {
		t.Errorf("history count = %d, want 1", n)
	}

	// a failed cycle does not wedge the state machine
	if err := rig.orch.Start(); err != nil {
		t.Errorf("Start after error: %v", err)
	}
}

func TestLLMFailureKeepsTranscript(t *testing.T) {
	rig := newTestRig(t, sineSamples(4000))
	rig.llm.err = errors.New("ollama unreachable")
	if err := rig.orch.SetActiveMode("clean_text"); err != nil {
		t.Fatalf("SetActiveMode: %v", err)
	}

	if err := rig.orch.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	item, err := rig.orch.Stop()
	if err == nil {
		t.Fatal("Stop succeeded despite LLM failure")
	}
	if item.TranscriptRaw != "hello world" {
		t.Errorf("raw transcript lost: %q", item.TranscriptRaw)
	}
	if !strings.Contains(item.Error, "ollama unreachable") {
		t.Errorf("item error = %q", item.Error)
	}

	stored, getErr := rig.history.Get(item.ID)
	if getErr != nil {
		t.Fatalf("history get: %v", getErr)
	}
	if stored.TranscriptRaw != "hello world" || stored.Error == "" {
		t.Errorf("stored item = %+v", stored)
	}
}

func TestLevelEventsWhileRecording(t *testing.T) {
	rig := newTestRig(t, sineSamples(audio.SampleRate/2))

	events, cancel := rig.orch.Events().Subscribe()
	defer cancel()

	if err := rig.orch.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := rig.orch.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	cancel()

	var levels int
	for ev := range events {
		if ev.Kind == EventLevel {
			levels++
			if ev.Level < 0 || ev.Level > 1 || ev.Peak < 0 || ev.Peak > 1 {
				t.Errorf("level out of range: %+v", ev)
			}
		}
	}
	if levels == 0 {
		t.Error("no level events emitted")
	}
}

func TestTranscribeFile(t *testing.T) {
	rig := newTestRig(t, nil)

	path := filepath.Join(t.TempDir(), "input.wav")
	if err := audio.SaveWAV(path, sineSamples(audio.SampleRate)); err != nil {
		t.Fatalf("save wav: %v", err)
	}

	item, err := rig.orch.TranscribeFile(path)
	if err != nil {
		t.Fatalf("TranscribeFile: %v", err)
	}
	if item.TranscriptRaw != "hello world" {
		t.Errorf("transcript = %q", item.TranscriptRaw)
	}
	if item.AudioPath != "" {
		t.Errorf("file transcription retained audio: %q", item.AudioPath)
	}
	if item.DurationMS != 1000 {
		t.Errorf("duration = %d", item.DurationMS)
	}
	if rig.orch.Status() != StatusReady {
		t.Errorf("status = %s", rig.orch.Status())
	}
}

func TestTranscribeFileMissing(t *testing.T) {
	rig := newTestRig(t, nil)
	item, err := rig.orch.TranscribeFile(filepath.Join(t.TempDir(), "nope.wav"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if rig.orch.Status() != StatusError {
		t.Errorf("status = %s, want error", rig.orch.Status())
	}
	// the failure still leaves an audit record
	if item == nil {
		t.Fatal("no history item returned")
	}
	if item.Error == "" {
		t.Error("item error not populated")
	}
	stored, getErr := rig.history.Get(item.ID)
	if getErr != nil {
		t.Fatalf("history get: %v", getErr)
	}
	if stored.Error == "" || stored.OutputFinal != "" {
		t.Errorf("stored item = %+v", stored)
	}
	if n, _ := rig.history.Count(); n != 1 {
		t.Errorf("history count = %d, want 1", n)
	}
}

func TestProviderTimeoutReachesError(t *testing.T) {
	rig := newTestRig(t, sineSamples(4000))
	rig.stt.delay = time.Minute
	rig.orch.timeout = 100 * time.Millisecond

	if err := rig.orch.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	start := time.Now()
	item, err := rig.orch.Stop()
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("Stop succeeded despite provider hang")
	}
	if elapsed > 5*time.Second {
		t.Fatalf("Stop took %s, timeout bound not enforced", elapsed)
	}
	if rig.orch.Status() != StatusError {
		t.Errorf("status = %s, want error", rig.orch.Status())
	}
	if item == nil || !strings.Contains(item.Error, context.DeadlineExceeded.Error()) {
		t.Errorf("item = %+v, want deadline error recorded", item)
	}
	if n, _ := rig.history.Count(); n != 1 {
		t.Errorf("history count = %d, want 1", n)
	}
}

// joinCapture mimics audio backends whose Stop joins the device thread:
// it blocks until the in-flight data callback has returned.
type joinCapture struct {
	mu   sync.Mutex
	cb   audio.DataCallback
	quit chan struct{}
	done chan struct{}
}

func (c *joinCapture) Start() error {
	c.mu.Lock()
	c.quit = make(chan struct{})
	c.done = make(chan struct{})
	quit, done := c.quit, c.done
	c.mu.Unlock()

	go func() {
		defer close(done)
		chunk := make([]float32, 256)
		for {
			select {
			case <-quit:
				return
			default:
			}
			c.mu.Lock()
			cb := c.cb
			c.mu.Unlock()
			if cb != nil {
				cb(chunk)
			}
			time.Sleep(time.Millisecond)
		}
	}()
	return nil
}

func (c *joinCapture) Stop() {
	c.mu.Lock()
	quit, done := c.quit, c.done
	c.mu.Unlock()
	if quit == nil {
		return
	}
	select {
	case <-quit:
	default:
		close(quit)
	}
	<-done
}

func (c *joinCapture) Close() {}

func (c *joinCapture) SetCallback(cb audio.DataCallback) {
	c.mu.Lock()
	c.cb = cb
	c.mu.Unlock()
}

func (c *joinCapture) ClearCallback() {
	c.mu.Lock()
	c.cb = nil
	c.mu.Unlock()
}

func (c *joinCapture) DeviceName() string { return "join-capture" }

type joinContext struct{}

func (joinContext) Devices() []audio.Device { return nil }
func (joinContext) NewCapture(string) (audio.CaptureDevice, error) {
	return &joinCapture{}, nil
}
func (joinContext) Close() {}

func TestStopJoinsBlockingBackend(t *testing.T) {
	rig := newTestRigCtx(t, joinContext{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			if err := rig.orch.Start(); err != nil {
				t.Errorf("iteration %d: Start: %v", i, err)
				return
			}
			time.Sleep(2 * time.Millisecond)
			if _, err := rig.orch.Stop(); err != nil {
				t.Errorf("iteration %d: Stop: %v", i, err)
				return
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(60 * time.Second):
		t.Fatal("Stop deadlocked against a backend whose Stop joins the device thread")
	}
}

func TestReprocessReusesTranscript(t *testing.T) {
	rig := newTestRig(t, sineSamples(8000))
	if err := rig.orch.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	src, err := rig.orch.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	sttCallsBefore := len(rig.stt.Calls())

	item, err := rig.orch.Reprocess(src.ID, "summary", false)
	if err != nil {
		t.Fatalf("Reprocess: %v", err)
	}
	if item.ID == src.ID {
		t.Error("reprocess reused source id")
	}
	if item.ModeKey != "summary" {
		t.Errorf("mode key = %q", item.ModeKey)
	}
	if item.TranscriptRaw != src.TranscriptRaw {
		t.Errorf("transcript = %q, want reuse of %q", item.TranscriptRaw, src.TranscriptRaw)
	}
	if len(rig.stt.Calls()) != sttCallsBefore {
		t.Error("STT re-run without fromAudio")
	}
	if len(rig.llm.Calls()) != 1 {
		t.Errorf("llm calls = %d, want 1", len(rig.llm.Calls()))
	}

	// source item untouched
	orig, err := rig.history.Get(src.ID)
	if err != nil {
		t.Fatalf("source item gone: %v", err)
	}
	if orig.OutputFinal != src.OutputFinal {
		t.Errorf("source item mutated: %+v", orig)
	}
	if n, _ := rig.history.Count(); n != 2 {
		t.Errorf("history count = %d, want 2", n)
	}
}

func TestReprocessFromAudio(t *testing.T) {
	rig := newTestRig(t, sineSamples(8000))
	if err := rig.orch.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	src, err := rig.orch.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if src.AudioPath == "" {
		t.Fatal("no retained audio to reprocess from")
	}
	sttCallsBefore := len(rig.stt.Calls())

	item, err := rig.orch.Reprocess(src.ID, modes.DefaultModeKey, true)
	if err != nil {
		t.Fatalf("Reprocess: %v", err)
	}
	calls := rig.stt.Calls()
	if len(calls) != sttCallsBefore+1 {
		t.Fatalf("stt calls = %d, want %d", len(calls), sttCallsBefore+1)
	}
	if calls[len(calls)-1].Samples == 0 {
		t.Error("reprocess fed no samples to STT")
	}
	if item.OutputFinal != "hello world" {
		t.Errorf("output = %q", item.OutputFinal)
	}
}

func TestReprocessMissingItem(t *testing.T) {
	rig := newTestRig(t, nil)
	if _, err := rig.orch.Reprocess("no-such-id", modes.DefaultModeKey, false); !errors.Is(err, history.ErrNotFound) {
		t.Errorf("err = %v, want history.ErrNotFound", err)
	}
}

func TestReprocessUnknownMode(t *testing.T) {
	rig := newTestRig(t, sineSamples(1000))
	if err := rig.orch.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	src, err := rig.orch.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if _, err := rig.orch.Reprocess(src.ID, "no-such-mode", false); !errors.Is(err, modes.ErrModeNotFound) {
		t.Errorf("err = %v, want modes.ErrModeNotFound", err)
	}
}

func TestSetActiveModeUnknown(t *testing.T) {
	rig := newTestRig(t, nil)
	if err := rig.orch.SetActiveMode("nope"); !errors.Is(err, modes.ErrModeNotFound) {
		t.Errorf("err = %v, want modes.ErrModeNotFound", err)
	}
	if rig.store.Get().ActiveModeKey != modes.DefaultModeKey {
		t.Error("settings changed on failed SetActiveMode")
	}
}

func TestSettingsSnapshotAtCycleStart(t *testing.T) {
	rig := newTestRig(t, sineSamples(4000))
	if err := rig.orch.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// switching modes mid-recording must not affect the running cycle
	if err := rig.orch.SetActiveMode("clean_text"); err != nil {
		t.Fatalf("SetActiveMode: %v", err)
	}
	item, err := rig.orch.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if item.ModeKey != modes.DefaultModeKey {
		t.Errorf("mode key = %q, want snapshot from start", item.ModeKey)
	}
	if len(rig.llm.Calls()) != 0 {
		t.Error("LLM ran for a cycle started under a non-AI mode")
	}
}

func TestDevicesPassthrough(t *testing.T) {
	rig := newTestRig(t, nil)
	devs := rig.orch.Devices()
	if len(devs) != 1 || devs[0].Name != "Fake Microphone" || !devs[0].IsDefault {
		t.Errorf("devices = %+v", devs)
	}
}
