// Package recorder coordinates one recording cycle at a time: capture,
// transcription, optional AI post-processing, then a durable history
// write. Every started cycle produces exactly one history item, even
// when a provider call fails partway.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/atotto/clipboard"

	"github.com/DustinWehr/LinWhisper/audio"
	"github.com/DustinWehr/LinWhisper/history"
	"github.com/DustinWehr/LinWhisper/llm"
	"github.com/DustinWehr/LinWhisper/log"
	"github.com/DustinWehr/LinWhisper/modes"
	"github.com/DustinWehr/LinWhisper/settings"
)

// Status is the orchestrator's externally visible state.
type Status string

const (
	StatusLoading    Status = "loading"
	StatusRecording  Status = "recording"
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusError      Status = "error"
)

var (
	ErrAlreadyRecording = errors.New("a recording cycle is already in progress")
	ErrNotRecording     = errors.New("no recording in progress")
)

// Transcriber is the slice of the STT engine the orchestrator needs.
type Transcriber interface {
	Transcribe(ctx context.Context, samples []float32, provider, model, language string) (string, error)
}

// Completer is the slice of the LLM engine the orchestrator needs.
type Completer interface {
	Complete(ctx context.Context, provider, model, prompt string) (string, error)
}

const defaultProviderTimeout = 120 * time.Second

// Config wires the orchestrator's collaborators.
type Config struct {
	Audio    audio.Context
	STT      Transcriber
	LLM      Completer
	Modes    *modes.Registry
	Settings *settings.Store
	History  *history.Store
	// AudioDir receives one retained WAV per recorded cycle.
	AudioDir string
	// ProviderTimeout bounds each STT and LLM call separately.
	// Zero means the default.
	ProviderTimeout time.Duration
}

// Orchestrator owns the recording state machine. All entry points are
// safe for concurrent use; only one cycle runs at a time and competing
// requests are rejected, not queued.
type Orchestrator struct {
	audio    audio.Context
	stt      Transcriber
	llm      Completer
	modes    *modes.Registry
	settings *settings.Store
	history  *history.Store
	bus      *Bus
	audioDir string
	timeout  time.Duration

	mu      sync.Mutex
	status  Status
	capture audio.CaptureDevice
	samples []float32
	meter   audio.LevelMeter

	// snapshots taken when the cycle starts; settings or mode edits
	// during a cycle do not affect it
	cycleMode     modes.Mode
	cycleSettings settings.Settings
}

func New(cfg Config) (*Orchestrator, error) {
	if err := os.MkdirAll(cfg.AudioDir, 0o755); err != nil {
		return nil, fmt.Errorf("create audio dir: %w", err)
	}
	timeout := cfg.ProviderTimeout
	if timeout == 0 {
		timeout = defaultProviderTimeout
	}
	return &Orchestrator{
		audio:    cfg.Audio,
		stt:      cfg.STT,
		llm:      cfg.LLM,
		modes:    cfg.Modes,
		settings: cfg.Settings,
		history:  cfg.History,
		bus:      NewBus(),
		audioDir: cfg.AudioDir,
		timeout:  timeout,
		status:   StatusReady,
	}, nil
}

// Events exposes the orchestrator's event bus.
func (o *Orchestrator) Events() *Bus { return o.bus }

// Status returns the current state. StatusError persists until the
// next start so callers can inspect it.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// Devices lists input devices. Enumeration failure inside the audio
// layer yields an empty list, never an error.
func (o *Orchestrator) Devices() []audio.Device {
	return o.audio.Devices()
}

// SetActiveMode validates key against the registry and persists it.
func (o *Orchestrator) SetActiveMode(key string) error {
	if _, err := o.modes.Get(key); err != nil {
		return err
	}
	cfg := o.settings.Get()
	cfg.ActiveModeKey = key
	return o.settings.Update(cfg)
}

// SetInputDevice persists the capture device name for future cycles.
func (o *Orchestrator) SetInputDevice(name string) error {
	cfg := o.settings.Get()
	cfg.InputDevice = name
	return o.settings.Update(cfg)
}

// Start opens the input stream and begins buffering samples. Rejected
// while a cycle is recording or processing.
func (o *Orchestrator) Start() error {
	o.mu.Lock()

	if o.status == StatusRecording || o.status == StatusProcessing {
		o.mu.Unlock()
		return ErrAlreadyRecording
	}

	o.cycleSettings = o.settings.Get()
	o.cycleMode = o.modes.GetActive(o.cycleSettings.ActiveModeKey)

	dev, err := o.audio.NewCapture(o.cycleSettings.InputDevice)
	if err != nil {
		o.setStatusLocked(StatusError, err)
		o.mu.Unlock()
		return fmt.Errorf("open capture device: %w", err)
	}

	o.samples = nil
	o.meter.Reset()
	dev.SetCallback(o.onSamples)
	o.capture = dev
	o.setStatusLocked(StatusRecording, nil)
	mode := o.cycleMode.Key
	o.mu.Unlock()

	// Start outside the lock: the capture layer may deliver the first
	// samples synchronously from Start.
	if err := dev.Start(); err != nil {
		dev.Close()
		o.mu.Lock()
		o.capture = nil
		o.setStatusLocked(StatusError, err)
		o.mu.Unlock()
		return fmt.Errorf("start capture: %w", err)
	}

	log.Infof("recording started: device=%q mode=%s", dev.DeviceName(), mode)
	return nil
}

func (o *Orchestrator) onSamples(chunk []float32) {
	o.mu.Lock()
	if o.status != StatusRecording {
		o.mu.Unlock()
		return
	}
	o.samples = append(o.samples, chunk...)
	o.meter.Update(chunk)
	level, peak := o.meter.Levels()
	o.mu.Unlock()

	o.bus.publish(Event{Kind: EventLevel, Level: level, Peak: peak})
}

// Stop closes the stream and runs the buffered audio through the
// pipeline. It blocks until the cycle lands in ready or error and
// returns the history item written for it.
func (o *Orchestrator) Stop() (*history.Item, error) {
	o.mu.Lock()
	if o.status != StatusRecording {
		o.mu.Unlock()
		return nil, ErrNotRecording
	}
	dev := o.capture
	o.capture = nil
	dev.ClearCallback()
	samples := o.samples
	o.samples = nil
	mode, cfg := o.cycleMode, o.cycleSettings
	o.setStatusLocked(StatusProcessing, nil)
	o.mu.Unlock()

	// Device teardown must happen outside the lock: the backend's Stop
	// waits for the device thread to leave its data callback, and a
	// callback that loaded the pointer before ClearCallback may be
	// blocked on o.mu right now. It re-checks status and drops.
	dev.Stop()
	dev.Close()

	item, err := o.process(samples, mode, cfg, true)
	o.finish(item, err)
	return item, err
}

// TranscribeFile runs an existing WAV file through the pipeline using
// the active mode. Rejected while a live cycle is in progress.
func (o *Orchestrator) TranscribeFile(path string) (*history.Item, error) {
	o.mu.Lock()
	if o.status == StatusRecording || o.status == StatusProcessing {
		o.mu.Unlock()
		return nil, ErrAlreadyRecording
	}
	cfg := o.settings.Get()
	mode := o.modes.GetActive(cfg.ActiveModeKey)
	o.setStatusLocked(StatusProcessing, nil)
	o.mu.Unlock()

	samples, err := audio.LoadWAV(path)
	if err != nil {
		// the cycle already started, so it still gets its audit record
		err = fmt.Errorf("load audio file: %w", err)
		provider, model := sttSelection(mode, cfg)
		item := &history.Item{
			ID:          history.NewID(),
			CreatedAt:   time.Now().UTC(),
			ModeKey:     mode.Key,
			STTProvider: provider,
			STTModel:    model,
			Error:       err.Error(),
		}
		if createErr := o.history.Create(*item); createErr != nil {
			log.Warnf("history write for failed file load: %v", createErr)
		}
		o.finish(item, err)
		return item, err
	}

	item, procErr := o.process(samples, mode, cfg, false)
	o.finish(item, procErr)
	return item, procErr
}

// Reprocess runs an existing history item through a different mode and
// writes a new item; the source item is never touched. The stored raw
// transcript is reused unless fromAudio is set and the item carries a
// retained audio file, in which case transcription is re-run.
func (o *Orchestrator) Reprocess(id, modeKey string, fromAudio bool) (*history.Item, error) {
	o.mu.Lock()
	if o.status == StatusRecording || o.status == StatusProcessing {
		o.mu.Unlock()
		return nil, ErrAlreadyRecording
	}
	cfg := o.settings.Get()
	o.mu.Unlock()

	src, err := o.history.Get(id)
	if err != nil {
		return nil, err
	}
	mode, err := o.modes.Get(modeKey)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.setStatusLocked(StatusProcessing, nil)
	o.mu.Unlock()

	item := &history.Item{
		ID:         history.NewID(),
		CreatedAt:  time.Now().UTC(),
		ModeKey:    mode.Key,
		DurationMS: src.DurationMS,
	}

	transcript := src.TranscriptRaw
	if fromAudio && src.AudioPath != "" {
		samples, loadErr := audio.LoadWAV(src.AudioPath)
		if loadErr != nil {
			err = fmt.Errorf("load retained audio: %w", loadErr)
		} else {
			provider, model := sttSelection(mode, cfg)
			item.STTProvider, item.STTModel = provider, model
			transcript, err = o.transcribe(samples, provider, model, cfg.Language)
		}
	} else {
		item.STTProvider, item.STTModel = src.STTProvider, src.STTModel
	}
	item.TranscriptRaw = transcript

	if err == nil {
		err = o.postProcess(item, mode, cfg, transcript)
	}
	if err != nil {
		item.Error = err.Error()
	}

	if createErr := o.history.Create(*item); createErr != nil {
		o.finish(item, createErr)
		return nil, fmt.Errorf("write history: %w", createErr)
	}
	o.finish(item, err)
	return item, err
}

// process is the shared stop/file pipeline: STT, optional LLM, history
// write. It always writes one history item, also on failure; only a
// failed history write itself returns without one.
func (o *Orchestrator) process(samples []float32, mode modes.Mode, cfg settings.Settings, retain bool) (*history.Item, error) {
	provider, model := sttSelection(mode, cfg)
	item := &history.Item{
		ID:          history.NewID(),
		CreatedAt:   time.Now().UTC(),
		ModeKey:     mode.Key,
		STTProvider: provider,
		STTModel:    model,
		DurationMS:  audio.DurationMS(len(samples)),
	}

	if retain {
		path := filepath.Join(o.audioDir, item.ID+".wav")
		if err := audio.SaveWAV(path, samples); err != nil {
			log.Warnf("audio retention failed: %v", err)
		} else {
			item.AudioPath = path
		}
	}

	transcript, err := o.transcribe(samples, provider, model, cfg.Language)
	item.TranscriptRaw = transcript
	if err == nil {
		err = o.postProcess(item, mode, cfg, transcript)
	}
	if err != nil {
		item.Error = err.Error()
	} else if cfg.AutoPaste && item.OutputFinal != "" {
		if cbErr := clipboard.WriteAll(item.OutputFinal); cbErr != nil {
			log.Warnf("clipboard write failed: %v", cbErr)
		}
	}

	if createErr := o.history.Create(*item); createErr != nil {
		return nil, fmt.Errorf("write history: %w", createErr)
	}
	return item, err
}

func (o *Orchestrator) transcribe(samples []float32, provider, model, language string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()
	text, err := o.stt.Transcribe(ctx, samples, provider, model, language)
	if err != nil {
		return "", fmt.Errorf("transcription: %w", err)
	}
	return text, nil
}

// postProcess fills OutputFinal, running the LLM only when the mode
// asks for it. Processing-active events bracket just the LLM call.
func (o *Orchestrator) postProcess(item *history.Item, mode modes.Mode, cfg settings.Settings, transcript string) error {
	if !mode.AIProcessing {
		item.OutputFinal = transcript
		return nil
	}

	provider, model := llmSelection(mode, cfg)
	item.LLMProvider, item.LLMModel = provider, model

	prompt := llm.RenderPrompt(mode.PromptTemplate, llm.PromptInput{
		Transcript:       transcript,
		Language:         cfg.Language,
		ContextAwareness: cfg.ContextAwareness,
	})

	o.bus.publish(Event{Kind: EventProcessing, Active: true})
	defer o.bus.publish(Event{Kind: EventProcessing, Active: false})

	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()
	out, err := o.llm.Complete(ctx, provider, model, prompt)
	if err != nil {
		return fmt.Errorf("post-processing: %w", err)
	}
	item.OutputFinal = out
	return nil
}

// finish publishes the terminal status for a cycle.
func (o *Orchestrator) finish(item *history.Item, err error) {
	o.mu.Lock()
	if err != nil {
		o.setStatusLocked(StatusError, err)
	} else {
		o.setStatusLocked(StatusReady, nil)
	}
	o.mu.Unlock()

	if err == nil && item != nil {
		o.bus.publish(Event{Kind: EventNavigation, Route: "history"})
	}
}

func (o *Orchestrator) setStatusLocked(s Status, err error) {
	o.status = s
	ev := Event{Kind: EventStatus, Status: s}
	if err != nil {
		ev.Err = err.Error()
	}
	o.bus.publish(ev)
}

// Close releases the capture device if a recording is still open.
// Buffered audio is discarded; shutdown is not a stop command.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	dev := o.capture
	o.capture = nil
	o.samples = nil
	if dev != nil {
		dev.ClearCallback()
	}
	o.mu.Unlock()

	// same rule as Stop: never hold o.mu across device teardown
	if dev != nil {
		dev.Stop()
		dev.Close()
	}
}

func sttSelection(mode modes.Mode, cfg settings.Settings) (provider, model string) {
	provider, model = mode.STTProvider, mode.STTModel
	if provider == "" {
		provider = cfg.STTProvider
	}
	if model == "" {
		model = cfg.STTModel
	}
	return provider, model
}

func llmSelection(mode modes.Mode, cfg settings.Settings) (provider, model string) {
	provider, model = mode.LLMProvider, mode.LLMModel
	if provider == "" {
		provider = cfg.LLMProvider
	}
	if model == "" {
		model = cfg.LLMModel
	}
	return provider, model
}
