// linwhisper is a local-first dictation tool: it records from the
// microphone, transcribes with a local whisper.cpp model or a cloud
// STT provider, optionally rewrites the transcript through an LLM
// according to the active mode, and keeps every cycle in history.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/DustinWehr/LinWhisper/audio"
	"github.com/DustinWehr/LinWhisper/doctor"
	"github.com/DustinWehr/LinWhisper/history"
	"github.com/DustinWehr/LinWhisper/llm"
	"github.com/DustinWehr/LinWhisper/log"
	"github.com/DustinWehr/LinWhisper/modes"
	"github.com/DustinWehr/LinWhisper/recorder"
	"github.com/DustinWehr/LinWhisper/settings"
	"github.com/DustinWehr/LinWhisper/stt"
	"github.com/DustinWehr/LinWhisper/vault"
)

var version = "dev"

func main() {
	devicesFlag := flag.Bool("devices", false, "List input devices and exit")
	deviceFlag := flag.String("device", "", "Set the input device for future recordings")
	fileFlag := flag.String("file", "", "Transcribe a WAV file instead of recording")
	modesFlag := flag.Bool("modes", false, "List modes and exit")
	modeFlag := flag.String("mode", "", "Set the active mode before running")
	historyFlag := flag.Bool("history", false, "List history items and exit")
	searchFlag := flag.String("search", "", "Filter history listing by text")
	limitFlag := flag.Int("limit", history.DefaultListLimit, "Max history items to list")
	exportFlag := flag.String("export", "", "Export a history item by id")
	formatFlag := flag.String("format", "txt", "Export format: txt, md, srt, vtt")
	deleteFlag := flag.String("delete", "", "Delete a history item by id")
	reprocessFlag := flag.String("reprocess", "", "Reprocess a history item by id with -mode")
	fromAudioFlag := flag.Bool("from-audio", false, "Re-run transcription from retained audio when reprocessing")
	setKeyFlag := flag.String("set-key", "", "Store an API key for a provider (key read from stdin)")
	deleteKeyFlag := flag.String("delete-key", "", "Delete the stored API key for a provider")
	checkKeyFlag := flag.String("check-key", "", "Report whether a key is stored for a provider")
	downloadFlag := flag.String("download-model", "", "Download a whisper model by name (e.g. base.en) and exit")
	settingsFlag := flag.Bool("settings", false, "Print effective settings and exit")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	langFlag := flag.String("lang", "", "Override the language code for this run")
	dataFlag := flag.String("data", "", "Data directory (default: OS config location)")
	verboseFlag := flag.Bool("verbose", false, "Enable debug logging")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Println("linwhisper " + version)
		return
	}
	if *verboseFlag {
		log.SetLevel("debug")
	}

	dataDir := *dataFlag
	if dataDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			fatal("resolve config dir: %v", err)
		}
		dataDir = filepath.Join(base, "linwhisper")
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		fatal("create data dir: %v", err)
	}
	if err := log.AttachFile(dataDir); err != nil {
		log.Warnf("file logging disabled: %v", err)
	}
	defer log.Close()

	keys := vault.NewKeyring()

	if *setKeyFlag != "" {
		fmt.Printf("Paste API key for %s: ", *setKeyFlag)
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			fatal("read key: %v", err)
		}
		if err := keys.Save(*setKeyFlag, strings.TrimSpace(line)); err != nil {
			fatal("store key: %v", err)
		}
		fmt.Println("stored")
		return
	}
	if *deleteKeyFlag != "" {
		if err := keys.Delete(*deleteKeyFlag); err != nil {
			fatal("delete key: %v", err)
		}
		fmt.Println("deleted")
		return
	}
	if *checkKeyFlag != "" {
		if keys.Has(*checkKeyFlag) {
			fmt.Println("stored")
		} else {
			fmt.Println("not set")
		}
		return
	}

	modelsDir := filepath.Join(dataDir, "models")
	if *downloadFlag != "" {
		path, err := stt.EnsureModel(context.Background(), modelsDir, *downloadFlag)
		if err != nil {
			fatal("download model: %v", err)
		}
		fmt.Println(path)
		return
	}
	if *doctorFlag {
		os.Exit(doctor.Run(doctor.Config{
			ModelsDir:  modelsDir,
			OllamaHost: os.Getenv("OLLAMA_HOST"),
			Vault:      keys,
		}))
	}

	store, err := settings.NewStore(filepath.Join(dataDir, "settings.json"))
	if err != nil {
		fatal("load settings: %v", err)
	}
	registry, err := modes.NewRegistry(filepath.Join(dataDir, "modes"))
	if err != nil {
		fatal("load modes: %v", err)
	}
	hist, err := history.Open(filepath.Join(dataDir, "history.db"))
	if err != nil {
		fatal("open history: %v", err)
	}
	defer hist.Close()

	if *modesFlag {
		active := registry.GetActive(store.Get().ActiveModeKey)
		for _, m := range registry.List() {
			marker := " "
			if m.Key == active.Key {
				marker = "*"
			}
			kind := "custom"
			if m.Builtin {
				kind = "builtin"
			}
			fmt.Printf("%s %-16s %-8s %s\n", marker, m.Key, kind, m.Name)
		}
		return
	}
	if *historyFlag {
		items, err := hist.List(*searchFlag, *limitFlag)
		if err != nil {
			fatal("list history: %v", err)
		}
		for _, it := range items {
			line := it.OutputFinal
			if it.Error != "" {
				line = "ERROR: " + it.Error
			}
			if len(line) > 60 {
				line = line[:60] + "..."
			}
			fmt.Printf("%s  %s  %-16s %s\n", it.ID, it.CreatedAt.Local().Format("2006-01-02 15:04"), it.ModeKey, line)
		}
		return
	}
	if *exportFlag != "" {
		item, err := hist.Get(*exportFlag)
		if err != nil {
			fatal("export: %v", err)
		}
		out, err := history.Export(item, *formatFlag)
		if err != nil {
			fatal("export: %v", err)
		}
		fmt.Print(out)
		return
	}
	if *deleteFlag != "" {
		if err := hist.Delete(*deleteFlag); err != nil {
			fatal("delete: %v", err)
		}
		fmt.Println("deleted")
		return
	}

	if *langFlag != "" {
		cfg := store.Get()
		cfg.Language = *langFlag
		if err := store.Update(cfg); err != nil {
			fatal("update settings: %v", err)
		}
	}

	actx, aerr := audio.NewContext()
	if aerr != nil {
		log.Warnf("audio unavailable: %v", aerr)
		actx = noAudio{}
	} else {
		defer actx.Close()
	}

	sttEngine := stt.NewEngine(keys, modelsDir)
	defer sttEngine.Close()
	llmEngine := llm.NewEngine(keys)

	orch, err := recorder.New(recorder.Config{
		Audio:    actx,
		STT:      sttEngine,
		LLM:      llmEngine,
		Modes:    registry,
		Settings: store,
		History:  hist,
		AudioDir: filepath.Join(dataDir, "recordings"),
	})
	if err != nil {
		fatal("init recorder: %v", err)
	}
	defer orch.Close()

	if *devicesFlag {
		for _, d := range orch.Devices() {
			marker := " "
			if d.IsDefault {
				marker = "*"
			}
			fmt.Printf("%s %s\n", marker, d.Name)
		}
		return
	}
	if *deviceFlag != "" {
		if err := orch.SetInputDevice(*deviceFlag); err != nil {
			fatal("set device: %v", err)
		}
		fmt.Println("input device set to " + *deviceFlag)
		return
	}
	if *modeFlag != "" {
		if err := orch.SetActiveMode(*modeFlag); err != nil {
			fatal("set mode: %v", err)
		}
	}
	if *settingsFlag {
		cfg := store.Get()
		fmt.Printf("stt:       %s/%s\n", cfg.STTProvider, cfg.STTModel)
		fmt.Printf("llm:       %s/%s\n", cfg.LLMProvider, cfg.LLMModel)
		fmt.Printf("mode:      %s\n", registry.GetActive(cfg.ActiveModeKey).Key)
		fmt.Printf("device:    %s\n", cfg.InputDevice)
		fmt.Printf("language:  %s\n", cfg.Language)
		fmt.Printf("autopaste: %v\n", cfg.AutoPaste)
		fmt.Printf("context:   %v\n", cfg.ContextAwareness)
		return
	}

	if *reprocessFlag != "" {
		modeKey := *modeFlag
		if modeKey == "" {
			modeKey = registry.GetActive(store.Get().ActiveModeKey).Key
		}
		item, err := orch.Reprocess(*reprocessFlag, modeKey, *fromAudioFlag)
		if err != nil {
			fatal("reprocess: %v", err)
		}
		fmt.Println(item.OutputFinal)
		return
	}
	if *fileFlag != "" {
		item, err := orch.TranscribeFile(*fileFlag)
		if err != nil {
			fatal("transcribe file: %v", err)
		}
		fmt.Println(item.OutputFinal)
		return
	}

	record(orch)
}

// record runs one interactive recording cycle: start, wait for Enter,
// stop, print the result.
func record(orch *recorder.Orchestrator) {
	events, cancel := orch.Events().Subscribe()
	defer cancel()
	go printEvents(events)

	if err := orch.Start(); err != nil {
		fatal("start recording: %v", err)
	}
	fmt.Println("Recording... press Enter to stop")
	bufio.NewReader(os.Stdin).ReadString('\n')

	item, err := orch.Stop()
	if err != nil {
		fatal("recording failed: %v", err)
	}
	fmt.Println()
	fmt.Println(item.OutputFinal)
	log.Infof("cycle %s done in %s", item.ID, time.Duration(item.DurationMS)*time.Millisecond)
}

func printEvents(events <-chan recorder.Event) {
	for ev := range events {
		switch ev.Kind {
		case recorder.EventStatus:
			if ev.Err != "" {
				log.Errorf("status %s: %s", ev.Status, ev.Err)
			} else {
				log.Debugf("status %s", ev.Status)
			}
		case recorder.EventProcessing:
			if ev.Active {
				fmt.Println("Rewriting with AI...")
			}
		case recorder.EventLevel:
			// too chatty for a CLI; shown by GUIs only
		}
	}
}

// noAudio stands in when the audio backend cannot initialize so the
// non-recording commands still work.
type noAudio struct{}

func (noAudio) Devices() []audio.Device { return nil }
func (noAudio) NewCapture(string) (audio.CaptureDevice, error) {
	return nil, fmt.Errorf("audio backend unavailable")
}
func (noAudio) Close() {}

func fatal(format string, args ...any) {
	log.Errorf(format, args...)
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
