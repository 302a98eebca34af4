// Package doctor runs environment diagnostics: audio input, local
// whisper models, the Ollama daemon, and stored API keys. It prints
// PASS/FAIL per check and reports an exit code.
package doctor

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/DustinWehr/LinWhisper/audio"
	"github.com/DustinWehr/LinWhisper/vault"
)

// Config points the checks at the running installation.
type Config struct {
	ModelsDir  string
	OllamaHost string
	Vault      vault.Vault
}

// Run executes all checks and returns an exit code (0=all pass, 1=any fail).
func Run(cfg Config) int {
	fmt.Println("linwhisper doctor - system diagnostics")
	fmt.Println("======================================")

	allPass := true
	if !checkAudio() {
		allPass = false
	}
	if !checkModels(cfg.ModelsDir) {
		allPass = false
	}
	if !checkOllama(cfg.OllamaHost) {
		allPass = false
	}
	checkKeys(cfg.Vault) // informational, never fails the run

	fmt.Println()
	if allPass {
		fmt.Println("All checks passed!")
		return 0
	}
	fmt.Println("Some checks failed. See details above.")
	return 1
}

func checkAudio() bool {
	fmt.Println()
	fmt.Println("[1/3] Audio input")

	ctx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("  FAIL: cannot connect to audio: %v\n", err)
		return false
	}
	defer ctx.Close()

	devices := ctx.Devices()
	if len(devices) == 0 {
		fmt.Println("  FAIL: no input devices found")
		return false
	}
	for _, d := range devices {
		marker := " "
		if d.IsDefault {
			marker = "*"
		}
		fmt.Printf("  %s %s\n", marker, d.Name)
	}
	fmt.Printf("  PASS: %d input device(s)\n", len(devices))
	return true
}

func checkModels(dir string) bool {
	fmt.Println()
	fmt.Println("[2/3] Whisper models")

	entries, err := os.ReadDir(dir)
	if err != nil {
		fmt.Printf("  FAIL: cannot read models dir %s: %v\n", dir, err)
		return false
	}
	var found int
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, "ggml-") && strings.HasSuffix(name, ".bin") {
			found++
			fmt.Printf("    %s\n", filepath.Join(dir, name))
		}
	}
	if found == 0 {
		fmt.Printf("  FAIL: no ggml-*.bin models in %s\n", dir)
		fmt.Println("        download one, e.g. ggml-base.en.bin from the whisper.cpp model repo")
		return false
	}
	fmt.Printf("  PASS: %d model(s)\n", found)
	return true
}

func checkOllama(host string) bool {
	fmt.Println()
	fmt.Println("[3/3] Ollama daemon")
	if host == "" {
		host = "http://localhost:11434"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, host+"/api/version", nil)
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("  FAIL: ollama not reachable at %s: %v\n", host, err)
		fmt.Println("        AI post-processing modes need a running ollama (or a cloud key)")
		return false
	}
	resp.Body.Close()
	fmt.Printf("  PASS: ollama answering at %s\n", host)
	return true
}

func checkKeys(v vault.Vault) {
	fmt.Println()
	fmt.Println("API keys")
	for _, provider := range []string{"openai", "groq", "anthropic"} {
		if v.Has(provider) {
			fmt.Printf("    %s: stored\n", provider)
		} else {
			fmt.Printf("    %s: not set\n", provider)
		}
	}
}
