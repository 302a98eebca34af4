package stt

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/DustinWehr/LinWhisper/log"
)

// downloadBaseURL hosts the ggml model files, one per model id.
var downloadBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main"

// EnsureModel makes sure the model file for the given id exists under
// modelsDir, downloading it when missing. Returns the model path. The
// download writes to a temp file first so an interrupted transfer never
// leaves a half-written model behind.
func EnsureModel(ctx context.Context, modelsDir, model string) (string, error) {
	path := ModelPath(modelsDir, model)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if err := os.MkdirAll(modelsDir, 0o755); err != nil {
		return "", fmt.Errorf("create models dir: %w", err)
	}

	url := fmt.Sprintf("%s/ggml-%s.bin", downloadBaseURL, model)
	log.Infof("downloading whisper model %s from %s", model, url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build model download request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: download model %s: %v", ErrProviderUnavailable, model, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: model %s download returned %d", ErrProviderUnavailable, model, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(modelsDir, "ggml-*.partial")
	if err != nil {
		return "", fmt.Errorf("create temp model file: %w", err)
	}
	defer os.Remove(tmp.Name())

	start := time.Now()
	n, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("%w: write model %s: %v", ErrProviderUnavailable, model, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("install model %s: %w", model, err)
	}

	log.Infof("model %s downloaded: %d MB in %s", model, n>>20, time.Since(start).Round(time.Second))
	return path, nil
}
