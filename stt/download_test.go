package stt

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
)

func TestEnsureModelDownloads(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/ggml-tiny.bin" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte("model bytes"))
	}))
	defer srv.Close()

	orig := downloadBaseURL
	downloadBaseURL = srv.URL
	defer func() { downloadBaseURL = orig }()

	dir := filepath.Join(t.TempDir(), "models")
	path, err := EnsureModel(context.Background(), dir, "tiny")
	if err != nil {
		t.Fatalf("EnsureModel: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read model: %v", err)
	}
	if string(data) != "model bytes" {
		t.Errorf("model content = %q", data)
	}

	// already present: no second download
	if _, err := EnsureModel(context.Background(), dir, "tiny"); err != nil {
		t.Fatalf("EnsureModel (cached): %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("server hits = %d, want 1", hits.Load())
	}
}

func TestEnsureModelMissingUpstream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	orig := downloadBaseURL
	downloadBaseURL = srv.URL
	defer func() { downloadBaseURL = orig }()

	dir := t.TempDir()
	_, err := EnsureModel(context.Background(), dir, "no-such-model")
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("err = %v, want ErrProviderUnavailable", err)
	}
	if _, statErr := os.Stat(ModelPath(dir, "no-such-model")); statErr == nil {
		t.Error("failed download left a model file behind")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("leftover files after failed download: %v", entries)
	}
}
