// Package history is the durable log of transcription cycles. Items are
// append-only: reprocessing creates a new item instead of editing an old
// one, so the audit trail of every attempt survives.
package history

import (
	"time"

	"github.com/google/uuid"
)

// Item records one completed (or failed) transcription cycle.
// Once created it is never mutated in place.
type Item struct {
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	ModeKey       string    `json:"mode_key"`
	AudioPath     string    `json:"audio_path,omitempty"`
	TranscriptRaw string    `json:"transcript_raw"`
	OutputFinal   string    `json:"output_final"`
	STTProvider   string    `json:"stt_provider"`
	STTModel      string    `json:"stt_model"`
	LLMProvider   string    `json:"llm_provider,omitempty"`
	LLMModel      string    `json:"llm_model,omitempty"`
	DurationMS    int64     `json:"duration_ms"`
	Error         string    `json:"error,omitempty"`
}

// NewID generates a fresh item id. IDs are opaque and never reused.
func NewID() string {
	return uuid.NewString()
}
