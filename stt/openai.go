package stt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/DustinWehr/LinWhisper/audio"
)

// OpenAI transcribes through the OpenAI audio transcription endpoint.
type OpenAI struct {
	client *openai.Client
}

func NewOpenAI(apiKey string) *OpenAI {
	return &OpenAI{client: openai.NewClient(apiKey)}
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Transcribe(ctx context.Context, samples []float32, model, language string) (string, error) {
	if model == "" {
		model = openai.Whisper1
	}

	req := openai.AudioRequest{
		Model:    model,
		Reader:   bytes.NewReader(audio.EncodeWAV(samples)),
		FilePath: "audio.wav",
		Language: language,
		Format:   openai.AudioResponseFormatJSON,
	}

	resp, err := o.client.CreateTranscription(ctx, req)
	if err != nil {
		return "", classifyOpenAIError(err)
	}
	return resp.Text, nil
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
		default:
			return fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
		}
	}
	// No structured API error means we never got a response.
	return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
}
