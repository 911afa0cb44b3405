package media

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog/log"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	"intelliquery/internal/config"
)

// AudioOutputPath derives the wav path an extraction will write for a video.
func AudioOutputPath(videoPath string) string {
	if idx := strings.LastIndex(videoPath, "."); idx > strings.LastIndex(videoPath, "/") {
		return videoPath[:idx] + ".wav"
	}
	return videoPath + ".wav"
}

// ExtractAudio pulls the audio track out of a video file as 16 kHz pcm_s16le
// wav, the format the transcription model expects.
func ExtractAudio(videoPath string) (string, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return "", fmt.Errorf("video file does not exist: %s", videoPath)
	}

	audioOutput := AudioOutputPath(videoPath)
	stream := ffmpeg.Input(videoPath).
		Output(audioOutput, ffmpeg.KwArgs{
			"format": "wav",
			"acodec": "pcm_s16le",
			"ar":     "16000",
		})
	err := stream.OverwriteOutput(stream).Run()
	if err != nil {
		return "", fmt.Errorf("extracting audio: %w", err)
	}
	if _, err := os.Stat(audioOutput); err != nil {
		return "", fmt.Errorf("audio extraction produced no output: %s", audioOutput)
	}

	log.Info().Str("audio", audioOutput).Msg("Audio extracted")
	return audioOutput, nil
}

// Transcriber turns audio files into text through an OpenAI-compatible
// transcription endpoint.
type Transcriber struct {
	client openai.Client
	model  string
}

func NewTranscriber(cfg *config.TranscriptionConfig) *Transcriber {
	opts := []option.RequestOption{option.WithAPIKey(cfg.Key)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Transcriber{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
	}
}

// Transcribe runs speech-to-text over the audio file at path.
func (t *Transcriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("invalid audio path %s: %w", audioPath, err)
	}
	defer f.Close()

	resp, err := t.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		Model: openai.AudioModel(t.model),
		File:  f,
	})
	if err != nil {
		return "", fmt.Errorf("transcribing audio: %w", err)
	}

	preview := resp.Text
	if len(preview) > 100 {
		preview = preview[:100]
	}
	log.Debug().Str("preview", preview).Msg("Transcription complete")
	return resp.Text, nil
}
