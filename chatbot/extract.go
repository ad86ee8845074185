package main

import (
	"context"
	"errors"
)

// ErrExtractionFailed is returned when the external extraction
// collaborator cannot process the given text (spec §4.4 step 4;
// "ai_error" reply path).
var ErrExtractionFailed = errors.New("extract: collaborator failed")

// noopExtractor is the extraction collaborator's actual inference
// engine (an LLM call, per original_source's gemini_analyzer.py) is an
// explicit Non-goal. This stub normalizes nothing and extracts
// nothing — it exists so the dialogue pipeline has a concrete
// Extractor to run against until a real collaborator is wired in.
type noopExtractor struct{}

func (noopExtractor) Extract(_ context.Context, text string) (ExtractedData, error) {
	if text == "" {
		return ExtractedData{}, ErrExtractionFailed
	}
	return ExtractedData{}, nil
}

// noopTranscriber is the STT collaborator's real inference engine
// (Whisper, per audio_handler.py) is likewise out of scope; this stub
// always reports the audio as unintelligible so the pipeline's
// "audio_not_understood" path is exercised end to end.
type noopTranscriber struct{}

func (noopTranscriber) Transcribe(_ context.Context, _ string) (string, error) {
	return "", nil
}

// noopChatSender is the outbound chat-send effect's real wire protocol
// (Twilio, per twilio_client.py) is out of scope per spec.md's Non-goals
// ("the outbound chat provider's wire format beyond a send(to, body)
// bool effect"); this stub logs nothing and always reports success.
type noopChatSender struct{}

func (noopChatSender) Send(_ context.Context, _, _ string) bool {
	return true
}
