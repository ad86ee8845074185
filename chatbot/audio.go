package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// allowedAudioTypes are the MIME prefixes C4 accepts for voice-note
// transcription (spec §4.4 step 3). Mirrors audio_handler.py's
// ALLOWED_AUDIO_TYPES.
var allowedAudioTypes = []string{
	"audio/ogg", "audio/mpeg", "audio/mp4", "audio/wav", "audio/webm", "audio/amr",
}

var (
	ErrUnsupportedMediaType = errors.New("audio: unsupported media type")
	ErrAudioTooLarge        = errors.New("audio: exceeds size limit")
	ErrAudioDownloadFailed  = errors.New("audio: download failed")
)

// audioDownloader validates and downloads a voice note before handing
// it to the external transcription collaborator. Grounded on
// audio_handler.py's AudioHandler: HEAD-check then streamed GET with a
// running byte counter that aborts mid-download on overflow.
type audioDownloader struct {
	client      *http.Client
	storagePath string
	maxBytes    int64
}

func newAudioDownloader(storagePath string, maxMB int64) *audioDownloader {
	return &audioDownloader{
		client:      &http.Client{Timeout: 60 * time.Second},
		storagePath: storagePath,
		maxBytes:    maxMB * 1024 * 1024,
	}
}

func isAllowedAudioType(contentType string) bool {
	for _, t := range allowedAudioTypes {
		if strings.HasPrefix(contentType, t) {
			return true
		}
	}
	return false
}

// validateMedia HEAD-checks the media URL's declared Content-Length
// against the size limit before any bytes are downloaded (spec §4.4
// step 3, first half).
func (a *audioDownloader) validateMedia(ctx context.Context, mediaURL, contentType string) error {
	if contentType == "" || !isAllowedAudioType(contentType) {
		return fmt.Errorf("%w: %s", ErrUnsupportedMediaType, contentType)
	}

	headCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(headCtx, http.MethodHead, mediaURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAudioDownloadFailed, err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAudioDownloadFailed, err)
	}
	defer resp.Body.Close()

	if length, err := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64); err == nil {
		if length > a.maxBytes {
			return fmt.Errorf("%w: %d bytes", ErrAudioTooLarge, length)
		}
	}

	return nil
}

// download validates then streams the media to a temp file, aborting
// mid-stream if the running byte count exceeds the limit (spec §4.4
// step 3, second half). The caller is responsible for removing the
// returned path once transcription is done.
func (a *audioDownloader) download(ctx context.Context, mediaURL, contentType string) (string, error) {
	if err := a.validateMedia(ctx, mediaURL, contentType); err != nil {
		return "", err
	}

	if err := os.MkdirAll(a.storagePath, 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", ErrAudioDownloadFailed, err)
	}

	ext := audioExtension(contentType)
	path := filepath.Join(a.storagePath, uuid.NewString()+"."+ext)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAudioDownloadFailed, err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAudioDownloadFailed, err)
	}
	defer resp.Body.Close()

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAudioDownloadFailed, err)
	}

	var downloaded int64
	buf := make([]byte, 8192)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			downloaded += int64(n)
			if downloaded > a.maxBytes {
				f.Close()
				os.Remove(path)
				return "", fmt.Errorf("%w: exceeded during download", ErrAudioTooLarge)
			}
			if _, werr := f.Write(buf[:n]); werr != nil {
				f.Close()
				os.Remove(path)
				return "", fmt.Errorf("%w: %v", ErrAudioDownloadFailed, werr)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			f.Close()
			os.Remove(path)
			return "", fmt.Errorf("%w: %v", ErrAudioDownloadFailed, readErr)
		}
	}
	f.Close()

	return path, nil
}

func audioExtension(contentType string) string {
	ext := contentType
	if i := strings.Index(ext, "/"); i >= 0 {
		ext = ext[i+1:]
	}
	if i := strings.Index(ext, ";"); i >= 0 {
		ext = ext[:i]
	}
	if strings.Contains(ext, "opus") || strings.Contains(ext, "ogg") {
		ext = "ogg"
	}
	return ext
}

func cleanupAudioFile(path string) {
	if path != "" {
		os.Remove(path)
	}
}

// transcriptionPool bounds concurrent calls into the external STT
// collaborator to two workers (spec §5 "≈2 workers"; mirrors
// audio_handler.py's ThreadPoolExecutor(max_workers=2)).
type transcriptionPool struct {
	sem chan struct{}
	stt Transcriber
}

func newTranscriptionPool(stt Transcriber) *transcriptionPool {
	return &transcriptionPool{sem: make(chan struct{}, 2), stt: stt}
}

func (p *transcriptionPool) transcribe(ctx context.Context, path string) (string, error) {
	p.sem <- struct{}{}
	defer func() { <-p.sem }()
	defer cleanupAudioFile(path)

	return p.stt.Transcribe(ctx, path)
}
