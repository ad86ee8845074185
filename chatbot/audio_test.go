package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsAllowedAudioType(t *testing.T) {
	assert.True(t, isAllowedAudioType("audio/ogg"))
	assert.True(t, isAllowedAudioType("audio/ogg; codecs=opus"))
	assert.True(t, isAllowedAudioType("audio/mpeg"))
	assert.False(t, isAllowedAudioType("video/mp4"))
	assert.False(t, isAllowedAudioType(""))
}

func TestAudioExtension(t *testing.T) {
	assert.Equal(t, "ogg", audioExtension("audio/ogg"))
	assert.Equal(t, "ogg", audioExtension("audio/ogg; codecs=opus"))
	assert.Equal(t, "mpeg", audioExtension("audio/mpeg"))
	assert.Equal(t, "wav", audioExtension("audio/wav"))
}

func TestDownloadRejectsUnsupportedMediaType(t *testing.T) {
	a := newAudioDownloader(t.TempDir(), 1)
	_, err := a.download(context.Background(), "http://example.invalid/clip", "video/mp4")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedMediaType)
}

func TestDownloadRejectsOversizeByContentLengthHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "9999999")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := newAudioDownloader(t.TempDir(), 1)
	_, err := a.download(context.Background(), srv.URL, "audio/ogg")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAudioTooLarge)
}

func TestDownloadAbortsMidStreamOnOverflow(t *testing.T) {
	chunk := strings.Repeat("a", 8192)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusOK)
		for i := 0; i < 200; i++ {
			fmt.Fprint(w, chunk)
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	a := newAudioDownloader(dir, 1) // 1MB cap, server sends ~1.6MB with no Content-Length

	_, err := a.download(context.Background(), srv.URL, "audio/ogg")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAudioTooLarge)

	entries, readErr := os.ReadDir(dir)
	require.NoError(t, readErr)
	assert.Empty(t, entries, "partial download must be cleaned up")
}

func TestDownloadSucceedsWithinLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "small audio payload")
	}))
	defer srv.Close()

	dir := t.TempDir()
	a := newAudioDownloader(dir, 1)

	path, err := a.download(context.Background(), srv.URL, "audio/ogg")
	require.NoError(t, err)
	defer os.Remove(path)

	data, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Equal(t, "small audio payload", string(data))
}

type fakeTranscriber struct {
	mu          sync.Mutex
	inFlight    int32
	maxInFlight int32
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, path string) (string, error) {
	n := atomic.AddInt32(&f.inFlight, 1)
	f.mu.Lock()
	if n > f.maxInFlight {
		f.maxInFlight = n
	}
	f.mu.Unlock()

	time.Sleep(20 * time.Millisecond)

	atomic.AddInt32(&f.inFlight, -1)
	return "transcribed", nil
}

func TestTranscriptionPoolBoundsConcurrency(t *testing.T) {
	fake := &fakeTranscriber{}
	pool := newTranscriptionPool(fake)

	dir := t.TempDir()
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		f, err := os.CreateTemp(dir, "clip-*.ogg")
		require.NoError(t, err)
		f.Close()

		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			_, _ = pool.transcribe(context.Background(), path)
		}(f.Name())
	}
	wg.Wait()

	assert.LessOrEqual(t, fake.maxInFlight, int32(2))
}
