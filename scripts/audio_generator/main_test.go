package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"polybot/internal/curriculum"
	"polybot/internal/speech"
)

func TestCollectJobs(t *testing.T) {
	c, err := curriculum.Embedded()
	require.NoError(t, err)

	jobs := collectJobs(c, "media")
	require.NotEmpty(t, jobs)

	paths := map[string]string{}
	for _, j := range jobs {
		paths[j.Path] = j.Text
	}
	assert.Equal(t, "Ciao!", paths[filepath.Join("media", "A1.1", "1_1.mp3")])
	assert.Equal(t, "Buongiorno! Cosa le preparo?", paths[filepath.Join("media", "scenarios", "cafe_order.mp3")])
	assert.NotContains(t, paths, filepath.Join("media", "scenarios", "hotel_checkin.mp3"))
}

func TestGenerate_WritesAndSkipsExisting(t *testing.T) {
	dir := t.TempDir()
	jobs := []job{
		{Text: "Ciao!", Path: filepath.Join(dir, "A1.1", "1_1.mp3")},
		{Text: "Buongiorno!", Path: filepath.Join(dir, "scenarios", "cafe_order.mp3")},
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(jobs[1].Path), 0o755))
	require.NoError(t, os.WriteFile(jobs[1].Path, []byte("old"), 0o644))

	todo := pending(jobs)
	require.Len(t, todo, 1)

	tts := &speech.MockSynthesizer{Audio: []byte("ID3")}
	n, err := generate(context.Background(), tts, rate.NewLimiter(rate.Inf, 1), todo, "it", zap.NewNop())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	data, err := os.ReadFile(jobs[0].Path)
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3"), data)
	old, _ := os.ReadFile(jobs[1].Path)
	assert.Equal(t, []byte("old"), old)
}

func TestGenerate_SkipsFailedLines(t *testing.T) {
	dir := t.TempDir()
	tts := &speech.MockSynthesizer{Err: assert.AnError}
	n, err := generate(context.Background(), tts, rate.NewLimiter(rate.Inf, 1),
		[]job{{Text: "Ciao!", Path: filepath.Join(dir, "x.mp3")}}, "it", zap.NewNop())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoFileExists(t, filepath.Join(dir, "x.mp3"))
}
