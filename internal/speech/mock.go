package speech

import (
	"context"
	"io"
	"sync"
)

// MockTranscriber returns Result (or Err) and records what it was sent.
type MockTranscriber struct {
	Result   Transcript
	Err      error
	CloseErr error

	mu     sync.Mutex
	Calls  int
	Audio  []byte
	Closed int
}

func (m *MockTranscriber) Transcribe(_ context.Context, audio io.Reader, _, _ string) (*Transcript, error) {
	data, _ := io.ReadAll(audio)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	m.Audio = data
	if m.Err != nil {
		return nil, m.Err
	}
	r := m.Result
	if r.Text == "" {
		return nil, ErrEmptyTranscript
	}
	return &r, nil
}

func (m *MockTranscriber) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed++
	return m.CloseErr
}

// MockSynthesizer returns Audio (or Err) and records the last text.
type MockSynthesizer struct {
	Audio []byte
	Err   error

	mu   sync.Mutex
	Text string
}

func (m *MockSynthesizer) Synthesize(_ context.Context, text, _ string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Text = text
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Audio, nil
}

func (m *MockSynthesizer) ContentType() string { return "audio/mpeg" }

func (m *MockSynthesizer) Close() error { return nil }
