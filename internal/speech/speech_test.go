package speech

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	texttospeechpb "google.golang.org/genproto/googleapis/cloud/texttospeech/v1"
)

func TestLanguageCode(t *testing.T) {
	assert.Equal(t, "it-IT", LanguageCode("it"))
	assert.Equal(t, "it-IT", LanguageCode("Italian"))
	assert.Equal(t, "it-IT", LanguageCode(""))
	assert.Equal(t, "en-US", LanguageCode("en"))
	assert.Equal(t, "pt-BR", LanguageCode("pt-BR"))
}

func TestSynthesisRequest(t *testing.T) {
	req := SynthesisRequest("Buongiorno!", "it")
	assert.Equal(t, "Buongiorno!", req.GetInput().GetText())
	assert.Equal(t, "it-IT", req.GetVoice().GetLanguageCode())
	assert.Equal(t, "it-IT-Standard-A", req.GetVoice().GetName())
	assert.Equal(t, texttospeechpb.AudioEncoding_MP3, req.GetAudioConfig().GetAudioEncoding())
}

func newWhisper(t *testing.T, body string, check func(r *http.Request)) *Whisper {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return NewWhisper("test-key", srv.URL+"/v1", "")
}

func TestWhisper_Transcribe(t *testing.T) {
	w := newWhisper(t,
		`{"task":"transcribe","language":"italian","text":" Un caffè, per favore. ","segments":[{"avg_logprob":-0.1},{"avg_logprob":-0.3}]}`,
		func(r *http.Request) {
			assert.True(t, strings.HasSuffix(r.URL.Path, "/audio/transcriptions"))
			require.NoError(t, r.ParseMultipartForm(1<<20))
			assert.Equal(t, "whisper-1", r.FormValue("model"))
			assert.Equal(t, "it", r.FormValue("language"))
			assert.Equal(t, "verbose_json", r.FormValue("response_format"))
			_, hdr, err := r.FormFile("file")
			require.NoError(t, err)
			assert.Equal(t, "clip.webm", hdr.Filename)
		})

	tr, err := w.Transcribe(context.Background(), strings.NewReader("RIFF"), "clip.webm", "it")
	require.NoError(t, err)
	assert.Equal(t, "Un caffè, per favore.", tr.Text)
	assert.InDelta(t, 0.8187, tr.Confidence, 1e-3)
}

func TestWhisper_EmptyTranscript(t *testing.T) {
	w := newWhisper(t, `{"text":"   ","segments":[]}`, nil)
	_, err := w.Transcribe(context.Background(), strings.NewReader("x"), "", "it")
	assert.ErrorIs(t, err, ErrEmptyTranscript)
}

func TestOpenAISpeech_ReturnsAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/audio/speech"))
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("ID3fake"))
	}))
	t.Cleanup(srv.Close)

	audio, err := NewOpenAISpeech("k", srv.URL+"/v1").Synthesize(context.Background(), "Ciao", "it")
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3fake"), audio)
}

func TestLazy_ReleasesAfterUse(t *testing.T) {
	opened := 0
	mock := &MockTranscriber{Result: Transcript{Text: "ciao"}}
	l := NewLazy(func(context.Context) (Transcriber, error) {
		opened++
		return mock, nil
	}, true)

	assert.False(t, l.Loaded())
	for range 2 {
		tr, err := l.Transcribe(context.Background(), strings.NewReader("a"), "a.wav", "it")
		require.NoError(t, err)
		assert.Equal(t, "ciao", tr.Text)
		assert.False(t, l.Loaded())
	}
	assert.Equal(t, 2, opened)
	assert.Equal(t, 2, mock.Closed)
}

func TestLazy_ReleaseCloseErrorSurfaces(t *testing.T) {
	closeErr := errors.New("model busy")
	mock := &MockTranscriber{Result: Transcript{Text: "ciao"}, CloseErr: closeErr}
	l := NewLazy(func(context.Context) (Transcriber, error) { return mock, nil }, true)

	tr, err := l.Transcribe(context.Background(), strings.NewReader("a"), "a.wav", "it")
	assert.Nil(t, tr)
	assert.ErrorIs(t, err, closeErr)
	assert.False(t, l.Loaded())
	assert.Equal(t, 1, mock.Closed)

	mock.Err = ErrEmptyTranscript
	_, err = l.Transcribe(context.Background(), strings.NewReader("a"), "a.wav", "it")
	assert.ErrorIs(t, err, ErrEmptyTranscript)
	assert.ErrorIs(t, err, closeErr)
}

func TestLazy_KeepsLoaded(t *testing.T) {
	opened := 0
	l := NewLazy(func(context.Context) (Transcriber, error) {
		opened++
		return &MockTranscriber{Result: Transcript{Text: "ciao"}}, nil
	}, false)

	require.NoError(t, l.Load(context.Background()))
	_, err := l.Transcribe(context.Background(), strings.NewReader("a"), "", "it")
	require.NoError(t, err)
	assert.True(t, l.Loaded())
	assert.Equal(t, 1, opened)
	require.NoError(t, l.Close())
	assert.False(t, l.Loaded())
}

func TestLazy_OpenError(t *testing.T) {
	l := NewLazy(func(context.Context) (Transcriber, error) { return nil, errors.New("no model") }, false)
	_, err := l.Transcribe(context.Background(), strings.NewReader("a"), "", "it")
	assert.EqualError(t, err, "no model")
}

func TestFactories(t *testing.T) {
	_, err := NewTranscriber(Config{STTProvider: "openai"})
	assert.Error(t, err, "key required")

	l, err := NewTranscriber(Config{STTProvider: "mock"})
	require.NoError(t, err)
	tr, err := l.Transcribe(context.Background(), strings.NewReader("x"), "", "it")
	require.NoError(t, err)
	assert.NotEmpty(t, tr.Text)

	_, err = NewTranscriber(Config{STTProvider: "vosk"})
	assert.Error(t, err)

	s, err := NewSynthesizer(context.Background(), Config{TTSProvider: "mock"})
	require.NoError(t, err)
	assert.Equal(t, "audio/mpeg", s.ContentType())

	_, err = NewSynthesizer(context.Background(), Config{TTSProvider: "polly"})
	assert.Error(t, err)
}
