package speech

import (
	"context"
	"fmt"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	texttospeechpb "google.golang.org/genproto/googleapis/cloud/texttospeech/v1"
)

// voices picks a standard (free-tier) voice per language.
var voices = map[string]string{
	"it-IT": "it-IT-Standard-A",
	"en-US": "en-US-Standard-F",
}

// Google synthesizes MP3 through Cloud Text-to-Speech. Credentials come
// from GOOGLE_APPLICATION_CREDENTIALS.
type Google struct {
	client *texttospeech.Client
}

func NewGoogle(ctx context.Context) (*Google, error) {
	client, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create TTS client: %w", err)
	}
	return &Google{client: client}, nil
}

func (g *Google) Synthesize(ctx context.Context, text, lang string) ([]byte, error) {
	resp, err := g.client.SynthesizeSpeech(ctx, SynthesisRequest(text, lang))
	if err != nil {
		return nil, fmt.Errorf("SynthesizeSpeech: %w", err)
	}
	return resp.AudioContent, nil
}

func (g *Google) ContentType() string { return "audio/mpeg" }

func (g *Google) Close() error { return g.client.Close() }

// SynthesisRequest builds an MP3 request with a female standard voice.
func SynthesisRequest(text, lang string) *texttospeechpb.SynthesizeSpeechRequest {
	code := LanguageCode(lang)
	return &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: code,
			SsmlGender:   texttospeechpb.SsmlVoiceGender_FEMALE,
			Name:         voices[code],
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: texttospeechpb.AudioEncoding_MP3,
		},
	}
}
