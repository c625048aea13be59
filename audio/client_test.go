package audio

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyforge/types"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestRoundRobinRotates(t *testing.T) {
	p := NewRoundRobin([]string{"a", "b", "c"})
	got := []string{p.Next(), p.Next(), p.Next(), p.Next()}
	assert.Equal(t, []string{"a", "b", "c", "a"}, got)
}

func TestRoundRobinEmpty(t *testing.T) {
	p := NewRoundRobin(nil)
	assert.Equal(t, "", p.Next())
	assert.Equal(t, "", p.Next())
}

func TestClientWithoutEndpointsFailsGracefully(t *testing.T) {
	c := NewClient(nil, "en", testLogger())

	err := c.Refresh(context.Background())
	var upErr *types.UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, types.ServiceSpeech, upErr.Service)
}

func newBackend(t *testing.T, wav []byte, lastTTS *ttsRequest) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/studio_speakers", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]SpeakerParams{
			"Daisy Studious": {Embedding: []float64{0.1, 0.2}, CondLatent: [][]float64{{0.3}}},
		})
	})
	mux.HandleFunc("/tts", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(lastTTS))
		w.Write([]byte(`"` + base64.StdEncoding.EncodeToString(wav) + `"`))
	})
	return httptest.NewServer(mux)
}

func TestRefreshAndSynthesize(t *testing.T) {
	wav := []byte("RIFF....WAVE")
	var lastTTS ttsRequest
	srv := newBackend(t, wav, &lastTTS)
	defer srv.Close()

	c := NewClient([]string{srv.URL}, "en", testLogger())
	require.NoError(t, c.Refresh(context.Background()))
	assert.Equal(t, 1, c.VoiceCount())

	dir := t.TempDir()
	path, err := c.Synthesize(context.Background(), Request{
		Text:    "¡Hola! ¿Ready to ride?",
		Voice:   "Daisy Studious",
		Emotion: "Happy",
		Index:   2,
		Dir:     dir,
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "audio-2.wav"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, wav, data)

	assert.Equal(t, "Hola! Ready to ride?", lastTTS.Text, "inverted punctuation is stripped")
	assert.Equal(t, "en", lastTTS.Language)
	assert.Equal(t, "Happy", lastTTS.Emotion)
	assert.Equal(t, []float64{0.1, 0.2}, lastTTS.SpeakerEmbedding)
}

func TestSynthesizeUnknownVoice(t *testing.T) {
	c := NewClient([]string{"http://unused"}, "en", testLogger())

	_, err := c.Synthesize(context.Background(), Request{Voice: "Nobody", Index: 0, Dir: t.TempDir()})
	var upErr *types.UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, types.ServiceSpeech, upErr.Service)
	assert.Equal(t, 0, upErr.Frame)
	assert.Contains(t, err.Error(), "Refresh")
}

func TestRefreshBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient([]string{srv.URL}, "en", testLogger())
	err := c.Refresh(context.Background())
	var upErr *types.UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, -1, upErr.Frame)
}

func TestSynthesizeSpreadsLoadAcrossEndpoints(t *testing.T) {
	hits := map[string]int{}
	make2 := func(name string) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits[name]++
			if r.URL.Path == "/studio_speakers" {
				json.NewEncoder(w).Encode(map[string]SpeakerParams{"Daisy Studious": {}})
				return
			}
			w.Write([]byte(base64.StdEncoding.EncodeToString([]byte("wav"))))
		}))
	}
	a, b := make2("a"), make2("b")
	defer a.Close()
	defer b.Close()

	c := NewClient([]string{a.URL, b.URL}, "en", testLogger())
	require.NoError(t, c.Refresh(context.Background()))

	dir := t.TempDir()
	for i := 0; i < 4; i++ {
		_, err := c.Synthesize(context.Background(), Request{Text: "hi", Voice: "Daisy Studious", Index: i, Dir: dir})
		require.NoError(t, err)
	}

	// Refresh took one endpoint, then four synth calls alternate.
	assert.Equal(t, 5, hits["a"]+hits["b"])
	assert.Equal(t, 2, hits["b"])
}
