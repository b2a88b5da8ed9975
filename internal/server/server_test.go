package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/kitten-tts-server/internal/audio"
	"github.com/dgnsrekt/kitten-tts-server/internal/cache"
	"github.com/dgnsrekt/kitten-tts-server/internal/tts"
	"github.com/dgnsrekt/kitten-tts-server/internal/tts/engines"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	*Server
	engine  *engines.MockEngine
	models  *cache.ModelCache
	tempDir string
}

func newTestServer(t *testing.T, opts ...Option) *testServer {
	t.Helper()
	engine := engines.NewMockEngine(engines.MockConfig{WordsPerMinute: 600})
	models := cache.NewModelCache(engine)
	t.Cleanup(func() { _ = models.Close() })

	cfg := DefaultConfig()
	cfg.TempDir = t.TempDir()
	cfg.MaxTextLength = 100

	srv, err := New(cfg, models, opts...)
	require.NoError(t, err)
	return &testServer{Server: srv, engine: engine, models: models, tempDir: cfg.TempDir}
}

func (ts *testServer) get(t *testing.T, target string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	ts.Handler().ServeHTTP(rec, req)
	return rec
}

func ttsURL(params map[string]string) string {
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	return "/tts?" + q.Encode()
}

func decodeDetail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Detail
}

func assertTempDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temp files left behind")
}

func TestListModels(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.get(t, "/models", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"models":[
		"KittenML/kitten-tts-mini-0.8",
		"KittenML/kitten-tts-micro-0.8",
		"KittenML/kitten-tts-nano-0.8",
		"KittenML/kitten-tts-nano-0.8-int8"]}`, rec.Body.String())
}

func TestListVoices(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.get(t, "/voices", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"voices":["Bella","Jasper","Luna","Bruno","Rosie","Hugo","Kiki","Leo"]}`, rec.Body.String())
}

func TestSynthesize_OK(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.get(t, ttsURL(map[string]string{
		"text":  "Hello",
		"voice": "Bella",
		"model": "KittenML/kitten-tts-mini-0.8",
	}), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "audio/wav", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="output.wav"`, rec.Header().Get("Content-Disposition"))
	require.NotEmpty(t, rec.Body.Bytes())

	samples, format, err := audio.Decode(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 24000, format.SampleRate)
	assert.Equal(t, 1, format.Channels)
	assert.NotEmpty(t, samples)

	assertTempDirEmpty(t, ts.tempDir)
}

func TestSynthesize_Defaults(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.get(t, "/tts?text=Hello", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, ts.models.Contains("KittenML/kitten-tts-mini-0.8"))
	assert.Equal(t, 1, ts.models.Len())
}

func TestSynthesize_ModelLoadedOnce(t *testing.T) {
	ts := newTestServer(t)
	target := ttsURL(map[string]string{"text": "Hello", "model": "KittenML/kitten-tts-nano-0.8"})

	for i := 0; i < 2; i++ {
		rec := ts.get(t, target, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	assert.EqualValues(t, 1, ts.engine.Loads())
	assert.EqualValues(t, 2, ts.engine.Generates())
	assertTempDirEmpty(t, ts.tempDir)
}

func TestSynthesize_Validation(t *testing.T) {
	tests := []struct {
		name       string
		params     map[string]string
		wantDetail string
	}{
		{
			name:       "unknown voice",
			params:     map[string]string{"text": "Hello", "voice": "Nobody"},
			wantDetail: "Unknown voice: Nobody",
		},
		{
			name:       "unknown model",
			params:     map[string]string{"text": "Hello", "model": "KittenML/kitten-tts-huge"},
			wantDetail: "Unknown model: KittenML/kitten-tts-huge",
		},
		{
			name:       "empty voice",
			params:     map[string]string{"text": "Hello", "voice": ""},
			wantDetail: "Unknown voice: ",
		},
		{
			name:       "missing text",
			params:     map[string]string{"voice": "Bella"},
			wantDetail: "Missing 'text' parameter",
		},
		{
			name:       "text too long",
			params:     map[string]string{"text": strings.Repeat("a", 101)},
			wantDetail: "Text too long: 101 characters (max 100)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			rec := ts.get(t, ttsURL(tt.params), nil)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantDetail, decodeDetail(t, rec))
			assert.Zero(t, ts.engine.Loads(), "model loaded for invalid request")
			assert.Zero(t, ts.engine.Generates(), "synthesis ran for invalid request")
			assertTempDirEmpty(t, ts.tempDir)
		})
	}
}

func TestSynthesize_EngineFailures(t *testing.T) {
	t.Run("load failure", func(t *testing.T) {
		ts := newTestServer(t)
		ts.engine.SetLoadError(errors.New("weights missing"))

		rec := ts.get(t, "/tts?text=Hello", nil)
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "Internal Server Error", decodeDetail(t, rec))
		assert.Zero(t, ts.models.Len())
	})

	t.Run("generate failure", func(t *testing.T) {
		ts := newTestServer(t)
		ts.engine.SetGenerateError(errors.New("inference crashed"))

		rec := ts.get(t, "/tts?text=Hello", nil)
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "Internal Server Error", decodeDetail(t, rec))
		assertTempDirEmpty(t, ts.tempDir)
	})
}

func TestSynthesize_LogsEngineDiagnostics(t *testing.T) {
	var buf bytes.Buffer
	ts := newTestServer(t, WithLogger(log.New(&buf)))
	ts.engine.SetGenerateError(
		tts.NewTTSError(tts.ErrorCodeEngineFailure, "kitten runtime failed", errors.New("exit status 1")).
			WithContext("stderr", "ModuleNotFoundError: onnxruntime"),
	)

	rec := ts.get(t, "/tts?text=Hello", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal Server Error", decodeDetail(t, rec))
	assert.NotContains(t, rec.Body.String(), "onnxruntime")

	logged := buf.String()
	assert.Contains(t, logged, "Synthesis failed")
	assert.Contains(t, logged, "ModuleNotFoundError: onnxruntime")
	assert.Contains(t, logged, "ENGINE_FAILURE")
}

func TestSynthesize_LogsUnavailableEngineAsError(t *testing.T) {
	var buf bytes.Buffer
	ts := newTestServer(t, WithLogger(log.New(&buf)))
	ts.engine.SetLoadError(
		tts.NewTTSError(tts.ErrorCodeEngineUnavailable, "kitten runtime not found", errors.New("executable file not found")).
			WithContext("binary", "kittentts"),
	)

	rec := ts.get(t, "/tts?text=Hello", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var line string
	for _, l := range strings.Split(buf.String(), "\n") {
		if strings.Contains(l, "Engine unavailable") {
			line = l
		}
	}
	require.NotEmpty(t, line, "no engine line in %q", buf.String())
	assert.Contains(t, line, "ERRO")
	assert.Contains(t, line, "kittentts")
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t)

	t.Run("preflight from allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/tts", nil)
		req.Header.Set("Origin", "http://localhost:5072")
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		req.Header.Set("Access-Control-Request-Headers", "X-Custom")
		rec := httptest.NewRecorder()
		ts.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "http://localhost:5072", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodGet)
		assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Headers"))
	})

	t.Run("simple request from allowed origin", func(t *testing.T) {
		rec := ts.get(t, "/voices", http.Header{"Origin": {"http://localhost:5072"}})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "http://localhost:5072", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("other origin is served without CORS headers", func(t *testing.T) {
		for _, path := range []string{"/models", "/voices"} {
			rec := ts.get(t, path, http.Header{"Origin": {"http://other.example"}})
			assert.Equal(t, http.StatusOK, rec.Code, path)
			assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"), path)
			assert.NotEmpty(t, rec.Body.String(), path)
		}
	})

	t.Run("preflight from other origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/tts", nil)
		req.Header.Set("Origin", "http://other.example")
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		rec := httptest.NewRecorder()
		ts.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestNew_RequiresCache(t *testing.T) {
	_, err := New(DefaultConfig(), nil)
	assert.Error(t, err)
}

func TestServe_Shutdown(t *testing.T) {
	ts := newTestServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ts.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/models")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "kitten-tts-mini-0.8")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("KITTEN_TTS_LISTEN", "127.0.0.1:9000")
	t.Setenv("KITTEN_TTS_CORS_ORIGINS", "http://a.example,http://b.example")
	t.Setenv("KITTEN_TTS_MAX_TEXT_LENGTH", "0")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Listen)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, 0, cfg.MaxTextLength)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

func TestCreateTempFile(t *testing.T) {
	dir := t.TempDir()
	a, err := createTempFile(dir)
	require.NoError(t, err)
	b, err := createTempFile(dir)
	require.NoError(t, err)
	_ = a.Close()
	_ = b.Close()

	assert.NotEqual(t, a.Name(), b.Name())
	assert.Regexp(t, `tts_[0-9a-f]{32}\.wav$`, a.Name())

	removeTempFile(a.Name())
	removeTempFile(a.Name()) // already gone, must not panic
	_, err = os.Stat(a.Name())
	assert.True(t, os.IsNotExist(err))
}

func TestServer_WithoutKittenRuntime(t *testing.T) {
	engine, err := engines.NewKittenEngine(engines.KittenConfig{
		Binary:    "kittentts-not-installed",
		ModelsDir: t.TempDir(),
	})
	require.NoError(t, err)
	require.Error(t, engine.Validate())

	models := cache.NewModelCache(engine)
	t.Cleanup(func() { _ = models.Close() })
	cfg := DefaultConfig()
	cfg.TempDir = t.TempDir()
	srv, err := New(cfg, models, WithLogger(log.New(io.Discard)))
	require.NoError(t, err)

	for _, path := range []string{"/models", "/voices"} {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tts?text=Hello", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Zero(t, models.Len())
}
