package analyzer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nativize/internal/language"
	"nativize/internal/services"
)

const samplePayload = `{
  "video_title": "Cooking Basics",
  "content_type": "educational",
  "detected_language": "english",
  "segments": [
    {"index": 0, "start_time": 0.0, "end_time": 4.5, "original_text": "Welcome back", "translated_text": "वापसी पर स्वागत है", "cultural_notes": ""},
    {"index": 1, "start_time": "0:05", "end_time": "0:09.5", "original_text": "It is a piece of cake", "translated_text": "यह बाएं हाथ का खेल है", "cultural_notes": "idiom adapted"}
  ],
  "cultural_report": {
    "adaptation_count": 1,
    "sensitivities": [{"timestamp": 5.0, "description": "idiom", "recommendation": "use native idiom"}],
    "quality_score": 9,
    "notes": "clean adaptation"
  },
  "tts": {"recommended_voice_gender": "female"}
}`

func newTestServer(t *testing.T, generateStatus int, generateBody string) *httptest.Server {
	t.Helper()
	pollCount := 0
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/upload/v1beta/files"):
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "video/mp4", r.Header.Get("Content-Type"))
			json.NewEncoder(w).Encode(map[string]any{
				"file": map[string]string{
					"name":     "files/abc",
					"uri":      "https://files.example/abc",
					"state":    "PROCESSING",
					"mimeType": "video/mp4",
				},
			})
		case r.URL.Path == "/v1beta/files/abc":
			pollCount++
			state := "PROCESSING"
			if pollCount >= 2 {
				state = "ACTIVE"
			}
			json.NewEncoder(w).Encode(map[string]string{
				"name":  "files/abc",
				"uri":   "https://files.example/abc",
				"state": state,
			})
		case strings.Contains(r.URL.Path, ":generateContent"):
			var req generateRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Len(t, req.Contents, 1)
			require.NotNil(t, req.Contents[0].Parts[0].FileData)
			require.Contains(t, req.Contents[0].Parts[1].Text, "TRANSCREATE")
			require.Equal(t, "application/json", req.GenerationConfig.ResponseMimeType)

			w.WriteHeader(generateStatus)
			if generateStatus >= 300 {
				w.Write([]byte(generateBody))
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"candidates": []map[string]any{
					{"content": map[string]any{"parts": []map[string]string{{"text": generateBody}}}},
				},
			})
		default:
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
}

func testVideo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.mp4")
	require.NoError(t, os.WriteFile(path, []byte("video-bytes"), 0o644))
	return path
}

func testClient(serverURL string) *Client {
	return NewClient("test-key", WithBaseURL(serverURL), WithPollInterval(time.Millisecond))
}

func hindi(t *testing.T) language.Language {
	t.Helper()
	lang, ok := language.Lookup("hindi")
	require.True(t, ok)
	return lang
}

func TestAnalyzeHappyPath(t *testing.T) {
	server := newTestServer(t, http.StatusOK, samplePayload)
	defer server.Close()

	result, err := testClient(server.URL).Analyze(context.Background(), testVideo(t), hindi(t))
	require.NoError(t, err)

	assert.Equal(t, "Cooking Basics", result.Title)
	assert.Equal(t, "female", result.VoiceGender)
	require.Len(t, result.Segments, 2)
	assert.Equal(t, 5.0, result.Segments[1].StartTime)
	assert.Equal(t, 9.5, result.Segments[1].EndTime)
	assert.Equal(t, 1, result.Report.AdaptationCount)
	assert.Equal(t, 9, result.Report.QualityScore)
}

func TestAnalyzeQuotaExhaustionIsRetriable(t *testing.T) {
	server := newTestServer(t, http.StatusTooManyRequests, `{"error": {"message": "quota exceeded"}}`)
	defer server.Close()

	_, err := testClient(server.URL).Analyze(context.Background(), testVideo(t), hindi(t))
	require.ErrorIs(t, err, services.ErrUnavailable)
	assert.True(t, services.Retriable(err))
}

func TestAnalyzeMalformedPayloadIsRetriable(t *testing.T) {
	server := newTestServer(t, http.StatusOK, "this is not json")
	defer server.Close()

	_, err := testClient(server.URL).Analyze(context.Background(), testVideo(t), hindi(t))
	require.ErrorIs(t, err, services.ErrMalformed)
	assert.True(t, services.Retriable(err))
}

func TestAnalyzeOrderingViolationIsFatal(t *testing.T) {
	payload := `{
  "segments": [
    {"index": 0, "start_time": 10, "end_time": 15, "original_text": "b", "translated_text": "ब"},
    {"index": 1, "start_time": 2, "end_time": 6, "original_text": "a", "translated_text": "अ"}
  ]
}`
	server := newTestServer(t, http.StatusOK, payload)
	defer server.Close()

	_, err := testClient(server.URL).Analyze(context.Background(), testVideo(t), hindi(t))
	require.ErrorIs(t, err, services.ErrContent)
	assert.False(t, services.Retriable(err))
}

func TestAnalyzeProcessingFailureIsFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/upload/v1beta/files"):
			json.NewEncoder(w).Encode(map[string]any{
				"file": map[string]string{"name": "files/abc", "uri": "u", "state": "FAILED"},
			})
		default:
			t.Fatalf("unexpected request %s", r.URL.Path)
		}
	}))
	defer server.Close()

	_, err := testClient(server.URL).Analyze(context.Background(), testVideo(t), hindi(t))
	require.ErrorIs(t, err, services.ErrContent)
}

func TestAnalyzeRequiresAPIKey(t *testing.T) {
	client := NewClient("")
	_, err := client.Analyze(context.Background(), "/tmp/x.mp4", hindi(t))
	require.ErrorIs(t, err, services.ErrConfiguration)
}

func TestParseClock(t *testing.T) {
	cases := map[string]float64{
		"0:05":    5,
		"1:30":    90,
		"01:02:03": 3723,
		"12.5":    12.5,
	}
	for in, want := range cases {
		got, err := parseClock(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}
