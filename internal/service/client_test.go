package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"interviewroom/internal/config"
	"interviewroom/internal/errors"
	"interviewroom/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServiceConfig(baseURL string) *config.ServiceConfig {
	return &config.ServiceConfig{
		BaseURL:   baseURL,
		APIKey:    "test-key",
		UserAgent: "interviewroom-test",
		Paths: config.ServicePaths{
			Start:    "/api/interview/start",
			Answer:   "/api/interview/answer",
			TTS:      "/api/interview/tts",
			Finalize: "/api/interview/finalize",
		},
		Timeouts: config.ServiceTimeouts{
			Start:    5 * time.Second,
			Answer:   5 * time.Second,
			TTS:      5 * time.Second,
			Finalize: 5 * time.Second,
		},
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc, mutate ...func(*config.ServiceConfig)) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := testServiceConfig(server.URL)
	for _, m := range mutate {
		m(cfg)
	}
	client, err := NewClient(cfg, nil)
	require.NoError(t, err)
	return client
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient(&config.ServiceConfig{}, nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidConfig, errors.CodeOf(err))
}

func TestStartSession(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/interview/start", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "interviewroom-test", r.Header.Get("User-Agent"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		var req types.StartSessionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "S1", req.SessionID)

		writeJSON(t, w, http.StatusOK, types.StartSessionResponse{Success: true, Question: "Tell me about yourself."})
	})

	resp, err := client.StartSession(context.Background(), "S1")
	require.NoError(t, err)
	assert.Equal(t, "Tell me about yourself.", resp.Question)
}

func TestStartSessionRejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, types.StartSessionResponse{Success: false, Message: "session not found"})
	})

	_, err := client.StartSession(context.Background(), "S1")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeServiceRejected, errors.CodeOf(err))
	assert.Contains(t, err.Error(), "session not found")
}

func TestStartSessionHTTPError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusNotFound, map[string]string{"message": "unknown session"})
	})

	_, err := client.StartSession(context.Background(), "S1")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeServiceHTTP, errors.CodeOf(err))
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "unknown session")
}

func TestStartSessionMalformedJSON(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, "{not json")
	})

	_, err := client.StartSession(context.Background(), "S1")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidResponse, errors.CodeOf(err))
}

func TestSubmitAnswerMultipartUpload(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/interview/answer", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "S1", r.FormValue("sessionId"))

		file, header, err := r.FormFile("audio")
		require.NoError(t, err)
		defer func() { _ = file.Close() }()
		assert.Equal(t, "answer.webm", header.Filename)
		assert.Equal(t, "audio/webm", header.Header.Get("Content-Type"))

		data, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, "audio-bytes", string(data))

		writeJSON(t, w, http.StatusOK, types.SubmitAnswerResponse{
			Success:          true,
			Status:           "active",
			AnswerTranscript: "I build systems.",
			Question:         "What was hard?",
		})
	})

	resp, err := client.SubmitAnswer(context.Background(), "S1", &types.Recording{
		Data:     []byte("audio-bytes"),
		MIMEType: "audio/webm",
	})
	require.NoError(t, err)
	assert.True(t, resp.Continues())
	assert.Equal(t, "I build systems.", resp.AnswerTranscript)
	assert.Equal(t, "What was hard?", resp.Question)
}

func TestSubmitAnswerCompleted(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, types.SubmitAnswerResponse{
			Success:          true,
			Status:           "completed",
			AnswerTranscript: "That's all.",
		})
	})

	resp, err := client.SubmitAnswer(context.Background(), "S1", &types.Recording{Data: []byte{1}, MIMEType: "audio/wav"})
	require.NoError(t, err)
	assert.False(t, resp.Continues())
}

func TestSubmitAnswerActiveWithoutQuestion(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, types.SubmitAnswerResponse{Success: true, Status: "active"})
	})

	_, err := client.SubmitAnswer(context.Background(), "S1", &types.Recording{Data: []byte{1}})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidResponse, errors.CodeOf(err))
}

func TestSubmitAnswerEmptyRecording(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	_, err := client.SubmitAnswer(context.Background(), "S1", &types.Recording{})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidRequest, errors.CodeOf(err))
	assert.Zero(t, calls.Load())
}

func TestSynthesize(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req types.SynthesizeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Hello", req.Text)
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("mp3-data"))
	})

	audio, err := client.Synthesize(context.Background(), "Hello")
	require.NoError(t, err)
	assert.Equal(t, "audio/mpeg", audio.ContentType)
	assert.Equal(t, []byte("mp3-data"), audio.Data)
}

func TestSynthesizeJSONFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{"success": false, "message": "tts quota exceeded"})
	})

	_, err := client.Synthesize(context.Background(), "Hello")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeServiceRejected, errors.CodeOf(err))
}

func TestSynthesizeServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := client.Synthesize(context.Background(), "Hello")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeServiceHTTP, errors.CodeOf(err))
}

func TestFinalize(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/interview/finalize", r.URL.Path)
		var req types.FinalizeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "S1", req.SessionID)
		writeJSON(t, w, http.StatusOK, types.FinalizeResponse{Success: true})
	})

	resp, err := client.Finalize(context.Background(), "S1")
	require.NoError(t, err)
	assert.True(t, resp.Success)
}

func TestCallTimeout(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, func(cfg *config.ServiceConfig) {
		cfg.Timeouts.Finalize = 50 * time.Millisecond
	})
	defer close(release)

	_, err := client.Finalize(context.Background(), "S1")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNetworkTimeout, errors.CodeOf(err))
}

func TestNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	cfg := testServiceConfig(server.URL)
	server.Close()

	client, err := NewClient(cfg, nil)
	require.NoError(t, err)

	_, err = client.StartSession(context.Background(), "S1")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNetworkFailed, errors.CodeOf(err))
}

func TestCircuitBreakerOpensOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}, func(cfg *config.ServiceConfig) {
		cfg.CircuitBreaker = config.CircuitBreakerConfig{
			Enabled:          true,
			MaxRequests:      1,
			Interval:         time.Minute,
			Timeout:          time.Minute,
			MinRequests:      2,
			FailureThreshold: 0.5,
		}
	})

	for range 2 {
		_, err := client.Finalize(context.Background(), "S1")
		assert.Equal(t, errors.ErrCodeServiceHTTP, errors.CodeOf(err))
	}

	_, err := client.Finalize(context.Background(), "S1")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeCircuitOpen, errors.CodeOf(err))
	assert.Equal(t, int32(2), calls.Load())
	assert.False(t, client.IsHealthy())

	// Other operations have their own breaker
	_, err = client.StartSession(context.Background(), "S1")
	assert.Equal(t, errors.ErrCodeServiceHTTP, errors.CodeOf(err))
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusBadRequest, map[string]string{"error": "bad session"})
	}, func(cfg *config.ServiceConfig) {
		cfg.CircuitBreaker = config.CircuitBreakerConfig{
			Enabled:          true,
			MaxRequests:      1,
			Interval:         time.Minute,
			Timeout:          time.Minute,
			MinRequests:      1,
			FailureThreshold: 0.1,
		}
	})

	for range 3 {
		_, err := client.Finalize(context.Background(), "S1")
		assert.Equal(t, errors.ErrCodeServiceHTTP, errors.CodeOf(err))
	}
	assert.True(t, client.IsHealthy())
}

func TestGetStats(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {}, func(cfg *config.ServiceConfig) {
		cfg.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerMin: 60, BurstCapacity: 2}
	})

	stats := client.GetStats()
	rateStats, ok := stats["rate_limit"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, rateStats["enabled"])
	assert.Equal(t, 2, rateStats["burst"])

	breakers, ok := stats["circuit_breakers"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, breakers, 4)
}
