package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"interviewroom/internal/config"
	"interviewroom/internal/errors"
	"interviewroom/internal/history"
	"interviewroom/internal/types"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	v := viper.New()
	v.Set("service.baseURL", baseURL)
	v.Set("service.rateLimit.enabled", false)
	v.Set("media.device", "file")
	v.Set("speech.engine", "none")
	v.Set("session.playback", false)
	v.Set("history.path", filepath.Join(t.TempDir(), "history.db"))
	cfg, err := config.LoadConfigWith(v, "")
	require.NoError(t, err)
	return cfg
}

func newInterviewServer(t *testing.T, finalized *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/interview/start":
			_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "question": "Tell me about yourself."})
		case "/api/interview/answer":
			assert.NoError(t, r.ParseMultipartForm(1<<20))
			assert.Equal(t, "S42", r.FormValue("sessionId"))
			_ = json.NewEncoder(w).Encode(map[string]any{
				"success":          true,
				"status":           "completed",
				"answerTranscript": "I write Go.",
			})
		case "/api/interview/finalize":
			finalized.Add(1)
			_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestPracticeRunsSessionFromAnswerFiles(t *testing.T) {
	var finalized atomic.Int32
	server := newInterviewServer(t, &finalized)
	defer server.Close()

	answer := filepath.Join(t.TempDir(), "a1.wav")
	require.NoError(t, os.WriteFile(answer, []byte("RIFF....WAVE"), 0600))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader("\n\n"))
	rootCmd.SetArgs([]string{"practice", "S42", "--answers", answer, "--format", "json", "--target-questions", "5"})
	defer rootCmd.SetArgs(nil)

	var logger *errors.Logger
	cfg := testConfig(t, server.URL)
	err := Execute(context.Background(), cfg, logger)
	require.NoError(t, err)

	assert.Equal(t, int32(1), finalized.Load())
	text := out.String()
	assert.Contains(t, text, "Question 1 of 5")
	assert.Contains(t, text, "INTERVIEW COMPLETE")
	assert.Contains(t, text, server.URL+"/interview/report/S42")

	start := strings.Index(text, "{\n")
	require.GreaterOrEqual(t, start, 0, "transcript JSON not printed:\n%s", text)
	var export map[string]any
	require.NoError(t, json.Unmarshal([]byte(text[start:]), &export))
	assert.Equal(t, "completed", export["status"])
	assert.Len(t, export["transcript"], 2)

	store, err := history.Open(cfg.History.Path, nil)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	rec, err := store.Latest(context.Background(), "S42")
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, rec.Status)
	assert.Equal(t, server.URL+"/interview/report/S42", rec.ReportURL)
}

func TestApplyPracticeFlags(t *testing.T) {
	cfg := testConfig(t, "http://localhost:3000")
	cfg.Media.Device = "command"

	cmd := &cobra.Command{Use: "practice"}
	cmd.Flags().StringSliceVar(&practiceConfig.answers, "answers", nil, "")
	cmd.Flags().BoolVar(&practiceConfig.noPlayback, "no-playback", false, "")
	cmd.Flags().IntVar(&practiceConfig.targetQuestions, "target-questions", 0, "")
	require.NoError(t, cmd.Flags().Parse([]string{"--answers", "a.wav,b.wav", "--no-playback"}))

	applyPracticeFlags(cmd, cfg)

	assert.Equal(t, "file", cfg.Media.Device)
	assert.Equal(t, []string{"a.wav", "b.wav"}, cfg.Media.Answers)
	assert.False(t, cfg.Session.Playback)
	assert.Equal(t, 10, cfg.Session.TargetQuestions, "unset flags keep configured values")
}

func TestSpeakText(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "q.txt")
	require.NoError(t, os.WriteFile(file, []byte("  What motivates you?\n"), 0600))

	ctx := context.WithValue(context.Background(), loggerKey, (*errors.Logger)(nil))
	speakCmd.SetContext(ctx)
	defer func() { speakConfig.file = "" }()

	text, err := speakText(speakCmd, []string{"Hello"})
	require.NoError(t, err)
	assert.Equal(t, "Hello", text)

	speakConfig.file = file
	text, err = speakText(speakCmd, nil)
	require.NoError(t, err)
	assert.Equal(t, "What motivates you?", text)

	_, err = speakText(speakCmd, []string{"Hello"})
	assert.Error(t, err, "text and file together")

	speakConfig.file = ""
	_, err = speakText(speakCmd, []string{"   "})
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)
	assert.Contains(t, out.String(), "interviewroom version "+Version)
}

func TestHistoryCommands(t *testing.T) {
	cfg := testConfig(t, "http://localhost:3000")
	store, err := history.Open(cfg.History.Path, nil)
	require.NoError(t, err)
	_, err = store.Record(context.Background(), types.SessionRecord{
		SessionID:       "S9",
		Status:          types.StatusCompleted,
		QuestionCount:   2,
		TargetQuestions: 10,
		Transcript: []types.TranscriptEntry{
			{Role: types.RoleInterviewer, Text: "Why this role?"},
			{Role: types.RoleCandidate, Text: "The team."},
		},
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"history", "--format", "text"})
	require.NoError(t, Execute(context.Background(), cfg, nil))
	assert.Contains(t, out.String(), "S9")
	assert.Contains(t, out.String(), "2/10")

	out.Reset()
	rootCmd.SetArgs([]string{"history", "show", "S9", "--format", "text"})
	require.NoError(t, Execute(context.Background(), cfg, nil))
	assert.Contains(t, out.String(), "Q1. Why this role?")

	rootCmd.SetArgs([]string{"history", "show", "nope", "--format", "text"})
	assert.Error(t, Execute(context.Background(), cfg, nil))
}
