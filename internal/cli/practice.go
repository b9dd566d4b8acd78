package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"interviewroom/internal/common"
	"interviewroom/internal/config"
	"interviewroom/internal/console"
	"interviewroom/internal/errors"
	"interviewroom/internal/history"
	"interviewroom/internal/media"
	"interviewroom/internal/session"
	"interviewroom/internal/types"

	"github.com/spf13/cobra"
)

var practiceCmd = &cobra.Command{
	Use:   "practice [session-id]",
	Short: "Run a voice interview session",
	Long: `Run the interview session with the given ID. Each question is spoken aloud;
press Enter to start recording your answer and Enter again to submit it.

With --answers the session is driven by pre-recorded audio files instead of
the microphone, one file per answer.`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfigFromContext(cmd.Context())
		if err := common.ValidateSessionID(strings.TrimSpace(args[0])); err != nil {
			return err
		}
		if practiceConfig.OutputFormat == "" {
			practiceConfig.OutputFormat = cfg.App.DefaultFormat
		}
		if err := common.ValidateOutputFormat(practiceConfig.OutputFormat, cfg.App.SupportedFormats); err != nil {
			return err
		}
		applyPracticeFlags(cmd, cfg)
		if cfg.Media.Device == "file" {
			return common.NewFileProcessor(getLoggerFromContext(cmd.Context())).ValidateAnswerFiles(cfg.Media.Answers...)
		}
		return nil
	},
	RunE: runPractice,
}

var practiceConfig struct {
	common.CommandConfig
	answers         []string
	localVoice      bool
	targetQuestions int
	noPlayback      bool
	openReport      bool
}

func init() {
	practiceCmd.Flags().StringVarP(&practiceConfig.OutputFile, "output", "o", "", "Write the transcript to this file when the session ends")
	practiceCmd.Flags().StringVar(&practiceConfig.OutputFormat, "format", "", "Transcript format: json, text, markdown, or yaml")
	practiceCmd.Flags().StringSliceVar(&practiceConfig.answers, "answers", nil, "Pre-recorded answer files, used instead of the microphone")
	practiceCmd.Flags().BoolVar(&practiceConfig.localVoice, "local-voice", false, "Speak questions with the local speech engine")
	practiceCmd.Flags().IntVar(&practiceConfig.targetQuestions, "target-questions", 0, "Number of questions shown as the interview length")
	practiceCmd.Flags().BoolVar(&practiceConfig.noPlayback, "no-playback", false, "Do not speak questions aloud")
	practiceCmd.Flags().BoolVar(&practiceConfig.openReport, "open-report", false, "Open the report in the browser when the interview completes")
	registerFormatCompletion(practiceCmd)
}

// applyPracticeFlags lets explicitly set flags override the loaded configuration
func applyPracticeFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("answers") {
		cfg.Media.Device = "file"
		cfg.Media.Answers = practiceConfig.answers
	}
	if flags.Changed("local-voice") {
		cfg.Session.UseLocalSynthesis = practiceConfig.localVoice
	}
	if flags.Changed("target-questions") && practiceConfig.targetQuestions > 0 {
		cfg.Session.TargetQuestions = practiceConfig.targetQuestions
	}
	if flags.Changed("no-playback") {
		cfg.Session.Playback = !practiceConfig.noPlayback
	}
	if flags.Changed("open-report") {
		cfg.Session.OpenReport = practiceConfig.openReport
	}
}

func runPractice(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := getConfigFromContext(ctx)
	logger := getLoggerFromContext(ctx)
	sessionID := strings.TrimSpace(args[0])

	env, err := newAppEnv(cfg, logger)
	if err != nil {
		return err
	}
	defer env.close()

	capture := media.NewController(newDevice(cfg.Media), media.Options{
		MaxDuration: cfg.Media.MaxDuration,
		MaxBytes:    cfg.Media.MaxBytes,
	}, logger)
	speaker := newSpeaker(cfg, env)
	defer speaker.Stop()

	var opener console.Opener
	if cfg.Session.OpenReport {
		opener = console.BrowserOpener
	}
	nav := console.NewNavigator(cmd.OutOrStdout(), opener)
	con := console.New(cmd.InOrStdin(), cmd.OutOrStdout(), logger)

	logger.Info("Starting interview session",
		"session_id", sessionID,
		"device", cfg.Media.Device,
		"target_questions", cfg.Session.TargetQuestions,
		"local_voice", cfg.Session.UseLocalSynthesis)

	started := time.Now()
	snap, err := con.Run(ctx, func() console.Room {
		return session.NewRoom(sessionID, session.Deps{
			Service:  env.client,
			Capturer: capture,
			Speaker:  speaker,
			Nav:      nav,
			Alerter:  con,
			Observer: con,
			Obs:      env.om,
		}, session.Options{
			TargetQuestions:   cfg.Session.TargetQuestions,
			UseLocalSynthesis: cfg.Session.UseLocalSynthesis,
			Playback:          cfg.Session.Playback,
			ReportRoute:       cfg.ReportURL,
		}, logger)
	})
	logger.Debug("Service client stats", "stats", env.client.GetStats())
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("interview session failed: %w", err)
	}

	if cfg.History.Enabled {
		recordHistory(context.WithoutCancel(ctx), cfg, logger, snap, started)
	}

	if practiceConfig.OutputFile != "" || cmd.Flags().Changed("format") {
		if err := exportTranscript(cmd, cfg, snap); err != nil {
			return err
		}
	}

	if snap.Status == types.StatusError {
		return fmt.Errorf("interview session ended with an error: %s", snap.ErrorMessage)
	}
	logger.Info("Interview session ended",
		"session_id", sessionID,
		"status", string(snap.Status),
		"questions", snap.QuestionCount)
	return nil
}

func exportTranscript(cmd *cobra.Command, cfg *config.Config, snap types.Snapshot) error {
	export := types.TranscriptExport{
		SessionID:       snap.SessionID,
		Status:          snap.Status,
		QuestionCount:   snap.QuestionCount,
		TargetQuestions: snap.TargetQuestions,
		ExportedAt:      time.Now().UTC(),
		Transcript:      snap.Transcript,
	}
	if snap.Status == types.StatusCompleted {
		export.ReportURL = cfg.ReportURL(snap.SessionID)
	}

	oh := common.NewOutputHandlerTo(cmd.OutOrStdout(), getLoggerFromContext(cmd.Context()))
	return oh.HandleOutput(export, practiceConfig.CommandConfig)
}

// recordHistory keeps the session in the local history. Failures only log.
func recordHistory(ctx context.Context, cfg *config.Config, logger *errors.Logger, snap types.Snapshot, started time.Time) {
	if len(snap.Transcript) == 0 {
		return
	}

	store, err := history.Open(cfg.History.Path, logger)
	if err != nil {
		logger.Warn("Session history unavailable", "error", err.Error())
		return
	}
	defer func() { _ = store.Close() }()

	rec := types.SessionRecord{
		SessionID:       snap.SessionID,
		Status:          snap.Status,
		QuestionCount:   snap.QuestionCount,
		TargetQuestions: snap.TargetQuestions,
		StartedAt:       started,
		EndedAt:         time.Now(),
		Transcript:      snap.Transcript,
	}
	if snap.Status == types.StatusCompleted {
		rec.ReportURL = cfg.ReportURL(snap.SessionID)
	}
	if _, err := store.Record(ctx, rec); err != nil {
		logger.Warn("Failed to record session history", "session_id", snap.SessionID, "error", err.Error())
	}
}
