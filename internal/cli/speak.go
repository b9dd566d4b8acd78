package cli

import (
	"fmt"
	"strings"

	"interviewroom/internal/common"

	"github.com/spf13/cobra"
)

var speakCmd = &cobra.Command{
	Use:   "speak [text]",
	Short: "Speak text the way interview questions are spoken",
	Long: `Speak text through the same playback path used for interview questions:
the Interview Service synthesizes the audio and the configured player plays it.
If remote synthesis fails the local speech engine is used instead.
Useful for checking the audio setup before an interview.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSpeak,
}

var speakConfig struct {
	file  string
	local bool
}

func init() {
	speakCmd.Flags().StringVarP(&speakConfig.file, "file", "f", "", "Read the text from a file")
	speakCmd.Flags().BoolVar(&speakConfig.local, "local-voice", false, "Use the local speech engine only")
}

func runSpeak(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := getConfigFromContext(ctx)
	logger := getLoggerFromContext(ctx)

	text, err := speakText(cmd, args)
	if err != nil {
		return err
	}

	env, err := newAppEnv(cfg, logger)
	if err != nil {
		return err
	}
	defer env.close()

	speaker := newSpeaker(cfg, env)
	speaker.SetUseLocal(speakConfig.local || cfg.Session.UseLocalSynthesis)

	logger.Info("Speaking text", "chars", len(text), "local", speaker.UseLocal())
	if err := speaker.Speak(ctx, text); err != nil {
		return fmt.Errorf("failed to speak text: %w", err)
	}
	return nil
}

func speakText(cmd *cobra.Command, args []string) (string, error) {
	var text string
	switch {
	case speakConfig.file != "" && len(args) > 0:
		return "", fmt.Errorf("give either text or --file, not both")
	case speakConfig.file != "":
		content, err := common.NewFileProcessor(getLoggerFromContext(cmd.Context())).ReadFile(speakConfig.file)
		if err != nil {
			return "", err
		}
		text = string(content)
	case len(args) == 1:
		text = args[0]
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("nothing to speak")
	}
	return text, nil
}
