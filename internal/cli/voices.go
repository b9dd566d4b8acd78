package cli

import (
	"interviewroom/internal/common"
	"interviewroom/internal/formatters"
	"interviewroom/internal/speech"

	"github.com/spf13/cobra"
)

var voicesCmd = &cobra.Command{
	Use:   "voices",
	Short: "List local speech synthesis voices",
	Long: `List the voices installed for the local speech engine and show which one
is used when questions are spoken locally. The voice is picked from
speech.preferredVoices by name or language.`,
	Args: cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfigFromContext(cmd.Context())
		if voicesConfig.OutputFormat == "" {
			voicesConfig.OutputFormat = cfg.App.DefaultFormat
		}
		return common.ValidateOutputFormat(voicesConfig.OutputFormat, cfg.App.SupportedFormats)
	},
	RunE: runVoices,
}

var voicesConfig common.CommandConfig

func init() {
	voicesCmd.Flags().StringVarP(&voicesConfig.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	voicesCmd.Flags().StringVar(&voicesConfig.OutputFormat, "format", "", "Output format: json, text, markdown, or yaml")
	registerFormatCompletion(voicesCmd)
}

func runVoices(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := getConfigFromContext(ctx)
	logger := getLoggerFromContext(ctx)

	local := speech.NewLocalSynthesizer(cfg.Speech, nil, logger)
	voices, err := local.Voices(ctx)
	if err != nil {
		return err
	}

	list := formatters.VoiceList{Engine: local.Engine(), Voices: voices}
	if voice := speech.SelectVoice(voices, cfg.Speech.PreferredVoices); voice != nil {
		list.Selected = voice.Name
	}

	return common.NewOutputHandlerTo(cmd.OutOrStdout(), logger).HandleOutput(list, voicesConfig)
}
