package cli

import (
	stderrors "errors"
	"fmt"

	"interviewroom/internal/common"
	"interviewroom/internal/formatters"
	"interviewroom/internal/history"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past practice sessions",
	Long: `List the practice sessions recorded on this machine, newest first.
Use "history show <session-id>" to print the transcript of a past session.`,
	Args:    cobra.NoArgs,
	PreRunE: validateHistoryFormat,
	RunE:    runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:     "show [session-id]",
	Short:   "Print the transcript of a past session",
	Args:    cobra.ExactArgs(1),
	PreRunE: validateHistoryFormat,
	RunE:    runHistoryShow,
}

var historyConfig struct {
	common.CommandConfig
	limit int
}

func init() {
	historyCmd.PersistentFlags().StringVarP(&historyConfig.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	historyCmd.PersistentFlags().StringVar(&historyConfig.OutputFormat, "format", "", "Output format: json, text, markdown, or yaml")
	historyCmd.Flags().IntVarP(&historyConfig.limit, "limit", "n", 0, "Number of sessions to list (default from history.limit)")
	registerFormatCompletion(historyCmd)
	historyCmd.AddCommand(historyShowCmd)
}

func validateHistoryFormat(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	if !cfg.History.Enabled {
		return fmt.Errorf("session history is disabled (history.enabled)")
	}
	if historyConfig.OutputFormat == "" {
		historyConfig.OutputFormat = cfg.App.DefaultFormat
	}
	return common.ValidateOutputFormat(historyConfig.OutputFormat, cfg.App.SupportedFormats)
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := getConfigFromContext(ctx)
	logger := getLoggerFromContext(ctx)

	store, err := history.Open(cfg.History.Path, logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	limit := historyConfig.limit
	if limit <= 0 {
		limit = cfg.History.Limit
	}
	records, err := store.List(ctx, limit)
	if err != nil {
		return err
	}

	oh := common.NewOutputHandlerTo(cmd.OutOrStdout(), logger)
	return oh.HandleOutput(formatters.SessionHistory{Records: records}, historyConfig.CommandConfig)
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := getConfigFromContext(ctx)
	logger := getLoggerFromContext(ctx)

	store, err := history.Open(cfg.History.Path, logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := common.ValidateSessionID(args[0]); err != nil {
		return err
	}
	rec, err := store.Latest(ctx, args[0])
	if stderrors.Is(err, history.ErrNotFound) {
		return fmt.Errorf("no recorded session with ID %s", args[0])
	}
	if err != nil {
		return err
	}

	oh := common.NewOutputHandlerTo(cmd.OutOrStdout(), logger)
	return oh.HandleOutput(rec.Export(), historyConfig.CommandConfig)
}
