package cli

import (
	"context"
	"fmt"

	"resumeguard/internal/config"
	"resumeguard/internal/errors"

	"github.com/spf13/cobra"
)

type configKeyType struct{}
type loggerKeyType struct{}

var configKey = configKeyType{}
var loggerKey = loggerKeyType{}

var rootCmd = &cobra.Command{
	Use:   "resumeguard",
	Short: "Detect hidden-text manipulation in resumes",
	Long: `Resumeguard inspects PDF and DOCX resumes for content that is invisible to a
human reader but visible to an applicant tracking system: white or background
colored text, off-page and overlapping glyphs, zero-width characters, keyword
stuffing and suspicious PDF drawing operators. It reports a risk score and level
per document.`,
	SilenceUsage: true,
}

// Execute runs the root command with the config and logger attached to ctx
func Execute(ctx context.Context, cfg *config.Config, logger *errors.Logger) error {
	ctx = context.WithValue(ctx, configKey, cfg)
	ctx = context.WithValue(ctx, loggerKey, logger)
	rootCmd.SetContext(ctx)
	return rootCmd.Execute()
}

func getConfigFromContext(ctx context.Context) (*config.Config, error) {
	if cfg, ok := ctx.Value(configKey).(*config.Config); ok {
		return cfg, nil
	}
	return nil, fmt.Errorf("config not found in context")
}

func getLoggerFromContext(ctx context.Context) (*errors.Logger, error) {
	if logger, ok := ctx.Value(loggerKey).(*errors.Logger); ok {
		return logger, nil
	}
	return nil, fmt.Errorf("logger not found in context")
}

func init() {
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
