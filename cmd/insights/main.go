package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/careconnect/backend/internal/bootstrap"
	"github.com/careconnect/backend/internal/domain/entities"
	"github.com/careconnect/backend/internal/domain/providers"
	"github.com/careconnect/backend/internal/infrastructure/observability"
	"github.com/careconnect/backend/pkg/config"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "insights",
		Short:         "Operator tools for the clinical risk-insight pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(refreshCmd())
	rootCmd.AddCommand(latestCmd())
	rootCmd.AddCommand(watchCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, vault, err := config.LoadWithSecrets(ctx)
	if err != nil {
		return nil, err
	}
	observability.InitLogger(cfg.OTEL.ServiceName+"-cli", cfg.Server.Env)
	if vault.Enabled {
		log.Debug().Str("path", vault.Path).Int("loaded", len(vault.Loaded)).Msg("Vault secrets applied")
	}
	return cfg, nil
}

func analyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <file.pdf>",
		Short: "Extract and analyze a local PDF without storing anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			showText, _ := cmd.Flags().GetBool("show-text")

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			extracted := bootstrap.NewExtractor(cfg, nil).Extract(cmd.Context(), data)
			if extracted.Mode == entities.ExtractionModeUnreadable || extracted.Mode == entities.ExtractionModeOCRError {
				return fmt.Errorf("extraction failed (mode %s)", extracted.Mode)
			}
			if extracted.Text == "" {
				return fmt.Errorf("no readable text found in %s", args[0])
			}

			analysis, err := bootstrap.NewAnalyzer(cfg).Analyze(cmd.Context(), extracted.Text, nil)
			if err != nil {
				return err
			}

			out := map[string]interface{}{
				"file":            args[0],
				"extraction_mode": extracted.Mode,
				"risk_level":      entities.RiskLevelFor(analysis.RiskScore),
				"analysis":        analysis,
			}
			if showText {
				out["text"] = extracted.Text
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().Bool("show-text", false, "Include the full extracted text in the output")
	return cmd
}

func refreshCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refresh <patient-id>",
		Short: "Generate and store a new insight from the patient's newest PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := startApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			var createdBy *string
			if by, _ := cmd.Flags().GetString("created-by"); by != "" {
				createdBy = &by
			}

			view, message, err := app.Service.GeneratePatientInsight(cmd.Context(), args[0], createdBy)
			if err != nil {
				return fmt.Errorf("%s", message)
			}
			return writeJSON(cmd.OutOrStdout(), view)
		},
	}
	cmd.Flags().String("created-by", "", "User ID recorded on the stored insight")
	return cmd
}

func latestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "latest",
		Short: "Show the most recent insight per patient",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := startApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			limit, _ := cmd.Flags().GetInt("limit")
			patientID, _ := cmd.Flags().GetString("patient")

			if patientID != "" {
				views, message, err := app.Service.GetPatientInsights(cmd.Context(), patientID, limit)
				if err != nil {
					return fmt.Errorf("%s", message)
				}
				return writeJSON(cmd.OutOrStdout(), views)
			}

			latest, message, err := app.Service.ListLatestInsights(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("%s", message)
			}
			if len(latest) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), message)
				return nil
			}
			return writeJSON(cmd.OutOrStdout(), latest)
		},
	}
	cmd.Flags().Int("limit", 0, "Maximum rows to scan (0 uses the configured default)")
	cmd.Flags().String("patient", "", "Show stored insights for one patient instead")
	return cmd
}

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print insight events as they are published",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := startApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if app.EventBus == nil {
				return fmt.Errorf("redis is unavailable; no insight events to watch")
			}

			channel := providers.EventChannelInsightUpdates
			if patientID, _ := cmd.Flags().GetString("patient"); patientID != "" {
				channel = providers.GetPatientChannel(patientID)
			}

			events, err := app.EventBus.Subscribe(cmd.Context(), channel)
			if err != nil {
				return fmt.Errorf("subscribe %s: %w", channel, err)
			}
			log.Info().Str("channel", channel).Msg("Watching for insight events")

			enc := json.NewEncoder(cmd.OutOrStdout())
			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case event, ok := <-events:
					if !ok {
						return nil
					}
					if err := enc.Encode(event); err != nil {
						return err
					}
				}
			}
		},
	}
	cmd.Flags().String("patient", "", "Only show events for one patient")
	return cmd
}

func startApp(ctx context.Context) (*bootstrap.App, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	return bootstrap.New(ctx, cfg)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
