package cli

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"velora-scenario-service/internal/app"
	"velora-scenario-service/internal/auth"
	"velora-scenario-service/internal/domain"
	"velora-scenario-service/internal/infra/local"
	"velora-scenario-service/internal/logger"
	"velora-scenario-service/internal/tui"
)

// NewPlayCmd runs a scenario in the terminal.
func NewPlayCmd(configPath *string) *cobra.Command {
	var (
		scenarioID string
		token      string
		quotaPath  string
		noColor    bool
	)
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Practise a scenario in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer log.Sync()

			b, err := openBackends(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer b.Close()

			if scenarioID == "" {
				ref, err := b.catalog.FirstScenario(ctx)
				if err != nil {
					return err
				}
				scenarioID = ref.ID
			}
			scenario, err := b.scenarios.GetScenario(ctx, scenarioID)
			if err != nil {
				return err
			}
			if len(scenario.Questions) == 0 {
				return domain.ErrScenarioEmpty
			}

			var identity app.IdentityOracle = auth.StaticIdentity("")
			if token != "" {
				authority, err := auth.NewJWTAuthority(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
				if err != nil {
					return err
				}
				identity = authority.IdentityFor(token)
			}

			if quotaPath == "" {
				quotaPath = cfg.Quiz.QuotaFile
			}
			if quotaPath == "" {
				if quotaPath, err = local.DefaultQuotaPath(); err != nil {
					return fmt.Errorf("resolve quota file: %w", err)
				}
			}

			// stderr output would tear the full-screen UI
			quiet := logger.Nop()
			controller := app.NewController(scenario.Questions, app.ControllerDeps{
				Identity:       identity,
				Quota:          local.NewFileQuota(quotaPath),
				Progress:       b.progress,
				AnonymousLimit: cfg.Quiz.AnonymousLimit,
				Logger:         quiet,
			})
			program := tea.NewProgram(tui.NewModel(ctx, scenario, controller, tui.Options{NoColor: noColor}))
			_, err = program.Run()

			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if ferr := controller.Flush(flushCtx); ferr != nil {
				log.Warn("quit with progress writes in flight", "error", ferr)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&scenarioID, "scenario", "", "scenario id (defaults to the first scenario)")
	cmd.Flags().StringVar(&token, "token", "", "player token; omit to play as a guest")
	cmd.Flags().StringVar(&quotaPath, "quota-file", "", "where guest answers are counted")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colours")
	return cmd
}
