package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"velora-scenario-service/internal/catalog"
	"velora-scenario-service/internal/infra/postgres"
)

// NewSeedCmd loads a catalog file into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	var catalogPath string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Validate a catalog file and upsert it into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer log.Sync()
			if catalogPath == "" {
				catalogPath = cfg.Quiz.CatalogPath
			}
			if catalogPath == "" {
				return fmt.Errorf("no catalog file given")
			}
			bundle, err := catalog.Load(catalogPath)
			if err != nil {
				return err
			}
			if err := runMigrationsWithConfig(cmd.Context(), cfg, log); err != nil {
				return err
			}

			db := postgres.OpenBun(cfg.Postgres.URL)
			defer db.Close()
			if err := postgres.NewCatalogStore(db).Seed(cmd.Context(), bundle); err != nil {
				return err
			}
			log.Info("catalog seeded", "path", catalogPath, "tracks", len(bundle.Tracks), "scenarios", len(bundle.Scenarios))
			return nil
		},
	}
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "catalog YAML file (defaults to quiz.catalog_path)")
	return cmd
}
