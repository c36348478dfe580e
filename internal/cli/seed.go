package cli

import (
	"log"
	"time"

	"github.com/spf13/cobra"

	"evalform-service/internal/config"
	pgstore "evalform-service/internal/infra/postgres"
	transport "evalform-service/internal/transport/http"
)

// NewSeedCmd loads the sample questionnaire and profiles into Postgres and
// prints a working admin token.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed reference data and print an admin token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if err := runMigrationsWithConfig(cmd.Context(), cfg); err != nil {
				return err
			}

			db, err := openBun(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			store := pgstore.NewStore(db)
			sample := sampleQuestionnaire()
			if err := store.SeedReferenceData(cmd.Context(), sample.Items, sample.Questions, sample.Mappings, sampleProfiles()); err != nil {
				return err
			}
			log.Printf("reference data seeded")

			secret := cfg.Auth.Secret
			if secret == "" {
				secret = "dev-secret"
			}
			token, err := transport.NewAuthenticator(secret).Mint("admin-1", 30*24*time.Hour)
			if err != nil {
				return err
			}
			log.Printf("admin token (profile admin-1): %s", token)
			return nil
		},
	}
}
