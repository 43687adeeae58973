package cli

import (
	"context"
	"log"

	"coined/internal/config"
	"coined/internal/migrations"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrations(cmd.Context(), config.Load())
		},
	}
}

func runMigrations(ctx context.Context, cfg config.Config) error {
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is not configured")
	}
	applied, err := migrations.Apply(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "apply migrations")
	}
	if len(applied) == 0 {
		log.Println("migrations: schema is up to date")
		return nil
	}
	for _, name := range applied {
		log.Printf("migrations: applied %s", name)
	}
	return nil
}
