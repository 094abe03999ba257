package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/talepify/entitlement-service/internal/config"
	"github.com/talepify/entitlement-service/internal/migrations"
	"github.com/talepify/entitlement-service/internal/storage/repository"
)

func newMigrateCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			const op = "cli.migrate"
			cfg, err := rt.config()
			if err != nil {
				return err
			}
			if cfg.StorageDriver != config.StorageDriverPostgres {
				return fmt.Errorf("%s: storage driver %q has no migrations", op, cfg.StorageDriver)
			}

			db, err := repository.New(cmd.Context(), cfg.StorageConnectionString)
			if err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
			defer db.Close()

			if err := migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
			version, dirty, err := migrations.Version(db.DB, cfg.MigrationsPath)
			if err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
			fmt.Fprintf(rt.out, "schema version %d (dirty=%t)\n", version, dirty)
			return nil
		},
	}
}
