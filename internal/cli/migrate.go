package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/garyjia/justifi/internal/container"
)

// NewMigrateCommand creates the migrate command and its status subcommand.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			migrator, db, cfg, err := openMigrator(rootOpts)
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := migrator.RunMigrations(cmd.Context(), container.MigrationsFS(cfg.Database.MigrationsDir))
			if err != nil {
				return err
			}
			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), map[string]int{"applied": applied})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", applied)
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List migrations and whether each has been applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			migrator, db, cfg, err := openMigrator(rootOpts)
			if err != nil {
				return err
			}
			defer db.Close()

			statuses, err := migrator.Status(cmd.Context(), container.MigrationsFS(cfg.Database.MigrationsDir))
			if err != nil {
				return err
			}
			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), statuses)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "VERSION\tNAME\tAPPLIED\tMODIFIED")
			for _, s := range statuses {
				fmt.Fprintf(tw, "%03d\t%s\t%t\t%t\n", s.Version, s.Name, s.Applied, s.Modified)
			}
			return tw.Flush()
		},
	})

	return cmd
}
