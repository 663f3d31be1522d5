package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/garyjia/justifi/internal/domain/entity"
	"github.com/garyjia/justifi/internal/infrastructure/export"
)

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <justification-id>",
		Short: "Write a justification with its history to an XLSX file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts)
			if err != nil {
				return err
			}
			defer e.Close()

			id := entity.JustificationID(args[0])
			detail, err := e.services.Query.GetJustification(cmd.Context(), id)
			if err != nil {
				return err
			}

			exporter := export.NewExcelExporter(e.cfg.ToContainerConfig("").Export, e.logger)
			if output == "" {
				output = fmt.Sprintf("justification-%s%s", id, exporter.FileExtension())
			}

			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := exporter.Export(cmd.Context(), detail, f); err != nil {
				_ = f.Close()
				_ = os.Remove(output)
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}

			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"file": output})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default justification-<id>.xlsx)")
	return cmd
}
