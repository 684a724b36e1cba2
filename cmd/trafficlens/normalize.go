package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"trafficlens/pkg/accesslog"
	"trafficlens/pkg/structlog"
)

func newNormalizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "normalize <input.json>",
		Short: "Normalize an access log and write it as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := cmd.Flags().GetString("output")
			if err != nil {
				return fmt.Errorf("failed to get output flag: %w", err)
			}
			e, err := setup(cmd, nil)
			if err != nil {
				return err
			}
			defer e.close()

			records, err := loadRecords(e, args[0])
			if err != nil {
				return err
			}
			write := func(w io.Writer) error { return accesslog.WriteCSV(w, records) }
			if out == "-" {
				return write(cmd.OutOrStdout())
			}
			if err := writeFile(out, write); err != nil {
				return err
			}
			e.log.Info("normalized records exported", structlog.Fields{"path": out})
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "accesos_procesados.csv", "CSV destination, - for stdout")
	return cmd
}
