package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/diewo77/billing-core/internal/services"
	"github.com/spf13/cobra"
)

func newReportCmd(a *app) *cobra.Command {
	report := &cobra.Command{
		Use:   "report",
		Short: "Export reports",
	}

	var (
		userID  uint
		outPath string
	)
	csvCmd := &cobra.Command{
		Use:   "csv",
		Short: "Export an owner's bills as CSV",
		Example: `  billctl report csv --user 1
  billctl report csv --user 1 --out bills_report.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			if userID == 0 {
				return errors.New("--user is required")
			}
			conn, closeFn, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			var w io.Writer = cmd.OutOrStdout()
			if outPath != "" && outPath != "-" {
				f, ferr := os.Create(outPath)
				if ferr != nil {
					return fmt.Errorf("create %s: %w", outPath, ferr)
				}
				defer func() {
					if cerr := f.Close(); cerr != nil && err == nil {
						err = cerr
					}
				}()
				w = f
			}
			return services.NewReportService(conn).ExportBillsCSV(cmd.Context(), userID, w)
		},
	}
	csvCmd.Flags().UintVar(&userID, "user", 0, "owner id whose bills are exported")
	csvCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (stdout when empty)")

	report.AddCommand(csvCmd)
	return report
}
