package main

import (
	"fmt"

	"github.com/diewo77/billing-core/internal/services"
	"github.com/spf13/cobra"
)

func newRecalcCmd(a *app) *cobra.Command {
	var billID uint
	cmd := &cobra.Command{
		Use:   "recalc",
		Short: "Recompute cached bill totals from their items",
		Long: `Recompute total_amount of every bill (or of --bill) from its item totals.
Bills whose cached total already matches are not written.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conn, closeFn, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			bills := services.NewBillService(conn, a.log, nil)
			out := cmd.OutOrStdout()
			if billID != 0 {
				changed, err := bills.Recalculate(cmd.Context(), billID)
				if err != nil {
					return err
				}
				if changed {
					fmt.Fprintf(out, "bill %d: total updated\n", billID)
				} else {
					fmt.Fprintf(out, "bill %d: total already consistent\n", billID)
				}
				return nil
			}
			repaired, err := bills.RecalculateAll(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%d bills repaired\n", repaired)
			return nil
		},
	}
	cmd.Flags().UintVar(&billID, "bill", 0, "only recalculate this bill id")
	return cmd
}
