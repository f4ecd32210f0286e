package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dukerupert/beanjar/internal/store"
)

func newAuditCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Compare every balance with its transaction log",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			db, cleanup, err := openDB(rt)
			if err != nil {
				return err
			}
			defer cleanup()

			audits, err := store.NewMemberStore(db).AuditAll(ctx)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tMEMBER\tBALANCE\tLOG SUM\tOK")
			drift := 0
			for _, a := range audits {
				ok := "yes"
				if !a.Consistent {
					ok = "NO"
					drift++
				}
				fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\n", a.MemberID, a.MemberName, a.Balance, a.TransactionSum, ok)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if drift > 0 {
				return fmt.Errorf("%d member(s) out of balance", drift)
			}
			return nil
		},
	}
}
