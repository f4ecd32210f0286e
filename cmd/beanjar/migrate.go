package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dukerupert/beanjar/internal/database"
	"github.com/dukerupert/beanjar/internal/store"
)

func newMigrateCmd(rt *runtime) *cobra.Command {
	var defaultFamily string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations and optionally adopt family-less members",
		Long: "Apply schema migrations. With --default-family, members created before\n" +
			"families existed are moved into the named family, creating it if needed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			db, cleanup, err := openDB(rt)
			if err != nil {
				return err
			}
			defer cleanup()

			v, err := database.Version(db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", v)

			name := strings.TrimSpace(defaultFamily)
			if name == "" {
				return nil
			}

			families := store.NewFamilyStore(db)
			family, err := families.GetByName(ctx, name)
			if err != nil {
				return err
			}
			if family == nil {
				if family, err = families.Create(ctx, name, "", ""); err != nil {
					return err
				}
				rt.logger.Info("family created", "family_id", family.ID, "name", name)
			}

			n, err := families.AdoptOrphans(ctx, family.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "moved %d member(s) into %q\n", n, family.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&defaultFamily, "default-family", "", "family that receives members without one")
	return cmd
}
